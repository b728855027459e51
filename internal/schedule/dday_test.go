package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seoul(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	return loc
}

func date(t *testing.T, s string, loc *time.Location) time.Time {
	t.Helper()
	d, err := time.ParseInLocation(DateLayout, s, loc)
	require.NoError(t, err)
	return d
}

func TestFireInstant_Boundaries(t *testing.T) {
	loc := seoul(t)

	tests := []struct {
		name   string
		anchor string
		offset int
		want   string
	}{
		{"into leap day", "2024-02-28", 1, "2024-02-29"},
		{"back into leap day", "2024-03-01", -1, "2024-02-29"},
		{"non leap year", "2023-02-28", 1, "2023-03-01"},
		{"month boundary backwards", "2026-03-03", -7, "2026-02-24"},
		{"year boundary forwards", "2025-12-28", 7, "2026-01-04"},
		{"year boundary backwards", "2026-01-10", -30, "2025-12-11"},
		{"zero offset", "2026-02-24", 0, "2026-02-24"},
		{"meetup minus seven", "2026-02-24", -7, "2026-02-17"},
		{"meetup plus seven", "2026-02-24", 7, "2026-03-03"},
		{"century non leap", "2100-02-28", 1, "2100-03-01"},
		{"quad century leap", "2000-02-28", 1, "2000-02-29"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FireInstant(date(t, tt.anchor, loc), tt.offset, DefaultFireTime, loc)

			assert.Equal(t, tt.want, got.Format(DateLayout))
			assert.Equal(t, 9, got.Hour())
			assert.Equal(t, 0, got.Minute())
			assert.Equal(t, loc, got.Location())
		})
	}
}

func TestFireInstant_ExactDayDistance(t *testing.T) {
	loc := seoul(t)
	anchor := date(t, "2024-02-10", loc)

	for offset := -400; offset <= 400; offset += 13 {
		got := FireInstant(anchor, offset, TimeOfDay{}, loc)
		days := int(got.Sub(anchor).Hours() / 24)
		assert.Equal(t, offset, days, "offset %d", offset)
	}
}

func TestFireInstant_Deterministic(t *testing.T) {
	loc := seoul(t)
	anchor := date(t, "2026-02-24", loc)

	a := FireInstant(anchor, -14, TimeOfDay{Hour: 18, Minute: 30}, loc)
	b := FireInstant(anchor, -14, TimeOfDay{Hour: 18, Minute: 30}, loc)
	assert.True(t, a.Equal(b))
}

func TestFireInstant_NilLocation(t *testing.T) {
	anchor := time.Date(2026, 2, 24, 0, 0, 0, 0, time.UTC)
	got := FireInstant(anchor, 1, DefaultFireTime, nil)
	assert.Equal(t, time.Date(2026, 2, 25, 9, 0, 0, 0, time.UTC), got)
}

func TestCronExpression(t *testing.T) {
	loc := seoul(t)

	// 09:00 KST is midnight UTC
	fire := FireInstant(date(t, "2026-02-24", loc), -7, DefaultFireTime, loc)
	assert.Equal(t, "cron(0 0 17 2 ? 2026)", CronExpression(fire))

	// early morning KST falls on the previous UTC day
	early := FireInstant(date(t, "2026-01-01", loc), 0, TimeOfDay{Hour: 3, Minute: 15}, loc)
	assert.Equal(t, "cron(15 18 31 12 ? 2025)", CronExpression(early))
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("09:00")
	require.NoError(t, err)
	assert.Equal(t, DefaultFireTime, got)
	assert.Equal(t, "09:00", got.String())

	got, err = ParseTimeOfDay("23:59")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 23, Minute: 59}, got)

	for _, bad := range []string{"", "9am", "24:00", "12:60"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}

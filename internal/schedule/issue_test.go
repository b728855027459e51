package schedule

import (
	"testing"

	"dday-scheduler/internal/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnchorDate(t *testing.T) {
	loc := seoul(t)

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"first line", "date: 2026-02-24\nrest", "2026-02-24", false},
		{"no space", "date:2026-02-24", "2026-02-24", false},
		{"after other lines", "## Event\nlocation: Seoul\ndate:   2025-12-31\n", "2025-12-31", false},
		{"first match wins", "date: 2026-01-01\ndate: 2026-02-02", "2026-01-01", false},
		{"missing", "location: Seoul", "", true},
		{"empty body", "", "", true},
		{"wrong format", "date: 24/02/2026", "", true},
		{"impossible date", "date: 2026-02-30", "", true},
		{"month thirteen", "date: 2026-13-01", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAnchorDate(tt.body, loc)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrTypeInvalidAnchorDate))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format(DateLayout))
			assert.Equal(t, 0, got.Hour())
			assert.Equal(t, loc, got.Location())
		})
	}
}

func TestIssue_HasLabel(t *testing.T) {
	issue := Issue{Labels: []string{"bug", "Event"}}
	assert.True(t, issue.HasLabel("event"))
	assert.False(t, issue.HasLabel("meetup"))
}

func TestTriggerSpec_Derived(t *testing.T) {
	loc := seoul(t)
	spec := TriggerSpec{
		ID:        "workflow-lang-x-Dp0",
		FireAt:    FireInstant(date(t, "2026-02-24", loc), 0, DefaultFireTime, loc),
		Offset:    0,
		EventName: "x",
	}

	assert.Equal(t, "cron(0 0 24 2 ? 2026)", spec.ScheduleExpression())
	assert.Equal(t, "D+0 trigger for x", spec.Description())

	spec.Offset = -7
	assert.Equal(t, "D-7 trigger for x", spec.Description())
}

func TestPayload_JSON(t *testing.T) {
	body, err := Payload{Offset: -7, EventName: "11th-Meetup", DDay: "2026-02-24"}.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"offset":-7,"event_name":"11th-Meetup","dday":"2026-02-24"}`, body)
}

package schedule

import (
	"os"
	"path/filepath"
	"testing"

	"dday-scheduler/internal/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()

	require.NoError(t, table.Validate())
	assert.Len(t, table, 7)
	assert.Equal(t, []TaskName{TaskNotify, TaskSurvey, TaskMeeting, TaskYoutube}, table.Tasks())
	assert.Equal(t, -30, table[0].Offset)
	assert.Equal(t, []TaskName{TaskNotify, TaskSurvey, TaskYoutube}, table[6].Targets)
}

func TestTable_Validate(t *testing.T) {
	tests := []struct {
		name    string
		table   Table
		wantErr string
	}{
		{"empty", Table{}, "at least one offset"},
		{"duplicate offset", Table{
			{Offset: -7, Targets: []TaskName{TaskNotify}},
			{Offset: -7, Targets: []TaskName{TaskSurvey}},
		}, `offsets contains duplicate "-7"`},
		{"no targets", Table{{Offset: 1}}, "offset 1 has no targets"},
		{"duplicate target", Table{
			{Offset: 2, Targets: []TaskName{TaskNotify, TaskNotify}},
		}, `offset 2 targets contains duplicate "notify"`},
		{"bad task name", Table{
			{Offset: 2, Targets: []TaskName{"Notify Me"}},
		}, "offset 2 target must be a lowercase task name"},
		{"offset out of range", Table{
			{Offset: 5000, Targets: []TaskName{TaskNotify}},
		}, "offset 5000 must be between -3650 and 3650"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseFile(t *testing.T) {
	t.Run("offsets and tasks", func(t *testing.T) {
		file, err := ParseFile([]byte(`
offsets:
  - offset: -7
    targets: [notify, survey, meeting]
  - offset: 7
    targets: [notify, survey, youtube]
tasks:
  youtube: arn:aws:lambda:us-east-1:123456789012:function:video-upload
`))
		require.NoError(t, err)
		require.Len(t, file.Offsets, 2)
		assert.Equal(t, 7, file.Offsets[1].Offset)
		assert.Equal(t, []TaskName{TaskNotify, TaskSurvey, TaskYoutube}, file.Offsets[1].Targets)
		assert.Equal(t, "arn:aws:lambda:us-east-1:123456789012:function:video-upload", file.Tasks[TaskYoutube])
	})

	t.Run("tasks only keeps default table", func(t *testing.T) {
		file, err := ParseFile([]byte("tasks:\n  notify: my-notify\n"))
		require.NoError(t, err)
		assert.Equal(t, DefaultTable(), file.Offsets)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := ParseFile([]byte("offsets: [[["))
		assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	})

	t.Run("invalid table", func(t *testing.T) {
		_, err := ParseFile([]byte("offsets:\n  - offset: 1\n    targets: []\n"))
		assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	})
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte("offsets:\n  - offset: 0\n    targets: [notify]\n"), 0o600))

	file, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Table{{Offset: 0, Targets: []TaskName{TaskNotify}}}, file.Offsets)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

package schedule

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/common/validation"
	"gopkg.in/yaml.v3"
)

// MaxOffsetDays bounds offsets to roughly ten years either side of the anchor
const MaxOffsetDays = 3650

var taskNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// OffsetRule lists the tasks fired at one signed day offset
type OffsetRule struct {
	Offset  int        `yaml:"offset" json:"offset"`
	Targets []TaskName `yaml:"targets" json:"targets"`
}

// Table is an ordered offset/target table. Order only affects output order.
type Table []OffsetRule

// DefaultTable is the community event schedule.
func DefaultTable() Table {
	return Table{
		{Offset: -30, Targets: []TaskName{TaskNotify}},
		{Offset: -14, Targets: []TaskName{TaskNotify}},
		{Offset: -7, Targets: []TaskName{TaskNotify, TaskSurvey, TaskMeeting}},
		{Offset: -2, Targets: []TaskName{TaskNotify, TaskMeeting}},
		{Offset: 0, Targets: []TaskName{TaskNotify}},
		{Offset: 2, Targets: []TaskName{TaskNotify}},
		{Offset: 7, Targets: []TaskName{TaskNotify, TaskSurvey, TaskYoutube}},
	}
}

// Validate checks offsets are unique and in range and every rule has
// distinct, well formed targets.
func (t Table) Validate() error {
	v := validation.NewValidatorWithPrefix("schedule")
	if len(t) == 0 {
		v.Validate(func() error { return fmt.Errorf("schedule: at least one offset is required") })
		return v.Error()
	}

	offsets := make([]string, 0, len(t))
	for _, rule := range t {
		offsets = append(offsets, strconv.Itoa(rule.Offset))

		field := fmt.Sprintf("offset %d", rule.Offset)
		v.RequireRange(rule.Offset, -MaxOffsetDays, MaxOffsetDays, field)
		if len(rule.Targets) == 0 {
			v.Validate(func() error { return fmt.Errorf("schedule: %s has no targets", field) })
		}

		names := make([]string, 0, len(rule.Targets))
		for _, task := range rule.Targets {
			names = append(names, string(task))
			v.RequireMatch(string(task), taskNamePattern, field+" target", "a lowercase task name")
		}
		v.RequireUnique(names, field+" targets")
	}
	v.RequireUnique(offsets, "offsets")

	return v.Error()
}

// Tasks returns every distinct task in first-seen order
func (t Table) Tasks() []TaskName {
	seen := make(map[TaskName]struct{})
	var tasks []TaskName
	for _, rule := range t {
		for _, task := range rule.Targets {
			if _, ok := seen[task]; ok {
				continue
			}
			seen[task] = struct{}{}
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// File is the on-disk schedule:
//
//	offsets:
//	  - offset: -7
//	    targets: [notify, survey, meeting]
//	tasks:
//	  notify: workflow-lang-notify
type File struct {
	Offsets Table               `yaml:"offsets"`
	Tasks   map[TaskName]string `yaml:"tasks"`
}

// LoadFile reads and validates a schedule file
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("read schedule file %s", path)).WithContext("error", err.Error())
	}
	return ParseFile(data)
}

// ParseFile decodes a schedule file. A file without offsets gets DefaultTable.
func ParseFile(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.ConfigError("parse schedule file").WithContext("error", err.Error())
	}
	if len(file.Offsets) == 0 {
		file.Offsets = DefaultTable()
	}
	if err := file.Offsets.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

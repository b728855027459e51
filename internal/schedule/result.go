package schedule

import (
	stderrors "errors"
	"time"

	"dday-scheduler/internal/common/errors"
)

// OffsetResult records what happened to one offset of a registration
type OffsetResult struct {
	Offset    int
	TriggerID string
	FireAt    time.Time
	// Targets is the configured task set, Bound what the trigger now invokes
	Targets []TaskName
	Bound   []TaskName
	Grants  []GrantOutcome
	Err     error
}

// OK reports whether the trigger and every configured target were registered
func (r OffsetResult) OK() bool {
	return r.Err == nil
}

// FailedTasks lists tasks whose grant failed
func (r OffsetResult) FailedTasks() []TaskName {
	var tasks []TaskName
	for _, grant := range r.Grants {
		if !grant.OK() {
			tasks = append(tasks, grant.Grant.Task)
		}
	}
	return tasks
}

// Result is the outcome of registering one anchor event, one entry per
// table offset in table order.
type Result struct {
	Event   AnchorEvent
	Offsets []OffsetResult
}

// Rules returns the ids of fully registered triggers in table order
func (r *Result) Rules() []string {
	rules := make([]string, 0, len(r.Offsets))
	for _, offset := range r.Offsets {
		if offset.OK() {
			rules = append(rules, offset.TriggerID)
		}
	}
	return rules
}

// Failure is the wire form of a failed offset
type Failure struct {
	Offset    int              `json:"offset"`
	TriggerID string           `json:"trigger_id"`
	Kind      errors.ErrorType `json:"kind"`
	Error     string           `json:"error"`
	Tasks     []TaskName       `json:"tasks,omitempty"`
}

// Failures lists failed offsets in table order
func (r *Result) Failures() []Failure {
	var failures []Failure
	for _, offset := range r.Offsets {
		if offset.OK() {
			continue
		}
		failures = append(failures, Failure{
			Offset:    offset.Offset,
			TriggerID: offset.TriggerID,
			Kind:      errors.GetType(offset.Err),
			Error:     offset.Err.Error(),
			Tasks:     offset.FailedTasks(),
		})
	}
	return failures
}

// Err returns a partial_fanout_failure error when any offset failed
func (r *Result) Err() error {
	var errs []error
	for _, offset := range r.Offsets {
		if offset.Err != nil {
			errs = append(errs, offset.Err)
		}
	}
	if len(errs) == 0 {
		return nil
	}

	appErr := errors.PartialFanoutFailure(len(errs), len(r.Offsets))
	appErr.Cause = stderrors.Join(errs...)
	return appErr
}

// Summary is the report published after each registration
type Summary struct {
	EventName string    `json:"event_name"`
	DDay      string    `json:"dday"`
	Rules     []string  `json:"rules"`
	Failures  []Failure `json:"failures,omitempty"`
}

func (r *Result) Summary() Summary {
	return Summary{
		EventName: r.Event.Name,
		DDay:      r.Event.DDay(),
		Rules:     r.Rules(),
		Failures:  r.Failures(),
	}
}

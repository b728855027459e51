package schedule

import (
	"time"

	"dday-scheduler/internal/common/errors"
)

// TriggerView is the JSON form of a planned trigger
type TriggerView struct {
	TriggerID          string           `json:"trigger_id"`
	Offset             int              `json:"offset"`
	FireAt             time.Time        `json:"fire_at"`
	ScheduleExpression string           `json:"schedule_expression"`
	Description        string           `json:"description"`
	Targets            []TaskName       `json:"targets"`
	Payload            Payload          `json:"payload"`
	ErrorKind          errors.ErrorType `json:"error_kind,omitempty"`
	Error              string           `json:"error,omitempty"`
}

// PlanView is the JSON form of a plan
type PlanView struct {
	EventName string        `json:"event_name"`
	DDay      string        `json:"dday"`
	Triggers  []TriggerView `json:"triggers"`
}

// View renders the plan for the preview endpoint
func (p *Plan) View() PlanView {
	view := PlanView{
		EventName: p.Event.Name,
		DDay:      p.Event.DDay(),
		Triggers:  make([]TriggerView, 0, len(p.Triggers)),
	}
	for _, t := range p.Triggers {
		tv := TriggerView{
			TriggerID:          t.Spec.ID,
			Offset:             t.Spec.Offset,
			FireAt:             t.Spec.FireAt,
			ScheduleExpression: t.Spec.ScheduleExpression(),
			Description:        t.Spec.Description(),
			Targets:            t.Rule.Targets,
			Payload:            t.Payload,
		}
		if t.Err != nil {
			tv.ErrorKind = errors.GetType(t.Err)
			tv.Error = t.Err.Error()
		}
		view.Triggers = append(view.Triggers, tv)
	}
	return view
}

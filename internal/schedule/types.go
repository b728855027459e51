// Package schedule turns one anchor event into a set of per-offset triggers,
// each fanning out to the downstream tasks configured for that offset.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// TaskName identifies a downstream capability
type TaskName string

const (
	TaskNotify  TaskName = "notify"
	TaskSurvey  TaskName = "survey"
	TaskMeeting TaskName = "meeting"
	TaskYoutube TaskName = "youtube"
)

// AnchorEvent is the event every offset is computed from.
// Date is a civil date at midnight in the configured location.
type AnchorEvent struct {
	Name string
	Date time.Time
}

// DDay returns the anchor date in YYYY-MM-DD form
func (e AnchorEvent) DDay() string {
	return e.Date.Format(DateLayout)
}

// Payload is the body delivered to every downstream task.
// Tasks must accept exactly these three fields.
type Payload struct {
	Offset    int    `json:"offset"`
	EventName string `json:"event_name"`
	DDay      string `json:"dday"`
}

// JSON renders the payload as a trigger target input
func (p Payload) JSON() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(data), nil
}

// TriggerSpec describes one time trigger derived from (event, offset)
type TriggerSpec struct {
	ID         string
	FireAt     time.Time
	Offset     int
	EventName  string
	AnchorDate time.Time
}

// ScheduleExpression is the one-shot cron expression for FireAt
func (s TriggerSpec) ScheduleExpression() string {
	return CronExpression(s.FireAt)
}

// Description reads like "D-7 trigger for 11th-Meetup"
func (s TriggerSpec) Description() string {
	return fmt.Sprintf("D%+d trigger for %s", s.Offset, s.EventName)
}

// TriggerHandle is returned by the registry once a trigger exists.
// ARN is what permission grants reference as their source.
type TriggerHandle struct {
	ID  string
	ARN string
}

// Endpoint is a resolved downstream task address (Lambda ARN, URL, ...)
type Endpoint struct {
	Task    TaskName
	Address string
}

// Invocation is one target bound to a trigger
type Invocation struct {
	Task    TaskName
	Address string
	Payload Payload
}

// Endpoint returns the invocation's resolved endpoint
func (i Invocation) Endpoint() Endpoint {
	return Endpoint{Task: i.Task, Address: i.Address}
}

// GrantStatus is the outcome of ensuring a task may be invoked by a trigger
type GrantStatus int

const (
	GrantFailed GrantStatus = iota
	Granted
	AlreadyGranted
)

func (s GrantStatus) String() string {
	switch s {
	case Granted:
		return "granted"
	case AlreadyGranted:
		return "already_granted"
	default:
		return "failed"
	}
}

// PermissionGrant identifies the single logical grant for a (task, trigger) pair
type PermissionGrant struct {
	Task        TaskName
	TriggerID   string
	StatementID string
}

// GrantOutcome is returned by a PermissionLedger. Err is set only for GrantFailed.
type GrantOutcome struct {
	Grant  PermissionGrant
	Status GrantStatus
	Err    error
}

// OK reports whether the task may now be invoked by the trigger
func (o GrantOutcome) OK() bool {
	return o.Status == Granted || o.Status == AlreadyGranted
}

// TriggerRegistry stores named one-shot triggers and their targets
type TriggerRegistry interface {
	// UpsertTrigger creates or replaces the trigger named spec.ID
	UpsertTrigger(ctx context.Context, spec TriggerSpec, enabled bool) (TriggerHandle, error)
	// SetTargets replaces the full target set bound to triggerID
	SetTargets(ctx context.Context, triggerID string, targets []Invocation) error
}

// PermissionLedger grants triggers the right to invoke downstream tasks.
// An existing grant is reported as AlreadyGranted, never as a failure.
type PermissionLedger interface {
	EnsureInvocationAllowed(ctx context.Context, endpoint Endpoint, trigger TriggerHandle) GrantOutcome
}

// EndpointResolver maps task names to downstream endpoints
type EndpointResolver interface {
	Resolve(ctx context.Context, task TaskName) (Endpoint, error)
}

// ResolverFunc adapts a function to EndpointResolver
type ResolverFunc func(ctx context.Context, task TaskName) (Endpoint, error)

func (f ResolverFunc) Resolve(ctx context.Context, task TaskName) (Endpoint, error) {
	return f(ctx, task)
}

// Locker serializes registrations of the same event across replicas
type Locker interface {
	Lock(ctx context.Context, key string) (func(context.Context) error, error)
}

// Reporter publishes a summary of each finished registration
type Reporter interface {
	Publish(ctx context.Context, result *Result) error
}

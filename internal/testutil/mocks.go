package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/schedule"
)

// FakeRegistry is an in-memory schedule.TriggerRegistry with the same
// replace semantics as the real backends.
type FakeRegistry struct {
	mu       sync.Mutex
	triggers map[string]schedule.TriggerSpec
	enabled  map[string]bool
	targets  map[string][]schedule.Invocation
	calls    map[string]int

	// ErrorOnMethod injects an error for every call of a method
	ErrorOnMethod map[string]error
	// ErrorOnTrigger injects an error for UpsertTrigger of one trigger id
	ErrorOnTrigger map[string]error
}

// NewFakeRegistry creates an empty registry
func NewFakeRegistry() *FakeRegistry {
	return &FakeRegistry{
		triggers:       make(map[string]schedule.TriggerSpec),
		enabled:        make(map[string]bool),
		targets:        make(map[string][]schedule.Invocation),
		calls:          make(map[string]int),
		ErrorOnMethod:  make(map[string]error),
		ErrorOnTrigger: make(map[string]error),
	}
}

func (r *FakeRegistry) UpsertTrigger(_ context.Context, spec schedule.TriggerSpec, enabled bool) (schedule.TriggerHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls["UpsertTrigger"]++
	if err := r.ErrorOnMethod["UpsertTrigger"]; err != nil {
		return schedule.TriggerHandle{}, err
	}
	if err := r.ErrorOnTrigger[spec.ID]; err != nil {
		return schedule.TriggerHandle{}, err
	}

	r.triggers[spec.ID] = spec
	r.enabled[spec.ID] = enabled
	return schedule.TriggerHandle{ID: spec.ID, ARN: "arn:fake:rule/" + spec.ID}, nil
}

func (r *FakeRegistry) SetTargets(_ context.Context, triggerID string, targets []schedule.Invocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls["SetTargets"]++
	if err := r.ErrorOnMethod["SetTargets"]; err != nil {
		return err
	}
	if _, ok := r.triggers[triggerID]; !ok {
		return errors.NotFoundError(fmt.Sprintf("trigger %s", triggerID), nil)
	}

	r.targets[triggerID] = append([]schedule.Invocation(nil), targets...)
	return nil
}

// Calls returns how many times method was called
func (r *FakeRegistry) Calls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

// TotalCalls returns the number of registry calls of any kind
func (r *FakeRegistry) TotalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.calls {
		total += n
	}
	return total
}

// Trigger returns a stored trigger
func (r *FakeRegistry) Trigger(id string) (schedule.TriggerSpec, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	spec, ok := r.triggers[id]
	return spec, ok
}

// TriggerIDs returns all stored trigger ids sorted
func (r *FakeRegistry) TriggerIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.triggers))
	for id := range r.triggers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Targets returns the invocations bound to a trigger
func (r *FakeRegistry) Targets(triggerID string) []schedule.Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schedule.Invocation(nil), r.targets[triggerID]...)
}

// TargetTasks returns the task names bound to a trigger, sorted
func (r *FakeRegistry) TargetTasks(triggerID string) []schedule.TaskName {
	targets := r.Targets(triggerID)
	tasks := make([]schedule.TaskName, 0, len(targets))
	for _, t := range targets {
		tasks = append(tasks, t.Task)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i] < tasks[j] })
	return tasks
}

// FakeLedger is an in-memory schedule.PermissionLedger keyed by
// (task, trigger id). A repeated grant is AlreadyGranted.
type FakeLedger struct {
	mu     sync.Mutex
	grants map[string]schedule.PermissionGrant
	calls  int

	// ErrorOnTask fails every grant for a task
	ErrorOnTask map[schedule.TaskName]error
}

// NewFakeLedger creates an empty ledger
func NewFakeLedger() *FakeLedger {
	return &FakeLedger{
		grants:      make(map[string]schedule.PermissionGrant),
		ErrorOnTask: make(map[schedule.TaskName]error),
	}
}

func (l *FakeLedger) EnsureInvocationAllowed(_ context.Context, endpoint schedule.Endpoint, trigger schedule.TriggerHandle) schedule.GrantOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	grant := schedule.PermissionGrant{
		Task:        endpoint.Task,
		TriggerID:   trigger.ID,
		StatementID: schedule.StatementID(endpoint.Task, trigger.ID),
	}

	if err := l.ErrorOnTask[endpoint.Task]; err != nil {
		return schedule.GrantOutcome{Grant: grant, Status: schedule.GrantFailed, Err: err}
	}

	if _, exists := l.grants[grant.StatementID]; exists {
		return schedule.GrantOutcome{Grant: grant, Status: schedule.AlreadyGranted}
	}
	l.grants[grant.StatementID] = grant
	return schedule.GrantOutcome{Grant: grant, Status: schedule.Granted}
}

// Grants returns the number of distinct grants held
func (l *FakeLedger) Grants() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.grants)
}

// Calls returns the number of EnsureInvocationAllowed calls
func (l *FakeLedger) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// FakeReporter records published results
type FakeReporter struct {
	mu      sync.Mutex
	Results []*schedule.Result
	Err     error
}

func (r *FakeReporter) Publish(_ context.Context, result *schedule.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Results = append(r.Results, result)
	return r.Err
}

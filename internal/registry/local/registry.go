// Package local implements the trigger registry and permission ledger on a
// SQLite store and fires due triggers from an in-process cron runner.
package local

import (
	"context"

	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/common/logging"
	"dday-scheduler/internal/schedule"
	"dday-scheduler/internal/storage/sqlite"
)

// ARNPrefix prefixes local trigger handles
const ARNPrefix = "local:rule/"

// Registry implements schedule.TriggerRegistry
type Registry struct {
	store  *sqlite.Store
	logger logging.Logger
}

// NewRegistry creates a local registry
func NewRegistry(store *sqlite.Store, logger logging.Logger) *Registry {
	return &Registry{store: store, logger: logging.OrGlobal(logger)}
}

func (r *Registry) UpsertTrigger(ctx context.Context, spec schedule.TriggerSpec, enabled bool) (schedule.TriggerHandle, error) {
	err := r.store.UpsertTrigger(ctx, sqlite.Trigger{
		ID:          spec.ID,
		EventName:   spec.EventName,
		Offset:      spec.Offset,
		AnchorDate:  spec.AnchorDate.Format(schedule.DateLayout),
		FireAt:      spec.FireAt,
		Schedule:    spec.ScheduleExpression(),
		Description: spec.Description(),
		Enabled:     enabled,
	})
	if err != nil {
		return schedule.TriggerHandle{}, errors.RegistryUnavailable("UpsertTrigger", err)
	}
	return schedule.TriggerHandle{ID: spec.ID, ARN: ARNPrefix + spec.ID}, nil
}

func (r *Registry) SetTargets(ctx context.Context, triggerID string, targets []schedule.Invocation) error {
	rows := make([]sqlite.Target, 0, len(targets))
	for _, target := range targets {
		input, err := target.Payload.JSON()
		if err != nil {
			return errors.InternalError("encode target input", err)
		}
		rows = append(rows, sqlite.Target{
			TriggerID: triggerID,
			Task:      string(target.Task),
			Address:   target.Address,
			Input:     input,
		})
	}

	if err := r.store.ReplaceTargets(ctx, triggerID, rows); err != nil {
		if errors.IsType(err, errors.ErrTypeNotFound) {
			return err
		}
		return errors.RegistryUnavailable("SetTargets", err)
	}
	return nil
}

// Ledger implements schedule.PermissionLedger over the grants table
type Ledger struct {
	store  *sqlite.Store
	logger logging.Logger
}

// NewLedger creates a local ledger
func NewLedger(store *sqlite.Store, logger logging.Logger) *Ledger {
	return &Ledger{store: store, logger: logging.OrGlobal(logger)}
}

func (l *Ledger) EnsureInvocationAllowed(ctx context.Context, endpoint schedule.Endpoint, trigger schedule.TriggerHandle) schedule.GrantOutcome {
	grant := schedule.PermissionGrant{
		Task:        endpoint.Task,
		TriggerID:   trigger.ID,
		StatementID: schedule.StatementID(endpoint.Task, trigger.ID),
	}

	inserted, err := l.store.InsertGrant(ctx, sqlite.Grant{
		Task:        string(endpoint.Task),
		TriggerID:   trigger.ID,
		StatementID: grant.StatementID,
		SourceARN:   trigger.ARN,
	})
	if err != nil {
		return schedule.GrantOutcome{Grant: grant, Status: schedule.GrantFailed, Err: errors.RegistryUnavailable("InsertGrant", err)}
	}
	if !inserted {
		return schedule.GrantOutcome{Grant: grant, Status: schedule.AlreadyGranted}
	}
	return schedule.GrantOutcome{Grant: grant, Status: schedule.Granted}
}

package schedule

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/common/logging"
	"golang.org/x/sync/errgroup"
)

// PlannerConfig controls trigger naming and timing
type PlannerConfig struct {
	RulePrefix string
	FireTime   TimeOfDay
	Location   *time.Location
	// Workers bounds how many offsets are registered concurrently
	Workers int
}

// DefaultPlannerConfig fires at 09:00 Asia/Seoul under the workflow-lang prefix
func DefaultPlannerConfig() PlannerConfig {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		loc = time.FixedZone("KST", 9*60*60)
	}
	return PlannerConfig{
		RulePrefix: "workflow-lang",
		FireTime:   DefaultFireTime,
		Location:   loc,
		Workers:    4,
	}
}

// PlannedTrigger is one offset worked out without touching any backend.
// Err is set when a target could not be resolved.
type PlannedTrigger struct {
	Spec        TriggerSpec
	Rule        OffsetRule
	Payload     Payload
	Invocations []Invocation
	Err         error
}

// Plan holds one PlannedTrigger per table offset, in table order
type Plan struct {
	Event    AnchorEvent
	Triggers []PlannedTrigger
}

// Planner maps an anchor event onto the offset table and applies the
// result to a trigger registry and permission ledger.
type Planner struct {
	table    Table
	resolver EndpointResolver
	registry TriggerRegistry
	ledger   PermissionLedger
	config   PlannerConfig
	logger   logging.Logger
}

// NewPlanner validates the table. With a StaticResolver every task must
// resolve up front; dynamic resolvers are checked per offset.
func NewPlanner(table Table, resolver EndpointResolver, registry TriggerRegistry, ledger PermissionLedger, config PlannerConfig, logger logging.Logger) (*Planner, error) {
	if resolver == nil || registry == nil || ledger == nil {
		return nil, errors.ConfigError("planner requires a resolver, a trigger registry and a permission ledger")
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if static, ok := resolver.(StaticResolver); ok {
		if err := ValidateTargets(context.Background(), static, table); err != nil {
			return nil, err
		}
	}

	defaults := DefaultPlannerConfig()
	if config.RulePrefix == "" {
		config.RulePrefix = defaults.RulePrefix
	}
	if config.Location == nil {
		config.Location = defaults.Location
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}

	return &Planner{
		table:    table,
		resolver: resolver,
		registry: registry,
		ledger:   ledger,
		config:   config,
		logger:   logging.OrGlobal(logger),
	}, nil
}

// Location is the civil timezone anchor dates are interpreted in
func (p *Planner) Location() *time.Location {
	return p.config.Location
}

// Table returns the offset table
func (p *Planner) Table() Table {
	return p.table
}

// Plan computes every trigger for event. It has no side effects beyond
// endpoint resolution.
func (p *Planner) Plan(ctx context.Context, event AnchorEvent) *Plan {
	plan := &Plan{
		Event:    event,
		Triggers: make([]PlannedTrigger, 0, len(p.table)),
	}

	for _, rule := range p.table {
		spec := TriggerSpec{
			ID:         TriggerID(p.config.RulePrefix, event.Name, rule.Offset),
			FireAt:     FireInstant(event.Date, rule.Offset, p.config.FireTime, p.config.Location),
			Offset:     rule.Offset,
			EventName:  event.Name,
			AnchorDate: event.Date,
		}
		payload := Payload{
			Offset:    rule.Offset,
			EventName: event.Name,
			DDay:      event.DDay(),
		}

		planned := PlannedTrigger{Spec: spec, Rule: rule, Payload: payload}

		var resolveErrs []error
		for _, task := range rule.Targets {
			endpoint, err := p.resolver.Resolve(ctx, task)
			if err != nil {
				resolveErrs = append(resolveErrs, err)
				continue
			}
			planned.Invocations = append(planned.Invocations, Invocation{
				Task:    task,
				Address: endpoint.Address,
				Payload: payload,
			})
		}
		planned.Err = stderrors.Join(resolveErrs...)

		plan.Triggers = append(plan.Triggers, planned)
	}

	return plan
}

// Apply registers every planned trigger. Offsets are independent: a failure
// is recorded on its OffsetResult and never stops the others.
func (p *Planner) Apply(ctx context.Context, plan *Plan) *Result {
	result := &Result{
		Event:   plan.Event,
		Offsets: make([]OffsetResult, len(plan.Triggers)),
	}

	var g errgroup.Group
	g.SetLimit(p.config.Workers)

	for i := range plan.Triggers {
		g.Go(func() error {
			result.Offsets[i] = p.applyOne(ctx, plan.Triggers[i])
			return nil
		})
	}
	_ = g.Wait()

	return result
}

// Register plans and applies event
func (p *Planner) Register(ctx context.Context, event AnchorEvent) *Result {
	return p.Apply(ctx, p.Plan(ctx, event))
}

func (p *Planner) applyOne(ctx context.Context, planned PlannedTrigger) OffsetResult {
	spec := planned.Spec
	res := OffsetResult{
		Offset:    spec.Offset,
		TriggerID: spec.ID,
		FireAt:    spec.FireAt,
		Targets:   planned.Rule.Targets,
	}
	logger := p.logger.WithContext(ctx).WithFields(
		logging.String("trigger_id", spec.ID),
		logging.Int("offset", spec.Offset),
	)

	// unresolvable targets are a configuration bug; touch nothing
	if planned.Err != nil {
		res.Err = planned.Err
		logger.Error("Offset has unresolvable targets", planned.Err)
		return res
	}

	handle, err := p.registry.UpsertTrigger(ctx, spec, true)
	if err != nil {
		res.Err = fmt.Errorf("upsert trigger %s: %w", spec.ID, err)
		logger.Error("Failed to upsert trigger", err)
		return res
	}

	permitted := make([]Invocation, 0, len(planned.Invocations))
	var grantErrs []error
	for _, invocation := range planned.Invocations {
		outcome := p.ledger.EnsureInvocationAllowed(ctx, invocation.Endpoint(), handle)
		res.Grants = append(res.Grants, outcome)

		if !outcome.OK() {
			grantErr := outcome.Err
			if grantErr == nil {
				grantErr = errors.InternalError("permission grant failed", nil)
			}
			grantErrs = append(grantErrs, fmt.Errorf("grant %s: %w", invocation.Task, grantErr))
			logger.Error("Failed to grant invoke permission", grantErr, logging.String("task", string(invocation.Task)))
			continue
		}
		logger.Debug("Invoke permission ensured",
			logging.String("task", string(invocation.Task)),
			logging.String("status", outcome.Status.String()),
		)
		permitted = append(permitted, invocation)
	}

	// bind the permitted targets even when a grant failed so a re-run only
	// has the failed grants left to fix
	if err := p.registry.SetTargets(ctx, handle.ID, permitted); err != nil {
		res.Err = stderrors.Join(append(grantErrs, fmt.Errorf("set targets %s: %w", spec.ID, err))...)
		logger.Error("Failed to set trigger targets", err)
		return res
	}
	for _, invocation := range permitted {
		res.Bound = append(res.Bound, invocation.Task)
	}

	if len(grantErrs) > 0 {
		res.Err = stderrors.Join(grantErrs...)
		return res
	}

	logger.Info("Trigger registered",
		logging.String("fire_at", spec.FireAt.Format(time.RFC3339)),
		logging.Int("targets", len(res.Bound)),
	)
	return res
}

// Package eventbridge stores anchor triggers as one-shot EventBridge rules
// whose targets are the downstream Lambda functions.
package eventbridge

import (
	"context"
	"fmt"
	"sort"

	"dday-scheduler/internal/awsclient"
	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/common/logging"
	"dday-scheduler/internal/schedule"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
)

// maxTargetsPerCall is the PutTargets batch limit
const maxTargetsPerCall = 10

// API is the subset of the EventBridge client the registry uses
type API interface {
	PutRule(ctx context.Context, params *eventbridge.PutRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutRuleOutput, error)
	PutTargets(ctx context.Context, params *eventbridge.PutTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutTargetsOutput, error)
	ListTargetsByRule(ctx context.Context, params *eventbridge.ListTargetsByRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.ListTargetsByRuleOutput, error)
	RemoveTargets(ctx context.Context, params *eventbridge.RemoveTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.RemoveTargetsOutput, error)
}

// Registry implements schedule.TriggerRegistry
type Registry struct {
	client  API
	busName string
	invoker *awsclient.Invoker
	logger  logging.Logger
}

// NewRegistry creates a registry on busName ("" means the default bus)
func NewRegistry(client API, busName string, invoker *awsclient.Invoker, logger logging.Logger) *Registry {
	return &Registry{
		client:  client,
		busName: busName,
		invoker: invoker,
		logger:  logging.OrGlobal(logger),
	}
}

func (r *Registry) bus() *string {
	if r.busName == "" {
		return nil
	}
	return aws.String(r.busName)
}

// UpsertTrigger creates or replaces the rule named spec.ID.
// PutRule is itself create-or-update, so re-running converges.
func (r *Registry) UpsertTrigger(ctx context.Context, spec schedule.TriggerSpec, enabled bool) (schedule.TriggerHandle, error) {
	state := types.RuleStateEnabled
	if !enabled {
		state = types.RuleStateDisabled
	}

	input := &eventbridge.PutRuleInput{
		Name:               aws.String(spec.ID),
		ScheduleExpression: aws.String(spec.ScheduleExpression()),
		State:              state,
		Description:        aws.String(spec.Description()),
		EventBusName:       r.bus(),
	}

	var out *eventbridge.PutRuleOutput
	err := r.invoker.Do(ctx, "PutRule", func(ctx context.Context) error {
		var err error
		out, err = r.client.PutRule(ctx, input)
		return err
	})
	if err != nil {
		return schedule.TriggerHandle{}, err
	}

	r.logger.WithContext(ctx).Debug("Rule upserted",
		logging.String("rule", spec.ID),
		logging.String("schedule", spec.ScheduleExpression()),
	)

	return schedule.TriggerHandle{ID: spec.ID, ARN: aws.ToString(out.RuleArn)}, nil
}

// SetTargets puts every desired target, then removes targets that are no
// longer configured. Entries EventBridge refuses are reported as
// registry_rejected naming each failed target.
func (r *Registry) SetTargets(ctx context.Context, triggerID string, targets []schedule.Invocation) error {
	desired := make(map[string]struct{}, len(targets))
	entries := make([]types.Target, 0, len(targets))
	for _, target := range targets {
		input, err := target.Payload.JSON()
		if err != nil {
			return errors.InternalError("encode target input", err)
		}
		desired[string(target.Task)] = struct{}{}
		entries = append(entries, types.Target{
			Id:    aws.String(string(target.Task)),
			Arn:   aws.String(target.Address),
			Input: aws.String(input),
		})
	}

	for start := 0; start < len(entries); start += maxTargetsPerCall {
		end := min(start+maxTargetsPerCall, len(entries))
		if err := r.putTargets(ctx, triggerID, entries[start:end]); err != nil {
			return err
		}
	}

	existing, err := r.listTargetIDs(ctx, triggerID)
	if err != nil {
		return err
	}

	var stale []string
	for _, id := range existing {
		if _, ok := desired[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	sort.Strings(stale)
	return r.removeTargets(ctx, triggerID, stale)
}

func (r *Registry) putTargets(ctx context.Context, triggerID string, entries []types.Target) error {
	var out *eventbridge.PutTargetsOutput
	err := r.invoker.Do(ctx, "PutTargets", func(ctx context.Context) error {
		var err error
		out, err = r.client.PutTargets(ctx, &eventbridge.PutTargetsInput{
			Rule:         aws.String(triggerID),
			Targets:      entries,
			EventBusName: r.bus(),
		})
		return err
	})
	if err != nil {
		return err
	}

	if out.FailedEntryCount > 0 {
		failed := make([]string, 0, len(out.FailedEntries))
		for _, entry := range out.FailedEntries {
			failed = append(failed, fmt.Sprintf("%s (%s)", aws.ToString(entry.TargetId), aws.ToString(entry.ErrorCode)))
		}
		return errors.RegistryRejected("PutTargets", failed).WithContext("rule", triggerID)
	}
	return nil
}

func (r *Registry) listTargetIDs(ctx context.Context, triggerID string) ([]string, error) {
	var ids []string
	var nextToken *string

	for {
		var out *eventbridge.ListTargetsByRuleOutput
		err := r.invoker.Do(ctx, "ListTargetsByRule", func(ctx context.Context) error {
			var err error
			out, err = r.client.ListTargetsByRule(ctx, &eventbridge.ListTargetsByRuleInput{
				Rule:         aws.String(triggerID),
				EventBusName: r.bus(),
				NextToken:    nextToken,
			})
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, target := range out.Targets {
			ids = append(ids, aws.ToString(target.Id))
		}

		if out.NextToken == nil || aws.ToString(out.NextToken) == "" {
			return ids, nil
		}
		nextToken = out.NextToken
	}
}

func (r *Registry) removeTargets(ctx context.Context, triggerID string, ids []string) error {
	var out *eventbridge.RemoveTargetsOutput
	err := r.invoker.Do(ctx, "RemoveTargets", func(ctx context.Context) error {
		var err error
		out, err = r.client.RemoveTargets(ctx, &eventbridge.RemoveTargetsInput{
			Rule:         aws.String(triggerID),
			Ids:          ids,
			EventBusName: r.bus(),
		})
		return err
	})
	if err != nil {
		return err
	}

	if out.FailedEntryCount > 0 {
		failed := make([]string, 0, len(out.FailedEntries))
		for _, entry := range out.FailedEntries {
			failed = append(failed, fmt.Sprintf("%s (%s)", aws.ToString(entry.TargetId), aws.ToString(entry.ErrorCode)))
		}
		return errors.RegistryRejected("RemoveTargets", failed).WithContext("rule", triggerID)
	}

	r.logger.WithContext(ctx).Info("Removed stale targets",
		logging.String("rule", triggerID),
		logging.Strings("targets", ids),
	)
	return nil
}

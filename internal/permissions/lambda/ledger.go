// Package lambda grants EventBridge rules permission to invoke the
// downstream task functions and resolves task names to function ARNs.
package lambda

import (
	"context"
	stderrors "errors"
	"strings"

	"dday-scheduler/internal/awsclient"
	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/common/logging"
	"dday-scheduler/internal/schedule"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

const (
	invokeAction    = "lambda:InvokeFunction"
	eventsPrincipal = "events.amazonaws.com"
)

// API is the subset of the Lambda client used here
type API interface {
	AddPermission(ctx context.Context, params *lambda.AddPermissionInput, optFns ...func(*lambda.Options)) (*lambda.AddPermissionOutput, error)
	GetFunction(ctx context.Context, params *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
}

// Ledger implements schedule.PermissionLedger with resource policy statements
type Ledger struct {
	client  API
	invoker *awsclient.Invoker
	logger  logging.Logger
}

// NewLedger creates a ledger
func NewLedger(client API, invoker *awsclient.Invoker, logger logging.Logger) *Ledger {
	return &Ledger{
		client:  client,
		invoker: invoker,
		logger:  logging.OrGlobal(logger),
	}
}

// EnsureInvocationAllowed adds a statement letting trigger invoke endpoint.
// The statement id is derived from (task, trigger) so a repeat call hits
// the existing statement and reports AlreadyGranted.
func (l *Ledger) EnsureInvocationAllowed(ctx context.Context, endpoint schedule.Endpoint, trigger schedule.TriggerHandle) schedule.GrantOutcome {
	grant := schedule.PermissionGrant{
		Task:        endpoint.Task,
		TriggerID:   trigger.ID,
		StatementID: schedule.StatementID(endpoint.Task, trigger.ID),
	}

	input := &lambda.AddPermissionInput{
		FunctionName: aws.String(endpoint.Address),
		StatementId:  aws.String(grant.StatementID),
		Action:       aws.String(invokeAction),
		Principal:    aws.String(eventsPrincipal),
		SourceArn:    aws.String(trigger.ARN),
	}

	err := l.invoker.Do(ctx, "AddPermission", func(ctx context.Context) error {
		_, err := l.client.AddPermission(ctx, input)
		return translate(grant, err)
	})

	switch {
	case err == nil:
		l.logger.WithContext(ctx).Debug("Permission granted",
			logging.String("task", string(grant.Task)),
			logging.String("statement_id", grant.StatementID),
		)
		return schedule.GrantOutcome{Grant: grant, Status: schedule.Granted}
	case errors.IsType(err, errors.ErrTypePermissionConflict):
		return schedule.GrantOutcome{Grant: grant, Status: schedule.AlreadyGranted}
	default:
		return schedule.GrantOutcome{Grant: grant, Status: schedule.GrantFailed, Err: err}
	}
}

// translate turns the Lambda specific exceptions into application errors
// before generic classification runs.
func translate(grant schedule.PermissionGrant, err error) error {
	if err == nil {
		return nil
	}

	var conflict *types.ResourceConflictException
	if stderrors.As(err, &conflict) {
		// The same exception is raised while a function update is in progress
		if strings.Contains(strings.ToLower(conflict.ErrorMessage()), "already exists") {
			return errors.PermissionConflict(grant.StatementID, err)
		}
		return errors.RegistryUnavailable("AddPermission", err).WithCode(conflict.ErrorCode())
	}

	var missing *types.ResourceNotFoundException
	if stderrors.As(err, &missing) {
		return errors.UnknownTask(string(grant.Task), err)
	}

	return err
}

package schedule

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"dday-scheduler/internal/common/errors"
)

// StaticResolver resolves tasks from a fixed address table
type StaticResolver map[TaskName]string

// Resolve returns UnknownTask for names missing from the table
func (r StaticResolver) Resolve(_ context.Context, task TaskName) (Endpoint, error) {
	address, ok := r[task]
	if !ok || address == "" {
		return Endpoint{}, errors.UnknownTask(string(task), nil)
	}
	return Endpoint{Task: task, Address: address}, nil
}

// FunctionName is the default downstream function for task, e.g. workflow-lang-notify
func FunctionName(prefix string, task TaskName) string {
	return fmt.Sprintf("%s-%s", prefix, task)
}

// LambdaARN builds a function ARN from its parts
func LambdaARN(region, accountID, function string) string {
	return fmt.Sprintf("arn:aws:lambda:%s:%s:function:%s", region, accountID, function)
}

// NewLambdaARNResolver resolves every task in tasks to a Lambda ARN. overrides
// may map a task to a function name or a full ARN; other tasks use FunctionName.
func NewLambdaARNResolver(region, accountID, prefix string, tasks []TaskName, overrides map[TaskName]string) StaticResolver {
	resolver := make(StaticResolver, len(tasks))
	for _, task := range tasks {
		function := FunctionName(prefix, task)
		if override, ok := overrides[task]; ok && override != "" {
			function = override
		}
		if strings.HasPrefix(function, "arn:") {
			resolver[task] = function
			continue
		}
		resolver[task] = LambdaARN(region, accountID, function)
	}
	return resolver
}

// ValidateTargets resolves every task the table references and
// returns all failures joined.
func ValidateTargets(ctx context.Context, resolver EndpointResolver, table Table) error {
	var errs []error
	for _, task := range table.Tasks() {
		if _, err := resolver.Resolve(ctx, task); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

package lambda

import (
	"context"
	stderrors "errors"
	"sync"

	"dday-scheduler/internal/awsclient"
	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/schedule"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// FunctionResolver resolves task names by looking the function up, so a
// task whose function was never deployed fails before any rule exists.
type FunctionResolver struct {
	client  API
	invoker *awsclient.Invoker
	names   map[schedule.TaskName]string

	mu    sync.Mutex
	cache map[schedule.TaskName]string
}

// NewFunctionResolver maps each task to a function name: the override if one
// is given, prefix-task otherwise.
func NewFunctionResolver(client API, invoker *awsclient.Invoker, prefix string, tasks []schedule.TaskName, overrides map[schedule.TaskName]string) *FunctionResolver {
	names := make(map[schedule.TaskName]string, len(tasks)+len(overrides))
	for _, task := range tasks {
		names[task] = schedule.FunctionName(prefix, task)
	}
	for task, name := range overrides {
		names[task] = name
	}

	return &FunctionResolver{
		client:  client,
		invoker: invoker,
		names:   names,
		cache:   make(map[schedule.TaskName]string),
	}
}

// Resolve implements schedule.EndpointResolver
func (r *FunctionResolver) Resolve(ctx context.Context, task schedule.TaskName) (schedule.Endpoint, error) {
	name, ok := r.names[task]
	if !ok {
		return schedule.Endpoint{}, errors.UnknownTask(string(task), nil)
	}

	r.mu.Lock()
	arn, cached := r.cache[task]
	r.mu.Unlock()
	if cached {
		return schedule.Endpoint{Task: task, Address: arn}, nil
	}

	var out *lambda.GetFunctionOutput
	err := r.invoker.Do(ctx, "GetFunction", func(ctx context.Context) error {
		var err error
		out, err = r.client.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(name)})
		var missing *types.ResourceNotFoundException
		if stderrors.As(err, &missing) {
			return errors.UnknownTask(string(task), err).WithContext("function", name)
		}
		return err
	})
	if err != nil {
		return schedule.Endpoint{}, err
	}
	if out.Configuration == nil || out.Configuration.FunctionArn == nil {
		return schedule.Endpoint{}, errors.UnknownTask(string(task), nil).WithContext("function", name)
	}

	arn = aws.ToString(out.Configuration.FunctionArn)
	r.mu.Lock()
	r.cache[task] = arn
	r.mu.Unlock()

	return schedule.Endpoint{Task: task, Address: arn}, nil
}

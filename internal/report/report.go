// Package report publishes a summary of every finished registration.
package report

import (
	"context"
	"encoding/json"
	"strconv"

	"dday-scheduler/internal/awsclient"
	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/common/logging"
	"dday-scheduler/internal/schedule"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the subset of the SNS client used for reports
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSReporter publishes registration summaries to a topic
type SNSReporter struct {
	client   SNSAPI
	topicARN string
	invoker  *awsclient.Invoker
	logger   logging.Logger
}

// NewSNSReporter creates an SNSReporter
func NewSNSReporter(client SNSAPI, topicARN string, invoker *awsclient.Invoker, logger logging.Logger) *SNSReporter {
	return &SNSReporter{
		client:   client,
		topicARN: topicARN,
		invoker:  invoker,
		logger:   logging.OrGlobal(logger),
	}
}

// Publish sends the result summary as JSON. Message attributes carry the
// event name and outcome so subscribers can filter on failures.
func (r *SNSReporter) Publish(ctx context.Context, result *schedule.Result) error {
	summary := result.Summary()
	body, err := json.Marshal(summary)
	if err != nil {
		return errors.InternalError("encode registration summary", err)
	}

	outcome := "success"
	if len(summary.Failures) > 0 {
		outcome = "partial_failure"
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(r.topicARN),
		Subject:  aws.String("D-day registration: " + summary.EventName),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snsTypes.MessageAttributeValue{
			"event_name": {DataType: aws.String("String"), StringValue: aws.String(summary.EventName)},
			"outcome":    {DataType: aws.String("String"), StringValue: aws.String(outcome)},
			"failures":   {DataType: aws.String("Number"), StringValue: aws.String(strconv.Itoa(len(summary.Failures)))},
		},
	}

	var out *sns.PublishOutput
	err = r.invoker.Do(ctx, "Publish", func(ctx context.Context) error {
		var err error
		out, err = r.client.Publish(ctx, input)
		return err
	})
	if err != nil {
		return err
	}

	r.logger.WithContext(ctx).Info("Registration report published",
		logging.String("message_id", aws.ToString(out.MessageId)),
		logging.String("topic_arn", r.topicARN),
	)
	return nil
}

// LogReporter writes the summary to the log
type LogReporter struct {
	logger logging.Logger
}

// NewLogReporter creates a LogReporter
func NewLogReporter(logger logging.Logger) *LogReporter {
	return &LogReporter{logger: logging.OrGlobal(logger)}
}

func (r *LogReporter) Publish(ctx context.Context, result *schedule.Result) error {
	summary := result.Summary()
	r.logger.WithContext(ctx).Info("Registration report",
		logging.String("dday", summary.DDay),
		logging.Strings("rules", summary.Rules),
		logging.Int("failures", len(summary.Failures)),
	)
	return nil
}

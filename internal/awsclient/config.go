// Package awsclient loads AWS configuration and wraps control plane calls
// with timeouts, rate limiting, retries and a circuit breaker.
package awsclient

import (
	"context"

	"dday-scheduler/internal/common/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Config selects the region and, optionally, static credentials.
// Without static credentials the default chain (env, profile, role) is used.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// LoadConfig builds an aws.Config
func LoadConfig(ctx context.Context, config Config) (aws.Config, error) {
	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(config.Region),
		// Invoker owns retries; the SDK makes a single attempt per call
		awsConfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, config.SessionToken),
		))
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.ConfigError("failed to load AWS config").WithContext("error", err.Error())
	}
	return cfg, nil
}

package awsclient

import (
	"context"
	"time"

	"dday-scheduler/internal/circuitbreaker"
	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/common/logging"
	"dday-scheduler/internal/common/utils"
	"golang.org/x/time/rate"
)

// InvokerConfig configures an Invoker
type InvokerConfig struct {
	// Name labels the breaker and log lines, e.g. "eventbridge"
	Name string
	// Timeout bounds each attempt
	Timeout time.Duration
	// RPS caps calls per second across all goroutines; 0 disables the limit
	RPS   int
	Retry utils.RetryConfig
}

// Invoker runs control plane calls under a per-attempt timeout, a shared
// rate limit, transient-only retries and a circuit breaker.
type Invoker struct {
	name    string
	timeout time.Duration
	limiter *rate.Limiter
	breaker *circuitbreaker.GoBreakerAdapter
	retry   utils.RetryConfig
	logger  logging.Logger
}

// NewInvoker creates an Invoker
func NewInvoker(config InvokerConfig, logger logging.Logger) *Invoker {
	logger = logging.OrGlobal(logger)

	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = utils.RegistryRetryConfig()
	}

	var limiter *rate.Limiter
	if config.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RPS), config.RPS)
	}

	inv := &Invoker{
		name:    config.Name,
		timeout: config.Timeout,
		limiter: limiter,
		breaker: circuitbreaker.NewGoBreaker(config.Name, circuitbreaker.RegistryConfig, logger),
		retry:   config.Retry,
		logger:  logger,
	}
	inv.retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		inv.logger.Warn("Retrying registry call",
			logging.String("backend", inv.name),
			logging.Int("attempt", attempt),
			logging.Any("delay", delay.String()),
			logging.Err(err),
		)
	}
	return inv
}

// Do runs fn for operation. fn receives a context bounded by the attempt timeout.
// Errors returned are classified AppErrors.
func (i *Invoker) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	return utils.RetryWithBackoff(ctx, i.retry, func() error {
		if i.limiter != nil {
			if err := i.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return Classify(operation, ctx.Err())
				}
				return errors.RateLimitError(i.name).WithContext("operation", operation)
			}
		}

		return i.breaker.Execute(ctx, func() error {
			callCtx, cancel := context.WithTimeout(ctx, i.timeout)
			defer cancel()
			return Classify(operation, fn(callCtx))
		})
	})
}

// Breaker exposes the breaker for health reporting
func (i *Invoker) Breaker() *circuitbreaker.GoBreakerAdapter {
	return i.breaker
}

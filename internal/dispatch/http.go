package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/common/logging"
	"dday-scheduler/internal/common/utils"
)

// ClientConfig holds HTTP dispatcher configuration
type ClientConfig struct {
	Timeout   time.Duration
	Retry     utils.RetryConfig
	Transport http.RoundTripper
	UserAgent string
}

// DefaultClientConfig returns default HTTP dispatcher configuration
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:   15 * time.Second,
		Retry:     utils.RegistryRetryConfig(),
		UserAgent: "dday-scheduler",
	}
}

// ClientOption modifies ClientConfig
type ClientOption func(*ClientConfig)

// WithTimeout sets the per request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithRetry sets the retry policy
func WithRetry(retry utils.RetryConfig) ClientOption {
	return func(c *ClientConfig) {
		c.Retry = retry
	}
}

// WithTransport sets the HTTP transport
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *ClientConfig) {
		c.Transport = transport
	}
}

// HTTPDispatcher POSTs the trigger input as JSON to the task address
type HTTPDispatcher struct {
	client    *http.Client
	retry     utils.RetryConfig
	userAgent string
	logger    logging.Logger
}

// NewHTTPDispatcher creates an HTTPDispatcher
func NewHTTPDispatcher(logger logging.Logger, opts ...ClientOption) *HTTPDispatcher {
	cfg := DefaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &HTTPDispatcher{
		client:    &http.Client{Timeout: cfg.Timeout, Transport: transport},
		retry:     cfg.Retry,
		userAgent: cfg.UserAgent,
		logger:    logging.OrGlobal(logger),
	}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, req Request) error {
	start := time.Now()

	err := utils.RetryWithBackoff(ctx, d.retry, func() error {
		return d.post(ctx, req)
	})

	log := d.logger.WithContext(ctx).WithFields(
		logging.String("trigger_id", req.TriggerID),
		logging.String("task", req.Task),
		logging.Since(start),
	)
	if err != nil {
		log.Error("Trigger delivery failed", err)
		return err
	}
	log.Info("Trigger delivered")
	return nil
}

func (d *HTTPDispatcher) post(ctx context.Context, req Request) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Address, bytes.NewReader(req.Input))
	if err != nil {
		return errors.ValidationError(fmt.Sprintf("invalid task address %q", req.Address))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", d.userAgent)
	httpReq.Header.Set("X-Trigger-Id", req.TriggerID)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return errors.TimeoutError("dispatch "+req.Task, err)
		}
		return errors.RegistryUnavailable("dispatch "+req.Task, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.RateLimitError(req.Address)
	case resp.StatusCode >= 500:
		return errors.RegistryUnavailable("dispatch "+req.Task, nil).WithCode(fmt.Sprintf("http_%d", resp.StatusCode))
	default:
		return errors.RegistryRejected("dispatch", []string{fmt.Sprintf("%s (%d)", req.Task, resp.StatusCode)})
	}
}

package schedule

import (
	"context"

	"dday-scheduler/internal/common/logging"
)

// Engine validates registration requests and drives the planner
type Engine struct {
	planner  *Planner
	locker   Locker
	reporter Reporter
	logger   logging.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithLocker serializes registrations of the same event
func WithLocker(locker Locker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithReporter publishes a summary after every registration
func WithReporter(reporter Reporter) Option {
	return func(e *Engine) {
		e.reporter = reporter
	}
}

// WithLogger sets the engine logger
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine around planner
func NewEngine(planner *Planner, opts ...Option) *Engine {
	e := &Engine{planner: planner}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrGlobal(e.logger)
	return e
}

// Anchor validates issue and derives its anchor event
func (e *Engine) Anchor(issue Issue) (AnchorEvent, error) {
	date, err := ParseAnchorDate(issue.Body, e.planner.Location())
	if err != nil {
		return AnchorEvent{}, err
	}
	return AnchorEvent{Name: EventName(issue.Title), Date: date}, nil
}

// Register validates issue and registers every offset trigger.
//
// Validation and lock errors are returned before any backend is touched.
// Otherwise the result is always returned; per-offset failures are in
// Result.Err.
func (e *Engine) Register(ctx context.Context, issue Issue) (*Result, error) {
	event, err := e.Anchor(issue)
	if err != nil {
		e.logger.WithContext(ctx).Warn("Rejected registration", logging.Err(err), logging.String("title", issue.Title))
		return nil, err
	}

	ctx = logging.ContextWithEventName(ctx, event.Name)
	logger := e.logger.WithContext(ctx)

	if e.locker != nil {
		unlock, err := e.locker.Lock(ctx, "register:"+event.Name)
		if err != nil {
			logger.Warn("Registration already in progress", logging.Err(err))
			return nil, err
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("Failed to release registration lock", logging.Err(err))
			}
		}()
	}

	logger.Info("Registering anchor event",
		logging.String("dday", event.DDay()),
		logging.Int("offsets", len(e.planner.Table())),
	)

	result := e.planner.Register(ctx, event)

	if err := result.Err(); err != nil {
		logger.Error("Registration finished with failures", err, logging.Strings("rules", result.Rules()))
	} else {
		logger.Info("Registration finished", logging.Strings("rules", result.Rules()))
	}

	if e.reporter != nil {
		if err := e.reporter.Publish(ctx, result); err != nil {
			logger.Warn("Failed to publish registration report", logging.Err(err))
		}
	}

	return result, nil
}

// Preview validates issue and returns the plan without registering anything
func (e *Engine) Preview(ctx context.Context, issue Issue) (*Plan, error) {
	event, err := e.Anchor(issue)
	if err != nil {
		return nil, err
	}
	return e.planner.Plan(ctx, event), nil
}

package local

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/common/logging"
	"dday-scheduler/internal/dispatch"
	"dday-scheduler/internal/schedule"
	"dday-scheduler/internal/storage/sqlite"
	"github.com/robfig/cron/v3"
)

const runnerLockKey = "local-runner"

// Runner polls the store and delivers every due trigger exactly once per
// fire instant. Only tasks holding a grant for the trigger are invoked.
type Runner struct {
	store      *sqlite.Store
	dispatcher dispatch.Dispatcher
	locker     schedule.Locker
	interval   time.Duration
	now        func() time.Time
	logger     logging.Logger

	mu sync.Mutex
	c  *cron.Cron
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithLocker serializes polls across replicas sharing a database
func WithLocker(locker schedule.Locker) RunnerOption {
	return func(r *Runner) {
		r.locker = locker
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a runner polling every interval
func NewRunner(store *sqlite.Store, dispatcher dispatch.Dispatcher, interval time.Duration, logger logging.Logger, opts ...RunnerOption) *Runner {
	if interval <= 0 {
		interval = time.Minute
	}
	r := &Runner{
		store:      store,
		dispatcher: dispatcher,
		interval:   interval,
		now:        time.Now,
		logger:     logging.OrGlobal(logger),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start schedules polling. It is a no-op when already started.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return nil
	}

	cronLog := cronLogger{r.logger}
	c := cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)), cron.WithLogger(cronLog))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", r.interval), func() {
		if _, err := r.FireDue(ctx); err != nil {
			r.logger.Error("Local trigger poll failed", err)
		}
	}); err != nil {
		return errors.ConfigError(fmt.Sprintf("invalid poll interval %s", r.interval)).WithContext("cause", err.Error())
	}

	c.Start()
	r.c = c
	r.logger.Info("Local trigger runner started", logging.Any("interval", r.interval.String()))
	return nil
}

// Stop waits for a running poll to finish or ctx to expire
func (r *Runner) Stop(ctx context.Context) {
	r.mu.Lock()
	c := r.c
	r.c = nil
	r.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	r.logger.Info("Local trigger runner stopped")
}

// FireDue delivers every trigger due at the current time and returns how
// many fired. A trigger is marked fired after all of its deliveries were
// attempted; failed deliveries are logged and returned, not repeated.
func (r *Runner) FireDue(ctx context.Context) (int, error) {
	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, runnerLockKey)
		if err != nil {
			if errors.IsType(err, errors.ErrTypeConflict) {
				return 0, nil
			}
			return 0, err
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("Failed to release runner lock", logging.Err(err))
			}
		}()
	}

	now := r.now()
	due, err := r.store.DueTriggers(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due triggers: %w", err)
	}

	var errs []error
	for _, trigger := range due {
		if err := r.fire(ctx, trigger); err != nil {
			errs = append(errs, err)
		}
		if err := r.store.MarkFired(ctx, trigger.ID, now); err != nil {
			errs = append(errs, err)
		}
	}

	if len(due) > 0 {
		r.logger.Info("Fired due triggers", logging.Int("count", len(due)), logging.Int("failures", len(errs)))
	}
	return len(due), stderrors.Join(errs...)
}

func (r *Runner) fire(ctx context.Context, trigger sqlite.Trigger) error {
	targets, err := r.store.Targets(ctx, trigger.ID)
	if err != nil {
		return fmt.Errorf("targets of %s: %w", trigger.ID, err)
	}

	var errs []error
	for _, target := range targets {
		granted, err := r.store.HasGrant(ctx, target.Task, trigger.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !granted {
			r.logger.Warn("Skipping target without grant",
				logging.String("trigger_id", trigger.ID),
				logging.String("task", target.Task),
			)
			continue
		}

		err = r.dispatcher.Dispatch(ctx, dispatch.Request{
			TriggerID: trigger.ID,
			Task:      target.Task,
			Address:   target.Address,
			Input:     []byte(target.Input),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", trigger.ID, target.Task, err))
		}
	}
	return stderrors.Join(errs...)
}

// cronLogger routes cron's own logging through ours
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, kvFields(keysAndValues)...)
}

func kvFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}

package app

import (
	"context"
	"fmt"

	"dday-scheduler/internal/common/logging"
	"dday-scheduler/internal/config"
	"dday-scheduler/internal/handlers"
	"dday-scheduler/internal/redis"
	"dday-scheduler/internal/registry/local"
	"dday-scheduler/internal/schedule"
	"dday-scheduler/internal/storage/sqlite"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Engine      *schedule.Engine
	Store       *sqlite.Store
	Runner      *local.Runner
	RedisClient *redis.Client
	Logger      logging.Logger

	schedule *schedule.File
	registry schedule.TriggerRegistry
	ledger   schedule.PermissionLedger
	resolver schedule.EndpointResolver
	locker   schedule.Locker
	reporter schedule.Reporter
	checks   []handlers.HealthCheck
}

// New creates a new application instance with all dependencies
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	if err := app.loadSchedule(); err != nil {
		return nil, err
	}

	// Redis is optional; without it registrations lock in-process only
	if err := app.initializeRedis(); err != nil {
		app.Logger.Warn("Redis initialization failed, continuing with in-process locks",
			logging.Err(err))
	}

	var err error
	if cfg.UsesLocalBackend() {
		err = app.initializeLocal()
	} else {
		err = app.initializeEventBridge(ctx)
	}
	if err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeEngine(ctx); err != nil {
		app.Cleanup()
		return nil, err
	}

	return app, nil
}

func (app *App) loadSchedule() error {
	if app.Config.ScheduleFile == "" {
		app.schedule = &schedule.File{Offsets: schedule.DefaultTable()}
		app.Logger.Info("Schedule: built-in table", logging.Int("offsets", len(app.schedule.Offsets)))
		return nil
	}

	file, err := schedule.LoadFile(app.Config.ScheduleFile)
	if err != nil {
		return err
	}
	app.schedule = file
	app.Logger.Info("Schedule: loaded",
		logging.String("path", app.Config.ScheduleFile),
		logging.Int("offsets", len(file.Offsets)),
	)
	return nil
}

func (app *App) initializeEngine(ctx context.Context) error {
	loc, err := app.Config.Location()
	if err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}
	fireTime, err := schedule.ParseTimeOfDay(app.Config.FireTime)
	if err != nil {
		return err
	}

	// Fail at startup rather than on the first event when a task has no endpoint
	if err := schedule.ValidateTargets(ctx, app.resolver, app.schedule.Offsets); err != nil {
		return fmt.Errorf("schedule references unresolvable tasks: %w", err)
	}

	planner, err := schedule.NewPlanner(app.schedule.Offsets, app.resolver, app.registry, app.ledger,
		schedule.PlannerConfig{
			RulePrefix: app.Config.RulePrefix,
			FireTime:   fireTime,
			Location:   loc,
			Workers:    app.Config.Workers,
		}, app.Logger)
	if err != nil {
		return err
	}

	app.Engine = schedule.NewEngine(planner,
		schedule.WithLocker(app.locker),
		schedule.WithReporter(app.reporter),
		schedule.WithLogger(app.Logger),
	)
	return nil
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			app.Logger.Warn("Error closing database", logging.Err(err))
		}
	}
	if app.RedisClient != nil {
		if err := app.RedisClient.Close(); err != nil {
			app.Logger.Warn("Error closing Redis", logging.Err(err))
		}
	}
}

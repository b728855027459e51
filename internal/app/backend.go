package app

import (
	"context"
	"fmt"

	"dday-scheduler/internal/awsclient"
	"dday-scheduler/internal/common/logging"
	"dday-scheduler/internal/config"
	"dday-scheduler/internal/dispatch"
	"dday-scheduler/internal/handlers"
	"dday-scheduler/internal/locks"
	"dday-scheduler/internal/permissions/lambda"
	"dday-scheduler/internal/redis"
	"dday-scheduler/internal/registry/eventbridge"
	"dday-scheduler/internal/registry/local"
	"dday-scheduler/internal/report"
	"dday-scheduler/internal/schedule"
	"dday-scheduler/internal/storage/sqlite"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

func (app *App) initializeRedis() error {
	app.locker = locks.NewLocalLocker()

	if app.Config.RedisAddress == "" {
		app.Logger.Info("Redis: Not configured (registration locks are in-process)")
		return nil
	}

	redisClient, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDB,
	})
	if err != nil {
		return err
	}

	locker, err := locks.NewRedsyncLocker(redisClient, app.Config.LockTTL, app.Logger)
	if err != nil {
		_ = redisClient.Close()
		return err
	}

	app.RedisClient = redisClient
	app.locker = locker
	app.checks = append(app.checks, handlers.CheckFunc{CheckName: "redis", Fn: redisClient.Health})
	app.Logger.Info("Redis: Connected", logging.String("address", app.Config.RedisAddress))
	app.Logger.Info("Distributed Locks: Enabled", logging.Any("ttl", app.Config.LockTTL.String()))
	return nil
}

func (app *App) invoker(name string) *awsclient.Invoker {
	return awsclient.NewInvoker(awsclient.InvokerConfig{
		Name:    name,
		Timeout: app.Config.RegistryTimeout,
		RPS:     app.Config.RegistryRPS,
	}, app.Logger)
}

func (app *App) initializeEventBridge(ctx context.Context) error {
	cfg := app.Config
	awsCfg, err := awsclient.LoadConfig(ctx, awsclient.Config{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		SessionToken:    cfg.AWSSessionToken,
	})
	if err != nil {
		return err
	}

	ebInvoker := app.invoker("eventbridge")
	lambdaInvoker := app.invoker("lambda")
	lambdaClient := awslambda.NewFromConfig(awsCfg)

	app.registry = eventbridge.NewRegistry(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, ebInvoker, app.Logger)
	app.ledger = lambda.NewLedger(lambdaClient, lambdaInvoker, app.Logger)

	tasks := app.schedule.Offsets.Tasks()
	if cfg.Resolver == config.ResolverLookup {
		app.resolver = lambda.NewFunctionResolver(lambdaClient, lambdaInvoker, cfg.FunctionPrefix, tasks, app.schedule.Tasks)
	} else {
		app.resolver = schedule.NewLambdaARNResolver(cfg.AWSRegion, cfg.AWSAccountID, cfg.FunctionPrefix, tasks, app.schedule.Tasks)
	}

	if cfg.ReportTopicARN != "" {
		app.reporter = report.NewSNSReporter(sns.NewFromConfig(awsCfg), cfg.ReportTopicARN, app.invoker("sns"), app.Logger)
	} else {
		app.reporter = report.NewLogReporter(app.Logger)
	}

	app.Logger.Info("Registry: EventBridge",
		logging.String("region", cfg.AWSRegion),
		logging.String("bus", cfg.EventBusName),
		logging.String("resolver", cfg.Resolver),
	)
	return nil
}

func (app *App) initializeLocal() error {
	store, err := sqlite.Open(&sqlite.Config{
		DatabasePath:  app.Config.DatabasePath,
		BusyTimeoutMS: sqlite.DefaultConfig().BusyTimeoutMS,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.Store = store

	app.registry = local.NewRegistry(store, app.Logger)
	app.ledger = local.NewLedger(store, app.Logger)
	app.resolver = localResolver(app.Config.FunctionPrefix, app.schedule)
	app.reporter = report.NewLogReporter(app.Logger)

	router := dispatch.NewRouter(
		dispatch.NewHTTPDispatcher(app.Logger),
		dispatch.NewLogDispatcher(app.Logger),
	)
	app.Runner = local.NewRunner(store, router, app.Config.PollInterval, app.Logger, local.WithLocker(app.locker))

	app.checks = append(app.checks, handlers.CheckFunc{CheckName: "sqlite", Fn: store.Health})
	app.Logger.Info("Registry: local",
		logging.String("database", app.Config.DatabasePath),
		logging.Any("poll_interval", app.Config.PollInterval.String()),
	)
	return nil
}

// localResolver addresses tasks by the schedule file's task map (usually
// http URLs) and falls back to the default function name, which the log
// dispatcher accepts.
func localResolver(prefix string, file *schedule.File) schedule.StaticResolver {
	resolver := make(schedule.StaticResolver)
	for _, task := range file.Offsets.Tasks() {
		resolver[task] = schedule.FunctionName(prefix, task)
		if address, ok := file.Tasks[task]; ok && address != "" {
			resolver[task] = address
		}
	}
	return resolver
}

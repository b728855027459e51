package app

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/common/logging"
	"dday-scheduler/internal/config"
	"dday-scheduler/internal/handlers"
	"dday-scheduler/internal/schedule"
	"github.com/joho/godotenv"
)

// Run is the main entry point for the application
func Run() error {
	// Load environment variables before the logger reads LOG_*
	_ = godotenv.Load()

	var registerFile string
	flag.StringVar(&registerFile, "register", "", "Register the issue in this JSON file ({\"issue\":{...}}) and exit")
	flag.Parse()

	closer := logging.InitGlobalLogger()
	defer closer.Close()
	defer logging.MustSync()

	logging.Info("Starting dday scheduler")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	if registerFile != "" {
		return app.RegisterFile(ctx, registerFile, os.Stdout)
	}

	return app.Serve(ctx)
}

// Serve runs the HTTP server, and the local runner when configured, until
// ctx is cancelled.
func (app *App) Serve(ctx context.Context) error {
	if app.Runner != nil {
		if err := app.Runner.Start(ctx); err != nil {
			return err
		}
	}

	srv := app.NewServer()
	errCh, err := srv.Start()
	if err != nil {
		logging.Error("Server failed to start", err)
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info("Shutting down server...")
	case serveErr = <-errCh:
		logging.Error("Server stopped unexpectedly", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if app.Runner != nil {
		app.Runner.Stop(shutdownCtx)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server forced to shutdown", err)
		return err
	}

	logging.Info("Server exited")
	return serveErr
}

// RegisterFile registers the issue stored in path and writes the
// response body to out. A partial failure is returned as an error after
// the body is written.
func (app *App) RegisterFile(ctx context.Context, path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var req schedule.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ValidationError(fmt.Sprintf("%s is not a registration request", path)).
			WithContext("error", err.Error())
	}

	result, err := app.Engine.Register(ctx, req.Issue)
	if err != nil {
		return err
	}

	resp := handlers.RegisterResponse{
		StatusCode: 200,
		Rules:      result.Rules(),
		Failures:   result.Failures(),
	}
	if result.Err() != nil {
		resp.StatusCode = 207
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(resp); err != nil {
		return err
	}
	return result.Err()
}

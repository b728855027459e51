package app

import (
	"net/http"
	"time"

	"dday-scheduler/internal/handlers"
	"dday-scheduler/internal/middleware"
	"dday-scheduler/internal/ratelimit"
	"dday-scheduler/internal/server"
	"dday-scheduler/internal/signature"
	"github.com/gorilla/mux"
)

// Handler builds the HTTP router with all middleware configured
func (app *App) Handler() http.Handler {
	verifier := signature.NewVerifier(signature.GitHubConfig(app.Config.GitHubWebhookSecret), app.Logger)
	if !verifier.Enabled() {
		app.Logger.Warn("GITHUB_WEBHOOK_SECRET is not set; webhook signatures are not verified")
	}

	h := handlers.New(app.Engine, verifier, app.Config.EventLabel, app.checks, app.Logger)

	router := mux.NewRouter()
	router.Use(middleware.RequestID, middleware.Logging(app.Logger), middleware.Recover(app.Logger))

	limiter := ratelimit.NewLimiter(app.RedisClient, &ratelimit.Config{
		DefaultLimit:  app.Config.RateLimitRPS,
		DefaultWindow: time.Second,
		Enabled:       app.Config.RateLimitEnabled,
	}, app.Logger)
	h.Routes(router, limiter.HTTPMiddleware(ratelimit.IPBasedKey))

	return router
}

// NewServer wraps Handler in a server on the configured port
func (app *App) NewServer() *server.Server {
	return server.New(app.Handler(), app.Config.Port, app.Logger)
}

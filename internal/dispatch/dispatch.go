// Package dispatch delivers fired local triggers to their downstream tasks.
package dispatch

import (
	"context"
	"strings"

	"dday-scheduler/internal/common/logging"
)

// Request is one payload delivery to one task
type Request struct {
	TriggerID string
	Task      string
	Address   string
	Input     []byte
}

// Dispatcher delivers a request
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) error
}

// DispatcherFunc adapts a function to Dispatcher
type DispatcherFunc func(ctx context.Context, req Request) error

func (f DispatcherFunc) Dispatch(ctx context.Context, req Request) error {
	return f(ctx, req)
}

// Router posts to http(s) addresses and logs everything else
type Router struct {
	http     Dispatcher
	fallback Dispatcher
}

// NewRouter creates a Router
func NewRouter(http Dispatcher, fallback Dispatcher) *Router {
	return &Router{http: http, fallback: fallback}
}

func (r *Router) Dispatch(ctx context.Context, req Request) error {
	if r.http != nil && isHTTP(req.Address) {
		return r.http.Dispatch(ctx, req)
	}
	return r.fallback.Dispatch(ctx, req)
}

func isHTTP(address string) bool {
	return strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://")
}

// LogDispatcher only records deliveries. Used for task addresses with no
// local transport, such as Lambda ARNs.
type LogDispatcher struct {
	logger logging.Logger
}

// NewLogDispatcher creates a LogDispatcher
func NewLogDispatcher(logger logging.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logging.OrGlobal(logger)}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, req Request) error {
	d.logger.WithContext(ctx).Info("Trigger fired",
		logging.String("trigger_id", req.TriggerID),
		logging.String("task", req.Task),
		logging.String("address", req.Address),
		logging.String("input", string(req.Input)),
	)
	return nil
}

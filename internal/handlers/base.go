// Package handlers exposes registration, preview and GitHub webhook
// endpoints over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/common/logging"
	"dday-scheduler/internal/schedule"
	"dday-scheduler/internal/signature"
)

// Registrar is the part of schedule.Engine the handlers use
type Registrar interface {
	Register(ctx context.Context, issue schedule.Issue) (*schedule.Result, error)
	Preview(ctx context.Context, issue schedule.Issue) (*schedule.Plan, error)
}

// HealthCheck reports whether one dependency is usable
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

type Handlers struct {
	engine   Registrar
	verifier *signature.Verifier
	label    string
	checks   []HealthCheck
	now      func() time.Time
	logger   logging.Logger
}

// New creates the handlers. label selects which GitHub issues register.
func New(engine Registrar, verifier *signature.Verifier, label string, checks []HealthCheck, logger logging.Logger) *Handlers {
	if label == "" {
		label = "event"
	}
	return &Handlers{
		engine:   engine,
		verifier: verifier,
		label:    label,
		checks:   checks,
		now:      time.Now,
		logger:   logging.OrGlobal(logger),
	}
}

// ErrorBody is the wire form of a request level error
type ErrorBody struct {
	Type    errors.ErrorType       `json:"type"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// ErrorResponse is returned when a request fails as a whole
type ErrorResponse struct {
	StatusCode int        `json:"statusCode"`
	Error      *ErrorBody `json:"error"`
}

// RegisterResponse is returned by /register and /webhook/github
type RegisterResponse struct {
	StatusCode int                `json:"statusCode"`
	Rules      []string           `json:"rules"`
	Failures   []schedule.Failure `json:"failures,omitempty"`
}

// registerTimeout bounds a registration once it no longer follows the
// request's cancellation
const registerTimeout = 2 * time.Minute

// registrationContext detaches ctx from the client connection. A dropped
// client must not stop a fan-out halfway and leave a partial schedule.
func registrationContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), registerTimeout)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps request level errors onto HTTP statuses
func statusFor(err error) int {
	switch errors.GetType(err) {
	case errors.ErrTypeInvalidAnchorDate, errors.ErrTypeValidation:
		return http.StatusBadRequest
	case errors.ErrTypeAuth:
		return http.StatusUnauthorized
	case errors.ErrTypeConflict:
		return http.StatusConflict
	case errors.ErrTypeRegistryUnavailable, errors.ErrTypeTimeout, errors.ErrTypeRateLimit:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := &ErrorBody{Type: errors.GetType(err), Message: err.Error()}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		body.Message = appErr.Message
		body.Context = appErr.Context
	}
	if status == http.StatusInternalServerError {
		h.logger.WithContext(r.Context()).Error("Request failed", err)
		body.Message = "internal error"
		body.Context = nil
	}

	writeJSON(w, status, ErrorResponse{StatusCode: status, Error: body})
}

func (h *Handlers) writeResult(w http.ResponseWriter, result *schedule.Result) {
	status := http.StatusOK
	if result.Err() != nil {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, RegisterResponse{
		StatusCode: status,
		Rules:      result.Rules(),
		Failures:   result.Failures(),
	})
}

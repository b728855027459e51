package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/common/logging"
	"dday-scheduler/internal/handlers"
	"dday-scheduler/internal/schedule"
	"dday-scheduler/internal/signature"
	"dday-scheduler/internal/testutil"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	webhookSecret = "s3cret"
	minus7        = "workflow-lang-11th-Meetup-2026-02-24-Dm7"
	plus7         = "workflow-lang-11th-Meetup-2026-02-24-Dp7"
)

// MockRegistrar mocks the engine
type MockRegistrar struct {
	mock.Mock
}

func (m *MockRegistrar) Register(ctx context.Context, issue schedule.Issue) (*schedule.Result, error) {
	args := m.Called(ctx, issue)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schedule.Result), args.Error(1)
}

func (m *MockRegistrar) Preview(ctx context.Context, issue schedule.Issue) (*schedule.Plan, error) {
	args := m.Called(ctx, issue)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schedule.Plan), args.Error(1)
}

// MockHealthCheck mocks a dependency check
type MockHealthCheck struct {
	mock.Mock
}

func (m *MockHealthCheck) Name() string {
	return m.Called().String(0)
}

func (m *MockHealthCheck) Check(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type testServer struct {
	router   *mux.Router
	registry *testutil.FakeRegistry
	verifier *signature.Verifier
}

func newTestServer(t *testing.T, checks ...handlers.HealthCheck) *testServer {
	t.Helper()
	registry := testutil.NewFakeRegistry()
	planner, err := schedule.NewPlanner(testutil.MeetupTable(), testutil.TestResolver(), registry,
		testutil.NewFakeLedger(), schedule.DefaultPlannerConfig(), logging.NewNopLogger())
	require.NoError(t, err)

	engine := schedule.NewEngine(planner, schedule.WithLogger(logging.NewNopLogger()))
	verifier := signature.NewVerifier(signature.GitHubConfig(webhookSecret), logging.NewNopLogger())

	router := mux.NewRouter()
	handlers.New(engine, verifier, "event", checks, logging.NewNopLogger()).Routes(router, nil)
	return &testServer{router: router, registry: registry, verifier: verifier}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func registerBody(title, body string) string {
	data, _ := json.Marshal(schedule.Request{Issue: schedule.Issue{Title: title, Body: body}})
	return string(data)
}

func TestHandleRegister(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		failOn     string
		wantStatus int
		wantRules  []string
		wantKind   errors.ErrorType
	}{
		{
			name:       "all offsets registered",
			body:       registerBody("[11th Meetup] 2026-02-24", "date: 2026-02-24"),
			wantStatus: http.StatusOK,
			wantRules:  []string{minus7, plus7},
		},
		{
			name:       "one offset fails",
			body:       registerBody("[11th Meetup] 2026-02-24", "date: 2026-02-24"),
			failOn:     plus7,
			wantStatus: http.StatusMultiStatus,
			wantRules:  []string{minus7},
			wantKind:   errors.ErrTypeRegistryUnavailable,
		},
		{
			name:       "missing date",
			body:       registerBody("[11th Meetup]", "see you there"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed json",
			body:       `{"issue":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t)
			if tt.failOn != "" {
				server.registry.ErrorOnTrigger[tt.failOn] = errors.RegistryUnavailable("PutRule", nil)
			}

			rec := server.do(httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(tt.body)))
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.EqualValues(t, tt.wantStatus, resp["statusCode"])

			if tt.wantStatus >= http.StatusBadRequest {
				assert.Contains(t, resp, "error")
				assert.Zero(t, server.registry.TotalCalls())
				return
			}

			var registered handlers.RegisterResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))
			assert.Equal(t, tt.wantRules, registered.Rules)
			if tt.wantKind != "" {
				require.Len(t, registered.Failures, 1)
				assert.Equal(t, 7, registered.Failures[0].Offset)
				assert.Equal(t, tt.wantKind, registered.Failures[0].Kind)
			} else {
				assert.Empty(t, registered.Failures)
			}
		})
	}
}

func TestHandleRegister_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"lock held", errors.ConflictError("registration for x is already in progress", nil), http.StatusConflict},
		{"lock backend down", errors.RegistryUnavailable("lock", nil), http.StatusServiceUnavailable},
		{"unexpected", errors.InternalError("boom", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registrar := &MockRegistrar{}
			registrar.On("Register", mock.Anything, mock.Anything).Return(nil, tt.err)

			router := mux.NewRouter()
			handlers.New(registrar, nil, "", nil, logging.NewNopLogger()).Routes(router, nil)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(registerBody("x", "date: 2026-02-24"))))

			assert.Equal(t, tt.wantStatus, rec.Code)
			registrar.AssertExpectations(t)
		})
	}
}

func githubRequest(t *testing.T, verifier *signature.Verifier, event, payload string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", strings.NewReader(payload))
	req.Header.Set("X-GitHub-Event", event)
	if verifier != nil {
		sig, err := verifier.Sign([]byte(payload))
		require.NoError(t, err)
		req.Header.Set("X-Hub-Signature-256", sig)
	}
	return req
}

func issuesPayload(action string, labels ...string) string {
	type label struct {
		Name string `json:"name"`
	}
	payload := map[string]interface{}{
		"action": action,
		"issue": map[string]interface{}{
			"number": 11,
			"title":  "[11th Meetup] 2026-02-24",
			"body":   "date: 2026-02-24\nlocation: Seoul",
			"labels": func() []label {
				out := make([]label, 0, len(labels))
				for _, l := range labels {
					out = append(out, label{Name: l})
				}
				return out
			}(),
		},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestHandleGitHubWebhook(t *testing.T) {
	tests := []struct {
		name       string
		event      string
		payload    string
		unsigned   bool
		wantStatus int
		wantCalls  bool
	}{
		{"labelled issue opened", "issues", issuesPayload("opened", "event"), false, http.StatusOK, true},
		{"label added", "issues", issuesPayload("labeled", "bug", "Event"), false, http.StatusOK, true},
		{"issue without label", "issues", issuesPayload("opened", "bug"), false, http.StatusAccepted, false},
		{"closed issue", "issues", issuesPayload("closed", "event"), false, http.StatusAccepted, false},
		{"other event", "push", `{}`, false, http.StatusAccepted, false},
		{"ping", "ping", `{"zen":"hi"}`, false, http.StatusOK, false},
		{"bad signature", "issues", issuesPayload("opened", "event"), true, http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t)

			verifier := server.verifier
			if tt.unsigned {
				verifier = nil
			}
			rec := server.do(githubRequest(t, verifier, tt.event, tt.payload))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCalls {
				assert.Equal(t, []string{minus7, plus7}, server.registry.TriggerIDs())
			} else {
				assert.Zero(t, server.registry.TotalCalls())
			}
		})
	}
}

func TestHandlePreview(t *testing.T) {
	server := newTestServer(t)

	rec := server.do(httptest.NewRequest(http.MethodGet, "/preview?title=%5B11th+Meetup%5D+2026-02-24&date=2026-02-24", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var view schedule.PlanView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "11th-Meetup-2026-02-24", view.EventName)
	require.Len(t, view.Triggers, 2)
	assert.Equal(t, minus7, view.Triggers[0].TriggerID)
	assert.Equal(t, "cron(0 0 17 2 ? 2026)", view.Triggers[0].ScheduleExpression)
	assert.Zero(t, server.registry.TotalCalls())
}

func TestHandlePreview_Calendar(t *testing.T) {
	server := newTestServer(t)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/preview?title=meetup&date=2026-02-24&format=ics", nil),
		func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/preview?title=meetup&date=2026-02-24", nil)
			r.Header.Set("Accept", "text/calendar")
			return r
		}(),
	} {
		rec := server.do(req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
		assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
		assert.Equal(t, 2, strings.Count(rec.Body.String(), "BEGIN:VEVENT"))
	}
}

func TestHandlePreview_InvalidDate(t *testing.T) {
	server := newTestServer(t)

	rec := server.do(httptest.NewRequest(http.MethodGet, "/preview?title=meetup&date=2026-02-30", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, errors.ErrTypeInvalidAnchorDate, resp.Error.Type)
}

func TestHandleHealth(t *testing.T) {
	healthy := &MockHealthCheck{}
	healthy.On("Name").Return("sqlite")
	healthy.On("Check", mock.Anything).Return(nil)

	broken := &MockHealthCheck{}
	broken.On("Name").Return("redis")
	broken.On("Check", mock.Anything).Return(errors.RegistryUnavailable("ping", nil))

	t.Run("healthy", func(t *testing.T) {
		server := newTestServer(t, healthy)
		rec := server.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"sqlite":"ok"`)
	})

	t.Run("unhealthy", func(t *testing.T) {
		server := newTestServer(t, healthy, broken)
		rec := server.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"unhealthy"`)
	})
}

func TestRegister_OutlivesClientDisconnect(t *testing.T) {
	routes := []struct {
		name string
		req  func(t *testing.T, verifier *signature.Verifier) *http.Request
	}{
		{"register", func(t *testing.T, _ *signature.Verifier) *http.Request {
			return httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(registerBody("[11th Meetup] 2026-02-24", "date: 2026-02-24")))
		}},
		{"webhook", func(t *testing.T, verifier *signature.Verifier) *http.Request {
			return githubRequest(t, verifier, "issues", issuesPayload("opened", "event"))
		}},
	}

	for _, tt := range routes {
		t.Run(tt.name, func(t *testing.T) {
			registrar := &MockRegistrar{}
			registrar.On("Register", mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) {
					ctx := args.Get(0).(context.Context)
					assert.NoError(t, ctx.Err())
					_, hasDeadline := ctx.Deadline()
					assert.True(t, hasDeadline)
				}).
				Return(&schedule.Result{}, nil)

			verifier := signature.NewVerifier(signature.GitHubConfig(webhookSecret), logging.NewNopLogger())
			router := mux.NewRouter()
			handlers.New(registrar, verifier, "event", nil, logging.NewNopLogger()).Routes(router, nil)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			req := tt.req(t, verifier).WithContext(ctx)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			registrar.AssertExpectations(t)
		})
	}
}

func TestRegister_CancelledRequestRegistersEveryOffset(t *testing.T) {
	server := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/register",
		strings.NewReader(registerBody("[11th Meetup] 2026-02-24", "date: 2026-02-24"))).WithContext(ctx)

	rec := server.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{minus7, plus7}, server.registry.TriggerIDs())
}

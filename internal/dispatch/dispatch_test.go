package dispatch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/common/logging"
	"dday-scheduler/internal/common/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() utils.RetryConfig {
	retry := utils.RegistryRetryConfig()
	retry.InitialDelay = time.Millisecond
	retry.MaxDelay = time.Millisecond
	return retry
}

func TestHTTPDispatcher_Dispatch(t *testing.T) {
	var body []byte
	var triggerHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		triggerHeader = r.Header.Get("X-Trigger-Id")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	dispatcher := NewHTTPDispatcher(logging.NewNopLogger(), WithRetry(fastRetry()))
	err := dispatcher.Dispatch(context.Background(), Request{
		TriggerID: "workflow-lang-11th-Meetup-Dm7",
		Task:      "notify",
		Address:   server.URL,
		Input:     []byte(`{"offset":-7,"event_name":"11th-Meetup","dday":"2026-02-24"}`),
	})

	require.NoError(t, err)
	assert.JSONEq(t, `{"offset":-7,"event_name":"11th-Meetup","dday":"2026-02-24"}`, string(body))
	assert.Equal(t, "workflow-lang-11th-Meetup-Dm7", triggerHeader)
}

func TestHTTPDispatcher_StatusHandling(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantType  errors.ErrorType
		wantCalls int32
	}{
		{"server error is retried", http.StatusBadGateway, errors.ErrTypeRegistryUnavailable, 3},
		{"throttled is retried", http.StatusTooManyRequests, errors.ErrTypeRateLimit, 3},
		{"client error is final", http.StatusBadRequest, errors.ErrTypeRegistryRejected, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			dispatcher := NewHTTPDispatcher(logging.NewNopLogger(), WithRetry(fastRetry()), WithTimeout(time.Second))
			err := dispatcher.Dispatch(context.Background(), Request{Task: "notify", Address: server.URL, Input: []byte(`{}`)})

			require.Error(t, err)
			assert.Equal(t, tt.wantType, errors.GetType(err))
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestRouter_Dispatch(t *testing.T) {
	var httpCalls, fallbackCalls int
	router := NewRouter(
		DispatcherFunc(func(ctx context.Context, req Request) error { httpCalls++; return nil }),
		DispatcherFunc(func(ctx context.Context, req Request) error { fallbackCalls++; return nil }),
	)

	ctx := context.Background()
	require.NoError(t, router.Dispatch(ctx, Request{Address: "https://tasks.example.com/notify"}))
	require.NoError(t, router.Dispatch(ctx, Request{Address: "http://localhost:8081/survey"}))
	require.NoError(t, router.Dispatch(ctx, Request{Address: "arn:aws:lambda:ap-northeast-2:123456789012:function:workflow-lang-notify"}))

	assert.Equal(t, 2, httpCalls)
	assert.Equal(t, 1, fallbackCalls)
}

func TestLogDispatcher_Dispatch(t *testing.T) {
	assert.NoError(t, NewLogDispatcher(logging.NewNopLogger()).Dispatch(context.Background(), Request{Task: "notify"}))
}

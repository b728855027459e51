package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel("nonsense"))
}

func newBufferLogger(t *testing.T, level LogLevel, format string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: level, Output: &buf, Format: format})
	require.NoError(t, err)
	return logger, &buf
}

func TestZapLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, WarnLevel, "console")

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("visible warn")
	logger.Error("visible error", errors.New("boom"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible warn")
	assert.Contains(t, out, "visible error")
	assert.Contains(t, out, "boom")
}

func TestZapLogger_JSONFields(t *testing.T) {
	logger, buf := newBufferLogger(t, DebugLevel, "json")

	logger.WithFields(String("trigger_id", "workflow-lang-x-Dm7")).Info("trigger upserted", Int("offset", -7))

	out := buf.String()
	assert.Contains(t, out, `"trigger_id":"workflow-lang-x-Dm7"`)
	assert.Contains(t, out, `"offset":-7`)
	assert.Contains(t, out, `"msg":"trigger upserted"`)
}

func TestZapLogger_WithContext(t *testing.T) {
	logger, buf := newBufferLogger(t, DebugLevel, "json")

	ctx := ContextWithRequestID(context.Background(), "req-123")
	ctx = ContextWithEventName(ctx, "11th-Meetup")
	logger.WithContext(ctx).Info("registering")

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-123"`)
	assert.Contains(t, out, `"event_name":"11th-Meetup"`)
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
}

func TestZapLogger_WithContextEmpty(t *testing.T) {
	logger, _ := newBufferLogger(t, DebugLevel, "json")
	assert.Same(t, logger, logger.WithContext(context.Background()))
	assert.Same(t, logger, logger.WithFields())
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	logger, buf := newBufferLogger(t, DebugLevel, "console")
	SetGlobalLogger(logger)

	Info("global info", String("k", "v"))
	Warn("global warn")
	assert.Contains(t, buf.String(), "global info")
	assert.Contains(t, buf.String(), "global warn")
	assert.Same(t, logger, OrGlobal(nil))
}

func TestNewNopLogger(t *testing.T) {
	logger := NewNopLogger()
	assert.NotPanics(t, func() {
		logger.Info("ignored")
		logger.Error("ignored", errors.New("x"))
	})
}

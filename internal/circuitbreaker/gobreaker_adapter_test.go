package circuitbreaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/common/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MaxFailures:           2,
		Timeout:               50 * time.Millisecond,
		MaxConcurrentRequests: 1,
	}
}

func TestGoBreakerAdapter(t *testing.T) {
	logger := logging.NewNopLogger()

	t.Run("basic operation", func(t *testing.T) {
		cb := NewGoBreaker("eventbridge", testConfig(), logger)
		assert.Equal(t, StateClosed, cb.State())

		err := cb.Execute(context.Background(), func() error { return nil })
		assert.NoError(t, err)
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, "eventbridge", cb.Name())
	})

	t.Run("circuit opens after transient failures", func(t *testing.T) {
		cb := NewGoBreaker("eventbridge", testConfig(), logger)

		for i := 0; i < 2; i++ {
			err := cb.Execute(context.Background(), func() error {
				return errors.RegistryUnavailable("PutRule", fmt.Errorf("503 #%d", i))
			})
			assert.Error(t, err)
		}
		assert.True(t, cb.IsOpen())

		err := cb.Execute(context.Background(), func() error {
			t.Fatal("should not be called while open")
			return nil
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeRegistryUnavailable))
		assert.False(t, errors.IsTransient(err))
	})

	t.Run("semantic failures do not trip", func(t *testing.T) {
		cb := NewGoBreaker("lambda", testConfig(), logger)

		for i := 0; i < 5; i++ {
			err := cb.Execute(context.Background(), func() error {
				return errors.PermissionConflict("notify-x", nil)
			})
			assert.True(t, errors.IsType(err, errors.ErrTypePermissionConflict))
		}
		for i := 0; i < 5; i++ {
			_ = cb.Execute(context.Background(), func() error {
				return errors.UnknownTask("podcast", nil)
			})
		}
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("half-open then closed", func(t *testing.T) {
		cb := NewGoBreaker("eventbridge", testConfig(), logger)
		for i := 0; i < 2; i++ {
			_ = cb.Execute(context.Background(), func() error { return fmt.Errorf("failure") })
		}
		require.Equal(t, StateOpen, cb.State())

		time.Sleep(60 * time.Millisecond)
		assert.Equal(t, StateHalfOpen, cb.State())

		assert.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("cancelled context short-circuits", func(t *testing.T) {
		cb := NewGoBreaker("eventbridge", testConfig(), logger)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := cb.Execute(ctx, func() error {
			t.Fatal("should not be called")
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("stats", func(t *testing.T) {
		cb := NewGoBreaker("eventbridge", testConfig(), logger)
		_ = cb.Execute(context.Background(), func() error { return nil })
		_ = cb.Execute(context.Background(), func() error { return fmt.Errorf("x") })

		stats := cb.Stats()
		assert.Equal(t, "eventbridge", stats.Name)
		assert.Equal(t, "closed", stats.State)
		assert.Equal(t, 1, stats.Failures)
		assert.Equal(t, 1, stats.Successes)
	})
}

func TestInvalidConfigFallsBack(t *testing.T) {
	cb := NewGoBreaker("bad", Config{}, logging.NewNopLogger())
	assert.Equal(t, StateClosed, cb.State())
	assert.Error(t, Config{}.Validate())
	assert.NoError(t, RegistryConfig.Validate())
}

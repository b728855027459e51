// Package ratelimit throttles the inbound registration endpoints per client.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/common/logging"
	"dday-scheduler/internal/redis"
	"golang.org/x/time/rate"
)

// Limiter allows DefaultLimit requests per DefaultWindow per key. With a
// Redis client the count is shared across replicas (fixed window);
// otherwise each key gets an in-process token bucket.
type Limiter struct {
	redis  *redis.Client
	config *Config
	logger logging.Logger

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

type Config struct {
	DefaultLimit  int           `json:"default_limit"`
	DefaultWindow time.Duration `json:"default_window"`
	Enabled       bool          `json:"enabled"`
}

type RateLimit struct {
	Limit     int           `json:"limit"`
	Window    time.Duration `json:"window"`
	Remaining int           `json:"remaining"`
	ResetTime time.Time     `json:"reset_time"`
}

// NewLimiter creates a limiter; redisClient may be nil
func NewLimiter(redisClient *redis.Client, config *Config, logger logging.Logger) *Limiter {
	if config == nil {
		config = &Config{
			DefaultLimit:  100,
			DefaultWindow: time.Minute,
			Enabled:       true,
		}
	}

	return &Limiter{
		redis:   redisClient,
		config:  config,
		logger:  logging.OrGlobal(logger),
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *Limiter) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimit, error) {
	result := &RateLimit{
		Limit:     limit,
		Window:    window,
		Remaining: limit,
		ResetTime: time.Now().Add(window),
	}
	if !l.config.Enabled {
		return result, nil
	}

	if l.redis != nil {
		_, current, err := l.redis.CheckRateLimit(ctx, fmt.Sprintf("rate_limit:%s", key), limit, window)
		if err != nil {
			return nil, errors.InternalError("failed to check rate limit", err)
		}
		result.Remaining = max(limit-current, 0)
		if current > limit {
			result.Remaining = -1
		}
		return result, nil
	}

	bucket := l.bucket(key, limit, window)
	if !bucket.Allow() {
		result.Remaining = -1
		return result, nil
	}
	result.Remaining = int(bucket.Tokens())
	return result, nil
}

func (l *Limiter) CheckDefaultLimit(ctx context.Context, key string) (*RateLimit, error) {
	return l.CheckLimit(ctx, key, l.config.DefaultLimit, l.config.DefaultWindow)
}

func (l *Limiter) bucket(key string, limit int, window time.Duration) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
		l.buckets[key] = bucket
	}
	return bucket
}

// HTTPMiddleware rejects requests over the limit with 429
func (l *Limiter) HTTPMiddleware(keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			rateLimit, err := l.CheckDefaultLimit(r.Context(), key)
			if err != nil {
				// fail open
				l.logger.WithContext(r.Context()).Warn("Rate limit check failed", logging.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rateLimit.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", max(rateLimit.Remaining, 0)))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", rateLimit.ResetTime.Unix()))

			if rateLimit.Remaining < 0 {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rateLimit.Window.Seconds())))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IPBasedKey keys on the first forwarded address, falling back to RemoteAddr
func IPBasedKey(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		ip = strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip == "" {
		ip = r.Header.Get("X-Real-IP")
	}
	if ip == "" {
		ip = r.RemoteAddr
	}
	return fmt.Sprintf("ip:%s", ip)
}

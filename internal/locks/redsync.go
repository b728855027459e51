// Package locks serializes concurrent registrations of the same anchor event.
//
// Registration is idempotent, so a lost race only costs a redundant pass over
// the registry. The lock keeps two replicas from interleaving target updates
// for one trigger while an issue is being edited repeatedly.
package locks

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/common/logging"
	"dday-scheduler/internal/redis"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
)

// RedsyncLocker implements the engine's Locker with the Redlock algorithm
type RedsyncLocker struct {
	redsync *redsync.Redsync
	ttl     time.Duration
	logger  logging.Logger
}

// NewRedsyncLocker creates a locker over a connected Redis client
func NewRedsyncLocker(redisClient *redis.Client, ttl time.Duration, logger logging.Logger) (*RedsyncLocker, error) {
	if redisClient == nil {
		return nil, errors.ConfigError("redis client is required")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	pool := goredis.NewPool(redisClient.GetGoRedisClient())

	return &RedsyncLocker{
		redsync: redsync.New(pool),
		ttl:     ttl,
		logger:  logging.OrGlobal(logger),
	}, nil
}

// Lock tries once to take key. A held lock is reported as a conflict.
// The lock is extended in the background until unlock is called.
func (l *RedsyncLocker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	mutex := l.redsync.NewMutex(
		fmt.Sprintf("lock:%s", key),
		redsync.WithExpiry(l.ttl),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return nil, lockError(key, err)
	}

	renewCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.renew(renewCtx, mutex, key)
	}()

	var once sync.Once
	unlock := func(ctx context.Context) error {
		var err error
		once.Do(func() {
			cancel()
			wg.Wait()
			ok, unlockErr := mutex.UnlockContext(ctx)
			switch {
			case unlockErr != nil:
				err = fmt.Errorf("release lock %s: %w", key, unlockErr)
			case !ok:
				err = fmt.Errorf("release lock %s: lock no longer held", key)
			}
		})
		return err
	}

	return unlock, nil
}

// lockError separates a lock held by another registration from Redis
// being unreachable
func lockError(key string, err error) error {
	var taken *redsync.ErrTaken
	if stderrors.As(err, &taken) || stderrors.Is(err, redsync.ErrFailed) {
		return errors.ConflictError(fmt.Sprintf("registration for %s is already in progress", key), err).
			WithContext("lock", key)
	}
	return errors.RegistryUnavailable("lock "+key, err)
}

func (l *RedsyncLocker) renew(ctx context.Context, mutex *redsync.Mutex, key string) {
	interval := l.ttl / 3
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			extendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			ok, err := mutex.ExtendContext(extendCtx)
			cancel()
			if err != nil || !ok {
				l.logger.Warn("Registration lock lost", logging.String("lock", key), logging.Err(err))
				return
			}
		}
	}
}

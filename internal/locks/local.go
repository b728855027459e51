package locks

import (
	"context"
	"fmt"
	"sync"

	"dday-scheduler/internal/common/errors"
)

// LocalLocker serializes registrations inside one process.
// Used when no Redis address is configured.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) Lock(_ context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[key]; busy {
		return nil, errors.ConflictError(fmt.Sprintf("registration for %s is already in progress", key), nil).
			WithContext("lock", key)
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
		return nil
	}, nil
}

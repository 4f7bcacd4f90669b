package lock

import (
	"context"
	"sync"
	"time"

	"github.com/hazemshokry/train-tracking-app/internal/apperr"
)

type localEntry struct {
	sem  chan struct{}
	refs int
}

// LocalLocker is an in-process keyed mutex for single-instance deployments.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	timeout time.Duration
}

// NewLocalLocker creates a locker that waits at most timeout per Acquire.
func NewLocalLocker(timeout time.Duration) *LocalLocker {
	return &LocalLocker{entries: make(map[string]*localEntry), timeout: timeout}
}

func (l *LocalLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var held []func()
	for _, key := range normalize(keys) {
		release, err := l.acquireOne(ctx, key)
		if err != nil {
			releaseAll(held)()
			return nil, apperr.Conflict(key, err)
		}
		held = append(held, release)
	}
	return releaseAll(held), nil
}

func (l *LocalLocker) acquireOne(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.sem
				l.unref(key, e)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) unref(key string, e *localEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}

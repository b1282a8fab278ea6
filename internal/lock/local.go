package lock

import (
	"context"
	"sync"
)

// Local is an in-process Locker for single-instance and backtest runs.
type Local struct {
	mu   sync.Mutex
	held map[string]*localLease
}

// NewLocal creates a Local locker.
func NewLocal() *Local {
	return &Local{held: make(map[string]*localLease)}
}

// Acquire takes the lease of key.
func (l *Local) Acquire(_ context.Context, key string) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, ErrHeld
	}
	lease := &localLease{owner: l, key: key}
	l.held[key] = lease
	return lease, nil
}

type localLease struct {
	owner *Local
	key   string
}

func (l *localLease) Key() string { return l.key }

func (l *localLease) Err() error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()

	if l.owner.held[l.key] != l {
		return ErrLost
	}
	return nil
}

func (l *localLease) Release(context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()

	if l.owner.held[l.key] != l {
		return ErrLost
	}
	delete(l.owner.held, l.key)
	return nil
}

var _ Locker = (*Local)(nil)

// Package lock provides single-writer leases keyed by continuous symbol.
// A trader instance only touches the trade state of a symbol while it holds
// the symbol's lease.
package lock

import (
	"context"
	"errors"
)

// ErrHeld is returned when another owner holds the lease.
var ErrHeld = errors.New("lease held by another owner")

// ErrLost is returned when releasing or refreshing a lease this owner no longer holds.
var ErrLost = errors.New("lease lost")

// Lease is a held lock.
type Lease interface {
	Key() string
	// Err returns ErrLost once the lease may be held by someone else, nil
	// while it is still ours. A lost lease must not guard further writes.
	Err() error
	// Release gives the lease up. Releasing twice returns ErrLost.
	Release(ctx context.Context) error
}

// Locker hands out leases.
type Locker interface {
	// Acquire takes the lease of key or returns ErrHeld without blocking.
	Acquire(ctx context.Context, key string) (Lease, error)
}

// Key returns the lease key of a continuous symbol.
func Key(continuous string) string {
	return "futures-trader:lease:" + continuous
}

// Package store holds the client-side state of one authenticated session:
// the user's notifications and their open conversations. Both stores merge
// an initial fetch with pushes from the live channel and deduplicate by
// record identity.
package store

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// signal is a coalescing change notification: any number of changes between
// two receives collapse into one.
type signal chan struct{}

func newSignal() signal { return make(signal, 1) }

func (s signal) notify() {
	select {
	case s <- struct{}{}:
	default:
	}
}

type clock func() time.Time

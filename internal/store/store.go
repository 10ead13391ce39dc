// Package store provides whole-document snapshot storage for confirmed
// slots and in-flight holds. Every implementation exposes the same get-all /
// put-all contract; consistency across concurrent readers and writers is the
// booking engine's job, not the store's.
package store

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/reservd/internal/model"
)

// Store is the snapshot contract shared by all backends.
type Store interface {
	LoadSlots(ctx context.Context) ([]model.Slot, error)
	SaveSlots(ctx context.Context, slots []model.Slot) error
	LoadHolds(ctx context.Context) (model.HoldDocument, error)
	SaveHolds(ctx context.Context, doc model.HoldDocument) error

	// Ping reports whether the backend is reachable, for /readyz.
	Ping(ctx context.Context) error
}

// ErrUnavailable wraps backend read/write failures so callers can surface a
// uniform infrastructure error without leaking backend detail.
type ErrUnavailable struct {
	Op  string
	Err error
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.Op, e.Err)
}

func (e *ErrUnavailable) Unwrap() error {
	return e.Err
}

func unavailable(op string, err error) error {
	return &ErrUnavailable{Op: op, Err: err}
}

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

var (
	_ Store     = (*Guard)(nil)
	_ Defaulter = (*Guard)(nil)
)

// Guard wraps a [Store] and makes its failures non-fatal: a failed read
// returns the fallback origin and a failed write is logged and dropped. A
// database outage then costs the origin carry-over, not the whole query.
//
// IsDegraded reports whether the most recent call failed.
type Guard struct {
	store    Store
	fallback string
	degraded atomic.Bool
}

// NewGuard returns a [Guard] around store. fallback is returned when a read
// fails.
func NewGuard(store Store, fallback string) *Guard {
	return &Guard{store: store, fallback: fallback}
}

// DefaultOrigin implements [Defaulter]. It is the fallback origin.
func (g *Guard) DefaultOrigin() string { return g.fallback }

// LastOrigin implements [Store].
func (g *Guard) LastOrigin(ctx context.Context, id string) (string, error) {
	origin, err := g.store.LastOrigin(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEmptyID) {
			return "", err
		}
		g.degraded.Store(true)
		slog.WarnContext(ctx, "session store read failed, using fallback origin",
			"session_id", id, "fallback", g.fallback, "err", err)
		return g.fallback, nil
	}
	g.degraded.Store(false)
	return origin, nil
}

// SetLastOrigin implements [Store].
func (g *Guard) SetLastOrigin(ctx context.Context, id, station string) error {
	if err := g.store.SetLastOrigin(ctx, id, station); err != nil {
		if errors.Is(err, ErrEmptyID) {
			return err
		}
		g.degraded.Store(true)
		slog.WarnContext(ctx, "session store write failed, origin not recorded",
			"session_id", id, "origin", station, "err", err)
		return nil
	}
	g.degraded.Store(false)
	return nil
}

// IsDegraded reports whether the last operation on the wrapped store failed.
func (g *Guard) IsDegraded() bool {
	return g.degraded.Load()
}

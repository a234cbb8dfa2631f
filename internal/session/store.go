// Package session keeps the per-conversation state that survives between
// utterances: the last origin station a user resolved.
//
// Each session ID owns its own slot, so concurrent conversations never see
// each other's origin. [ApplyOrigin] is the only place the pipeline reads
// or writes the slot.
package session

import (
	"context"
	"errors"
)

// ErrEmptyID is returned when a store is called without a session ID.
var ErrEmptyID = errors.New("session: empty session id")

// Store holds the last known origin per session.
//
// LastOrigin returns the default origin configured for the store when the
// session has never resolved one; the empty string means no fallback.
type Store interface {
	LastOrigin(ctx context.Context, id string) (string, error)
	SetLastOrigin(ctx context.Context, id, station string) error
}

// Defaulter is implemented by stores that know the origin reported for
// sessions that never resolved one.
type Defaulter interface {
	DefaultOrigin() string
}

package session

import (
	"context"
	"fmt"

	"github.com/MrWong99/railvox/internal/nlu"
)

// ApplyOrigin carries the session's origin across utterances.
//
// For requests with an origin field: an empty origin is filled from store
// (unless the stored station is the request's destination), and a resolved
// origin is recorded as the new last origin. Other requests pass through
// untouched.
//
// An anonymous query (empty id) records nothing; a missing origin is filled
// with the store's default origin when the store is a [Defaulter].
func ApplyOrigin(ctx context.Context, store Store, id string, req nlu.Request) (nlu.Request, error) {
	if store == nil {
		return req, nil
	}
	origin, destination, ok := nlu.Endpoints(req)
	if !ok {
		return req, nil
	}

	if id == "" {
		d, ok := store.(Defaulter)
		if origin != "" || !ok {
			return req, nil
		}
		return withFallback(req, d.DefaultOrigin(), destination), nil
	}

	if origin != "" {
		if err := store.SetLastOrigin(ctx, id, origin); err != nil {
			return req, fmt.Errorf("session: record origin: %w", err)
		}
		return req, nil
	}

	last, err := store.LastOrigin(ctx, id)
	if err != nil {
		return req, fmt.Errorf("session: load origin: %w", err)
	}
	return withFallback(req, last, destination), nil
}

func withFallback(req nlu.Request, origin, destination string) nlu.Request {
	if origin == "" || origin == destination {
		return req
	}
	return nlu.WithOrigin(req, origin)
}

// Package cache wraps an embeddings.Provider with an in-process LRU cache and
// an optional persistent Store.
//
// Utterances repeat a lot in a voice assistant ("next train to Mumbai"), and
// example phrases are re-embedded on every start. The in-process layer
// answers repeated texts without a backend call; the Store layer (see
// package pgstore) survives restarts. Concurrent misses for the same text
// share a single backend call.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/railvox/pkg/provider/embeddings"
)

// DefaultSize is the number of vectors kept in memory when no size is set.
const DefaultSize = 4096

// Store persists vectors keyed by model ID and text.
type Store interface {
	// Get returns the stored vector. ok is false when there is none.
	Get(ctx context.Context, model, text string) (vec []float32, ok bool, err error)

	// Put stores vec, replacing any previous value.
	Put(ctx context.Context, model, text string, vec []float32) error
}

// Stats counts cache outcomes since construction.
type Stats struct {
	Hits       int64 // answered from memory
	StoreHits  int64 // answered from the persistent store
	Misses     int64 // sent to the wrapped provider
	StoreFails int64 // store errors, treated as misses
}

var _ embeddings.Provider = (*Provider)(nil)

// Provider is a caching embeddings.Provider. Returned vectors are shared with
// the cache and must not be modified.
type Provider struct {
	next  embeddings.Provider
	lru   *expirable.LRU[string, []float32]
	store Store
	group singleflight.Group

	hits, storeHits, misses, storeFails atomic.Int64
}

type config struct {
	size  int
	ttl   time.Duration
	store Store
}

// Option is a functional option for Provider.
type Option func(*config)

// WithSize sets the number of in-memory entries. Default: DefaultSize.
func WithSize(n int) Option {
	return func(c *config) {
		c.size = n
	}
}

// WithTTL expires in-memory entries after d. Zero keeps them until evicted.
func WithTTL(d time.Duration) Option {
	return func(c *config) {
		c.ttl = d
	}
}

// WithStore adds a persistent second-level store.
func WithStore(s Store) Option {
	return func(c *config) {
		c.store = s
	}
}

// New wraps next with a cache.
func New(next embeddings.Provider, opts ...Option) (*Provider, error) {
	if next == nil {
		return nil, fmt.Errorf("embeddings cache: wrapped provider is nil")
	}
	cfg := &config{size: DefaultSize}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.size <= 0 {
		return nil, fmt.Errorf("embeddings cache: size must be positive, got %d", cfg.size)
	}
	return &Provider{
		next:  next,
		lru:   expirable.NewLRU[string, []float32](cfg.size, nil, cfg.ttl),
		store: cfg.store,
	}, nil
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := p.key(text)
	if vec, ok := p.lru.Get(key); ok {
		p.hits.Add(1)
		return vec, nil
	}

	v, err, _ := p.group.Do(key, func() (any, error) {
		if vec, ok := p.fromStore(ctx, text); ok {
			p.lru.Add(key, vec)
			return vec, nil
		}
		p.misses.Add(1)
		vec, err := p.next.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		p.remember(ctx, text, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// EmbedBatch implements embeddings.Provider. Only the texts missing from
// both cache levels are sent to the wrapped provider, in one batch.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := p.lru.Get(p.key(text)); ok {
			p.hits.Add(1)
			out[i] = vec
			continue
		}
		if vec, ok := p.fromStore(ctx, text); ok {
			p.lru.Add(p.key(text), vec)
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	p.misses.Add(int64(len(missing)))
	vecs, err := p.next.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("embeddings cache: expected %d vectors, got %d", len(missing), len(vecs))
	}
	for j, vec := range vecs {
		p.remember(ctx, missing[j], vec)
		out[missingIdx[j]] = vec
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int { return p.next.Dimensions() }

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return p.next.ModelID() }

// Len returns the number of in-memory entries.
func (p *Provider) Len() int { return p.lru.Len() }

// Stats returns a snapshot of the cache counters.
func (p *Provider) Stats() Stats {
	return Stats{
		Hits:       p.hits.Load(),
		StoreHits:  p.storeHits.Load(),
		Misses:     p.misses.Load(),
		StoreFails: p.storeFails.Load(),
	}
}

func (p *Provider) key(text string) string {
	return p.next.ModelID() + "\x00" + text
}

func (p *Provider) fromStore(ctx context.Context, text string) ([]float32, bool) {
	if p.store == nil {
		return nil, false
	}
	vec, ok, err := p.store.Get(ctx, p.next.ModelID(), text)
	if err != nil {
		p.storeFails.Add(1)
		slog.WarnContext(ctx, "embedding store lookup failed", "model", p.next.ModelID(), "err", err)
		return nil, false
	}
	if ok {
		p.storeHits.Add(1)
	}
	return vec, ok
}

// remember adds vec to memory and, best effort, to the store.
func (p *Provider) remember(ctx context.Context, text string, vec []float32) {
	p.lru.Add(p.key(text), vec)
	if p.store == nil {
		return
	}
	if err := p.store.Put(ctx, p.next.ModelID(), text, vec); err != nil {
		p.storeFails.Add(1)
		slog.WarnContext(ctx, "embedding store write failed", "model", p.next.ModelID(), "err", err)
	}
}

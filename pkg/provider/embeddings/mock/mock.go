// Package mock provides a test double for embeddings.Provider.
//
// Provider either returns fixed vectors or derives them from the input text
// through EmbedFunc, and records every text it was asked to embed:
//
//	p := &mock.Provider{
//	    EmbedFunc:       func(text string) []float32 { return []float32{float32(len(text))} },
//	    DimensionsValue: 1,
//	}
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/railvox/pkg/provider/embeddings"
)

// Provider is a mock implementation of embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	// EmbedFunc, if set, computes the vector for each text. It takes
	// precedence over EmbedResult and EmbedBatchResult.
	EmbedFunc func(text string) []float32

	// EmbedResult is returned by Embed when EmbedFunc is nil.
	EmbedResult []float32

	// EmbedBatchResult is returned by EmbedBatch when EmbedFunc is nil. When
	// both are nil, EmbedBatch returns one nil vector per input text.
	EmbedBatchResult [][]float32

	// Err, if non-nil, is returned by Embed and EmbedBatch.
	Err error

	DimensionsValue int
	ModelIDValue    string

	// EmbedCalls holds the text of every Embed call in order.
	EmbedCalls []string

	// EmbedBatchCalls holds a copy of the texts of every EmbedBatch call.
	EmbedBatchCalls [][]string
}

var _ embeddings.Provider = (*Provider)(nil)

// Embed records the call and returns the configured vector.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, text)
	if p.Err != nil {
		return nil, p.Err
	}
	if p.EmbedFunc != nil {
		return p.EmbedFunc(text), nil
	}
	return p.EmbedResult, nil
}

// EmbedBatch records the call and returns the configured vectors.
func (p *Provider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, slices.Clone(texts))
	if p.Err != nil {
		return nil, p.Err
	}
	if p.EmbedFunc != nil {
		out := make([][]float32, len(texts))
		for i, t := range texts {
			out[i] = p.EmbedFunc(t)
		}
		return out, nil
	}
	if p.EmbedBatchResult != nil {
		return p.EmbedBatchResult, nil
	}
	return make([][]float32, len(texts)), nil
}

// Dimensions returns DimensionsValue.
func (p *Provider) Dimensions() int { return p.DimensionsValue }

// ModelID returns ModelIDValue.
func (p *Provider) ModelID() string { return p.ModelIDValue }

// EmbeddedTexts returns the texts seen by Embed followed by those seen by
// EmbedBatch.
func (p *Provider) EmbeddedTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := slices.Clone(p.EmbedCalls)
	for _, batch := range p.EmbedBatchCalls {
		out = append(out, batch...)
	}
	return out
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = nil
	p.EmbedBatchCalls = nil
}

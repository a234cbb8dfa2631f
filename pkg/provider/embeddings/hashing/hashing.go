// Package hashing provides a local, deterministic embeddings provider based
// on feature hashing.
//
// Each word and each character trigram of a word is hashed into one of a
// fixed number of buckets with a hash-derived sign, and the resulting vector
// is L2-normalised. Texts that share words or word fragments end up close in
// cosine space, which is enough to classify short railway queries against a
// handful of example phrases without any model server.
package hashing

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/cases"

	"github.com/MrWong99/railvox/pkg/provider/embeddings"
)

// DefaultDimensions is the vector length used when none is configured.
const DefaultDimensions = 512

var _ embeddings.Provider = (*Provider)(nil)

// Provider implements embeddings.Provider without network access. It is
// stateless and safe for concurrent use.
type Provider struct {
	dims      int
	trigrams  bool
	wordScale float64
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithoutTrigrams restricts features to whole words.
func WithoutTrigrams() Option {
	return func(p *Provider) {
		p.trigrams = false
	}
}

// WithWordWeight scales whole-word features relative to trigram features.
// Default: 2.
func WithWordWeight(w float64) Option {
	return func(p *Provider) {
		p.wordScale = w
	}
}

// New returns a hashing Provider producing vectors of length dims. Zero
// selects DefaultDimensions.
func New(dims int, opts ...Option) (*Provider, error) {
	if dims == 0 {
		dims = DefaultDimensions
	}
	if dims < 0 {
		return nil, fmt.Errorf("hashing embeddings: dimensions must be positive, got %d", dims)
	}
	p := &Provider{
		dims:      dims,
		trigrams:  true,
		wordScale: 2,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Embed implements embeddings.Provider. It never fails except on a
// cancelled context.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("hashing embeddings: %w", err)
	}
	return p.vector(text), nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("hashing embeddings: %w", err)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vector(t)
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int { return p.dims }

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	if p.trigrams {
		return fmt.Sprintf("hashing-w%g-t3-%d", p.wordScale, p.dims)
	}
	return fmt.Sprintf("hashing-w%g-%d", p.wordScale, p.dims)
}

func (p *Provider) vector(text string) []float32 {
	acc := make([]float64, p.dims)
	add := func(feature string, weight float64) {
		h := xxhash.Sum64String(feature)
		idx := h % uint64(p.dims)
		if h>>63 == 1 {
			weight = -weight
		}
		acc[idx] += weight
	}

	for _, w := range words(cases.Fold().String(text)) {
		add("w:"+w, p.wordScale)
		if !p.trigrams {
			continue
		}
		padded := []rune("^" + w + "$")
		for i := 0; i+3 <= len(padded); i++ {
			add("t:"+string(padded[i:i+3]), 1)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	out := make([]float32, p.dims)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

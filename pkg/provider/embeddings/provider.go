// Package embeddings defines the Provider interface for text embedding backends.
//
// The intent classifier embeds every example phrase once at start-up and each
// incoming utterance once per query, then ranks intents by vector similarity.
// Any backend that maps text to a dense float32 vector can serve that role:
// a hosted model (openai), a local server (ollama) or the dependency-free
// hashing embedder used for offline runs and tests.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by one Provider share the length reported by
// Dimensions. Vectors from different providers must not be compared.
type Provider interface {
	// Embed returns the vector for a single text. The text is passed to the
	// backend verbatim.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order, using as few
	// backend calls as possible. On error the whole result is nil.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length of this provider.
	Dimensions() int

	// ModelID identifies the embedding model (e.g. "text-embedding-3-small").
	// Caches key their entries on it.
	ModelID() string
}

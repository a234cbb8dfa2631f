package nlu

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/railvox/pkg/provider/embeddings"
)

// Classification is the outcome of [Classifier.Classify].
type Classification struct {
	// Intent is the winning intent.
	Intent Intent `json:"intent"`

	// Confidence is the best similarity between the utterance and any example
	// of Intent, in [0, 1].
	Confidence float64 `json:"confidence"`
}

// SimilarityFunc scores two embedding vectors. Results are clamped to [0, 1].
type SimilarityFunc func(a, b []float32) float64

// ClassifierOption configures a [Classifier].
type ClassifierOption func(*Classifier)

// WithSimilarity replaces the default cosine similarity.
func WithSimilarity(fn SimilarityFunc) ClassifierOption {
	return func(c *Classifier) {
		c.similarity = fn
	}
}

// WithMinConfidence sets a rejection threshold. When the best score is below
// threshold the classifier answers [IntentGeneral] with the measured
// confidence. Zero disables rejection, which is the default.
func WithMinConfidence(threshold float64) ClassifierOption {
	return func(c *Classifier) {
		c.minConfidence = threshold
	}
}

// intentRefs holds the embedded example phrases of one intent.
type intentRefs struct {
	intent  Intent
	vectors [][]float32
}

// Classifier assigns one of [Intents] to an utterance by semantic similarity.
//
// Example phrases are embedded once in [NewClassifier]; Classify issues a
// single embedding call per utterance. A Classifier is read-only after
// construction and safe for concurrent use.
type Classifier struct {
	emb           embeddings.Provider
	refs          []intentRefs
	similarity    SimilarityFunc
	minConfidence float64
}

// NewClassifier embeds examples with emb and returns a ready [Classifier].
// Intents are embedded concurrently, one batch call per intent.
func NewClassifier(ctx context.Context, emb embeddings.Provider, examples Examples, opts ...ClassifierOption) (*Classifier, error) {
	if emb == nil {
		return nil, fmt.Errorf("nlu: classifier: embeddings provider is nil")
	}
	if err := examples.Validate(); err != nil {
		return nil, err
	}

	c := &Classifier{
		emb:        emb,
		similarity: Cosine,
	}
	for _, o := range opts {
		o(c)
	}

	var present []Intent
	for _, intent := range Intents {
		if len(examples[intent]) > 0 {
			present = append(present, intent)
		}
	}
	if len(present) == 0 {
		return nil, fmt.Errorf("nlu: classifier: no example phrases")
	}

	refs := make([]intentRefs, len(present))
	g, gctx := errgroup.WithContext(ctx)
	for i, intent := range present {
		g.Go(func() error {
			vecs, err := emb.EmbedBatch(gctx, examples[intent])
			if err != nil {
				return fmt.Errorf("nlu: classifier: embed examples for %s: %w", intent, err)
			}
			if len(vecs) != len(examples[intent]) {
				return fmt.Errorf("nlu: classifier: %s: expected %d vectors, got %d", intent, len(examples[intent]), len(vecs))
			}
			refs[i] = intentRefs{intent: intent, vectors: vecs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.refs = refs
	return c, nil
}

// Classify returns the intent whose examples are most similar to utterance.
//
// There is always a winner: an unrelated utterance still receives the label
// with the highest score unless a minimum confidence was configured. Equal
// scores resolve to the intent declared first in [Intents].
func (c *Classifier) Classify(ctx context.Context, utterance string) (Classification, error) {
	vec, err := c.emb.Embed(ctx, utterance)
	if err != nil {
		return Classification{}, fmt.Errorf("nlu: classify: %w", err)
	}

	best := Classification{Intent: c.refs[0].intent, Confidence: -1}
	for _, r := range c.refs {
		score := 0.0
		for _, ex := range r.vectors {
			if s := clamp01(c.similarity(vec, ex)); s > score {
				score = s
			}
		}
		if score > best.Confidence {
			best = Classification{Intent: r.intent, Confidence: score}
		}
	}

	if c.minConfidence > 0 && best.Confidence < c.minConfidence {
		best.Intent = IntentGeneral
	}
	return best, nil
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length or zero norm score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

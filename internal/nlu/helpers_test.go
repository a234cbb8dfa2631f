package nlu

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/railvox/pkg/provider/embeddings"
)

// keywordEmbedder embeds text as a binary bag over a fixed vocabulary: axis i
// is 1 when vocab[i] occurs in the lower-cased text.
type keywordEmbedder struct {
	vocab []string
	err   error
}

var _ embeddings.Provider = keywordEmbedder{}

func (k keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if k.err != nil {
		return nil, k.err
	}
	lower := strings.ToLower(text)
	v := make([]float32, len(k.vocab))
	for i, w := range k.vocab {
		if strings.Contains(lower, w) {
			v[i] = 1
		}
	}
	return v, nil
}

func (k keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := k.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (k keywordEmbedder) Dimensions() int { return len(k.vocab) }
func (k keywordEmbedder) ModelID() string { return "keyword-test" }

// testStations is a small gazetteer without names that overlap common
// English words.
var testStations = []string{"Kannur", "Kozhikode", "Mumbai", "Chennai", "Thrissur", "Ernakulam", "New Delhi"}

// noDates is a DateParser that never finds a date.
var noDates = DateParserFunc(func(string, time.Time) (time.Time, bool) { return time.Time{}, false })

func newTestMatcher(t *testing.T, opts ...MatcherOption) *Matcher {
	t.Helper()
	g, err := NewGazetteer(testStations)
	if err != nil {
		t.Fatalf("NewGazetteer: %v", err)
	}
	return NewMatcher(g, append([]MatcherOption{WithDateParser(noDates)}, opts...)...)
}

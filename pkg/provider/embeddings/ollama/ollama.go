// Package ollama provides an embeddings provider backed by a local Ollama
// server through its native /api/embed endpoint.
//
// Multilingual models such as bge-m3 or paraphrase-multilingual let the
// classifier score utterances that were not fully translated to English.
//
//	p, err := ollama.New("", "bge-m3") // http://localhost:11434
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/railvox/pkg/provider/embeddings"
)

// DefaultBaseURL is the address of a locally running Ollama instance.
const DefaultBaseURL = "http://localhost:11434"

var _ embeddings.Provider = (*Provider)(nil)

// Provider implements embeddings.Provider using a local Ollama server.
//
// The vector length comes from WithDimensions, else from a table of known
// models, else from a single probe request issued on the first Dimensions
// call.
type Provider struct {
	baseURL    string
	model      string
	keepAlive  string
	truncate   *bool
	httpClient *http.Client

	dimensions int
	detectOnce sync.Once
}

type config struct {
	timeout    time.Duration
	dimensions int
	keepAlive  string
	truncate   *bool
}

// Option is a functional option for Provider.
type Option func(*config)

// WithTimeout sets a per-request HTTP timeout. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithDimensions pre-sets the vector length and avoids the probe request.
func WithDimensions(dims int) Option {
	return func(c *config) {
		c.dimensions = dims
	}
}

// WithKeepAlive controls how long Ollama keeps the model loaded after a
// request, e.g. "30m" or "-1" for forever.
func WithKeepAlive(d string) Option {
	return func(c *config) {
		c.keepAlive = d
	}
}

// WithTruncate controls whether inputs longer than the model context are
// truncated (true, Ollama's default) or rejected.
func WithTruncate(truncate bool) Option {
	return func(c *config) {
		c.truncate = &truncate
	}
}

// New constructs an Ollama Provider. An empty baseURL selects
// DefaultBaseURL; model must be set.
func New(baseURL string, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama embeddings: model must not be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		keepAlive:  cfg.keepAlive,
		truncate:   cfg.truncate,
		httpClient: &http.Client{Timeout: cfg.timeout},
		dimensions: cfg.dimensions,
	}
	if p.dimensions == 0 {
		p.dimensions = knownDimensions(model)
	}
	return p, nil
}

type embedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	KeepAlive string   `json:"keep_alive,omitempty"`
	Truncate  *bool    `json:"truncate,omitempty"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.callEmbed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: embed: %w", err)
	}
	return vecs[0], nil
}

// EmbedBatch implements embeddings.Provider with a single request. An empty
// input returns (nil, nil) without contacting the server.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := p.callEmbed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: embed batch: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("ollama embeddings: embed batch: expected %d embeddings, got %d", len(texts), len(vecs))
	}
	return vecs, nil
}

// Dimensions implements embeddings.Provider. For unknown models the first
// call probes the server once; if the probe fails it returns 0.
func (p *Provider) Dimensions() int {
	p.detectOnce.Do(func() {
		if p.dimensions != 0 {
			return
		}
		vecs, err := p.callEmbed(context.Background(), []string{"probe"})
		if err == nil {
			p.dimensions = len(vecs[0])
		}
	})
	return p.dimensions
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	return p.model
}

func (p *Provider) callEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{
		Model:     p.model,
		Input:     texts,
		KeepAlive: p.keepAlive,
		Truncate:  p.truncate,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embeddings in response")
	}
	return result.Embeddings, nil
}

// knownDimensions returns 0 for models that must be probed.
func knownDimensions(model string) int {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "nomic-embed-text"):
		return 768
	case strings.Contains(lower, "paraphrase-multilingual"):
		return 768
	case strings.Contains(lower, "mxbai-embed-large"), strings.Contains(lower, "bge-m3"):
		return 1024
	case strings.Contains(lower, "all-minilm"):
		return 384
	default:
		return 0
	}
}

// Package openai provides a Translator backed by the OpenAI chat
// completions API or any server implementing it (vLLM, llama.cpp, Ollama's
// OpenAI-compatible endpoint).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/railvox/pkg/provider/translate"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

var _ translate.Translator = (*Provider)(nil)

// Provider implements translate.Translator using chat completions.
type Provider struct {
	client oai.Client
	model  string
}

type config struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries sets how often the client retries failed requests.
// Default: 2.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// New constructs a Provider. An empty model selects DefaultModel.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai translate: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}
	cfg := &config{maxRetries: 2}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.maxRetries),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Translate implements translate.Translator.
func (p *Provider) Translate(ctx context.Context, text, from, to string) (string, error) {
	if translate.Same(from, to) || strings.TrimSpace(text) == "" {
		return text, nil
	}

	resp, err := p.client.Chat.Completions.New(ctx, p.buildParams(text, from, to))
	if err != nil {
		return "", fmt.Errorf("openai translate: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai translate: empty choices in response")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("openai translate: empty translation")
	}
	return out, nil
}

func (p *Provider) buildParams(text, from, to string) oai.ChatCompletionNewParams {
	return oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(translate.SystemPrompt(from, to)),
			oai.UserMessage(text),
		},
		Temperature: param.NewOpt(0.0),
	}
}

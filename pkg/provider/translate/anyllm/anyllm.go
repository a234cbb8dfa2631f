// Package anyllm provides a Translator backed by
// github.com/mozilla-ai/any-llm-go, so any chat model it supports (OpenAI,
// Anthropic, Gemini, Ollama, Mistral, Groq, llama.cpp and more) can
// translate queries.
//
//	tr, err := anyllm.New("anthropic", "claude-3-5-haiku-latest", anyllmlib.WithAPIKey(key))
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/railvox/pkg/provider/translate"
)

var _ translate.Translator = (*Provider)(nil)

// Backends lists the accepted backend names.
var Backends = []string{"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"}

// completeFunc sends one completion and returns the first choice's text.
type completeFunc func(ctx context.Context, params anyllmlib.CompletionParams) (string, error)

// Provider implements translate.Translator on top of any-llm-go.
type Provider struct {
	complete completeFunc
	model    string
}

// New creates a Provider for the named backend. Without an API key option
// the backend reads its usual environment variable (OPENAI_API_KEY,
// ANTHROPIC_API_KEY, ...).
func New(backend, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if model == "" {
		return nil, errors.New("anyllm: model must not be empty")
	}
	b, err := createBackend(backend, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", backend, err)
	}
	complete := func(ctx context.Context, params anyllmlib.CompletionParams) (string, error) {
		resp, err := b.Completion(ctx, params)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("empty choices in response")
		}
		return resp.Choices[0].Message.ContentString(), nil
	}
	return &Provider{complete: complete, model: model}, nil
}

func createBackend(name string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(name) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported backend %q; supported: %s", name, strings.Join(Backends, ", "))
	}
}

// Translate implements translate.Translator.
func (p *Provider) Translate(ctx context.Context, text, from, to string) (string, error) {
	if translate.Same(from, to) || strings.TrimSpace(text) == "" {
		return text, nil
	}
	out, err := p.complete(ctx, p.buildParams(text, from, to))
	if err != nil {
		return "", fmt.Errorf("anyllm: completion: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("anyllm: empty translation")
	}
	return out, nil
}

func (p *Provider) buildParams(text, from, to string) anyllmlib.CompletionParams {
	temperature := 0.0
	return anyllmlib.CompletionParams{
		Model: p.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: translate.SystemPrompt(from, to)},
			{Role: anyllmlib.RoleUser, Content: text},
		},
		Temperature: &temperature,
	}
}

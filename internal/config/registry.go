package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/railvox/pkg/provider/embeddings"
	"github.com/MrWong99/railvox/pkg/provider/stt"
	"github.com/MrWong99/railvox/pkg/provider/translate"
	"github.com/MrWong99/railvox/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// factories maps provider names of one kind to their constructors.
type factories[T any] map[string]func(ProviderEntry) (T, error)

func create[T any](mu *sync.RWMutex, f factories[T], kind string, entry ProviderEntry) (T, error) {
	mu.RLock()
	factory, ok := f[entry.Name]
	mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return factory(entry)
}

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	embeddings factories[embeddings.Provider]
	stt        factories[stt.Transcriber]
	translate  factories[translate.Translator]
	tts        factories[tts.Synthesizer]
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		embeddings: make(factories[embeddings.Provider]),
		stt:        make(factories[stt.Transcriber]),
		translate:  make(factories[translate.Translator]),
		tts:        make(factories[tts.Synthesizer]),
	}
}

// RegisterEmbeddings registers an embeddings provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterEmbeddings(name string, factory func(ProviderEntry) (embeddings.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = factory
}

// RegisterSTT registers a speech-to-text factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTranslate registers a translator factory under name.
func (r *Registry) RegisterTranslate(name string, factory func(ProviderEntry) (translate.Translator, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translate[name] = factory
}

// RegisterTTS registers a text-to-speech factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Synthesizer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// CreateEmbeddings instantiates an embeddings provider using the factory
// registered under entry.Name. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	return create(&r.mu, r.embeddings, "embeddings", entry)
}

// CreateSTT instantiates a speech-to-text provider.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Transcriber, error) {
	return create(&r.mu, r.stt, "stt", entry)
}

// CreateTranslate instantiates a translator.
func (r *Registry) CreateTranslate(entry ProviderEntry) (translate.Translator, error) {
	return create(&r.mu, r.translate, "translate", entry)
}

// CreateTTS instantiates a text-to-speech provider.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Synthesizer, error) {
	return create(&r.mu, r.tts, "tts", entry)
}

// Names returns the registered provider names per kind.
func (r *Registry) Names() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string][]string{
		"embeddings": keys(r.embeddings),
		"stt":        keys(r.stt),
		"translate":  keys(r.translate),
		"tts":        keys(r.tts),
	}
}

func keys[T any](f factories[T]) []string {
	out := make([]string, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	return out
}

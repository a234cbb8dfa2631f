// Package tts defines the Synthesizer interface for text-to-speech backends.
//
// The assistant speaks one reply per query, so synthesis is a single call
// that returns the whole clip. Backends that work sentence by sentence can
// use [SynthesizeSentences] to fan the sentences out and stitch the audio
// back together in order.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/MrWong99/railvox/pkg/audio"
)

// Synthesizer is the abstraction over any TTS backend.
type Synthesizer interface {
	// Synthesize renders text, written in language (ISO 639-1), as speech.
	// Backends pick the voice configured for language and fall back to their
	// default voice.
	Synthesize(ctx context.Context, text, language string) (audio.Clip, error)
}

// Voices maps an ISO 639-1 language code to a backend voice identifier.
type Voices map[string]string

// For returns the voice for language, or fallback when none is configured.
func (v Voices) For(language, fallback string) string {
	if id, ok := v[language]; ok && id != "" {
		return id
	}
	return fallback
}

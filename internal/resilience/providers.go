package resilience

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrWong99/railvox/pkg/audio"
	"github.com/MrWong99/railvox/pkg/provider/stt"
	"github.com/MrWong99/railvox/pkg/provider/translate"
	"github.com/MrWong99/railvox/pkg/provider/tts"
)

var (
	_ translate.Translator = (*Translator)(nil)
	_ stt.Transcriber      = (*Transcriber)(nil)
	_ tts.Synthesizer      = (*Synthesizer)(nil)
)

// Translator implements [translate.Translator] with failover across
// backends. With PassThrough enabled an exhausted group returns the input
// text unchanged instead of an error, so an English-speaking backend still
// sees the query and the reply is still produced.
type Translator struct {
	group       *FallbackGroup[translate.Translator]
	passThrough bool
}

// NewTranslator creates a [Translator] with primary as the preferred backend.
func NewTranslator(primary translate.Translator, primaryName string, cfg FallbackConfig) *Translator {
	return &Translator{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another backend.
func (t *Translator) AddFallback(name string, tr translate.Translator) {
	t.group.AddFallback(name, tr)
}

// PassThrough makes the translator degrade to returning the input text when
// every backend fails.
func (t *Translator) PassThrough(enabled bool) { t.passThrough = enabled }

// Group returns the underlying group.
func (t *Translator) Group() *FallbackGroup[translate.Translator] { return t.group }

// Translate implements translate.Translator.
func (t *Translator) Translate(ctx context.Context, text, from, to string) (string, error) {
	out, err := ExecuteWithResult(ctx, t.group, func(ctx context.Context, tr translate.Translator) (string, error) {
		return tr.Translate(ctx, text, from, to)
	})
	if err != nil && t.passThrough && errors.Is(err, ErrAllFailed) {
		slog.WarnContext(ctx, "translation unavailable, passing text through", "from", from, "to", to, "err", err)
		return text, nil
	}
	return out, err
}

// Transcriber implements [stt.Transcriber] with failover across backends.
// [stt.ErrNoSpeech] is a property of the audio, so it is returned at once
// without trying the next backend.
type Transcriber struct {
	group *FallbackGroup[stt.Transcriber]
}

// NewTranscriber creates a [Transcriber] with primary as the preferred
// backend.
func NewTranscriber(primary stt.Transcriber, primaryName string, cfg FallbackConfig) *Transcriber {
	return &Transcriber{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another backend.
func (t *Transcriber) AddFallback(name string, tr stt.Transcriber) {
	t.group.AddFallback(name, tr)
}

// Group returns the underlying group.
func (t *Transcriber) Group() *FallbackGroup[stt.Transcriber] { return t.group }

// Transcribe implements stt.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte, hint string) (stt.Transcript, error) {
	var noSpeech bool
	tr, err := ExecuteWithResult(ctx, t.group, func(ctx context.Context, p stt.Transcriber) (stt.Transcript, error) {
		tr, err := p.Transcribe(ctx, pcm, hint)
		if errors.Is(err, stt.ErrNoSpeech) {
			noSpeech = true
			// Silence is not a backend failure.
			return stt.Transcript{}, nil
		}
		return tr, err
	})
	if noSpeech {
		return stt.Transcript{}, stt.ErrNoSpeech
	}
	return tr, err
}

// Synthesizer implements [tts.Synthesizer] with failover across backends.
type Synthesizer struct {
	group *FallbackGroup[tts.Synthesizer]
}

// NewSynthesizer creates a [Synthesizer] with primary as the preferred
// backend.
func NewSynthesizer(primary tts.Synthesizer, primaryName string, cfg FallbackConfig) *Synthesizer {
	return &Synthesizer{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another backend.
func (s *Synthesizer) AddFallback(name string, syn tts.Synthesizer) {
	s.group.AddFallback(name, syn)
}

// Group returns the underlying group.
func (s *Synthesizer) Group() *FallbackGroup[tts.Synthesizer] { return s.group }

// Synthesize implements tts.Synthesizer. [tts.ErrEmptyText] is returned
// without failover.
func (s *Synthesizer) Synthesize(ctx context.Context, text, language string) (audio.Clip, error) {
	var empty bool
	clip, err := ExecuteWithResult(ctx, s.group, func(ctx context.Context, p tts.Synthesizer) (audio.Clip, error) {
		clip, err := p.Synthesize(ctx, text, language)
		if errors.Is(err, tts.ErrEmptyText) {
			empty = true
			return audio.Clip{}, nil
		}
		return clip, err
	})
	if empty {
		return audio.Clip{}, tts.ErrEmptyText
	}
	return clip, err
}

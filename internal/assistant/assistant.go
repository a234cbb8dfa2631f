// Package assistant runs one voice or text query through the whole
// pipeline: speech recognition, translation to English, intent and entity
// resolution, session carry-over, the train-data backend, reply formatting,
// translation back and speech synthesis.
//
// Every stage is wrapped in a span and timed into the stage histogram of
// [observe.Metrics].
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrWong99/railvox/internal/nlu"
	"github.com/MrWong99/railvox/internal/observe"
	"github.com/MrWong99/railvox/internal/railway"
	"github.com/MrWong99/railvox/internal/respond"
	"github.com/MrWong99/railvox/internal/session"
	"github.com/MrWong99/railvox/pkg/audio"
	"github.com/MrWong99/railvox/pkg/provider/stt"
	"github.com/MrWong99/railvox/pkg/provider/translate"
	"github.com/MrWong99/railvox/pkg/provider/tts"
)

var (
	// ErrEmptyInput is returned when an [Input] has neither text nor audio.
	ErrEmptyInput = errors.New("assistant: input has neither text nor audio")

	// ErrNoTranscriber is returned for audio input when no speech
	// recogniser is configured.
	ErrNoTranscriber = errors.New("assistant: no speech recogniser configured")

	// ErrNoSynthesizer is returned when speech is requested but no
	// synthesiser is configured.
	ErrNoSynthesizer = errors.New("assistant: no speech synthesiser configured")
)

// Resolver turns an English utterance into a request. [*nlu.Engine]
// implements it.
type Resolver interface {
	ResolveDetailed(ctx context.Context, utterance string) (*nlu.Resolution, error)
}

// Input is one query.
type Input struct {
	// SessionID keys the origin carry-over. An empty ID records nothing
	// and falls back to the default origin.
	SessionID string `json:"session_id,omitempty"`

	// Text is the typed query. Ignored when Audio is set.
	Text string `json:"text,omitempty"`

	// Audio is a WAV file or 16 kHz mono 16-bit PCM.
	Audio []byte `json:"audio,omitempty"`

	// Language is the ISO 639-1 code of the query. For audio it is a hint
	// to the recogniser; for text, empty means English.
	Language string `json:"language,omitempty"`

	// Speak asks for a spoken reply.
	Speak bool `json:"speak,omitempty"`
}

// Reply is the outcome of a query.
type Reply struct {
	// Transcript is the recognised speech of an audio query.
	Transcript string `json:"transcript,omitempty"`

	// Language is the language of the query and of Text.
	Language string `json:"language"`

	// Utterance is the English text that was resolved.
	Utterance string `json:"utterance"`

	Classification nlu.Classification `json:"classification"`
	Entities       nlu.Entities       `json:"entities"`

	// Request is the routed request after session carry-over.
	Request nlu.Request `json:"request"`

	// Result is the backend answer. Nil for [Assistant.Resolve].
	Result *railway.Result `json:"result,omitempty"`

	// Text is the reply sentence in Language; English holds it before
	// translation.
	Text    string `json:"text,omitempty"`
	English string `json:"english,omitempty"`

	// Audio is the spoken reply as a WAV file.
	Audio []byte `json:"audio,omitempty"`
}

// Option configures an [Assistant].
type Option func(*Assistant)

// WithTranscriber enables audio queries.
func WithTranscriber(t stt.Transcriber) Option {
	return func(a *Assistant) { a.stt = t }
}

// WithTranslator enables non-English queries. Without one, every query is
// treated as English.
func WithTranslator(t translate.Translator) Option {
	return func(a *Assistant) { a.translator = t }
}

// WithSynthesizer enables spoken replies.
func WithSynthesizer(s tts.Synthesizer) Option {
	return func(a *Assistant) { a.tts = s }
}

// WithSessions enables origin carry-over across a session's queries.
func WithSessions(s session.Store) Option {
	return func(a *Assistant) { a.sessions = s }
}

// WithFormatter replaces the default reply formatter.
func WithFormatter(f *respond.Formatter) Option {
	return func(a *Assistant) { a.formatter.Store(f) }
}

// WithMetrics replaces [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

// Assistant answers queries. It is safe for concurrent use.
type Assistant struct {
	resolver   Resolver
	backend    railway.Service
	stt        stt.Transcriber
	translator translate.Translator
	tts        tts.Synthesizer
	sessions   session.Store
	metrics    *observe.Metrics
	formatter  atomic.Pointer[respond.Formatter]
}

// New returns an [Assistant] resolving with r and answering from backend.
func New(r Resolver, backend railway.Service, opts ...Option) (*Assistant, error) {
	if r == nil || backend == nil {
		return nil, errors.New("assistant: resolver and backend are required")
	}
	a := &Assistant{resolver: r, backend: backend}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.formatter.Load() == nil {
		f, err := respond.NewFormatter(nil)
		if err != nil {
			return nil, fmt.Errorf("assistant: %w", err)
		}
		a.formatter.Store(f)
	}
	return a, nil
}

// SetFormatter swaps the reply formatter of a running assistant.
func (a *Assistant) SetFormatter(f *respond.Formatter) { a.formatter.Store(f) }

// Handle answers in.
func (a *Assistant) Handle(ctx context.Context, in Input) (*Reply, error) {
	return a.run(ctx, in, true)
}

// Resolve runs in up to session carry-over and returns the request without
// asking the backend.
func (a *Assistant) Resolve(ctx context.Context, in Input) (*Reply, error) {
	return a.run(ctx, in, false)
}

func (a *Assistant) run(ctx context.Context, in Input, answer bool) (reply *Reply, err error) {
	start := time.Now()
	a.metrics.ActiveQueries.Add(ctx, 1)
	defer func() {
		a.metrics.ActiveQueries.Add(ctx, -1)
		action := string(nlu.ActionUnknown)
		if reply != nil && reply.Request != nil {
			action = string(reply.Request.Action())
		}
		a.metrics.RecordQuery(ctx, action, time.Since(start), err)
	}()

	reply, err = a.understand(ctx, in)
	if err != nil || !answer {
		return reply, err
	}
	if err := a.answer(ctx, reply, in.Speak); err != nil {
		return nil, err
	}
	return reply, nil
}

// Answer asks the backend for an already routed request and formats the
// English reply. Session carry-over and translation are skipped.
func (a *Assistant) Answer(ctx context.Context, req nlu.Request) (reply *Reply, err error) {
	if req == nil {
		return nil, errors.New("assistant: nil request")
	}
	start := time.Now()
	defer func() {
		a.metrics.RecordQuery(ctx, string(req.Action()), time.Since(start), err)
	}()

	reply = &Reply{Language: translate.English, Request: req}
	if err := a.answer(ctx, reply, false); err != nil {
		return nil, err
	}
	return reply, nil
}

// answer runs the backend, format, reply translation and synthesis stages
// for an understood reply.
func (a *Assistant) answer(ctx context.Context, reply *Reply, speak bool) error {
	res, err := stage(ctx, a.metrics, observe.StageBackend, func(ctx context.Context) (railway.Result, error) {
		return a.backend.Handle(ctx, reply.Request)
	})
	if err != nil {
		a.metrics.RecordProviderError(ctx, "backend", fmt.Sprintf("%T", a.backend))
		return fmt.Errorf("assistant: backend: %w", err)
	}
	reply.Result = &res

	reply.English, _ = stage(ctx, a.metrics, observe.StageFormat, func(context.Context) (string, error) {
		text, err := a.formatter.Load().Format(res)
		if err != nil {
			slog.WarnContext(ctx, "failed to format reply", "type", res.Type, "err", err)
			return respond.Fallback, err
		}
		return text, nil
	})

	reply.Text = reply.English
	if !a.isEnglish(reply.Language) {
		reply.Text, err = stage(ctx, a.metrics, observe.StageTranslateOut, func(ctx context.Context) (string, error) {
			return a.translator.Translate(ctx, reply.English, translate.English, reply.Language)
		})
		if err != nil {
			a.metrics.RecordProviderError(ctx, "translate", "")
			return fmt.Errorf("assistant: translate reply: %w", err)
		}
	}

	if !speak {
		return nil
	}
	if a.tts == nil {
		return ErrNoSynthesizer
	}
	clip, err := stage(ctx, a.metrics, observe.StageSynthesize, func(ctx context.Context) (audio.Clip, error) {
		return a.tts.Synthesize(ctx, reply.Text, reply.Language)
	})
	if err != nil {
		a.metrics.RecordProviderError(ctx, "tts", "")
		return fmt.Errorf("assistant: synthesize: %w", err)
	}
	reply.Audio = audio.EncodeWAV(clip)
	return nil
}

// understand transcribes, translates, resolves and applies the session.
func (a *Assistant) understand(ctx context.Context, in Input) (*Reply, error) {
	reply := &Reply{Language: strings.ToLower(strings.TrimSpace(in.Language))}
	text := strings.TrimSpace(in.Text)

	if len(in.Audio) > 0 {
		if a.stt == nil {
			return nil, ErrNoTranscriber
		}
		tr, err := stage(ctx, a.metrics, observe.StageTranscribe, func(ctx context.Context) (stt.Transcript, error) {
			return a.stt.Transcribe(ctx, in.Audio, reply.Language)
		})
		if err != nil {
			if !errors.Is(err, stt.ErrNoSpeech) {
				a.metrics.RecordProviderError(ctx, "stt", "")
			}
			return nil, fmt.Errorf("assistant: transcribe: %w", err)
		}
		text = strings.TrimSpace(tr.Text)
		reply.Transcript = text
		if tr.Language != "" {
			reply.Language = tr.Language
		}
	}
	if text == "" {
		return nil, ErrEmptyInput
	}
	if reply.Language == "" {
		reply.Language = translate.English
	}

	reply.Utterance = text
	if !a.isEnglish(reply.Language) {
		english, err := stage(ctx, a.metrics, observe.StageTranslateIn, func(ctx context.Context) (string, error) {
			return a.translator.Translate(ctx, text, reply.Language, translate.English)
		})
		if err != nil {
			a.metrics.RecordProviderError(ctx, "translate", "")
			return nil, fmt.Errorf("assistant: translate query: %w", err)
		}
		reply.Utterance = english
	}

	res, err := stage(ctx, a.metrics, observe.StageResolve, func(ctx context.Context) (*nlu.Resolution, error) {
		return a.resolver.ResolveDetailed(ctx, reply.Utterance)
	})
	if err != nil {
		a.metrics.RecordProviderError(ctx, "embeddings", "")
		return nil, fmt.Errorf("assistant: resolve: %w", err)
	}
	a.metrics.RecordIntent(ctx, string(res.Classification.Intent), res.Classification.Confidence)
	reply.Classification = res.Classification
	reply.Entities = res.Entities

	reply.Request, err = stage(ctx, a.metrics, observe.StageSession, func(ctx context.Context) (nlu.Request, error) {
		return session.ApplyOrigin(ctx, a.sessions, in.SessionID, res.Request)
	})
	if err != nil {
		return nil, fmt.Errorf("assistant: %w", err)
	}

	slog.DebugContext(ctx, "query understood",
		"language", reply.Language,
		"utterance", reply.Utterance,
		"intent", reply.Classification.Intent,
		"action", reply.Request.Action(),
	)
	return reply, nil
}

// isEnglish reports whether lang needs no translation. Without a
// translator every language is treated as English.
func (a *Assistant) isEnglish(lang string) bool {
	return a.translator == nil || translate.Same(lang, translate.English)
}

// stage runs fn inside a stage span and records its duration.
func stage[T any](ctx context.Context, m *observe.Metrics, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, done := m.StartStage(ctx, name)
	v, err := fn(ctx)
	done(err)
	return v, err
}

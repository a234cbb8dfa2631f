// Package coqui provides a tts.Synthesizer backed by a local Coqui TTS
// server.
//
// Two API modes are supported:
//
//   - APIModeStandard (default): the standard Coqui TTS server
//     (ghcr.io/coqui-ai/tts-cpu), GET /api/tts with query parameters.
//
//   - APIModeXTTS: the Coqui XTTS v2 API server, POST /tts_to_audio/ with a
//     JSON body. XTTS is multilingual and covers Hindi.
//
// Both servers synthesise one utterance per request, so replies are split
// into sentences that are rendered concurrently and joined in order.
//
//	p, err := coqui.New("http://localhost:5002",
//	    coqui.WithVoices(tts.Voices{"hi": "p225"}),
//	)
//	clip, err := p.Synthesize(ctx, "The next train leaves at 10:15.", "en")
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/railvox/pkg/audio"
	"github.com/MrWong99/railvox/pkg/provider/tts"
)

var _ tts.Synthesizer = (*Provider)(nil)

const (
	defaultTimeout = 30 * time.Second
	ttsEndpoint    = "/tts_to_audio/"
	apiTTSEndpoint = "/api/tts"
)

// APIMode selects which Coqui server API the provider targets.
type APIMode string

const (
	// APIModeXTTS targets the Coqui XTTS v2 API server (/tts_to_audio/).
	APIModeXTTS APIMode = "xtts"

	// APIModeStandard targets the standard Coqui TTS server (/api/tts).
	APIModeStandard APIMode = "standard"
)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithAPIMode sets the server API mode. Default: APIModeStandard.
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) {
		p.apiMode = mode
	}
}

// WithVoices sets the speaker used per language.
func WithVoices(v tts.Voices) Option {
	return func(p *Provider) {
		p.voices = v
	}
}

// WithDefaultVoice sets the speaker used for languages without an entry in
// WithVoices. XTTS requires one.
func WithDefaultVoice(id string) Option {
	return func(p *Provider) {
		p.defaultVoice = id
	}
}

// WithOutputFormat resamples synthesised audio to format. The zero value
// keeps the model's native format.
func WithOutputFormat(f audio.Format) Option {
	return func(p *Provider) {
		p.output = f
	}
}

// Provider implements tts.Synthesizer against a Coqui server.
type Provider struct {
	serverURL    string
	apiMode      APIMode
	voices       tts.Voices
	defaultVoice string
	output       audio.Format
	httpClient   *http.Client
}

// New returns a Provider for the server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		apiMode:    APIModeStandard,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	if p.apiMode != APIModeStandard && p.apiMode != APIModeXTTS {
		return nil, fmt.Errorf("coqui: unknown API mode %q", p.apiMode)
	}
	return p, nil
}

// ttsRequest is the JSON body sent to POST /tts_to_audio/ (XTTS mode).
type ttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// Synthesize implements tts.Synthesizer.
func (p *Provider) Synthesize(ctx context.Context, text, language string) (audio.Clip, error) {
	voice := p.voices.For(language, p.defaultVoice)
	if voice == "" && p.apiMode == APIModeXTTS {
		return audio.Clip{}, errors.New("coqui: a voice is required in XTTS mode")
	}

	return tts.SynthesizeSentences(ctx, text, p.output, func(ctx context.Context, sentence string) (audio.Clip, error) {
		return p.synthesize(ctx, sentence, voice, language)
	})
}

func (p *Provider) synthesize(ctx context.Context, sentence, voice, language string) (audio.Clip, error) {
	req, err := p.newRequest(ctx, sentence, voice, language)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("coqui: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return audio.Clip{}, fmt.Errorf("coqui: %s %s returned status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("coqui: read WAV response: %w", err)
	}
	clip, err := audio.DecodeWAV(wav)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("coqui: %w", err)
	}
	return clip, nil
}

func (p *Provider) newRequest(ctx context.Context, sentence, voice, language string) (*http.Request, error) {
	if p.apiMode == APIModeXTTS {
		body, err := json.Marshal(ttsRequest{Text: sentence, SpeakerWav: voice, Language: language})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+ttsEndpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	params := url.Values{}
	params.Set("text", sentence)
	if voice != "" {
		params.Set("speaker_id", voice)
	}
	if language != "" {
		params.Set("language_id", language)
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+apiTTSEndpoint+"?"+params.Encode(), nil)
}

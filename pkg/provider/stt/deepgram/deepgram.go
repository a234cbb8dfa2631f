// Package deepgram provides a speech-to-text Transcriber backed by the
// Deepgram live streaming API.
//
// The clip is streamed over a WebSocket in 100 ms frames, followed by a
// CloseStream message; Deepgram answers with the final results and closes
// the connection. Without a language hint the multilingual mode is used and
// the dominant language is read from the result.
package deepgram

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	pcmaudio "github.com/MrWong99/railvox/pkg/audio"
	"github.com/MrWong99/railvox/pkg/provider/stt"
)

const (
	defaultEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel    = "nova-3"

	// multiLanguage asks Deepgram for code-switching recognition.
	multiLanguage = "multi"

	frameMs = 100
)

var _ stt.Transcriber = (*Provider)(nil)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model (e.g. "nova-3", "nova-2").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language used when the caller gives no hint.
// Empty selects multilingual recognition.
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithKeyterms boosts recognition of the given terms, typically station names.
func WithKeyterms(terms ...string) Option {
	return func(p *Provider) {
		p.keyterms = append(p.keyterms, terms...)
	}
}

// WithEndpoint overrides the streaming endpoint URL.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Transcriber using Deepgram.
type Provider struct {
	apiKey   string
	endpoint string
	model    string
	language string
	keyterms []string
}

// New returns a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		model:    defaultModel,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements stt.Transcriber.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, hint string) (stt.Transcript, error) {
	clip, err := stt.Normalize(audio)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: %w", err)
	}

	wsURL, err := p.buildURL(clip.Format, hint)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()

	var (
		mu     sync.Mutex
		result collector
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return writeAudio(gctx, conn, clip)
	})
	g.Go(func() error {
		for {
			_, msg, err := conn.Read(gctx)
			if err != nil {
				if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
					return nil
				}
				return fmt.Errorf("read: %w", err)
			}
			if r, ok := parseResponse(msg); ok {
				mu.Lock()
				result.add(r)
				mu.Unlock()
			}
		}
	})
	if err := g.Wait(); err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: %w", err)
	}

	tr := result.transcript()
	if tr.Text == "" {
		return stt.Transcript{}, fmt.Errorf("deepgram: %w", stt.ErrNoSpeech)
	}
	if tr.Language == "" {
		tr.Language = cmp.Or(hint, p.language)
	}
	return tr, nil
}

func writeAudio(ctx context.Context, conn *websocket.Conn, clip pcmaudio.Clip) error {
	frame := clip.SampleRate * clip.Channels * 2 * frameMs / 1000
	if frame <= 0 {
		frame = len(clip.Data)
	}
	for off := 0; off < len(clip.Data); off += frame {
		end := min(off+frame, len(clip.Data))
		if err := conn.Write(ctx, websocket.MessageBinary, clip.Data[off:end]); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return fmt.Errorf("close stream: %w", err)
	}
	return nil
}

func (p *Provider) buildURL(format pcmaudio.Format, hint string) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	lang := cmp.Or(hint, p.language, multiLanguage)

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(format.SampleRate))
	q.Set("channels", strconv.Itoa(format.Channels))
	for _, term := range p.keyterms {
		q.Add("keyterm", term)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// response is the subset of a Deepgram Results message that is used.
type response struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string   `json:"transcript"`
			Confidence float64  `json:"confidence"`
			Languages  []string `json:"languages"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type result struct {
	text       string
	confidence float64
	language   string
}

// parseResponse returns the final result carried by msg. Interim results,
// metadata and malformed messages are ignored.
func parseResponse(msg []byte) (result, bool) {
	var resp response
	if err := json.Unmarshal(msg, &resp); err != nil {
		return result{}, false
	}
	if resp.Type != "Results" || !resp.IsFinal || len(resp.Channel.Alternatives) == 0 {
		return result{}, false
	}
	alt := resp.Channel.Alternatives[0]
	r := result{text: strings.TrimSpace(alt.Transcript), confidence: alt.Confidence}
	if len(alt.Languages) > 0 {
		r.language = alt.Languages[0]
	}
	return r, r.text != ""
}

// collector joins final segments into one transcript.
type collector struct {
	parts    []string
	confSum  float64
	language string
}

func (c *collector) add(r result) {
	c.parts = append(c.parts, r.text)
	c.confSum += r.confidence
	if c.language == "" {
		c.language = r.language
	}
}

func (c *collector) transcript() stt.Transcript {
	if len(c.parts) == 0 {
		return stt.Transcript{}
	}
	return stt.Transcript{
		Text:       strings.Join(c.parts, " "),
		Language:   c.language,
		Confidence: c.confSum / float64(len(c.parts)),
	}
}

// Package whisper provides a speech-to-text Transcriber backed by a
// whisper.cpp server (the whisper-server binary, POST /inference).
//
// Whisper detects the spoken language itself, which covers the Indian
// languages a railway enquiry line receives. The server is asked for
// verbose JSON so the detected language comes back with the text.
//
//	p, err := whisper.New("http://localhost:8080",
//	    whisper.WithPrompt("Kannur, Kozhikode, Thrissur"),
//	)
//	tr, err := p.Transcribe(ctx, wav, "")
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	pcmaudio "github.com/MrWong99/railvox/pkg/audio"
	"github.com/MrWong99/railvox/pkg/provider/stt"
)

var _ stt.Transcriber = (*Provider)(nil)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithModel sets the model name forwarded to the server. Empty uses the
// model the server was started with.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithPrompt sets an initial prompt. Listing station names here biases the
// decoder towards their spelling.
func WithPrompt(prompt string) Option {
	return func(p *Provider) {
		p.prompt = prompt
	}
}

// WithTemperature sets the decoding temperature. Default: 0.
func WithTemperature(t float64) Option {
	return func(p *Provider) {
		p.temperature = t
	}
}

// WithTimeout sets the HTTP timeout. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements stt.Transcriber against a whisper.cpp server.
type Provider struct {
	serverURL   string
	model       string
	prompt      string
	temperature float64
	httpClient  *http.Client
}

// New returns a Provider for the server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// inferenceResponse is the subset of whisper-server's verbose_json answer
// that is used.
type inferenceResponse struct {
	Text                        string  `json:"text"`
	Language                    string  `json:"language"`
	DetectedLanguage            string  `json:"detected_language"`
	DetectedLanguageProbability float64 `json:"detected_language_probability"`
}

// Transcribe implements stt.Transcriber. Silence is trimmed locally first;
// clips with no speech fail with stt.ErrNoSpeech without a server call.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, hint string) (stt.Transcript, error) {
	clip, err := stt.Normalize(audio)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", err)
	}

	body, contentType, err := p.form(pcmaudio.EncodeWAV(clip), hint)
	if err != nil {
		return stt.Transcript{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return stt.Transcript{}, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", stt.ErrNoSpeech)
	}
	return stt.Transcript{
		Text:       text,
		Language:   languageCode(result, hint),
		Confidence: result.DetectedLanguageProbability,
	}, nil
}

func (p *Provider) form(wav []byte, hint string) (io.Reader, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, "", fmt.Errorf("whisper: write wav data: %w", err)
	}

	lang := hint
	if lang == "" {
		lang = "auto"
	}
	fields := [][2]string{
		{"response_format", "verbose_json"},
		{"language", lang},
		{"temperature", strconv.FormatFloat(p.temperature, 'f', -1, 64)},
	}
	if p.model != "" {
		fields = append(fields, [2]string{"model", p.model})
	}
	if p.prompt != "" {
		fields = append(fields, [2]string{"prompt", p.prompt})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("whisper: write %s field: %w", f[0], err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}

// languageCode prefers the detected ISO code, then maps the full language
// name, then falls back to hint.
func languageCode(r inferenceResponse, hint string) string {
	if r.DetectedLanguage != "" {
		return strings.ToLower(r.DetectedLanguage)
	}
	if code, ok := languageNames[strings.ToLower(r.Language)]; ok {
		return code
	}
	if len(r.Language) == 2 {
		return strings.ToLower(r.Language)
	}
	return hint
}

// languageNames maps whisper's full language names to ISO 639-1 codes for
// the languages the assistant supports.
var languageNames = map[string]string{
	"english":   "en",
	"hindi":     "hi",
	"malayalam": "ml",
	"tamil":     "ta",
	"telugu":    "te",
	"kannada":   "kn",
	"marathi":   "mr",
	"bengali":   "bn",
	"gujarati":  "gu",
	"punjabi":   "pa",
	"urdu":      "ur",
}

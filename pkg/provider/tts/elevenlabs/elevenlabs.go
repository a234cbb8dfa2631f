// Package elevenlabs provides a tts.Synthesizer backed by the ElevenLabs
// stream-input WebSocket API.
//
// The reply is sent as one text message followed by a flush; audio arrives
// as base64 PCM chunks until the server marks the stream final. The default
// multilingual flash model covers English, Hindi and Tamil.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/railvox/pkg/audio"
	"github.com/MrWong99/railvox/pkg/provider/tts"
)

var _ tts.Synthesizer = (*Provider)(nil)

const (
	defaultEndpoint  = "wss://api.elevenlabs.io/v1/text-to-speech"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_16000"
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the PCM output format ("pcm_16000", "pcm_22050",
// "pcm_24000" or "pcm_44100").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithVoices sets the voice ID used per language.
func WithVoices(v tts.Voices) Option {
	return func(p *Provider) {
		p.voices = v
	}
}

// WithEndpoint overrides the WebSocket base URL.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = strings.TrimRight(endpoint, "/")
	}
}

// Provider implements tts.Synthesizer backed by the ElevenLabs streaming API.
type Provider struct {
	apiKey       string
	defaultVoice string
	voices       tts.Voices
	model        string
	outputFormat string
	endpoint     string
	format       audio.Format
}

// New returns a Provider. apiKey and the default voice ID must be non-empty.
func New(apiKey, defaultVoice string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	if defaultVoice == "" {
		return nil, errors.New("elevenlabs: default voice must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		defaultVoice: defaultVoice,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		endpoint:     defaultEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	rate, err := parseOutputFormat(p.outputFormat)
	if err != nil {
		return nil, err
	}
	p.format = audio.Format{SampleRate: rate, Channels: 1}
	return p, nil
}

func parseOutputFormat(f string) (int, error) {
	rate, ok := strings.CutPrefix(f, "pcm_")
	if !ok {
		return 0, fmt.Errorf("elevenlabs: output format %q is not PCM", f)
	}
	n, err := strconv.Atoi(rate)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("elevenlabs: invalid output format %q", f)
	}
	return n, nil
}

// textMessage is the JSON payload sent for each text fragment.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// audioResponse is a message received from ElevenLabs.
type audioResponse struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Synthesize implements tts.Synthesizer.
func (p *Provider) Synthesize(ctx context.Context, text, language string) (audio.Clip, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return audio.Clip{}, tts.ErrEmptyText
	}

	conn, _, err := websocket.Dial(ctx, p.streamURL(p.voices.For(language, p.defaultVoice), language), nil)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.CloseNow()

	// The first message opens the stream and must carry a single space.
	msgs := []textMessage{
		{Text: " ", XiAPIKey: p.apiKey, VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}},
		{Text: text + " "},
		{Text: ""},
	}
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return audio.Clip{}, fmt.Errorf("elevenlabs: marshal: %w", err)
		}
		if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
			return audio.Clip{}, fmt.Errorf("elevenlabs: send: %w", err)
		}
	}

	var pcm []byte
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			return audio.Clip{}, fmt.Errorf("elevenlabs: read: %w", err)
		}
		chunk, final, err := decodeResponse(msg)
		if err != nil {
			return audio.Clip{}, err
		}
		pcm = append(pcm, chunk...)
		if final {
			break
		}
	}
	conn.Close(websocket.StatusNormalClosure, "done")

	if len(pcm) == 0 {
		return audio.Clip{}, errors.New("elevenlabs: no audio received")
	}
	return audio.Clip{Data: pcm, Format: p.format}, nil
}

func (p *Provider) streamURL(voice, language string) string {
	q := url.Values{}
	q.Set("model_id", p.model)
	q.Set("output_format", p.outputFormat)
	if language != "" {
		q.Set("language_code", language)
	}
	return p.endpoint + "/" + url.PathEscape(voice) + "/stream-input?" + q.Encode()
}

// decodeResponse returns the PCM carried by msg and whether it ends the
// stream. Messages that fail to parse are skipped.
func decodeResponse(msg []byte) ([]byte, bool, error) {
	var resp audioResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		return nil, false, nil
	}
	if resp.Error != "" {
		return nil, false, fmt.Errorf("elevenlabs: server error: %s: %s", resp.Error, resp.Message)
	}
	if resp.Audio == "" {
		return nil, resp.IsFinal, nil
	}
	pcm, err := base64.StdEncoding.DecodeString(resp.Audio)
	if err != nil {
		return nil, false, fmt.Errorf("elevenlabs: decode audio: %w", err)
	}
	return pcm, resp.IsFinal, nil
}

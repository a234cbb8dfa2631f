// Package mock provides a test double for tts.Synthesizer.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/railvox/pkg/audio"
	"github.com/MrWong99/railvox/pkg/provider/tts"
)

var _ tts.Synthesizer = (*Synthesizer)(nil)

// SynthesizeCall records one invocation of Synthesize.
type SynthesizeCall struct {
	Text     string
	Language string
}

// Synthesizer is a mock implementation of tts.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// Result is returned by Synthesize when Err is nil. When Result has no
	// data a short clip in audio.Speech format is returned.
	Result audio.Clip

	// Err, if non-nil, is returned by Synthesize.
	Err error

	// Calls records every call to Synthesize.
	Calls []SynthesizeCall
}

// Synthesize records the call and returns Result or Err.
func (m *Synthesizer) Synthesize(_ context.Context, text, language string) (audio.Clip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, SynthesizeCall{Text: text, Language: language})
	if m.Err != nil {
		return audio.Clip{}, m.Err
	}
	if len(m.Result.Data) == 0 {
		return audio.Clip{Data: make([]byte, 320), Format: audio.Speech}, nil
	}
	return m.Result, nil
}

// CallCount returns the number of Synthesize calls.
func (m *Synthesizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

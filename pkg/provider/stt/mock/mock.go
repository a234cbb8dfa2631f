// Package mock provides a test double for stt.Transcriber.
//
//	tr := &mock.Transcriber{Result: stt.Transcript{Text: "PNR status 1234567890", Language: "en"}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/railvox/pkg/provider/stt"
)

var _ stt.Transcriber = (*Transcriber)(nil)

// TranscribeCall records one invocation of Transcribe.
type TranscribeCall struct {
	Audio []byte
	Hint  string
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// TranscribeFunc, if set, computes the result. It overrides Result and Err.
	TranscribeFunc func(audio []byte, hint string) (stt.Transcript, error)

	// Result is returned by Transcribe when Err is nil.
	Result stt.Transcript

	// Err, if non-nil, is returned by Transcribe.
	Err error

	// Calls records every call to Transcribe.
	Calls []TranscribeCall
}

// Transcribe records the call and returns the configured result.
func (m *Transcriber) Transcribe(_ context.Context, audio []byte, hint string) (stt.Transcript, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, TranscribeCall{Audio: audio, Hint: hint})
	fn, res, err := m.TranscribeFunc, m.Result, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(audio, hint)
	}
	if err != nil {
		return stt.Transcript{}, err
	}
	return res, nil
}

// CallCount returns the number of Transcribe calls.
func (m *Transcriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Package stt defines the Transcriber interface for speech-to-text backends.
//
// A voice query is short: the caller records one utterance and wants its
// text plus the language it was spoken in, so that non-English queries can
// be translated before intent resolution. Transcribers therefore work on a
// complete audio clip rather than a stream.
//
// Audio is either a WAV file or raw 16-bit signed little-endian mono PCM at
// 16 kHz; [Normalize] brings both into the form backends are sent.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrNoSpeech is returned when the audio contains nothing to transcribe.
var ErrNoSpeech = errors.New("stt: no speech in audio")

// Transcript is the result of transcribing one utterance.
type Transcript struct {
	// Text is the recognised speech.
	Text string `json:"text"`

	// Language is the ISO 639-1 code of the spoken language, as detected by
	// the backend or, when it cannot detect, the hint passed by the caller.
	Language string `json:"language,omitempty"`

	// Confidence is the backend's confidence in [0, 1]; zero when unknown.
	Confidence float64 `json:"confidence,omitempty"`
}

// Transcriber is the abstraction over any speech-to-text backend.
type Transcriber interface {
	// Transcribe converts audio to text. hint is an ISO 639-1 code for the
	// expected language; empty asks the backend to detect it.
	Transcribe(ctx context.Context, audio []byte, hint string) (Transcript, error)
}

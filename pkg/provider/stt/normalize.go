package stt

import (
	"fmt"

	"github.com/MrWong99/railvox/pkg/audio"
)

// Normalize turns audio into 16 kHz mono PCM with leading and trailing
// silence removed. Input is a WAV file or raw PCM already in [audio.Speech]
// format. It returns ErrNoSpeech when nothing above [audio.SilenceRMS]
// remains.
func Normalize(data []byte) (audio.Clip, error) {
	clip := audio.Clip{Data: data, Format: audio.Speech}
	if audio.IsWAV(data) {
		var err error
		if clip, err = audio.DecodeWAV(data); err != nil {
			return audio.Clip{}, fmt.Errorf("stt: %w", err)
		}
	}
	clip = audio.TrimSilence(audio.Convert(clip, audio.Speech))
	if len(clip.Data) == 0 {
		return audio.Clip{}, ErrNoSpeech
	}
	return clip, nil
}

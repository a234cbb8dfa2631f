package audio_test

import (
	"encoding/binary"
	"testing"

	"github.com/MrWong99/railvox/pkg/audio"
)

func constant(n int, amplitude int16) []byte {
	return samplesToBytes(func() []int16 {
		s := make([]int16, n)
		for i := range s {
			s[i] = amplitude
		}
		return s
	}())
}

func TestDecodeWAV(t *testing.T) {
	t.Parallel()

	data := constant(160, 1000)
	wav := audio.EncodeWAV(audio.Clip{Data: data, Format: audio.Format{SampleRate: 8000, Channels: 2}})
	if !audio.IsWAV(wav) {
		t.Fatal("IsWAV(EncodeWAV(...)) = false")
	}
	clip, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if clip.SampleRate != 8000 || clip.Channels != 2 || len(clip.Data) != len(data) {
		t.Errorf("DecodeWAV = %v, %d bytes", clip.Format, len(clip.Data))
	}
}

func TestDecodeWAV_SkipsUnknownChunks(t *testing.T) {
	t.Parallel()

	wav := audio.EncodeWAV(audio.Clip{Data: constant(4, 7), Format: audio.Speech})
	list := []byte("LIST\x03\x00\x00\x00abc\x00")
	withList := append(append(append([]byte{}, wav[:36]...), list...), wav[36:]...)

	clip, err := audio.DecodeWAV(withList)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if len(clip.Data) != 8 {
		t.Errorf("data = %d bytes, want 8", len(clip.Data))
	}
}

func TestDecodeWAV_Errors(t *testing.T) {
	t.Parallel()

	if _, err := audio.DecodeWAV([]byte("not a wav file at all")); err == nil {
		t.Error("DecodeWAV(garbage): want error")
	}

	eightBit := audio.EncodeWAV(audio.Clip{Data: constant(4, 1), Format: audio.Speech})
	binary.LittleEndian.PutUint16(eightBit[34:36], 8)
	if _, err := audio.DecodeWAV(eightBit); err == nil {
		t.Error("DecodeWAV(8-bit): want error")
	}

	noData := audio.EncodeWAV(audio.Clip{Format: audio.Speech})[:36]
	if _, err := audio.DecodeWAV(noData); err == nil {
		t.Error("DecodeWAV(no data chunk): want error")
	}
}

func TestTrimSilence(t *testing.T) {
	t.Parallel()

	// 100 ms silence, 100 ms tone, 100 ms silence.
	var pcm []byte
	pcm = append(pcm, constant(1600, 0)...)
	pcm = append(pcm, constant(1600, 1000)...)
	pcm = append(pcm, constant(1600, 0)...)

	got := audio.TrimSilence(audio.Clip{Data: pcm, Format: audio.Speech})
	if len(got.Data) != 3200 {
		t.Fatalf("TrimSilence kept %d bytes, want 3200", len(got.Data))
	}
	if audio.RMS(got.Data) != 1000 {
		t.Errorf("RMS = %v, want 1000", audio.RMS(got.Data))
	}

	silent := audio.TrimSilence(audio.Clip{Data: constant(1600, 10), Format: audio.Speech})
	if len(silent.Data) != 0 || silent.Format != audio.Speech {
		t.Errorf("TrimSilence(silence) = %v, %d bytes", silent.Format, len(silent.Data))
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()

	if got := audio.RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v", got)
	}
	if got := audio.RMS(constant(10, -500)); got != 500 {
		t.Errorf("RMS = %v, want 500", got)
	}
}

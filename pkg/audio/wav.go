package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const bitsPerSample = 16

// SilenceRMS is the root-mean-square energy below which a frame counts as
// silence.
const SilenceRMS = 300.0

// IsWAV reports whether b starts with a RIFF/WAVE header.
func IsWAV(b []byte) bool {
	return len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WAVE"))
}

// EncodeWAV wraps c in a RIFF/WAV container.
func EncodeWAV(c Clip) []byte {
	byteRate := c.SampleRate * c.Channels * bitsPerSample / 8
	blockAlign := c.Channels * bitsPerSample / 8
	size := len(c.Data)

	buf := make([]byte, 44+size)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+size))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(c.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(c.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(size))
	copy(buf[44:], c.Data)
	return buf
}

// DecodeWAV extracts the PCM payload of a 16-bit PCM WAV file. Chunks other
// than "fmt " and "data" are skipped; a data size running past the end of
// b (streamed WAVs) is truncated to what is present.
func DecodeWAV(b []byte) (Clip, error) {
	if !IsWAV(b) {
		return Clip{}, errors.New("audio: not a WAV file")
	}
	var out Clip
	var haveFmt bool
	for off := 12; off+8 <= len(b); {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(b) {
			size = len(b) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return Clip{}, errors.New("audio: short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(b[body : body+2])
			bits := binary.LittleEndian.Uint16(b[body+14 : body+16])
			if format != 1 || bits != bitsPerSample {
				return Clip{}, fmt.Errorf("audio: unsupported WAV encoding (format %d, %d bits)", format, bits)
			}
			out.Channels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			out.SampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return Clip{}, errors.New("audio: data chunk before fmt chunk")
			}
			out.Data = b[body : body+size]
			return out, nil
		}
		off = body + size + size%2
	}
	return Clip{}, errors.New("audio: WAV has no data chunk")
}

// TrimSilence drops 20 ms frames below SilenceRMS from both ends of c.
func TrimSilence(c Clip) Clip {
	frame := c.SampleRate * c.bytesPerFrame() / 50
	if frame <= 0 {
		return c
	}
	pcm := c.Data
	start, end := 0, len(pcm)
	for start < end && RMS(pcm[start:min(start+frame, end)]) < SilenceRMS {
		start += frame
	}
	for end > start {
		from := max(end-frame, start)
		if RMS(pcm[from:end]) >= SilenceRMS {
			break
		}
		end = from
	}
	if start >= end {
		return Clip{Format: c.Format}
	}
	return Clip{Data: pcm[start:end], Format: c.Format}
}

// RMS returns the root-mean-square energy of pcm in sample units (0 to
// 32767). Buffers shorter than one sample yield 0.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(sample(pcm, i))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

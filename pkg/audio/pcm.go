// Package audio holds the PCM plumbing shared by the speech providers:
// WAV framing, format conversion and silence trimming.
//
// All sample data is 16-bit signed little-endian PCM.
package audio

import "fmt"

// Format describes the sample rate and channel count of PCM data.
type Format struct {
	SampleRate int
	Channels   int
}

// Speech is the format speech recognisers expect: 16 kHz mono.
var Speech = Format{SampleRate: 16000, Channels: 1}

// String returns e.g. "48000Hz stereo".
func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}

// bytesPerFrame is the size of one sample across all channels.
func (f Format) bytesPerFrame() int {
	return 2 * max(f.Channels, 1)
}

// Clip is a block of PCM in a known format.
type Clip struct {
	Data []byte
	Format
}

// DurationMs returns the clip length in milliseconds.
func (c Clip) DurationMs() int {
	if c.SampleRate <= 0 {
		return 0
	}
	return len(c.Data) / c.bytesPerFrame() * 1000 / c.SampleRate
}

// Convert returns c in the target format, resampling first and then
// converting channels. A trailing partial sample is dropped. Only mono and
// stereo are converted; other channel counts are passed through unchanged.
func Convert(c Clip, target Format) Clip {
	pcm := c.Data[:len(c.Data)-len(c.Data)%2]
	if c.Format == target {
		return Clip{Data: pcm, Format: target}
	}

	rate, channels := c.SampleRate, c.Channels
	if rate != target.SampleRate {
		switch channels {
		case 1:
			pcm = ResampleMono16(pcm, rate, target.SampleRate)
			rate = target.SampleRate
		case 2:
			pcm = ResampleStereo16(pcm, rate, target.SampleRate)
			rate = target.SampleRate
		}
	}
	switch {
	case channels == 1 && target.Channels == 2:
		pcm, channels = MonoToStereo(pcm), 2
	case channels == 2 && target.Channels == 1:
		pcm, channels = StereoToMono(pcm), 1
	}
	return Clip{Data: pcm, Format: Format{SampleRate: rate, Channels: channels}}
}

// Concat joins clips after converting each to format.
func Concat(format Format, clips ...Clip) Clip {
	var n int
	converted := make([][]byte, len(clips))
	for i, c := range clips {
		converted[i] = Convert(c, format).Data
		n += len(converted[i])
	}
	out := make([]byte, 0, n)
	for _, b := range converted {
		out = append(out, b...)
	}
	return Clip{Data: out, Format: format}
}

// MonoToStereo duplicates each mono sample into an L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		lo, hi := pcm[i], pcm[i+1]
		j := i * 2
		out[j] = lo
		out[j+1] = hi
		out[j+2] = lo
		out[j+3] = hi
	}
	return out
}

// StereoToMono averages L and R of each stereo frame.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		r := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (l + r) / 2
		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples mono PCM from srcRate to dstRate by linear
// interpolation. Non-positive or equal rates return pcm unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstSamples {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		s0 := sample(pcm, idx)
		s1 := s0
		if idx+1 < srcSamples {
			s1 = sample(pcm, idx+1)
		}
		v := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// ResampleStereo16 resamples interleaved stereo PCM from srcRate to dstRate.
func ResampleStereo16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 4 {
		return pcm
	}
	srcFrames := len(pcm) / 4
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*4)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstFrames {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		next := idx
		if idx+1 < srcFrames {
			next = idx + 1
		}
		for ch := range 2 {
			s0 := sample(pcm, idx*2+ch)
			s1 := sample(pcm, next*2+ch)
			v := int16(float64(s0)*(1-frac) + float64(s1)*frac)
			out[i*4+ch*2] = byte(v)
			out[i*4+ch*2+1] = byte(v >> 8)
		}
	}
	return out
}

// sample returns the i-th int16 sample of pcm.
func sample(pcm []byte, i int) int16 {
	return int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
}

// Package wavio reads and writes the linear-PCM WAV container used for
// reference/vocal tracks and for direct-to-storage recording. Only 16-bit
// PCM is supported.
package wavio

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

var (
	ErrNotWAV            = errors.New("wavio: not a RIFF/WAVE file")
	ErrUnsupportedFormat = errors.New("wavio: only 16-bit linear PCM is supported")
)

// Track is a decoded, immutable-after-load sample buffer.
type Track struct {
	Samples    []float32 // interleaved
	Channels   int
	SampleRate int
}

// Frames returns the track length in sample frames.
func (t *Track) Frames() int {
	if t.Channels == 0 {
		return 0
	}
	return len(t.Samples) / t.Channels
}

// DownmixMono returns the track's samples averaged across channels. A mono
// track is returned as-is.
func (t *Track) DownmixMono() []float32 {
	if t.Channels <= 1 {
		return t.Samples
	}
	frames := t.Frames()
	mono := make([]float32, frames)
	inv := float32(1.0) / float32(t.Channels)
	for f := 0; f < frames; f++ {
		var sum float32
		base := f * t.Channels
		for c := 0; c < t.Channels; c++ {
			sum += t.Samples[base+c]
		}
		mono[f] = sum * inv
	}
	return mono
}

// Decode parses a PCM16 WAV container into float32 samples in [-1, 1).
func Decode(r io.ReadSeeker) (*Track, error) {
	d := wav.NewDecoder(r)
	d.ReadInfo()
	if !d.IsValidFile() {
		return nil, ErrNotWAV
	}
	if d.WavAudioFormat != 1 || d.BitDepth != 16 {
		return nil, ErrUnsupportedFormat
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavio: read pcm data: %w", err)
	}

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / 32768.0
	}

	return &Track{
		Samples:    samples,
		Channels:   int(d.NumChans),
		SampleRate: int(d.SampleRate),
	}, nil
}

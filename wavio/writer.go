package wavio

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Writer streams 16-bit PCM into a WAV file. The header's size fields are
// provisional at creation and rewritten once when the writer is closed.
type Writer struct {
	f        *os.File
	enc      *wav.Encoder
	channels int
	rate     int
	ints     []int // scratch for byte→int sample conversion
}

// NewWriter creates path (truncating an existing file) and writes a
// provisional PCM16 header.
func NewWriter(path string, sampleRate, channels int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wavio: create %s: %w", path, err)
	}
	return &Writer{
		f:        f,
		enc:      wav.NewEncoder(f, sampleRate, 16, channels, 1),
		channels: channels,
		rate:     sampleRate,
	}, nil
}

// WritePCM16 appends little-endian 16-bit sample data. len(p) must be a
// multiple of two.
func (w *Writer) WritePCM16(p []byte) error {
	n := len(p) / 2
	if cap(w.ints) < n {
		w.ints = make([]int, n)
	}
	ints := w.ints[:n]
	for i := 0; i < n; i++ {
		ints[i] = int(int16(binary.LittleEndian.Uint16(p[2*i:])))
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: w.channels, SampleRate: w.rate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := w.enc.Write(buf); err != nil {
		return fmt.Errorf("wavio: write pcm: %w", err)
	}
	return nil
}

// Close finalizes the header size fields and closes the file.
func (w *Writer) Close() error {
	encErr := w.enc.Close()
	closeErr := w.f.Close()
	if encErr != nil {
		return fmt.Errorf("wavio: finalize header: %w", encErr)
	}
	if closeErr != nil {
		return fmt.Errorf("wavio: close file: %w", closeErr)
	}
	return nil
}

package wavio

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func pcm16WAV(samples []int16, channels, sampleRate int) *bytes.Reader {
	dataSize := uint32(len(samples) * 2)
	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], 36+dataSize)
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], dataSize)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+2*i:], uint16(s))
	}
	return bytes.NewReader(buf)
}

func TestDecode(t *testing.T) {
	track, err := Decode(pcm16WAV([]int16{0, 16384, -16384, 32767}, 2, 44100))
	require.NoError(t, err)

	require.Equal(t, 2, track.Channels)
	require.Equal(t, 44100, track.SampleRate)
	require.Equal(t, 2, track.Frames())
	require.InDelta(t, 0.0, track.Samples[0], 1e-6)
	require.InDelta(t, 0.5, track.Samples[1], 1e-6)
	require.InDelta(t, -0.5, track.Samples[2], 1e-6)
	require.InDelta(t, float64(32767)/32768, track.Samples[3], 1e-6)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader(bytes.Repeat([]byte{0xAB}, 128)))
	require.Error(t, err)
}

func TestDownmixMono(t *testing.T) {
	track := &Track{
		Samples:  []float32{0.2, 0.4, -1, 1},
		Channels: 2,
	}
	mono := track.DownmixMono()
	require.Len(t, mono, 2)
	require.InDelta(t, 0.3, mono[0], 1e-6)
	require.InDelta(t, 0.0, mono[1], 1e-6)

	// mono passes through untouched
	m := &Track{Samples: []float32{0.5}, Channels: 1}
	require.Equal(t, m.Samples, m.DownmixMono())
}

func TestWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")

	w, err := NewWriter(path, 16000, 1)
	require.NoError(t, err)

	// two appends: the header size fields must cover both after close
	pcm := make([]byte, 8)
	for i, s := range []int16{100, -100, 32767, -32768} {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(s))
	}
	require.NoError(t, w.WritePCM16(pcm[:4]))
	require.NoError(t, w.WritePCM16(pcm[4:]))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	track, err := Decode(f)
	require.NoError(t, err)
	require.Equal(t, 1, track.Channels)
	require.Equal(t, 16000, track.SampleRate)
	require.Equal(t, 4, track.Frames())
	require.InDelta(t, float64(100)/32768, track.Samples[0], 1e-6)
	require.InDelta(t, float64(-100)/32768, track.Samples[1], 1e-6)
	require.InDelta(t, float64(32767)/32768, track.Samples[2], 1e-6)
	require.InDelta(t, -1.0, track.Samples[3], 1e-6)
}

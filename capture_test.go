package duplex

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func pcm16At(buf []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(buf[2*i:]))
}

func TestEncodePCM16FullScale(t *testing.T) {
	src := []float32{1.0, -1.0, 0}
	dst := make([]byte, len(src)*2)

	peak := encodePCM16(dst, src)

	require.Equal(t, int16(32767), pcm16At(dst, 0))
	require.Equal(t, int16(-32767), pcm16At(dst, 1))
	require.Equal(t, int16(0), pcm16At(dst, 2))
	require.Equal(t, float32(1.0), peak)
}

func TestEncodePCM16ClampsOutOfRange(t *testing.T) {
	src := []float32{2.5, -3.0}
	dst := make([]byte, len(src)*2)

	peak := encodePCM16(dst, src)

	require.Equal(t, int16(32767), pcm16At(dst, 0))
	require.Equal(t, int16(-32767), pcm16At(dst, 1))
	// peak reflects the raw input, before the clamp
	require.Equal(t, float32(3.0), peak)
}

func TestEncodePCM16RoundsToNearest(t *testing.T) {
	src := []float32{0.5, -0.5}
	dst := make([]byte, len(src)*2)

	encodePCM16(dst, src)

	// 0.5 * 32767 = 16383.5 rounds away from zero
	require.Equal(t, int16(16384), pcm16At(dst, 0))
	require.Equal(t, int16(-16384), pcm16At(dst, 1))
}

func TestCaptureFrameWireRoundTrip(t *testing.T) {
	in := CaptureFrame{
		NumFrames:        192,
		SampleRate:       48000,
		Channels:         2,
		OutputFramePos:   1 << 40,
		InputFramePos:    -7,
		TimestampNanos:   1724400000000000000,
		RelativeFramePos: 12345,
		SessionID:        42,
	}

	var buf [metaRecordSize]byte
	in.marshal(buf[:])
	out := unmarshalCaptureFrame(buf[:])

	require.Equal(t, in, out)
	require.Equal(t, 192*2*2, out.PayloadBytes())
}

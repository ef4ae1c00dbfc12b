package duplex

import (
	"encoding/binary"
	"math"
)

// metaRecordSize is the fixed wire size of one CaptureFrame record in the
// metadata ring: three int32 fields followed by five int64 fields, little
// endian.
const metaRecordSize = 3*4 + 5*8

// CaptureFrame describes one callback's worth of captured audio. It is
// produced exactly once per output callback that yields captured samples
// and consumed exactly once by the dispatch worker, paired 1:1 with a PCM16
// payload in the payload ring.
type CaptureFrame struct {
	NumFrames        int32
	SampleRate       int32
	Channels         int32
	OutputFramePos   int64
	InputFramePos    int64
	TimestampNanos   int64
	RelativeFramePos int64
	SessionID        int64
}

// PayloadBytes is the length of the PCM16 payload paired with this record.
func (m *CaptureFrame) PayloadBytes() int {
	return int(m.NumFrames) * int(m.Channels) * 2
}

func (m *CaptureFrame) marshal(dst []byte) {
	_ = dst[metaRecordSize-1]
	binary.LittleEndian.PutUint32(dst[0:], uint32(m.NumFrames))
	binary.LittleEndian.PutUint32(dst[4:], uint32(m.SampleRate))
	binary.LittleEndian.PutUint32(dst[8:], uint32(m.Channels))
	binary.LittleEndian.PutUint64(dst[12:], uint64(m.OutputFramePos))
	binary.LittleEndian.PutUint64(dst[20:], uint64(m.InputFramePos))
	binary.LittleEndian.PutUint64(dst[28:], uint64(m.TimestampNanos))
	binary.LittleEndian.PutUint64(dst[36:], uint64(m.RelativeFramePos))
	binary.LittleEndian.PutUint64(dst[44:], uint64(m.SessionID))
}

func unmarshalCaptureFrame(src []byte) CaptureFrame {
	_ = src[metaRecordSize-1]
	return CaptureFrame{
		NumFrames:        int32(binary.LittleEndian.Uint32(src[0:])),
		SampleRate:       int32(binary.LittleEndian.Uint32(src[4:])),
		Channels:         int32(binary.LittleEndian.Uint32(src[8:])),
		OutputFramePos:   int64(binary.LittleEndian.Uint64(src[12:])),
		InputFramePos:    int64(binary.LittleEndian.Uint64(src[20:])),
		TimestampNanos:   int64(binary.LittleEndian.Uint64(src[28:])),
		RelativeFramePos: int64(binary.LittleEndian.Uint64(src[36:])),
		SessionID:        int64(binary.LittleEndian.Uint64(src[44:])),
	}
}

// encodePCM16 converts float samples to 16-bit signed little-endian PCM,
// clamping to [-1, 1] before round-to-nearest scaling by 32767. It returns
// the peak absolute input amplitude of the batch (measured before the
// clamp). dst must hold 2*len(src) bytes.
func encodePCM16(dst []byte, src []float32) float32 {
	var peak float32
	for i, x := range src {
		a := x
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
		if x > 1 {
			x = 1
		} else if x < -1 {
			x = -1
		}
		v := int16(math.Round(float64(x) * 32767))
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(v))
	}
	return peak
}

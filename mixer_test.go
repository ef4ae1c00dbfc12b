package duplex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// ramp builds a mono track whose sample at frame f is base+f, making mixed
// output trivially attributable.
func ramp(frames int, base float32) []float32 {
	s := make([]float32, frames)
	for i := range s {
		s[i] = base + float32(i)
	}
	return s
}

func mixRange(v trackView, from, frames int, outCh int, refGain, vocGain float32, offset int64, review bool) []float32 {
	out := make([]float32, frames*outCh)
	mixInto(out, frames, outCh, v, int64(from), refGain, vocGain, offset, review)
	return out
}

func TestMixReviewWithVocalOffset(t *testing.T) {
	v := trackView{
		reference:   ramp(100, 1000),
		refChannels: 1,
		vocal:       ramp(50, 0),
	}

	// reference of 100 frames, vocal of 50, offset 20, unity gains:
	// frame 25 = reference[25] + vocal[5]
	out := mixRange(v, 25, 1, 1, 1, 1, 20, true)
	require.Equal(t, float32(1025+5), out[0])

	// before the vocal starts, reference only
	out = mixRange(v, 10, 1, 1, 1, 1, 20, true)
	require.Equal(t, float32(1010), out[0])

	// frame 130 is past both tracks: silence, no wraparound
	out = mixRange(v, 130, 1, 1, 1, 1, 20, true)
	require.Equal(t, float32(0), out[0])

	// past the vocal's end (50 frames shifted by 20) but within reference
	out = mixRange(v, 75, 1, 1, 1, 1, 20, true)
	require.Equal(t, float32(1075), out[0])
}

func TestMixNegativeVocalOffset(t *testing.T) {
	v := trackView{vocal: ramp(50, 100)}

	// offset -10 advances the vocal: frame 0 reads vocal[10]
	out := mixRange(v, 0, 1, 1, 0, 1, -10, true)
	require.Equal(t, float32(110), out[0])
}

func TestMixRecordModeHasNoVocal(t *testing.T) {
	v := trackView{
		reference:   ramp(100, 0),
		refChannels: 1,
		vocal:       ramp(100, 5000),
	}

	out := mixRange(v, 30, 1, 1, 1, 1, 0, false)
	require.Equal(t, float32(30), out[0])
}

func TestMixEmptyTracksAreSilent(t *testing.T) {
	out := mixRange(trackView{}, 0, 64, 2, 1, 1, 0, true)
	for _, s := range out {
		require.Equal(t, float32(0), s)
	}
}

func TestMixChannelWrap(t *testing.T) {
	// mono reference into stereo output: both channels read channel 0
	v := trackView{reference: ramp(10, 7), refChannels: 1}
	out := mixRange(v, 3, 1, 2, 1, 0, 0, false)
	require.Equal(t, float32(10), out[0])
	require.Equal(t, float32(10), out[1])

	// stereo reference into stereo output: channels stay distinct
	stereo := []float32{1, 2, 3, 4, 5, 6}
	v = trackView{reference: stereo, refChannels: 2}
	out = mixRange(v, 1, 1, 2, 1, 0, 0, false)
	require.Equal(t, float32(3), out[0])
	require.Equal(t, float32(4), out[1])
}

func TestMixGainScaling(t *testing.T) {
	v := trackView{
		reference:   []float32{0.5},
		refChannels: 1,
		vocal:       []float32{0.25},
	}

	out := mixRange(v, 0, 1, 1, 0.5, 2, 0, true)
	require.InDelta(t, 0.5*0.5+0.25*2, out[0], 1e-6)
}

func TestMixDoesNotClamp(t *testing.T) {
	v := trackView{
		reference:   []float32{0.9},
		refChannels: 1,
		vocal:       []float32{0.9},
	}

	// summed output above 1.0 is passed through untouched
	out := mixRange(v, 0, 1, 1, 1, 1, 0, true)
	require.InDelta(t, 1.8, out[0], 1e-6)
}

func TestMixAdvancesPastTrackEndWithoutLooping(t *testing.T) {
	v := trackView{reference: ramp(4, 1), refChannels: 1}

	out := mixRange(v, 0, 8, 1, 1, 0, 0, false)
	require.Equal(t, []float32{1, 2, 3, 4, 0, 0, 0, 0}, out)
}

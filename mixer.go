package duplex

import (
	"math"
	"sync/atomic"
)

// atomicGain holds a float32 readable and writable without locking, for
// per-field shared state between the control path and the audio callback.
type atomicGain struct {
	bits atomic.Uint32
}

func (g *atomicGain) Store(v float32) { g.bits.Store(math.Float32bits(v)) }
func (g *atomicGain) Load() float32   { return math.Float32frombits(g.bits.Load()) }

// mixInto renders numFrames output frames into out (interleaved, outCh
// channels), summing the reference track scaled by refGain and, in review
// mode only, the mono vocal track shifted by vocalOffset frames and scaled
// by vocGain.
//
// Reference indexing wraps across the track's own channel layout
// (channel c reads reference channel c mod refChannels). Frames past the
// end of either track contribute silence; tracks do not loop. The summed
// output is deliberately not limited or clamped: downstream hardware may
// clip, and adding a limiter here would change audible behavior.
func mixInto(out []float32, numFrames, outCh int, v trackView, startFrame int64, refGain, vocGain float32, vocalOffset int64, review bool) {
	var refFrames int64
	if v.refChannels > 0 {
		refFrames = int64(len(v.reference) / v.refChannels)
	}
	vocFrames := int64(len(v.vocal))

	for i := 0; i < numFrames; i++ {
		frame := startFrame + int64(i)

		var voc float32
		if review {
			vi := frame - vocalOffset
			if vi >= 0 && vi < vocFrames {
				voc = v.vocal[vi] * vocGain
			}
		}

		base := i * outCh
		if frame >= 0 && frame < refFrames {
			row := frame * int64(v.refChannels)
			for c := 0; c < outCh; c++ {
				s := v.reference[row+int64(c%v.refChannels)] * refGain
				out[base+c] = s + voc
			}
		} else {
			for c := 0; c < outCh; c++ {
				out[base+c] = voc
			}
		}
	}
}

// Package hw abstracts the hardware audio streams the engine renders into
// and captures from. Stream acquisition and format negotiation live behind
// these interfaces: opening a stream at a given sample rate and channel
// count either succeeds or fails atomically.
package hw

// RenderFunc fills out with len(out)/channels interleaved output frames.
// It is invoked on the hardware callback thread and must never block.
type RenderFunc func(out []float32, numFrames int)

// OutputStream is a callback-driven hardware output path. Start installs
// the render callback and begins pulling; Stop ceases callbacks before
// returning, so after Stop no further RenderFunc invocations occur.
type OutputStream interface {
	Start(render RenderFunc) error
	Stop() error
	SampleRate() int
	Channels() int
}

// InputStream is a hardware capture path read manually from inside the
// output callback. ReadFrames is non-blocking: it copies up to
// len(dst)/Channels() interleaved frames into dst and returns the number of
// whole frames copied, which may be zero.
type InputStream interface {
	Start() error
	Stop() error
	ReadFrames(dst []float32) int
	Channels() int
}

// Opener acquires hardware streams. OpenDuplex opens both paths or
// neither.
type Opener interface {
	OpenOutput(sampleRate, channels int) (OutputStream, error)
	OpenDuplex(sampleRate, channels int) (OutputStream, InputStream, error)
}

package hw

import (
	"errors"
	"sync"
)

// ErrNotStarted is returned by Pump when the output has no installed
// render callback.
var ErrNotStarted = errors.New("hw: output not started")

// SynthOutput is a manually driven output stream for tests and headless
// operation. Instead of a hardware clock, the owner calls Pump to trigger
// one render callback.
type SynthOutput struct {
	mu         sync.Mutex
	render     RenderFunc
	sampleRate int
	channels   int
	started    bool
}

func NewSynthOutput(sampleRate, channels int) *SynthOutput {
	return &SynthOutput{sampleRate: sampleRate, channels: channels}
}

func (o *SynthOutput) Start(render RenderFunc) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.render = render
	o.started = true
	return nil
}

func (o *SynthOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = false
	o.render = nil
	return nil
}

func (o *SynthOutput) SampleRate() int { return o.sampleRate }
func (o *SynthOutput) Channels() int   { return o.channels }

// Pump invokes the render callback once to fill out, which must hold a
// whole number of interleaved frames. The lock is held across the render
// so Stop does not return while a callback is in flight.
func (o *SynthOutput) Pump(out []float32) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.started || o.render == nil {
		return ErrNotStarted
	}
	o.render(out, len(out)/o.channels)
	return nil
}

// SynthInput is a fed-by-hand capture stream. Feed queues interleaved
// samples; ReadFrames drains them without blocking, returning fewer frames
// than requested when the queue runs short.
type SynthInput struct {
	mu       sync.Mutex
	pending  []float32
	channels int
	started  bool
}

func NewSynthInput(channels int) *SynthInput {
	return &SynthInput{channels: channels}
}

func (i *SynthInput) Start() error {
	i.mu.Lock()
	i.started = true
	i.mu.Unlock()
	return nil
}

func (i *SynthInput) Stop() error {
	i.mu.Lock()
	i.started = false
	i.pending = i.pending[:0]
	i.mu.Unlock()
	return nil
}

func (i *SynthInput) Channels() int { return i.channels }

// Feed appends interleaved samples to the capture queue.
func (i *SynthInput) Feed(samples []float32) {
	i.mu.Lock()
	i.pending = append(i.pending, samples...)
	i.mu.Unlock()
}

func (i *SynthInput) ReadFrames(dst []float32) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.started {
		return 0
	}
	n := min(len(dst), len(i.pending))
	n -= n % i.channels // whole frames only
	if n == 0 {
		return 0
	}
	copy(dst, i.pending[:n])
	i.pending = i.pending[n:]
	return n / i.channels
}

// SynthOpener hands out one synthetic duplex pair, created on first open so
// tests can reach the concrete streams after starting the engine.
type SynthOpener struct {
	mu     sync.Mutex
	Output *SynthOutput
	Input  *SynthInput
}

func (s *SynthOpener) OpenOutput(sampleRate, channels int) (OutputStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Output = NewSynthOutput(sampleRate, channels)
	return s.Output, nil
}

func (s *SynthOpener) OpenDuplex(sampleRate, channels int) (OutputStream, InputStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Output = NewSynthOutput(sampleRate, channels)
	s.Input = NewSynthInput(channels)
	return s.Output, s.Input, nil
}

var (
	_ OutputStream = (*SynthOutput)(nil)
	_ InputStream  = (*SynthInput)(nil)
	_ Opener       = (*SynthOpener)(nil)
)

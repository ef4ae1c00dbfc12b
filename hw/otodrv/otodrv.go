// Package otodrv implements the hardware output stream on top of oto v3.
// oto is output-only, so the duplex opener composes the oto output with a
// caller-provided capture stream.
package otodrv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/overdub-audio/duplex-go/hw"
)

var ErrNoInput = errors.New("otodrv: duplex open requires a capture stream")

// Output is an oto-backed output stream. oto pulls samples through an
// io.Reader; Read invokes the installed render callback and serializes the
// float frames, so the render callback runs on oto's audio goroutine.
type Output struct {
	ctx        *oto.Context
	sampleRate int
	channels   int

	render atomic.Value // hw.RenderFunc

	mu        sync.Mutex
	player    *oto.Player
	sampleBuf []float32
	started   bool
}

// NewOutput opens an oto context in 32-bit float format. oto allows one
// context per process; create one Output and reuse it.
func NewOutput(sampleRate, channels int) (*Output, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   20 * time.Millisecond,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("otodrv: open context: %w", err)
	}
	<-ready

	return &Output{
		ctx:        ctx,
		sampleRate: sampleRate,
		channels:   channels,
		sampleBuf:  make([]float32, 4096*channels),
	}, nil
}

func (o *Output) SampleRate() int { return o.sampleRate }
func (o *Output) Channels() int   { return o.channels }

func (o *Output) Start(render hw.RenderFunc) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.render.Store(render)
	if o.player == nil {
		o.player = o.ctx.NewPlayer(o)
	}
	if !o.started {
		o.player.Play()
		o.started = true
	}
	return nil
}

func (o *Output) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started && o.player != nil {
		if err := o.player.Close(); err != nil {
			return fmt.Errorf("otodrv: close player: %w", err)
		}
		o.player = nil
		o.started = false
	}
	o.render.Store(hw.RenderFunc(nil))
	return nil
}

// Read is called by oto's player. It renders len(p)/4/channels frames and
// serializes them as little-endian float32.
func (o *Output) Read(p []byte) (int, error) {
	render, _ := o.render.Load().(hw.RenderFunc)
	if render == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	numSamples := len(p) / 4
	numSamples -= numSamples % o.channels
	if len(o.sampleBuf) < numSamples {
		o.sampleBuf = make([]float32, numSamples)
	}
	samples := o.sampleBuf[:numSamples]

	render(samples, numSamples/o.channels)

	for i, s := range samples {
		binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(s))
	}
	return numSamples * 4, nil
}

// Opener satisfies hw.Opener. Input supplies the capture stream for duplex
// opens since oto has no capture path of its own.
type Opener struct {
	Input hw.InputStream

	mu  sync.Mutex
	out *Output
}

func (op *Opener) OpenOutput(sampleRate, channels int) (hw.OutputStream, error) {
	return op.openOutput(sampleRate, channels)
}

func (op *Opener) OpenDuplex(sampleRate, channels int) (hw.OutputStream, hw.InputStream, error) {
	if op.Input == nil {
		return nil, nil, ErrNoInput
	}
	out, err := op.openOutput(sampleRate, channels)
	if err != nil {
		return nil, nil, err
	}
	return out, op.Input, nil
}

func (op *Opener) openOutput(sampleRate, channels int) (*Output, error) {
	op.mu.Lock()
	defer op.mu.Unlock()

	// oto contexts are process-wide; reuse a matching one
	if op.out != nil && op.out.sampleRate == sampleRate && op.out.channels == channels {
		return op.out, nil
	}
	if op.out != nil {
		return nil, fmt.Errorf("otodrv: context already open at %d Hz / %d ch", op.out.sampleRate, op.out.channels)
	}

	out, err := NewOutput(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	op.out = out
	return out, nil
}

var (
	_ hw.OutputStream = (*Output)(nil)
	_ hw.Opener       = (*Opener)(nil)
)

// Package duplex implements a real-time duplex audio session engine: it
// plays a reference track and a previously recorded vocal overlay while
// capturing live input, with sample-accurate timing correlation between the
// streams, and hands captured audio to a consumer without ever blocking the
// audio hardware callback.
//
// One engine instance owns at most one active session. The engine performs
// no resampling: tracks must already match the session sample rate.
package duplex

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/overdub-audio/duplex-go/hw"
	"github.com/overdub-audio/duplex-go/ring"
	"github.com/overdub-audio/duplex-go/wavio"
)

var (
	ErrNoStreamOpener = errors.New("duplex: no stream opener configured")
	ErrNoReference    = errors.New("duplex: no reference track loaded")
	ErrNotRecording   = errors.New("duplex: no active duplex recording session")
	ErrSinkOpen       = errors.New("duplex: file recording already active")
)

// scratchFrames sizes the callback scratch buffers; a callback larger than
// this allocates once and the larger buffer is kept.
const scratchFrames = 4096

// Engine is a duplex audio session engine. Create one with New and pass it
// by reference; its lifetime is owned by the caller. Control methods are
// safe for concurrent use; OnAudioReady is driven solely by the output
// stream.
type Engine struct {
	id     string
	logger *slog.Logger
	opener hw.Opener

	pcmRing  *ring.Ring
	metaRing *ring.Ring

	clock  sessionClock
	tracks trackStore

	// per-field atomics shared with the audio callback; documented as
	// individually consistent, not a transactional snapshot. Locking them
	// together would put a lock on the real-time path.
	mode        atomic.Int32
	running     atomic.Bool
	refGain     atomicGain
	vocGain     atomicGain
	vocalOffset atomic.Int64
	lastPeak    atomicGain
	dropped     atomic.Int64
	discarded   atomic.Int64
	sampleRate  atomic.Int32
	channels    atomic.Int32

	wake         chan struct{}
	wakeInterval time.Duration

	muCtl  sync.Mutex // control surface: stream handles, worker lifecycle
	out    hw.OutputStream
	in     hw.InputStream
	worker *dispatchWorker

	muConsumer sync.RWMutex
	consumer   Handler
	observer   Observer

	muSink sync.Mutex
	sink   *wavio.Writer

	// callback scratch, reused across callbacks
	inBuf   []float32
	pcmBuf  []byte
	metaBuf [metaRecordSize]byte
}

// New creates an engine. The rings are allocated here with fixed capacity
// and are never reallocated.
func New(opts ...Option) *Engine {
	o := &engineOptions{}
	withDefaults()(o)
	for _, opt := range opts {
		opt(o)
	}

	id, _ := gonanoid.New()
	e := &Engine{
		id:           id,
		opener:       o.opener,
		pcmRing:      ring.New(o.pcmRingBytes),
		metaRing:     ring.New(o.metaRingBytes),
		wake:         make(chan struct{}, 1),
		wakeInterval: o.wakeInterval,
	}
	e.logger = o.logger.With(
		slog.String("component", "engine"),
		slog.String("engine_id", id),
	)
	e.refGain.Store(1)
	e.vocGain.Store(1)
	e.mode.Store(int32(ModeIdle))
	return e
}

// LoadReference decodes a PCM16 WAV container into the reference track,
// keeping its interleaved channel layout. Load before starting a session:
// loading while frames are being rendered is not correctness-defined.
func (e *Engine) LoadReference(r io.ReadSeeker) error {
	t, err := wavio.Decode(r)
	if err != nil {
		return fmt.Errorf("load reference: %w", err)
	}
	e.tracks.setReference(t.Samples, t.Channels, t.SampleRate)
	e.logger.Info("reference track loaded",
		slog.Int("frames", t.Frames()),
		slog.Int("channels", t.Channels),
		slog.Int("sample_rate", t.SampleRate),
	)
	return nil
}

// LoadVocal decodes a PCM16 WAV container into the vocal track, downmixing
// to mono on load.
func (e *Engine) LoadVocal(r io.ReadSeeker) error {
	t, err := wavio.Decode(r)
	if err != nil {
		return fmt.Errorf("load vocal: %w", err)
	}
	mono := t.DownmixMono()
	e.tracks.setVocal(mono)
	e.logger.Info("vocal track loaded",
		slog.Int("frames", len(mono)),
		slog.Int("sample_rate", t.SampleRate),
	)
	return nil
}

// SetGains sets the reference and vocal mix gains. In duplex-record mode
// the vocal contribution is forced to zero at mix time regardless of the
// value set here.
func (e *Engine) SetGains(referenceGain, vocalGain float32) {
	e.refGain.Store(referenceGain)
	e.vocGain.Store(vocalGain)
}

// SetVocalOffsetFrames shifts the vocal track by n frames relative to the
// reference (positive delays the vocal). Takes effect on the next callback.
func (e *Engine) SetVocalOffsetFrames(n int64) {
	e.vocalOffset.Store(n)
}

// Mode returns the current engine mode.
func (e *Engine) Mode() Mode {
	return Mode(e.mode.Load())
}

// Snapshot returns the current session clock view. See SessionSnapshot for
// its consistency contract.
func (e *Engine) Snapshot() SessionSnapshot {
	return e.clock.snapshot()
}

// LastCapturePeak returns the peak absolute input amplitude observed during
// the most recent captured callback.
func (e *Engine) LastCapturePeak() float32 {
	return e.lastPeak.Load()
}

// DroppedFrames counts callbacks whose capture was dropped because a ring
// lacked space. DiscardedFrames counts frames drained by the worker with no
// consumer registered.
func (e *Engine) DroppedFrames() int64   { return e.dropped.Load() }
func (e *Engine) DiscardedFrames() int64 { return e.discarded.Load() }

// StartDuplexRecording opens both hardware paths at the given format and
// starts a capture session. Any active session is stopped first; gains are
// reset (reference 1, vocal 0), the vocal offset and frame counter are
// zeroed, and the rings are cleared.
func (e *Engine) StartDuplexRecording(sampleRate, channels int) error {
	e.muCtl.Lock()
	defer e.muCtl.Unlock()

	// validate before stopping so a doomed start leaves any active
	// session untouched
	if e.opener == nil {
		return ErrNoStreamOpener
	}

	e.stopLocked()

	// prepare for record
	e.refGain.Store(1)
	e.vocGain.Store(0)
	e.vocalOffset.Store(0)
	e.pcmRing.Clear()
	e.metaRing.Clear()
	e.clock.resetFrames()

	out, in, err := e.opener.OpenDuplex(sampleRate, channels)
	if err != nil {
		return fmt.Errorf("open duplex streams: %w", err)
	}

	e.out = out
	e.in = in
	e.sampleRate.Store(int32(sampleRate))
	e.channels.Store(int32(channels))
	e.inBuf = make([]float32, scratchFrames*channels)
	e.pcmBuf = make([]byte, scratchFrames*channels*2)

	id := e.clock.startSession()
	e.mode.Store(int32(ModeDuplexRecord))

	e.worker = newDispatchWorker(e.logger, e.metaRing, e.pcmRing, e.wake, e.wakeInterval, e.deliver)
	e.worker.start()

	e.running.Store(true)

	if err := in.Start(); err != nil {
		e.teardownLocked()
		return fmt.Errorf("start input stream: %w", err)
	}
	if err := out.Start(e.OnAudioReady); err != nil {
		e.teardownLocked()
		return fmt.Errorf("start output stream: %w", err)
	}

	e.logger.Info("duplex recording started",
		slog.Int64("session_id", id),
		slog.Int("sample_rate", sampleRate),
		slog.Int("channels", channels),
	)
	return nil
}

// StartPlaybackReview opens only the output path and plays reference plus
// vocal at the caller-set gains and offset. The session format follows the
// loaded reference track. No capture takes place and no worker is spawned.
func (e *Engine) StartPlaybackReview() error {
	e.muCtl.Lock()
	defer e.muCtl.Unlock()

	if e.opener == nil {
		return ErrNoStreamOpener
	}
	v := e.tracks.view()
	if len(v.reference) == 0 || v.refChannels == 0 {
		return ErrNoReference
	}

	e.stopLocked()

	// prepare for review: gains and offset are preserved
	e.pcmRing.Clear()
	e.metaRing.Clear()
	e.clock.resetFrames()

	// review plays at the reference track's own format
	sampleRate := e.tracks.referenceRate()
	if sampleRate == 0 {
		sampleRate = 48000
	}
	channels := v.refChannels

	out, err := e.opener.OpenOutput(sampleRate, channels)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}

	e.out = out
	e.sampleRate.Store(int32(sampleRate))
	e.channels.Store(int32(channels))

	id := e.clock.startSession()
	e.mode.Store(int32(ModePlaybackReview))
	e.running.Store(true)

	if err := out.Start(e.OnAudioReady); err != nil {
		e.teardownLocked()
		return fmt.Errorf("start output stream: %w", err)
	}

	e.logger.Info("playback review started",
		slog.Int64("session_id", id),
		slog.Int("sample_rate", sampleRate),
		slog.Int("channels", channels),
	)
	return nil
}

// Stop deactivates all hardware paths, joins the dispatch worker, clears
// the rings and resets the frame counter. It blocks until the worker has
// fully exited: after Stop returns, no further consumer callbacks occur. An
// open file sink is finalized.
func (e *Engine) Stop() error {
	e.muCtl.Lock()
	defer e.muCtl.Unlock()
	e.stopLocked()
	return e.closeSink()
}

// stopLocked tears down the active session. Callers hold muCtl.
func (e *Engine) stopLocked() {
	if Mode(e.mode.Load()) == ModeIdle && e.worker == nil && e.out == nil {
		return
	}

	e.running.Store(false)

	// Stopping the output first guarantees the render callback is
	// quiescent before stream handles are released.
	if e.out != nil {
		if err := e.out.Stop(); err != nil {
			e.logger.Error("stop output stream", slog.Any("err", err))
		}
	}
	if e.in != nil {
		if err := e.in.Stop(); err != nil {
			e.logger.Error("stop input stream", slog.Any("err", err))
		}
	}

	if e.worker != nil {
		e.worker.stop()
		e.worker = nil
	}

	e.out = nil
	e.in = nil
	e.pcmRing.Clear()
	e.metaRing.Clear()
	e.clock.resetFrames()
	e.mode.Store(int32(ModeIdle))

	e.logger.Info("session stopped")
}

// teardownLocked rolls back a partially started session.
func (e *Engine) teardownLocked() {
	e.running.Store(false)
	if e.out != nil {
		_ = e.out.Stop()
	}
	if e.in != nil {
		_ = e.in.Stop()
	}
	if e.worker != nil {
		e.worker.stop()
		e.worker = nil
	}
	e.out = nil
	e.in = nil
	e.mode.Store(int32(ModeIdle))
}

// OnAudioReady is the sole real-time entry point, invoked by the output
// stream for every hardware callback. It pulls captured input, advances the
// session clock, mixes the output buffer and pushes encoded capture data
// into the rings. It never blocks, never calls the consumer and, past
// warm-up, never allocates.
//
// The mixed output is the raw float sum of the track contributions; it is
// deliberately not limited or clamped before being handed to hardware.
func (e *Engine) OnAudioReady(out []float32, numFrames int) {
	if !e.running.Load() {
		for i := range out {
			out[i] = 0
		}
		return
	}

	outCh := int(e.channels.Load())
	mode := Mode(e.mode.Load())

	// Pull input inside the output callback so capture cadence is tied to
	// the master output clock.
	gotFrames := 0
	if mode == ModeDuplexRecord && e.in != nil {
		need := numFrames * outCh
		if len(e.inBuf) < need {
			e.inBuf = make([]float32, need)
		}
		gotFrames = e.in.ReadFrames(e.inBuf[:need])
	}

	pos := e.clock.frame.Load()

	view := e.tracks.view()
	refGain := e.refGain.Load()
	vocGain := e.vocGain.Load()
	if mode == ModeDuplexRecord {
		vocGain = 0
	}
	mixInto(out, numFrames, outCh, view, pos, refGain, vocGain, e.vocalOffset.Load(), mode == ModePlaybackReview)

	// The counter advances by exactly numFrames regardless of track
	// lengths; tracks past their end contribute silence.
	e.clock.frame.Add(int64(numFrames))

	if gotFrames > 0 {
		e.onCaptured(e.inBuf[:gotFrames*outCh], gotFrames, outCh, pos)
	}
}

// onCaptured encodes one callback's captured samples and pushes the
// (metadata, payload) pair into the rings. The pair is transactional from
// this side: free space on both rings is verified before either push, so a
// shortfall drops the whole callback's capture silently rather than
// desynchronizing the pair stream.
func (e *Engine) onCaptured(samples []float32, gotFrames, outCh int, outPos int64) {
	e.clock.markFirstCapture(outPos)

	inPos := e.clock.inputFrames.Load()
	e.clock.inputFrames.Add(int64(gotFrames))

	n := len(samples) * 2
	if len(e.pcmBuf) < n {
		e.pcmBuf = make([]byte, n)
	}
	peak := encodePCM16(e.pcmBuf[:n], samples)
	e.lastPeak.Store(peak)

	meta := CaptureFrame{
		NumFrames:        int32(gotFrames),
		SampleRate:       e.sampleRate.Load(),
		Channels:         int32(outCh),
		OutputFramePos:   outPos,
		InputFramePos:    inPos,
		TimestampNanos:   time.Now().UnixNano(),
		RelativeFramePos: outPos - e.clock.startFrame.Load(),
		SessionID:        e.clock.sessionID.Load(),
	}

	if e.metaRing.Free() < metaRecordSize || e.pcmRing.Free() < n {
		e.dropped.Add(1)
		return
	}
	meta.marshal(e.metaBuf[:])
	e.metaRing.Push(e.metaBuf[:])
	e.pcmRing.Push(e.pcmBuf[:n])

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// deliver runs on the dispatch worker goroutine. While a file sink is open,
// live consumer delivery is suppressed in favor of the sink.
func (e *Engine) deliver(meta CaptureFrame, pcm []byte) {
	e.muConsumer.RLock()
	h := e.consumer
	obs := e.observer
	e.muConsumer.RUnlock()

	e.muSink.Lock()
	sink := e.sink
	e.muSink.Unlock()

	if sink != nil {
		if err := sink.WritePCM16(pcm); err != nil {
			e.logger.Error("sink write failed", slog.Any("err", err))
			return
		}
		if obs.OnSinkWrite != nil {
			obs.OnSinkWrite(meta, len(pcm))
		}
		return
	}

	if h == nil {
		e.discarded.Add(1)
		if obs.OnDiscard != nil {
			obs.OnDiscard(meta)
		}
		return
	}

	h(pcm, meta)
	if obs.OnDeliver != nil {
		obs.OnDeliver(meta, len(pcm))
	}
}

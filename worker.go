package duplex

import (
	"log/slog"
	"sync"
	"time"

	"github.com/overdub-audio/duplex-go/ring"
)

// dispatchWorker drains matched (metadata, payload) pairs from the rings on
// a dedicated goroutine and hands them to the delivery function. Delivery
// may block or take arbitrary time; keeping that latency off the audio
// callback is the whole reason this goroutine exists.
type dispatchWorker struct {
	logger   *slog.Logger
	metaRing *ring.Ring
	pcmRing  *ring.Ring
	wake     <-chan struct{}
	interval time.Duration
	deliver  func(meta CaptureFrame, pcm []byte)

	quit chan struct{}
	wg   sync.WaitGroup
}

func newDispatchWorker(
	logger *slog.Logger,
	metaRing, pcmRing *ring.Ring,
	wake <-chan struct{},
	interval time.Duration,
	deliver func(meta CaptureFrame, pcm []byte),
) *dispatchWorker {
	return &dispatchWorker{
		logger:   logger.With(slog.String("component", "dispatch_worker")),
		metaRing: metaRing,
		pcmRing:  pcmRing,
		wake:     wake,
		interval: interval,
		deliver:  deliver,
		quit:     make(chan struct{}),
	}
}

func (w *dispatchWorker) start() {
	w.wg.Add(1)
	go w.loop()
}

// stop signals the worker and blocks until it has fully exited; no delivery
// occurs after stop returns.
func (w *dispatchWorker) stop() {
	close(w.quit)
	w.wg.Wait()
}

func (w *dispatchWorker) loop() {
	defer w.wg.Done()
	w.logger.Debug("worker started")

	// The bounded timeout guards against a missed wake signal.
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.quit:
			w.drain()
			w.logger.Debug("worker exiting")
			return
		case <-w.wake:
		case <-ticker.C:
		}
		w.drain()
	}
}

// drain pops complete (metadata, payload) pairs in FIFO order. A metadata
// record is not complete until its full payload is also present: the
// producer may have written metadata fractionally ahead, in which case we
// leave the record in place and wait for the next wake rather than
// partially consume.
func (w *dispatchWorker) drain() {
	var metaBuf [metaRecordSize]byte
	for {
		if w.metaRing.Size() < metaRecordSize {
			return
		}
		if !w.metaRing.Peek(metaBuf[:]) {
			return
		}
		meta := unmarshalCaptureFrame(metaBuf[:])

		need := meta.PayloadBytes()
		if w.pcmRing.Size() < need {
			return
		}

		w.metaRing.Pop(metaBuf[:])
		payload := make([]byte, need)
		w.pcmRing.Pop(payload)

		// payload is a fresh allocation: ownership moves to the
		// consumer, nothing aliases the ring storage.
		w.deliver(meta, payload)
	}
}

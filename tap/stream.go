// Package tap provides consumer-side adapters over the engine's capture
// delivery: an io.Reader stream for code that wants to pull captured PCM,
// and (in the ws subpackage) a websocket forwarder.
package tap

import (
	"io"
	"sync"

	"github.com/smallnest/ringbuffer"

	duplex "github.com/overdub-audio/duplex-go"
)

// Stream buffers delivered capture payloads and exposes them as a blocking
// io.Reader. Writes come from the engine's dispatch worker; reads may come
// from any single goroutine. When the buffer is full the oldest data is
// kept and the incoming payload is truncated rather than blocking the
// worker indefinitely.
type Stream struct {
	b      *ringbuffer.RingBuffer
	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
}

// NewStream creates a stream buffering up to size bytes of PCM.
func NewStream(size int) *Stream {
	s := &Stream{
		b: ringbuffer.New(size),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Handler returns the capture handler to register on the engine.
func (s *Stream) Handler() duplex.Handler {
	return func(pcm []byte, _ duplex.CaptureFrame) {
		s.write(pcm)
	}
}

func (s *Stream) write(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if free := s.b.Free(); len(p) > free {
		p = p[:free]
	}
	if len(p) == 0 {
		return
	}
	_, _ = s.b.Write(p)
	s.cond.Broadcast()
}

// Read blocks until at least one byte is available or the stream is closed,
// then returns the largest available prefix of p.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.b.Length() == 0 && !s.closed {
		s.cond.Wait()
	}

	if s.closed && s.b.Length() == 0 {
		return 0, io.EOF
	}

	n := min(len(p), s.b.Length())
	if n > 0 {
		_, _ = s.b.Read(p[:n])
	}
	return n, nil
}

// Buffered returns how many bytes are waiting to be read.
func (s *Stream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Length()
}

// Close wakes all blocked readers; pending data remains readable, after
// which reads return io.EOF.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
	return nil
}

var _ io.ReadCloser = (*Stream)(nil)

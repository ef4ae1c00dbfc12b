package duplex

import "sync/atomic"

// SessionSnapshot is a point-in-time view of the session clock. The fields
// are individually atomic, not transactionally consistent: a capture event
// racing the read may leave counters stale by one callback. That is
// acceptable for monitoring; it is not a bit-exact alignment source.
type SessionSnapshot struct {
	SessionID         int64
	SessionStartFrame int64
	FirstCaptureFrame int64
	LastFrame         int64
	OffsetFrames      int64
	HasCaptured       bool
}

// sessionClock tracks the master output frame counter, the session identity
// and the first-capture latency latch. All mutation happens on the audio
// callback except startSession/reset, which run only while the callback is
// quiescent.
type sessionClock struct {
	frame       atomic.Int64 // master output frame counter
	inputFrames atomic.Int64 // cumulative captured frames

	sessionID    atomic.Int64 // monotonically increasing, never reused
	startFrame   atomic.Int64
	firstCapture atomic.Int64
	offset       atomic.Int64
	captured     atomic.Bool
}

// startSession allocates a fresh session id, latches the current output
// frame position as the session start and clears the first-capture latch.
func (c *sessionClock) startSession() int64 {
	id := c.sessionID.Add(1)
	c.startFrame.Store(c.frame.Load())
	c.firstCapture.Store(0)
	c.offset.Store(0)
	c.captured.Store(false)
	return id
}

// markFirstCapture latches the output frame position at which captured
// input was first observed and computes the monitoring offset. The CAS
// guard guarantees the latch fires at most once per session no matter how
// many observers race it. Returns true for the winning call.
func (c *sessionClock) markFirstCapture(outFrame int64) bool {
	if !c.captured.CompareAndSwap(false, true) {
		return false
	}
	c.firstCapture.Store(outFrame)
	c.offset.Store(outFrame - c.startFrame.Load())
	return true
}

func (c *sessionClock) resetFrames() {
	c.frame.Store(0)
	c.inputFrames.Store(0)
}

// snapshot reads the capture fields before the counters so a racing capture
// event cannot yield an offset without its latch.
func (c *sessionClock) snapshot() SessionSnapshot {
	captured := c.captured.Load()
	first := c.firstCapture.Load()
	off := c.offset.Load()
	return SessionSnapshot{
		SessionID:         c.sessionID.Load(),
		SessionStartFrame: c.startFrame.Load(),
		FirstCaptureFrame: first,
		LastFrame:         c.frame.Load(),
		OffsetFrames:      off,
		HasCaptured:       captured,
	}
}

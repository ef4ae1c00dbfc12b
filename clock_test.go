package duplex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionIDsAreMonotonic(t *testing.T) {
	var c sessionClock

	seen := map[int64]bool{}
	for i := 0; i < 100; i++ {
		id := c.startSession()
		require.False(t, seen[id], "session id %d reused", id)
		seen[id] = true
		require.Equal(t, int64(i+1), id)
	}
}

func TestFirstCaptureLatchFiresOnce(t *testing.T) {
	var c sessionClock
	c.frame.Store(1000)
	c.startSession()

	const goroutines = 32
	var wg sync.WaitGroup
	var winners sync.Map
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(frame int64) {
			defer wg.Done()
			if c.markFirstCapture(frame) {
				winners.Store(frame, true)
			}
		}(1000 + int64(g))
	}
	wg.Wait()

	count := 0
	var winner int64
	winners.Range(func(k, _ any) bool {
		count++
		winner = k.(int64)
		return true
	})
	require.Equal(t, 1, count)

	snap := c.snapshot()
	require.True(t, snap.HasCaptured)
	require.Equal(t, winner, snap.FirstCaptureFrame)
	require.Equal(t, winner-1000, snap.OffsetFrames)
}

func TestLatchResetsPerSession(t *testing.T) {
	var c sessionClock
	c.startSession()
	require.True(t, c.markFirstCapture(10))
	require.False(t, c.markFirstCapture(20))

	c.frame.Store(500)
	c.startSession()
	snap := c.snapshot()
	require.False(t, snap.HasCaptured)
	require.Equal(t, int64(500), snap.SessionStartFrame)

	require.True(t, c.markFirstCapture(620))
	require.Equal(t, int64(120), c.snapshot().OffsetFrames)
}

func TestSnapshotTracksFrameCounter(t *testing.T) {
	var c sessionClock
	c.startSession()
	c.frame.Add(128)
	c.frame.Add(128)
	require.Equal(t, int64(256), c.snapshot().LastFrame)

	c.resetFrames()
	require.Equal(t, int64(0), c.snapshot().LastFrame)
}

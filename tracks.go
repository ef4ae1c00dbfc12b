package duplex

import "sync"

// trackStore owns the decoded reference and vocal sample buffers. The
// buffers are immutable once stored; the mutex only orders a load against
// the render path, which holds it just long enough to copy out slice
// headers for one callback's mix.
type trackStore struct {
	mu          sync.Mutex
	reference   []float32 // interleaved
	refChannels int
	refRate     int
	vocal       []float32 // mono
}

// trackView is the minimal per-callback copy the mixer reads from. The
// underlying sample data is shared but never mutated after load.
type trackView struct {
	reference   []float32
	refChannels int
	vocal       []float32
}

func (s *trackStore) setReference(samples []float32, channels, sampleRate int) {
	s.mu.Lock()
	s.reference = samples
	s.refChannels = channels
	s.refRate = sampleRate
	s.mu.Unlock()
}

func (s *trackStore) referenceRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refRate
}

func (s *trackStore) setVocal(mono []float32) {
	s.mu.Lock()
	s.vocal = mono
	s.mu.Unlock()
}

func (s *trackStore) view() trackView {
	s.mu.Lock()
	v := trackView{
		reference:   s.reference,
		refChannels: s.refChannels,
		vocal:       s.vocal,
	}
	s.mu.Unlock()
	return v
}

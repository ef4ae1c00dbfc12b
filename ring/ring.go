// Package ring implements a fixed-capacity single-producer/single-consumer
// byte ring. One goroutine may push while another pops concurrently without
// any external locking; the producer owns the write index, the consumer owns
// the read index, and each publishes its index only after the corresponding
// data copy. Multiple producers or multiple consumers are a caller contract
// violation.
//
// The ring holds at most Capacity()-1 bytes at any time: one slot is kept
// free to disambiguate full from empty.
package ring

import "sync/atomic"

// Ring is an SPSC byte ring of fixed capacity. The zero value is not usable;
// use New.
type Ring struct {
	buf  []byte
	cap  int64
	head atomic.Int64 // write index, advanced only by the producer
	tail atomic.Int64 // read index, advanced only by the consumer
}

// New creates a ring holding up to capacity-1 bytes. The buffer is allocated
// once here; no operation on the ring allocates.
func New(capacity int) *Ring {
	if capacity < 2 {
		panic("ring: capacity must be at least 2")
	}
	return &Ring{
		buf: make([]byte, capacity),
		cap: int64(capacity),
	}
}

// Capacity returns the fixed capacity of the ring's buffer. The usable
// capacity is one byte less.
func (r *Ring) Capacity() int { return int(r.cap) }

// Size returns the number of bytes currently held. It is consistent between
// one producer and one consumer observing each other's published index.
func (r *Ring) Size() int {
	h := r.head.Load()
	t := r.tail.Load()
	if h >= t {
		return int(h - t)
	}
	return int(r.cap - (t - h))
}

// Free returns how many bytes a Push can currently accept.
func (r *Ring) Free() int {
	return int(r.cap) - 1 - r.Size()
}

// Push appends p in full, or not at all. It returns false if fewer than
// len(p) bytes are free. Push never blocks and never allocates; it must be
// called by the single producer only.
func (r *Ring) Push(p []byte) bool {
	n := int64(len(p))
	if n == 0 {
		return true
	}
	h := r.head.Load()
	t := r.tail.Load()
	var used int64
	if h >= t {
		used = h - t
	} else {
		used = r.cap - (t - h)
	}
	if n > r.cap-used-1 {
		return false
	}

	chunk := min(n, r.cap-h)
	copy(r.buf[h:], p[:chunk])
	if n > chunk {
		copy(r.buf, p[chunk:])
	}
	r.head.Store((h + n) % r.cap)
	return true
}

// Peek copies len(dst) bytes from the front of the ring without consuming
// them. It returns false if fewer than len(dst) bytes are held. Consumer
// side only.
func (r *Ring) Peek(dst []byte) bool {
	n := int64(len(dst))
	if int64(r.Size()) < n {
		return false
	}
	t := r.tail.Load()
	chunk := min(n, r.cap-t)
	copy(dst, r.buf[t:t+chunk])
	if n > chunk {
		copy(dst[chunk:], r.buf[:n-chunk])
	}
	return true
}

// Pop copies up to len(dst) bytes out of the ring and consumes them,
// returning the number of bytes popped (zero if the ring is empty).
// Consumer side only.
func (r *Ring) Pop(dst []byte) int {
	avail := int64(r.Size())
	n := min(int64(len(dst)), avail)
	if n == 0 {
		return 0
	}
	t := r.tail.Load()
	chunk := min(n, r.cap-t)
	copy(dst, r.buf[t:t+chunk])
	if n > chunk {
		copy(dst[chunk:], r.buf[:n-chunk])
	}
	r.tail.Store((t + n) % r.cap)
	return int(n)
}

// Clear resets both indices, discarding all held bytes. It is only safe to
// call while no concurrent Push or Pop is in flight.
func (r *Ring) Clear() {
	r.head.Store(0)
	r.tail.Store(0)
}

package ringbuffer

import (
	"sync/atomic"
	"time"
)

// RingBuffer is a fixed-capacity byte queue for exactly one writer and one
// reader. The writer only advances the write cursor and the reader only
// advances the read cursor; both cursors count bytes since creation and never
// wrap, so occupancy is always written-consumed.
//
// Write and Free belong to the producer. Read belongs to the consumer.
// Available, Written and Consumed are snapshots and may be called from anywhere.
type RingBuffer struct {
	// Separate cache lines for the two cursors.
	written  atomic.Uint64
	_pad1    [56]byte
	consumed atomic.Uint64
	_pad2    [56]byte

	buf      []byte
	capacity uint64
}

// New allocates a ring buffer holding capacity bytes.
func New(capacity int) *RingBuffer {
	if capacity <= 0 {
		panic("ringbuffer: capacity must be positive")
	}
	return &RingBuffer{
		buf:      make([]byte, capacity),
		capacity: uint64(capacity),
	}
}

// MaxDuration is the largest buffer SizeFor will size for.
const MaxDuration = 10 * time.Second

// SizeFor returns the capacity in bytes needed to hold d of raw audio, with d
// capped at MaxDuration. The result is always a whole number of frames and at
// least one frame.
func SizeFor(d time.Duration, sampleRate, channels, sampleWidth int) int {
	if d > MaxDuration {
		d = MaxDuration
	}
	frameBytes := channels * sampleWidth
	rate := int64(sampleRate)
	secs, frac := int64(d/time.Second), int64(d%time.Second)
	frames := int(rate*secs + rate*frac/int64(time.Second))
	if frames < 1 {
		frames = 1
	}
	return frames * frameBytes
}

// Write copies as much of p as fits into free space and returns the number of
// bytes copied. Bytes that do not fit are dropped. Write never blocks and
// never allocates.
func (rb *RingBuffer) Write(p []byte) int {
	w := rb.written.Load()
	r := rb.consumed.Load()

	free := rb.capacity - (w - r)
	n := uint64(len(p))
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}

	pos := w % rb.capacity
	first := rb.capacity - pos
	if first >= n {
		copy(rb.buf[pos:pos+n], p[:n])
	} else {
		copy(rb.buf[pos:], p[:first])
		copy(rb.buf[:n-first], p[first:n])
	}

	// Publish only after the bytes are in place.
	rb.written.Store(w + n)
	return int(n)
}

// Read copies up to len(p) bytes into p and returns the number copied.
func (rb *RingBuffer) Read(p []byte) int {
	r := rb.consumed.Load()
	w := rb.written.Load()

	available := w - r
	n := uint64(len(p))
	if n > available {
		n = available
	}
	if n == 0 {
		return 0
	}

	pos := r % rb.capacity
	first := rb.capacity - pos
	if first >= n {
		copy(p[:n], rb.buf[pos:pos+n])
	} else {
		copy(p[:first], rb.buf[pos:])
		copy(p[first:n], rb.buf[:n-first])
	}

	// Release the space only after the bytes have been copied out.
	rb.consumed.Store(r + n)
	return int(n)
}

// Available returns the number of bytes waiting to be read.
func (rb *RingBuffer) Available() int {
	return int(rb.occupancy())
}

// Free returns the number of bytes that can be written without truncation.
func (rb *RingBuffer) Free() int {
	return int(rb.capacity - rb.occupancy())
}

// occupancy loads the read cursor first so w >= r holds on either side. A
// caller that is neither producer nor consumer can still observe a transient
// value above capacity, which is clamped.
func (rb *RingBuffer) occupancy() uint64 {
	r := rb.consumed.Load()
	w := rb.written.Load()
	if n := w - r; n < rb.capacity {
		return n
	}
	return rb.capacity
}

// Cap returns the capacity in bytes.
func (rb *RingBuffer) Cap() int {
	return int(rb.capacity)
}

// Written returns the total number of bytes ever written.
func (rb *RingBuffer) Written() uint64 {
	return rb.written.Load()
}

// Consumed returns the total number of bytes ever read.
func (rb *RingBuffer) Consumed() uint64 {
	return rb.consumed.Load()
}

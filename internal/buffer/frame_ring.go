// Package buffer provides a bounded ring of recent frames per room.
package buffer

import (
	"sync"

	"github.com/opspulse/pulsefeed/internal/wire"
)

// FrameRing is a thread-safe circular buffer that keeps the most recent
// frames up to a fixed capacity. When full, the oldest frame is discarded.
//
// The relay keeps one ring per room so dashboard widgets can backfill a
// view on mount. It is a convenience cache, not a delivery guarantee: a
// client that was disconnected is never replayed anything automatically.
type FrameRing struct {
	frames   []wire.Frame
	start    int
	count    int
	capacity int
	mu       sync.RWMutex
}

// NewFrameRing creates a ring with the given capacity. Capacity must be
// greater than 0; if not, it defaults to 1.
func NewFrameRing(capacity int) *FrameRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &FrameRing{
		frames:   make([]wire.Frame, capacity),
		capacity: capacity,
	}
}

// Push appends a frame, discarding the oldest one when the ring is full.
func (r *FrameRing) Push(f wire.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count < r.capacity {
		r.frames[(r.start+r.count)%r.capacity] = f
		r.count++
		return
	}
	r.frames[r.start] = f
	r.start = (r.start + 1) % r.capacity
}

// Snapshot returns the buffered frames, oldest first. The returned slice is
// a copy and safe to use without holding the lock.
func (r *FrameRing) Snapshot() []wire.Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return nil
	}
	out := make([]wire.Frame, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.frames[(r.start+i)%r.capacity]
	}
	return out
}

// Len returns the number of buffered frames.
func (r *FrameRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap returns the ring capacity.
func (r *FrameRing) Cap() int {
	return r.capacity
}

// Clear removes all buffered frames.
func (r *FrameRing) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = 0
	r.count = 0
}

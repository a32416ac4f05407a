package realtime

import (
	"math/rand"
	"time"
)

const (
	// DefaultBackoffBase is the initial reconnect delay.
	DefaultBackoffBase = time.Second

	// DefaultBackoffCap is the maximum reconnect delay.
	DefaultBackoffCap = 30 * time.Second
)

// Backoff computes exponential reconnect delays with jitter:
// min(cap, base*2^attempt) plus a random jitter in [0, base).
//
// Attempts are unbounded; the caller decides when to stop retrying.
// Backoff is not safe for concurrent use; each reconnect loop owns one.
type Backoff struct {
	base    time.Duration
	cap     time.Duration
	attempt int
	rng     *rand.Rand
}

// NewBackoff creates a backoff policy. Non-positive base or cap fall back to
// the defaults; a cap below base is raised to base.
func NewBackoff(base, cap time.Duration) *Backoff {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if cap <= 0 {
		cap = DefaultBackoffCap
	}
	if cap < base {
		cap = base
	}
	return &Backoff{
		base: base,
		cap:  cap,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay before the next attempt and advances the counter.
func (b *Backoff) Next() time.Duration {
	delay := b.cap
	// Guard the shift against overflow for long outages.
	if b.attempt < 62 {
		if d := b.base << uint(b.attempt); d < b.cap && d > 0 {
			delay = d
		}
	}
	b.attempt++
	return delay + time.Duration(b.rng.Int63n(int64(b.base)))
}

// Reset restores the initial delay after a successful connection.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt returns the number of delays handed out since the last reset.
func (b *Backoff) Attempt() int {
	return b.attempt
}

// Package bell provides audible bell collaborators for terminal sessions.
package bell

import (
	"io"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum spacing between rings of a Writer.
const DefaultInterval = 100 * time.Millisecond

// Func adapts a plain function to a bell.
type Func func()

func (f Func) Ring() { f() }

// Writer rings by writing BEL to w, typically the user's tty. Bursts are
// collapsed so a remote program spamming BEL does not flood the output.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	limiter *rate.Limiter
	rung    int
	dropped int
}

// NewWriter creates a bell writing to w at most once per interval. A zero
// interval uses DefaultInterval; a negative one disables limiting.
func NewWriter(w io.Writer, interval time.Duration) *Writer {
	if interval == 0 {
		interval = DefaultInterval
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Writer{w: w, limiter: rate.NewLimiter(limit, 1)}
}

// Ring writes BEL unless the previous ring was too recent.
func (b *Writer) Ring() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.limiter.Allow() {
		b.dropped++
		return
	}
	if _, err := b.w.Write([]byte{'\a'}); err != nil {
		b.dropped++
		return
	}
	b.rung++
}

// Counts returns how many rings were written and how many were dropped.
func (b *Writer) Counts() (rung, dropped int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rung, b.dropped
}

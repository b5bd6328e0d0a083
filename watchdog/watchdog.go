// Package watchdog supervises the module's own liveness. The router pings
// the module periodically; if the pings stop for longer than the configured
// timeout, the module is presumed orphaned (router killed or hung) and must
// shut itself down instead of leaking a process per stale connection.
package watchdog

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrExpired is returned by Run when no liveness signal arrived within the
// timeout. It is returned at most once; a watchdog is single-use.
var ErrExpired = errors.New("watchdog: keepalive timeout expired")

// Watchdog tracks the most recent liveness signal and compares it against
// a timeout on a periodic tick.
//
// Signal has exactly one logical writer (the transport's read loop) and the
// timer tick exactly one reader, so an atomic timestamp is the only shared
// state: no lock, and a burst of signals can never stall or be dropped.
type Watchdog struct {
	timeout time.Duration
	last    atomic.Int64 // unix nanos of the most recent signal
}

// New creates a watchdog for the given timeout. The caller is responsible
// for validating timeout > 0; Run treats the construction instant as the
// first signal.
func New(timeout time.Duration) *Watchdog {
	w := &Watchdog{timeout: timeout}
	w.last.Store(time.Now().UnixNano())
	return w
}

// Signal records a liveness signal. Safe to call from any goroutine; never
// blocks.
func (w *Watchdog) Signal() {
	w.last.Store(time.Now().UnixNano())
}

// Run evaluates the timeout until it expires or ctx is canceled.
//
// It returns ErrExpired when the time since the last signal strictly
// exceeds the timeout, and nil when ctx is canceled first (the process is
// already shutting down for another reason, no trigger needed).
func (w *Watchdog) Run(ctx context.Context) error {
	interval := w.timeout / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			last := time.Unix(0, w.last.Load())
			if now.Sub(last) > w.timeout {
				return ErrExpired
			}
		}
	}
}

// Package stream implements the per-call result channel: an unbounded
// FIFO queue from the code producing result chunks to the transport
// draining them onto the pipe.
//
// Buffering is deliberately unbounded. A stalled pipe writer must never
// block a producer, otherwise a module's internal worker pool can deadlock
// against transport conditions it cannot observe. The trade-off is memory
// growth under a pathologically slow consumer.
package stream

import (
	"sync"

	"modpipe/payload"
	"modpipe/status"
)

// Chunk is one unit of streamed call output: either a successful payload or
// a terminal status. A non-nil Status ends the stream; no further chunks
// follow it.
type Chunk struct {
	Data   payload.Payload
	Status *status.Status
}

// New creates one call's result channel and returns its two ends.
// The dispatching code owns the Sender; the transport owns the Receiver.
// Ends are never shared across calls.
func New() (*Sender, *Receiver) {
	s := &state{}
	s.cond = sync.NewCond(&s.mu)
	return &Sender{s: s}, &Receiver{s: s}
}

type state struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Chunk
	closed bool
}

// Sender is the producing end. All methods are safe for concurrent use and
// never block.
type Sender struct {
	s *state
}

// Send enqueues one successful payload chunk. It reports false if the
// stream is already closed.
func (tx *Sender) Send(data payload.Payload) bool {
	return tx.push(Chunk{Data: data}, false)
}

// Fail enqueues a terminal status chunk and closes the stream. Use it for
// fatal, call-ending conditions discovered after streaming has begun;
// closing silently instead is reported to the router as a clean
// end-of-stream.
func (tx *Sender) Fail(st *status.Status) bool {
	return tx.push(Chunk{Status: st}, true)
}

// Close ends the stream cleanly. Chunks already enqueued are still
// delivered. Close after Close or Fail is a no-op.
func (tx *Sender) Close() {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	if tx.s.closed {
		return
	}
	tx.s.closed = true
	tx.s.cond.Broadcast()
}

func (tx *Sender) push(c Chunk, terminal bool) bool {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	if tx.s.closed {
		return false
	}
	tx.s.queue = append(tx.s.queue, c)
	if terminal {
		tx.s.closed = true
	}
	tx.s.cond.Broadcast()
	return true
}

// Receiver is the consuming end.
type Receiver struct {
	s *state
}

// Recv blocks until a chunk is available or the stream is closed and
// drained. ok=false means clean end-of-stream: every enqueued chunk has
// already been delivered and no error was recorded.
func (rx *Receiver) Recv() (Chunk, bool) {
	rx.s.mu.Lock()
	defer rx.s.mu.Unlock()
	for len(rx.s.queue) == 0 && !rx.s.closed {
		rx.s.cond.Wait()
	}
	if len(rx.s.queue) == 0 {
		return Chunk{}, false
	}
	c := rx.s.queue[0]
	rx.s.queue = rx.s.queue[1:]
	return c, true
}

// TryRecv is a non-blocking Recv. done reports that the stream is closed
// and fully drained.
func (rx *Receiver) TryRecv() (c Chunk, ok bool, done bool) {
	rx.s.mu.Lock()
	defer rx.s.mu.Unlock()
	if len(rx.s.queue) > 0 {
		c = rx.s.queue[0]
		rx.s.queue = rx.s.queue[1:]
		return c, true, false
	}
	return Chunk{}, false, rx.s.closed
}

// Package transport binds a dispatch.Service to the process's inherited
// byte streams instead of a network listener.
//
// Processing pipeline:
//
//	stdin → readLoop (single goroutine decodes frames sequentially)
//	  → for each Call frame: go handleCall (parallel, one per in-flight call)
//	    → codec.DecodeRequest → Service.Call → pump the result stream
//	      → Data frames ... terminal End/Error frame → stdout
//
// A single reader is mandatory (pipes are byte streams; frame boundaries
// must be parsed sequentially) and a shared write mutex keeps concurrently
// pumped calls from interleaving bytes inside a frame.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"modpipe/codec"
	"modpipe/dispatch"
	"modpipe/protocol"
	"modpipe/status"
)

// ErrCorrupted reports that the inbound stream lost frame synchronization:
// no call boundary can be recovered, so the whole transport shuts down.
var ErrCorrupted = errors.New("transport: inbound stream corrupted")

// DefaultShutdownGrace bounds how long in-flight calls may keep flushing
// already-queued chunks once shutdown has begun.
const DefaultShutdownGrace = 5 * time.Second

// Config carries the adapter's collaborators. Reader, Writer, and Service
// are required.
type Config struct {
	Reader  io.Reader
	Writer  io.Writer
	Service dispatch.Service

	// OnSignal is invoked for every well-formed inbound frame — keepalives
	// and calls alike both prove the router is still there. Must not block.
	OnSignal func()

	// ShutdownGrace caps the drain of in-flight calls during shutdown.
	// Zero means DefaultShutdownGrace.
	ShutdownGrace time.Duration

	Logger *zap.Logger
}

// Adapter pumps calls between the pipe pair and a dispatch.Service.
type Adapter struct {
	cfg Config

	writeMu   sync.Mutex
	writeDead atomic.Bool // set after the first write error; later writes are dropped
	wg        sync.WaitGroup
	stopped   chan struct{}
}

// New creates an adapter. It does not touch the streams until Serve.
func New(cfg Config) (*Adapter, error) {
	if cfg.Reader == nil || cfg.Writer == nil {
		return nil, errors.New("transport: reader and writer are required")
	}
	if cfg.Service == nil {
		return nil, errors.New("transport: service is required")
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.OnSignal == nil {
		cfg.OnSignal = func() {}
	}
	return &Adapter{cfg: cfg, stopped: make(chan struct{})}, nil
}

type inboundFrame struct {
	header *protocol.Header
	body   []byte
	err    error
}

// Serve reads frames and dispatches calls until the inbound stream ends,
// frame synchronization is lost, or ctx is canceled. On every exit path it
// stops accepting new calls, then lets in-flight calls flush
// already-queued chunks within the shutdown grace period.
//
// Returns nil on clean end-of-stream (router closed the pipe) and on ctx
// cancellation; returns an error wrapping ErrCorrupted when the inbound
// stream is corrupted.
func (a *Adapter) Serve(ctx context.Context) error {
	frames := make(chan inboundFrame)
	go a.readLoop(frames)

	var retErr error

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case in := <-frames:
			if in.err != nil {
				if !errors.Is(in.err, io.EOF) {
					retErr = fmt.Errorf("%w: %v", ErrCorrupted, in.err)
				}
				break loop
			}

			a.cfg.OnSignal()

			switch in.header.MsgType {
			case protocol.MsgTypeKeepalive:
				// Liveness only; nothing to dispatch.
			case protocol.MsgTypeCall:
				a.wg.Add(1)
				go a.handleCall(ctx, in.header, in.body)
			default:
				// Only the module writes Data/Error/End frames. Seeing one
				// inbound means the peer is not a router speaking this
				// protocol.
				retErr = fmt.Errorf("%w: unexpected inbound message type %d", ErrCorrupted, in.header.MsgType)
				break loop
			}
		}
	}

	close(a.stopped)
	a.drain()
	return retErr
}

// readLoop decodes frames sequentially and hands them to Serve. It exits on
// the first decode error or once Serve has stopped consuming.
func (a *Adapter) readLoop(frames chan<- inboundFrame) {
	for {
		header, body, err := protocol.Decode(a.cfg.Reader)
		select {
		case frames <- inboundFrame{header: header, body: body, err: err}:
		case <-a.stopped:
			return
		}
		if err != nil {
			return
		}
	}
}

// handleCall runs one call to completion: decode, dispatch once, pump the
// result stream. Call-scoped failures never cross onto other calls.
func (a *Adapter) handleCall(ctx context.Context, header *protocol.Header, body []byte) {
	defer a.wg.Done()

	cdc := codec.GetCodec(codec.CodecType(header.CodecType))

	req, err := cdc.DecodeRequest(body)
	if err != nil {
		// The frame itself was sound, only the body is malformed: the
		// failure is isolated to this call.
		a.cfg.Logger.Warn("malformed call body",
			zap.Uint32("call_id", header.CallID), zap.Error(err))
		a.writeError(header, cdc, status.Newf(status.InvalidArgument, "malformed call request: %v", err))
		return
	}

	rx, err := a.cfg.Service.Call(ctx, req.Function, req.Args)
	if err != nil {
		// Call-start failure: exactly one terminal status frame, zero data.
		a.writeError(header, cdc, status.FromError(err))
		return
	}

	for {
		chunk, ok := rx.Recv()
		if !ok {
			// Silent closure is a normal end-of-stream, not an error.
			a.writeFrame(&protocol.Header{
				CodecType: header.CodecType,
				MsgType:   protocol.MsgTypeEnd,
				CallID:    header.CallID,
			}, nil)
			return
		}
		if chunk.Status != nil {
			a.writeError(header, cdc, chunk.Status)
			return
		}
		a.writeFrame(&protocol.Header{
			CodecType: header.CodecType,
			MsgType:   protocol.MsgTypeData,
			CallID:    header.CallID,
			BodyLen:   uint32(len(chunk.Data)),
		}, chunk.Data)
	}
}

func (a *Adapter) writeError(header *protocol.Header, cdc codec.Codec, st *status.Status) {
	body, err := cdc.EncodeStatus(st)
	if err != nil {
		a.cfg.Logger.Error("failed to encode status", zap.Error(err))
		return
	}
	a.writeFrame(&protocol.Header{
		CodecType: header.CodecType,
		MsgType:   protocol.MsgTypeError,
		CallID:    header.CallID,
		BodyLen:   uint32(len(body)),
	}, body)
}

// writeFrame writes one frame atomically. After the first write failure the
// outbound pipe is considered gone and later frames are dropped; the read
// side will observe the closed pipe and shut the transport down.
func (a *Adapter) writeFrame(h *protocol.Header, body []byte) {
	if a.writeDead.Load() {
		return
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if err := protocol.Encode(a.cfg.Writer, h, body); err != nil {
		a.writeDead.Store(true)
		a.cfg.Logger.Warn("outbound pipe write failed",
			zap.Uint32("call_id", h.CallID), zap.Error(err))
	}
}

// drain waits for in-flight calls to flush, bounded by the grace period.
// Calls still running afterwards are abandoned; the process is exiting.
func (a *Adapter) drain() {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(a.cfg.ShutdownGrace):
		a.cfg.Logger.Warn("shutdown grace period expired with calls still in flight")
	}
}

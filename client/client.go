// Package client implements the router side of the pipe protocol: issuing
// calls to a module process and consuming its result streams.
//
// It multiplexes any number of concurrent calls over a single pipe pair.
// Each call gets a unique callID, and a background goroutine (recvLoop)
// continuously reads frames and routes them to the right call's stream:
//
//	goroutine-1 ──Call(id=1)──┐
//	goroutine-2 ──Call(id=2)──┼──→ module stdin ──→ module
//	goroutine-3 ──Call(id=3)──┘
//
//	recvLoop: ←── frame(id=2) → pending[2].Send(...) → goroutine-2's Receiver
//
// Inside the router proper this is the per-module endpoint; module authors
// use it in integration tests to drive their module end to end.
package client

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"modpipe/codec"
	"modpipe/message"
	"modpipe/payload"
	"modpipe/protocol"
	"modpipe/status"
	"modpipe/stream"
)

// ErrClosed is returned by Call after Close, and delivered as an
// Unavailable status to pending streams when the connection dies.
var ErrClosed = errors.New("client: connection closed")

// Option configures a Client.
type Option func(*Client)

// WithCodec selects the body encoding for outbound calls. The module
// answers each call with the codec it arrived in.
func WithCodec(ct codec.CodecType) Option {
	return func(c *Client) { c.codecType = ct }
}

// WithKeepaliveInterval sets how often a keepalive frame is written.
// Zero disables keepalives; a module with a liveness timeout will then shut
// itself down, which is occasionally the point in tests.
func WithKeepaliveInterval(d time.Duration) Option {
	return func(c *Client) { c.keepaliveInterval = d }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client drives one module over a pipe pair.
type Client struct {
	r io.Reader
	w io.Writer

	codecType         codec.CodecType
	keepaliveInterval time.Duration
	logger            *zap.Logger

	writeMu sync.Mutex // serializes frame writes; also guards nextID
	nextID  uint32

	pending sync.Map // callID uint32 -> *stream.Sender

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial wraps an existing pipe pair and starts the receive and keepalive
// loops. In production r and w are the module child's stdout and stdin; in
// tests, io.Pipe ends.
func Dial(r io.Reader, w io.Writer, opts ...Option) *Client {
	c := &Client{
		r:                 r,
		w:                 w,
		codecType:         codec.CodecTypeBinary,
		keepaliveInterval: 30 * time.Second,
		logger:            zap.NewNop(),
		closed:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.recvLoop()
	if c.keepaliveInterval > 0 {
		go c.keepaliveLoop()
	}
	return c
}

// Call starts one call and returns the stream of its result chunks.
// The stream ends cleanly after the module's End frame, or with a terminal
// status chunk after an Error frame.
func (c *Client) Call(ctx context.Context, function string, args *payload.Payload) (*stream.Receiver, error) {
	select {
	case <-c.closed:
		return nil, ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cdc := codec.GetCodec(c.codecType)
	body, err := cdc.EncodeRequest(&message.CallRequest{Function: function, Args: args})
	if err != nil {
		return nil, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.nextID++
	callID := c.nextID

	// Register the stream before the frame hits the pipe, so recvLoop can
	// never see a response for an unknown callID.
	tx, rx := stream.New()
	c.pending.Store(callID, tx)

	header := protocol.Header{
		CodecType: byte(c.codecType),
		MsgType:   protocol.MsgTypeCall,
		CallID:    callID,
		BodyLen:   uint32(len(body)),
	}
	if err := protocol.Encode(c.w, &header, body); err != nil {
		c.pending.Delete(callID)
		return nil, err
	}

	return rx, nil
}

// recvLoop reads frames sequentially and routes each to its call's stream.
// A read error fails every pending call: the module is gone and nobody may
// be left blocked on a Receiver.
func (c *Client) recvLoop() {
	for {
		header, body, err := protocol.Decode(c.r)
		if err != nil {
			c.failAllPending(err)
			return
		}

		tx, ok := c.loadPending(header.CallID)
		if !ok {
			c.logger.Warn("frame for unknown call", zap.Uint32("call_id", header.CallID))
			continue
		}

		switch header.MsgType {
		case protocol.MsgTypeData:
			tx.Send(payload.Payload(body))
		case protocol.MsgTypeError:
			cdc := codec.GetCodec(codec.CodecType(header.CodecType))
			st, decErr := cdc.DecodeStatus(body)
			if decErr != nil {
				st = status.Newf(status.Internal, "undecodable status frame: %v", decErr)
			}
			tx.Fail(st)
			c.pending.Delete(header.CallID)
		case protocol.MsgTypeEnd:
			tx.Close()
			c.pending.Delete(header.CallID)
		default:
			c.logger.Warn("unexpected frame from module",
				zap.Uint32("call_id", header.CallID),
				zap.Uint8("msg_type", uint8(header.MsgType)))
		}
	}
}

func (c *Client) loadPending(callID uint32) (*stream.Sender, bool) {
	v, ok := c.pending.Load(callID)
	if !ok {
		return nil, false
	}
	return v.(*stream.Sender), true
}

func (c *Client) failAllPending(err error) {
	st := status.Newf(status.Unavailable, "connection lost: %v", err)
	c.pending.Range(func(key, value any) bool {
		value.(*stream.Sender).Fail(st)
		c.pending.Delete(key)
		return true
	})
}

// keepaliveLoop writes periodic keepalive frames so the module's watchdog
// keeps seeing a live router. Exits on Close or on the first write error.
func (c *Client) keepaliveLoop() {
	ticker := time.NewTicker(c.keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			header := &protocol.Header{
				CodecType: byte(c.codecType),
				MsgType:   protocol.MsgTypeKeepalive,
			}
			c.writeMu.Lock()
			err := protocol.Encode(c.w, header, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Close stops the keepalive loop and fails all pending streams. It does not
// close the underlying streams; the caller owns those.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.failAllPending(ErrClosed)
	})
}

package client

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"modpipe/codec"
	"modpipe/dispatch"
	"modpipe/payload"
	"modpipe/status"
	"modpipe/stream"
	"modpipe/transport"
)

func echoService() dispatch.Service {
	mux := dispatch.NewMux()
	mux.Handle("echo", func(ctx context.Context, args *payload.Payload) (*stream.Receiver, error) {
		tx, rx := stream.New()
		if args != nil {
			tx.Send(*args)
		}
		tx.Close()
		return rx, nil
	})
	mux.Handle("repeat", func(ctx context.Context, args *payload.Payload) (*stream.Receiver, error) {
		var req struct {
			Text  string `msgpack:"text"`
			Times int    `msgpack:"times"`
		}
		if args == nil {
			return nil, status.New(status.InvalidArgument, "argument required")
		}
		if err := args.Decode(&req); err != nil {
			return nil, status.Newf(status.InvalidArgument, "bad argument: %v", err)
		}
		tx, rx := stream.New()
		go func() {
			for i := 0; i < req.Times; i++ {
				tx.Send(payload.Payload(req.Text))
			}
			tx.Close()
		}()
		return rx, nil
	})
	return mux
}

// dialModule wires a Client to an in-process Adapter over two io.Pipe
// pairs, the same duplex topology a router has with a spawned child.
func dialModule(t *testing.T, svc dispatch.Service, signals *atomic.Int64, opts ...Option) *Client {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	onSignal := func() {}
	if signals != nil {
		onSignal = func() { signals.Add(1) }
	}

	a, err := transport.New(transport.Config{
		Reader:        inR,
		Writer:        outW,
		Service:       svc,
		OnSignal:      onSignal,
		ShutdownGrace: time.Second,
	})
	require.NoError(t, err)
	go a.Serve(context.Background())

	c := Dial(outR, inW, opts...)
	t.Cleanup(func() {
		c.Close()
		inW.Close()
		outR.Close()
	})
	return c
}

func TestCallEcho(t *testing.T) {
	c := dialModule(t, echoService(), nil, WithKeepaliveInterval(0))

	args := payload.Payload("hello")
	rx, err := c.Call(context.Background(), "echo", &args)
	require.NoError(t, err)

	chunk, ok := rx.Recv()
	require.True(t, ok)
	require.Nil(t, chunk.Status)
	require.Equal(t, "hello", string(chunk.Data))

	_, ok = rx.Recv()
	require.False(t, ok, "expected clean end after the echoed chunk")
}

func TestCallUnknownFunction(t *testing.T) {
	c := dialModule(t, echoService(), nil, WithKeepaliveInterval(0))

	rx, err := c.Call(context.Background(), "missing", nil)
	require.NoError(t, err, "call-start failures surface on the stream, not on Call")

	chunk, ok := rx.Recv()
	require.True(t, ok)
	require.NotNil(t, chunk.Status)
	require.Equal(t, status.NotFound, chunk.Status.Code)

	_, ok = rx.Recv()
	require.False(t, ok)
}

func TestMsgpackArgumentRoundTrip(t *testing.T) {
	c := dialModule(t, echoService(), nil, WithKeepaliveInterval(0))

	args, err := payload.Encode(map[string]any{"text": "na", "times": 3})
	require.NoError(t, err)

	rx, err := c.Call(context.Background(), "repeat", &args)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		chunk, ok := rx.Recv()
		require.True(t, ok)
		require.Equal(t, "na", string(chunk.Data))
	}
	_, ok := rx.Recv()
	require.False(t, ok)
}

func TestConcurrentCalls(t *testing.T) {
	c := dialModule(t, echoService(), nil, WithKeepaliveInterval(0))

	const calls = 16
	errs := make(chan error, calls)
	for i := 0; i < calls; i++ {
		go func(i int) {
			args := payload.Payload{byte(i)}
			rx, err := c.Call(context.Background(), "echo", &args)
			if err != nil {
				errs <- err
				return
			}
			chunk, ok := rx.Recv()
			if !ok || len(chunk.Data) != 1 || chunk.Data[0] != byte(i) {
				errs <- status.Newf(status.Internal, "call %d got wrong chunk %v", i, chunk)
				return
			}
			if _, ok := rx.Recv(); ok {
				errs <- status.Newf(status.Internal, "call %d stream did not end", i)
				return
			}
			errs <- nil
		}(i)
	}
	for i := 0; i < calls; i++ {
		require.NoError(t, <-errs)
	}
}

func TestJSONCodecSelected(t *testing.T) {
	c := dialModule(t, echoService(), nil, WithKeepaliveInterval(0), WithCodec(codec.CodecTypeJSON))

	args := payload.Payload("json-framed")
	rx, err := c.Call(context.Background(), "echo", &args)
	require.NoError(t, err)

	chunk, ok := rx.Recv()
	require.True(t, ok)
	require.Equal(t, "json-framed", string(chunk.Data))
}

func TestKeepalivesReachModule(t *testing.T) {
	var signals atomic.Int64
	dialModule(t, echoService(), &signals, WithKeepaliveInterval(20*time.Millisecond))

	require.Eventually(t, func() bool { return signals.Load() >= 3 },
		2*time.Second, 10*time.Millisecond,
		"periodic keepalives must register as liveness signals")
}

func TestCloseFailsPending(t *testing.T) {
	mux := dispatch.NewMux()
	mux.Handle("hang", func(ctx context.Context, args *payload.Payload) (*stream.Receiver, error) {
		_, rx := stream.New() // producer never sends or closes
		return rx, nil
	})
	c := dialModule(t, mux, nil, WithKeepaliveInterval(0))

	rx, err := c.Call(context.Background(), "hang", nil)
	require.NoError(t, err)

	c.Close()

	chunk, ok := rx.Recv()
	require.True(t, ok)
	require.NotNil(t, chunk.Status)
	require.Equal(t, status.Unavailable, chunk.Status.Code)

	_, err = c.Call(context.Background(), "hang", nil)
	require.ErrorIs(t, err, ErrClosed)
}

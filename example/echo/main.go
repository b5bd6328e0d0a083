// Command echo is a minimal module: it answers "echo" calls with the
// argument payload and "count-to" calls with a stream of n chunks.
//
// A router runs it by spawning the binary and speaking the frame protocol
// over its stdin/stdout. To try the module without a router, use the
// client package over the child's pipes.
package main

import (
	"context"
	"fmt"

	"modpipe"
	"modpipe/dispatch"
	"modpipe/payload"
	"modpipe/status"
	"modpipe/stream"
)

type countArgs struct {
	N int `msgpack:"n"`
}

func main() {
	cfg, err := modpipe.ConfigFromEnv()
	if err != nil {
		cfg = modpipe.DefaultConfig()
	}
	logger, err := modpipe.NewLogger(cfg.LogLevel)
	if err != nil {
		logger, _ = modpipe.NewLogger(modpipe.DefaultLogLevel)
	}

	mux := dispatch.NewMux()

	mux.Handle("echo", func(ctx context.Context, args *payload.Payload) (*stream.Receiver, error) {
		tx, rx := stream.New()
		if args != nil {
			tx.Send(*args)
		}
		tx.Close()
		return rx, nil
	})

	mux.Handle("count-to", func(ctx context.Context, args *payload.Payload) (*stream.Receiver, error) {
		if args == nil {
			return nil, status.New(status.InvalidArgument, "count-to requires an argument")
		}
		var req countArgs
		if err := args.Decode(&req); err != nil {
			return nil, status.Newf(status.InvalidArgument, "bad count-to argument: %v", err)
		}
		if req.N < 0 {
			return nil, status.New(status.InvalidArgument, "n must be non-negative")
		}

		tx, rx := stream.New()
		go func() {
			defer tx.Close()
			for i := 1; i <= req.N; i++ {
				chunk, err := payload.Encode(fmt.Sprintf("%d", i))
				if err != nil {
					tx.Fail(status.Newf(status.Internal, "encode chunk: %v", err))
					return
				}
				if !tx.Send(chunk) {
					return
				}
			}
		}()
		return rx, nil
	})

	m := modpipe.New(
		modpipe.WithConfig(cfg),
		modpipe.WithLogger(logger),
	)
	m.Run(mux)
}

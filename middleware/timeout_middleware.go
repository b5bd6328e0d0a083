package middleware

import (
	"context"
	"time"

	"modpipe/payload"
	"modpipe/status"
	"modpipe/stream"
)

// StartTimeout bounds the synchronous start of a call. A handler that does
// slow work before returning its stream (schema lookup, connection
// establishment) is cut off with DeadlineExceeded; streaming after a
// successful start is not bounded here.
func StartTimeout(timeout time.Duration) Middleware {
	type result struct {
		rx  *stream.Receiver
		err error
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, function string, args *payload.Payload) (*stream.Receiver, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan result, 1)
			go func() {
				rx, err := next(ctx, function, args)
				done <- result{rx, err}
			}()

			select {
			case res := <-done:
				return res.rx, res.err
			case <-ctx.Done():
				return nil, status.Newf(status.DeadlineExceeded, "call %q did not start within %s", function, timeout)
			}
		}
	}
}

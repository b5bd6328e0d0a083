package middleware

import (
	"context"
	"runtime/debug"

	"go.uber.org/zap"

	"modpipe/payload"
	"modpipe/status"
	"modpipe/stream"
)

// Recovery converts a panic during call start into an Internal status.
// A panicking handler would otherwise take down the whole pipe, and the
// router would see a dead module instead of an error on one call.
func Recovery(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, function string, args *payload.Payload) (rx *stream.Receiver, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic in call handler",
						zap.String("function", function),
						zap.Any("panic", r),
						zap.ByteString("stack", debug.Stack()),
					)
					rx = nil
					err = status.Newf(status.Internal, "panic handling %q: %v", function, r)
				}
			}()
			return next(ctx, function, args)
		}
	}
}

package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"modpipe/payload"
	"modpipe/stream"
)

// Logging logs every call start: function name, whether arguments were
// supplied, dispatch duration, and the rejection error if the call never
// started.
func Logging(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, function string, args *payload.Payload) (*stream.Receiver, error) {
			start := time.Now()
			rx, err := next(ctx, function, args)
			fields := []zap.Field{
				zap.String("function", function),
				zap.Bool("has_args", args != nil),
				zap.Duration("dispatch_duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("call rejected", append(fields, zap.Error(err))...)
				return nil, err
			}
			logger.Debug("call dispatched", fields...)
			return rx, nil
		}
	}
}

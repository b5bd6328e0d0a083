package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"modpipe/payload"
	"modpipe/status"
	"modpipe/stream"
)

// RateLimit rejects call starts beyond r calls per second (token bucket
// with the given burst) with a ResourceExhausted status. The router can
// back off and retry; already-running streams are unaffected.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, function string, args *payload.Payload) (*stream.Receiver, error) {
			if !limiter.Allow() {
				return nil, status.New(status.ResourceExhausted, "rate limit exceeded")
			}
			return next(ctx, function, args)
		}
	}
}

// Package middleware wraps call dispatch with cross-cutting behavior:
// logging, panic recovery, rate limiting, start timeouts.
//
// Middleware observes the synchronous start of a call, not the stream that
// follows it. That keeps the chain cheap and leaves stream semantics
// (FIFO order, terminal chunks) untouched.
package middleware

import (
	"context"

	"modpipe/dispatch"
	"modpipe/payload"
	"modpipe/stream"
)

type HandlerFunc func(ctx context.Context, function string, args *payload.Payload) (*stream.Receiver, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines multiple middlewares into one. Chain(A, B, C)(handler)
// produces A(B(C(handler))): A sees the call first.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Apply wraps a dispatch.Service with the given middlewares.
func Apply(svc dispatch.Service, middlewares ...Middleware) dispatch.Service {
	handler := Chain(middlewares...)(svc.Call)
	return dispatch.ServiceFunc(handler)
}

// Package dispatch defines the capability a module author implements: turn
// one named call into a stream of result chunks, or reject it up front.
package dispatch

import (
	"context"

	"modpipe/payload"
	"modpipe/stream"
)

// Service is invoked exactly once per inbound call.
//
// function arrives verbatim from the router; args is nil when the caller
// supplied no argument.
//
// On success, return the Receiver end of a stream.New pair and produce
// chunks on the Sender from any goroutine. On a condition that prevents the
// call from even starting (unknown function, malformed argument), return a
// non-nil error instead; a *status.Status error travels to the router
// as-is, any other error is reported as Internal.
//
// Failures discovered after streaming has begun must be sent with
// Sender.Fail. Closing the sender without an error is reported to the
// router as a successful end-of-stream.
type Service interface {
	Call(ctx context.Context, function string, args *payload.Payload) (*stream.Receiver, error)
}

// ServiceFunc adapts a plain function to the Service interface.
type ServiceFunc func(ctx context.Context, function string, args *payload.Payload) (*stream.Receiver, error)

func (f ServiceFunc) Call(ctx context.Context, function string, args *payload.Payload) (*stream.Receiver, error) {
	return f(ctx, function, args)
}

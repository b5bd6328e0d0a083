// Package message defines the structured bodies carried inside protocol
// frames.
//
// CallRequest is the body of a Call frame. Result chunks need no envelope of
// their own: a Data frame's body is the raw payload, and an Error frame's
// body is an encoded status.Status.
package message

import (
	"modpipe/payload"
)

// CallRequest identifies one invocation routed to this module.
//
//   - Function is the name forwarded by the router, verbatim. The runtime
//     performs no normalization.
//   - Args is the optional argument payload; nil means the caller supplied
//     no argument, which is distinct from an empty one.
type CallRequest struct {
	Function string           `json:"function"`
	Args     *payload.Payload `json:"args,omitempty"`
}

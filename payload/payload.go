// Package payload wraps the opaque byte blobs carried by calls and chunks.
//
// The runtime never looks inside a Payload; Encode and Decode exist so that
// module authors and routers agree on one conventional encoding (MessagePack)
// without the transport caring.
package payload

import (
	"github.com/vmihailenco/msgpack/v5"
)

// Payload is one opaque encoded value: a call argument or one result chunk.
type Payload []byte

// Encode serializes v with MessagePack into a Payload.
func Encode(v any) (Payload, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Payload(b), nil
}

// Decode deserializes the payload into v, which must be a pointer.
func (p Payload) Decode(v any) error {
	return msgpack.Unmarshal(p, v)
}

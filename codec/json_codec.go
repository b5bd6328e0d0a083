package codec

import (
	"encoding/json"

	"modpipe/message"
	"modpipe/status"
)

// JSONCodec serializes bodies with encoding/json.
// Pros: human-readable, trivial to produce from any router implementation.
// Cons: larger frames, payload bytes get base64-expanded.
type JSONCodec struct{}

func (c *JSONCodec) EncodeRequest(req *message.CallRequest) ([]byte, error) {
	return json.Marshal(req)
}

func (c *JSONCodec) DecodeRequest(data []byte) (*message.CallRequest, error) {
	req := &message.CallRequest{}
	if err := json.Unmarshal(data, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (c *JSONCodec) EncodeStatus(st *status.Status) ([]byte, error) {
	return json.Marshal(st)
}

func (c *JSONCodec) DecodeStatus(data []byte) (*status.Status, error) {
	st := &status.Status{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}

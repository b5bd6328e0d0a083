// Package codec serializes frame bodies: CallRequest on the inbound side,
// Status on the outbound side. Data frame bodies are raw payload bytes and
// never pass through a codec.
//
// The codec byte in every frame header selects the format, so the router
// chooses per-call and the module answers in kind.
package codec

import (
	"modpipe/message"
	"modpipe/status"
)

type CodecType byte

const (
	CodecTypeBinary CodecType = 0
	CodecTypeJSON   CodecType = 1
)

type Codec interface {
	EncodeRequest(req *message.CallRequest) ([]byte, error)
	DecodeRequest(data []byte) (*message.CallRequest, error)
	EncodeStatus(st *status.Status) ([]byte, error)
	DecodeStatus(data []byte) (*status.Status, error)
	Type() CodecType
}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeJSON {
		return &JSONCodec{}
	}

	return &BinaryCodec{}
}

package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"modpipe/message"
	"modpipe/payload"
	"modpipe/status"
)

// BinaryCodec is the compact default encoding: length-prefixed fields in
// big-endian, no field names on the wire.
//
// CallRequest layout:
//
//	[2B function len][function][1B hasArgs][4B args len][args]   (args fields present only when hasArgs=1)
//
// Status layout:
//
//	[1B code][2B message len][message]
type BinaryCodec struct{}

func (c *BinaryCodec) EncodeRequest(req *message.CallRequest) ([]byte, error) {
	if len(req.Function) > 0xffff {
		return nil, errors.New("BinaryCodec: function name too long")
	}

	total := 2 + len(req.Function) + 1
	if req.Args != nil {
		total += 4 + len(*req.Args)
	}
	buf := make([]byte, total)

	offset := 0
	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(req.Function)))
	offset += 2

	copy(buf[offset:offset+len(req.Function)], req.Function)
	offset += len(req.Function)

	if req.Args == nil {
		buf[offset] = 0
		return buf, nil
	}
	buf[offset] = 1
	offset++

	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(*req.Args)))
	offset += 4
	copy(buf[offset:], *req.Args)

	return buf, nil
}

func (c *BinaryCodec) DecodeRequest(data []byte) (*message.CallRequest, error) {
	offset := 0

	if len(data) < offset+2 {
		return nil, errors.New("BinaryCodec: truncated function length")
	}
	fnLen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2

	if len(data) < offset+fnLen+1 {
		return nil, errors.New("BinaryCodec: truncated function name")
	}
	fn := string(data[offset : offset+fnLen])
	offset += fnLen

	hasArgs := data[offset]
	offset++

	req := &message.CallRequest{Function: fn}
	if hasArgs == 0 {
		return req, nil
	}
	if hasArgs != 1 {
		return nil, fmt.Errorf("BinaryCodec: invalid hasArgs marker: %d", hasArgs)
	}

	if len(data) < offset+4 {
		return nil, errors.New("BinaryCodec: truncated args length")
	}
	argLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4

	if len(data) < offset+argLen {
		return nil, errors.New("BinaryCodec: truncated args")
	}
	args := make(payload.Payload, argLen)
	copy(args, data[offset:offset+argLen])
	req.Args = &args

	return req, nil
}

func (c *BinaryCodec) EncodeStatus(st *status.Status) ([]byte, error) {
	if len(st.Message) > 0xffff {
		return nil, errors.New("BinaryCodec: status message too long")
	}

	buf := make([]byte, 1+2+len(st.Message))
	buf[0] = byte(st.Code)
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(st.Message)))
	copy(buf[3:], st.Message)
	return buf, nil
}

func (c *BinaryCodec) DecodeStatus(data []byte) (*status.Status, error) {
	if len(data) < 3 {
		return nil, errors.New("BinaryCodec: truncated status")
	}
	msgLen := int(binary.BigEndian.Uint16(data[1:3]))
	if len(data) < 3+msgLen {
		return nil, errors.New("BinaryCodec: truncated status message")
	}
	return &status.Status{
		Code:    status.Code(data[0]),
		Message: string(data[3 : 3+msgLen]),
	}, nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

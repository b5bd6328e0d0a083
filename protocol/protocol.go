// Package protocol implements the binary frame protocol spoken between a
// module process and the router over the inherited stdin/stdout pipes.
//
// Pipes are byte streams with no message boundaries, so every message is
// wrapped in a frame: a fixed 14-byte header followed by a variable-length
// body. The receiver reads the header first to learn the body length, then
// reads exactly that many bytes.
//
// Frame format:
//
//	0      3  4  5  6         10        14
//	┌──────┬──┬──┬──┬─────────┬─────────┬───────────────┐
//	│magic │v │ct│mt│ callID  │ bodyLen │    body ...    │
//	│ mdp  │01│  │  │ uint32  │ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴──┴─────────┴─────────┴───────────────┘
//
// The callID ties every outbound frame back to the inbound call it answers,
// which is what lets multiple in-flight calls interleave on one pipe pair.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic number bytes: "mdp" (module duplex protocol).
// Used to reject streams that are not speaking the protocol at all, e.g. a
// module launched by hand with a shell attached to its stdin.
const (
	MagicByte1 byte = 0x6d // 'm'
	MagicByte2 byte = 0x64 // 'd'
	MagicByte3 byte = 0x70 // 'p'
	Version    byte = 0x01
	HeaderSize int  = 14 // 3 (magic) + 1 (version) + 1 (codec) + 1 (msgType) + 4 (callID) + 4 (bodyLen)
)

// MsgType distinguishes the five frame kinds on the pipe.
type MsgType byte

const (
	MsgTypeCall      MsgType = 0 // Router → module: start a call (body = CallRequest)
	MsgTypeData      MsgType = 1 // Module → router: one result chunk (body = raw payload)
	MsgTypeError     MsgType = 2 // Module → router: terminal status (body = Status), ends the call
	MsgTypeEnd       MsgType = 3 // Module → router: clean end-of-stream (no body), ends the call
	MsgTypeKeepalive MsgType = 4 // Router → module: liveness ping (no body)
)

// Codec type constants, mirrored from the codec package to avoid a circular
// import.
const (
	CodecTypeBinary byte = 0
	CodecTypeJSON   byte = 1
)

// Header is the fixed 14-byte frame header. It carries everything needed to
// route and decode the body that follows.
type Header struct {
	CodecType byte    // Body serialization format: 0=Binary, 1=JSON
	MsgType   MsgType // Call, Data, Error, End, or Keepalive
	CallID    uint32  // Correlates a call's outbound frames with its inbound Call frame
	BodyLen   uint32  // Body length in bytes
}

// Encode writes a complete frame (header + body) to w.
// Writers shared between goroutines must serialize calls to Encode with a
// lock, otherwise frames from different calls interleave and corrupt the
// stream.
func Encode(w io.Writer, h *Header, body []byte) error {
	buf := make([]byte, HeaderSize)

	copy(buf[0:3], []byte{MagicByte1, MagicByte2, MagicByte3})
	buf[3] = Version
	buf[4] = h.CodecType
	buf[5] = byte(h.MsgType)
	binary.BigEndian.PutUint32(buf[6:10], h.CallID)
	binary.BigEndian.PutUint32(buf[10:14], h.BodyLen)

	if _, err := w.Write(buf); err != nil {
		return err
	}
	// Body may be nil for End and Keepalive frames.
	if _, err := w.Write(body); err != nil {
		return err
	}
	return nil
}

// Decode reads one complete frame (header + body) from r.
// It validates the magic number, version, codec type, and message type.
// io.ReadFull guarantees exactly N bytes are read, so short reads on the
// pipe never produce a torn frame.
//
// A validation error here means no call boundary can be recovered: the
// caller must treat the whole stream as corrupted.
func Decode(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	if headerBuf[0] != MagicByte1 || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, fmt.Errorf("invalid magic number: %x", headerBuf[0:3])
	}

	if headerBuf[3] != Version {
		return nil, nil, fmt.Errorf("unsupported version: %d", headerBuf[3])
	}

	if headerBuf[4] != CodecTypeBinary && headerBuf[4] != CodecTypeJSON {
		return nil, nil, fmt.Errorf("unsupported codec type: %d", headerBuf[4])
	}

	msgType := headerBuf[5]
	if msgType > byte(MsgTypeKeepalive) {
		return nil, nil, fmt.Errorf("unsupported message type: %d", msgType)
	}

	callID := binary.BigEndian.Uint32(headerBuf[6:10])
	bodyLen := binary.BigEndian.Uint32(headerBuf[10:14])

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}

	return &Header{
		CodecType: headerBuf[4],
		MsgType:   MsgType(msgType),
		CallID:    callID,
		BodyLen:   bodyLen,
	}, body, nil
}

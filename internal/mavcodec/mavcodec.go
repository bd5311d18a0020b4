// Package mavcodec implements the MAVLink v1 wire codec this bridge needs as a
// pure decode([]byte)/pack() collaborator, independent of any socket.
//
// gomavlib's Node owns its sockets internally and exposes only MAVLink system
// IDs, not the raw per-datagram sender address the Dispatcher needs to route
// GCS traffic by source port (see DESIGN.md's architecture decision). This
// package therefore implements MAVLink v1 framing and CRC directly, with
// message field layouts mirroring the common-dialect definitions (field names,
// order, and widths match the public common.xml message set).
package mavcodec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ar2mav/bridge/internal/bridgeerr"
)

const (
	stx        = 0xFE
	headerSize = 5 // len, seq, sysid, compid, msgid (v1 has no incompat/compat flags)
)

// Frame is a decoded MAVLink v1 frame: either one of the typed messages this
// bridge understands (Message != nil) or an opaque payload to be forwarded
// byte-for-byte unchanged (Message == nil, Raw holds the original bytes).
type Frame struct {
	SystemID    uint8
	ComponentID uint8
	Sequence    uint8
	MessageID   uint8
	Payload     []byte
	Message     any // one of the Message* types in messages.go, or nil
	Raw         []byte
}

// Decode parses one MAVLink v1 frame from buf. Frames with an unrecognised
// message ID are still returned (Message == nil) so the Dispatcher can forward
// them unchanged; only frames that fail to parse at all, or fail their checksum,
// are reported as errors.
func Decode(buf []byte) (*Frame, error) {
	if len(buf) < 8 {
		return nil, fmt.Errorf("%w: frame too short (%d bytes)", bridgeerr.ErrMalformedFrame, len(buf))
	}
	if buf[0] != stx {
		return nil, fmt.Errorf("%w: bad magic byte 0x%02x", bridgeerr.ErrMalformedFrame, buf[0])
	}
	payloadLen := int(buf[1])
	seq := buf[2]
	sysID := buf[3]
	compID := buf[4]
	msgID := buf[5]

	wantLen := 1 + headerSize + payloadLen + 2
	if len(buf) < wantLen {
		return nil, fmt.Errorf("%w: truncated frame: have %d want %d", bridgeerr.ErrMalformedFrame, len(buf), wantLen)
	}
	payload := buf[6 : 6+payloadLen]
	ckA := buf[6+payloadLen]
	ckB := buf[7+payloadLen]
	gotChecksum := uint16(ckA) | uint16(ckB)<<8

	extra, ok := crcExtra[msgID]
	if !ok {
		// Unknown message type: still a well-formed frame, just not one this
		// bridge decodes semantically. No CRC_EXTRA is known, so checksum
		// verification is skipped and the frame is passed through as opaque.
		raw := make([]byte, wantLen)
		copy(raw, buf[:wantLen])
		return &Frame{
			SystemID: sysID, ComponentID: compID, Sequence: seq,
			MessageID: msgID, Payload: payload, Raw: raw,
		}, nil
	}

	wantChecksum := crcX25(buf[1:6+payloadLen], extra)
	if wantChecksum != gotChecksum {
		return nil, fmt.Errorf("%w: checksum mismatch for msgid %d", bridgeerr.ErrMalformedFrame, msgID)
	}

	raw := make([]byte, wantLen)
	copy(raw, buf[:wantLen])
	f := &Frame{
		SystemID: sysID, ComponentID: compID, Sequence: seq,
		MessageID: msgID, Payload: payload, Raw: raw,
	}
	f.Message = decodeMessage(msgID, payload)
	return f, nil
}

// Pack serialises a message of a known type into a full MAVLink v1 frame.
func Pack(sysID, compID, seq uint8, msgID uint8, payload []byte) []byte {
	buf := make([]byte, 1+headerSize+len(payload)+2)
	buf[0] = stx
	buf[1] = uint8(len(payload))
	buf[2] = seq
	buf[3] = sysID
	buf[4] = compID
	buf[5] = msgID
	copy(buf[6:], payload)

	extra := crcExtra[msgID]
	checksum := crcX25(buf[1:6+len(payload)], extra)
	buf[6+len(payload)] = uint8(checksum)
	buf[7+len(payload)] = uint8(checksum >> 8)
	return buf
}

// crcX25 computes MAVLink's CRC-16/MCRF4XX ("X.25") checksum over data, seeded
// with the message's CRC_EXTRA byte appended per the MAVLink wire spec.
func crcX25(data []byte, extra uint8) uint16 {
	crc := uint16(0xFFFF)
	accumulate := func(b uint8) {
		tmp := b ^ uint8(crc&0xFF)
		tmp ^= tmp << 4
		crc = (crc >> 8) ^ uint16(tmp)<<8 ^ uint16(tmp)<<3 ^ uint16(tmp)>>4
	}
	for _, b := range data {
		accumulate(b)
	}
	accumulate(extra)
	return crc
}

func le16(b []byte) uint16   { return binary.LittleEndian.Uint16(b) }
func le32(b []byte) uint32   { return binary.LittleEndian.Uint32(b) }
func le64(b []byte) uint64   { return binary.LittleEndian.Uint64(b) }
func lef32(b []byte) float32 { return math.Float32frombits(le32(b)) }

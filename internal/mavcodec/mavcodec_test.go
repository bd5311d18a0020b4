package mavcodec

import "testing"

func TestHeartbeatRoundTrip(t *testing.T) {
	want := MessageHeartbeat{
		CustomMode: 42, Type: 2, Autopilot: 8, BaseMode: 0x81, SystemStatus: 4, MavlinkVersion: 3,
	}
	payload := EncodeHeartbeat(want)
	frame := Pack(1, 1, 7, MsgIDHeartbeat, payload)

	decoded, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.SystemID != 1 || decoded.ComponentID != 1 || decoded.Sequence != 7 {
		t.Fatalf("decoded header = %+v", decoded)
	}
	hb, ok := decoded.Message.(*MessageHeartbeat)
	if !ok {
		t.Fatalf("decoded.Message type = %T, want *MessageHeartbeat", decoded.Message)
	}
	if *hb != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", *hb, want)
	}
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	payload := EncodeHeartbeat(MessageHeartbeat{})
	frame := Pack(1, 1, 0, MsgIDHeartbeat, payload)
	frame[len(frame)-1] ^= 0xFF // corrupt checksum

	if _, err := Decode(frame); err == nil {
		t.Fatalf("expected checksum error")
	}
}

func TestDecodeRejectsShortFrame(t *testing.T) {
	if _, err := Decode([]byte{stx, 1, 2, 3}); err == nil {
		t.Fatalf("expected error for truncated frame")
	}
}

func TestDecodeUnknownMessageIDPassesThrough(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	frame := make([]byte, 0, 9)
	frame = append(frame, stx, byte(len(payload)), 0, 1, 1, 253) // msgid 253 unknown
	frame = append(frame, payload...)
	frame = append(frame, 0, 0) // checksum unused for unknown ids
	decoded, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode unknown message id: %v", err)
	}
	if decoded.Message != nil {
		t.Fatalf("expected nil Message for unknown id, got %+v", decoded.Message)
	}
	if len(decoded.Raw) != len(frame) {
		t.Fatalf("Raw length = %d, want %d", len(decoded.Raw), len(frame))
	}
}

func TestSetModeRoundTrip(t *testing.T) {
	payload := []byte{0, 0, 0, 0, 0, 0}
	putLE32(payload[0:4], 0xAABBCCDD)
	payload[4] = 1
	payload[5] = 0x81
	frame := Pack(255, 1, 0, MsgIDSetMode, payload)
	decoded, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	sm, ok := decoded.Message.(*MessageSetMode)
	if !ok {
		t.Fatalf("decoded.Message type = %T", decoded.Message)
	}
	if sm.CustomMode != 0xAABBCCDD || sm.TargetSystem != 1 || sm.BaseMode != 0x81 {
		t.Fatalf("decoded SetMode = %+v", sm)
	}
}

package atcodec

import (
	"fmt"
	"strings"
	"testing"
)

func TestBitcastChannelExactValues(t *testing.T) {
	// 0xBF800000 (the IEEE-754 bit pattern of -1.0f) doesn't fit as an int32
	// constant literal; derive it at runtime instead.
	negOneBits := uint32(0xBF800000)
	bitPatternNegOne := int32(negOneBits)

	cases := []struct {
		value uint16
		want  int32
	}{
		{2000, 0x3F800000}, // +1.0f
		{1000, bitPatternNegOne},
		{1500, 0},
	}

	for _, c := range cases {
		got := BitcastChannel(c.value)
		if got != c.want {
			t.Errorf("BitcastChannel(%d) = %#x (%d), want %#x (%d)", c.value, uint32(got), got, uint32(c.want), c.want)
		}
	}
}

func TestBitcastChannelIsBitcastNotNumeric(t *testing.T) {
	// A numeric (not bit-cast) conversion of 1.0 to int32 would yield 1, not
	// 0x3F800000. Guard against regressing to math.Round or int32(f).
	got := BitcastChannel(2000)
	if got == 1 {
		t.Fatalf("BitcastChannel appears to perform a numeric conversion, not a bit-cast")
	}
	if uint32(got) != 0x3F800000 {
		t.Fatalf("BitcastChannel(2000) = %#x, want 0x3F800000", uint32(got))
	}
}

func TestPcmdFrameFormat(t *testing.T) {
	e := NewEncoder(1)
	frames := e.Pcmd(7, 1500, 1000, 2000, 1500)
	if len(frames) != 1 {
		t.Fatalf("len(frames) = %d, want 1", len(frames))
	}
	s := string(frames[0])
	if !strings.HasSuffix(s, "\r") {
		t.Fatalf("frame not CR-terminated: %q", s)
	}
	if strings.HasSuffix(s, "\r\n") {
		t.Fatalf("frame must be CR-terminated only, not CRLF: %q", s)
	}
	want := "AT*PCMD=7,1,0,-1082130432,1065353216,0\r"
	if s != want {
		t.Fatalf("Pcmd frame = %q, want %q", s, want)
	}
}

func TestRepeatPolicyAdvancesSeqPerFrame(t *testing.T) {
	e := NewEncoder(3)
	frames := e.Ack(10)
	if len(frames) != 3 {
		t.Fatalf("len(frames) = %d, want 3", len(frames))
	}
	want := []string{"AT*CTRL=10,0,0\r", "AT*CTRL=11,0,0\r", "AT*CTRL=12,0,0\r"}
	for i, f := range frames {
		if string(f) != want[i] {
			t.Errorf("frame[%d] = %q, want %q", i, f, want[i])
		}
	}
}

func TestNavdataRequestPacket(t *testing.T) {
	got := NavdataRequest()
	want := []byte{0x01, 0x00, 0x00, 0x00}
	if len(got) != len(want) {
		t.Fatalf("NavdataRequest() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("NavdataRequest() = % x, want % x", got, want)
		}
	}
}

func TestNavdataCommandAndOptionsFormat(t *testing.T) {
	e := NewEncoder(1)
	cmd := string(e.NavdataCommand(1)[0])
	if cmd != `AT*CONFIG=1,"general:navdata_demo","TRUE"`+"\r" {
		t.Fatalf("NavdataCommand = %q", cmd)
	}
	opts := string(e.NavdataOptionsFrame(2)[0])
	wantOpts := fmt.Sprintf(`AT*CONFIG=2,"general:navdata_options","%d"`, NavdataOptions) + "\r"
	if opts != wantOpts {
		t.Fatalf("NavdataOptionsFrame = %q, want %q", opts, wantOpts)
	}
}

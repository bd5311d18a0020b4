// Package atcodec formats AR.Drone 2.0 AT command frames, including the
// load-bearing IEEE-754 bit-cast used to encode RC stick positions.
package atcodec

import (
	"fmt"
	"math"
	"strings"
)

// NavdataOptions is the compile-time bitmask for the required option blocks
// {DEMO, GPS, TIME}. Option indices follow the vendor SDK's navdata_options bit
// layout: DEMO is bit 0, TIME is bit 5, GPS is bit 27.
const (
	optDemo = 1 << 0
	optTime = 1 << 5
	optGPS  = 1 << 27

	NavdataOptions = optDemo | optTime | optGPS
)

// Vendor SDK REF bit-layout constants for AT*REF (bit 9 = fly).
const (
	RefTakeoff = 290718208
	RefLand    = 290717696
)

// Encoder formats AT frames for one peer. It does not own sequence state itself;
// callers pass the sequence base and repeat count explicitly so that Peer.AtSeq
// remains the single source of truth for monotonicity.
type Encoder struct {
	Repeat uint32
}

// NewEncoder builds an Encoder with the given repeat count (minimum 1).
func NewEncoder(repeat int) Encoder {
	if repeat < 1 {
		repeat = 1
	}
	return Encoder{Repeat: uint32(repeat)}
}

// NavdataRequest is not an AT frame: a 4-byte packet sent to the navdata port
// that (re)initialises the drone->proxy navdata stream.
func NavdataRequest() []byte {
	return []byte{0x01, 0x00, 0x00, 0x00}
}

// frames renders one logical AT command as Repeat back-to-back CR-terminated
// frames, each with its own sequential seq value starting at seqBase.
func (e Encoder) frames(seqBase uint32, render func(seq uint32) string) [][]byte {
	out := make([][]byte, 0, e.Repeat)
	for i := uint32(0); i < e.Repeat; i++ {
		out = append(out, []byte(render(seqBase+i)+"\r"))
	}
	return out
}

// NavdataCommand emits AT*CONFIG=<seq>,"general:navdata_demo","TRUE".
func (e Encoder) NavdataCommand(seqBase uint32) [][]byte {
	return e.frames(seqBase, func(seq uint32) string {
		return fmt.Sprintf(`AT*CONFIG=%d,"general:navdata_demo","TRUE"`, seq)
	})
}

// NavdataDemoOff emits AT*CONFIG=<seq>,"general:navdata_demo","FALSE", used by
// BootstrapRoutine to halt the stream after its emitted-command budget.
func (e Encoder) NavdataDemoOff(seqBase uint32) [][]byte {
	return e.frames(seqBase, func(seq uint32) string {
		return fmt.Sprintf(`AT*CONFIG=%d,"general:navdata_demo","FALSE"`, seq)
	})
}

// NavdataOptionsFrame emits AT*CONFIG=<seq>,"general:navdata_options","<mask>".
func (e Encoder) NavdataOptionsFrame(seqBase uint32) [][]byte {
	return e.frames(seqBase, func(seq uint32) string {
		return fmt.Sprintf(`AT*CONFIG=%d,"general:navdata_options","%d"`, seq, NavdataOptions)
	})
}

// Ack emits AT*CTRL=<seq>,0,0 to acknowledge a configuration setting.
func (e Encoder) Ack(seqBase uint32) [][]byte {
	return e.frames(seqBase, func(seq uint32) string {
		return fmt.Sprintf("AT*CTRL=%d,0,0", seq)
	})
}

// Ref emits AT*REF=<seq>,<refArg> (takeoff or land).
func (e Encoder) Ref(seqBase uint32, refArg int) [][]byte {
	return e.frames(seqBase, func(seq uint32) string {
		return fmt.Sprintf("AT*REF=%d,%d", seq, refArg)
	})
}

// BitcastChannel maps a channel value in [1000..2000] to the IEEE-754 float
// (c-1500)/500 in [-1..1], then bit-casts (not converts) it to a signed int32.
// This is a wire-format requirement of the vendor SDK and must never become a
// numeric conversion.
func BitcastChannel(value uint16) int32 {
	f := float32(int32(value)-1500) / 500.0
	return int32(math.Float32bits(f))
}

// Pcmd emits AT*PCMD=<seq>,1,<i1>,<i2>,<i3>,<i4> for a 4-channel RC override.
func (e Encoder) Pcmd(seqBase uint32, ch1, ch2, ch3, ch4 uint16) [][]byte {
	ints := []int32{BitcastChannel(ch1), BitcastChannel(ch2), BitcastChannel(ch3), BitcastChannel(ch4)}
	return e.frames(seqBase, func(seq uint32) string {
		return fmt.Sprintf("AT*PCMD=%d,1,%s", seq, joinInt32(ints))
	})
}

// PcmdMag emits AT*PCMD_MAG=<seq>,1,<i1>,...,<i6> for a 6-channel RC override.
func (e Encoder) PcmdMag(seqBase uint32, ch1, ch2, ch3, ch4, ch5, ch6 uint16) [][]byte {
	ints := []int32{
		BitcastChannel(ch1), BitcastChannel(ch2), BitcastChannel(ch3),
		BitcastChannel(ch4), BitcastChannel(ch5), BitcastChannel(ch6),
	}
	return e.frames(seqBase, func(seq uint32) string {
		return fmt.Sprintf("AT*PCMD_MAG=%d,1,%s", seq, joinInt32(ints))
	})
}

func joinInt32(vals []int32) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ",")
}

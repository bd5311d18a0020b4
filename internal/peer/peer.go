// Package peer holds the Peer and PeerTable data model: one entry per configured
// drone, dual-indexed by drone IP and by the synthetic GCS-facing UDP port.
package peer

import (
	"net"
	"time"
)

// Mode is the per-peer proxy state.
type Mode int

const (
	// NoLink means no MAVLink frame has ever been received from the drone.
	NoLink Mode = iota
	// Autopilot means the drone's own autopilot is in charge; the bridge relays.
	Autopilot
	// Manual means the drone's autopilot is silenced and the bridge drives it via AT commands.
	Manual
)

func (m Mode) String() string {
	switch m {
	case NoLink:
		return "NoLink"
	case Autopilot:
		return "Autopilot"
	case Manual:
		return "Manual"
	default:
		return "Unknown"
	}
}

// CachedMeta is the MAVLink metadata mirrored from the drone's own heartbeat/mission
// stream, reused when synthesising telemetry in Manual mode.
type CachedMeta struct {
	BaseMode     uint8
	CustomMode   uint32
	SystemStatus uint8
	MissionSeq   uint16
}

// Peer is one configured drone and its associated proxy state. A Peer is only ever
// mutated from the single dispatcher goroutine that owns the event loop (see
// internal/dispatcher); it carries no lock because nothing else ever touches it.
type Peer struct {
	Name       string
	IP         string
	SynthPort  int
	DroneAddr  *net.UDPAddr // last observed drone socket address, learned on first inbound MAVLink

	Mode Mode

	AtSeq  uint32 // monotonic, starts at 1
	MavSeq uint8  // wraps mod 256, per MAVLink's wire sequence field

	LastMavlinkFromDrone time.Time
	LastSynthEmit        time.Time
	LastNavdataRequest   time.Time
	DemoFailSince        time.Time // zero value means "unset"

	Meta CachedMeta
}

// NewPeer constructs a Peer in its initial NoLink state.
func NewPeer(name, ip string, synthPort int) *Peer {
	return &Peer{
		Name:      name,
		IP:        ip,
		SynthPort: synthPort,
		Mode:      NoLink,
		AtSeq:     1,
		Meta:      CachedMeta{MissionSeq: 0},
	}
}

// NextAtSeq returns the sequence value to use for the next AT frame and advances
// the counter by n (the repeat count), preserving strict monotonicity.
func (p *Peer) NextAtSeq(n uint32) uint32 {
	seq := p.AtSeq
	p.AtSeq += n
	return seq
}

// NextMavSeq returns the wire sequence value to use for the next synthesised
// MAVLink frame toward the GCS and advances the counter, wrapping mod 256.
func (p *Peer) NextMavSeq() uint8 {
	seq := p.MavSeq
	p.MavSeq++
	return seq
}

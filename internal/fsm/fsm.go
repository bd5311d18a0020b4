// Package fsm implements PeerFSM: the per-drone mode state machine described
// in SPEC_FULL.md §4.4. It decides, for every inbound frame from either the
// drone or the GCS, what (if anything) should be sent onward and whether the
// peer's Mode changes.
package fsm

import (
	"time"

	"github.com/ar2mav/bridge/internal/atcodec"
	"github.com/ar2mav/bridge/internal/config"
	"github.com/ar2mav/bridge/internal/mavcodec"
	"github.com/ar2mav/bridge/internal/peer"
)

// Effects is the set of outward actions PeerFSM can trigger. The Dispatcher
// implements it; tests use a recording fake.
type Effects interface {
	ForwardToGCS(p *peer.Peer, raw []byte)
	ForwardToDrone(p *peer.Peer, raw []byte)
	SendAT(p *peer.Peer, frames [][]byte)
	SendNavdataRequest(p *peer.Peer)
	Log(format string, args ...any)
}

// FSM drives PeerFSM transitions for every configured peer, sharing one
// AtEncoder (and its repeat policy) across all of them.
type FSM struct {
	enc atcodec.Encoder
	cfg config.Config
}

// New builds an FSM bound to the given AT-frame repeat policy and tunables.
func New(enc atcodec.Encoder, cfg config.Config) *FSM {
	return &FSM{enc: enc, cfg: cfg}
}

// OnDroneFrame handles a MAVLink frame whose sender IP matched a configured
// drone. It always forwards to the GCS; it additionally updates cached
// heartbeat/mission metadata and applies the NoLink->Autopilot and
// Manual->Autopilot (navdata-lapsed) transitions.
func (f *FSM) OnDroneFrame(p *peer.Peer, frame *mavcodec.Frame, raw []byte, now time.Time, eff Effects) {
	switch m := frame.Message.(type) {
	case *mavcodec.MessageHeartbeat:
		p.Meta.BaseMode = m.BaseMode
		p.Meta.CustomMode = m.CustomMode
		p.Meta.SystemStatus = m.SystemStatus
	case *mavcodec.MessageMissionCurrent:
		p.Meta.MissionSeq = m.Seq
	}

	eff.ForwardToGCS(p, raw)
	p.LastMavlinkFromDrone = now

	switch p.Mode {
	case peer.NoLink:
		p.Mode = peer.Autopilot
	case peer.Manual:
		if !p.LastNavdataRequest.IsZero() && now.Sub(p.LastNavdataRequest) > f.cfg.NavdataRevertGuard() {
			p.Mode = peer.Autopilot
		}
	}
}

// OnGcsFrame handles a MAVLink frame addressed to this peer's synthetic port,
// dispatching per the current Mode.
func (f *FSM) OnGcsFrame(p *peer.Peer, frame *mavcodec.Frame, raw []byte, eff Effects) {
	switch p.Mode {
	case peer.NoLink:
		eff.Log("dropping GCS frame for %s: no drone link established", p.Name)
	case peer.Autopilot:
		f.onGcsFrameAutopilot(p, frame, raw, eff)
	case peer.Manual:
		f.onGcsFrameManual(p, frame, raw, eff)
	}
}

func (f *FSM) onGcsFrameAutopilot(p *peer.Peer, frame *mavcodec.Frame, raw []byte, eff Effects) {
	if sm, ok := frame.Message.(*mavcodec.MessageSetMode); ok {
		if sm.BaseMode&mavcodec.MavModeFlagManualInputEnabled != 0 {
			eff.SendNavdataRequest(p)
			seq := p.NextAtSeq(uint32(f.enc.Repeat))
			eff.SendAT(p, f.enc.NavdataOptionsFrame(seq))
			p.Mode = peer.Manual
			return
		}
	}
	eff.ForwardToDrone(p, raw)
}

func (f *FSM) onGcsFrameManual(p *peer.Peer, frame *mavcodec.Frame, raw []byte, eff Effects) {
	switch m := frame.Message.(type) {
	case *mavcodec.MessageSetMode:
		if m.BaseMode&mavcodec.MavModeFlagManualInputEnabled == 0 {
			eff.ForwardToDrone(p, raw)
			p.Mode = peer.Autopilot
		}
		// SET_MODE that still requests manual input while already Manual
		// falls through to the "any other GCS frame" drop below.
	case *mavcodec.MessageCommandLong:
		switch m.Command {
		case mavcodec.MavCmdNavTakeoff:
			seq := p.NextAtSeq(uint32(f.enc.Repeat))
			eff.SendAT(p, f.enc.Ref(seq, atcodec.RefTakeoff))
		case mavcodec.MavCmdNavLand:
			seq := p.NextAtSeq(uint32(f.enc.Repeat))
			eff.SendAT(p, f.enc.Ref(seq, atcodec.RefLand))
		}
	case *mavcodec.MessageRCChannelsOverride:
		seq := p.NextAtSeq(uint32(f.enc.Repeat))
		eff.SendAT(p, f.enc.Pcmd(seq, m.Chan1Raw, m.Chan2Raw, m.Chan3Raw, m.Chan4Raw))
	}
}

// ForceAutopilot implements the demo-stall self-heal: called by the
// NavdataAdapter when a peer's demo mask has been clear for longer than
// demo_stall_ms while in Manual mode.
func (f *FSM) ForceAutopilot(p *peer.Peer) {
	p.Mode = peer.Autopilot
}

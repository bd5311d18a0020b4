package fsm

import (
	"testing"
	"time"

	"github.com/ar2mav/bridge/internal/atcodec"
	"github.com/ar2mav/bridge/internal/config"
	"github.com/ar2mav/bridge/internal/mavcodec"
	"github.com/ar2mav/bridge/internal/peer"
)

type fakeEffects struct {
	toGCS     [][]byte
	toDrone   [][]byte
	atFrames  [][]byte
	navReqs   int
	logged    []string
}

func (f *fakeEffects) ForwardToGCS(p *peer.Peer, raw []byte)   { f.toGCS = append(f.toGCS, raw) }
func (f *fakeEffects) ForwardToDrone(p *peer.Peer, raw []byte) { f.toDrone = append(f.toDrone, raw) }
func (f *fakeEffects) SendAT(p *peer.Peer, frames [][]byte)    { f.atFrames = append(f.atFrames, frames...) }
func (f *fakeEffects) SendNavdataRequest(p *peer.Peer)         { f.navReqs++ }
func (f *fakeEffects) Log(format string, v ...any)             { f.logged = append(f.logged, format) }

func TestColdStartDroneHeartbeatTransitionsToAutopilot(t *testing.T) {
	m := New(atcodec.NewEncoder(1), config.Defaults())
	p := peer.NewPeer("drone1", "10.0.0.5", 14551)
	eff := &fakeEffects{}

	frame := &mavcodec.Frame{Message: &mavcodec.MessageHeartbeat{BaseMode: 0x81}}
	m.OnDroneFrame(p, frame, []byte("hb"), time.Unix(1, 0), eff)

	if p.Mode != peer.Autopilot {
		t.Fatalf("Mode = %v, want Autopilot", p.Mode)
	}
	if len(eff.toGCS) != 1 {
		t.Fatalf("expected one forwarded frame to GCS, got %d", len(eff.toGCS))
	}
}

func TestModeToggleToManualSendsNavdataThenOptions(t *testing.T) {
	m := New(atcodec.NewEncoder(1), config.Defaults())
	p := peer.NewPeer("drone1", "10.0.0.5", 14551)
	p.Mode = peer.Autopilot
	eff := &fakeEffects{}

	frame := &mavcodec.Frame{Message: &mavcodec.MessageSetMode{BaseMode: mavcodec.MavModeFlagManualInputEnabled}}
	m.OnGcsFrame(p, frame, nil, eff)

	if p.Mode != peer.Manual {
		t.Fatalf("Mode = %v, want Manual", p.Mode)
	}
	if eff.navReqs != 1 {
		t.Fatalf("navReqs = %d, want 1", eff.navReqs)
	}
	if len(eff.atFrames) != 1 {
		t.Fatalf("expected exactly one AT*CONFIG options frame, got %d", len(eff.atFrames))
	}
}

func TestTakeoffInManualEmitsRefAndNoDroneForward(t *testing.T) {
	m := New(atcodec.NewEncoder(1), config.Defaults())
	p := peer.NewPeer("drone1", "10.0.0.5", 14551)
	p.Mode = peer.Manual
	eff := &fakeEffects{}

	frame := &mavcodec.Frame{Message: &mavcodec.MessageCommandLong{Command: mavcodec.MavCmdNavTakeoff}}
	m.OnGcsFrame(p, frame, []byte("cmd"), eff)

	if len(eff.atFrames) != 1 {
		t.Fatalf("expected one AT*REF frame, got %d", len(eff.atFrames))
	}
	want := "AT*REF=1,290718208\r"
	if string(eff.atFrames[0]) != want {
		t.Fatalf("AT*REF frame = %q, want %q", eff.atFrames[0], want)
	}
	if len(eff.toDrone) != 0 {
		t.Fatalf("expected no bytes forwarded to the drone's MAVLink address, got %d", len(eff.toDrone))
	}
}

func TestRCOverrideInManualEmitsExactPcmd(t *testing.T) {
	m := New(atcodec.NewEncoder(1), config.Defaults())
	p := peer.NewPeer("drone1", "10.0.0.5", 14551)
	p.Mode = peer.Manual
	eff := &fakeEffects{}

	frame := &mavcodec.Frame{Message: &mavcodec.MessageRCChannelsOverride{
		Chan1Raw: 1500, Chan2Raw: 1000, Chan3Raw: 2000, Chan4Raw: 1500,
	}}
	m.OnGcsFrame(p, frame, nil, eff)

	if len(eff.atFrames) != 1 {
		t.Fatalf("expected one AT*PCMD frame, got %d", len(eff.atFrames))
	}
	want := "AT*PCMD=1,1,0,-1082130432,1065353216,0\r"
	if string(eff.atFrames[0]) != want {
		t.Fatalf("AT*PCMD frame = %q, want %q", eff.atFrames[0], want)
	}
}

func TestManualSetModeWithoutManualBitRevertsToAutopilot(t *testing.T) {
	m := New(atcodec.NewEncoder(1), config.Defaults())
	p := peer.NewPeer("drone1", "10.0.0.5", 14551)
	p.Mode = peer.Manual
	eff := &fakeEffects{}

	frame := &mavcodec.Frame{Message: &mavcodec.MessageSetMode{BaseMode: 0}}
	m.OnGcsFrame(p, frame, []byte("setmode"), eff)

	if p.Mode != peer.Autopilot {
		t.Fatalf("Mode = %v, want Autopilot", p.Mode)
	}
	if len(eff.toDrone) != 1 {
		t.Fatalf("expected SET_MODE forwarded to drone, got %d", len(eff.toDrone))
	}
}

func TestAutopilotForwardsNonModeFramesToDrone(t *testing.T) {
	m := New(atcodec.NewEncoder(1), config.Defaults())
	p := peer.NewPeer("drone1", "10.0.0.5", 14551)
	p.Mode = peer.Autopilot
	eff := &fakeEffects{}

	frame := &mavcodec.Frame{Message: &mavcodec.MessageRCChannelsOverride{}}
	m.OnGcsFrame(p, frame, []byte("rc"), eff)

	if len(eff.toDrone) != 1 {
		t.Fatalf("expected frame forwarded to drone in Autopilot mode, got %d", len(eff.toDrone))
	}
}

func TestNoLinkDropsGcsFrames(t *testing.T) {
	m := New(atcodec.NewEncoder(1), config.Defaults())
	p := peer.NewPeer("drone1", "10.0.0.5", 14551)
	eff := &fakeEffects{}

	frame := &mavcodec.Frame{Message: &mavcodec.MessageRCChannelsOverride{}}
	m.OnGcsFrame(p, frame, []byte("rc"), eff)

	if len(eff.toDrone) != 0 || len(eff.atFrames) != 0 {
		t.Fatalf("expected NoLink to drop all GCS frames, got toDrone=%d atFrames=%d", len(eff.toDrone), len(eff.atFrames))
	}
	if len(eff.logged) != 1 {
		t.Fatalf("expected a log line for the dropped frame")
	}
}

func TestManualRevertsToAutopilotWhenDroneMavlinkResumes(t *testing.T) {
	m := New(atcodec.NewEncoder(1), config.Defaults())
	p := peer.NewPeer("drone1", "10.0.0.5", 14551)
	p.Mode = peer.Manual
	p.LastNavdataRequest = time.Unix(0, 0)
	eff := &fakeEffects{}

	frame := &mavcodec.Frame{Message: &mavcodec.MessageHeartbeat{}}
	m.OnDroneFrame(p, frame, []byte("hb"), time.Unix(2, 0), eff)

	if p.Mode != peer.Autopilot {
		t.Fatalf("Mode = %v, want Autopilot after navdata-revert guard elapsed", p.Mode)
	}
}

func TestManualStaysManualWhenDroneMavlinkArrivesWithinGuard(t *testing.T) {
	m := New(atcodec.NewEncoder(1), config.Defaults())
	p := peer.NewPeer("drone1", "10.0.0.5", 14551)
	p.Mode = peer.Manual
	p.LastNavdataRequest = time.Unix(0, 0)
	eff := &fakeEffects{}

	frame := &mavcodec.Frame{Message: &mavcodec.MessageHeartbeat{}}
	m.OnDroneFrame(p, frame, []byte("hb"), time.Unix(0, 500_000_000), eff)

	if p.Mode != peer.Manual {
		t.Fatalf("Mode = %v, want Manual to hold within the 1s guard", p.Mode)
	}
}

func TestForceAutopilot(t *testing.T) {
	m := New(atcodec.NewEncoder(1), config.Defaults())
	p := peer.NewPeer("drone1", "10.0.0.5", 14551)
	p.Mode = peer.Manual

	m.ForceAutopilot(p)

	if p.Mode != peer.Autopilot {
		t.Fatalf("Mode = %v, want Autopilot", p.Mode)
	}
}

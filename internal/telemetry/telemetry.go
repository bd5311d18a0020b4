// Package telemetry implements the NavdataAdapter: it consumes decoded navdata
// frames and turns them into either a re-request of the drone's navdata
// configuration or a synthesised bundle of MAVLink messages toward the GCS.
package telemetry

import (
	"math"
	"time"

	"github.com/ar2mav/bridge/internal/atcodec"
	"github.com/ar2mav/bridge/internal/config"
	"github.com/ar2mav/bridge/internal/mavcodec"
	"github.com/ar2mav/bridge/internal/navdata"
	"github.com/ar2mav/bridge/internal/peer"
)

// sensorBitmaskAll marks every SYS_STATUS sensor bit present/enabled/healthy;
// this bridge has no real sensor-health signal to report, so it claims the
// full bitmask rather than leaving it at zero (which GCS tools read as "no
// sensors installed").
const sensorBitmaskAll = (1 << 17) - 1

// Sink is the set of effects the NavdataAdapter can trigger. The Dispatcher
// implements it; tests use a recording fake.
type Sink interface {
	SendAT(p *peer.Peer, frames [][]byte)
	SendNavdataRequest(p *peer.Peer)
	SendMavlinkToGCS(p *peer.Peer, msgID uint8, payload []byte)
	OnBundleEmitted(p *peer.Peer)
	ForceAutopilot(p *peer.Peer)
}

// Adapter is the NavdataAdapter described in SPEC_FULL.md §4.3.
type Adapter struct {
	cfg config.Config
	enc atcodec.Encoder
	now func() time.Time
}

// New builds an Adapter. now defaults to time.Now when nil (tests inject a
// deterministic clock).
func New(cfg config.Config, enc atcodec.Encoder, now func() time.Time) *Adapter {
	if now == nil {
		now = time.Now
	}
	return &Adapter{cfg: cfg, enc: enc, now: now}
}

// OnFrame implements the Dampen / Demo healthy / Demo unhealthy decision tree.
func (a *Adapter) OnFrame(p *peer.Peer, nf *navdata.Frame, sink Sink) {
	now := a.now()

	if !p.LastNavdataRequest.IsZero() && now.Sub(p.LastNavdataRequest) < a.cfg.DampenWindow() {
		return
	}

	healthy := nf.State&navdata.NavdataDemoMask != 0
	if healthy {
		a.onHealthy(p, nf, now, sink)
		return
	}
	a.onUnhealthy(p, now, sink)
}

func (a *Adapter) onHealthy(p *peer.Peer, nf *navdata.Frame, now time.Time, sink Sink) {
	if !nf.Has("DEMO") || !nf.Has("GPS") || !nf.Has("TIME") {
		a.requestReconfig(p, now, sink)
		return
	}
	if now.Sub(p.LastSynthEmit) >= a.cfg.MavInterval() {
		a.emitBundle(p, nf, now, sink)
		p.LastSynthEmit = now
	}
	p.DemoFailSince = time.Time{}
}

func (a *Adapter) onUnhealthy(p *peer.Peer, now time.Time, sink Sink) {
	if p.DemoFailSince.IsZero() {
		p.DemoFailSince = now
	}
	if now.Sub(p.DemoFailSince) > a.cfg.DemoStall() && p.Mode == peer.Manual {
		sink.ForceAutopilot(p)
	}
	a.requestReconfig(p, now, sink)
}

// requestReconfig issues NAVDATA_COMMAND, NAVDATA_OPTIONS, ACK in that order
// and starts the dampening window so OnFrame won't re-fire this burst on
// every subsequent navdata packet while the drone catches up.
func (a *Adapter) requestReconfig(p *peer.Peer, now time.Time, sink Sink) {
	seq := p.NextAtSeq(uint32(a.enc.Repeat))
	sink.SendAT(p, a.enc.NavdataCommand(seq))

	seq = p.NextAtSeq(uint32(a.enc.Repeat))
	sink.SendAT(p, a.enc.NavdataOptionsFrame(seq))

	seq = p.NextAtSeq(uint32(a.enc.Repeat))
	sink.SendAT(p, a.enc.Ack(seq))

	p.LastNavdataRequest = now
}

// emitBundle synthesises the six-message MAVLink bundle per SPEC_FULL.md
// §4.3.1. Every narrowing conversion below is an ordinary Go numeric
// conversion, which is wrap-around (two's-complement truncation) by language
// definition -- exactly the semantics the spec requires and never saturating.
func (a *Adapter) emitBundle(p *peer.Peer, nf *navdata.Frame, now time.Time, sink Sink) {
	demo := nf.Options["DEMO"]
	gps := nf.Options["GPS"]
	tm := nf.Options["TIME"]

	hb := mavcodec.MessageHeartbeat{
		Type:           mavcodec.MavTypeQuadrotor,
		Autopilot:      mavcodec.MavAutopilotGeneric,
		BaseMode:       p.Meta.BaseMode | mavcodec.MavModeFlagManualInputEnabled,
		CustomMode:     p.Meta.CustomMode,
		SystemStatus:   p.Meta.SystemStatus,
		MavlinkVersion: 3,
	}
	sink.SendMavlinkToGCS(p, mavcodec.MsgIDHeartbeat, mavcodec.EncodeHeartbeat(hb))

	mc := mavcodec.MessageMissionCurrent{Seq: p.Meta.MissionSeq}
	sink.SendMavlinkToGCS(p, mavcodec.MsgIDMissionCurrent, mavcodec.EncodeMissionCurrent(mc))

	const degToRad = math.Pi / 180000.0 // source angles are milli-degrees
	att := mavcodec.MessageAttitude{
		TimeBootMs: tm.Time,
		Roll:       float32(demo.Phi * degToRad),
		Pitch:      float32(demo.Theta * degToRad),
		Yaw:        float32(demo.Psi * degToRad),
	}
	sink.SendMavlinkToGCS(p, mavcodec.MsgIDAttitude, mavcodec.EncodeAttitude(att))

	ss := mavcodec.MessageSysStatus{
		OnboardControlSensorsPresent: sensorBitmaskAll,
		OnboardControlSensorsEnabled: sensorBitmaskAll,
		OnboardControlSensorsHealth:  sensorBitmaskAll,
		BatteryRemaining:             int16(demo.Battery),
	}
	sink.SendMavlinkToGCS(p, mavcodec.MsgIDSysStatus, mavcodec.EncodeSysStatus(ss))

	gpi := mavcodec.MessageGlobalPositionInt{
		TimeBootMs:  tm.Time,
		Lat:         int32(gps.Latitude * 1e7),
		Lon:         int32(gps.Longitude * 1e7),
		Alt:         int32(gps.Elevation * 1e3),
		RelativeAlt: int32(math.Round(float64(demo.Altitude))),
		Vx:          int16(demo.Vx / 10),
		Vy:          int16(demo.Vy / 10),
		Vz:          int16(demo.Vz / 10),
		Hdg:         0,
	}
	sink.SendMavlinkToGCS(p, mavcodec.MsgIDGlobalPositionInt, mavcodec.EncodeGlobalPositionInt(gpi))

	gri := mavcodec.MessageGPSRawInt{
		TimeUsec:          uint64(gps.LastFrameTime) * 1000,
		FixType:           0,
		Lat:               int32(gps.Latitude * 1e7),
		Lon:               int32(gps.Longitude * 1e7),
		Alt:               int32(gps.Elevation * 1e3),
		Eph:               uint16(gps.Hdop * 100),
		Epv:               uint16(gps.Vdop * 100),
		Vel:               uint16(gps.Speed * 100),
		Cog:               uint16(gps.Course * 100),
		SatellitesVisible: 0, // source field overflows a byte; see DESIGN.md open question
	}
	sink.SendMavlinkToGCS(p, mavcodec.MsgIDGPSRawInt, mavcodec.EncodeGPSRawInt(gri))

	sink.OnBundleEmitted(p)
}

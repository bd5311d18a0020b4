// Package dispatcher owns the bridge's three UDP sockets (MAVLink, navdata,
// AT) and the single event loop that routes traffic between them, following
// the teacher's socket-owning-loop shape adapted to raw net.UDPConn rather
// than a managed node abstraction (see DESIGN.md's architecture decision).
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ar2mav/bridge/internal/atcodec"
	"github.com/ar2mav/bridge/internal/bridgeerr"
	"github.com/ar2mav/bridge/internal/config"
	"github.com/ar2mav/bridge/internal/fsm"
	"github.com/ar2mav/bridge/internal/logger"
	"github.com/ar2mav/bridge/internal/mavcodec"
	"github.com/ar2mav/bridge/internal/metrics"
	"github.com/ar2mav/bridge/internal/navdata"
	"github.com/ar2mav/bridge/internal/peer"
	"github.com/ar2mav/bridge/internal/statsmgr"
	"github.com/ar2mav/bridge/internal/telemetry"
)

// NavdataPort and AtPort are the AR.Drone 2.0 SDK's fixed on-board listener
// ports; unlike the MAVLink port, these are not configurable.
const (
	NavdataPort = 5554
	AtPort      = 5556
)

// Options configures a Dispatcher.
type Options struct {
	Host        string
	MavlinkPort int
	Table       *peer.Table
	Config      config.Config
	Metrics     *metrics.Metrics
	Stats       *statsmgr.StatsManager
}

// Dispatcher is the event loop described in SPEC_FULL.md's expansion of §5:
// one reader goroutine per socket feeding a single unbuffered channel, drained
// by the loop goroutine so that per-peer state is never touched concurrently.
type Dispatcher struct {
	host  net.IP
	table *peer.Table
	cfg   config.Config
	mtr   *metrics.Metrics
	stats *statsmgr.StatsManager

	enc       atcodec.Encoder
	fsm       *fsm.FSM
	telemetry *telemetry.Adapter

	mavConn *net.UDPConn
	navConn *net.UDPConn
	atConn  *net.UDPConn

	events chan event
}

type eventKind int

const (
	evMavlink eventKind = iota
	evNavdata
	evFatal
)

type event struct {
	kind eventKind
	addr *net.UDPAddr
	data []byte
	err  error
}

// New binds the three sockets and builds the Dispatcher. The AT socket binds
// an ephemeral local port: it is write-only, nothing ever addresses it.
func New(opts Options) (*Dispatcher, error) {
	host := net.ParseIP(opts.Host)
	if host == nil {
		return nil, fmt.Errorf("%w: invalid bind host %q", bridgeerr.ErrConfig, opts.Host)
	}

	mavConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: host, Port: opts.MavlinkPort})
	if err != nil {
		return nil, fmt.Errorf("%w: binding mavlink socket on %s:%d: %v", bridgeerr.ErrFatalSocket, host, opts.MavlinkPort, err)
	}
	navConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: host, Port: NavdataPort})
	if err != nil {
		mavConn.Close()
		return nil, fmt.Errorf("%w: binding navdata socket on %s:%d: %v", bridgeerr.ErrFatalSocket, host, NavdataPort, err)
	}
	atConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: host, Port: 0})
	if err != nil {
		mavConn.Close()
		navConn.Close()
		return nil, fmt.Errorf("%w: binding AT socket: %v", bridgeerr.ErrFatalSocket, err)
	}

	enc := atcodec.NewEncoder(opts.Config.AtRepeat)
	d := &Dispatcher{
		host:    host,
		table:   opts.Table,
		cfg:     opts.Config,
		mtr:     opts.Metrics,
		stats:   opts.Stats,
		enc:     enc,
		fsm:     fsm.New(enc, opts.Config),
		mavConn: mavConn,
		navConn: navConn,
		atConn:  atConn,
		events:  make(chan event),
	}
	d.telemetry = telemetry.New(opts.Config, enc, nil)
	return d, nil
}

// Close releases all three sockets. Safe to call after Run returns.
func (d *Dispatcher) Close() {
	d.mavConn.Close()
	d.navConn.Close()
	d.atConn.Close()
}

// Run starts the reader goroutines, blocks until the first MAVLink heartbeat
// arrives on the MAVLink socket (the wait_heartbeat handshake), then drains events
// until ctx is cancelled or a socket reports a fatal error.
func (d *Dispatcher) Run(ctx context.Context) error {
	go d.readLoop(d.mavConn, evMavlink)
	go d.readLoop(d.navConn, evNavdata)
	go d.readLoop(d.atConn, evFatal) // write-only socket; this goroutine only ever surfaces a fatal read error

	logger.Info("waiting for first MAVLink heartbeat...")
	if err := d.waitHeartbeat(ctx); err != nil {
		return err
	}
	logger.Info("heartbeat received, dispatcher running")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-d.events:
			if err := d.handle(ev); err != nil {
				return err
			}
		}
	}
}

// waitHeartbeat consumes and discards everything but a HEARTBEAT frame, from
// any sender, then replays that frame through the normal handling path so it
// is routed (PeerFSM transition, forward) like any later frame.
func (d *Dispatcher) waitHeartbeat(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-d.events:
			if ev.kind == evFatal {
				return ev.err
			}
			if ev.kind != evMavlink {
				continue
			}
			frame, err := mavcodec.Decode(ev.data)
			if err != nil {
				continue
			}
			if _, ok := frame.Message.(*mavcodec.MessageHeartbeat); ok {
				return d.handle(ev)
			}
		}
	}
}

func (d *Dispatcher) readLoop(conn *net.UDPConn, kind eventKind) {
	buf := make([]byte, 2048)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if isTransient(err) {
				continue
			}
			select {
			case d.events <- event{kind: evFatal, err: fmt.Errorf("%w: %v", bridgeerr.ErrFatalSocket, err)}:
			case <-time.After(time.Second):
			}
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		d.events <- event{kind: kind, addr: addr, data: data}
	}
}

func isTransient(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}

func (d *Dispatcher) handle(ev event) error {
	switch ev.kind {
	case evFatal:
		return ev.err
	case evMavlink:
		d.handleMavlink(ev)
	case evNavdata:
		d.handleNavdata(ev)
	}
	return nil
}

// handleMavlink implements §4.5's routing rule: GCS traffic (sender IP equals
// the local bind host) is indexed by source port, drone traffic by sender IP.
func (d *Dispatcher) handleMavlink(ev event) {
	frame, err := mavcodec.Decode(ev.data)
	if err != nil {
		if d.mtr != nil {
			d.mtr.MalformedFrames.WithLabelValues("mavlink").Inc()
		}
		d.bump("malformed_mavlink_frames")
		if isPrintable(ev.data) {
			fmt.Println(string(ev.data))
		}
		logger.Debug("malformed mavlink frame from %s: %v", ev.addr, err)
		return
	}

	if ev.addr.IP.Equal(d.host) {
		p := d.table.LookupByPort(ev.addr.Port)
		if p == nil {
			if d.mtr != nil {
				d.mtr.UnknownSenders.WithLabelValues("mavlink").Inc()
			}
			d.bump("unknown_senders")
			logger.Warn("unknown GCS source port %d", ev.addr.Port)
			return
		}
		d.fsm.OnGcsFrame(p, frame, ev.data, d)
		d.updatePeerModeGauge(p)
		return
	}

	p := d.table.LookupByIP(ev.addr.IP.String())
	if p == nil {
		if d.mtr != nil {
			d.mtr.UnknownSenders.WithLabelValues("mavlink").Inc()
		}
		d.bump("unknown_senders")
		logger.Warn("unknown drone sender %s", ev.addr.IP)
		return
	}
	p.DroneAddr = ev.addr
	d.fsm.OnDroneFrame(p, frame, ev.data, time.Now(), d)
	d.updatePeerModeGauge(p)
}

func (d *Dispatcher) handleNavdata(ev event) {
	p := d.table.LookupByIP(ev.addr.IP.String())
	if p == nil {
		if d.mtr != nil {
			d.mtr.UnknownSenders.WithLabelValues("navdata").Inc()
		}
		d.bump("unknown_senders")
		logger.Warn("unknown navdata sender %s", ev.addr.IP)
		return
	}
	nf, err := navdata.Decode(ev.data)
	if err != nil {
		if d.mtr != nil {
			d.mtr.MalformedFrames.WithLabelValues("navdata").Inc()
		}
		d.bump("malformed_navdata_frames")
		logger.Debug("malformed navdata frame from %s: %v", p.Name, err)
		return
	}
	if d.mtr != nil {
		d.mtr.NavdataFrames.WithLabelValues(p.Name).Inc()
	}
	d.bump("navdata_frames")
	d.telemetry.OnFrame(p, nf, d)
	d.updatePeerModeGauge(p)
}

func (d *Dispatcher) updatePeerModeGauge(p *peer.Peer) {
	if d.mtr != nil {
		d.mtr.PeerMode.WithLabelValues(p.Name).Set(float64(p.Mode))
	}
}

// bump increments a named rolling-rate counter if a StatsManager is attached.
// Kept alongside the Prometheus collectors per SPEC_FULL.md's ambient-stack
// expansion: the Prometheus series are for scraping, the StatsManager line is
// for an operator watching stdout.
func (d *Dispatcher) bump(name string) {
	if d.stats != nil {
		d.stats.Counter(name).Add(1)
	}
}

// --- fsm.Effects / telemetry.Sink implementation ---

// ForwardToGCS sends raw bytes to a peer's synthetic GCS-facing port.
func (d *Dispatcher) ForwardToGCS(p *peer.Peer, raw []byte) {
	dst := &net.UDPAddr{IP: d.host, Port: p.SynthPort}
	if _, err := d.mavConn.WriteToUDP(raw, dst); err != nil {
		logger.Debug("forward to GCS %s failed: %v", dst, err)
		return
	}
	if d.mtr != nil {
		d.mtr.MavlinkForwarded.WithLabelValues(p.Name, "to_gcs").Inc()
	}
	d.bump("mavlink_forwarded")
}

// ForwardToDrone sends raw bytes to a peer's last observed drone address.
// Silently dropped if the drone address is not yet known (no inbound MAVLink
// has been seen from it yet): there is nowhere to send it.
func (d *Dispatcher) ForwardToDrone(p *peer.Peer, raw []byte) {
	if p.DroneAddr == nil {
		logger.Debug("dropping frame for %s: drone address not yet known", p.Name)
		return
	}
	if _, err := d.mavConn.WriteToUDP(raw, p.DroneAddr); err != nil {
		logger.Debug("forward to drone %s failed: %v", p.Name, err)
		return
	}
	if d.mtr != nil {
		d.mtr.MavlinkForwarded.WithLabelValues(p.Name, "to_drone").Inc()
	}
	d.bump("mavlink_forwarded")
}

// SendMavlinkToGCS packs and forwards a synthesised MAVLink message to the GCS.
func (d *Dispatcher) SendMavlinkToGCS(p *peer.Peer, msgID uint8, payload []byte) {
	raw := mavcodec.Pack(1, 1, p.NextMavSeq(), msgID, payload)
	d.ForwardToGCS(p, raw)
}

// OnBundleEmitted counts one completed six-message synthetic bundle. Called
// once per emitBundle invocation, not once per SendMavlinkToGCS call: a
// bundle is six messages, and the counter tracks bundles, not messages.
func (d *Dispatcher) OnBundleEmitted(p *peer.Peer) {
	if d.mtr != nil {
		d.mtr.SynthBundlesEmitted.WithLabelValues(p.Name).Inc()
	}
	d.bump("synth_bundles_emitted")
}

// SendAT writes each AT frame to the peer's drone AT-command port.
func (d *Dispatcher) SendAT(p *peer.Peer, frames [][]byte) {
	dst := &net.UDPAddr{IP: net.ParseIP(p.IP), Port: AtPort}
	for _, f := range frames {
		if _, err := d.atConn.WriteToUDP(f, dst); err != nil {
			logger.Debug("AT write to %s failed: %v", p.Name, err)
			continue
		}
		if d.mtr != nil {
			d.mtr.AtFramesSent.WithLabelValues(p.Name, atVerb(f)).Inc()
		}
		d.bump("at_frames_sent")
		if logger.Verbosity() >= 3 {
			logger.Debug("AT -> %s: %s", p.Name, strings.TrimRight(string(f), "\r"))
		}
	}
}

// SendNavdataRequest (re)initialises the drone->proxy navdata stream and
// stamps LastNavdataRequest, the single source of truth the dampen guard
// (§4.3) and the Manual->Autopilot revert guard (§4.4) both read -- matching
// arproxy.py's self.request_navdata_time, which is set at the point of the
// raw send, not at the later AT reconfig burst.
func (d *Dispatcher) SendNavdataRequest(p *peer.Peer) {
	dst := &net.UDPAddr{IP: net.ParseIP(p.IP), Port: NavdataPort}
	if _, err := d.navConn.WriteToUDP(atcodec.NavdataRequest(), dst); err != nil {
		logger.Debug("navdata request to %s failed: %v", p.Name, err)
		return
	}
	p.LastNavdataRequest = time.Now()
}

// ForceAutopilot silences the synthetic MAVLink path and hands control back to
// the drone's own autopilot stream.
func (d *Dispatcher) ForceAutopilot(p *peer.Peer) {
	d.fsm.ForceAutopilot(p)
	d.updatePeerModeGauge(p)
}

// Log routes PeerFSM's drop/no-link diagnostics through the bridge's logger.
func (d *Dispatcher) Log(format string, args ...any) {
	logger.Info(format, args...)
}

// atVerb extracts the AT command verb ("REF", "PCMD", "CONFIG", "CTRL") from a
// rendered frame for metrics labeling, e.g. "AT*REF=1,...\r" -> "REF".
func atVerb(frame []byte) string {
	s := strings.TrimPrefix(string(frame), "AT*")
	if i := strings.IndexAny(s, "=_"); i >= 0 {
		if strings.HasPrefix(s, "PCMD_MAG") {
			return "PCMD_MAG"
		}
		return s[:i]
	}
	return "UNKNOWN"
}

// isPrintable reports whether every byte is a printable ASCII character or
// common whitespace, the heuristic this bridge uses to decide whether a
// malformed frame's payload is worth echoing to stdout for debugging.
func isPrintable(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c == '\n' || c == '\r' || c == '\t' {
			continue
		}
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// Package bootstrap implements BootstrapRoutine: the "-t" test mode that
// brings up a single drone's navdata stream from cold against the AR.Drone
// SDK's fixed factory address, following
// original_source/scripts/arproxy.py's establish_navdata() loop.
package bootstrap

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ar2mav/bridge/internal/atcodec"
	"github.com/ar2mav/bridge/internal/bridgeerr"
	"github.com/ar2mav/bridge/internal/logger"
	"github.com/ar2mav/bridge/internal/navdata"
)

// FactoryIP and the vendor-fixed ports the routine exercises; the AR.Drone
// SDK's default access-point address, not configurable.
const (
	FactoryIP   = "192.168.1.1"
	navdataPort = 5554
	atPort      = 5556
	stopAfter   = 100
)

// Run binds local port 5554, brings the drone's navdata stream up from cold,
// and halts after stopAfter AT commands, per §4.6. It blocks until either the
// routine completes normally or ctx is cancelled.
func Run(ctx context.Context, localHost string) error {
	host := net.ParseIP(localHost)
	if host == nil {
		return fmt.Errorf("%w: invalid local host %q", bridgeerr.ErrConfig, localHost)
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: host, Port: navdataPort})
	if err != nil {
		return fmt.Errorf("%w: binding navdata socket: %v", bridgeerr.ErrFatalSocket, err)
	}
	defer conn.Close()

	drone := &net.UDPAddr{IP: net.ParseIP(FactoryIP), Port: atPort}
	enc := atcodec.NewEncoder(1)

	seq := uint32(1)
	send := func(frames [][]byte) {
		for _, f := range frames {
			if _, err := conn.WriteToUDP(f, drone); err != nil {
				logger.Debug("bootstrap: write to %s failed: %v", drone, err)
				continue
			}
			if logger.Verbosity() >= 1 {
				logger.Info("AT*... -> %s: %s", drone, trimCR(f))
			}
		}
	}

	logger.Info("bootstrap: initiating navdata stream")
	if _, err := conn.WriteToUDP(atcodec.NavdataRequest(), &net.UDPAddr{IP: net.ParseIP(FactoryIP), Port: navdataPort}); err != nil {
		return fmt.Errorf("%w: sending navdata init packet: %v", bridgeerr.ErrFatalSocket, err)
	}
	send(enc.NavdataOptionsFrame(seq))
	seq++

	navDataSeen := false
	buf := make([]byte, 2048)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("%w: reading navdata: %v", bridgeerr.ErrFatalSocket, err)
		}

		nf, err := navdata.Decode(buf[:n])
		if err != nil {
			logger.Debug("bootstrap: malformed navdata packet: %v", err)
			continue
		}

		if nf.State&navdata.CommandMask == 0 {
			logger.Info("bootstrap: command mask clear, requesting navdata_demo=TRUE")
			send(enc.NavdataCommand(seq))
			seq++
		} else if !navDataSeen {
			navDataSeen = nf.State&navdata.NavdataDemoMask != 0
			if !navDataSeen {
				logger.Info("bootstrap: demo mask clear, requesting navdata_demo=TRUE")
				send(enc.NavdataCommand(seq))
				seq++
			} else {
				logger.Info("bootstrap: demo mode on")
			}
		}

		if navDataSeen {
			if !nf.Has("GPS") {
				logger.Info("bootstrap: no GPS block yet, re-requesting navdata_options")
				send(enc.NavdataOptionsFrame(seq))
				seq++
			} else {
				send(enc.NavdataOptionsFrame(seq))
				seq++
			}
		}

		if seq > stopAfter {
			logger.Info("bootstrap: stop threshold reached, disabling navdata_demo")
			send(enc.NavdataDemoOff(seq))
			return nil
		}
	}
}

func trimCR(f []byte) string {
	if len(f) > 0 && f[len(f)-1] == '\r' {
		return string(f[:len(f)-1])
	}
	return string(f)
}

// Package bridgeerr defines the bridge's error taxonomy as sentinel errors
// compatible with errors.Is/errors.As, in place of a bespoke error-code system.
package bridgeerr

import "errors"

var (
	// ErrTransientSocket covers EAGAIN/EWOULDBLOCK/ECONNREFUSED: expected under
	// non-blocking I/O and ICMP-unreachable from an offline drone. Swallowed.
	ErrTransientSocket = errors.New("transient socket error")

	// ErrMalformedFrame means the MAVLink codec returned a bad-data sentinel.
	ErrMalformedFrame = errors.New("malformed mavlink frame")

	// ErrUnknownSender means the datagram's sender IP (or port, for GCS traffic)
	// is absent from the PeerTable.
	ErrUnknownSender = errors.New("unknown sender")

	// ErrMissingNavdataOptions means a healthy demo mask arrived without one of
	// the required option blocks {DEMO, GPS, TIME}. Self-healed by re-requesting.
	ErrMissingNavdataOptions = errors.New("missing required navdata options")

	// ErrDemoStall means the demo mask has been clear for more than the stall
	// threshold. Self-healed by forcing the peer back to Autopilot.
	ErrDemoStall = errors.New("navdata demo stall")

	// ErrFatalSocket covers any socket error outside the transient set.
	// Propagated; terminates the process.
	ErrFatalSocket = errors.New("fatal socket error")

	// ErrConfig covers a malformed CSV or unreadable/invalid config file.
	// Terminates before the event loop starts.
	ErrConfig = errors.New("config error")
)

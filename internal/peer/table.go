package peer

import (
	"fmt"

	"github.com/ar2mav/bridge/internal/bridgeerr"
)

// Table is the dual-indexed peer table: one owning slice plus two index maps of
// borrowed pointers into it. Built once at startup from a CSV source and never
// mutated afterward, so no locking is required (per SPEC_FULL.md §4.1/§9).
type Table struct {
	all      []*Peer
	byIP     map[string]*Peer
	byPort   map[int]*Peer
}

// NewTable builds a Table from (name, ip, synthPort) triples. Duplicate IPs or
// duplicate synthetic ports are a construction error: the spec leaves duplicate
// IPs undefined, and a bridge that can't disambiguate GCS traffic by port is
// unusable, so both are rejected up front as a ConfigError.
func NewTable(entries []Entry) (*Table, error) {
	t := &Table{
		byIP:   make(map[string]*Peer, len(entries)),
		byPort: make(map[int]*Peer, len(entries)),
	}
	for _, e := range entries {
		if _, dup := t.byIP[e.IP]; dup {
			return nil, fmt.Errorf("%w: peer table: duplicate drone IP %q", bridgeerr.ErrConfig, e.IP)
		}
		if _, dup := t.byPort[e.SynthPort]; dup {
			return nil, fmt.Errorf("%w: peer table: duplicate synthetic port %d", bridgeerr.ErrConfig, e.SynthPort)
		}
		p := NewPeer(e.Name, e.IP, e.SynthPort)
		t.all = append(t.all, p)
		t.byIP[e.IP] = p
		t.byPort[e.SynthPort] = p
	}
	return t, nil
}

// Entry is a raw (name, ip, synthPort) configuration triple, as loaded from CSV.
type Entry struct {
	Name      string
	IP        string
	SynthPort int
}

// LookupByIP returns the Peer configured for a drone IP, or nil if unknown.
func (t *Table) LookupByIP(ip string) *Peer {
	return t.byIP[ip]
}

// LookupByPort returns the Peer configured for a synthetic GCS-facing port, or nil.
func (t *Table) LookupByPort(port int) *Peer {
	return t.byPort[port]
}

// All returns a read-only snapshot of every configured peer, in load order.
func (t *Table) All() []*Peer {
	out := make([]*Peer, len(t.all))
	copy(out, t.all)
	return out
}

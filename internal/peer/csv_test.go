package peer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCSVParsesThreeFieldRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.csv")
	if err := os.WriteFile(path, []byte("drone1,10.0.0.5,14551\ndrone2,10.0.0.6,14552\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entries, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0] != (Entry{Name: "drone1", IP: "10.0.0.5", SynthPort: 14551}) {
		t.Fatalf("entries[0] = %+v", entries[0])
	}
}

func TestLoadCSVRejectsMissingFile(t *testing.T) {
	if _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadCSVRejectsBadPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.csv")
	if err := os.WriteFile(path, []byte("drone1,10.0.0.5,not-a-port\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadCSV(path); err == nil {
		t.Fatalf("expected error for malformed synth_port")
	}
}

func TestLoadCSVRejectsBadIP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.csv")
	if err := os.WriteFile(path, []byte("drone1,not-an-ip,14551\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadCSV(path); err == nil {
		t.Fatalf("expected error for malformed IP")
	}
}

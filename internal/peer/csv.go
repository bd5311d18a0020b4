package peer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/ar2mav/bridge/internal/bridgeerr"
)

// LoadCSV reads the peer configuration file: one record per line, no header,
// exactly three comma-separated fields (name, ip, synth_port).
func LoadCSV(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening peer map %q: %v", bridgeerr.ErrConfig, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3

	var entries []Entry
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parsing peer map %q: %v", bridgeerr.ErrConfig, path, err)
		}
		if net.ParseIP(record[1]) == nil {
			return nil, fmt.Errorf("%w: peer map %q: invalid drone IP %q", bridgeerr.ErrConfig, path, record[1])
		}
		port, err := strconv.Atoi(record[2])
		if err != nil {
			return nil, fmt.Errorf("%w: peer map %q: invalid synth_port %q", bridgeerr.ErrConfig, path, record[2])
		}
		entries = append(entries, Entry{Name: record[0], IP: record[1], SynthPort: port})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: peer map %q has no entries", bridgeerr.ErrConfig, path)
	}
	return entries, nil
}

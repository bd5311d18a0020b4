// Package config loads the bridge's YAML-tunable configuration, in the
// teacher's layering: flags carry the common knobs, YAML carries the
// advanced/rarely-changed ones, and flags win when both are supplied. The
// peer CSV table is loaded separately by internal/peer.LoadCSV.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ar2mav/bridge/internal/bridgeerr"
)

// Config is the full set of advanced tunables, loadable from YAML.
type Config struct {
	MavIntervalMs      int    `yaml:"mav_interval_ms"`
	DampenWindowMs     int    `yaml:"dampen_window_ms"`
	DemoStallMs        int    `yaml:"demo_stall_ms"`
	NavdataRevertMs    int    `yaml:"navdata_revert_ms"`
	AtRepeat           int    `yaml:"at_repeat"`
	LogLevel           string `yaml:"log_level"`
	LogTimestampFormat string `yaml:"log_timestamp_format"`
}

// Defaults returns the hard-coded defaults used when no YAML file is given.
func Defaults() Config {
	return Config{
		MavIntervalMs:      250,
		DampenWindowMs:     200,
		DemoStallMs:        2000,
		NavdataRevertMs:    1000,
		AtRepeat:           1,
		LogLevel:           "info",
		LogTimestampFormat: "2006-01-02 15:04:05.000",
	}
}

// Load reads a YAML config file and fills any zero-valued fields from Defaults().
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: reading config %q: %v", bridgeerr.ErrConfig, path, err)
	}
	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Config{}, fmt.Errorf("%w: parsing config %q: %v", bridgeerr.ErrConfig, path, err)
	}
	mergeNonZero(&cfg, loaded)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeNonZero(dst *Config, src Config) {
	if src.MavIntervalMs != 0 {
		dst.MavIntervalMs = src.MavIntervalMs
	}
	if src.DampenWindowMs != 0 {
		dst.DampenWindowMs = src.DampenWindowMs
	}
	if src.DemoStallMs != 0 {
		dst.DemoStallMs = src.DemoStallMs
	}
	if src.NavdataRevertMs != 0 {
		dst.NavdataRevertMs = src.NavdataRevertMs
	}
	if src.AtRepeat != 0 {
		dst.AtRepeat = src.AtRepeat
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogTimestampFormat != "" {
		dst.LogTimestampFormat = src.LogTimestampFormat
	}
}

// Validate rejects nonsensical tunables before the event loop starts.
func (c Config) Validate() error {
	if c.MavIntervalMs <= 0 {
		return fmt.Errorf("%w: mav_interval_ms must be positive", bridgeerr.ErrConfig)
	}
	if c.DampenWindowMs < 0 {
		return fmt.Errorf("%w: dampen_window_ms must not be negative", bridgeerr.ErrConfig)
	}
	if c.DemoStallMs <= 0 {
		return fmt.Errorf("%w: demo_stall_ms must be positive", bridgeerr.ErrConfig)
	}
	if c.NavdataRevertMs <= 0 {
		return fmt.Errorf("%w: navdata_revert_ms must be positive", bridgeerr.ErrConfig)
	}
	if c.AtRepeat <= 0 {
		return fmt.Errorf("%w: at_repeat must be positive", bridgeerr.ErrConfig)
	}
	return nil
}

// MavInterval is the minimum spacing between synthesised MAVLink bundles per peer.
func (c Config) MavInterval() time.Duration {
	return time.Duration(c.MavIntervalMs) * time.Millisecond
}

// DampenWindow is the window after a NAVDATA_REQUEST during which frames are dropped.
func (c Config) DampenWindow() time.Duration {
	return time.Duration(c.DampenWindowMs) * time.Millisecond
}

// DemoStall is the threshold after which a clear demo mask forces Manual->Autopilot.
func (c Config) DemoStall() time.Duration {
	return time.Duration(c.DemoStallMs) * time.Millisecond
}

// NavdataRevertGuard is the minimum age of the last NAVDATA_REQUEST before a drone
// MAVLink frame is treated as a signal that demo mode has lapsed.
func (c Config) NavdataRevertGuard() time.Duration {
	return time.Duration(c.NavdataRevertMs) * time.Millisecond
}

// Command ar2mav bridges an AR.Drone 2.0's navdata/AT control protocol to a
// MAVLink-speaking ground control station.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ar2mav/bridge/internal/bootstrap"
	"github.com/ar2mav/bridge/internal/config"
	"github.com/ar2mav/bridge/internal/dispatcher"
	"github.com/ar2mav/bridge/internal/logger"
	"github.com/ar2mav/bridge/internal/metrics"
	"github.com/ar2mav/bridge/internal/peer"
	"github.com/ar2mav/bridge/internal/statsmgr"
)

func main() {
	csvFile := flag.String("f", "map.csv", "CSV file with peer mapping")
	mavPort := flag.Int("p", 14550, "incoming MAVLink UDP port")
	localHost := flag.String("l", "127.0.0.1", "local bind address")
	verbosity := flag.Int("v", 0, "verbosity level 0..3")
	test := flag.Bool("t", false, "run BootstrapRoutine against a fixed drone and exit")

	configFile := flag.String("config", "", "optional YAML config file with advanced tunables")
	metricsAddr := flag.String("metrics-addr", "127.0.0.1:9120", "bind address for the /metrics endpoint; empty disables it")
	statsInterval := flag.Int("stats-interval", 30, "StatsManager logging cadence in seconds; 0 disables")

	flag.Parse()
	logger.SetVerbosity(*verbosity)

	if *test {
		logger.Info("starting BootstrapRoutine against %s", bootstrap.FactoryIP)
		if err := bootstrap.Run(context.Background(), *localHost); err != nil {
			logger.Fatal("bootstrap failed: %v", err)
		}
		logger.Info("bootstrap complete")
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal("loading config: %v", err)
	}
	if cfg.LogLevel != "" {
		logger.SetLevelFromString(cfg.LogLevel)
	}
	if cfg.LogTimestampFormat != "" {
		logger.SetTimestampFormat(cfg.LogTimestampFormat)
	}

	entries, err := peer.LoadCSV(*csvFile)
	if err != nil {
		logger.Fatal("loading peer map %s: %v", *csvFile, err)
	}
	table, err := peer.NewTable(entries)
	if err != nil {
		logger.Fatal("building peer table: %v", err)
	}
	if logger.Verbosity() >= 2 {
		for _, p := range table.All() {
			logger.Info("peer %s: %s -> synth port %d", p.Name, p.IP, p.SynthPort)
		}
	}

	mtr := metrics.New()
	var metricsSrv *http.Server
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", mtr.Handler())
		metricsSrv = &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped: %v", err)
			}
		}()
		logger.Info("metrics listening on %s", *metricsAddr)
	}

	stats := statsmgr.New(*statsInterval)
	if *statsInterval > 0 {
		stats.Start()
	}

	d, err := dispatcher.New(dispatcher.Options{
		Host:        *localHost,
		MavlinkPort: *mavPort,
		Table:       table,
		Config:      cfg,
		Metrics:     mtr,
		Stats:       stats,
	})
	if err != nil {
		logger.Fatal("starting dispatcher: %v", err)
	}
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	logger.Info("ar2mav bridge running on %s:%d", *localHost, *mavPort)
	runErr := d.Run(ctx)

	stats.Stop()
	if metricsSrv != nil {
		metricsSrv.Close()
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Fatal("dispatcher terminated: %v", runErr)
	}
	logger.Info("shutdown complete")
}

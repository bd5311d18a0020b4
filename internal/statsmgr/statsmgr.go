// Package statsmgr periodically logs throughput counters (AT frames sent,
// navdata frames processed, synthesised bundles emitted) as a single summary
// line, adapted from the teacher's internal/logger/stats_manager.go.
package statsmgr

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ar2mav/bridge/internal/logger"
)

// StatsManager accumulates named counters and logs a rate summary on a fixed
// interval until Stop is called.
type StatsManager struct {
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	counters map[string]*atomic.Uint64
}

// New creates a StatsManager that logs via the package logger every
// intervalSec seconds.
func New(intervalSec int) *StatsManager {
	if intervalSec <= 0 {
		intervalSec = 30
	}
	return &StatsManager{
		interval: time.Duration(intervalSec) * time.Second,
		stopCh:   make(chan struct{}),
		counters: make(map[string]*atomic.Uint64),
	}
}

// Counter registers (or returns the existing) named counter for direct
// atomic increments from the dispatcher's hot path.
func (sm *StatsManager) Counter(name string) *atomic.Uint64 {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if _, ok := sm.counters[name]; !ok {
		sm.counters[name] = &atomic.Uint64{}
	}
	return sm.counters[name]
}

// Start begins the periodic logging loop in its own goroutine.
func (sm *StatsManager) Start() {
	sm.wg.Add(1)
	go sm.run()
}

// Stop halts the logging loop and waits for it to exit.
func (sm *StatsManager) Stop() {
	close(sm.stopCh)
	sm.wg.Wait()
}

func (sm *StatsManager) run() {
	defer sm.wg.Done()
	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()

	prevValues := make(map[string]uint64)
	sm.mu.Lock()
	for name, counter := range sm.counters {
		prevValues[name] = counter.Load()
	}
	sm.mu.Unlock()

	for {
		select {
		case <-sm.stopCh:
			return
		case <-ticker.C:
			sm.logStats(prevValues)
		}
	}
}

func (sm *StatsManager) logStats(prevValues map[string]uint64) {
	sm.mu.Lock()
	names := make([]string, 0, len(sm.counters))
	for name := range sm.counters {
		names = append(names, name)
	}
	sm.mu.Unlock()
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	intervalSec := sm.interval.Seconds()

	for _, name := range names {
		counter := sm.counters[name]
		current := counter.Load()
		prev := prevValues[name]
		diff := current - prev
		prevValues[name] = current

		rate := float64(diff) / intervalSec
		parts = append(parts, fmt.Sprintf("%s: %d (+%d, %.1f/s)", name, current, diff, rate))
	}

	if len(parts) > 0 {
		logger.Info("[STATS] %s", strings.Join(parts, " | "))
	}
}

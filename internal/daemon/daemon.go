// Package daemon runs the monitoring loops: polling log directories,
// draining the event queue into the registry, sweeping retention, and
// emitting the periodic summary. Each loop is a goroutine on its own
// ticker; every tick runs under a bounded timeout so one stuck
// iteration cannot wedge the daemon.
package daemon

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/logbug/logbug/internal/notify"
	"github.com/logbug/logbug/internal/registry"
	"github.com/logbug/logbug/internal/scanner"
	"github.com/logbug/logbug/internal/types"
)

// Config holds daemon configuration
type Config struct {
	// PollInterval is the log scan cadence
	// Default: 10 seconds
	PollInterval time.Duration
	// ProcessInterval is the queue drain cadence
	// Default: 5 seconds
	ProcessInterval time.Duration
	// BatchSize bounds events processed per tick
	// Default: 100
	BatchSize int
	// SweepInterval is the retention cleanup cadence
	// Default: 1 hour
	SweepInterval time.Duration
	// SummaryInterval is the digest cadence
	// Default: 24 hours
	SummaryInterval time.Duration
	// TickTimeout bounds a single loop iteration
	// Default: 1 minute
	TickTimeout time.Duration
}

// DefaultConfig returns default daemon configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:    10 * time.Second,
		ProcessInterval: 5 * time.Second,
		BatchSize:       100,
		SweepInterval:   time.Hour,
		SummaryInterval: 24 * time.Hour,
		TickTimeout:     time.Minute,
	}
}

// Daemon owns the background loops.
type Daemon struct {
	config     *Config
	scanner    *scanner.Scanner
	registry   *registry.Registry
	dispatcher *notify.Dispatcher

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a daemon. Scanner and registry are required; a nil
// dispatcher disables the periodic summary.
func New(cfg *Config, sc *scanner.Scanner, reg *registry.Registry, dispatcher *notify.Dispatcher) (*Daemon, error) {
	if sc == nil {
		return nil, fmt.Errorf("daemon requires a scanner")
	}
	if reg == nil {
		return nil, fmt.Errorf("daemon requires a registry")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.ProcessInterval <= 0 {
		cfg.ProcessInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Hour
	}
	if cfg.SummaryInterval <= 0 {
		cfg.SummaryInterval = 24 * time.Hour
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = time.Minute
	}
	return &Daemon{
		config:     cfg,
		scanner:    sc,
		registry:   reg,
		dispatcher: dispatcher,
	}, nil
}

// Start launches the loops. Returns an error if already running.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("daemon already running")
	}
	d.running = true

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(3)
	go d.scanLoop(loopCtx)
	go d.processLoop(loopCtx)
	go d.maintenanceLoop(loopCtx)
	return nil
}

// Stop cancels the loops and waits for them to exit.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel := d.cancel
	d.mu.Unlock()

	cancel()
	d.wg.Wait()
}

// scanLoop polls the watched directories. An immediate first poll means
// pre-existing log content is picked up without waiting a full interval.
func (d *Daemon) scanLoop(ctx context.Context) {
	defer d.wg.Done()

	d.pollOnce(ctx)

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pollOnce(ctx)
		}
	}
}

func (d *Daemon) pollOnce(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, d.config.TickTimeout)
	defer cancel()

	if _, err := d.scanner.Poll(tickCtx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "warning: scan failed: %v\n", err)
	}
}

// processLoop drains queued events into the registry in batches.
func (d *Daemon) processLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.ProcessInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drainOnce(ctx)
		}
	}
}

func (d *Daemon) drainOnce(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, d.config.TickTimeout)
	defer cancel()

	for _, event := range d.scanner.Queue().Drain(d.config.BatchSize) {
		if _, err := d.registry.Process(tickCtx, event); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to process event %s: %v\n", event.ID, err)
		}
	}
}

// maintenanceLoop runs the retention sweep and the periodic summary.
func (d *Daemon) maintenanceLoop(ctx context.Context) {
	defer d.wg.Done()

	sweep := time.NewTicker(d.config.SweepInterval)
	defer sweep.Stop()
	summary := time.NewTicker(d.config.SummaryInterval)
	defer summary.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			if removed := d.registry.Cleanup(ctx); removed > 0 {
				fmt.Fprintf(os.Stderr, "retention sweep removed %d bugs\n", removed)
			}
		case <-summary.C:
			d.summaryOnce(ctx)
		}
	}
}

func (d *Daemon) summaryOnce(ctx context.Context) {
	if d.dispatcher == nil {
		return
	}
	tickCtx, cancel := context.WithTimeout(ctx, d.config.TickTimeout)
	defer cancel()

	recent := d.registry.List(&types.BugFilter{Limit: 10})
	if err := d.dispatcher.Summary(tickCtx, d.registry.Statistics(), recent); err != nil {
		fmt.Fprintf(os.Stderr, "warning: summary failed: %v\n", err)
	}
}

// Package notify fans bug-lifecycle alerts out to configured channels.
// The dispatcher owns two layers of throttling: a per-event rate-limit
// window keyed by (kind, bug) so a noisy bug cannot repeat the same
// alert, and a per-channel token bucket so no sink is flooded across
// bugs. Channel failures are isolated; one bad webhook never blocks the
// others.
package notify

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/logbug/logbug/internal/types"
)

// Config holds dispatcher configuration
type Config struct {
	// RateLimitWindow suppresses repeat alerts for the same (kind, bug)
	// pair within this window.
	// Default: 5 minutes
	RateLimitWindow time.Duration
	// SendTimeout bounds each delivery attempt
	// Default: 10 seconds
	SendTimeout time.Duration
	// ChannelRate is the sustained per-channel delivery rate
	// Default: 1/sec
	ChannelRate rate.Limit
	// ChannelBurst is the per-channel burst allowance
	// Default: 5
	ChannelBurst int
}

// DefaultConfig returns default dispatcher configuration
func DefaultConfig() *Config {
	return &Config{
		RateLimitWindow: 5 * time.Minute,
		SendTimeout:     10 * time.Second,
		ChannelRate:     rate.Limit(1),
		ChannelBurst:    5,
	}
}

// ChannelOptions control which event kinds a channel receives.
type ChannelOptions struct {
	// Priority channels receive escalation alerts
	Priority bool
	// Digest channels receive the periodic summary
	Digest bool
}

type channel struct {
	sink    Sink
	opts    ChannelOptions
	limiter *rate.Limiter
}

// Dispatcher routes alerts to channels with dedup and throttling.
// Safe for concurrent use.
type Dispatcher struct {
	config *Config

	mu       sync.Mutex
	channels []*channel
	lastSent map[string]time.Time

	// now is replaceable in tests
	now func() time.Time
}

// NewDispatcher creates a dispatcher with no channels attached.
func NewDispatcher(cfg *Config) *Dispatcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = 5 * time.Minute
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.ChannelRate <= 0 {
		cfg.ChannelRate = rate.Limit(1)
	}
	if cfg.ChannelBurst <= 0 {
		cfg.ChannelBurst = 5
	}
	return &Dispatcher{
		config:   cfg,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// AddChannel attaches a sink. All channels receive new-bug alerts;
// options control escalations and digests.
func (d *Dispatcher) AddChannel(sink Sink, opts ChannelOptions) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = append(d.channels, &channel{
		sink:    sink,
		opts:    opts,
		limiter: rate.NewLimiter(d.config.ChannelRate, d.config.ChannelBurst),
	})
}

// ChannelCount returns the number of attached channels.
func (d *Dispatcher) ChannelCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.channels)
}

// Notify sends one lifecycle alert for the bug. Repeats of the same
// (kind, bug) pair inside the rate-limit window are silently dropped.
// Delivery failures are logged per channel and never returned as errors;
// the only error is a cancelled context.
func (d *Dispatcher) Notify(ctx context.Context, kind EventKind, bug *types.Bug) error {
	if !d.admit(string(kind) + ":" + bug.ID) {
		return nil
	}
	return d.dispatch(ctx, kind, buildAlert(kind, bug))
}

// Summary sends the digest alert to digest channels, subject to the
// same rate-limit window under a fixed key.
func (d *Dispatcher) Summary(ctx context.Context, stats *types.Statistics, recent []*types.Bug) error {
	if !d.admit(string(KindSummary)) {
		return nil
	}
	return d.dispatch(ctx, KindSummary, SummaryAlert(stats, recent))
}

// admit records the send for key and reports whether it is outside the
// rate-limit window. Stale entries are pruned once they age past twice
// the window.
func (d *Dispatcher) admit(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.lastSent[key]; ok && now.Sub(last) < d.config.RateLimitWindow {
		return false
	}
	d.lastSent[key] = now

	for k, t := range d.lastSent {
		if now.Sub(t) > 2*d.config.RateLimitWindow {
			delete(d.lastSent, k)
		}
	}
	return true
}

// dispatch delivers the alert to every eligible channel concurrently.
func (d *Dispatcher) dispatch(ctx context.Context, kind EventKind, alert *Alert) error {
	d.mu.Lock()
	eligible := make([]*channel, 0, len(d.channels))
	for _, ch := range d.channels {
		if accepts(ch, kind) {
			eligible = append(eligible, ch)
		}
	}
	d.mu.Unlock()

	if len(eligible) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range eligible {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(gctx, d.config.SendTimeout)
			defer cancel()

			if err := ch.limiter.Wait(sendCtx); err != nil {
				fmt.Fprintf(os.Stderr, "warning: notification to %s dropped: %v\n", ch.sink.Name(), err)
				return nil
			}
			if err := ch.sink.Send(sendCtx, alert); err != nil {
				fmt.Fprintf(os.Stderr, "warning: notification to %s failed: %v\n", ch.sink.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func accepts(ch *channel, kind EventKind) bool {
	switch kind {
	case KindEscalated:
		return ch.opts.Priority
	case KindSummary:
		return ch.opts.Digest
	default:
		return true
	}
}

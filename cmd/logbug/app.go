package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/logbug/logbug/internal/config"
	"github.com/logbug/logbug/internal/notify"
	"github.com/logbug/logbug/internal/patterns"
	"github.com/logbug/logbug/internal/registry"
	"github.com/logbug/logbug/internal/scanner"
	"github.com/logbug/logbug/internal/storage"
	"github.com/logbug/logbug/internal/tracker"
	"github.com/logbug/logbug/internal/types"
)

// app bundles the wired components behind one constructor so every
// subcommand assembles the same pipeline.
type app struct {
	cfg        *config.Config
	store      storage.BugStore
	tracker    *tracker.FileTracker
	dispatcher *notify.Dispatcher
	registry   *registry.Registry
	scanner    *scanner.Scanner
}

// buildApp wires components from configuration. Scanning commands set
// forScan so the watch settings are validated; management commands can
// run against the store alone.
func buildApp(ctx context.Context, forScan bool) (*app, error) {
	var cfg *config.Config
	var err error
	if forScan {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFile(configPath)
	}
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(&storage.Config{
		Backend: cfg.Storage.Backend,
		Path:    cfg.Storage.Path,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, store: store}

	if cfg.Tracker.Enabled {
		a.tracker, err = tracker.NewFileTracker(cfg.Tracker.Path)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	a.dispatcher, err = buildDispatcher(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	a.registry, err = buildRegistry(cfg, store, a.dispatcher, a.tracker)
	if err != nil {
		store.Close()
		return nil, err
	}
	if err := a.registry.Load(ctx); err != nil {
		store.Close()
		return nil, err
	}

	if forScan {
		a.scanner, err = buildScanner(cfg)
		if err != nil {
			store.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) Close() {
	a.store.Close()
}

func buildDispatcher(cfg *config.Config) (*notify.Dispatcher, error) {
	d := notify.NewDispatcher(&notify.Config{
		RateLimitWindow: cfg.Notifications.RateLimitWindow.Std(),
		SendTimeout:     cfg.Notifications.SendTimeout.Std(),
		ChannelRate:     rate.Limit(1),
		ChannelBurst:    5,
	})

	client := &http.Client{Timeout: cfg.Notifications.SendTimeout.Std()}
	for _, ch := range cfg.Notifications.Channels {
		if !ch.Enabled {
			continue
		}

		var sink notify.Sink
		switch ch.Type {
		case "webhook":
			ws, err := notify.NewWebhookSink(ch.Name, ch.URL, client)
			if err != nil {
				return nil, err
			}
			sink = ws
		case "console":
			sink = notify.NewConsoleSink(ch.Name, nil)
		default:
			return nil, fmt.Errorf("unknown channel type: %s", ch.Type)
		}
		d.AddChannel(sink, notify.ChannelOptions{Priority: ch.Priority, Digest: ch.Digest})
	}
	return d, nil
}

func buildRegistry(cfg *config.Config, store storage.BugStore, dispatcher *notify.Dispatcher, trk *tracker.FileTracker) (*registry.Registry, error) {
	regCfg := &registry.Config{
		EscalationThreshold: cfg.Escalation.Threshold,
		EscalationAfter:     cfg.Escalation.TimeThreshold.Std(),
		RetentionPeriod:     cfg.Retention.Period.Std(),
		DefaultOwner:        cfg.Owners.Default,
		ComponentOwners:     cfg.Owners.Components,
		TrackerMinSeverity:  types.Severity(cfg.Tracker.MinSeverity),
	}

	// A typed nil must not reach the interface fields.
	var notifier registry.Notifier
	if dispatcher != nil {
		notifier = dispatcher
	}
	var issueTracker tracker.Tracker
	if trk != nil {
		issueTracker = trk
	}
	return registry.NewRegistry(regCfg, store, nil, notifier, issueTracker)
}

func buildScanner(cfg *config.Config) (*scanner.Scanner, error) {
	set := patterns.DefaultSet()
	for _, p := range cfg.CustomPatterns {
		severity := types.Severity(p.Severity)
		if p.Severity == "" {
			severity = types.SeverityMedium
		}
		category := p.Category
		if category == "" {
			category = "application"
		}
		if err := set.Register(p.Name, p.Regex, severity, category); err != nil {
			return nil, fmt.Errorf("custom pattern %s: %w", p.Name, err)
		}
	}

	return scanner.NewScanner(&scanner.Config{
		WatchDirs:     cfg.Watch.Dirs,
		Extensions:    cfg.Watch.Extensions,
		Patterns:      set,
		QueueSize:     cfg.Watch.QueueSize,
		MaxLineLength: cfg.Watch.MaxLineLength,
	})
}

// drainInto processes every queued event and returns how many were
// folded into the registry.
func drainInto(ctx context.Context, sc *scanner.Scanner, reg *registry.Registry) (int, error) {
	processed := 0
	for _, event := range sc.Queue().Drain(0) {
		if _, err := reg.Process(ctx, event); err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

func formatAge(t time.Time) string {
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd", int(age.Hours()/24))
	}
}

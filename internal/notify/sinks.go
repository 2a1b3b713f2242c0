package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/logbug/logbug/internal/types"
)

// Sink delivers one alert to one destination.
type Sink interface {
	// Name identifies the sink in logs and configuration
	Name() string
	// Send delivers the alert. Must respect ctx cancellation.
	Send(ctx context.Context, alert *Alert) error
}

// WebhookSink POSTs alerts as JSON to an HTTP endpoint.
type WebhookSink struct {
	name   string
	url    string
	client *http.Client
}

// NewWebhookSink creates a webhook sink. A nil client gets a default
// with a 10s timeout.
func NewWebhookSink(name, url string, client *http.Client) (*WebhookSink, error) {
	if name == "" {
		return nil, fmt.Errorf("webhook sink requires a name")
	}
	if url == "" {
		return nil, fmt.Errorf("webhook sink %s requires a url", name)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookSink{name: name, url: url, client: client}, nil
}

// Name returns the configured sink name.
func (w *WebhookSink) Name() string { return w.name }

// Send POSTs the alert. Any non-2xx status is an error.
func (w *WebhookSink) Send(ctx context.Context, alert *Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", w.name, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned status %d", w.name, resp.StatusCode)
	}
	return nil
}

// ConsoleSink writes colorized alerts to a writer, normally stdout.
type ConsoleSink struct {
	name string
	out  io.Writer
}

// NewConsoleSink creates a console sink. A nil writer defaults to stdout.
func NewConsoleSink(name string, out io.Writer) *ConsoleSink {
	if name == "" {
		name = "console"
	}
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleSink{name: name, out: out}
}

// Name returns the configured sink name.
func (c *ConsoleSink) Name() string { return c.name }

// Send prints the alert with severity-coded coloring.
func (c *ConsoleSink) Send(_ context.Context, alert *Alert) error {
	paint := severityColor(alert.Urgency)

	fmt.Fprintf(c.out, "%s %s\n", paint.Sprintf("[%s]", alert.Urgency), color.New(color.Bold).Sprint(alert.Title))
	if alert.Body != "" {
		fmt.Fprintf(c.out, "%s\n", alert.Body)
	}
	for _, f := range alert.Fields {
		fmt.Fprintf(c.out, "  %s: %s\n", color.New(color.Faint).Sprint(f.Name), f.Value)
	}
	fmt.Fprintln(c.out)
	return nil
}

func severityColor(sev types.Severity) *color.Color {
	switch sev {
	case types.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case types.SeverityHigh:
		return color.New(color.FgRed)
	case types.SeverityMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

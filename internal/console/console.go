// Package console is the interactive management shell. It drives the
// registry through the same operations the CLI exposes, with an
// optional scanner hooked in for on-demand scan passes.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/logbug/logbug/internal/notify"
	"github.com/logbug/logbug/internal/registry"
	"github.com/logbug/logbug/internal/scanner"
	"github.com/logbug/logbug/internal/types"
)

// Config holds console configuration
type Config struct {
	// Registry is the bug registry to manage. Required.
	Registry *registry.Registry
	// Scanner enables the "scan" command when set
	Scanner *scanner.Scanner
	// Dispatcher enables the "notify" test command when set
	Dispatcher *notify.Dispatcher
	// Out receives command output
	// Default: stdout
	Out io.Writer
}

// Console is the interactive shell.
type Console struct {
	registry   *registry.Registry
	scanner    *scanner.Scanner
	dispatcher *notify.Dispatcher
	out        io.Writer
}

// New creates a console.
func New(cfg *Config) (*Console, error) {
	if cfg == nil || cfg.Registry == nil {
		return nil, fmt.Errorf("console requires a registry")
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	return &Console{
		registry:   cfg.Registry,
		scanner:    cfg.Scanner,
		dispatcher: cfg.Dispatcher,
		out:        out,
	}, nil
}

// Run reads commands until exit or EOF.
func (c *Console) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            color.New(color.FgCyan).Sprint("logbug> "),
		HistoryFile:       "",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	c.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(c.out, "bye")
				return nil
			}
			return err
		}

		quit, err := c.execute(ctx, line)
		if err != nil {
			color.New(color.FgRed).Fprintf(c.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (c *Console) printWelcome() {
	fmt.Fprintln(c.out, "logbug console. Type 'help' for commands.")
}

// execute runs one command line. The bool reports whether the loop
// should exit.
func (c *Console) execute(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch cmd, args := fields[0], fields[1:]; cmd {
	case "help":
		c.printHelp()
	case "list":
		return false, c.list(args)
	case "show":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: show <bug-id>")
		}
		return false, c.show(args[0])
	case "resolve":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: resolve <bug-id>")
		}
		resolved := types.StatusResolved
		return false, c.update(ctx, args[0], registry.UpdateRequest{Status: &resolved})
	case "assign":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: assign <bug-id> <owner>")
		}
		return false, c.update(ctx, args[0], registry.UpdateRequest{AssignedTo: &args[1]})
	case "severity":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: severity <bug-id> <low|medium|high|critical>")
		}
		severity := types.Severity(args[1])
		return false, c.update(ctx, args[0], registry.UpdateRequest{Severity: &severity})
	case "stats":
		c.stats()
	case "scan":
		return false, c.scan(ctx)
	case "notify":
		return false, c.notifyTest(ctx)
	case "exit", "quit":
		fmt.Fprintln(c.out, "bye")
		return true, nil
	default:
		return false, fmt.Errorf("unknown command: %s (try 'help')", cmd)
	}
	return false, nil
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `commands:
  list [status]            list bugs, optionally filtered by status
  show <bug-id>            show one bug in full
  resolve <bug-id>         mark a bug resolved
  assign <bug-id> <owner>  assign a bug to an owner
  severity <bug-id> <lvl>  set severity (low, medium, high, critical)
  stats                    aggregate statistics
  scan                     run one scan pass now
  notify                   send a test alert through the channels
  exit                     leave the console
`)
}

func (c *Console) list(args []string) error {
	filter := &types.BugFilter{}
	if len(args) > 0 {
		status := types.Status(args[0])
		if !status.IsValid() {
			return fmt.Errorf("invalid status: %s", args[0])
		}
		filter.Status = &status
	}

	bugs := c.registry.List(filter)
	if len(bugs) == 0 {
		fmt.Fprintln(c.out, "no bugs")
		return nil
	}
	for _, bug := range bugs {
		fmt.Fprintf(c.out, "%-16s [%-8s] %-11s x%-4d %s\n",
			bug.ID, bug.Severity, bug.Status, bug.Frequency, bug.Title)
	}
	return nil
}

func (c *Console) show(id string) error {
	bug, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("bug not found: %s", id)
	}

	fmt.Fprintf(c.out, "%s [%s] %s\n", bug.ID, bug.Severity, bug.Title)
	fmt.Fprintf(c.out, "  status: %s, assigned to %s\n", bug.Status, bug.AssignedTo)
	fmt.Fprintf(c.out, "  category/component: %s/%s\n", bug.Category, bug.Component)
	fmt.Fprintf(c.out, "  occurrences: %d (first %s, last %s)\n",
		bug.Frequency, bug.FirstSeen.Format(time.RFC3339), bug.LastSeen.Format(time.RFC3339))
	if bug.ExternalIssueID != "" {
		fmt.Fprintf(c.out, "  issue: %s\n", bug.ExternalIssueID)
	}
	if len(bug.Metadata) > 0 {
		keys := make([]string, 0, len(bug.Metadata))
		for k := range bug.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(c.out, "  %s: %s\n", k, bug.Metadata[k])
		}
	}
	if bug.StackTrace != "" {
		fmt.Fprintf(c.out, "stack trace:\n%s\n", bug.StackTrace)
	}
	return nil
}

func (c *Console) update(ctx context.Context, id string, req registry.UpdateRequest) error {
	bug, err := c.registry.Update(ctx, id, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "updated %s: status=%s severity=%s assigned=%s\n",
		bug.ID, bug.Status, bug.Severity, bug.AssignedTo)
	return nil
}

func (c *Console) stats() {
	stats := c.registry.Statistics()
	fmt.Fprintf(c.out, "total: %d  open: %d  resolved: %d  occurrences: %d\n",
		stats.TotalBugs, stats.OpenBugs, stats.ResolvedBugs, stats.TotalFrequency)

	for _, sev := range []types.Severity{types.SeverityCritical, types.SeverityHigh, types.SeverityMedium, types.SeverityLow} {
		if n := stats.BySeverity[string(sev)]; n > 0 {
			fmt.Fprintf(c.out, "  %-8s %d\n", sev, n)
		}
	}
}

func (c *Console) scan(ctx context.Context) error {
	if c.scanner == nil {
		return fmt.Errorf("no scanner configured; start the console with watch directories set")
	}

	matched, err := c.scanner.Poll(ctx)
	if err != nil {
		return err
	}
	processed := 0
	for _, event := range c.scanner.Queue().Drain(0) {
		if _, err := c.registry.Process(ctx, event); err != nil {
			return err
		}
		processed++
	}
	fmt.Fprintf(c.out, "scan: %d matched, %d processed\n", matched, processed)
	return nil
}

func (c *Console) notifyTest(ctx context.Context) error {
	if c.dispatcher == nil {
		return fmt.Errorf("no notification channels configured")
	}

	now := time.Now().UTC()
	bug := &types.Bug{
		ID:          fmt.Sprintf("bug-test-%d", now.Unix()),
		Title:       "Test alert from logbug console",
		Description: "Synthetic alert to verify channel delivery.",
		Severity:    types.SeverityLow,
		Category:    "test",
		Component:   "notify",
		CreatedAt:   now,
		FirstSeen:   now,
		LastSeen:    now,
		Frequency:   1,
		Status:      types.StatusNew,
	}
	if err := c.dispatcher.Notify(ctx, notify.KindNew, bug); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "test alert sent")
	return nil
}

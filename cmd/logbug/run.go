package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/logbug/logbug/internal/daemon"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the monitoring daemon",
	Long: `Start the monitoring daemon: poll the watched log directories,
fold matched errors into the bug registry, escalate recurring bugs,
sweep retention, and send the periodic summary. Runs until interrupted.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		d, err := daemon.New(&daemon.Config{
			PollInterval:    a.cfg.Watch.PollInterval.Std(),
			ProcessInterval: a.cfg.Process.Interval.Std(),
			BatchSize:       a.cfg.Process.BatchSize,
			SweepInterval:   a.cfg.Retention.SweepInterval.Std(),
			SummaryInterval: a.cfg.Notifications.SummaryInterval.Std(),
		}, a.scanner, a.registry, a.dispatcher)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s watching %d directories (poll every %s)\n",
			green("logbug running:"), len(a.cfg.Watch.Dirs), a.cfg.Watch.PollInterval.Std())

		<-ctx.Done()
		fmt.Println("\nshutting down...")
		d.Stop()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

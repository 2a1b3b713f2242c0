package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/logbug/logbug/internal/console"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the interactive management console",
	Long: `Start an interactive shell for inspecting and managing tracked bugs:
listing, resolving, assigning, adjusting severity, and running scan
passes on demand. Type 'help' inside the console for commands.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		a, err := buildApp(ctx, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		// Scan support is best effort: without valid watch settings the
		// console still works for management.
		if len(a.cfg.Watch.Dirs) > 0 {
			if sc, err := buildScanner(a.cfg); err == nil {
				a.scanner = sc
			}
		}

		c, err := console.New(&console.Config{
			Registry:   a.registry,
			Scanner:    a.scanner,
			Dispatcher: a.dispatcher,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := c.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/logbug/logbug/internal/types"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate bug statistics",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := buildApp(ctx, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		printStats(a.registry.Statistics())
	},
}

func printStats(stats *types.Statistics) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("%s\n", cyan("=== Bug Registry ==="))
	fmt.Printf("total: %d  open: %d  resolved: %d  occurrences: %d\n",
		stats.TotalBugs, stats.OpenBugs, stats.ResolvedBugs, stats.TotalFrequency)

	if len(stats.BySeverity) > 0 {
		fmt.Println("\nby severity:")
		for _, sev := range []types.Severity{types.SeverityCritical, types.SeverityHigh, types.SeverityMedium, types.SeverityLow} {
			if n := stats.BySeverity[string(sev)]; n > 0 {
				fmt.Printf("  %s %d\n", severityBadge(sev), n)
			}
		}
	}
	if len(stats.ByCategory) > 0 {
		fmt.Println("\nby category:")
		for category, n := range stats.ByCategory {
			fmt.Printf("  %-12s %d\n", category, n)
		}
	}
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

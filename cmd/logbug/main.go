// logbug is a log-monitoring bug tracker: it scans log directories for
// error signatures, deduplicates them into bug records with escalation
// and retention, and pushes alerts to configured channels.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "logbug",
	Short: "Log-monitoring bug tracker",
	Long: `logbug watches log directories for error signatures and turns them
into deduplicated bug records with owners, severity escalation, and
retention. Alerts go out through configured notification channels and
severe bugs are filed with the issue tracker.

Run 'logbug run' to start the monitoring daemon, or 'logbug scan' for a
one-shot pass over the watched directories.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the logbug version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("logbug %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

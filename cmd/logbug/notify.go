package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/logbug/logbug/internal/notify"
	"github.com/logbug/logbug/internal/types"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send a test alert through the configured channels",
	Long: `Send a synthetic new-bug alert through every enabled notification
channel to verify webhook URLs and channel routing.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := buildApp(ctx, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		if a.dispatcher.ChannelCount() == 0 {
			fmt.Fprintln(os.Stderr, "Error: no enabled notification channels")
			os.Exit(1)
		}

		now := time.Now().UTC()
		bug := &types.Bug{
			ID:          fmt.Sprintf("bug-test-%d", now.Unix()),
			Title:       "Test alert from logbug",
			Description: "This is a synthetic alert sent by 'logbug notify' to verify channel delivery.",
			Severity:    types.SeverityLow,
			Category:    "test",
			Component:   "notify",
			CreatedAt:   now,
			FirstSeen:   now,
			LastSeen:    now,
			Frequency:   1,
			Status:      types.StatusNew,
		}

		if err := a.dispatcher.Notify(ctx, notify.KindNew, bug); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("test alert sent to %d channels\n", a.dispatcher.ChannelCount())
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}

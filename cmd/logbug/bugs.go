package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/logbug/logbug/internal/registry"
	"github.com/logbug/logbug/internal/types"
)

var (
	listStatus   string
	listSeverity string
	listLimit    int
)

var bugsCmd = &cobra.Command{
	Use:   "bugs",
	Short: "Inspect and manage tracked bugs",
}

var bugsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked bugs",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := buildApp(ctx, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		filter := &types.BugFilter{Limit: listLimit}
		if listStatus != "" {
			status := types.Status(listStatus)
			if !status.IsValid() {
				fmt.Fprintf(os.Stderr, "Error: invalid status: %s\n", listStatus)
				os.Exit(1)
			}
			filter.Status = &status
		}
		if listSeverity != "" {
			severity := types.Severity(listSeverity)
			if !severity.IsValid() {
				fmt.Fprintf(os.Stderr, "Error: invalid severity: %s\n", listSeverity)
				os.Exit(1)
			}
			filter.Severity = &severity
		}

		bugs := a.registry.List(filter)
		if len(bugs) == 0 {
			color.New(color.FgHiBlack).Println("no bugs")
			return
		}
		for _, bug := range bugs {
			printBugLine(bug)
		}
	},
}

var bugsShowCmd = &cobra.Command{
	Use:   "show <bug-id>",
	Short: "Show one bug in full",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := buildApp(ctx, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		bug, ok := a.registry.Get(args[0])
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: bug not found: %s\n", args[0])
			os.Exit(1)
		}
		printBugDetail(bug)
	},
}

var bugsResolveCmd = &cobra.Command{
	Use:   "resolve <bug-id>",
	Short: "Mark a bug resolved",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := buildApp(ctx, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		resolved := types.StatusResolved
		bug, err := a.registry.Update(ctx, args[0], registry.UpdateRequest{Status: &resolved})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		color.Green("resolved %s: %s", bug.ID, bug.Title)
	},
}

var bugsAssignCmd = &cobra.Command{
	Use:   "assign <bug-id> <owner>",
	Short: "Assign a bug to an owner",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := buildApp(ctx, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		bug, err := a.registry.Update(ctx, args[0], registry.UpdateRequest{AssignedTo: &args[1]})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		color.Green("assigned %s to %s", bug.ID, bug.AssignedTo)
	},
}

func printBugLine(bug *types.Bug) {
	fmt.Printf("%s %s %-11s x%-4d %s %s\n",
		severityBadge(bug.Severity),
		bug.ID,
		bug.Status,
		bug.Frequency,
		color.New(color.FgHiBlack).Sprintf("%-4s", formatAge(bug.LastSeen)),
		bug.Title)
}

func printBugDetail(bug *types.Bug) {
	bold := color.New(color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("%s %s\n", severityBadge(bug.Severity), bold(bug.Title))
	fmt.Printf("  %s %s\n", gray("id:"), bug.ID)
	fmt.Printf("  %s %s / %s\n", gray("category/component:"), bug.Category, bug.Component)
	fmt.Printf("  %s %s, assigned to %s\n", gray("status:"), bug.Status, bug.AssignedTo)
	fmt.Printf("  %s %d (first seen %s ago, last %s ago)\n",
		gray("occurrences:"), bug.Frequency, formatAge(bug.FirstSeen), formatAge(bug.LastSeen))
	if bug.ExternalIssueID != "" {
		fmt.Printf("  %s %s\n", gray("issue:"), bug.ExternalIssueID)
	}
	for k, v := range bug.Metadata {
		fmt.Printf("  %s %s=%s\n", gray("meta:"), k, v)
	}
	if bug.Description != "" {
		fmt.Printf("\n%s\n", bug.Description)
	}
	if bug.StackTrace != "" {
		fmt.Printf("\n%s\n%s\n", gray("stack trace:"), bug.StackTrace)
	}
}

func severityBadge(sev types.Severity) string {
	switch sev {
	case types.SeverityCritical:
		return color.New(color.FgRed, color.Bold).Sprintf("[%-8s]", sev)
	case types.SeverityHigh:
		return color.New(color.FgRed).Sprintf("[%-8s]", sev)
	case types.SeverityMedium:
		return color.New(color.FgYellow).Sprintf("[%-8s]", sev)
	default:
		return color.New(color.FgCyan).Sprintf("[%-8s]", sev)
	}
}

func init() {
	bugsListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (new, assigned, in_progress, resolved)")
	bugsListCmd.Flags().StringVar(&listSeverity, "severity", "", "filter by severity (low, medium, high, critical)")
	bugsListCmd.Flags().IntVar(&listLimit, "limit", 0, "limit the number of bugs listed")

	bugsCmd.AddCommand(bugsListCmd)
	bugsCmd.AddCommand(bugsShowCmd)
	bugsCmd.AddCommand(bugsResolveCmd)
	bugsCmd.AddCommand(bugsAssignCmd)
	rootCmd.AddCommand(bugsCmd)
}

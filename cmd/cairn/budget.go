package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/budget"
	"github.com/cairnhq/cairn/internal/state"
	"github.com/cairnhq/cairn/internal/store"
)

var budgetEvents bool

var budgetCmd = &cobra.Command{
	Use:   "budget <vision-slug>",
	Short: "Show a vision's token budget allocations",
	Long: `Display the vision's budget pool and every epic allocation.

With --events, also shows the budget mutations recorded during the
vision's most recent run.`,
	Args: cobra.ExactArgs(1),
	RunE: runBudget,
}

func init() {
	budgetCmd.Flags().BoolVar(&budgetEvents, "events", false, "Show budget events from the latest run")
}

func runBudget(cmd *cobra.Command, args []string) error {
	slug := args[0]
	dir, err := stateDir()
	if err != nil {
		return err
	}
	s := store.New(dir)

	v, err := s.LoadVision(slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("vision %q not found", slug)
		}
		return fmt.Errorf("load vision: %w", err)
	}

	if v.Budget == nil || v.Budget.Total == 0 {
		fmt.Printf("Vision %q carries no token budget.\n", v.Slug)
		return nil
	}

	report := budget.Wrap(v.Budget).Report()
	fmt.Printf("Budget for %s\n", v.Slug)
	fmt.Printf("  Total: %s  Unallocated: %s\n\n", formatNumber(report.Total), formatNumber(report.Available))

	if len(report.Children) == 0 {
		fmt.Println("No allocations yet; they are created during the planning stage.")
	} else {
		fmt.Printf("%-24s %12s %12s %12s  %s\n", "EPIC", "ALLOCATED", "USED", "AVAILABLE", "STATUS")
		for _, child := range report.Children {
			fmt.Printf("%-24s %12s %12s %12s  %s\n",
				clip(child.ChildID, 24),
				formatNumber(child.Allocated), formatNumber(child.Used), formatNumber(child.Available),
				child.Status)
		}
	}

	if budgetEvents {
		return displayBudgetEvents(dir, slug)
	}
	return nil
}

func displayBudgetEvents(dir, slug string) error {
	if _, err := os.Stat(state.DBPath(dir)); err != nil {
		fmt.Println("\nNo audit database; no budget events recorded yet.")
		return nil
	}
	db, err := state.OpenProject(dir)
	if err != nil {
		return fmt.Errorf("open audit database: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(slug, 1)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("\nNo runs recorded for this vision yet.")
		return nil
	}

	events, err := db.ListBudgetEvents(runs[0].ID)
	if err != nil {
		return fmt.Errorf("list budget events: %w", err)
	}
	if len(events) == 0 {
		fmt.Printf("\nNo budget events in run %s.\n", runs[0].ID)
		return nil
	}

	fmt.Printf("\nBudget events in run %s:\n", runs[0].ID)
	for _, ev := range events {
		delta := formatNumber(ev.Delta)
		if ev.Delta > 0 {
			delta = "+" + delta
		}
		fmt.Printf("  %s  %-10s %-24s %12s  (total %s)\n",
			ev.At.Format("15:04:05"), ev.Kind, clip(ev.ChildID, 24),
			delta, formatNumber(ev.Total))
	}
	return nil
}

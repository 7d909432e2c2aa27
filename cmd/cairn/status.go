package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/budget"
	"github.com/cairnhq/cairn/internal/registry"
	"github.com/cairnhq/cairn/internal/state"
	"github.com/cairnhq/cairn/internal/store"
	"github.com/cairnhq/cairn/internal/tui"
	"github.com/cairnhq/cairn/pkg/models"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status [vision-slug]",
	Short: "Show vision progress and recent runs",
	Long: `Display registered visions and their progress.

With no argument, lists every vision in the registry. With a slug,
shows that vision's tree, budget, and recent runs from the audit log.

--watch opens a live view that refreshes as runs progress.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "Open the live status view")
}

func runStatus(cmd *cobra.Command, args []string) error {
	dir, err := stateDir()
	if err != nil {
		return err
	}
	s := store.New(dir)
	reg := registry.New(s)

	// The audit database is optional for status; without it there is
	// simply no run history to show.
	var db *state.DB
	if _, statErr := os.Stat(state.DBPath(dir)); statErr == nil {
		db, err = state.OpenProject(dir)
		if err != nil {
			fmt.Printf("Warning: could not open audit database: %v\n", err)
			db = nil
		} else {
			defer db.Close()
		}
	}

	if statusWatch {
		cfg := loadConfig()
		var runs state.RunStore
		if db != nil {
			runs = db
		}
		watch := tui.NewWatch(reg, runs).WithRefresh(cfg.TUI.RefreshRate)
		p := tea.NewProgram(watch, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("status watch: %w", err)
		}
		return nil
	}

	if len(args) == 1 {
		return displayVision(s, db, args[0])
	}
	return displayOverview(reg, db)
}

func displayOverview(reg *registry.Registry, db *state.DB) error {
	entries, err := reg.List()
	if err != nil {
		return fmt.Errorf("list registry: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No visions registered. Run 'cairn plan \"<request>\"' to create one.")
		return nil
	}

	fmt.Printf("%-24s %-15s %-12s %9s  %s\n", "VISION", "TIER", "STATUS", "PROGRESS", "UPDATED")
	for _, e := range entries {
		fmt.Printf("%-24s %-15s %-12s %8.0f%%  %s ago\n",
			clip(e.Slug, 24), e.PlanType, e.Status, e.CompletionPercentage,
			formatDuration(time.Since(e.Updated)))
	}

	if db != nil {
		active := 0
		for _, e := range entries {
			if run, err := db.ActiveRun(e.Slug); err == nil && run != nil {
				active++
			}
		}
		if active > 0 {
			fmt.Printf("\n%d active run(s). Watch with 'cairn status --watch'.\n", active)
		}
	}
	return nil
}

func displayVision(s *store.Store, db *state.DB, slug string) error {
	batch, err := s.LoadTree(slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("vision %q not found", slug)
		}
		return fmt.Errorf("load vision tree: %w", err)
	}
	v := batch.Vision

	fmt.Printf("Vision: %s (%s)\n", v.Title, v.Slug)
	fmt.Printf("  Tier: %s\n", v.PlanType)
	fmt.Printf("  Status: %s\n", v.Status)
	fmt.Printf("  Progress: %.0f%%\n", v.CompletionPercentage)
	fmt.Printf("  Updated: %s ago\n", formatDuration(time.Since(v.Updated)))
	if v.Issue != nil {
		fmt.Printf("  Issue: #%d %s\n", v.Issue.IssueNumber, v.Issue.IssueURL)
	}

	if v.Budget != nil && v.Budget.Total > 0 {
		report := budget.Wrap(v.Budget).Report()
		var used int64
		for _, child := range report.Children {
			used += child.Used
		}
		fmt.Printf("  Tokens: %s used of %s\n", formatNumber(used), formatNumber(report.Total))
	}

	if len(batch.Epics) > 0 {
		fmt.Println("\nEpics:")
		for _, e := range batch.Epics {
			fmt.Printf("  %-24s %-12s %3.0f%%\n", clip(e.Slug, 24), e.Status, e.CompletionPercentage)
		}
	}

	taskTotal, taskDone := 0, 0
	for _, p := range batch.Plans {
		for _, t := range p.Tasks {
			taskTotal++
			if t.Status == models.NodeStatusCompleted {
				taskDone++
			}
		}
	}
	fmt.Printf("\nPlans: %d  Tasks: %d/%d completed\n", len(batch.Plans), taskDone, taskTotal)

	if db != nil {
		runs, err := db.ListRuns(slug, 5)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		if len(runs) > 0 {
			fmt.Println("\nRecent runs:")
			for _, r := range runs {
				line := fmt.Sprintf("  %s  %-12s %-10s started %s ago",
					r.ID, r.Stage, r.Status, formatDuration(time.Since(r.StartedAt)))
				if r.FinishedAt != nil {
					line += fmt.Sprintf(" (took %s)", formatDuration(r.FinishedAt.Sub(r.StartedAt)))
				}
				if r.Error != "" {
					line += " - " + r.Error
				}
				fmt.Println(line)
			}
		}
	}
	return nil
}

// clip shortens a cell value to fit its column.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}

// formatNumber formats a token count with comma grouping.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

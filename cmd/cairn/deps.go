package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/hierarchy"
	"github.com/cairnhq/cairn/internal/resolve"
	"github.com/cairnhq/cairn/internal/store"
	"github.com/cairnhq/cairn/pkg/models"
)

var depsCmd = &cobra.Command{
	Use:   "deps <vision-slug> [plan-slug]",
	Short: "Check dependency satisfaction across a vision's plans",
	Long: `Check the dependency edges of a vision's roadmaps.

For each phase plan the check reports whether every dependency is
completed and lists the ones still missing. Cycles in an edge set are
reported but never repaired.

With a plan slug, only that plan is checked.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDeps,
}

func runDeps(cmd *cobra.Command, args []string) error {
	slug := args[0]
	only := ""
	if len(args) == 2 {
		only = args[1]
	}

	dir, err := stateDir()
	if err != nil {
		return err
	}
	batch, err := store.New(dir).LoadTree(slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("vision %q not found", slug)
		}
		return fmt.Errorf("load vision tree: %w", err)
	}

	lookup := statusLookupFor(batch)
	found := false

	for _, rm := range batch.Roadmaps {
		plans := plansOf(batch, rm.Slug)
		if len(plans) == 0 {
			continue
		}
		if only != "" && !containsPlan(plans, only) {
			continue
		}

		fmt.Printf("Roadmap %s:\n", rm.Slug)
		for _, p := range plans {
			if only != "" && p.Slug != only {
				continue
			}
			found = true
			check := resolve.CheckPlanDependencies(p.Slug, rm.Dependencies, lookup)
			if check.Satisfied {
				fmt.Printf("  %s %-24s ready\n", color.GreenString("✓"), clip(p.Slug, 24))
			} else {
				fmt.Printf("  %s %-24s waiting on: %s\n", color.RedString("✗"), clip(p.Slug, 24),
					strings.Join(check.Missing, ", "))
			}
		}

		if only == "" {
			displayOrder(rm, plans)
		}
		fmt.Println()
	}

	if only != "" && !found {
		return fmt.Errorf("plan %q not found under vision %q", only, slug)
	}
	if len(batch.Roadmaps) == 0 {
		fmt.Println("Vision has no roadmaps.")
	}
	return nil
}

// displayOrder prints the roadmap's execution order, or its cycle when
// the edge set has one.
func displayOrder(rm *models.Roadmap, plans []*models.PhasePlan) {
	graph := resolve.NewGraph()
	for _, p := range plans {
		graph.AddNode(p.Slug)
	}
	for _, edge := range rm.Dependencies {
		if err := graph.AddEdge(edge); err != nil {
			fmt.Printf("  %s bad edge: %v\n", color.RedString("✗"), err)
			return
		}
	}

	order, err := graph.TopologicalOrder()
	if err != nil {
		if cycle := graph.Cycle(); cycle != nil {
			fmt.Printf("  %s cycle: %s\n", color.RedString("✗"), strings.Join(cycle, " -> "))
		} else {
			fmt.Printf("  %s %v\n", color.RedString("✗"), err)
		}
		return
	}
	fmt.Printf("  Execution order: %s\n", strings.Join(order, ", "))
}

// statusLookupFor resolves any slug in the batch to its node status.
func statusLookupFor(batch *hierarchy.Batch) resolve.StatusLookup {
	return func(slug string) (models.NodeStatus, bool) {
		for _, p := range batch.Plans {
			if p.Slug == slug {
				return p.Status, true
			}
		}
		for _, rm := range batch.Roadmaps {
			if rm.Slug == slug {
				return rm.Status, true
			}
		}
		for _, e := range batch.Epics {
			if e.Slug == slug {
				return e.Status, true
			}
		}
		return "", false
	}
}

func plansOf(batch *hierarchy.Batch, roadmapSlug string) []*models.PhasePlan {
	var out []*models.PhasePlan
	for _, p := range batch.Plans {
		if p.RoadmapSlug == roadmapSlug {
			out = append(out, p)
		}
	}
	return out
}

func containsPlan(plans []*models.PhasePlan, slug string) bool {
	for _, p := range plans {
		if p.Slug == slug {
			return true
		}
	}
	return false
}

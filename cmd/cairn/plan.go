package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/budget"
	"github.com/cairnhq/cairn/internal/classify"
	"github.com/cairnhq/cairn/internal/decision"
	"github.com/cairnhq/cairn/internal/hierarchy"
	"github.com/cairnhq/cairn/internal/registry"
	"github.com/cairnhq/cairn/internal/store"
	"github.com/cairnhq/cairn/pkg/models"
)

var (
	planScale    string
	planOverride string
	planBudget   int64
	planIssues   int
	planFiles    []string
	planDryRun   bool
)

var planCmd = &cobra.Command{
	Use:   "plan <request>",
	Short: "Plan a development request into an execution hierarchy",
	Long: `Plan a natural-language request.

The request is classified by domain and intent, scored for complexity,
and a plan tier is decided: task_list, phase_dev_plan, roadmap, epic,
or vision_full. The chosen tier controls how much hierarchy is
materialized under the new vision.

The complexity estimate can be steered with --issues and --files when
the request stands in for a known batch of work items. --scale caps the
tier (S at phase_dev_plan, M at epic, L uncapped) and --override forces
a tier outright.

Examples:
  cairn plan "add rate limiting to the API gateway"
  cairn plan "build a checkout flow" --scale M --budget 500000
  cairn plan "migrate billing to the new schema" --override roadmap
  cairn plan "rework search" --dry-run    # decision only, nothing written`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planScale, "scale", "", "Scale hint: S, M, or L (default: estimated from the request)")
	planCmd.Flags().StringVar(&planOverride, "override", "", "Force a plan tier: task_list, phase_dev_plan, roadmap, epic, or vision_full")
	planCmd.Flags().Int64Var(&planBudget, "budget", 0, "Token budget for the vision (default from config)")
	planCmd.Flags().IntVar(&planIssues, "issues", 0, "Number of work items the request covers")
	planCmd.Flags().StringSliceVar(&planFiles, "files", nil, "Files the request touches, as a complexity signal")
	planCmd.Flags().BoolVar(&planDryRun, "dry-run", false, "Print the decision without materializing the hierarchy")
}

func runPlan(cmd *cobra.Command, args []string) error {
	request := strings.Join(args, " ")
	cfg := loadConfig()

	classifier := newClassifier()
	classification := classifier.Classify(request)
	prompt := classifier.ParsePrompt(request)

	scale := models.Scale(planScale)
	if planScale != "" && !scale.Valid() {
		return fmt.Errorf("invalid scale %q: must be S, M, or L", planScale)
	}
	if planScale == "" {
		signals := classify.SignalsFrom(workItems(request, planIssues, planFiles), classification)
		scale = classify.EstimateComplexity(signals)
	}

	override := planOverride
	if override == "" {
		override = cfg.Defaults.PlanType
	}

	dec, err := decision.Decide(prompt, scale, override)
	if err != nil {
		return fmt.Errorf("decide plan tier: %w", err)
	}

	displayDecision(classification, scale, dec)

	if planDryRun {
		fmt.Println("\nDry run mode - nothing was written.")
		return nil
	}

	dir, err := stateDir()
	if err != nil {
		return err
	}
	s := store.New(dir)
	reg := registry.New(s)

	taken, err := reg.Slugs()
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}

	builder := hierarchy.NewBuilder(func(text string) string {
		return classifier.Classify(text).PrimaryDomain
	})
	batch, err := builder.Build(request, prompt, dec, taken, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("build hierarchy: %w", err)
	}

	total := planBudget
	if total <= 0 {
		total = cfg.Defaults.TokenBudget
	}
	if total > 0 {
		mgr := budget.NewManager(total)
		epicIDs := make([]string, 0, len(batch.Epics))
		for _, e := range batch.Epics {
			epicIDs = append(epicIDs, e.Slug)
		}
		if err := mgr.SplitEvenly(epicIDs); err != nil {
			return fmt.Errorf("allocate budget across %d epic(s): %w", len(epicIDs), err)
		}
		batch.Vision.Budget = mgr.State()
	}

	if err := s.SaveBatch(batch); err != nil {
		return fmt.Errorf("save hierarchy: %w", err)
	}
	if err := reg.Register(batch.Vision); err != nil {
		return fmt.Errorf("register vision: %w", err)
	}

	taskCount := 0
	for _, p := range batch.Plans {
		taskCount += len(p.Tasks)
	}
	fmt.Printf("\n%s Created vision %q\n", color.GreenString("✓"), batch.Vision.Slug)
	fmt.Printf("  %d epic(s), %d roadmap(s), %d plan(s), %d task(s)\n",
		len(batch.Epics), len(batch.Roadmaps), len(batch.Plans), taskCount)
	if total > 0 {
		fmt.Printf("  Token budget: %s split across %d epic(s)\n", formatNumber(total), len(batch.Epics))
	}
	fmt.Println("\nNext steps:")
	fmt.Printf("  cairn run %s\n", batch.Vision.Slug)
	fmt.Printf("  cairn status %s\n", batch.Vision.Slug)
	return nil
}

// workItems builds the item batch fed to the complexity estimate. The
// request itself is the first item; --issues pads the count when the
// request stands in for a larger batch.
func workItems(request string, issues int, files []string) []models.WorkItem {
	if issues < 1 {
		issues = 1
	}
	items := make([]models.WorkItem, issues)
	for i := range items {
		items[i] = models.WorkItem{ID: fmt.Sprintf("item-%d", i+1)}
	}
	items[0].Title = hierarchy.DeriveTitle(request)
	items[0].Body = request
	items[0].Files = files
	return items
}

func displayDecision(c classify.Classification, scale models.Scale, dec *models.PlanDecision) {
	fmt.Printf("Plan tier: %s\n", color.CyanString(string(dec.PlanType)))
	fmt.Printf("  Scale: %s\n", scale)
	if c.PrimaryDomain != "" {
		fmt.Printf("  Primary domain: %s\n", c.PrimaryDomain)
	}
	fmt.Printf("  Intent: %s\n", c.Intent)
	if !dec.Overridden {
		fmt.Printf("  Score: %.1f (confidence %.2f)\n", dec.Score, dec.Confidence)
	}
	fmt.Println("  Reasoning:")
	for _, line := range dec.Reasoning {
		fmt.Printf("    - %s\n", line)
	}
}

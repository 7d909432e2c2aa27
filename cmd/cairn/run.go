package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/checkpoint"
	"github.com/cairnhq/cairn/internal/orchestrator"
	"github.com/cairnhq/cairn/internal/registry"
	"github.com/cairnhq/cairn/internal/signal"
	"github.com/cairnhq/cairn/internal/state"
	"github.com/cairnhq/cairn/internal/store"
)

var (
	runResume    bool
	runWatch     bool
	runOverrides []string
)

var runCmd = &cobra.Command{
	Use:   "run <vision-slug>",
	Short: "Run the staged execution machine over a vision",
	Long: `Run a planned vision through the execution stages.

Stages run in order: initialization, analysis, architecture, planning,
security, execution, validation, completion. Stage boundaries are
guarded by gates; a failed non-overridable gate blocks the run.

Execution spawns one agent per task, charges token usage against the
epic's allocation, and rolls completion up the tree after every plan.

A run can be paused from another terminal with 'cairn pause <slug>';
it checkpoints at the next safe point and 'cairn run <slug> --resume'
re-enters the checkpointed stage.

Examples:
  cairn run checkout-flow
  cairn run checkout-flow --watch
  cairn run checkout-flow --resume
  cairn run checkout-flow --override tests_pass`,
	Args: cobra.ExactArgs(1),
	RunE: runVision,
}

func init() {
	runCmd.Flags().BoolVar(&runResume, "resume", false, "Resume from the latest checkpoint")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Stream every run event to the terminal")
	runCmd.Flags().StringSliceVar(&runOverrides, "override", nil, "Gate names to override for this run (overridable gates only)")
}

func runVision(cmd *cobra.Command, args []string) (retErr error) {
	// Recover from panics and report them
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in run: %v", r)
		}
	}()

	slug := args[0]
	verbose := os.Getenv("CAIRN_DEBUG") != ""
	cfg := loadConfig()

	dir, err := stateDir()
	if err != nil {
		return err
	}
	if verbose {
		fmt.Printf("[DEBUG] State dir: %s\n", dir)
		fmt.Printf("[DEBUG] Vision: %s\n", slug)
		fmt.Printf("[DEBUG] Resume: %v\n", runResume)
	}

	s := store.New(dir)
	if _, err := s.LoadVision(slug); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("vision %q not found; run `cairn plan` first", slug)
		}
		return fmt.Errorf("load vision: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, suspending run...")
		cancel()
	}()

	db, err := state.OpenProject(dir)
	if err != nil {
		return fmt.Errorf("open audit database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate audit database: %w", err)
	}
	if verbose {
		fmt.Println("[DEBUG] Audit database ready")
	}

	// Optional collaborators degrade with a warning instead of
	// blocking the run.
	checkpoints, err := checkpoint.NewStore(checkpoint.DBPath(dir))
	if err != nil {
		fmt.Printf("Warning: checkpoints unavailable: %v\n", err)
		checkpoints = nil
	} else {
		defer checkpoints.Close()
	}

	watcher, err := signal.NewWatcher(dir, slug)
	if err != nil {
		fmt.Printf("Warning: control signals unavailable: %v\n", err)
		watcher = nil
	} else {
		defer watcher.Close()
	}

	executor, err := newAgentExecutor(cfg)
	if err != nil {
		fmt.Printf("Warning: %v; the execution stage will be skipped\n", err)
		executor = nil
	}

	opts := []orchestrator.Option{
		orchestrator.WithRegistry(registry.New(s)),
		orchestrator.WithAudit(db),
		orchestrator.WithGates(newGateEngine(cfg)),
		orchestrator.WithTestRunner(newTestRunner(cfg)),
		orchestrator.WithTracker(newTracker(cfg)),
	}
	if checkpoints != nil {
		opts = append(opts, orchestrator.WithCheckpoints(checkpoints))
	}
	if watcher != nil {
		opts = append(opts, orchestrator.WithSignals(watcher))
	}
	if executor != nil {
		opts = append(opts, orchestrator.WithExecutor(executor))
	}
	if len(runOverrides) > 0 {
		opts = append(opts, orchestrator.WithOverrides(runOverrides...))
	}
	if runResume {
		opts = append(opts, orchestrator.WithResume())
	}
	if verbose {
		dbg := orchestrator.NewDebugLoggerForDir(dir)
		defer dbg.Close()
		opts = append(opts, orchestrator.WithDebugLog(dbg))
		fmt.Printf("[DEBUG] Trace log: %s\n", filepath.Join(dir, "debug.log"))
	}

	o := orchestrator.New(orchestrator.RequiredConfig{Store: s, VisionSlug: slug}, opts...)
	if verbose {
		fmt.Printf("[DEBUG] Run ID: %s\n", o.RunID())
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		consumeEvents(o.Events(), runWatch)
	}()

	runErr := o.Run(ctx)
	<-done

	switch {
	case runErr == nil:
		fmt.Printf("\n%s Run %s complete\n", color.GreenString("✓"), o.RunID())
		return nil
	case errors.Is(runErr, orchestrator.ErrRunPaused):
		fmt.Printf("\nRun paused at %s. Resume with:\n  cairn run %s --resume\n", o.Stage(), slug)
		return nil
	case errors.Is(runErr, orchestrator.ErrRunStopped):
		fmt.Printf("\n%s Run stopped at %s\n", color.RedString("✗"), o.Stage())
		return nil
	case errors.Is(runErr, orchestrator.ErrNoCheckpoint):
		return fmt.Errorf("no checkpoint for %q; run without --resume", slug)
	case errors.Is(runErr, context.Canceled):
		fmt.Printf("\nRun suspended. Resume with:\n  cairn run %s --resume\n", slug)
		return nil
	default:
		return runErr
	}
}

// consumeEvents renders the orchestrator event stream. Stage
// boundaries and failures always print; --watch adds per-plan and
// per-task detail.
func consumeEvents(events <-chan orchestrator.Event, watch bool) {
	for ev := range events {
		switch ev.Type {
		case orchestrator.EventRunStarted:
			fmt.Printf("%s %s\n", color.CyanString("▶"), ev.Message)
		case orchestrator.EventStageStarted:
			fmt.Printf("%s stage %s\n", color.CyanString("→"), ev.Stage)
		case orchestrator.EventStageCompleted:
			if ev.Err != nil {
				fmt.Printf("%s stage %s: %v\n", color.RedString("✗"), ev.Stage, ev.Err)
			} else if ev.Message != "" {
				fmt.Printf("%s stage %s: %s\n", color.GreenString("✓"), ev.Stage, ev.Message)
			} else {
				fmt.Printf("%s stage %s\n", color.GreenString("✓"), ev.Stage)
			}
		case orchestrator.EventGateBlocked:
			fmt.Printf("%s gate blocked: %s\n", color.RedString("✗"), ev.Message)
		case orchestrator.EventRunPaused:
			fmt.Println("Run pausing...")
		case orchestrator.EventRunCompleted:
			fmt.Printf("%s %s\n", color.GreenString("✓"), ev.Message)
		case orchestrator.EventRunFailed:
			fmt.Printf("%s run failed at %s: %s\n", color.RedString("✗"), ev.Stage, ev.Message)
		case orchestrator.EventPlanStarted:
			if watch {
				fmt.Printf("  plan %s started\n", ev.PlanSlug)
			}
		case orchestrator.EventPlanCompleted:
			if watch {
				fmt.Printf("  plan %s: %s\n", ev.PlanSlug, ev.Message)
			}
		case orchestrator.EventTaskStarted:
			if watch {
				fmt.Printf("    task %s started\n", ev.TaskSlug)
			}
		case orchestrator.EventTaskCompleted:
			if watch {
				fmt.Printf("    task %s done (agent %s, %s tokens)\n", ev.TaskSlug, ev.AgentID, formatNumber(ev.TokensUsed))
			}
		case orchestrator.EventTaskFailed:
			if watch {
				detail := ev.Message
				if detail == "" && ev.Err != nil {
					detail = ev.Err.Error()
				}
				fmt.Printf("    task %s failed: %s\n", ev.TaskSlug, detail)
			}
		}
	}
}

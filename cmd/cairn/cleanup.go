package main

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/signal"
	"github.com/cairnhq/cairn/internal/state"
	"github.com/cairnhq/cairn/internal/store"
)

var (
	cleanupForce   bool
	cleanupVerbose bool
	cleanupDryRun  bool
	cleanupRuns    bool
)

// runMaxAge is how old a finished run may grow before cleanup purges
// it from the audit log.
const runMaxAge = 30 * 24 * time.Hour

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clear stale locks, orphaned signals, and old run records",
	Long: `Clean up leftover state after crashed or interrupted runs.

This command:
  - Sweeps stale sidecar locks (dead owner or older than the stale
    threshold); locks with living owners are left alone
  - Clears every control signal file, so no stale pause or stop
    request ambushes the next run

With --runs:
  - Purges finished runs older than 30 days from the audit log,
    along with their transitions and budget events

Examples:
  cairn cleanup              # Interactive cleanup with confirmation
  cairn cleanup --force      # Skip confirmation prompt
  cairn cleanup --dry-run    # Show what would be removed
  cairn cleanup --runs       # Also purge old audit runs`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "Skip confirmation prompt")
	cleanupCmd.Flags().BoolVarP(&cleanupVerbose, "verbose", "v", false, "Show each path as it is removed")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be removed without removing")
	cleanupCmd.Flags().BoolVar(&cleanupRuns, "runs", false, "Purge finished runs older than 30 days")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	dir, err := stateDir()
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		fmt.Println("Nothing to clean; no .cairn directory found.")
		return nil
	}

	locks := findLockFiles(dir)
	signals := findSignalFiles(dir)

	if len(locks) == 0 && len(signals) == 0 && !cleanupRuns {
		fmt.Println("Nothing to clean.")
		return nil
	}

	if len(locks) > 0 {
		fmt.Printf("Found %d lock file(s); stale ones will be cleared:\n", len(locks))
		for _, path := range locks {
			fmt.Printf("  - %s\n", path)
		}
	}
	if len(signals) > 0 {
		fmt.Printf("Found %d signal file(s):\n", len(signals))
		for _, path := range signals {
			fmt.Printf("  - %s\n", path)
		}
	}
	if cleanupRuns {
		fmt.Printf("Finished runs older than %d days will be purged.\n", int(runMaxAge.Hours())/24)
	}
	fmt.Println()

	if cleanupDryRun {
		fmt.Println("Dry run mode - nothing was removed.")
		return nil
	}

	if !cleanupForce {
		fmt.Print("Proceed with cleanup? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read confirmation: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println("Cleanup cancelled.")
			return nil
		}
	}

	cleared, err := store.SweepStaleLocks(dir)
	if err != nil {
		return fmt.Errorf("sweep stale locks: %w", err)
	}
	if cleanupVerbose {
		for _, path := range cleared {
			fmt.Printf("Removed: %s\n", path)
		}
	}
	fmt.Printf("Cleared %d stale lock(s).\n", len(cleared))

	n, err := signal.ClearAll(dir)
	if err != nil {
		return fmt.Errorf("clear signals: %w", err)
	}
	fmt.Printf("Cleared %d signal file(s).\n", n)

	if cleanupRuns {
		if err := purgeOldRuns(dir); err != nil {
			return err
		}
	}
	return nil
}

func purgeOldRuns(dir string) error {
	if _, err := os.Stat(state.DBPath(dir)); os.IsNotExist(err) {
		fmt.Println("No audit database; no runs to purge.")
		return nil
	}
	db, err := state.OpenProject(dir)
	if err != nil {
		return fmt.Errorf("open audit database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate audit database: %w", err)
	}

	purged, err := db.PurgeOldRuns(runMaxAge)
	if err != nil {
		return fmt.Errorf("purge old runs: %w", err)
	}
	fmt.Printf("Purged %d old run(s).\n", purged)
	return nil
}

// findLockFiles lists every sidecar lock under the state dir, live or
// stale; the sweep itself decides which to clear.
func findLockFiles(dir string) []string {
	var locks []string
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(path, ".lock") {
			locks = append(locks, path)
		}
		return nil
	})
	return locks
}

func findSignalFiles(dir string) []string {
	entries, err := os.ReadDir(filepath.Join(dir, "signals"))
	if err != nil {
		return nil
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, filepath.Join(dir, "signals", entry.Name()))
		}
	}
	return files
}

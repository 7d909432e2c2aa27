package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/hierarchy"
	"github.com/cairnhq/cairn/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <vision-slug> [roadmap-slug]",
	Short: "Convert legacy roadmap phases into plan references",
	Long: `Migrate roadmaps from the legacy flat phases format.

Each legacy phase becomes a plan reference and each depends_on entry
becomes a dependency edge. Roadmaps already carrying plan references
are left untouched, so repeated migration is safe.

With only a vision slug, every roadmap under the vision is migrated.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	slug := args[0]
	only := ""
	if len(args) == 2 {
		only = args[1]
	}

	dir, err := stateDir()
	if err != nil {
		return err
	}
	s := store.New(dir)

	batch, err := s.LoadTree(slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("vision %q not found", slug)
		}
		return fmt.Errorf("load vision tree: %w", err)
	}

	now := time.Now().UTC()
	migrated := 0
	seen := false
	for _, rm := range batch.Roadmaps {
		if only != "" && rm.Slug != only {
			continue
		}
		seen = true
		changed, err := hierarchy.MigrateLegacyRoadmap(rm, now)
		if err != nil {
			return fmt.Errorf("migrate roadmap %s: %w", rm.Slug, err)
		}
		if !changed {
			continue
		}
		if err := s.SaveRoadmap(slug, rm); err != nil {
			return fmt.Errorf("save roadmap %s: %w", rm.Slug, err)
		}
		fmt.Printf("%s Migrated %s: %d plan(s), %d edge(s)\n",
			color.GreenString("✓"), rm.Slug, len(rm.Plans), len(rm.Dependencies))
		migrated++
	}

	if only != "" && !seen {
		return fmt.Errorf("roadmap %q not found under vision %q", only, slug)
	}
	if migrated == 0 {
		fmt.Println("Nothing to migrate; no roadmap carries legacy phases.")
		return nil
	}
	fmt.Printf("Migrated %d roadmap(s).\n", migrated)
	return nil
}

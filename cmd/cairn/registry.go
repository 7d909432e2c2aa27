package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/registry"
	"github.com/cairnhq/cairn/internal/store"
)

var registryPurge bool

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect and repair the vision registry",
	Long: `Manage the registry index of vision roots.

The registry is a derived index over the vision directories; 'rebuild'
rewrites it from what is actually on disk, so a corrupt or stale index
is never fatal.`,
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered visions",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := stateDir()
		if err != nil {
			return err
		}
		reg := registry.New(store.New(dir))
		entries, err := reg.List()
		if err != nil {
			return fmt.Errorf("list registry: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("Registry is empty.")
			return nil
		}
		fmt.Printf("%-24s %-15s %-12s %9s  %s\n", "SLUG", "TIER", "STATUS", "PROGRESS", "CREATED")
		for _, e := range entries {
			fmt.Printf("%-24s %-15s %-12s %8.0f%%  %s ago\n",
				clip(e.Slug, 24), e.PlanType, e.Status, e.CompletionPercentage,
				formatDuration(time.Since(e.Created)))
		}
		return nil
	},
}

var registryRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the registry from the vision files on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := stateDir()
		if err != nil {
			return err
		}
		reg := registry.New(store.New(dir))
		n, err := reg.Rebuild()
		if err != nil {
			return fmt.Errorf("rebuild registry: %w", err)
		}
		fmt.Printf("Rebuilt registry from disk: %d vision(s) indexed.\n", n)
		return nil
	},
}

var registryRemoveCmd = &cobra.Command{
	Use:   "remove <vision-slug>",
	Short: "Remove a vision from the registry",
	Long: `Remove a vision's registry entry.

The node files stay on disk unless --purge is given; a removed entry
can be restored with 'cairn registry rebuild'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slug := args[0]
		dir, err := stateDir()
		if err != nil {
			return err
		}
		s := store.New(dir)
		reg := registry.New(s)

		if err := reg.Deregister(slug); err != nil {
			return fmt.Errorf("deregister %q: %w", slug, err)
		}
		fmt.Printf("Removed %q from the registry.\n", slug)

		if registryPurge {
			if err := s.DeleteVision(slug); err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("delete vision files: %w", err)
			}
			fmt.Printf("Deleted node files for %q.\n", slug)
		}
		return nil
	},
}

func init() {
	registryRemoveCmd.Flags().BoolVar(&registryPurge, "purge", false, "Also delete the vision's node files")
	registryCmd.AddCommand(registryListCmd)
	registryCmd.AddCommand(registryRebuildCmd)
	registryCmd.AddCommand(registryRemoveCmd)
}

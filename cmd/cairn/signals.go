package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/signal"
	"github.com/cairnhq/cairn/internal/store"
)

var pauseCmd = &cobra.Command{
	Use:   "pause <vision-slug>",
	Short: "Ask a running orchestrator to pause",
	Long: `Raise a pause signal for a vision.

A running orchestrator picks the signal up at its next safe point,
checkpoints the machine, and exits. Resume with:
  cairn run <vision-slug> --resume`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return raiseSignal(args[0], signal.Pause)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop <vision-slug>",
	Short: "Ask a running orchestrator to stop",
	Long: `Raise a stop signal for a vision.

A running orchestrator halts at its next safe point and records the
run as failed. Unlike pause, a stopped run still leaves a checkpoint,
so --resume can pick the work back up deliberately.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return raiseSignal(args[0], signal.Stop)
	},
}

func raiseSignal(slug string, kind signal.Kind) error {
	dir, err := stateDir()
	if err != nil {
		return err
	}

	// A missing vision is almost always a typo; catch it before
	// writing a signal file nothing will ever read.
	if _, err := store.New(dir).LoadVision(slug); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("vision %q not found", slug)
		}
		return fmt.Errorf("load vision: %w", err)
	}

	if err := signal.Raise(dir, slug, kind); err != nil {
		return fmt.Errorf("raise %s signal: %w", kind, err)
	}

	switch kind {
	case signal.Pause:
		fmt.Printf("Pause signal raised for %s.\nThe run checkpoints at its next safe point; resume with 'cairn run %s --resume'.\n", slug, slug)
	case signal.Stop:
		fmt.Printf("Stop signal raised for %s.\n", slug)
	}
	return nil
}

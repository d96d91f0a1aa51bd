package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/guimove/ricover/internal/config"
	"github.com/guimove/ricover/internal/inventory"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save the raw inventory of every scope as JSON",
	Long: `Fetches running instances and active reservations for every configured
scope and writes one JSON file per scope. The files can be reconciled later
with --inventory snapshot --snapshot-dir <dir>.`,
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().String("dir", "snapshots", "directory to write snapshots to")
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.Inventory.Source == config.SourceSnapshot {
		return errors.New("snapshot needs a live inventory source")
	}
	dir, _ := cmd.Flags().GetString("dir")

	orch, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}

	snaps, excluded, err := orch.Snapshots(ctx)
	if err != nil {
		return err
	}
	for _, e := range excluded {
		logger.Info("node left out of snapshots", "node", e.Subject, "reason", e.Reason)
	}

	for _, snap := range snaps {
		path := filepath.Join(dir, inventory.SnapshotFileName(snap.Scope))
		if err := inventory.WriteSnapshot(path, snap); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d instances, %d reservations -> %s\n",
			snap.Scope, len(snap.Instances), len(snap.Reservations), path)
	}
	return nil
}

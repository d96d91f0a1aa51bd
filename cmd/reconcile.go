package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/guimove/ricover/internal/report"
	"github.com/guimove/ricover/pkg/version"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Match running instances against reservations and report costs",
	Long: `Collects running instances and active reservations for every configured
scope, prices each running configuration on demand and reserved, matches
running capacity against reservations (exact zone first, then regional), and
reports coverage, idle reservations and potential savings.

Nothing is written unless the whole run succeeds.`,
	RunE: runReconcile,
}

func init() {
	f := reconcileCmd.Flags()
	f.Bool("fleet", true, "share reservations across all scopes (false: match each scope on its own)")
	f.Bool("no-offerings", false, "skip reserved offering lookups, on-demand prices only")
	f.StringP("output", "o", "table", "output format: table, markdown, json, csv")
	f.String("output-dir", "", "also write instance-reservation-usage.csv and reservation-usage.csv here")
	f.String("metrics-file", "", "also write Prometheus metrics in textfile collector format here")

	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Apply flag overrides
	if fleet, _ := cmd.Flags().GetBool("fleet"); cmd.Flags().Changed("fleet") {
		cfg.Reconcile.Fleet = fleet
	}
	if noOfferings, _ := cmd.Flags().GetBool("no-offerings"); noOfferings {
		cfg.Pricing.Offerings = false
	}
	if out, _ := cmd.Flags().GetString("output"); cmd.Flags().Changed("output") {
		cfg.Output.Format = out
	}
	if dir, _ := cmd.Flags().GetString("output-dir"); dir != "" {
		cfg.Output.Dir = dir
	}
	if path, _ := cmd.Flags().GetString("metrics-file"); path != "" {
		cfg.Output.MetricsFile = path
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	orch, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}
	orch.Writer = cmd.OutOrStdout()

	_, err = orch.Reconcile(ctx, report.Meta{Version: version.Version})
	return err
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/guimove/ricover/internal/model"
)

var offeringsCmd = &cobra.Command{
	Use:   "offerings",
	Short: "List on-demand and reserved prices of the observed configurations",
	Long: `Collects running instances and reservations for every configured scope and
prints, for each distinct configuration, its on-demand hourly price and the best and worst
hourly cost among purchasable reservation offerings.`,
	RunE: runOfferings,
}

func init() {
	f := offeringsCmd.Flags()
	f.String("sort-by", "type", "sort by: type, ondemand, savings")
	f.StringP("output", "o", "table", "output format: table, json")

	rootCmd.AddCommand(offeringsCmd)
}

func runOfferings(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	orch, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}

	book, excluded, err := orch.PriceObserved(ctx)
	if err != nil {
		return err
	}
	offerings := book.All()
	sortBy, _ := cmd.Flags().GetString("sort-by")
	sortOfferings(offerings, sortBy)

	out := cmd.OutOrStdout()
	if format, _ := cmd.Flags().GetString("output"); format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(offerings)
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Instance Type", "Zone", "Tenancy", "Product", "$/h OD", "$/h RI best", "$/h RI worst", "Savings"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	for _, o := range offerings {
		best, worst, savings := "-", "-", "-"
		if o.HasReserved {
			best = fmt.Sprintf("%.4f", o.CostReservedBest)
			worst = fmt.Sprintf("%.4f", o.CostReservedWorst)
			savings = fmt.Sprintf("%.0f%%", savingsRatio(o)*100)
		}
		t.AppendRow(table.Row{
			o.Config.Size, o.Config.Locality, o.Config.Tenancy,
			o.Config.Platform.ProductDescription(o.Config.VPC),
			fmt.Sprintf("%.4f", o.CostOnDemand), best, worst, savings,
		})
	}
	t.Render()

	fmt.Fprintf(out, "\n%d configurations priced, %d excluded\n", len(offerings), len(excluded))
	for _, e := range excluded {
		fmt.Fprintf(out, "  - %s %s: %s\n", e.Kind, e.Subject, e.Reason)
	}
	return nil
}

func savingsRatio(o model.PricedOffering) float64 {
	if !o.HasReserved || o.CostOnDemand <= 0 {
		return 0
	}
	return 1 - o.CostReservedBest/o.CostOnDemand
}

func sortOfferings(offerings []model.PricedOffering, by string) {
	switch by {
	case "ondemand":
		sort.SliceStable(offerings, func(i, j int) bool {
			return offerings[i].CostOnDemand < offerings[j].CostOnDemand
		})
	case "savings":
		sort.SliceStable(offerings, func(i, j int) bool {
			return savingsRatio(offerings[i]) > savingsRatio(offerings[j])
		})
	default: // type, already in configuration order
	}
}

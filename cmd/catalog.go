package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/cobra"

	awspkg "github.com/guimove/ricover/internal/aws"
	"github.com/guimove/ricover/internal/pricing"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Download the on-demand price catalog for offline use",
	Long: `Fetches on-demand hourly prices from the AWS Pricing API for the regions of
the configured scopes and writes them as a catalog file usable with
--catalog-file.`,
	RunE: runCatalog,
}

func init() {
	f := catalogCmd.Flags()
	f.String("out", "ondemandcosts.json", "catalog file to write")
	f.StringSlice("regions", nil, "regions to include (default: regions of the configured scopes)")

	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	regions, _ := cmd.Flags().GetStringSlice("regions")
	if len(regions) == 0 {
		seen := map[string]bool{}
		for _, sc := range cfg.Scopes {
			if !seen[sc.Region] {
				seen[sc.Region] = true
				regions = append(regions, sc.Region)
			}
		}
	}
	sort.Strings(regions)

	first := cfg.Scopes[0]
	provider, err := awspkg.NewProvider(ctx, awspkg.Options{
		Profile:       first.Profile,
		Region:        first.Region,
		AssumeRoleARN: first.AssumeRoleARN,
		CacheDir:      cfg.Pricing.CacheDir,
		CacheTTL:      cfg.Pricing.CacheTTL,
		Log:           logger,
	})
	if err != nil {
		return err
	}

	catalog, err := provider.LoadCatalog(ctx, regions)
	if err != nil {
		return err
	}
	data, err := pricing.MarshalCatalog(catalog)
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d on-demand prices for %v -> %s\n", catalog.Len(), regions, out)
	return nil
}

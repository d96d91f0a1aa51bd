package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/guimove/ricover/internal/config"
	"github.com/guimove/ricover/internal/logging"
)

var (
	cfgFile string
	cfg     config.Config
	verbose bool

	logger   = logr.Discard()
	flushLog = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "ricover",
	Short: "EC2 reserved instance coverage and cost reconciliation",
	Long: `ricover matches running on-demand EC2 capacity against purchased reserved
instances, across accounts and regions, and reports how much running capacity
is covered, how much is billed on demand, and how much reserved capacity sits
idle, with on-demand and reserved prices for every configuration.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}
		return setupLogging()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		flushLog()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	def := config.Default()

	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default: ricover.yaml)")
	f.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	f.StringSlice("scope", nil, "account/region scope as profile:region or region (repeatable)")
	f.String("inventory", def.Inventory.Source, "running instance source: ec2, snapshot, prometheus, kubernetes")
	f.String("snapshot-dir", "", "directory of scope snapshots for the snapshot source")
	f.String("prometheus-url", "", "Prometheus/Thanos endpoint URL for the prometheus source")
	f.String("kubeconfig", "", "path to kubeconfig file for the kubernetes source")
	f.String("kube-context", "", "Kubernetes context name")
	f.String("catalog-file", "", "on-demand catalog file to use instead of the Pricing API")
	f.String("cache-dir", def.Pricing.CacheDir, "cache directory for AWS pricing responses")
	f.String("log-format", def.Log.Format, "log format: console or json")

	_ = viper.BindPFlag("inventory.source", f.Lookup("inventory"))
	_ = viper.BindPFlag("inventory.snapshot_dir", f.Lookup("snapshot-dir"))
	_ = viper.BindPFlag("inventory.prometheus.url", f.Lookup("prometheus-url"))
	_ = viper.BindPFlag("inventory.kubernetes.kubeconfig", f.Lookup("kubeconfig"))
	_ = viper.BindPFlag("inventory.kubernetes.context", f.Lookup("kube-context"))
	_ = viper.BindPFlag("pricing.catalog_file", f.Lookup("catalog-file"))
	_ = viper.BindPFlag("pricing.cache_dir", f.Lookup("cache-dir"))
	_ = viper.BindPFlag("log.format", f.Lookup("log-format"))
}

func loadConfig(cmd *cobra.Command) error {
	// Start with defaults
	cfg = config.Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ricover")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.ricover")
	}

	// Environment variable overrides, e.g. RICOVER_INVENTORY_SOURCE
	viper.SetEnvPrefix("RICOVER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	if scopes, _ := cmd.Flags().GetStringSlice("scope"); len(scopes) > 0 {
		cfg.Scopes = cfg.Scopes[:0]
		for _, s := range scopes {
			sc, err := config.ParseScope(s)
			if err != nil {
				return err
			}
			cfg.Scopes = append(cfg.Scopes, sc)
		}
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	return cfg.Validate()
}

func setupLogging() error {
	l, flush, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	logger, flushLog = l, flush
	return nil
}

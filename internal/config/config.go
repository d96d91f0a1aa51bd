package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/guimove/ricover/internal/logging"
	"github.com/guimove/ricover/internal/retry"
)

// Config is the top-level configuration for ricover.
type Config struct {
	Scopes    []ScopeConfig   `mapstructure:"scopes"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Retry     retry.Config    `mapstructure:"retry"`
	Output    OutputConfig    `mapstructure:"output"`
	Log       logging.Options `mapstructure:"log"`
}

// ScopeConfig names one account/region pass. The account is reached through a
// shared-config profile, optionally assuming a role.
type ScopeConfig struct {
	Profile       string `mapstructure:"profile"`
	Region        string `mapstructure:"region"`
	AssumeRoleARN string `mapstructure:"assume_role_arn"`
}

func (s ScopeConfig) String() string {
	if s.Profile == "" {
		return s.Region
	}
	return s.Profile + ":" + s.Region
}

// Inventory source names.
const (
	SourceEC2        = "ec2"
	SourceSnapshot   = "snapshot"
	SourcePrometheus = "prometheus"
	SourceKubernetes = "kubernetes"
)

type InventoryConfig struct {
	// Source of running instances. Reservations always come from EC2, except
	// with the snapshot source which provides both.
	Source      string           `mapstructure:"source"`
	SnapshotDir string           `mapstructure:"snapshot_dir"`
	Timeout     time.Duration    `mapstructure:"timeout"`
	Prometheus  PrometheusConfig `mapstructure:"prometheus"`
	Kubernetes  KubernetesConfig `mapstructure:"kubernetes"`
}

type PrometheusConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type KubernetesConfig struct {
	Kubeconfig string `mapstructure:"kubeconfig"`
	Context    string `mapstructure:"context"`
}

type PricingConfig struct {
	// CatalogFile is an on-demand catalog to use instead of the Pricing API.
	CatalogFile string `mapstructure:"catalog_file"`
	// Offerings enables reserved price lookups.
	Offerings   bool          `mapstructure:"offerings"`
	Concurrency int           `mapstructure:"concurrency"`
	CacheDir    string        `mapstructure:"cache_dir"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

type ReconcileConfig struct {
	// Fleet merges every scope before a single allocation.
	Fleet       bool `mapstructure:"fleet"`
	Concurrency int  `mapstructure:"concurrency"`
}

type OutputConfig struct {
	Format      string `mapstructure:"format"`
	Dir         string `mapstructure:"dir"`
	MetricsFile string `mapstructure:"metrics_file"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Scopes: []ScopeConfig{
			{Region: detectRegion()},
		},
		Inventory: InventoryConfig{
			Source:  SourceEC2,
			Timeout: 5 * time.Minute,
			Prometheus: PrometheusConfig{
				Timeout: 60 * time.Second,
			},
		},
		Pricing: PricingConfig{
			Offerings:   true,
			Concurrency: 4,
			CacheDir:    defaultCacheDir(),
			CacheTTL:    24 * time.Hour,
		},
		Reconcile: ReconcileConfig{
			Fleet:       true,
			Concurrency: 4,
		},
		Retry: retry.DefaultConfig(),
		Output: OutputConfig{
			Format: "table",
		},
		Log: logging.DefaultOptions(),
	}
}

// Validate checks the config for consistency.
func (c *Config) Validate() error {
	if len(c.Scopes) == 0 {
		return fmt.Errorf("at least one scope is required")
	}
	for i, s := range c.Scopes {
		if s.Region == "" {
			return fmt.Errorf("scope %d (%s) has no region", i, s)
		}
	}

	validSources := map[string]bool{SourceEC2: true, SourceSnapshot: true, SourcePrometheus: true, SourceKubernetes: true}
	if !validSources[c.Inventory.Source] {
		return fmt.Errorf("inventory source must be ec2, snapshot, prometheus, or kubernetes, got %q", c.Inventory.Source)
	}
	if c.Inventory.Source == SourceSnapshot && c.Inventory.SnapshotDir == "" {
		return fmt.Errorf("inventory source snapshot requires snapshot_dir")
	}
	if c.Inventory.Source == SourcePrometheus && c.Inventory.Prometheus.URL == "" {
		return fmt.Errorf("inventory source prometheus requires prometheus.url")
	}
	if c.Inventory.Timeout <= 0 {
		return fmt.Errorf("inventory timeout must be positive, got %v", c.Inventory.Timeout)
	}

	if c.Pricing.Concurrency <= 0 {
		c.Pricing.Concurrency = 4
	}
	if c.Reconcile.Concurrency <= 0 {
		c.Reconcile.Concurrency = 4
	}

	if err := c.Retry.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}

	validFormats := map[string]bool{"table": true, "json": true, "markdown": true, "csv": true}
	if !validFormats[c.Output.Format] {
		return fmt.Errorf("output format must be table, json, markdown, or csv, got %q", c.Output.Format)
	}
	return nil
}

// ParseScope parses "profile:region" or "region".
func ParseScope(s string) (ScopeConfig, error) {
	profile, region, found := strings.Cut(s, ":")
	if !found {
		region, profile = profile, ""
	}
	if region == "" {
		return ScopeConfig{}, fmt.Errorf("scope %q has no region", s)
	}
	return ScopeConfig{Profile: profile, Region: region}, nil
}

// detectRegion checks environment variables for the AWS region.
func detectRegion() string {
	if r := os.Getenv("AWS_REGION"); r != "" {
		return r
	}
	if r := os.Getenv("AWS_DEFAULT_REGION"); r != "" {
		return r
	}
	return "us-east-1"
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return dir + string(os.PathSeparator) + "ricover"
}

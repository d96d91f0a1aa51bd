package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	awspkg "github.com/guimove/ricover/internal/aws"
	"github.com/guimove/ricover/internal/config"
	"github.com/guimove/ricover/internal/inventory"
	"github.com/guimove/ricover/internal/kube"
	"github.com/guimove/ricover/internal/model"
	"github.com/guimove/ricover/internal/orchestrator"
	"github.com/guimove/ricover/internal/pricing"
)

// newProviders creates one AWS provider per configured scope.
func newProviders(ctx context.Context) ([]*awspkg.Provider, error) {
	providers := make([]*awspkg.Provider, 0, len(cfg.Scopes))
	for _, sc := range cfg.Scopes {
		p, err := awspkg.NewProvider(ctx, awspkg.Options{
			Profile:       sc.Profile,
			Region:        sc.Region,
			AssumeRoleARN: sc.AssumeRoleARN,
			CacheDir:      cfg.Pricing.CacheDir,
			CacheTTL:      cfg.Pricing.CacheTTL,
			Log:           logger,
		})
		if err != nil {
			return nil, fmt.Errorf("scope %s: %w", sc, err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// buildOrchestrator wires the orchestrator for the configured inventory
// source.
func buildOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	if cfg.Inventory.Source == config.SourceSnapshot {
		return buildOffline()
	}

	providers, err := newProviders(ctx)
	if err != nil {
		return nil, err
	}

	scopes := make([]orchestrator.ScopeSource, len(providers))
	offerings := pricing.RegionalSources{}
	for i, p := range providers {
		var collector orchestrator.Collector = p
		if cfg.Inventory.Source != config.SourceEC2 {
			collector = orchestrator.CollectorFunc(p.CollectReservations)
		}
		scopes[i] = orchestrator.ScopeSource{Scope: p.Scope(), Collector: collector}
		if _, ok := offerings[p.Region()]; !ok {
			offerings[p.Region()] = p
		}
	}

	o := orchestrator.New(cfg, scopes, logger)
	o.CatalogLoader = providers[0]
	if cfg.Pricing.Offerings {
		o.Offerings = offerings
	}
	if err := loadCatalogFile(o); err != nil {
		return nil, err
	}

	nodes, err := nodeSource(ctx)
	if err != nil {
		return nil, err
	}
	o.Nodes = nodes
	return o, nil
}

// buildOffline reads every scope from snapshot files. Prices come from the
// catalog file only; reserved prices are not available offline.
func buildOffline() (*orchestrator.Orchestrator, error) {
	if cfg.Pricing.CatalogFile == "" {
		return nil, errors.New("the snapshot inventory source requires pricing.catalog_file (see 'ricover catalog')")
	}

	scopes := make([]orchestrator.ScopeSource, len(cfg.Scopes))
	for i, sc := range cfg.Scopes {
		scope := model.Scope{Profile: sc.Profile, Region: sc.Region}
		path := filepath.Join(cfg.Inventory.SnapshotDir, inventory.SnapshotFileName(scope))
		scopes[i] = orchestrator.ScopeSource{Scope: scope, Collector: inventory.NewStaticSource(path)}
	}

	o := orchestrator.New(cfg, scopes, logger)
	if err := loadCatalogFile(o); err != nil {
		return nil, err
	}
	logger.Info("offline mode, reserved offering prices unavailable")
	return o, nil
}

func loadCatalogFile(o *orchestrator.Orchestrator) error {
	if cfg.Pricing.CatalogFile == "" {
		return nil
	}
	catalog, skipped, err := pricing.LoadCatalogFile(cfg.Pricing.CatalogFile)
	if err != nil {
		return err
	}
	logger.Info("loaded on-demand catalog", "file", cfg.Pricing.CatalogFile,
		"prices", catalog.Len(), "skipped", skipped)
	o.Catalog = catalog
	return nil
}

// nodeSource returns the node inventory source, or nil when running
// instances come from EC2.
func nodeSource(ctx context.Context) (inventory.Source, error) {
	var src inventory.Source
	switch cfg.Inventory.Source {
	case config.SourcePrometheus:
		p, err := inventory.NewPrometheusSource(cfg.Inventory.Prometheus.URL,
			inventory.WithTimeout(cfg.Inventory.Prometheus.Timeout))
		if err != nil {
			return nil, err
		}
		src = p
	case config.SourceKubernetes:
		client, current, err := kube.NewClient(cfg.Inventory.Kubernetes.Kubeconfig, cfg.Inventory.Kubernetes.Context)
		if err != nil {
			return nil, err
		}
		src = kube.NewNodeSource(client, current, logger)
	default:
		return nil, nil
	}

	if err := src.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connecting to %s inventory: %w", cfg.Inventory.Source, err)
	}
	logger.Info("using node inventory", "backend", src.BackendType())
	return src, nil
}

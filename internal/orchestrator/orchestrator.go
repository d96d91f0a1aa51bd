// Package orchestrator runs the reconciliation pipeline end to end: collect,
// normalize, price, allocate, summarize and report.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/guimove/ricover/internal/aggregate"
	"github.com/guimove/ricover/internal/allocation"
	"github.com/guimove/ricover/internal/config"
	"github.com/guimove/ricover/internal/exporter"
	"github.com/guimove/ricover/internal/inventory"
	"github.com/guimove/ricover/internal/model"
	"github.com/guimove/ricover/internal/normalize"
	"github.com/guimove/ricover/internal/pricing"
	"github.com/guimove/ricover/internal/report"
)

// Collector fetches the raw inventory of one scope.
type Collector interface {
	Collect(ctx context.Context) (*model.Snapshot, error)
}

// CollectorFunc adapts a function to Collector.
type CollectorFunc func(ctx context.Context) (*model.Snapshot, error)

func (f CollectorFunc) Collect(ctx context.Context) (*model.Snapshot, error) { return f(ctx) }

// CatalogLoader builds the on-demand catalog for a set of regions.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context, regions []string) (*pricing.Catalog, error)
}

// ScopeSource pairs a scope with the collector of its inventory.
type ScopeSource struct {
	Scope     model.Scope
	Collector Collector
}

// Orchestrator coordinates the end-to-end reconciliation pipeline.
type Orchestrator struct {
	Config config.Config
	Scopes []ScopeSource

	// Nodes, when set, replaces the running instances reported by the scope
	// collectors. Its instances are assigned to the first scope of their
	// region.
	Nodes inventory.Source

	// Catalog is used as is when set; otherwise it is built by CatalogLoader.
	Catalog       *pricing.Catalog
	CatalogLoader CatalogLoader

	// Offerings is the source of reserved prices. Nil prices on demand only.
	Offerings pricing.OfferingSource

	Writer io.Writer
	Log    logr.Logger
	Now    func() time.Time
}

// New creates an orchestrator with the given scopes.
func New(cfg config.Config, scopes []ScopeSource, log logr.Logger) *Orchestrator {
	return &Orchestrator{
		Config: cfg,
		Scopes: scopes,
		Writer: os.Stdout,
		Log:    log,
		Now:    time.Now,
	}
}

// Snapshots collects the raw inventory of every scope, at most
// Reconcile.Concurrency at a time. Any collection failure fails the call.
// Node instances that cannot be assigned to a scope are returned as
// exclusions.
func (o *Orchestrator) Snapshots(ctx context.Context) ([]*model.Snapshot, []model.Exclusion, error) {
	if len(o.Scopes) == 0 {
		return nil, nil, errors.New("no scopes to collect")
	}

	snaps := make([]*model.Snapshot, len(o.Scopes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency(o.Config.Reconcile.Concurrency, aggregate.DefaultScopeConcurrency))
	for i, src := range o.Scopes {
		g.Go(func() error {
			snap, err := o.collectScope(gctx, src)
			if err != nil {
				return fmt.Errorf("collecting %s: %w", src.Scope, err)
			}
			snaps[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if o.Nodes == nil {
		return snaps, nil, nil
	}
	excluded, err := o.assignNodes(ctx, snaps)
	if err != nil {
		return nil, nil, err
	}
	return snaps, excluded, nil
}

func (o *Orchestrator) collectScope(ctx context.Context, src ScopeSource) (*model.Snapshot, error) {
	if timeout := o.Config.Inventory.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	snap, err := src.Collector.Collect(ctx)
	if err != nil {
		return nil, err
	}

	scope := src.Scope
	if snap.Scope.Account != "" {
		scope.Account = snap.Scope.Account
	}
	snap.Scope = scope

	o.Log.Info("collected scope", "scope", scope.String(),
		"instances", len(snap.Instances), "reservations", len(snap.Reservations))
	return snap, nil
}

// assignNodes replaces the instances of every snapshot with the node
// inventory, each node going to the first scope of its region.
func (o *Orchestrator) assignNodes(ctx context.Context, snaps []*model.Snapshot) ([]model.Exclusion, error) {
	nodes, err := o.Nodes.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collecting %s inventory: %w", o.Nodes.BackendType(), err)
	}

	byRegion := make(map[string]*model.Snapshot)
	for _, snap := range snaps {
		snap.Instances = nil
		if _, ok := byRegion[snap.Scope.Region]; !ok {
			byRegion[snap.Scope.Region] = snap
		}
	}

	var excluded []model.Exclusion
	for _, inst := range nodes.Instances {
		region, err := normalize.RegionOf(inst.AvailabilityZone)
		if err != nil {
			excluded = append(excluded, model.Exclusion{Kind: "instance", Subject: inst.InstanceID, Reason: err.Error()})
			continue
		}
		snap, ok := byRegion[region]
		if !ok {
			o.Log.V(1).Info("node outside configured scopes", "node", inst.InstanceID, "region", region)
			excluded = append(excluded, model.Exclusion{
				Kind:    "instance",
				Subject: inst.InstanceID,
				Reason:  fmt.Sprintf("no scope configured for region %s", region),
			})
			continue
		}
		snap.Instances = append(snap.Instances, inst)
	}

	o.Log.Info("assigned node inventory", "backend", o.Nodes.BackendType(),
		"nodes", len(nodes.Instances), "excluded", len(excluded))
	return excluded, nil
}

// Normalize turns snapshots into allocation inputs. Records that fail to
// normalize become exclusions.
func (o *Orchestrator) Normalize(snaps []*model.Snapshot) ([]aggregate.ScopeInput, []model.Exclusion) {
	inputs := make([]aggregate.ScopeInput, 0, len(snaps))
	var excluded []model.Exclusion

	for _, snap := range snaps {
		log := o.Log.WithValues("scope", snap.Scope.String())
		groups, gerrs := normalize.Groups(snap.Instances, log)
		pools, perrs := normalize.Pools(snap.Reservations, snap.Scope.Region, log)
		excluded = append(excluded, exclusions(gerrs)...)
		excluded = append(excluded, exclusions(perrs)...)
		inputs = append(inputs, aggregate.ScopeInput{Scope: snap.Scope, Groups: groups, Pools: pools})
	}
	return inputs, excluded
}

func exclusions(errs []error) []model.Exclusion {
	out := make([]model.Exclusion, 0, len(errs))
	for _, err := range errs {
		var rerr *normalize.RecordError
		if errors.As(err, &rerr) {
			out = append(out, model.Exclusion{Kind: rerr.Kind, Subject: rerr.Subject, Reason: rerr.Err.Error()})
			continue
		}
		out = append(out, model.Exclusion{Kind: "record", Reason: err.Error()})
	}
	return out
}

// Price resolves prices for every running and reserved configuration of
// inputs.
func (o *Orchestrator) Price(ctx context.Context, inputs []aggregate.ScopeInput) (*pricing.PriceBook, []model.Exclusion, error) {
	var cfgs []model.Configuration
	for _, in := range inputs {
		for _, g := range in.Groups {
			cfgs = append(cfgs, g.Config)
		}
		for _, p := range in.Pools {
			cfgs = append(cfgs, p.Config)
		}
	}
	if len(cfgs) == 0 {
		return pricing.NewPriceBook(), nil, nil
	}

	catalog, err := o.catalog(ctx, inputs)
	if err != nil {
		return nil, nil, err
	}

	resolver := pricing.NewResolver(catalog, o.Offerings, o.Log)
	resolver.Concurrency = concurrency(o.Config.Pricing.Concurrency, pricing.DefaultConcurrency)
	resolver.Retry = o.Config.Retry

	book, errs, err := resolver.ResolveAll(ctx, cfgs)
	if err != nil {
		return nil, nil, err
	}

	excluded := make([]model.Exclusion, 0, len(errs))
	for _, err := range errs {
		var ou *pricing.OfferingsUnavailableError
		if errors.As(err, &ou) {
			o.Log.Error(err, "configuration left without reserved price", "configuration", ou.Config.String())
			excluded = append(excluded, model.Exclusion{Kind: "offerings", Subject: ou.Config.String(), Reason: err.Error()})
			continue
		}
		subject := ""
		var nf *pricing.PriceNotFoundError
		if errors.As(err, &nf) {
			subject = nf.Config.String()
		}
		o.Log.Error(err, "configuration left without price data")
		excluded = append(excluded, model.Exclusion{Kind: "price", Subject: subject, Reason: err.Error()})
	}
	o.Log.Info("resolved prices", "configurations", book.Len(), "failed", len(errs))
	return book, excluded, nil
}

func (o *Orchestrator) catalog(ctx context.Context, inputs []aggregate.ScopeInput) (*pricing.Catalog, error) {
	if o.Catalog != nil {
		return o.Catalog, nil
	}
	if o.CatalogLoader == nil {
		return nil, errors.New("no on-demand catalog configured")
	}

	seen := make(map[string]bool)
	var regions []string
	for _, in := range inputs {
		if !seen[in.Scope.Region] {
			seen[in.Scope.Region] = true
			regions = append(regions, in.Scope.Region)
		}
	}
	sort.Strings(regions)

	catalog, err := o.CatalogLoader.LoadCatalog(ctx, regions)
	if err != nil {
		return nil, fmt.Errorf("loading on-demand catalog: %w", err)
	}
	return catalog, nil
}

// Allocate matches running groups against pools, fleet-wide or per scope.
func (o *Orchestrator) Allocate(ctx context.Context, inputs []aggregate.ScopeInput) (*allocation.Result, error) {
	if o.Config.Reconcile.Fleet {
		return aggregate.Fleet(inputs)
	}
	results, err := aggregate.PerScope(ctx, inputs, concurrency(o.Config.Reconcile.Concurrency, aggregate.DefaultScopeConcurrency))
	if err != nil {
		return nil, err
	}
	return aggregate.Flatten(results), nil
}

// Run executes the pipeline and returns the reconciliation without writing
// any output.
func (o *Orchestrator) Run(ctx context.Context) (*model.Reconciliation, error) {
	snaps, excluded, err := o.Snapshots(ctx)
	if err != nil {
		return nil, err
	}

	inputs, normExcluded := o.Normalize(snaps)
	excluded = append(excluded, normExcluded...)

	book, priceExcluded, err := o.Price(ctx, inputs)
	if err != nil {
		return nil, err
	}
	excluded = append(excluded, priceExcluded...)

	res, err := o.Allocate(ctx, inputs)
	if err != nil {
		var iv *allocation.InvariantViolation
		if errors.As(err, &iv) {
			o.Log.Error(err, "allocation invariant violated, aborting")
		}
		return nil, fmt.Errorf("allocating reservations: %w", err)
	}

	matches, dropped := o.attachPrices(res.Matches, book)
	excluded = append(excluded, dropped...)

	rec := &model.Reconciliation{
		Label:    o.label(snaps),
		Matches:  matches,
		Usage:    res.Usage,
		Excluded: excluded,
		Summary:  model.Summarize(matches, res.Usage),
	}
	for _, snap := range snaps {
		rec.Scopes = append(rec.Scopes, snap.Scope)
	}

	o.Log.Info("reconciliation complete",
		"running", rec.Summary.RunningUnits,
		"covered", rec.Summary.CoveredUnits,
		"reserved", rec.Summary.ReservedUnits,
		"idle", rec.Summary.IdleUnits,
		"excluded", len(rec.Excluded))
	return rec, nil
}

// attachPrices links every match to its priced offering. A match with
// neither a price nor any reserved coverage carries no information and is
// dropped.
func (o *Orchestrator) attachPrices(matches []model.MatchRecord, book *pricing.PriceBook) ([]model.MatchRecord, []model.Exclusion) {
	out := make([]model.MatchRecord, 0, len(matches))
	var dropped []model.Exclusion

	for _, m := range matches {
		if po, ok := book.Lookup(m.Config); ok {
			m.Offering = &po
			out = append(out, m)
			continue
		}
		if m.CountReserved == 0 {
			o.Log.Info("dropping unmatched configuration without price data",
				"configuration", m.Config.String(), "count", m.Count)
			dropped = append(dropped, model.Exclusion{
				Kind:    "match",
				Subject: m.Config.String(),
				Reason:  "no reservation and no price data",
			})
			continue
		}
		out = append(out, m)
	}
	return out, dropped
}

func (o *Orchestrator) label(snaps []*model.Snapshot) string {
	if len(snaps) == 1 {
		return snaps[0].Scope.String()
	}
	if o.Config.Reconcile.Fleet {
		return fmt.Sprintf("fleet (%d scopes)", len(snaps))
	}
	return fmt.Sprintf("%d scopes", len(snaps))
}

// Report renders rec in the configured format and writes every configured
// output. Nothing is written unless every output rendered successfully.
func (o *Orchestrator) Report(ctx context.Context, rec *model.Reconciliation, meta report.Meta) error {
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = o.Now().UTC()
	}
	meta.Fleet = o.Config.Reconcile.Fleet
	if meta.Inventory == "" {
		meta.Inventory = o.Config.Inventory.Source
	}

	var buf bytes.Buffer
	if err := report.NewReporter(o.Config.Output.Format, &buf).Report(ctx, rec, meta); err != nil {
		return fmt.Errorf("generating report: %w", err)
	}

	if dir := o.Config.Output.Dir; dir != "" {
		if err := report.WriteDir(dir, rec); err != nil {
			return err
		}
		o.Log.Info("wrote reconciliation files", "dir", dir)
	}

	if path := o.Config.Output.MetricsFile; path != "" {
		exp := exporter.New()
		exp.Update(rec, meta.GeneratedAt)
		if err := exp.WriteTextfile(path); err != nil {
			return err
		}
		o.Log.Info("wrote metrics textfile", "path", path)
	}

	if _, err := buf.WriteTo(o.Writer); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// Reconcile runs the pipeline and writes its outputs.
func (o *Orchestrator) Reconcile(ctx context.Context, meta report.Meta) (*model.Reconciliation, error) {
	rec, err := o.Run(ctx)
	if err != nil {
		return nil, err
	}
	if err := o.Report(ctx, rec, meta); err != nil {
		return nil, err
	}
	return rec, nil
}

// PriceObserved collects every scope and prices its running and reserved
// configurations without allocating.
func (o *Orchestrator) PriceObserved(ctx context.Context) (*pricing.PriceBook, []model.Exclusion, error) {
	snaps, excluded, err := o.Snapshots(ctx)
	if err != nil {
		return nil, nil, err
	}
	inputs, normExcluded := o.Normalize(snaps)
	book, priceExcluded, err := o.Price(ctx, inputs)
	if err != nil {
		return nil, nil, err
	}
	excluded = append(excluded, normExcluded...)
	return book, append(excluded, priceExcluded...), nil
}

func concurrency(configured, fallback int) int {
	if configured > 0 {
		return configured
	}
	return fallback
}

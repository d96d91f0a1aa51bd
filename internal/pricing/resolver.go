// Package pricing resolves on-demand and reserved hourly prices for instance
// configurations.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/guimove/ricover/internal/model"
	"github.com/guimove/ricover/internal/retry"
)

// DefaultConcurrency bounds in-flight offering lookups to stay within EC2 API
// request limits.
const DefaultConcurrency = 4

// Resolver prices configurations from an on-demand catalog and a source of
// reservation offerings. A nil Source yields on-demand prices only.
type Resolver struct {
	Catalog     *Catalog
	Source      OfferingSource
	Concurrency int
	Retry       retry.Config
	Log         logr.Logger
}

// NewResolver returns a resolver with default concurrency and retry settings.
func NewResolver(catalog *Catalog, source OfferingSource, log logr.Logger) *Resolver {
	return &Resolver{
		Catalog:     catalog,
		Source:      source,
		Concurrency: DefaultConcurrency,
		Retry:       retry.DefaultConfig(),
		Log:         log,
	}
}

func isRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// Resolve prices one configuration. A missing on-demand price is a
// *PriceNotFoundError. A configuration without offerings is returned with
// HasReserved unset. When the offering lookup fails, the on-demand-only price
// is returned together with an *OfferingsUnavailableError.
func (r *Resolver) Resolve(ctx context.Context, cfg model.Configuration) (model.PricedOffering, error) {
	if err := ctx.Err(); err != nil {
		return model.PricedOffering{}, err
	}
	od, err := r.Catalog.OnDemand(cfg)
	if err != nil {
		return model.PricedOffering{}, err
	}
	po := model.PricedOffering{Config: cfg, CostOnDemand: od}
	if r.Source == nil {
		return po, nil
	}

	var offerings []Offering
	err = retry.Do(ctx, r.Retry, r.Log, "describe offerings "+cfg.String(), isRateLimited, func() error {
		var ferr error
		offerings, ferr = r.Source.Offerings(ctx, QueryFor(cfg))
		return ferr
	})
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return model.PricedOffering{}, cerr
		}
		return po, &OfferingsUnavailableError{Config: cfg, Err: err}
	}

	if best, worst, ok := bestWorst(offerings); ok {
		po.CostReservedBest = best
		po.CostReservedWorst = worst
		po.HasReserved = true
	}
	return po, nil
}

// ResolveAll prices every distinct configuration in cfgs with bounded
// concurrency. Per-configuration failures are returned in the error slice.
// A configuration whose offerings failed keeps its on-demand price in the
// book; any other failure leaves it out. Only context cancellation fails the
// whole call.
func (r *Resolver) ResolveAll(ctx context.Context, cfgs []model.Configuration) (*PriceBook, []error, error) {
	unique := dedup(cfgs)

	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([]model.PricedOffering, len(unique))
	failures := make([]error, len(unique))
	resolved := make([]bool, len(unique))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, cfg := range unique {
		g.Go(func() error {
			po, err := r.Resolve(gctx, cfg)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			failures[i] = err
			var ou *OfferingsUnavailableError
			if err == nil || errors.As(err, &ou) {
				results[i] = po
				resolved[i] = true
			}
			r.Log.V(1).Info("resolved offering",
				"configuration", cfg.String(), "done", done.Add(1), "total", len(unique))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("resolving prices: %w", err)
	}

	book := NewPriceBook()
	var errs []error
	for i := range unique {
		if failures[i] != nil {
			errs = append(errs, failures[i])
		}
		if resolved[i] {
			book.Add(results[i])
		}
	}
	return book, errs, nil
}

func dedup(cfgs []model.Configuration) []model.Configuration {
	seen := make(map[model.Configuration]bool, len(cfgs))
	out := make([]model.Configuration, 0, len(cfgs))
	for _, c := range cfgs {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return model.Less(out[i], out[j]) })
	return out
}

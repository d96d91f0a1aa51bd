// Package aggregate combines running groups and reservation pools collected
// from several account/region scopes.
package aggregate

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/guimove/ricover/internal/allocation"
	"github.com/guimove/ricover/internal/model"
	"github.com/guimove/ricover/internal/normalize"
)

// DefaultScopeConcurrency bounds concurrent per-scope allocations.
const DefaultScopeConcurrency = 4

// ScopeInput is the normalized inventory of one scope.
type ScopeInput struct {
	Scope  model.Scope
	Groups []model.RunningGroup
	Pools  []model.ReservationPool
}

// ScopeResult is the allocation of one scope.
type ScopeResult struct {
	Scope  model.Scope
	Result *allocation.Result
}

// Merge sums running group counts per configuration and pool counts per
// configuration and unit cost across every scope. Outputs are sorted the way
// normalize emits them, so merging a single scope returns its own inputs.
func Merge(inputs []ScopeInput) ([]model.RunningGroup, []model.ReservationPool) {
	groupCounts := make(map[model.Configuration]int)
	var all []model.ReservationPool

	for _, in := range inputs {
		for _, g := range in.Groups {
			groupCounts[g.Config] += g.Count
		}
		all = append(all, in.Pools...)
	}

	groups := make([]model.RunningGroup, 0, len(groupCounts))
	for cfg, n := range groupCounts {
		groups = append(groups, model.RunningGroup{Config: cfg, Count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		return model.Less(groups[i].Config, groups[j].Config)
	})

	return groups, normalize.Coalesce(all)
}

// Fleet merges every scope and runs a single allocation over the result, so
// reservations seen in one scope can cover usage seen in another.
func Fleet(inputs []ScopeInput) (*allocation.Result, error) {
	groups, pools := Merge(inputs)
	return allocation.Allocate(groups, pools)
}

// PerScope allocates each scope independently, at most limit at a time.
// Results are returned in input order.
func PerScope(ctx context.Context, inputs []ScopeInput, limit int) ([]ScopeResult, error) {
	if limit <= 0 {
		limit = DefaultScopeConcurrency
	}

	results := make([]ScopeResult, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := allocation.Allocate(in.Groups, in.Pools)
			if err != nil {
				return fmt.Errorf("scope %s: %w", in.Scope, err)
			}
			results[i] = ScopeResult{Scope: in.Scope, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Flatten concatenates per-scope results into one result.
func Flatten(results []ScopeResult) *allocation.Result {
	out := &allocation.Result{}
	for _, r := range results {
		out.Matches = append(out.Matches, r.Result.Matches...)
		out.Usage = append(out.Usage, r.Result.Usage...)
	}
	return out
}

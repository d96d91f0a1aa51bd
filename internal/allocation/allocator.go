// Package allocation assigns running on-demand capacity to reservation pools.
//
// Running groups are visited in a fixed order and each consumes matching pools
// greedily. Pool counters live in an arena private to one Allocate call, so
// concurrent calls over distinct inputs never share state.
package allocation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/guimove/ricover/internal/model"
)

// ErrNegativeCount is returned when a group or pool carries a negative count.
var ErrNegativeCount = errors.New("negative count")

// Result holds one match record per running group, in processing order, and
// one usage record per pool, in input order.
type Result struct {
	Matches []model.MatchRecord
	Usage   []model.ReservationUsageRecord
}

type poolState struct {
	pool      model.ReservationPool
	index     int
	remaining int
}

type groupRef struct {
	group model.RunningGroup
	index int
}

// Allocate matches running groups against reservation pools. Inputs are not
// modified. The output depends only on the multiset of inputs, not on their
// order.
func Allocate(groups []model.RunningGroup, pools []model.ReservationPool) (*Result, error) {
	arena := make([]poolState, len(pools))
	for i, p := range pools {
		if p.Count < 0 {
			return nil, fmt.Errorf("pool %s: %w", p.Config, ErrNegativeCount)
		}
		arena[i] = poolState{pool: p, index: i, remaining: p.Count}
	}

	ordered := make([]groupRef, len(groups))
	for i, g := range groups {
		if g.Count < 0 {
			return nil, fmt.Errorf("group %s: %w", g.Config, ErrNegativeCount)
		}
		ordered[i] = groupRef{group: g, index: i}
	}
	sort.Slice(ordered, func(i, j int) bool {
		return groupBefore(ordered[i], ordered[j])
	})

	// Base pool order. Each group re-ranks its own candidates from it.
	order := make([]int, len(arena))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return poolBefore(arena[order[i]], arena[order[j]])
	})

	res := &Result{
		Matches: make([]model.MatchRecord, 0, len(ordered)),
		Usage:   make([]model.ReservationUsageRecord, 0, len(arena)),
	}

	cands := make([]int, 0, len(order))
	for _, ref := range ordered {
		g := ref.group
		need := g.Count
		reserved := 0
		cands = candidates(cands[:0], arena, order, g.Config)
		for _, idx := range cands {
			if need == 0 {
				break
			}
			st := &arena[idx]
			if st.remaining == 0 {
				continue
			}
			use := min(st.remaining, need)
			st.remaining -= use
			need -= use
			reserved += use
		}
		res.Matches = append(res.Matches, model.MatchRecord{
			Config:        g.Config,
			Count:         g.Count,
			CountReserved: reserved,
		})
	}

	for _, st := range arena {
		res.Usage = append(res.Usage, model.ReservationUsageRecord{
			Config:          st.pool.Config,
			Count:           st.pool.Count,
			CountUsed:       st.pool.Count - st.remaining,
			CostHourly:      st.pool.CostHourly,
			CostUpfront:     st.pool.CostUpfront,
			DurationSeconds: st.pool.DurationSeconds,
		})
	}

	if err := Check(res); err != nil {
		return nil, err
	}
	return res, nil
}

// coarsePlatform collapses every platform except Windows and SUSE onto the
// generic Linux/UNIX bucket. Only used for comparison.
func coarsePlatform(p model.Platform) string {
	switch p {
	case model.PlatformWindows, model.PlatformSUSE:
		return string(p)
	}
	return "Linux/UNIX"
}

// Covers reports whether a reservation with configuration pool may offset a
// running group with configuration group.
//
// Size and tenancy must be equal and the coarse platform buckets must agree.
// The pool's locality must equal the group's, or the pool must be regional and
// cover the group's region. A non-VPC pool covers a VPC group, but a VPC pool
// never covers a non-VPC group.
func Covers(pool, group model.Configuration) bool {
	if pool.Size != group.Size || pool.Tenancy != group.Tenancy {
		return false
	}
	if coarsePlatform(pool.Platform) != coarsePlatform(group.Platform) {
		return false
	}

	localityOK := pool.Locality == group.Locality ||
		(pool.IsRegional() && group.Region() == pool.Locality)
	if !localityOK {
		return false
	}

	return pool.VPC == group.VPC || (group.VPC && !pool.VPC)
}

// localityOrder orders by reversed locality, descending. It returns 0 when
// the localities are equal.
func localityOrder(a, b string) int {
	ra, rb := model.ReverseLocality(a), model.ReverseLocality(b)
	switch {
	case ra > rb:
		return -1
	case ra < rb:
		return 1
	}
	return 0
}

// relaxation counts the attributes on which pool only covers group through
// a relaxed rule: a coarse platform bucket or a non-VPC pool for a VPC group.
func relaxation(pool, group model.Configuration) int {
	n := 0
	if pool.Platform != group.Platform {
		n++
	}
	if pool.VPC != group.VPC {
		n++
	}
	return n
}

// candidates appends to dst the pools covering group, ranked by locality
// specificity, then by how strictly they match, then by the base order.
func candidates(dst []int, arena []poolState, order []int, group model.Configuration) []int {
	for _, idx := range order {
		if Covers(arena[idx].pool.Config, group) {
			dst = append(dst, idx)
		}
	}
	sort.SliceStable(dst, func(i, j int) bool {
		a, b := arena[dst[i]].pool.Config, arena[dst[j]].pool.Config
		if c := localityOrder(a.Locality, b.Locality); c != 0 {
			return c < 0
		}
		return relaxation(a, group) < relaxation(b, group)
	})
	return dst
}

func groupBefore(a, b groupRef) bool {
	if c := localityOrder(a.group.Config.Locality, b.group.Config.Locality); c != 0 {
		return c < 0
	}
	if a.group.Config != b.group.Config {
		return model.Less(a.group.Config, b.group.Config)
	}
	if a.group.Count != b.group.Count {
		return a.group.Count > b.group.Count
	}
	return a.index < b.index
}

func poolBefore(a, b poolState) bool {
	if c := localityOrder(a.pool.Config.Locality, b.pool.Config.Locality); c != 0 {
		return c < 0
	}
	if a.pool.Config != b.pool.Config {
		return model.Less(a.pool.Config, b.pool.Config)
	}
	if a.pool.CostHourly != b.pool.CostHourly {
		return a.pool.CostHourly < b.pool.CostHourly
	}
	if a.pool.CostUpfront != b.pool.CostUpfront {
		return a.pool.CostUpfront < b.pool.CostUpfront
	}
	if a.pool.DurationSeconds != b.pool.DurationSeconds {
		return a.pool.DurationSeconds < b.pool.DurationSeconds
	}
	if a.pool.Count != b.pool.Count {
		return a.pool.Count > b.pool.Count
	}
	return a.index < b.index
}

package allocation

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guimove/ricover/internal/model"
)

func cfg(size, locality string, platform model.Platform, vpc bool) model.Configuration {
	return model.Configuration{
		Size:     size,
		Locality: locality,
		Tenancy:  model.TenancyDefault,
		Platform: platform,
		VPC:      vpc,
	}
}

func TestAllocate_ExactMatchPriority(t *testing.T) {
	groups := []model.RunningGroup{
		{Config: cfg("m4.xlarge", "us-east-1a", model.PlatformLinux, false), Count: 5},
	}
	pools := []model.ReservationPool{
		{Config: cfg("m4.xlarge", "us-east-1", model.PlatformLinux, false), Count: 10},  // P2
		{Config: cfg("m4.xlarge", "us-east-1a", model.PlatformLinux, false), Count: 3}, // P1
	}

	res, err := Allocate(groups, pools)
	require.NoError(t, err)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, 5, res.Matches[0].CountReserved)

	require.Len(t, res.Usage, 2)
	assert.Equal(t, 2, res.Usage[0].CountUsed, "regional pool")
	assert.Equal(t, 3, res.Usage[1].CountUsed, "zonal pool")
}

func TestAllocate_UnmatchedGroup(t *testing.T) {
	groups := []model.RunningGroup{
		{Config: cfg("r5.large", "eu-west-1b", model.PlatformLinux, true), Count: 4},
	}
	pools := []model.ReservationPool{
		{Config: cfg("m5.large", "eu-west-1", model.PlatformLinux, false), Count: 2},
	}

	res, err := Allocate(groups, pools)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Matches[0].CountReserved)
	assert.Equal(t, 4, res.Matches[0].CountOnDemand())
	assert.Equal(t, 0, res.Usage[0].CountUsed)
	assert.Equal(t, 2, res.Usage[0].CountIdle())
}

func TestAllocate_Empty(t *testing.T) {
	res, err := Allocate(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.Empty(t, res.Usage)
}

func TestAllocate_NegativeCount(t *testing.T) {
	_, err := Allocate([]model.RunningGroup{{Config: cfg("m5.large", "us-east-1a", model.PlatformLinux, false), Count: -1}}, nil)
	assert.ErrorIs(t, err, ErrNegativeCount)

	_, err = Allocate(nil, []model.ReservationPool{{Config: cfg("m5.large", "us-east-1", model.PlatformLinux, false), Count: -2}})
	assert.ErrorIs(t, err, ErrNegativeCount)
}

func TestAllocate_PoolSharedAcrossZones(t *testing.T) {
	groups := []model.RunningGroup{
		{Config: cfg("c5.large", "us-east-1a", model.PlatformLinux, true), Count: 3},
		{Config: cfg("c5.large", "us-east-1b", model.PlatformLinux, true), Count: 3},
	}
	pools := []model.ReservationPool{
		{Config: cfg("c5.large", "us-east-1", model.PlatformLinux, true), Count: 4},
	}

	res, err := Allocate(groups, pools)
	require.NoError(t, err)

	// us-east-1b reversed ("b1-...") sorts ahead of us-east-1a.
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "us-east-1b", res.Matches[0].Config.Locality)
	assert.Equal(t, 3, res.Matches[0].CountReserved)
	assert.Equal(t, "us-east-1a", res.Matches[1].Config.Locality)
	assert.Equal(t, 1, res.Matches[1].CountReserved)
	assert.Equal(t, 4, res.Usage[0].CountUsed)
}

func TestAllocate_DoesNotModifyInputs(t *testing.T) {
	groups := []model.RunningGroup{{Config: cfg("m5.large", "us-east-1a", model.PlatformLinux, false), Count: 2}}
	pools := []model.ReservationPool{{Config: cfg("m5.large", "us-east-1", model.PlatformLinux, false), Count: 5}}

	_, err := Allocate(groups, pools)
	require.NoError(t, err)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, 5, pools[0].Count)
}

func TestAllocate_StrictPoolBeforeRelaxedPool(t *testing.T) {
	tests := []struct {
		name   string
		groups []model.RunningGroup
		pools  []model.ReservationPool
	}{
		{
			name: "vpc group leaves classic pool to classic group",
			groups: []model.RunningGroup{
				{Config: cfg("m5.large", "us-east-1b", model.PlatformLinux, true), Count: 1},
				{Config: cfg("m5.large", "us-east-1a", model.PlatformLinux, false), Count: 1},
			},
			pools: []model.ReservationPool{
				{Config: cfg("m5.large", "us-east-1", model.PlatformLinux, true), Count: 1},
				{Config: cfg("m5.large", "us-east-1", model.PlatformLinux, false), Count: 1},
			},
		},
		{
			name: "exact platform preferred within the linux bucket",
			groups: []model.RunningGroup{
				{Config: cfg("m5.large", "us-east-1c", model.PlatformRHEL, false), Count: 2},
				{Config: cfg("m5.large", "us-east-1a", model.PlatformLinux, false), Count: 1},
			},
			pools: []model.ReservationPool{
				{Config: cfg("m5.large", "us-east-1", model.PlatformLinux, false), Count: 1},
				{Config: cfg("m5.large", "us-east-1", model.PlatformRHEL, false), Count: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Allocate(tt.groups, tt.pools)
			require.NoError(t, err)

			for _, m := range res.Matches {
				assert.Equal(t, m.Count, m.CountReserved, "group %s", m.Config)
			}
			for _, u := range res.Usage {
				assert.Equal(t, u.Count, u.CountUsed, "pool %s", u.Config)
			}
		})
	}
}

func TestCovers(t *testing.T) {
	linuxZone := cfg("m5.large", "us-east-1a", model.PlatformLinux, false)

	tests := []struct {
		name  string
		pool  model.Configuration
		group model.Configuration
		want  bool
	}{
		{"exact", linuxZone, linuxZone, true},
		{"regional covers zone", cfg("m5.large", "us-east-1", model.PlatformLinux, false), linuxZone, true},
		{"regional other region", cfg("m5.large", "us-west-2", model.PlatformLinux, false), linuxZone, false},
		{"other zone", cfg("m5.large", "us-east-1b", model.PlatformLinux, false), linuxZone, false},
		{"zone does not cover region", linuxZone, cfg("m5.large", "us-east-1", model.PlatformLinux, false), false},
		{"different size", cfg("m5.xlarge", "us-east-1a", model.PlatformLinux, false), linuxZone, false},
		{"different tenancy", model.Configuration{Size: "m5.large", Locality: "us-east-1a", Tenancy: model.TenancyDedicated, Platform: model.PlatformLinux}, linuxZone, false},
		{"windows never covers linux", cfg("m5.large", "us-east-1a", model.PlatformWindows, false), linuxZone, false},
		{"linux never covers windows", linuxZone, cfg("m5.large", "us-east-1a", model.PlatformWindows, false), false},
		{"suse never covers linux", cfg("m5.large", "us-east-1a", model.PlatformSUSE, false), linuxZone, false},
		{"linux bucket covers rhel", linuxZone, cfg("m5.large", "us-east-1a", model.PlatformRHEL, false), true},
		{"classic pool covers vpc group", linuxZone, cfg("m5.large", "us-east-1a", model.PlatformLinux, true), true},
		{"vpc pool does not cover classic group", cfg("m5.large", "us-east-1a", model.PlatformLinux, true), linuxZone, false},
		{"vpc pool covers vpc group", cfg("m5.large", "us-east-1", model.PlatformLinux, true), cfg("m5.large", "us-east-1c", model.PlatformLinux, true), true},
		{"local zone under regional pool", cfg("m5.large", "us-east-1", model.PlatformLinux, false), cfg("m5.large", "us-east-1-bos-1a", model.PlatformLinux, false), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Covers(tt.pool, tt.group))
		})
	}
}

func TestAllocate_PlatformKeptInOutput(t *testing.T) {
	rhel := cfg("m5.large", "us-east-1a", model.PlatformRHEL, false)
	res, err := Allocate(
		[]model.RunningGroup{{Config: rhel, Count: 1}},
		[]model.ReservationPool{{Config: cfg("m5.large", "us-east-1", model.PlatformLinux, false), Count: 1}},
	)
	require.NoError(t, err)
	assert.Equal(t, model.PlatformRHEL, res.Matches[0].Config.Platform)
	assert.Equal(t, model.PlatformLinux, res.Usage[0].Config.Platform)
}

func randomInputs(r *rand.Rand) ([]model.RunningGroup, []model.ReservationPool) {
	sizes := []string{"m5.large", "c5.xlarge"}
	zones := []string{"us-east-1a", "us-east-1b", "us-west-2a"}
	regions := []string{"us-east-1", "us-west-2"}
	platforms := []model.Platform{model.PlatformLinux, model.PlatformRHEL, model.PlatformWindows}

	seen := make(map[model.Configuration]bool)
	var groups []model.RunningGroup
	for i := 0; i < 12; i++ {
		c := cfg(sizes[r.Intn(len(sizes))], zones[r.Intn(len(zones))], platforms[r.Intn(len(platforms))], r.Intn(2) == 0)
		if seen[c] {
			continue
		}
		seen[c] = true
		groups = append(groups, model.RunningGroup{Config: c, Count: r.Intn(10)})
	}

	var pools []model.ReservationPool
	for i := 0; i < 10; i++ {
		var loc string
		if r.Intn(2) == 0 {
			loc = zones[r.Intn(len(zones))]
		} else {
			loc = regions[r.Intn(len(regions))]
		}
		pools = append(pools, model.ReservationPool{
			Config:     cfg(sizes[r.Intn(len(sizes))], loc, platforms[r.Intn(len(platforms))], r.Intn(2) == 0),
			Count:      r.Intn(8),
			CostHourly: float64(r.Intn(3)) / 10,
		})
	}
	return groups, pools
}

func TestAllocate_ConservationAndBounds(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for iter := 0; iter < 200; iter++ {
		groups, pools := randomInputs(r)
		res, err := Allocate(groups, pools)
		require.NoError(t, err)

		used := 0
		for i, u := range res.Usage {
			assert.Equal(t, pools[i].Count, u.Count)
			assert.GreaterOrEqual(t, u.CountUsed, 0)
			assert.LessOrEqual(t, u.CountUsed, u.Count)
			used += u.CountUsed
		}
		reserved := 0
		for _, m := range res.Matches {
			assert.GreaterOrEqual(t, m.CountReserved, 0)
			assert.LessOrEqual(t, m.CountReserved, m.Count)
			reserved += m.CountReserved
		}
		assert.Equal(t, used, reserved)
	}
}

func TestAllocate_DeterministicUnderReordering(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for iter := 0; iter < 100; iter++ {
		groups, pools := randomInputs(r)
		first, err := Allocate(groups, pools)
		require.NoError(t, err)

		shuffledGroups := append([]model.RunningGroup(nil), groups...)
		r.Shuffle(len(shuffledGroups), func(i, j int) {
			shuffledGroups[i], shuffledGroups[j] = shuffledGroups[j], shuffledGroups[i]
		})
		perm := r.Perm(len(pools))
		shuffledPools := make([]model.ReservationPool, len(pools))
		for i, p := range perm {
			shuffledPools[i] = pools[p]
		}

		second, err := Allocate(shuffledGroups, shuffledPools)
		require.NoError(t, err)

		assert.Equal(t, first.Matches, second.Matches)
		// Usage follows input order and identical pools are interchangeable,
		// so compare as sorted multisets.
		assert.Equal(t, sortedUsage(first.Usage), sortedUsage(second.Usage))
	}
}

func sortedUsage(in []model.ReservationUsageRecord) []model.ReservationUsageRecord {
	out := append([]model.ReservationUsageRecord(nil), in...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Config != b.Config {
			return model.Less(a.Config, b.Config)
		}
		if a.CostHourly != b.CostHourly {
			return a.CostHourly < b.CostHourly
		}
		if a.Count != b.Count {
			return a.Count < b.Count
		}
		return a.CountUsed < b.CountUsed
	})
	return out
}

func TestCheck(t *testing.T) {
	c := cfg("m5.large", "us-east-1a", model.PlatformLinux, false)

	ok := &Result{
		Matches: []model.MatchRecord{{Config: c, Count: 3, CountReserved: 2}},
		Usage:   []model.ReservationUsageRecord{{Config: c, Count: 5, CountUsed: 2}},
	}
	assert.NoError(t, Check(ok))

	tests := []struct {
		name string
		res  *Result
	}{
		{"group oversubscribed", &Result{Matches: []model.MatchRecord{{Config: c, Count: 1, CountReserved: 2}}}},
		{"pool oversubscribed", &Result{Usage: []model.ReservationUsageRecord{{Config: c, Count: 1, CountUsed: 2}}}},
		{"negative used", &Result{Usage: []model.ReservationUsageRecord{{Config: c, Count: 1, CountUsed: -1}}}},
		{"unbalanced", &Result{
			Matches: []model.MatchRecord{{Config: c, Count: 3, CountReserved: 1}},
			Usage:   []model.ReservationUsageRecord{{Config: c, Count: 3, CountUsed: 2}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var iv *InvariantViolation
			assert.ErrorAs(t, Check(tt.res), &iv)
		})
	}
}

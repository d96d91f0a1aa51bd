package normalize

import (
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guimove/ricover/internal/model"
)

func TestPlatform(t *testing.T) {
	tests := []struct {
		raw  string
		want model.Platform
	}{
		{"Linux/UNIX", model.PlatformLinux},
		{"Linux/UNIX (Amazon VPC)", model.PlatformLinux},
		{"SUSE Linux", model.PlatformSUSE},
		{"SUSE Linux (Amazon VPC)", model.PlatformSUSE},
		{"Red Hat Enterprise Linux", model.PlatformRHEL},
		{"Red Hat Enterprise Linux (Amazon VPC)", model.PlatformRHEL},
		{"Windows", model.PlatformWindows},
		{"windows", model.PlatformWindows},
		{"windows (Amazon VPC)", model.PlatformWindows},
		{"Windows with SQL Server Standard", model.PlatformWindows},
		{"windows with SQL Server Web (Amazon VPC)", model.PlatformWindows},
		{"Windows with SQL Server Enterprise (Amazon VPC)", model.PlatformWindows},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Platform(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlatform_Unknown(t *testing.T) {
	for _, raw := range []string{"", "BeOS", "Windows BYOL"} {
		_, err := Platform(raw)
		var upe *UnknownPlatformError
		require.Error(t, err)
		assert.True(t, errors.As(err, &upe), "raw %q", raw)
		assert.Equal(t, raw, upe.Raw)
	}
}

func TestRegionOf(t *testing.T) {
	region, err := RegionOf("us-east-1a")
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", region)

	region, err = RegionOf("eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", region)

	_, err = RegionOf("use1-az1")
	assert.Error(t, err)
}

func TestInstance(t *testing.T) {
	cfg, err := Instance(model.RawInstance{
		InstanceID:       "i-1",
		InstanceType:     "m4.xlarge",
		AvailabilityZone: "us-east-1a",
		Tenancy:          "default",
		VPCID:            "vpc-123",
	})
	require.NoError(t, err)
	assert.Equal(t, model.Configuration{
		Size:     "m4.xlarge",
		Locality: "us-east-1a",
		Tenancy:  model.TenancyDefault,
		Platform: model.PlatformLinux,
		VPC:      true,
	}, cfg)
}

func TestInstance_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  model.RawInstance
	}{
		{"missing type", model.RawInstance{AvailabilityZone: "us-east-1a"}},
		{"region locality", model.RawInstance{InstanceType: "m5.large", AvailabilityZone: "us-east-1"}},
		{"bad tenancy", model.RawInstance{InstanceType: "m5.large", AvailabilityZone: "us-east-1a", Tenancy: "shared-ish"}},
		{"unknown platform", model.RawInstance{InstanceType: "m5.large", AvailabilityZone: "us-east-1a", Platform: "Plan9"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Instance(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestReservation(t *testing.T) {
	zonal, err := Reservation(model.RawReservation{
		InstanceType:       "m4.xlarge",
		AvailabilityZone:   "us-east-1b",
		Scope:              model.ReservationScopeZone,
		Tenancy:            "default",
		ProductDescription: "Linux/UNIX (Amazon VPC)",
		FixedPrice:         500,
		RecurringHourly:    0.02,
		Count:              3,
		DurationSeconds:    31536000,
	}, "us-east-1")
	require.NoError(t, err)
	assert.Equal(t, "us-east-1b", zonal.Config.Locality)
	assert.True(t, zonal.Config.VPC)
	assert.Equal(t, 3, zonal.Count)
	assert.Equal(t, 500.0, zonal.CostUpfront)
	assert.Equal(t, 0.02, zonal.CostHourly)

	regional, err := Reservation(model.RawReservation{
		InstanceType:       "m4.xlarge",
		Scope:              model.ReservationScopeRegion,
		ProductDescription: "Windows",
		Count:              2,
	}, "us-east-1")
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", regional.Config.Locality)
	assert.True(t, regional.Config.IsRegional())
	assert.False(t, regional.Config.VPC)
	assert.Equal(t, model.PlatformWindows, regional.Config.Platform)
	assert.Equal(t, model.TenancyDefault, regional.Config.Tenancy)
}

func TestReservation_RegionFromZone(t *testing.T) {
	pool, err := Reservation(model.RawReservation{
		InstanceType:       "c5.large",
		AvailabilityZone:   "eu-west-1c",
		Scope:              model.ReservationScopeRegion,
		ProductDescription: "Linux/UNIX",
		Count:              1,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", pool.Config.Locality)
}

func TestReservation_Errors(t *testing.T) {
	_, err := Reservation(model.RawReservation{InstanceType: "m5.large", ProductDescription: "Linux/UNIX", Count: 0}, "us-east-1")
	assert.ErrorIs(t, err, ErrInvalidCount)

	_, err = Reservation(model.RawReservation{InstanceType: "m5.large", ProductDescription: "Linux/UNIX", Count: 1}, "")
	assert.ErrorIs(t, err, ErrMissingLocality)

	_, err = Reservation(model.RawReservation{InstanceType: "m5.large", ProductDescription: "Amiga OS", Count: 1}, "us-east-1")
	var upe *UnknownPlatformError
	assert.ErrorAs(t, err, &upe)
}

func TestGroups(t *testing.T) {
	raws := []model.RawInstance{
		{InstanceID: "i-1", InstanceType: "m5.large", AvailabilityZone: "us-east-1a", State: "running", VPCID: "vpc-1"},
		{InstanceID: "i-2", InstanceType: "m5.large", AvailabilityZone: "us-east-1a", State: "pending", VPCID: "vpc-2"},
		{InstanceID: "i-3", InstanceType: "m5.large", AvailabilityZone: "us-east-1a", State: "running"},
		{InstanceID: "i-4", InstanceType: "m5.large", AvailabilityZone: "us-east-1a", State: "stopped", VPCID: "vpc-1"},
		{InstanceID: "i-5", InstanceType: "m5.large", AvailabilityZone: "us-east-1a", Lifecycle: "spot", VPCID: "vpc-1"},
		{InstanceID: "i-6", InstanceType: "m5.large", AvailabilityZone: "us-east-1a", Tenancy: "host", VPCID: "vpc-1"},
		{InstanceID: "i-7", InstanceType: "m5.large", AvailabilityZone: "us-east-1a", Platform: "OS/2"},
		{InstanceID: "i-8", InstanceType: "c5.xlarge", AvailabilityZone: "us-east-1b", Platform: "windows", VPCID: "vpc-1"},
	}

	groups, errs := Groups(raws, logr.Discard())

	require.Len(t, errs, 1)
	var rerr *RecordError
	require.ErrorAs(t, errs[0], &rerr)
	assert.Equal(t, "i-7", rerr.Subject)
	var upe *UnknownPlatformError
	assert.ErrorAs(t, errs[0], &upe)

	require.Len(t, groups, 3)
	// Sorted by size first.
	assert.Equal(t, "c5.xlarge", groups[0].Config.Size)
	assert.Equal(t, model.PlatformWindows, groups[0].Config.Platform)
	assert.Equal(t, 1, groups[0].Count)
	assert.False(t, groups[1].Config.VPC)
	assert.Equal(t, 1, groups[1].Count)
	assert.True(t, groups[2].Config.VPC)
	assert.Equal(t, 2, groups[2].Count)
}

func TestPools(t *testing.T) {
	raws := []model.RawReservation{
		{ReservationID: "r-1", InstanceType: "m5.large", Scope: model.ReservationScopeRegion, ProductDescription: "Linux/UNIX", Count: 4, State: "active"},
		{ReservationID: "r-2", InstanceType: "m5.large", Scope: model.ReservationScopeRegion, ProductDescription: "Linux/UNIX", Count: 4, State: "retired"},
		{ReservationID: "r-3", InstanceType: "m5.large", Scope: model.ReservationScopeRegion, ProductDescription: "Solaris", Count: 1, State: "active"},
		{ReservationID: "r-4", InstanceType: "m5.large", AvailabilityZone: "us-east-1c", Scope: model.ReservationScopeZone, ProductDescription: "SUSE Linux", Count: 2},
	}

	pools, errs := Pools(raws, "us-east-1", logr.Discard())

	require.Len(t, errs, 1)
	require.Len(t, pools, 2)
	assert.Equal(t, "us-east-1", pools[0].Config.Locality)
	assert.Equal(t, 4, pools[0].Count)
	assert.Equal(t, "us-east-1c", pools[1].Config.Locality)
	assert.Equal(t, model.PlatformSUSE, pools[1].Config.Platform)
}

func TestPools_CoalescesRepeatedPurchases(t *testing.T) {
	zonal := func(id string, count int, hourly float64) model.RawReservation {
		return model.RawReservation{
			ReservationID: id, InstanceType: "m5.large", AvailabilityZone: "us-east-1a",
			Scope: model.ReservationScopeZone, ProductDescription: "Linux/UNIX", Count: count, RecurringHourly: hourly,
		}
	}
	raws := []model.RawReservation{
		zonal("r-1", 2, 0.1),
		{ReservationID: "r-2", InstanceType: "m5.large", Scope: model.ReservationScopeRegion, ProductDescription: "Linux/UNIX", Count: 2, RecurringHourly: 0.1},
		zonal("r-3", 2, 0.1),
		zonal("r-4", 1, 0.08),
	}

	pools, errs := Pools(raws, "us-east-1", logr.Discard())
	require.Empty(t, errs)
	require.Len(t, pools, 3)

	assert.Equal(t, "us-east-1", pools[0].Config.Locality)
	assert.Equal(t, 2, pools[0].Count)
	assert.Equal(t, 0.08, pools[1].CostHourly)
	assert.Equal(t, 1, pools[1].Count)
	assert.Equal(t, 0.1, pools[2].CostHourly)
	assert.Equal(t, 4, pools[2].Count)

	reversed := []model.RawReservation{raws[3], raws[2], raws[1], raws[0]}
	again, _ := Pools(reversed, "us-east-1", logr.Discard())
	assert.Equal(t, pools, again)
}

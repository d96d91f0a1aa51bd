// Package normalize turns raw provider records into comparable
// configurations: running groups for instances and pools for reservations.
package normalize

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-logr/logr"

	"github.com/guimove/ricover/internal/model"
)

var (
	ErrMissingSize     = errors.New("instance type is empty")
	ErrNotZonal        = errors.New("running instance locality must be an availability zone")
	ErrUnknownTenancy  = errors.New("unknown tenancy")
	ErrInvalidCount    = errors.New("reservation count must be positive")
	ErrMissingLocality = errors.New("reservation has neither zone nor region")
)

// defaultPlatform is what EC2 reports an absent instance platform as.
const defaultPlatform = "Linux/UNIX"

func tenancy(raw string) (string, error) {
	switch raw {
	case "", model.TenancyDefault:
		return model.TenancyDefault, nil
	case model.TenancyDedicated, model.TenancyHost:
		return raw, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownTenancy, raw)
}

// Instance builds the configuration of a running instance. Its locality is
// always the zone it runs in.
func Instance(raw model.RawInstance) (model.Configuration, error) {
	if raw.InstanceType == "" {
		return model.Configuration{}, ErrMissingSize
	}

	_, zonal, err := model.ParseLocality(raw.AvailabilityZone)
	if err != nil {
		return model.Configuration{}, err
	}
	if !zonal {
		return model.Configuration{}, fmt.Errorf("%w: %q", ErrNotZonal, raw.AvailabilityZone)
	}

	ten, err := tenancy(raw.Tenancy)
	if err != nil {
		return model.Configuration{}, err
	}

	platform := raw.Platform
	if platform == "" {
		platform = defaultPlatform
	}
	p, err := Platform(platform)
	if err != nil {
		return model.Configuration{}, err
	}

	return model.Configuration{
		Size:     raw.InstanceType,
		Locality: raw.AvailabilityZone,
		Tenancy:  ten,
		Platform: p,
		VPC:      raw.VPCID != "",
	}, nil
}

// Reservation builds the pool for a reserved instance purchase made in
// region. Zonal reservations keep their zone; all others are scoped to the
// region.
func Reservation(raw model.RawReservation, region string) (model.ReservationPool, error) {
	if raw.InstanceType == "" {
		return model.ReservationPool{}, ErrMissingSize
	}
	if raw.Count <= 0 {
		return model.ReservationPool{}, fmt.Errorf("%w: %d", ErrInvalidCount, raw.Count)
	}

	ten, err := tenancy(raw.Tenancy)
	if err != nil {
		return model.ReservationPool{}, err
	}
	p, err := Platform(raw.ProductDescription)
	if err != nil {
		return model.ReservationPool{}, err
	}

	locality, err := reservationLocality(raw, region)
	if err != nil {
		return model.ReservationPool{}, err
	}

	return model.ReservationPool{
		Config: model.Configuration{
			Size:     raw.InstanceType,
			Locality: locality,
			Tenancy:  ten,
			Platform: p,
			VPC:      model.IsVPCProduct(raw.ProductDescription),
		},
		Count:           raw.Count,
		CostHourly:      raw.RecurringHourly,
		CostUpfront:     raw.FixedPrice,
		DurationSeconds: raw.DurationSeconds,
	}, nil
}

func reservationLocality(raw model.RawReservation, region string) (string, error) {
	if raw.Scope == model.ReservationScopeZone {
		_, zonal, err := model.ParseLocality(raw.AvailabilityZone)
		if err != nil {
			return "", err
		}
		if !zonal {
			return "", fmt.Errorf("zonal reservation without a zone: %q", raw.AvailabilityZone)
		}
		return raw.AvailabilityZone, nil
	}

	if region != "" {
		return RegionOf(region)
	}
	if raw.AvailabilityZone != "" {
		return RegionOf(raw.AvailabilityZone)
	}
	return "", ErrMissingLocality
}

// billable reports whether a raw instance is running on-demand capacity that
// a reservation could cover.
func billable(raw model.RawInstance) bool {
	switch raw.State {
	case "", "pending", "running":
	default:
		return false
	}
	switch raw.Lifecycle {
	case "", "on-demand", "ondemand":
	default:
		return false
	}
	switch raw.Tenancy {
	case "", model.TenancyDefault, model.TenancyDedicated:
	default:
		return false
	}
	return true
}

// Groups buckets billable running instances into running groups. Records
// that fail to normalize are logged and returned as errors; they never stop
// the remaining records from being grouped.
func Groups(raws []model.RawInstance, log logr.Logger) ([]model.RunningGroup, []error) {
	counts := make(map[model.Configuration]int)
	var errs []error

	for _, raw := range raws {
		if !billable(raw) {
			log.V(1).Info("skipping non-billable instance",
				"instance", raw.InstanceID, "state", raw.State, "lifecycle", raw.Lifecycle, "tenancy", raw.Tenancy)
			continue
		}
		cfg, err := Instance(raw)
		if err != nil {
			rerr := &RecordError{Kind: "instance", Subject: subject(raw.InstanceID, raw.InstanceType), Err: err}
			log.Error(err, "excluding instance", "instance", raw.InstanceID, "type", raw.InstanceType)
			errs = append(errs, rerr)
			continue
		}
		counts[cfg]++
	}

	groups := make([]model.RunningGroup, 0, len(counts))
	for cfg, n := range counts {
		groups = append(groups, model.RunningGroup{Config: cfg, Count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		return model.Less(groups[i].Config, groups[j].Config)
	})
	return groups, errs
}

// Pools converts active reservations bought in region into pools. Records
// with the same configuration and unit costs are summed into one pool, and
// the result is ordered by Coalesce.
func Pools(raws []model.RawReservation, region string, log logr.Logger) ([]model.ReservationPool, []error) {
	var (
		pools []model.ReservationPool
		errs  []error
	)

	for _, raw := range raws {
		if raw.State != "" && raw.State != "active" {
			log.V(1).Info("skipping inactive reservation", "reservation", raw.ReservationID, "state", raw.State)
			continue
		}
		pool, err := Reservation(raw, region)
		if err != nil {
			rerr := &RecordError{Kind: "reservation", Subject: subject(raw.ReservationID, raw.InstanceType), Err: err}
			log.Error(err, "excluding reservation", "reservation", raw.ReservationID, "type", raw.InstanceType)
			errs = append(errs, rerr)
			continue
		}
		pools = append(pools, pool)
	}
	return Coalesce(pools), errs
}

// poolKey identifies interchangeable pools: same configuration and same unit
// costs.
type poolKey struct {
	config   model.Configuration
	hourly   float64
	upfront  float64
	duration int64
}

func keyOf(p model.ReservationPool) poolKey {
	return poolKey{p.Config, p.CostHourly, p.CostUpfront, p.DurationSeconds}
}

// Coalesce sums pools that share a configuration and unit costs. The output
// is sorted by configuration, then hourly, upfront and term, so any ordering
// of the same pools coalesces to the same list.
func Coalesce(pools []model.ReservationPool) []model.ReservationPool {
	counts := make(map[poolKey]int, len(pools))
	for _, p := range pools {
		counts[keyOf(p)] += p.Count
	}

	out := make([]model.ReservationPool, 0, len(counts))
	for k, n := range counts {
		out = append(out, model.ReservationPool{
			Config:          k.config,
			Count:           n,
			CostHourly:      k.hourly,
			CostUpfront:     k.upfront,
			DurationSeconds: k.duration,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := keyOf(out[i]), keyOf(out[j])
		if a.config != b.config {
			return model.Less(a.config, b.config)
		}
		if a.hourly != b.hourly {
			return a.hourly < b.hourly
		}
		if a.upfront != b.upfront {
			return a.upfront < b.upfront
		}
		return a.duration < b.duration
	})
	return out
}

func subject(id, instanceType string) string {
	if id == "" {
		return instanceType
	}
	return id
}

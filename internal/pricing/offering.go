package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/guimove/ricover/internal/model"
)

// ErrNoRegionSource is returned by RegionalSources for a region it has no
// source for.
var ErrNoRegionSource = errors.New("no offering source for region")

// Offering is one purchasable reservation offering.
type Offering struct {
	ID              string  `json:"id,omitempty"`
	FixedPrice      float64 `json:"fixed_price"`
	DurationSeconds int64   `json:"duration_seconds"`
	RecurringHourly float64 `json:"recurring_hourly"`
	OfferingClass   string  `json:"offering_class,omitempty"`
	OfferingType    string  `json:"offering_type,omitempty"`
}

// HourlyCost amortises the fixed price over the term and adds the recurring
// hourly charge.
func (o Offering) HourlyCost() float64 {
	if o.DurationSeconds <= 0 {
		return o.RecurringHourly
	}
	return o.FixedPrice/(float64(o.DurationSeconds)/3600) + o.RecurringHourly
}

// OfferingQuery selects offerings for one configuration. Locality does not
// narrow offerings beyond the region.
type OfferingQuery struct {
	Region   string
	Size     string
	Tenancy  string
	Platform model.Platform
	VPC      bool
}

// QueryFor builds the offering query of a configuration.
func QueryFor(cfg model.Configuration) OfferingQuery {
	return OfferingQuery{
		Region:   cfg.Region(),
		Size:     cfg.Size,
		Tenancy:  cfg.Tenancy,
		Platform: cfg.Platform,
		VPC:      cfg.VPC,
	}
}

// ProductDescription returns the EC2 product description to query.
func (q OfferingQuery) ProductDescription() string {
	return q.Platform.ProductDescription(q.VPC)
}

// OfferingSource lists purchasable reservation offerings. Implementations
// return *RateLimitedError for throttled requests.
type OfferingSource interface {
	Offerings(ctx context.Context, q OfferingQuery) ([]Offering, error)
}

// RegionalSources dispatches queries to a per-region source.
type RegionalSources map[string]OfferingSource

// Offerings implements OfferingSource.
func (r RegionalSources) Offerings(ctx context.Context, q OfferingQuery) ([]Offering, error) {
	src, ok := r[q.Region]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoRegionSource, q.Region)
	}
	return src.Offerings(ctx, q)
}

// bestWorst returns the minimum and maximum hourly cost over offerings.
func bestWorst(offerings []Offering) (best, worst float64, ok bool) {
	for i, o := range offerings {
		c := o.HourlyCost()
		if i == 0 || c < best {
			best = c
		}
		if i == 0 || c > worst {
			worst = c
		}
	}
	return best, worst, len(offerings) > 0
}

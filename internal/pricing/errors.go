package pricing

import (
	"fmt"

	"github.com/guimove/ricover/internal/model"
)

// PriceNotFoundError is returned when the on-demand catalog has no entry for a
// configuration. Such configurations are reported without cost columns.
type PriceNotFoundError struct {
	Config model.Configuration
	Region string
}

func (e *PriceNotFoundError) Error() string {
	return fmt.Sprintf("no on-demand price for %s %s %s in %s",
		e.Config.Size, e.Config.Tenancy, e.Config.Platform, e.Region)
}

// RateLimitedError wraps a provider error caused by API throttling. Lookups
// failing with it are retried.
type RateLimitedError struct {
	Err error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// OfferingsUnavailableError is returned when reserved offerings for a
// configuration could not be retrieved. The on-demand price is still known.
type OfferingsUnavailableError struct {
	Config model.Configuration
	Err    error
}

func (e *OfferingsUnavailableError) Error() string {
	return fmt.Sprintf("offerings for %s: %v", e.Config, e.Err)
}

func (e *OfferingsUnavailableError) Unwrap() error { return e.Err }

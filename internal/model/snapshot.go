package model

import (
	"fmt"
	"time"
)

// Scope identifies one retrieval pass: an account reached through a profile,
// in one region.
type Scope struct {
	Account string `json:"account"`
	Profile string `json:"profile,omitempty"`
	Region  string `json:"region"`
}

// String renders the scope as "account/region".
func (s Scope) String() string {
	account := s.Account
	if account == "" {
		account = s.Profile
	}
	if account == "" {
		account = "default"
	}
	return fmt.Sprintf("%s/%s", account, s.Region)
}

// RawInstance is an instance as reported by the inventory provider, before
// normalization.
type RawInstance struct {
	InstanceID       string `json:"instance_id,omitempty"`
	InstanceType     string `json:"instance_type"`
	AvailabilityZone string `json:"availability_zone"`
	Tenancy          string `json:"tenancy"`
	Platform         string `json:"platform,omitempty"` // empty means Linux/UNIX
	VPCID            string `json:"vpc_id,omitempty"`
	Lifecycle        string `json:"lifecycle,omitempty"` // empty means on-demand
	State            string `json:"state,omitempty"`
}

// RawReservation is a reserved instance purchase as reported by the provider.
type RawReservation struct {
	ReservationID      string  `json:"reservation_id,omitempty"`
	InstanceType       string  `json:"instance_type"`
	AvailabilityZone   string  `json:"availability_zone,omitempty"`
	Scope              string  `json:"scope"` // "Availability Zone" or "Region"
	Tenancy            string  `json:"tenancy"`
	ProductDescription string  `json:"product_description"`
	FixedPrice         float64 `json:"fixed_price"`
	RecurringHourly    float64 `json:"recurring_hourly"`
	Count              int     `json:"count"`
	DurationSeconds    int64   `json:"duration_seconds,omitempty"`
	State              string  `json:"state,omitempty"`
}

// Reservation scopes as reported by EC2.
const (
	ReservationScopeZone   = "Availability Zone"
	ReservationScopeRegion = "Region"
)

// Snapshot is the raw inventory of one scope at a point in time.
type Snapshot struct {
	Scope        Scope            `json:"scope"`
	CollectedAt  time.Time        `json:"collected_at"`
	Instances    []RawInstance    `json:"instances"`
	Reservations []RawReservation `json:"reservations"`
}

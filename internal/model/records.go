package model

// RunningGroup counts the running, on-demand billed units sharing one
// configuration in an inventory snapshot.
type RunningGroup struct {
	Config Configuration `json:"configuration"`
	Count  int           `json:"count"`
}

// ReservationPool is a block of purchased capacity for one configuration.
type ReservationPool struct {
	Config      Configuration `json:"configuration"`
	Count       int           `json:"count"`
	CostHourly  float64       `json:"cost_hourly"`
	CostUpfront float64       `json:"cost_upfront"`

	// Term length, used to amortise the upfront cost. Zero when unknown.
	DurationSeconds int64 `json:"duration_seconds,omitempty"`
}

// PricedOffering holds the hourly prices known for a configuration.
type PricedOffering struct {
	Config            Configuration `json:"configuration"`
	CostOnDemand      float64       `json:"cost_ondemand"`
	CostReservedBest  float64       `json:"cost_reserved_best"`
	CostReservedWorst float64       `json:"cost_reserved_worst"`

	// HasReserved is false when no purchasable offering exists; the reserved
	// columns are then meaningless.
	HasReserved bool `json:"has_reserved"`
}

// MatchRecord reports how many running units of a configuration exist and how
// many of them are covered by a reservation.
type MatchRecord struct {
	Config        Configuration   `json:"configuration"`
	Count         int             `json:"count"`
	CountReserved int             `json:"count_reserved"`
	Offering      *PricedOffering `json:"offering,omitempty"`
}

// CountOnDemand returns the units billed at on-demand rates.
func (m MatchRecord) CountOnDemand() int {
	return m.Count - m.CountReserved
}

// ReservationUsageRecord reports how many units of a reservation pool exist
// and how many were consumed by running capacity.
type ReservationUsageRecord struct {
	Config          Configuration `json:"configuration"`
	Count           int           `json:"count"`
	CountUsed       int           `json:"count_used"`
	CostHourly      float64       `json:"cost_hourly"`
	CostUpfront     float64       `json:"cost_upfront"`
	DurationSeconds int64         `json:"duration_seconds,omitempty"`
}

// CountIdle returns the reserved units nothing ran on.
func (r ReservationUsageRecord) CountIdle() int {
	return r.Count - r.CountUsed
}

// Exclusion records an input left out of the reconciliation and why.
type Exclusion struct {
	Kind    string `json:"kind"` // "instance", "reservation", "price", "offerings", "match"
	Subject string `json:"subject"`
	Reason  string `json:"reason"`
}

// Reconciliation is the final output of one run.
type Reconciliation struct {
	Label    string                   `json:"label"`
	Scopes   []Scope                  `json:"scopes"`
	Matches  []MatchRecord            `json:"matches"`
	Usage    []ReservationUsageRecord `json:"reservation_usage"`
	Excluded []Exclusion              `json:"excluded,omitempty"`
	Summary  Summary                  `json:"summary"`
}

package model

// HoursPerMonth is the billing month used for every monthly figure.
const HoursPerMonth = 720

// DefaultTermSeconds is the reservation term assumed when a pool does not
// report one.
const DefaultTermSeconds int64 = 365 * 24 * 3600

// MatchCost is the monthly cost picture of one match record.
type MatchCost struct {
	Config Configuration `json:"configuration"`
	Priced bool          `json:"priced"`

	// Cost of the units billed on demand.
	MonthlyOnDemand float64 `json:"monthly_ondemand"`
	// Cost of those same units had they been reserved.
	MonthlyReservedBest  float64 `json:"monthly_reserved_best"`
	MonthlyReservedWorst float64 `json:"monthly_reserved_worst"`
	// 1 - reserved/ondemand.
	SavingsBest  float64 `json:"savings_best"`
	SavingsWorst float64 `json:"savings_worst"`
}

// UsageCost is the monthly cost picture of one reservation usage record.
type UsageCost struct {
	Config          Configuration `json:"configuration"`
	EffectiveHourly float64       `json:"effective_hourly"`
	MonthlyIdleLoss float64       `json:"monthly_idle_loss"`
}

// Summary holds the totals derived from a reconciliation.
type Summary struct {
	RunningUnits  int `json:"running_units"`
	CoveredUnits  int `json:"covered_units"`
	OnDemandUnits int `json:"ondemand_units"`
	ReservedUnits int `json:"reserved_units"`
	IdleUnits     int `json:"idle_units"`

	MonthlyOnDemand     float64 `json:"monthly_ondemand"`
	MonthlySavingsBest  float64 `json:"monthly_savings_best"`
	MonthlySavingsWorst float64 `json:"monthly_savings_worst"`
	MonthlyIdleLoss     float64 `json:"monthly_idle_loss"`

	Matches      []MatchCost `json:"matches,omitempty"`
	Reservations []UsageCost `json:"reservations,omitempty"`
}

// EffectiveHourly amortises the upfront cost of a reservation over its term
// and adds the recurring hourly charge.
func EffectiveHourly(upfront, hourly float64, durationSeconds int64) float64 {
	if durationSeconds <= 0 {
		durationSeconds = DefaultTermSeconds
	}
	return upfront/(float64(durationSeconds)/3600) + hourly
}

// Summarize derives per-record and total monthly costs. Match records without
// a priced offering contribute counts only.
func Summarize(matches []MatchRecord, usage []ReservationUsageRecord) Summary {
	var s Summary

	for _, m := range matches {
		s.RunningUnits += m.Count
		s.CoveredUnits += m.CountReserved
		s.OnDemandUnits += m.CountOnDemand()

		mc := MatchCost{Config: m.Config}
		if m.Offering != nil {
			mc.Priced = true
			units := float64(m.CountOnDemand())
			od := m.Offering.CostOnDemand
			mc.MonthlyOnDemand = units * od * HoursPerMonth
			s.MonthlyOnDemand += mc.MonthlyOnDemand

			if m.Offering.HasReserved {
				mc.MonthlyReservedBest = units * m.Offering.CostReservedBest * HoursPerMonth
				mc.MonthlyReservedWorst = units * m.Offering.CostReservedWorst * HoursPerMonth
				mc.SavingsBest = savingsRatio(m.Offering.CostReservedBest, od)
				mc.SavingsWorst = savingsRatio(m.Offering.CostReservedWorst, od)
				s.MonthlySavingsBest += mc.MonthlyOnDemand - mc.MonthlyReservedBest
				s.MonthlySavingsWorst += mc.MonthlyOnDemand - mc.MonthlyReservedWorst
			}
		}
		s.Matches = append(s.Matches, mc)
	}

	for _, u := range usage {
		s.ReservedUnits += u.Count
		s.IdleUnits += u.CountIdle()

		uc := UsageCost{
			Config:          u.Config,
			EffectiveHourly: EffectiveHourly(u.CostUpfront, u.CostHourly, u.DurationSeconds),
		}
		uc.MonthlyIdleLoss = float64(u.CountIdle()) * uc.EffectiveHourly * HoursPerMonth
		s.MonthlyIdleLoss += uc.MonthlyIdleLoss
		s.Reservations = append(s.Reservations, uc)
	}

	return s
}

func savingsRatio(reserved, ondemand float64) float64 {
	if ondemand <= 0 {
		return 0
	}
	return 1 - reserved/ondemand
}

package allocation

import (
	"fmt"

	"github.com/guimove/ricover/internal/model"
)

// InvariantViolation reports allocator output that cannot be correct. It
// always indicates a defect and the run must not produce output.
type InvariantViolation struct {
	Config model.Configuration
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("allocation invariant violated for %s: %s", e.Config, e.Reason)
}

// Check verifies that no group or pool is oversubscribed and that every unit
// taken from a pool was credited to a group.
func Check(res *Result) error {
	reserved := 0
	for _, m := range res.Matches {
		if m.CountReserved < 0 || m.CountReserved > m.Count {
			return &InvariantViolation{
				Config: m.Config,
				Reason: fmt.Sprintf("count_reserved %d outside [0, %d]", m.CountReserved, m.Count),
			}
		}
		reserved += m.CountReserved
	}

	used := 0
	for _, u := range res.Usage {
		if u.CountUsed < 0 || u.CountUsed > u.Count {
			return &InvariantViolation{
				Config: u.Config,
				Reason: fmt.Sprintf("count_used %d outside [0, %d]", u.CountUsed, u.Count),
			}
		}
		used += u.CountUsed
	}

	if used != reserved {
		return &InvariantViolation{
			Reason: fmt.Sprintf("%d reserved units used but %d credited to running groups", used, reserved),
		}
	}
	return nil
}

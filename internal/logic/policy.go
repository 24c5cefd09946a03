package logic

import (
	"math"

	"github.com/sweeney/irrigator/internal/mathx"
)

const (
	// KnobMax is the full-scale knob reading.
	KnobMax = 1023

	// StartupDelay is the time a pump needs before water reaches the outlet.
	StartupDelay Seconds = 10

	// DefaultSoilCeiling bounds the soil policy rest interval (20 minutes).
	DefaultSoilCeiling Seconds = 1200

	// DaySeconds is the length of the budget period.
	DaySeconds Seconds = 86400

	DefaultMaxDailyLiters  = 50.0
	DefaultLitersPerSecond = 0.05
)

// PolicyKind selects the rest interval calculator.
type PolicyKind string

const (
	PolicySoil   PolicyKind = "SOIL"
	PolicyBudget PolicyKind = "BUDGET"
)

// Policy is a tagged variant holding only the numeric parameters of the
// selected calculator.
type Policy struct {
	Kind PolicyKind

	// Soil
	Ceiling Seconds

	// Budget
	MaxDailyLiters float64
	LitersPerSec   float64
}

// SoilPolicy returns a soil-threshold policy with the given ceiling.
// A zero ceiling selects DefaultSoilCeiling.
func SoilPolicy(ceiling Seconds) Policy {
	if ceiling == 0 {
		ceiling = DefaultSoilCeiling
	}
	return Policy{Kind: PolicySoil, Ceiling: ceiling}
}

// BudgetPolicy returns a daily-water-budget policy.
func BudgetPolicy(maxDailyLiters, litersPerSec float64) Policy {
	return Policy{Kind: PolicyBudget, MaxDailyLiters: maxDailyLiters, LitersPerSec: litersPerSec}
}

// ClampCyclePeriod applies the construction rule for the cycle period: a
// period that leaves no delivery time after StartupDelay becomes twice the delay.
func ClampCyclePeriod(requested Seconds) Seconds {
	if int64(requested)-int64(StartupDelay) > 0 {
		return requested
	}
	return 2 * StartupDelay
}

// RestInterval derives the minimum rest time between automatic cycles from
// the knob level.
func (p Policy) RestInterval(knob int, cycle Seconds) Seconds {
	knob = mathx.Clamp(knob, 0, KnobMax)
	switch p.Kind {
	case PolicyBudget:
		return p.budgetInterval(knob, cycle)
	default:
		return p.soilInterval(knob, cycle)
	}
}

func (p Policy) soilInterval(knob int, cycle Seconds) Seconds {
	ceiling := p.Ceiling
	if ceiling == 0 {
		ceiling = DefaultSoilCeiling
	}
	lo := 2 * int64(cycle)
	hi := mathx.Max(int64(ceiling)-int64(cycle), lo)
	return Seconds(mathx.Map(int64(knob), 0, KnobMax, lo, hi))
}

// PerCycleLiters is the volume delivered by one full automatic cycle.
func (p Policy) PerCycleLiters(cycle Seconds) float64 {
	if p.Kind != PolicyBudget {
		return 0
	}
	return float64(int64(cycle)-int64(StartupDelay)) * p.LitersPerSec
}

// volumes returns the per-cycle and maximum daily volume in centilitres.
// The maximum is never below one cycle.
func (p Policy) volumes(cycle Seconds) (perCycle, maxDaily int64) {
	perCycle = int64(math.Round(p.PerCycleLiters(cycle) * 100))
	maxDaily = mathx.Max(int64(math.Round(p.MaxDailyLiters*100)), perCycle)
	return perCycle, maxDaily
}

// DailyLiters is the daily target volume selected by the knob. It is zero
// for non-budget policies.
func (p Policy) DailyLiters(knob int, cycle Seconds) float64 {
	if p.Kind != PolicyBudget {
		return 0
	}
	perCycle, maxDaily := p.volumes(cycle)
	knob = mathx.Clamp(knob, 0, KnobMax)
	return float64(mathx.Map(int64(knob), 0, KnobMax, maxDaily, perCycle)) / 100
}

func (p Policy) budgetInterval(knob int, cycle Seconds) Seconds {
	perCycle, maxDaily := p.volumes(cycle)
	if perCycle <= 0 {
		return DaySeconds
	}
	daily := mathx.Map(int64(knob), 0, KnobMax, maxDaily, perCycle)
	interval := int64(DaySeconds) * perCycle / daily
	return Seconds(mathx.Max(interval, int64(cycle)))
}

package logic

import (
	"math"
	"testing"
)

func TestClampCyclePeriod(t *testing.T) {
	tests := []struct {
		requested, want Seconds
	}{
		{30, 30},
		{11, 11},
		{10, 20},
		{5, 20},
		{0, 20},
	}
	for _, tt := range tests {
		if got := ClampCyclePeriod(tt.requested); got != tt.want {
			t.Errorf("ClampCyclePeriod(%d): got %d, want %d", tt.requested, got, tt.want)
		}
	}
}

func TestSoilPolicyEndpoints(t *testing.T) {
	p := SoilPolicy(0)
	if p.Ceiling != DefaultSoilCeiling {
		t.Fatalf("expected default ceiling, got %d", p.Ceiling)
	}

	if got := p.RestInterval(0, 30); got != 60 {
		t.Errorf("knob=0: got %d, want 60", got)
	}
	if got := p.RestInterval(KnobMax, 30); got != 1170 {
		t.Errorf("knob=1023: got %d, want 1170", got)
	}
}

func TestSoilPolicyMonotonic(t *testing.T) {
	p := SoilPolicy(0)
	prev := p.RestInterval(0, 30)
	for knob := 1; knob <= KnobMax; knob++ {
		got := p.RestInterval(knob, 30)
		if got < prev {
			t.Fatalf("knob=%d: interval %d decreased from %d", knob, got, prev)
		}
		if got < 60 {
			t.Fatalf("knob=%d: interval %d below 2*cycle", knob, got)
		}
		prev = got
	}
}

func TestSoilPolicyLongCycleKeepsFloor(t *testing.T) {
	// 1200-500 < 2*500, so the range collapses onto 2*cycle.
	p := SoilPolicy(0)
	for _, knob := range []int{0, 512, KnobMax} {
		if got := p.RestInterval(knob, 500); got != 1000 {
			t.Errorf("knob=%d: got %d, want 1000", knob, got)
		}
	}
}

func TestRestIntervalClampsKnob(t *testing.T) {
	p := SoilPolicy(0)
	if got := p.RestInterval(-50, 30); got != 60 {
		t.Errorf("negative knob: got %d, want 60", got)
	}
	if got := p.RestInterval(4000, 30); got != 1170 {
		t.Errorf("oversized knob: got %d, want 1170", got)
	}
}

func TestBudgetPolicyEndpoints(t *testing.T) {
	p := BudgetPolicy(DefaultMaxDailyLiters, DefaultLitersPerSecond)

	if got := p.PerCycleLiters(30); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("PerCycleLiters: got %v, want 1.0", got)
	}

	if got := p.DailyLiters(0, 30); got != 50 {
		t.Errorf("knob=0 daily: got %v, want 50", got)
	}
	if got := p.DailyLiters(KnobMax, 30); got != 1 {
		t.Errorf("knob=1023 daily: got %v, want 1", got)
	}

	if got := p.RestInterval(0, 30); got != 1728 {
		t.Errorf("knob=0 interval: got %d, want 1728", got)
	}
	if got := p.RestInterval(KnobMax, 30); got != DaySeconds {
		t.Errorf("knob=1023 interval: got %d, want %d", got, DaySeconds)
	}
}

func TestBudgetPolicyMonotonic(t *testing.T) {
	p := BudgetPolicy(DefaultMaxDailyLiters, DefaultLitersPerSecond)
	prev := p.RestInterval(KnobMax, 30)
	for knob := KnobMax - 1; knob >= 0; knob-- {
		got := p.RestInterval(knob, 30)
		if got > prev {
			t.Fatalf("knob=%d: interval %d increased from %d as knob decreased", knob, got, prev)
		}
		if got < 30 {
			t.Fatalf("knob=%d: interval %d shorter than one cycle", knob, got)
		}
		prev = got
	}
}

func TestBudgetPolicyIntervalNeverBelowCycle(t *testing.T) {
	p := BudgetPolicy(100000, DefaultLitersPerSecond)
	if got := p.RestInterval(0, 30); got != 30 {
		t.Errorf("got %d, want floor of 30", got)
	}
}

func TestBudgetPolicyMaxBelowOneCycle(t *testing.T) {
	// 0.5 L/day is less than one 1 L cycle; the range collapses to one cycle a day.
	p := BudgetPolicy(0.5, DefaultLitersPerSecond)
	if got := p.DailyLiters(0, 30); got != 1 {
		t.Errorf("daily: got %v, want 1", got)
	}
	if got := p.RestInterval(0, 30); got != DaySeconds {
		t.Errorf("interval: got %d, want %d", got, DaySeconds)
	}
}

func TestBudgetPolicyZeroRate(t *testing.T) {
	p := BudgetPolicy(50, 0)
	if got := p.RestInterval(0, 30); got != DaySeconds {
		t.Errorf("got %d, want %d", got, DaySeconds)
	}
}

func TestSoilPolicyHasNoDailyVolume(t *testing.T) {
	p := SoilPolicy(0)
	if p.DailyLiters(0, 30) != 0 || p.PerCycleLiters(30) != 0 {
		t.Error("soil policy should report no volumes")
	}
}

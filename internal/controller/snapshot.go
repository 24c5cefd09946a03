package controller

import (
	"time"

	"github.com/sweeney/irrigator/internal/logic"
	"github.com/sweeney/irrigator/internal/sensor"
)

// TransitionCounts counts transitions by reason since startup.
type TransitionCounts map[logic.Reason]int

// PumpSnapshot is a reporting view of one pump.
type PumpSnapshot struct {
	ID            int
	State         logic.State
	Pumping       bool
	Activations   int
	CyclePeriod   logic.Seconds
	RestInterval  logic.Seconds
	Policy        logic.PolicyKind
	DailyLiters   float64
	SwitchPressed bool
	HasSoil       bool
}

// Snapshot is a point-in-time view of the installation.
type Snapshot struct {
	Pumps        []PumpSnapshot
	WaterPresent bool
	Air          sensor.AirSnapshot
	Soil         []sensor.SoilSnapshot
	Knob         int
	Counts       TransitionCounts
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Snapshot  Snapshot
}

// Snapshot returns the current reporting data.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		WaterPresent: c.water.ShouldWater(),
		Air:          c.air.Snapshot(),
		Knob:         c.knob.Level(),
		Counts:       make(TransitionCounts, len(c.counts)),
	}
	for r, n := range c.counts {
		s.Counts[r] = n
	}
	for _, ch := range c.channels {
		p := ch.pump
		s.Pumps = append(s.Pumps, PumpSnapshot{
			ID:            p.ID(),
			State:         p.State(),
			Pumping:       p.Pumping(),
			Activations:   p.ActivationCount(),
			CyclePeriod:   p.CyclePeriod(),
			RestInterval:  p.RestInterval(),
			Policy:        p.Policy().Kind,
			DailyLiters:   p.DailyLiters(),
			SwitchPressed: ch.sw.ShouldWater(),
			HasSoil:       ch.soil != nil,
		})
		if ch.soil != nil {
			s.Soil = append(s.Soil, ch.soil.Snapshot())
		}
	}
	return s
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.start),
		Snapshot:  c.Snapshot(),
	}
}

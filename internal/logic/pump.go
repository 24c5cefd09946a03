package logic

// Pump is the state machine for one pump channel.
type Pump struct {
	id     int
	cycle  Seconds
	policy Policy
	in     Inputs

	state        State
	rest         Seconds
	knob         int
	lastStart    Seconds
	lastStop     Seconds
	activations  int
	lastChange   Seconds
	changedAtAll bool
}

// NewPump creates a pump in StateIdle with its output de-energized.
// The requested cycle period is clamped with ClampCyclePeriod.
func NewPump(cfg PumpConfig, in Inputs) *Pump {
	p := &Pump{
		id:     cfg.ID,
		cycle:  ClampCyclePeriod(cfg.CyclePeriod),
		policy: cfg.Policy,
		in:     in,
		state:  StateIdle,
	}
	p.readKnob()
	return p
}

func (p *Pump) readKnob() {
	p.knob = p.in.Knob.Level()
	p.rest = p.policy.RestInterval(p.knob, p.cycle)
}

// ControlPump advances the state machine by one tick. It returns the
// transition taken, or nil if the state did not change. It never blocks.
func (p *Pump) ControlPump(now Seconds) *Transition {
	p.readKnob()
	water := p.in.Water.ShouldWater()

	switch p.state {
	case StateIdle:
		if !p.mayEnter(now) {
			return nil
		}
		if water && p.in.Air.ShouldWater() && p.soilWantsWater() {
			p.lastStart = now
			p.activations++
			return p.move(now, StateAutoOn, ReasonAutoStart)
		}
		if water && p.in.Switch.ShouldWater() {
			p.lastStart = now
			return p.move(now, StateManualOn, ReasonManualStart)
		}

	case StateAutoOn:
		if p.soilSatisfied() {
			p.lastStop = now
			return p.move(now, StateOff, ReasonSoilSatisfied)
		}
		if Elapsed(now, p.lastStart) > p.cycle {
			p.lastStop = now
			return p.move(now, StateOff, ReasonCycleTimeout)
		}
		if !water {
			p.lastStop = now
			return p.move(now, StateIdle, ReasonWaterLost)
		}

	case StateManualOn:
		if !p.in.Switch.ShouldWater() {
			p.lastStop = now
			return p.move(now, StateOff, ReasonSwitchReleased)
		}
		if !water {
			p.lastStop = now
			return p.move(now, StateOff, ReasonWaterLost)
		}

	case StateOff:
		if water && p.in.Switch.ShouldWater() && p.mayEnter(now) {
			p.lastStart = now
			return p.move(now, StateManualOn, ReasonManualStart)
		}
		if Elapsed(now, p.lastStop) > p.rest {
			return p.move(now, StateIdle, ReasonRestElapsed)
		}
	}
	return nil
}

// mayEnter limits entries into a watering state to one transition per
// instant, so repeated calls with unchanged inputs stay put.
func (p *Pump) mayEnter(now Seconds) bool {
	return !p.changedAtAll || p.lastChange != now
}

func (p *Pump) soilWantsWater() bool {
	return p.in.Soil == nil || p.in.Soil.ShouldWater()
}

func (p *Pump) soilSatisfied() bool {
	return p.in.Soil != nil && !p.in.Soil.ShouldWater()
}

func (p *Pump) move(now Seconds, to State, reason Reason) *Transition {
	from := p.state
	p.state = to
	p.lastChange = now
	p.changedAtAll = true
	return &Transition{
		PumpID:       p.id,
		From:         from,
		To:           to,
		Reason:       reason,
		At:           now,
		Activations:  p.activations,
		RestInterval: p.rest,
	}
}

// ID returns the pump channel id.
func (p *Pump) ID() int { return p.id }

// State returns the current state.
func (p *Pump) State() State { return p.state }

// Pumping reports the required output level: true means energized.
func (p *Pump) Pumping() bool { return p.state.Watering() }

// ActivationCount returns the number of automatic cycles started.
func (p *Pump) ActivationCount() int { return p.activations }

// CyclePeriod returns the effective (clamped) maximum automatic runtime.
func (p *Pump) CyclePeriod() Seconds { return p.cycle }

// RestInterval returns the rest interval computed on the last tick.
func (p *Pump) RestInterval() Seconds { return p.rest }

// Policy returns the pump's rest interval policy.
func (p *Pump) Policy() Policy { return p.policy }

// DailyLiters returns the daily target volume for budget pumps, zero otherwise.
func (p *Pump) DailyLiters() float64 { return p.policy.DailyLiters(p.knob, p.cycle) }

// LastStart and LastStop return the recorded start and stop timestamps.
func (p *Pump) LastStart() Seconds { return p.lastStart }
func (p *Pump) LastStop() Seconds  { return p.lastStop }

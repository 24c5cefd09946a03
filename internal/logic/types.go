// Package logic contains the pure pump decision engine: the per-pump state
// machine and the knob-driven rest interval calculators.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injected as Seconds.
package logic

// State represents the state of one pump channel.
type State string

const (
	StateIdle     State = "IDLE"
	StateAutoOn   State = "AUTO_ON"
	StateManualOn State = "MANUAL_ON"
	StateOff      State = "OFF"
)

// States lists every pump state in a stable order.
var States = []State{StateIdle, StateAutoOn, StateManualOn, StateOff}

// Watering reports whether the pump output is energized in this state.
func (s State) Watering() bool {
	return s == StateAutoOn || s == StateManualOn
}

// Reason explains why a transition happened.
type Reason string

const (
	ReasonAutoStart      Reason = "auto_start"
	ReasonManualStart    Reason = "manual_start"
	ReasonSoilSatisfied  Reason = "soil_satisfied"
	ReasonCycleTimeout   Reason = "cycle_timeout"
	ReasonWaterLost      Reason = "water_lost"
	ReasonSwitchReleased Reason = "switch_released"
	ReasonRestElapsed    Reason = "rest_elapsed"
)

// Capability is the boolean decision a sensor domain exposes to the pumps.
type Capability interface {
	ShouldWater() bool
}

// Knob is the shared analog input, read as 0..KnobMax.
type Knob interface {
	Level() int
}

// Inputs are the borrowed capabilities a pump consumes. Soil may be nil
// (untyped) when the channel has no soil sensor.
type Inputs struct {
	Water  Capability
	Air    Capability
	Soil   Capability
	Switch Capability
	Knob   Knob
}

// PumpConfig is fixed at construction.
type PumpConfig struct {
	ID          int
	CyclePeriod Seconds // requested; clamped by NewPump
	Policy      Policy
}

// Transition describes one state change of a pump.
type Transition struct {
	PumpID       int
	From         State
	To           State
	Reason       Reason
	At           Seconds
	Activations  int
	RestInterval Seconds
}

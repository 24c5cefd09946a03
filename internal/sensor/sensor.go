// Package sensor turns raw readings into the boolean capabilities the pumps
// consume. Each sensor owns its own cadence, debounce and fault handling and
// publishes one atomic wants-water flag that is safe to read at any time.
//
// Callers refresh every sensor once per tick, before any pump runs.
package sensor

import (
	"sync/atomic"
	"time"
)

// LevelReader reads one logical digital level (already polarity-corrected).
type LevelReader interface {
	Read() (bool, error)
}

// Indicator is an on/off output such as a buzzer or LED.
type Indicator interface {
	Set(on bool) error
}

// Refresher is implemented by every sensor.
type Refresher interface {
	Refresh(now time.Time) error
	ShouldWater() bool
}

// flag is the shared wants-water state of a sensor.
type flag struct {
	v atomic.Bool
}

// ShouldWater returns the current decision.
func (f *flag) ShouldWater() bool { return f.v.Load() }

func (f *flag) set(on bool) { f.v.Store(on) }

// indicate drives an optional indicator only when its level changes.
type indicate struct {
	out   Indicator
	level bool
	known bool
}

func (i *indicate) set(on bool) error {
	if i.out == nil || (i.known && i.level == on) {
		return nil
	}
	if err := i.out.Set(on); err != nil {
		return err
	}
	i.level = on
	i.known = true
	return nil
}

// due reports whether a periodic sensor should sample now.
func due(now, start, last time.Time, sampled bool, every, warmup time.Duration) bool {
	if now.Sub(start) <= warmup {
		return false
	}
	return !sampled || now.Sub(last) > every
}

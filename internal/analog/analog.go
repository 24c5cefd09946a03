// Package analog reads the potentiometer knob and the air sensor.
package analog

import (
	"fmt"
	"sync/atomic"

	"github.com/sweeney/irrigator/internal/logic"
	"github.com/sweeney/irrigator/internal/mathx"
)

// RawReader returns one signed ADC conversion.
type RawReader interface {
	ReadRaw() (int16, error)
}

// Knob caches the potentiometer level as 0..logic.KnobMax. Sample reads the
// ADC; Level returns the last good sample and never blocks.
type Knob struct {
	adc       RawReader
	fullScale int16
	level     atomic.Int32
	sampled   atomic.Bool
}

// NewKnob creates a knob. fullScale is the raw code at the top of the
// potentiometer's travel.
func NewKnob(adc RawReader, fullScale int16) *Knob {
	if fullScale <= 0 {
		fullScale = 1
	}
	return &Knob{adc: adc, fullScale: fullScale}
}

// Sample reads the ADC. On error the previous level is kept.
func (k *Knob) Sample() error {
	raw, err := k.adc.ReadRaw()
	if err != nil {
		return fmt.Errorf("read knob: %w", err)
	}
	k.level.Store(int32(Scale(raw, k.fullScale)))
	k.sampled.Store(true)
	return nil
}

// Level returns the last sampled knob level.
func (k *Knob) Level() int {
	return int(k.level.Load())
}

// Sampled reports whether at least one sample succeeded.
func (k *Knob) Sampled() bool {
	return k.sampled.Load()
}

// Scale maps a raw code in [0, fullScale] to [0, logic.KnobMax].
// Negative codes (noise below ground) read as zero.
func Scale(raw, fullScale int16) int {
	v := mathx.Clamp(int64(raw), 0, int64(fullScale))
	return int(mathx.Map(v, 0, int64(fullScale), 0, logic.KnobMax))
}

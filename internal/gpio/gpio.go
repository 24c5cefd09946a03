// Package gpio provides digital inputs, relay outputs and edge-watched lines
// with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Input reads one logical line level. Polarity is applied by the chip, so
// true always means "active" (water present, switch pressed, soil dry).
type Input interface {
	Read() (bool, error)
	Close() error
}

// Output drives one logical line level. true energizes the load.
type Output interface {
	Set(on bool) error
	Close() error
}

// LineConfig describes how a line is requested.
type LineConfig struct {
	Offset    int
	ActiveLow bool
	PullUp    bool
}

// Chip requests lines from one GPIO controller.
type Chip interface {
	// Input requests a polled input.
	Input(cfg LineConfig) (Input, error)

	// Output requests an output, initially driven inactive.
	Output(cfg LineConfig) (Output, error)

	// Watch requests an input that calls handler with the new logical
	// level on every edge. The handler runs on the chip's event goroutine
	// and must not block.
	Watch(cfg LineConfig, handler func(level bool)) (Input, error)

	// Close releases the chip. Lines must be closed first.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinWater   = 17
	DefaultPinSwitch1 = 27
	DefaultPinSwitch2 = 22
	DefaultPinRelay1  = 23
	DefaultPinRelay2  = 24
	DefaultPinBuzzer  = 25
	DefaultPinAirLED  = 5
	DefaultPinSoil1A  = 6
	DefaultPinSoil1B  = 13
	DefaultPinSoil2A  = 19
	DefaultPinSoil2B  = 26
)

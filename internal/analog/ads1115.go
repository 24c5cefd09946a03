package analog

import (
	"encoding/binary"
	"fmt"
	"math"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/sweeney/irrigator/internal/mathx"
)

// ADS1115 registers
const (
	regConversion = 0x00
	regConfig     = 0x01
)

const (
	configModeContinuous uint16 = 0x0000
	configDataRate128    uint16 = 0x0080
	configComparatorNone uint16 = 0x0003

	// +/- 4.096V full-scale range
	configGainOne uint16 = 0x0200
	gainOneVolts         = 4.096

	DefaultADCAddr = 0x48

	// MaxKnobVolts is the highest input voltage resolved at gain one.
	MaxKnobVolts = gainOneVolts
)

// FullScaleFor returns the raw code produced by volts at gain one, rounded
// and clamped to [1, math.MaxInt16]. Voltages above MaxKnobVolts saturate.
func FullScaleFor(volts float64) int16 {
	code := math.Round(volts / gainOneVolts * 32768)
	return int16(mathx.Clamp(code, 1, math.MaxInt16))
}

func muxForChannel(ch int) (uint16, error) {
	if ch < 0 || ch > 3 {
		return 0, fmt.Errorf("ads1115: invalid channel %d", ch)
	}
	// Single-ended AINx vs GND: 0x4000 + ch<<12
	return 0x4000 + uint16(ch)<<12, nil
}

// ADS1115 reads one single-ended channel in continuous conversion mode,
// so every read is a single register fetch with no conversion wait.
type ADS1115 struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// OpenADS1115 initializes the host, opens the I2C bus (empty name selects
// the first bus) and starts continuous conversion on channel.
func OpenADS1115(busName string, addr uint16, channel int) (*ADS1115, error) {
	mux, err := muxForChannel(channel)
	if err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	a := &ADS1115{bus: bus, dev: &i2c.Dev{Bus: bus, Addr: addr}}

	config := configModeContinuous | configDataRate128 | configComparatorNone | configGainOne | mux
	buf := []byte{regConfig, byte(config >> 8), byte(config)}
	if err := a.dev.Tx(buf, nil); err != nil {
		bus.Close()
		return nil, fmt.Errorf("ads1115: write config: %w", err)
	}
	return a, nil
}

// ReadRaw returns the latest conversion.
func (a *ADS1115) ReadRaw() (int16, error) {
	b := make([]byte, 2)
	if err := a.dev.Tx([]byte{regConversion}, b); err != nil {
		return 0, fmt.Errorf("ads1115: read conversion: %w", err)
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

// Close releases the I2C bus.
func (a *ADS1115) Close() error {
	return a.bus.Close()
}

package analog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sweeney/irrigator/internal/sensor"
)

// IIOAir reads a DHT11 through the kernel dht11 IIO driver, e.g.
// /sys/bus/iio/devices/iio:device0. The driver does the bus timing and
// checksum; a failed acquisition surfaces as a read error (usually EIO).
type IIOAir struct {
	dir string
}

// NewIIOAir creates a reader for the IIO device directory.
func NewIIOAir(dir string) *IIOAir {
	return &IIOAir{dir: dir}
}

// ReadAir reads temperature and relative humidity.
func (d *IIOAir) ReadAir() (sensor.AirReading, error) {
	temp, err := d.readMilli("in_temp_input")
	if err != nil {
		return sensor.AirReading{}, err
	}
	hum, err := d.readMilli("in_humidityrelative_input")
	if err != nil {
		return sensor.AirReading{}, err
	}
	return sensor.AirReading{TemperatureC: temp, HumidityPct: hum}, nil
}

// readMilli reads a sysfs attribute holding an integer in thousandths.
func (d *IIOAir) readMilli(name string) (float64, error) {
	data, err := os.ReadFile(filepath.Join(d.dir, name))
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", name, err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return float64(v) / 1000, nil
}

// ErrNoAirSensor is returned by NoAir.
var ErrNoAirSensor = errors.New("no air sensor configured")

// NoAir stands in when no air sensor is wired. Every read fails, so the air
// capability degrades to its fail-safe after the fault window.
type NoAir struct{}

// ReadAir always fails.
func (NoAir) ReadAir() (sensor.AirReading, error) {
	return sensor.AirReading{}, ErrNoAirSensor
}

package sensor

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	AirReadEvery = 60 * time.Second
	AirWarmup    = 15 * time.Second

	// AirFaultWindow is how long reads may keep failing before the sensor
	// is declared faulted.
	AirFaultWindow = 15 * time.Minute

	StopWateringHumidity = 80.0
	GroundFrostTempC     = 5.0
)

// AirReading is one temperature/humidity sample.
type AirReading struct {
	TemperatureC float64
	HumidityPct  float64
}

// AirReader acquires a reading from the environmental sensor.
type AirReader interface {
	ReadAir() (AirReading, error)
}

// AirSnapshot is a reporting view of the air sensor.
type AirSnapshot struct {
	TemperatureC float64
	HumidityPct  float64
	DewPointC    float64
	Fault        bool
	Failures     int
	WantsWater   bool
	LastRead     time.Time
}

// Air decides whether the air justifies watering: not too humid, above the
// dew point and above ground frost. A sensor that keeps failing degrades to
// wanting water so the plants are not starved.
type Air struct {
	flag
	reader      AirReader
	led         indicate
	every       time.Duration
	start       time.Time
	last        time.Time
	sampled     bool
	maxFailures int

	temp     float64
	humidity float64
	dew      float64
	fault    bool
	failures int
}

// NewAir creates an air sensor sampled every AirReadEvery after AirWarmup.
// The LED (may be nil) is lit while the sensor is faulted.
func NewAir(reader AirReader, led Indicator, start time.Time) *Air {
	return &Air{
		reader:      reader,
		led:         indicate{out: led},
		every:       AirReadEvery,
		start:       start,
		maxFailures: int(AirFaultWindow / AirReadEvery),
		temp:        20.2,
		humidity:    60.6,
		dew:         10.1,
	}
}

// Refresh samples the sensor when due and recomputes the decision.
// A read error is returned after it has been counted.
func (a *Air) Refresh(now time.Time) error {
	if !due(now, a.start, a.last, a.sampled, a.every, AirWarmup) {
		return nil
	}
	a.last = now
	a.sampled = true

	var errs []error
	r, err := a.reader.ReadAir()
	if err != nil {
		a.failures++
		if a.failures > a.maxFailures {
			a.fault = true
			a.temp = 0
			a.humidity = 0
			a.dew = -1
		}
		errs = append(errs, fmt.Errorf("read air: %w", err))
	} else {
		a.temp = r.TemperatureC
		a.humidity = r.HumidityPct
		a.dew = DewPoint(r.TemperatureC, r.HumidityPct)
		a.fault = false
		a.failures = 0
	}

	if err := a.led.set(a.fault); err != nil {
		errs = append(errs, fmt.Errorf("set air led: %w", err))
	}

	a.set(a.fault || (a.humidity < StopWateringHumidity && a.temp > a.dew && a.temp > GroundFrostTempC))
	return errors.Join(errs...)
}

// Snapshot returns the sensor's reporting data.
func (a *Air) Snapshot() AirSnapshot {
	return AirSnapshot{
		TemperatureC: a.temp,
		HumidityPct:  a.humidity,
		DewPointC:    a.dew,
		Fault:        a.fault,
		Failures:     a.failures,
		WantsWater:   a.ShouldWater(),
		LastRead:     a.last,
	}
}

// DewPoint returns the dew point in °C using the Magnus approximation.
// Humidity below 1% is treated as 1%.
func DewPoint(tempC, humidityPct float64) float64 {
	const a, b = 17.62, 243.12
	rh := math.Max(humidityPct, 1) / 100
	gamma := math.Log(rh) + a*tempC/(b+tempC)
	return b * gamma / (a - gamma)
}

package analog

import (
	"sync"

	"github.com/sweeney/irrigator/internal/sensor"
)

// FakeADC returns a settable raw code.
type FakeADC struct {
	mu        sync.Mutex
	Raw       int16
	ReadError error
	Reads     int
}

// ReadRaw returns Raw or ReadError.
func (f *FakeADC) ReadRaw() (int16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	return f.Raw, nil
}

// Set changes the raw code.
func (f *FakeADC) Set(raw int16) {
	f.mu.Lock()
	f.Raw = raw
	f.mu.Unlock()
}

// FakeAir returns a settable air reading.
type FakeAir struct {
	mu        sync.Mutex
	Reading   sensor.AirReading
	ReadError error
	Reads     int
}

// ReadAir returns Reading or ReadError.
func (f *FakeAir) ReadAir() (sensor.AirReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++
	if f.ReadError != nil {
		return sensor.AirReading{}, f.ReadError
	}
	return f.Reading, nil
}

// Set changes the reading and clears any error.
func (f *FakeAir) Set(r sensor.AirReading) {
	f.mu.Lock()
	f.Reading = r
	f.ReadError = nil
	f.mu.Unlock()
}

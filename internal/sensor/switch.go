package sensor

import (
	"fmt"
	"time"
)

// DefaultSwitchDebounce is the contact bounce window of the manual switches.
const DefaultSwitchDebounce = 50 * time.Millisecond

// Switch is an operator push switch. It wants water while held.
type Switch struct {
	flag
	in   LevelReader
	db   *Debouncer
	last time.Time
}

// NewSwitch creates a debounced switch on the given input.
func NewSwitch(in LevelReader, window time.Duration) *Switch {
	return &Switch{in: in, db: NewDebouncer(window)}
}

// Refresh samples the switch. On a read error the previous state is kept.
func (s *Switch) Refresh(now time.Time) error {
	level, err := s.in.Read()
	if err != nil {
		return fmt.Errorf("read switch: %w", err)
	}
	pressed, _ := s.db.Update(level, now)
	s.set(pressed)
	s.last = now
	return nil
}

// LastRead returns the time of the last successful sample.
func (s *Switch) LastRead() time.Time { return s.last }

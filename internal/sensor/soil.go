package sensor

import (
	"fmt"
	"time"
)

const (
	SoilReadEvery = 5 * time.Second
	SoilWarmup    = 1 * time.Second
)

// Soil is a segment watched by two digital dryness probes. A probe reading
// high means dry. The segment wants water only when both probes are dry.
type Soil struct {
	flag
	id      int
	probes  [2]LevelReader
	start   time.Time
	last    time.Time
	sampled bool

	dry    [2]bool
	counts [2]int
}

// SoilSnapshot is a reporting view of a soil segment.
type SoilSnapshot struct {
	ID          int
	Dry         [2]bool
	DryCounts   [2]int
	WantsWater  bool
	LastRead    time.Time
	Initialized bool
}

// NewSoil creates a soil segment. start is the time the sensor was powered.
func NewSoil(id int, probeA, probeB LevelReader, start time.Time) *Soil {
	return &Soil{id: id, probes: [2]LevelReader{probeA, probeB}, start: start}
}

// Refresh samples both probes when the read interval has passed.
func (s *Soil) Refresh(now time.Time) error {
	if !due(now, s.start, s.last, s.sampled, SoilReadEvery, SoilWarmup) {
		return nil
	}

	var levels [2]bool
	for i, p := range s.probes {
		v, err := p.Read()
		if err != nil {
			return fmt.Errorf("read soil %d probe %d: %w", s.id, i+1, err)
		}
		levels[i] = v
	}

	s.last = now
	s.sampled = true
	for i, v := range levels {
		s.dry[i] = v
		if v {
			s.counts[i]++
		}
	}
	s.set(s.dry[0] && s.dry[1])
	return nil
}

// Snapshot returns the segment's reporting data.
func (s *Soil) Snapshot() SoilSnapshot {
	return SoilSnapshot{
		ID:          s.id,
		Dry:         s.dry,
		DryCounts:   s.counts,
		WantsWater:  s.ShouldWater(),
		LastRead:    s.last,
		Initialized: s.sampled,
	}
}

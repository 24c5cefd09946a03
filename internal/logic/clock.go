package logic

import (
	"time"

	"github.com/sweeney/irrigator/internal/mathx"
)

// Seconds is a second-resolution monotonic timestamp. It wraps after
// about 136 years of uptime; all differences go through Elapsed.
type Seconds uint32

// Elapsed returns the distance between two timestamps. The subtraction is
// modular, so a wrapped counter still yields the short distance, and a now
// that appears slightly before then yields a small positive value.
func Elapsed(now, then Seconds) Seconds {
	d := int64(int32(now - then))
	return Seconds(mathx.Abs(d))
}

// SecondsSince converts wall-clock time into a Seconds value relative to start.
func SecondsSince(start, now time.Time) Seconds {
	return Seconds(uint64(now.Sub(start) / time.Second))
}

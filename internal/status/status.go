// Package status provides a thread-safe status tracker for the irrigator daemon.
// It is read by the HTTP handlers and by the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/irrigator/internal/controller"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs           int64
	HeartbeatMs      int64
	SwitchDebounceMs int64
	WaterDebounceMs  int64
	Policy           string
	CycleSeconds     int64
	MaxDailyLiters   float64
	LitersPerSec     float64
	SoilCeilingSecs  int64
	Broker           string
	HTTPPort         string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Controller    controller.Snapshot
	Ready         bool // at least one tick has run
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Pump returns the snapshot of pump id.
func (s Snapshot) Pump(id int) (controller.PumpSnapshot, bool) {
	for _, p := range s.Controller.Pumps {
		if p.ID == id {
			return p, true
		}
	}
	return controller.PumpSnapshot{}, false
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Prime stores the controller snapshot without marking the tracker ready.
// Used for the STARTUP and SHUTDOWN payloads, which are built outside a tick.
func (t *Tracker) Prime(s controller.Snapshot) {
	t.mu.Lock()
	t.snap.Controller = s
	t.mu.Unlock()
}

// Update stores the controller snapshot and marks the tracker ready. Called
// from runLoop after every tick.
func (t *Tracker) Update(s controller.Snapshot) {
	t.mu.Lock()
	t.snap.Controller = s
	t.snap.Ready = true
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

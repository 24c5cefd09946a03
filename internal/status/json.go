package status

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/sweeney/irrigator/internal/controller"
	"github.com/sweeney/irrigator/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Ready         bool           `json:"ready"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Pumps         []PumpJSON     `json:"pumps"`
	Sensors       SensorsJSON    `json:"sensors"`
	Knob          int            `json:"knob"`
	Counts        map[string]int `json:"transition_counts"`
	Config        ConfigJSON     `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// PumpJSON is the JSON representation of one pump.
type PumpJSON struct {
	ID                  int      `json:"id"`
	State               string   `json:"state"`
	Pumping             bool     `json:"pumping"`
	Activations         int      `json:"activations"`
	Policy              string   `json:"policy"`
	CycleSeconds        uint32   `json:"cycle_seconds"`
	RestIntervalSeconds uint32   `json:"rest_interval_seconds"`
	RestIntervalMinutes float64  `json:"rest_interval_minutes"`
	DailyLiters         *float64 `json:"daily_liters,omitempty"`
	SwitchPressed       bool     `json:"switch_pressed"`
	HasSoil             bool     `json:"has_soil"`
}

// SensorsJSON groups the sensor readings.
type SensorsJSON struct {
	Water WaterJSON  `json:"water"`
	Air   AirJSON    `json:"air"`
	Soil  []SoilJSON `json:"soil"`
}

// WaterJSON reports the reservoir level.
type WaterJSON struct {
	Present bool `json:"present"`
}

// AirJSON reports the air sensor.
type AirJSON struct {
	TemperatureC float64 `json:"temperature_c"`
	HumidityPct  float64 `json:"humidity_pct"`
	DewPointC    float64 `json:"dew_point_c"`
	Fault        bool    `json:"fault"`
	Failures     int     `json:"failures"`
	WantsWater   bool    `json:"wants_water"`
	LastRead     string  `json:"last_read,omitempty"`
}

// SoilJSON reports one soil segment.
type SoilJSON struct {
	ID         int     `json:"id"`
	Dry        [2]bool `json:"dry"`
	DryCounts  [2]int  `json:"dry_counts"`
	WantsWater bool    `json:"wants_water"`
	Ready      bool    `json:"ready"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs           int64   `json:"poll_ms"`
	HeartbeatMs      int64   `json:"heartbeat_ms"`
	SwitchDebounceMs int64   `json:"switch_debounce_ms"`
	WaterDebounceMs  int64   `json:"water_debounce_ms"`
	Policy           string  `json:"policy"`
	CycleSeconds     int64   `json:"cycle_seconds"`
	MaxDailyLiters   float64 `json:"max_daily_liters,omitempty"`
	LitersPerSec     float64 `json:"liters_per_sec,omitempty"`
	SoilCeilingSecs  int64   `json:"soil_ceiling_seconds,omitempty"`
	Broker           string  `json:"broker"`
	HTTPPort         string  `json:"http_port"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// BuildPump converts a pump snapshot to its JSON form.
func BuildPump(p controller.PumpSnapshot) PumpJSON {
	out := PumpJSON{
		ID:                  p.ID,
		State:               string(p.State),
		Pumping:             p.Pumping,
		Activations:         p.Activations,
		Policy:              string(p.Policy),
		CycleSeconds:        uint32(p.CyclePeriod),
		RestIntervalSeconds: uint32(p.RestInterval),
		RestIntervalMinutes: float64(p.RestInterval) / 60,
		SwitchPressed:       p.SwitchPressed,
		HasSoil:             p.HasSoil,
	}
	if p.Policy == logic.PolicyBudget {
		liters := p.DailyLiters
		out.DailyLiters = &liters
	}
	return out
}

// BuildInner converts a snapshot to its JSON form.
func BuildInner(snap Snapshot) StatusInner {
	c := snap.Controller

	pumps := make([]PumpJSON, 0, len(c.Pumps))
	for _, p := range c.Pumps {
		pumps = append(pumps, BuildPump(p))
	}
	sort.Slice(pumps, func(i, j int) bool { return pumps[i].ID < pumps[j].ID })

	soil := make([]SoilJSON, 0, len(c.Soil))
	for _, s := range c.Soil {
		soil = append(soil, SoilJSON{
			ID:         s.ID,
			Dry:        s.Dry,
			DryCounts:  s.DryCounts,
			WantsWater: s.WantsWater,
			Ready:      s.Initialized,
		})
	}

	counts := make(map[string]int, len(c.Counts))
	for r, n := range c.Counts {
		counts[string(r)] = n
	}

	return StatusInner{
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     formatTime(snap.StartTime),
		Timestamp:     formatTime(snap.Now),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Pumps:         pumps,
		Sensors: SensorsJSON{
			Water: WaterJSON{Present: c.WaterPresent},
			Air: AirJSON{
				TemperatureC: c.Air.TemperatureC,
				HumidityPct:  c.Air.HumidityPct,
				DewPointC:    c.Air.DewPointC,
				Fault:        c.Air.Fault,
				Failures:     c.Air.Failures,
				WantsWater:   c.Air.WantsWater,
				LastRead:     formatTime(c.Air.LastRead),
			},
			Soil: soil,
		},
		Knob:   c.Knob,
		Counts: counts,
		Config: ConfigJSON{
			PollMs:           snap.Config.PollMs,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			SwitchDebounceMs: snap.Config.SwitchDebounceMs,
			WaterDebounceMs:  snap.Config.WaterDebounceMs,
			Policy:           snap.Config.Policy,
			CycleSeconds:     snap.Config.CycleSeconds,
			MaxDailyLiters:   snap.Config.MaxDailyLiters,
			LitersPerSec:     snap.Config.LitersPerSec,
			SoilCeilingSecs:  snap.Config.SoilCeilingSecs,
			Broker:           snap.Config.Broker,
			HTTPPort:         snap.Config.HTTPPort,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: BuildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := BuildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatPumpJSON returns the JSON for pump id, or false if there is no such pump.
func FormatPumpJSON(snap Snapshot, id int) ([]byte, bool) {
	p, ok := snap.Pump(id)
	if !ok {
		return nil, false
	}
	data, _ := json.MarshalIndent(struct {
		Pump PumpJSON `json:"pump"`
	}{BuildPump(p)}, "", "  ")
	return data, true
}

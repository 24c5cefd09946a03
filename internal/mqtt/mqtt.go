// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/irrigator/internal/logic"
)

// TopicPumps is the MQTT topic for pump transitions.
const TopicPumps = "garden/irrigation/pumps/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "garden/irrigation/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a pump transition to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event PumpEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// NopPublisher drops every event. It stands in when no broker is configured
// or the broker could not be reached at startup.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(PumpEvent) error { return nil }

// PublishSystem discards the event.
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }

// IsConnected always reports false.
func (NopPublisher) IsConnected() bool { return false }

// PumpEvent is one pump transition stamped with wall-clock time.
type PumpEvent struct {
	Timestamp  time.Time
	Transition logic.Transition
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Pump PumpPayload `json:"pump"`
}

// PumpPayload contains the transition details.
type PumpPayload struct {
	Timestamp           string `json:"timestamp"`
	ID                  int    `json:"id"`
	From                string `json:"from"`
	To                  string `json:"to"`
	Reason              string `json:"reason"`
	Activations         int    `json:"activations"`
	RestIntervalSeconds uint32 `json:"rest_interval_seconds"`
	ClockSeconds        uint32 `json:"clock_seconds"`
}

// FormatPayload creates the JSON payload for a pump event.
func FormatPayload(event PumpEvent) ([]byte, error) {
	tr := event.Transition
	payload := Payload{
		Pump: PumpPayload{
			Timestamp:           event.Timestamp.UTC().Format(time.RFC3339),
			ID:                  tr.PumpID,
			From:                string(tr.From),
			To:                  string(tr.To),
			Reason:              string(tr.Reason),
			Activations:         tr.Activations,
			RestIntervalSeconds: uint32(tr.RestInterval),
			ClockSeconds:        uint32(tr.At),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

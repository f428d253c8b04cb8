// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/display-sensor/internal/logic"
)

// Topic is the MQTT topic for presence and display events.
const Topic = "lumiclock/display/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "lumiclock/display/system"

// Events the publisher emits on its own behalf.
const (
	EventOffline     = "OFFLINE"
	EventReconnected = "RECONNECTED"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a presence or display event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a daemon lifecycle event: STARTUP, HEARTBEAT, SHUTDOWN,
// and the publisher's own OFFLINE (will) and RECONNECTED.
type SystemEvent struct {
	Timestamp time.Time
	Event     string
	Reason    string // shutdown signal or SENSOR_ERROR
	Retained  bool

	// Client, Replayed and Dropped describe the connection and are set by
	// the publisher on OFFLINE and RECONNECTED.
	Client   string
	Replayed int
	Dropped  int

	// RawPayload, when set, is published as-is. Status events carry a full
	// status snapshot here.
	RawPayload []byte
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Display DisplayPayload `json:"display"`
}

// DisplayPayload contains the event details.
type DisplayPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Presence  bool   `json:"presence"`
	Phase     string `json:"phase"`
	Action    string `json:"action,omitempty"`
	Failed    bool   `json:"failed,omitempty"`
}

// FormatPayload creates the JSON payload for a presence or display event.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := DisplayPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
		Presence:  event.Presence,
		Phase:     string(event.Phase),
		Failed:    event.Failed,
	}
	if event.Action != logic.ActionNone {
		p.Action = event.Action.String()
	}
	return json.Marshal(Payload{Display: p})
}

// SystemPayload is the envelope for events without a status snapshot.
type SystemPayload struct {
	System SystemInfo `json:"system"`
}

// SystemInfo describes one connection-level system event.
type SystemInfo struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	Client    string `json:"client,omitempty"`
	Replayed  int    `json:"replayed,omitempty"`
	Dropped   int    `json:"dropped,omitempty"`
}

// FormatSystemPayload returns event.RawPayload when set, otherwise a
// SystemPayload.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{System: SystemInfo{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     event.Event,
		Reason:    event.Reason,
		Client:    event.Client,
		Replayed:  event.Replayed,
		Dropped:   event.Dropped,
	}})
}

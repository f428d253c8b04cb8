package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Sensor        SensorJSON   `json:"sensor"`
	Display       DisplayJSON  `json:"display"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// SensorJSON reports the PIR reading and debouncer.
type SensorJSON struct {
	Enabled   bool   `json:"enabled"`
	Raw       bool   `json:"raw"`
	Presence  bool   `json:"presence"`
	Phase     string `json:"phase"`
	Remaining int    `json:"remaining"`
	Ticks     int64  `json:"ticks"`
}

// DisplayJSON reports the display lifecycle and port.
type DisplayJSON struct {
	Kind       string `json:"kind"`
	Phase      string `json:"phase"`
	Counter    int    `json:"counter"`
	Power      string `json:"power"`
	Brightness int    `json:"brightness"`
	Commands   int64  `json:"commands"`
	Failed     int64  `json:"commands_failed"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	PresenceOn      int `json:"presence_on"`
	PresenceOff     int `json:"presence_off"`
	DisplayOn       int `json:"display_on"`
	DisplayOff      int `json:"display_off"`
	CommandFailures int `json:"command_failures"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	DebounceOn  int    `json:"debounce_on"`
	DebounceOff int    `json:"debounce_off"`
	OnDelay     int    `json:"on_delay"`
	OffDelay    int    `json:"off_delay"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	DisplayKind string `json:"display_kind"`
	Pin         int    `json:"pin"`
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		Sensor: SensorJSON{
			Enabled:   snap.Config.SensorEnabled,
			Raw:       snap.Raw,
			Presence:  snap.Presence,
			Phase:     string(snap.DebouncePhase),
			Remaining: snap.DebounceRemaining,
			Ticks:     snap.Ticks,
		},
		Display: DisplayJSON{
			Kind:       snap.DisplayKind,
			Phase:      orUnknown(string(snap.Phase)),
			Counter:    snap.Counter,
			Power:      orUnknown(string(snap.Power)),
			Brightness: snap.Brightness,
			Commands:   snap.Commands,
			Failed:     snap.CommandsFailed,
		},
		Ready:         snap.Ready(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			PresenceOn:      snap.Counts.PresenceOn,
			PresenceOff:     snap.Counts.PresenceOff,
			DisplayOn:       snap.Counts.DisplayOn,
			DisplayOff:      snap.Counts.DisplayOff,
			CommandFailures: snap.Counts.CommandFailures,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceOn:  snap.Config.DebounceOn,
			DebounceOff: snap.Config.DebounceOff,
			OnDelay:     snap.Config.OnDelay,
			OffDelay:    snap.Config.OffDelay,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			DisplayKind: snap.Config.DisplayKind,
			Pin:         snap.Config.Pin,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// Package status provides a thread-safe status tracker for the display-sensor daemon.
// It is written by the poller goroutine and read by HTTP handlers and MQTT events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/display-sensor/internal/logic"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs        int64
	DebounceOn    int
	DebounceOff   int
	OnDelay       int
	OffDelay      int
	HeartbeatMs   int64
	Broker        string
	HTTPAddr      string
	DisplayKind   string
	Pin           int
	SensorEnabled bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	// Sensor side, updated every tick.
	Raw               bool
	Presence          bool
	DebouncePhase     logic.DebouncePhase
	DebounceRemaining int
	Ticks             int64

	// Display side.
	Phase       logic.Phase
	Counter     int
	Power       logic.PowerState
	Brightness  int
	DisplayKind string
	// Hardware commands issued through the display port, and how many failed.
	Commands       int64
	CommandsFailed int64

	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether the lifecycle has adopted the physical display state.
func (s Snapshot) Ready() bool {
	return s.Phase != "" && s.Phase != logic.PhaseUnknown
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
			StartTime:     startTime,
			Config:        cfg,
			DebouncePhase: logic.DebounceUninitialized,
			Phase:         logic.PhaseUnknown,
			Power:         logic.PowerUnknown,
		},
	}
}

// UpdateSensor records the raw and debounced reading of one tick.
func (t *Tracker) UpdateSensor(raw, presence bool, phase logic.DebouncePhase, remaining int) {
	t.mu.Lock()
	t.snap.Raw = raw
	t.snap.Presence = presence
	t.snap.DebouncePhase = phase
	t.snap.DebounceRemaining = remaining
	t.snap.Ticks++
	t.mu.Unlock()
}

// UpdateLifecycle records the lifecycle phase, its count-down and event counts.
func (t *Tracker) UpdateLifecycle(phase logic.Phase, counter int, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Phase = phase
	t.snap.Counter = counter
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetDisplay records what the display port last reported.
func (t *Tracker) SetDisplay(kind string, power logic.PowerState, brightness int) {
	t.mu.Lock()
	t.snap.DisplayKind = kind
	t.snap.Power = power
	t.snap.Brightness = brightness
	t.mu.Unlock()
}

// SetCommandStats records the display port's command counters.
func (t *Tracker) SetCommandStats(commands, failed int64) {
	t.mu.Lock()
	t.snap.Commands = commands
	t.snap.CommandsFailed = failed
	t.mu.Unlock()
}

// SetBrightness records a brightness change made outside the control loop.
func (t *Tracker) SetBrightness(brightness int) {
	t.mu.Lock()
	t.snap.Brightness = brightness
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
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

// Package logic contains the pure state machines behind the display daemon.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// One call to a machine is one poll tick; tick length is the caller's concern.
package logic

import "time"

// DebouncePhase is the phase of the presence debouncer.
type DebouncePhase string

const (
	DebounceUninitialized DebouncePhase = "uninitialized"
	DebounceSteadyOn      DebouncePhase = "steady-on"
	DebounceSteadyOff     DebouncePhase = "steady-off"
	DebounceCountingToOn  DebouncePhase = "counting-to-on"
	DebounceCountingToOff DebouncePhase = "counting-to-off"
)

// Phase is the phase of the display lifecycle.
type Phase string

const (
	PhaseUnknown       Phase = "unknown"
	PhaseOff           Phase = "off"
	PhaseOn            Phase = "on"
	PhaseCountingToOff Phase = "off-count"
	PhaseCountingToOn  Phase = "on-count"
)

// Counting reports whether the phase is one of the count-down phases.
func (p Phase) Counting() bool {
	return p == PhaseCountingToOff || p == PhaseCountingToOn
}

// PowerState is the physical power state of a display.
type PowerState string

const (
	PowerUnknown PowerState = "UNKNOWN"
	PowerOn      PowerState = "ON"
	PowerOff     PowerState = "OFF"
)

// Action is the hardware command a lifecycle step asks for.
type Action int

const (
	ActionNone Action = iota
	ActionTurnOn
	ActionTurnOff
)

func (a Action) String() string {
	switch a {
	case ActionTurnOn:
		return "turn-on"
	case ActionTurnOff:
		return "turn-off"
	default:
		return "none"
	}
}

// Step is the outcome of one lifecycle tick.
type Step struct {
	From   Phase
	To     Phase
	Action Action
	// Counter is the remaining count-down after the tick; zero outside the
	// counting phases.
	Counter int
}

// Changed reports whether the tick moved the lifecycle to another phase.
func (s Step) Changed() bool {
	return s.From != s.To
}

// EventType represents a published state change.
type EventType string

const (
	EventPresence EventType = "PRESENCE"
	EventAbsence  EventType = "ABSENCE"
	EventDisplay  EventType = "DISPLAY"
)

// Event is a committed presence or display transition.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Presence  bool
	Phase     Phase
	Action    Action
	// Failed is set when the display command behind the event did not apply.
	Failed bool
}

// EventCounts tracks the number of committed transitions since startup.
type EventCounts struct {
	PresenceOn  int
	PresenceOff int
	DisplayOn   int
	DisplayOff  int
	// CommandFailures counts display commands the port could not apply.
	CommandFailures int
}

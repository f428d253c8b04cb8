package logic

// Lifecycle decides when the display should be powered on or off from the
// debounced presence value. It never touches hardware: Process returns the
// command to issue and the caller carries it out.
//
// Counting follows the same convention as Debouncer: the tick that enters a
// count-down is its first tick, so offDelay = 5 turns the display off on the
// fifth consecutive absent tick.
type Lifecycle struct {
	onDelay  int
	offDelay int

	phase        Phase
	onCounter    int
	offCounter   int
	lastPresence bool
}

// NewLifecycle creates a lifecycle in the Unknown phase.
// Delays below one tick are treated as one tick.
func NewLifecycle(onDelay, offDelay int) *Lifecycle {
	return &Lifecycle{
		onDelay:  atLeastOne(onDelay),
		offDelay: atLeastOne(offDelay),
		phase:    PhaseUnknown,
	}
}

// Process advances the lifecycle by one tick. query is consulted only while
// the phase is Unknown, to adopt the physical display state without issuing
// a command. At most one phase transition happens per call.
func (l *Lifecycle) Process(presence bool, query func() PowerState) Step {
	step := Step{From: l.phase}
	l.lastPresence = presence

	switch l.phase {
	case PhaseUnknown:
		state := PowerUnknown
		if query != nil {
			state = query()
		}
		// An unanswerable query is treated as Off.
		if state == PowerOn {
			l.phase = PhaseOn
		} else {
			l.phase = PhaseOff
		}

	case PhaseOff:
		if presence {
			if l.onDelay <= 1 {
				l.phase = PhaseOn
				step.Action = ActionTurnOn
				break
			}
			l.onCounter = l.onDelay - 1
			l.phase = PhaseCountingToOn
		}

	case PhaseOn:
		if !presence {
			if l.offDelay <= 1 {
				l.phase = PhaseOff
				step.Action = ActionTurnOff
				break
			}
			l.offCounter = l.offDelay - 1
			l.phase = PhaseCountingToOff
		}

	case PhaseCountingToOff:
		if presence {
			// Cancelled; the display was never turned off.
			l.offCounter = 0
			l.phase = PhaseOn
			break
		}
		l.offCounter = decrement(l.offCounter)
		if l.offCounter == 0 {
			l.phase = PhaseOff
			step.Action = ActionTurnOff
		}

	case PhaseCountingToOn:
		if !presence {
			// Cancelled; the display was never turned on.
			l.onCounter = 0
			l.phase = PhaseOff
			break
		}
		l.onCounter = decrement(l.onCounter)
		if l.onCounter == 0 {
			l.phase = PhaseOn
			step.Action = ActionTurnOn
		}
	}

	step.To = l.phase
	step.Counter = l.Counter()
	return step
}

// Phase returns the current phase.
func (l *Lifecycle) Phase() Phase {
	return l.phase
}

// Counter returns the ticks left in the active count-down, or zero.
func (l *Lifecycle) Counter() int {
	switch l.phase {
	case PhaseCountingToOn:
		return l.onCounter
	case PhaseCountingToOff:
		return l.offCounter
	default:
		return 0
	}
}

// LastPresence returns the presence value of the most recent tick.
func (l *Lifecycle) LastPresence() bool {
	return l.lastPresence
}

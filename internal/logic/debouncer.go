package logic

// Debouncer turns a raw motion reading, sampled once per tick, into a stable
// presence value. It uses independent count-downs for the on and off edges:
// a short confirmation before declaring presence, a long grace period before
// declaring absence.
//
// The tick that starts a count-down counts as the first elapsed tick, so with
// timeOn = N the value turns true on the N-th consecutive true reading.
type Debouncer struct {
	timeOn  int
	timeOff int

	phase        DebouncePhase
	remainingOn  int
	remainingOff int
	value        bool
}

// NewDebouncer creates a debouncer in the Uninitialized phase.
// Delays below one tick are treated as one tick.
func NewDebouncer(timeOn, timeOff int) *Debouncer {
	return &Debouncer{
		timeOn:  atLeastOne(timeOn),
		timeOff: atLeastOne(timeOff),
		phase:   DebounceUninitialized,
	}
}

// Update feeds one raw reading and returns the debounced value.
func (d *Debouncer) Update(raw bool) bool {
	switch d.phase {
	case DebounceUninitialized:
		// The first reading is adopted as-is; there is no baseline delay.
		d.settle(raw)

	case DebounceSteadyOn:
		if !raw {
			d.remainingOff = d.timeOff - 1
			d.phase = DebounceCountingToOff
			if d.remainingOff == 0 {
				d.settle(false)
			}
		}

	case DebounceSteadyOff:
		if raw {
			d.remainingOn = d.timeOn - 1
			d.phase = DebounceCountingToOn
			if d.remainingOn == 0 {
				d.settle(true)
			}
		}

	case DebounceCountingToOff:
		if raw {
			// Motion is back before the grace period ran out.
			d.remainingOff = 0
			d.phase = DebounceSteadyOn
			break
		}
		d.remainingOff = decrement(d.remainingOff)
		if d.remainingOff == 0 {
			d.settle(false)
		}

	case DebounceCountingToOn:
		if !raw {
			d.remainingOn = 0
			d.phase = DebounceSteadyOff
			break
		}
		d.remainingOn = decrement(d.remainingOn)
		if d.remainingOn == 0 {
			d.settle(true)
		}
	}

	return d.value
}

// settle commits a value and enters the matching steady phase. It is the
// only place the debounced value changes.
func (d *Debouncer) settle(v bool) {
	d.value = v
	d.remainingOn = 0
	d.remainingOff = 0
	if v {
		d.phase = DebounceSteadyOn
	} else {
		d.phase = DebounceSteadyOff
	}
}

// Value returns the last debounced value.
func (d *Debouncer) Value() bool {
	return d.value
}

// Phase returns the current phase.
func (d *Debouncer) Phase() DebouncePhase {
	return d.phase
}

// Remaining returns the ticks left in the active count-down, or zero.
func (d *Debouncer) Remaining() int {
	switch d.phase {
	case DebounceCountingToOn:
		return d.remainingOn
	case DebounceCountingToOff:
		return d.remainingOff
	default:
		return 0
	}
}

func decrement(n int) int {
	if n <= 1 {
		return 0
	}
	return n - 1
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

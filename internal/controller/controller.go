// Package controller binds the display lifecycle state machine to the
// display port, the status tracker and the event publisher.
package controller

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/display-sensor/internal/display"
	"github.com/sweeney/display-sensor/internal/logic"
	"github.com/sweeney/display-sensor/internal/mqtt"
	"github.com/sweeney/display-sensor/internal/status"
)

// Port is the part of the display port the controller drives.
type Port interface {
	TurnOn() error
	TurnOff() error
	QueryPowerState() logic.PowerState
	Cached() logic.PowerState
	Brightness() int
	Kind() display.Kind
	Stats() display.Stats
}

// Controller runs one lifecycle step per presence notification.
//
// A Controller is owned by the poller goroutine: OnPresenceChanged is not
// safe for concurrent use. Other goroutines read state from the tracker.
type Controller struct {
	lifecycle *logic.Lifecycle
	port      Port
	hooks     Hooks
	hooksSet  bool
	tracker   *status.Tracker
	publisher mqtt.Publisher
	log       zerolog.Logger
	now       func() time.Time

	counts       logic.EventCounts
	lastPresence bool
	seen         bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithHooks replaces the default hooks.
func WithHooks(h Hooks) Option {
	return func(c *Controller) {
		c.hooks = h
		c.hooksSet = true
	}
}

// WithTracker reports every step to t.
func WithTracker(t *status.Tracker) Option {
	return func(c *Controller) { c.tracker = t }
}

// WithPublisher publishes presence and display events to p.
func WithPublisher(p mqtt.Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// WithLogger sets the logger. Without WithHooks the default hooks log to it.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithClock overrides time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a controller driving port from lifecycle.
func New(lifecycle *logic.Lifecycle, port Port, opts ...Option) *Controller {
	c := &Controller{
		lifecycle: lifecycle,
		port:      port,
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if !c.hooksSet {
		c.hooks = DefaultHooks(c.log)
	}
	return c
}

// OnPresenceChanged is the poller callback. It is called once per tick with
// the debounced presence, advances the lifecycle and carries out its action.
func (c *Controller) OnPresenceChanged(presence bool) {
	c.notePresence(presence)

	step := c.lifecycle.Process(presence, c.port.QueryPowerState)

	var cmdErr error
	switch step.Action {
	case logic.ActionTurnOn:
		cmdErr = c.port.TurnOn()
		c.counts.DisplayOn++
	case logic.ActionTurnOff:
		cmdErr = c.port.TurnOff()
		c.counts.DisplayOff++
	}
	if cmdErr != nil {
		c.counts.CommandFailures++
	}

	c.runHooks(step, cmdErr)

	if step.Changed() {
		c.logStep(step)
		c.publish(logic.Event{
			Timestamp: c.now(),
			Type:      logic.EventDisplay,
			Presence:  presence,
			Phase:     step.To,
			Action:    step.Action,
			Failed:    cmdErr != nil,
		})
	}

	if c.tracker != nil {
		c.tracker.UpdateLifecycle(step.To, step.Counter, c.counts)
		c.tracker.SetDisplay(string(c.port.Kind()), c.port.Cached(), c.port.Brightness())
		stats := c.port.Stats()
		c.tracker.SetCommandStats(stats.Commands, stats.Failures)
	}
}

func (c *Controller) logStep(step logic.Step) {
	ev := c.log.Info()
	if step.To.Counting() || step.From.Counting() && step.Action == logic.ActionNone {
		ev = c.log.Debug()
	}
	ev.Str("from", string(step.From)).
		Str("to", string(step.To)).
		Str("action", step.Action.String()).
		Int("counter", step.Counter).
		Msg("display phase changed")
}

// notePresence counts and publishes presence edges. The first tick only
// sets the baseline.
func (c *Controller) notePresence(presence bool) {
	if c.seen && presence == c.lastPresence {
		return
	}
	first := !c.seen
	c.seen = true
	c.lastPresence = presence
	if first {
		return
	}

	typ := logic.EventAbsence
	if presence {
		typ = logic.EventPresence
		c.counts.PresenceOn++
	} else {
		c.counts.PresenceOff++
	}
	c.log.Debug().Bool("presence", presence).Msg("presence changed")
	c.publish(logic.Event{
		Timestamp: c.now(),
		Type:      typ,
		Presence:  presence,
		Phase:     c.lifecycle.Phase(),
	})
}

func (c *Controller) runHooks(step logic.Step, cmdErr error) {
	h := c.hooks
	switch step.To {
	case logic.PhaseOn:
		if step.Action == logic.ActionTurnOn && h.DisplayOn != nil {
			h.DisplayOn(cmdErr)
		}
	case logic.PhaseOff:
		if step.Action == logic.ActionTurnOff && h.DisplayOff != nil {
			h.DisplayOff(cmdErr)
		}
	case logic.PhaseCountingToOff:
		if step.Changed() {
			if h.OffCountDown != nil {
				h.OffCountDown(step.Counter)
			}
		} else if h.OffCountingDown != nil {
			h.OffCountingDown(step.Counter)
		}
	case logic.PhaseCountingToOn:
		if step.Changed() {
			if h.OnCountDown != nil {
				h.OnCountDown(step.Counter)
			}
		} else if h.OnCountingDown != nil {
			h.OnCountingDown(step.Counter)
		}
	}
}

func (c *Controller) publish(event logic.Event) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(event); err != nil {
		// Publishing never stops the control loop.
		c.log.Warn().Err(err).Str("event", string(event.Type)).Msg("publish failed")
	}
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() logic.Phase {
	return c.lifecycle.Phase()
}

// Counter returns the ticks left in the active count-down.
func (c *Controller) Counter() int {
	return c.lifecycle.Counter()
}

// Counts returns the transitions seen since startup.
func (c *Controller) Counts() logic.EventCounts {
	return c.counts
}

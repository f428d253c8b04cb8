package display

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/sweeney/display-sensor/internal/logic"
)

// Port is the one shared handle to the physical display. It is injected into
// the lifecycle controller and into interactive callers (HTTP, config reload);
// every method holds the port mutex for the duration of the hardware call.
//
// Command failures are logged and returned. The cached power flag changes
// only after the backend confirms the command.
type Port struct {
	mu         sync.Mutex
	backend    Backend
	log        zerolog.Logger
	cached     logic.PowerState
	brightness int

	commands atomic.Int64
	failures atomic.Int64
}

// Stats counts hardware commands issued through the port.
type Stats struct {
	Commands int64
	Failures int64
}

// NewPort wraps backend. The brightness starts at MaxBrightness until set.
func NewPort(backend Backend, log zerolog.Logger) *Port {
	if backend == nil {
		backend = Null{}
	}
	return &Port{
		backend:    backend,
		log:        log,
		cached:     logic.PowerUnknown,
		brightness: MaxBrightness,
	}
}

// TurnOn powers the display on.
func (p *Port) TurnOn() error {
	return p.setPower(true)
}

// TurnOff powers the display off.
func (p *Port) TurnOff() error {
	return p.setPower(false)
}

func (p *Port) setPower(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.commands.Inc()
	if err := p.backend.SetPower(on); err != nil {
		p.failures.Inc()
		p.log.Error().Err(err).Bool("on", on).Str("kind", string(p.backend.Kind())).Msg("display power command failed")
		return err
	}

	if on {
		p.cached = logic.PowerOn
	} else {
		p.cached = logic.PowerOff
	}
	p.log.Debug().Str("power", string(p.cached)).Msg("display power set")
	return nil
}

// SetBrightness clamps level to 0..255, stores it, and applies it where the
// backend supports brightness. It returns the stored value.
func (p *Port) SetBrightness(level int) (int, error) {
	level = ClampBrightness(level)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.brightness = level
	p.commands.Inc()
	err := p.backend.SetBrightness(level)
	switch {
	case err == nil:
		p.log.Debug().Int("brightness", level).Msg("display brightness set")
	case errors.Is(err, ErrUnsupported):
		p.log.Debug().Str("kind", string(p.backend.Kind())).Msg("brightness not supported by display")
		err = nil
	default:
		p.failures.Inc()
		p.log.Error().Err(err).Int("brightness", level).Msg("display brightness command failed")
	}
	return level, err
}

// QueryPowerState asks the hardware for its power state. It returns
// PowerUnknown when the backend cannot answer.
func (p *Port) QueryPowerState() logic.PowerState {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.backend.PowerState()
	if err != nil {
		if !errors.Is(err, ErrUnsupported) {
			p.log.Warn().Err(err).Msg("display power query failed")
		}
		return logic.PowerUnknown
	}
	return state
}

// Brightness returns the last stored brightness.
func (p *Port) Brightness() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.brightness
}

// Cached returns the power state of the last successful command, or
// PowerUnknown before any command succeeded.
func (p *Port) Cached() logic.PowerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cached
}

// Kind returns the kind of the underlying backend.
func (p *Port) Kind() Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backend.Kind()
}

// Stats returns the command counters. It does not take the port lock.
func (p *Port) Stats() Stats {
	return Stats{
		Commands: p.commands.Load(),
		Failures: p.failures.Load(),
	}
}

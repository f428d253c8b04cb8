package display

import (
	"context"
	"strings"
	"time"

	"github.com/bluele/gcache"
	"github.com/rs/zerolog"

	"github.com/sweeney/display-sensor/internal/logic"
)

// IsRaspberryPi is a weak test: every ARM Linux board is assumed to be a Pi.
func IsRaspberryPi() bool {
	return isARM(Machine())
}

func isARM(machine string) bool {
	return strings.HasPrefix(machine, "arm") || strings.HasPrefix(machine, "aarch64")
}

// DefaultProbeTTL is how long a tvservice answer is trusted. HDMI monitors
// can be hot-plugged, so the answer is not cached forever.
const DefaultProbeTTL = time.Minute

const probeKey = "hdmi"

// Probe answers whether the attached display is HDMI by asking tvservice.
// Answers are cached because the probe forks a process.
type Probe struct {
	runner Runner
	cache  gcache.Cache
	log    zerolog.Logger
}

// NewProbe creates a probe. A nil runner uses ExecRunner.
func NewProbe(runner Runner, ttl time.Duration, log zerolog.Logger) *Probe {
	if runner == nil {
		runner = ExecRunner{}
	}
	if ttl <= 0 {
		ttl = DefaultProbeTTL
	}
	p := &Probe{runner: runner, log: log}
	p.cache = gcache.New(1).
		LRU().
		Expiration(ttl).
		LoaderFunc(func(interface{}) (interface{}, error) {
			return p.probe(), nil
		}).
		Build()
	return p
}

// IsHDMI reports whether tvservice describes an HDMI output.
func (p *Probe) IsHDMI() bool {
	v, err := p.cache.Get(probeKey)
	if err != nil {
		return false
	}
	hdmi, _ := v.(bool)
	return hdmi
}

// Forget drops the cached answer so the next call probes again.
func (p *Probe) Forget() {
	p.cache.Remove(probeKey)
}

func (p *Probe) probe() bool {
	out, err := p.runner.Run(context.Background(), "tvservice", "-s")
	if err != nil {
		// tvservice is absent on KMS images; that means no legacy HDMI path.
		p.log.Debug().Err(err).Msg("tvservice probe failed, assuming panel")
		return false
	}
	hdmi := strings.Contains(string(out), "HDMI")
	p.log.Debug().Bool("hdmi", hdmi).Msg("display probed")
	return hdmi
}

// Auto picks HDMI or panel control per call from the cached probe.
type Auto struct {
	probe *Probe
	hdmi  Backend
	panel Backend
}

// NewAuto creates an auto-selecting backend.
func NewAuto(probe *Probe, hdmi, panel Backend) *Auto {
	return &Auto{probe: probe, hdmi: hdmi, panel: panel}
}

func (a *Auto) current() Backend {
	if a.probe.IsHDMI() {
		return a.hdmi
	}
	return a.panel
}

// Kind returns the kind currently selected by the probe.
func (a *Auto) Kind() Kind { return a.current().Kind() }

// SetPower delegates to the selected backend.
func (a *Auto) SetPower(on bool) error { return a.current().SetPower(on) }

// SetBrightness delegates to the selected backend.
func (a *Auto) SetBrightness(level int) error { return a.current().SetBrightness(level) }

// PowerState delegates to the selected backend.
func (a *Auto) PowerState() (logic.PowerState, error) { return a.current().PowerState() }

// Options selects and configures a backend.
type Options struct {
	Kind            Kind
	SysfsRoot       string
	BacklightDevice string
	Runner          Runner
	ProbeTTL        time.Duration
	// IsPi overrides platform detection; nil uses IsRaspberryPi.
	IsPi func() bool
}

// NewBackend builds the backend described by opts. Auto resolves to Null
// off the Pi, so a development host never runs vcgencmd or touches sysfs.
func NewBackend(opts Options, log zerolog.Logger) Backend {
	isPi := opts.IsPi
	if isPi == nil {
		isPi = IsRaspberryPi
	}

	switch opts.Kind {
	case KindHDMI:
		return NewHDMI(opts.Runner)
	case KindPanel:
		return NewPanel(opts.SysfsRoot, opts.BacklightDevice)
	case KindNone:
		return Null{}
	}

	if !isPi() {
		log.Info().Str("machine", Machine()).Msg("not a Raspberry Pi, display commands disabled")
		return Null{}
	}
	probe := NewProbe(opts.Runner, opts.ProbeTTL, log)
	return NewAuto(probe, NewHDMI(opts.Runner), NewPanel(opts.SysfsRoot, opts.BacklightDevice))
}

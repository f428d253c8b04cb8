// Package poller runs the sensor polling loop on a dedicated goroutine.
package poller

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/sweeney/display-sensor/internal/gpio"
	"github.com/sweeney/display-sensor/internal/logic"
)

// DefaultInterval is one tick. The debounce and lifecycle delays are
// expressed in ticks, so changing it rescales every delay.
const DefaultInterval = time.Second

// Sample is what one tick observed.
type Sample struct {
	Raw       bool
	Presence  bool
	Phase     logic.DebouncePhase
	Remaining int
}

// Poller reads the sensor once per interval, debounces the reading and
// hands the debounced presence to the callback. The callback runs on the
// poller goroutine; it must not call Terminate.
type Poller struct {
	reader    gpio.Reader
	debouncer *logic.Debouncer
	callback  func(presence bool)
	observer  func(Sample)
	interval  time.Duration
	log       zerolog.Logger

	terminated atomic.Bool
	ticks      atomic.Int64
	started    atomic.Bool
	stop       chan struct{}
	stopOnce   sync.Once
	done       chan struct{}

	mu  sync.Mutex
	err error
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithObserver registers fn to see every sample before the callback runs.
func WithObserver(fn func(Sample)) Option {
	return func(p *Poller) { p.observer = fn }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Poller) { p.log = log }
}

// New creates a poller. It does not start reading until Start is called.
func New(reader gpio.Reader, debouncer *logic.Debouncer, callback func(presence bool), opts ...Option) *Poller {
	p := &Poller{
		reader:    reader,
		debouncer: debouncer,
		callback:  callback,
		interval:  DefaultInterval,
		log:       zerolog.Nop(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the polling goroutine. Calls after the first are ignored.
func (p *Poller) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	go p.loop()
}

// Terminate asks the loop to stop and waits for it to exit. Once it returns
// the callback is never invoked again. Safe to call more than once and
// from any goroutine except the poller's own.
func (p *Poller) Terminate() {
	p.terminated.Store(true)
	p.stopOnce.Do(func() { close(p.stop) })
	if p.started.Load() {
		<-p.done
	}
}

// Done is closed when the loop exits, either through Terminate or because
// the sensor could not be read.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Err returns the read error that ended the loop, or nil.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Ticks returns the number of completed ticks.
func (p *Poller) Ticks() int64 {
	return p.ticks.Load()
}

func (p *Poller) loop() {
	defer close(p.done)

	p.log.Info().Dur("interval", p.interval).Msg("polling started")
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-p.stop:
			p.log.Info().Int64("ticks", p.ticks.Load()).Msg("polling stopped")
			return
		case <-timer.C:
		}
		if p.terminated.Load() {
			return
		}

		raw, err := p.reader.Read()
		if err != nil {
			p.fail(fmt.Errorf("read pir pin: %w", err))
			return
		}
		presence := p.debouncer.Update(raw)

		if p.observer != nil {
			p.observer(Sample{
				Raw:       raw,
				Presence:  presence,
				Phase:     p.debouncer.Phase(),
				Remaining: p.debouncer.Remaining(),
			})
		}
		if p.terminated.Load() {
			return
		}
		if p.callback != nil {
			p.callback(presence)
		}
		p.ticks.Inc()

		timer.Reset(p.interval)
	}
}

func (p *Poller) fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	p.log.Error().Err(err).Msg("sensor read failed, polling stopped")
}

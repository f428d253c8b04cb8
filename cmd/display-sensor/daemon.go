package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/display-sensor/internal/config"
	"github.com/sweeney/display-sensor/internal/controller"
	"github.com/sweeney/display-sensor/internal/display"
	"github.com/sweeney/display-sensor/internal/gpio"
	"github.com/sweeney/display-sensor/internal/logging"
	"github.com/sweeney/display-sensor/internal/logic"
	"github.com/sweeney/display-sensor/internal/mqtt"
	"github.com/sweeney/display-sensor/internal/poller"
	"github.com/sweeney/display-sensor/internal/status"
	"github.com/sweeney/display-sensor/internal/web"
)

const (
	eventStartup   = "STARTUP"
	eventHeartbeat = "HEARTBEAT"
	eventShutdown  = "SHUTDOWN"

	reasonSensorError = "SENSOR_ERROR"

	shutdownTimeout = 5 * time.Second
)

func runDaemon(mgr *config.Manager) error {
	cfg := mgr.Get()

	log, closer, err := logging.New(logConfig(cfg), os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()
	mgr.SetLogger(logging.Component(log, "config"))

	var reader gpio.Reader
	if cfg.Sensor.Enabled {
		r, err := gpio.NewRealReader(cfg.Sensor.Chip, cfg.Sensor.Pin)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer r.Close()
		reader = r
	}

	backend := display.NewBackend(backendOptions(cfg), logging.Component(log, "display"))

	var publisher mqtt.Publisher
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{Broker: cfg.MQTT.Broker}, logging.Component(log, "mqtt"))
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher = p
	}

	d := newDaemon(cfg, log, reader, backend, publisher)

	if file := mgr.ConfigFileUsed(); file != "" {
		mgr.OnConfigChange(d.applyConfig)
		if err := mgr.Watch(); err != nil {
			log.Warn().Err(err).Str("file", file).Msg("config reload disabled")
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	var heartbeat <-chan time.Time
	if publisher != nil && cfg.MQTT.Heartbeat > 0 {
		ticker := time.NewTicker(cfg.MQTT.Heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	return d.run(sig, heartbeat)
}

func logConfig(cfg config.Config) logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = cfg.Log.Level
	lc.Format = cfg.Log.Format
	lc.File = cfg.Log.File
	return lc
}

func backendOptions(cfg config.Config) display.Options {
	return display.Options{
		Kind:            cfg.DisplayKind(),
		SysfsRoot:       cfg.Display.SysfsRoot,
		BacklightDevice: cfg.Display.Backlight,
		Runner:          display.ExecRunner{},
	}
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		PollMs:        cfg.Sensor.Poll.Milliseconds(),
		DebounceOn:    cfg.Debounce.On,
		DebounceOff:   cfg.Debounce.Off,
		OnDelay:       cfg.Display.OnDelay,
		OffDelay:      cfg.Display.OffDelay,
		HeartbeatMs:   cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:        cfg.MQTT.Broker,
		HTTPAddr:      cfg.HTTP.Addr,
		DisplayKind:   cfg.Display.Kind,
		Pin:           cfg.Sensor.Pin,
		SensorEnabled: cfg.Sensor.Enabled,
	}
}

// daemon owns every long-lived component. The poller goroutine drives the
// controller; the HTTP server and config reload share the display port.
type daemon struct {
	cfg        config.Config
	log        zerolog.Logger
	port       *display.Port
	tracker    *status.Tracker
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	controller *controller.Controller
	poller     *poller.Poller
	server     *web.Server
	// httpAddr is the bound status server address, empty until bound.
	httpAddr atomic.String
}

// newDaemon wires the components. A nil reader or sensor.enabled = false
// runs without the sensor loop; a nil publisher disables MQTT events.
func newDaemon(cfg config.Config, log zerolog.Logger, reader gpio.Reader, backend display.Backend, publisher mqtt.Publisher) *daemon {
	d := &daemon{
		cfg:       cfg,
		log:       log,
		publisher: publisher,
	}
	if cs, ok := publisher.(mqtt.ConnectionStatus); ok {
		d.mqttStatus = cs
	}

	d.port = display.NewPort(backend, logging.Component(log, "display"))
	d.tracker = status.NewTracker(time.Now(), statusConfig(cfg))
	if info := readNetworkInfo(); info != nil {
		d.tracker.SetNetwork(info)
	}

	opts := []controller.Option{
		controller.WithLogger(logging.Component(log, "controller")),
		controller.WithTracker(d.tracker),
	}
	if publisher != nil {
		opts = append(opts, controller.WithPublisher(publisher))
	}
	d.controller = controller.New(logic.NewLifecycle(cfg.Display.OnDelay, cfg.Display.OffDelay), d.port, opts...)

	if cfg.Sensor.Enabled && reader != nil {
		d.poller = poller.New(reader,
			logic.NewDebouncer(cfg.Debounce.On, cfg.Debounce.Off),
			d.controller.OnPresenceChanged,
			poller.WithInterval(cfg.Sensor.Poll),
			poller.WithLogger(logging.Component(log, "poller")),
			poller.WithObserver(func(s poller.Sample) {
				d.tracker.UpdateSensor(s.Raw, s.Presence, s.Phase, s.Remaining)
			}),
		)
	}

	if cfg.HTTP.Addr != "" {
		d.server = web.New(cfg.HTTP.Addr, d.tracker, d.port, logging.Component(log, "web"))
	}
	return d
}

// listenHTTP binds the status server address. It returns nil when the server
// is disabled or the bind fails; the control loop runs without the status
// page in both cases.
func (d *daemon) listenHTTP() net.Listener {
	if d.server == nil {
		return nil
	}
	ln, err := net.Listen("tcp", d.cfg.HTTP.Addr)
	if err != nil {
		d.log.Error().Err(err).Str("addr", d.cfg.HTTP.Addr).Msg("http status server failed to bind")
		return nil
	}
	d.httpAddr.Store(ln.Addr().String())
	d.log.Info().Str("addr", ln.Addr().String()).Msg("http status server listening")
	return ln
}

// run publishes STARTUP, starts the components and blocks until a signal
// arrives or the sensor loop fails. It publishes SHUTDOWN before returning.
func (d *daemon) run(sig <-chan os.Signal, heartbeat <-chan time.Time) error {
	d.publishStatus(eventStartup, "")

	var g errgroup.Group
	if ln := d.listenHTTP(); ln != nil {
		g.Go(func() error {
			if err := d.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.log.Error().Err(err).Str("addr", ln.Addr().String()).Msg("http server stopped")
			}
			return nil
		})
	}

	d.start()

	var (
		reason string
		runErr error
	)
loop:
	for {
		select {
		case s := <-sig:
			reason = signalName(s)
			d.log.Info().Str("signal", reason).Msg("shutting down")
			break loop

		case <-d.pollerDone():
			runErr = d.poller.Err()
			reason = reasonSensorError
			d.log.Error().Err(runErr).Msg("sensor loop stopped")
			break loop

		case <-heartbeat:
			if info := readNetworkInfo(); info != nil {
				d.tracker.SetNetwork(info)
			}
			d.publishStatus(eventHeartbeat, "")
		}
	}

	d.stop()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	d.publishStatus(eventShutdown, reason)
	return runErr
}

func (d *daemon) start() {
	level, err := d.port.SetBrightness(d.cfg.Display.Brightness)
	if err != nil {
		d.log.Warn().Err(err).Int("brightness", level).Msg("initial brightness not applied")
	}
	d.tracker.SetDisplay(string(d.port.Kind()), d.port.Cached(), d.port.Brightness())

	if d.poller == nil {
		// Without the sensor the display stays on.
		d.log.Info().Msg("sensor disabled, keeping display on")
		if err := d.port.TurnOn(); err == nil {
			d.tracker.UpdateLifecycle(logic.PhaseOn, 0, d.controller.Counts())
		}
		d.tracker.SetDisplay(string(d.port.Kind()), d.port.Cached(), d.port.Brightness())
		return
	}

	d.log.Info().
		Int("pin", d.cfg.Sensor.Pin).
		Dur("poll", d.cfg.Sensor.Poll).
		Int("on_delay", d.cfg.Display.OnDelay).
		Int("off_delay", d.cfg.Display.OffDelay).
		Str("display", string(d.port.Kind())).
		Msg("started")
	d.poller.Start()
}

func (d *daemon) stop() {
	if d.poller != nil {
		d.poller.Terminate()
	}
	if d.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := d.server.Shutdown(ctx); err != nil {
			d.log.Warn().Err(err).Msg("http shutdown")
		}
	}
}

func (d *daemon) pollerDone() <-chan struct{} {
	if d.poller == nil {
		return nil
	}
	return d.poller.Done()
}

// applyConfig handles a reloaded config file. Only the brightness is applied
// live; everything else takes effect on restart.
func (d *daemon) applyConfig(cfg config.Config) {
	if cfg.Display.Brightness != d.port.Brightness() {
		level, err := d.port.SetBrightness(cfg.Display.Brightness)
		d.tracker.SetBrightness(level)
		if err != nil {
			d.log.Warn().Err(err).Int("brightness", level).Msg("reloaded brightness not applied")
		} else {
			d.log.Info().Int("brightness", level).Msg("brightness reloaded")
		}
	}
	if cfg.Sensor != d.cfg.Sensor || cfg.Debounce != d.cfg.Debounce ||
		cfg.Display.OnDelay != d.cfg.Display.OnDelay || cfg.Display.OffDelay != d.cfg.Display.OffDelay {
		d.log.Info().Msg("sensor and delay changes apply on restart")
	}
}

func (d *daemon) publishStatus(event, reason string) {
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	if d.publisher == nil {
		return
	}

	snap := d.tracker.Snapshot()
	se := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(se); err != nil {
		d.log.Warn().Err(err).Str("event", event).Msg("system event publish failed")
		return
	}
	d.log.Debug().Str("event", event).Msg("published system event")
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

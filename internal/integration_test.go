package internal

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/display-sensor/internal/controller"
	"github.com/sweeney/display-sensor/internal/display"
	"github.com/sweeney/display-sensor/internal/gpio"
	"github.com/sweeney/display-sensor/internal/logic"
	"github.com/sweeney/display-sensor/internal/mqtt"
	"github.com/sweeney/display-sensor/internal/poller"
	"github.com/sweeney/display-sensor/internal/status"
	"github.com/sweeney/display-sensor/internal/web"
)

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// pipeline is the daemon's per-tick path without the poller goroutine.
type pipeline struct {
	reader     *gpio.FakeReader
	debouncer  *logic.Debouncer
	backend    *display.FakeBackend
	port       *display.Port
	publisher  *mqtt.FakePublisher
	tracker    *status.Tracker
	controller *controller.Controller
}

func newPipeline(samples []bool, debounceOn, debounceOff, onDelay, offDelay int) *pipeline {
	p := &pipeline{
		reader:    gpio.NewFakeReader(samples...),
		debouncer: logic.NewDebouncer(debounceOn, debounceOff),
		backend:   display.NewFakeBackend(logic.PowerOff),
		publisher: mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(startTime, status.Config{OnDelay: onDelay, OffDelay: offDelay}),
	}
	p.port = display.NewPort(p.backend, zerolog.Nop())
	p.controller = controller.New(logic.NewLifecycle(onDelay, offDelay), p.port,
		controller.WithTracker(p.tracker),
		controller.WithPublisher(p.publisher),
		controller.WithClock(func() time.Time { return startTime }),
	)
	return p
}

// run simulates the poller loop for every sample.
func (p *pipeline) run(t *testing.T) {
	t.Helper()
	for i := range p.reader.Samples {
		raw, err := p.reader.Read()
		require.NoError(t, err, "tick %d", i)
		presence := p.debouncer.Update(raw)
		p.tracker.UpdateSensor(raw, presence, p.debouncer.Phase(), p.debouncer.Remaining())
		p.controller.OnPresenceChanged(presence)
	}
}

func eventTypes(events []logic.Event) []logic.EventType {
	out := make([]logic.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

// TestIntegrationFullFlow drives motion in and out through the debouncer,
// the lifecycle and the port.
func TestIntegrationFullFlow(t *testing.T) {
	samples := []bool{
		false,      // baseline, display reconciled to off
		true, true, // presence confirmed on the second motion tick
		true,         // on delay elapsed, display on
		false, false, // absence grace period
		false,        // absence confirmed
		false, false, // off delay elapsed, display off
	}
	p := newPipeline(samples, 2, 3, 2, 3)
	p.run(t)

	on, off := p.backend.Calls()
	assert.Equal(t, 1, on)
	assert.Equal(t, 1, off)
	assert.Equal(t, logic.PowerOff, p.port.Cached())
	assert.Equal(t, logic.PhaseOff, p.controller.Phase())

	assert.Equal(t, []logic.EventType{
		logic.EventDisplay, // unknown -> off
		logic.EventPresence,
		logic.EventDisplay, // off -> on-count
		logic.EventDisplay, // on-count -> on
		logic.EventAbsence,
		logic.EventDisplay, // on -> off-count
		logic.EventDisplay, // off-count -> off
	}, eventTypes(p.publisher.EventsSnapshot()))

	assert.Equal(t, logic.EventCounts{PresenceOn: 1, PresenceOff: 1, DisplayOn: 1, DisplayOff: 1}, p.controller.Counts())

	snap := p.tracker.Snapshot()
	assert.Equal(t, logic.PhaseOff, snap.Phase)
	assert.Equal(t, logic.PowerOff, snap.Power)
	assert.Equal(t, int64(len(samples)), snap.Ticks)
	assert.Equal(t, p.controller.Counts(), snap.Counts)
}

func TestIntegrationNoCommandsAtStartup(t *testing.T) {
	p := newPipeline([]bool{false, false, false, false}, 2, 3, 2, 3)
	p.run(t)

	on, off := p.backend.Calls()
	assert.Zero(t, on)
	assert.Zero(t, off)
	assert.Equal(t, 1, p.backend.QueryCalls, "physical state is queried once while unknown")

	events := p.publisher.EventsSnapshot()
	require.Len(t, events, 1)
	assert.Equal(t, logic.PhaseOff, events[0].Phase)
	assert.Equal(t, logic.ActionNone, events[0].Action)
}

func TestIntegrationAdoptsDisplayAlreadyOn(t *testing.T) {
	p := newPipeline([]bool{true, true, true}, 2, 3, 2, 3)
	p.backend.State = logic.PowerOn
	p.run(t)

	on, off := p.backend.Calls()
	assert.Zero(t, on, "an already-on display is adopted, not switched")
	assert.Zero(t, off)
	assert.Equal(t, logic.PhaseOn, p.controller.Phase())
}

func TestIntegrationMotionBlipRejected(t *testing.T) {
	p := newPipeline([]bool{false, true, false, false, true, false, false}, 2, 3, 1, 1)
	p.run(t)

	on, off := p.backend.Calls()
	assert.Zero(t, on)
	assert.Zero(t, off)
	assert.Equal(t, logic.EventCounts{}, p.controller.Counts())
}

func TestIntegrationShortAbsenceKeepsDisplayOn(t *testing.T) {
	samples := []bool{false, true, true, true, true}
	samples = append(samples, false, false) // shorter than the off debounce
	samples = append(samples, true, true, true)
	p := newPipeline(samples, 2, 3, 2, 3)
	p.run(t)

	on, off := p.backend.Calls()
	assert.Equal(t, 1, on)
	assert.Zero(t, off)
	assert.Equal(t, logic.PhaseOn, p.controller.Phase())
}

func TestIntegrationCommandFailureDoesNotRetry(t *testing.T) {
	p := newPipeline([]bool{false, true, true, true, true, true}, 2, 3, 2, 3)
	p.backend.PowerError = errors.New("vcgencmd: not found")
	p.run(t)

	on, _ := p.backend.Calls()
	assert.Equal(t, 1, on)
	assert.Equal(t, logic.PhaseOn, p.controller.Phase(), "the phase advances even when the command fails")
	assert.Equal(t, logic.PowerUnknown, p.port.Cached())
	assert.Equal(t, 1, p.controller.Counts().CommandFailures)
	assert.Equal(t, int64(1), p.port.Stats().Failures)

	events := p.publisher.EventsSnapshot()
	last := events[len(events)-1]
	assert.Equal(t, logic.ActionTurnOn, last.Action)
	assert.True(t, last.Failed)
}

func TestIntegrationPublishFailureDoesNotStopControl(t *testing.T) {
	p := newPipeline([]bool{false, true, true, true}, 2, 3, 2, 3)
	p.publisher.PublishError = errors.New("broker unavailable")
	p.run(t)

	on, _ := p.backend.Calls()
	assert.Equal(t, 1, on)
	assert.Empty(t, p.publisher.EventsSnapshot())
}

func TestIntegrationPayloadFormat(t *testing.T) {
	p := newPipeline([]bool{false, true, true, true}, 2, 3, 2, 3)
	p.run(t)

	require.NotEmpty(t, p.publisher.Payloads)
	last := p.publisher.Payloads[len(p.publisher.Payloads)-1]

	var got mqtt.Payload
	require.NoError(t, json.Unmarshal(last, &got))
	assert.Equal(t, mqtt.DisplayPayload{
		Timestamp: "2026-01-01T12:00:00Z",
		Event:     "DISPLAY",
		Presence:  true,
		Phase:     "on",
		Action:    "turn-on",
	}, got.Display)
}

// TestIntegrationPollerToHTTP runs the real poller goroutine and reads the
// result back through the status server.
func TestIntegrationPollerToHTTP(t *testing.T) {
	backend := display.NewFakeBackend(logic.PowerOff)
	port := display.NewPort(backend, zerolog.Nop())
	tracker := status.NewTracker(time.Now(), status.Config{SensorEnabled: true, OnDelay: 2, OffDelay: 5})
	ctrl := controller.New(logic.NewLifecycle(2, 5), port, controller.WithTracker(tracker))

	pl := poller.New(gpio.NewFakeReader(true), logic.NewDebouncer(1, 1), ctrl.OnPresenceChanged,
		poller.WithInterval(time.Millisecond),
		poller.WithObserver(func(s poller.Sample) {
			tracker.UpdateSensor(s.Raw, s.Presence, s.Phase, s.Remaining)
		}),
	)
	pl.Start()
	require.Eventually(t, func() bool {
		on, _ := backend.Calls()
		return on == 1
	}, 2*time.Second, time.Millisecond)
	pl.Terminate()
	require.NoError(t, pl.Err())

	srv := httptest.NewServer(web.New("", tracker, port, zerolog.Nop()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/index.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body status.StatusJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Status.Ready)
	assert.True(t, body.Status.Sensor.Presence)
	assert.Equal(t, "on", body.Status.Display.Phase)
	assert.Equal(t, "ON", body.Status.Display.Power)
	assert.Equal(t, 1, body.Status.Counts.DisplayOn)

	// Brightness from HTTP reaches the same port the controller drives.
	resp2, err := http.Post(srv.URL+"/brightness", "application/x-www-form-urlencoded",
		strings.NewReader(url.Values{"level": {"300"}}.Encode()))
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	assert.Equal(t, 255, port.Brightness())
	assert.Equal(t, 255, backend.Level)
	assert.Equal(t, 255, tracker.Snapshot().Brightness)
}

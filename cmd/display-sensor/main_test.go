package main

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/display-sensor/internal/config"
	"github.com/sweeney/display-sensor/internal/display"
	"github.com/sweeney/display-sensor/internal/gpio"
	"github.com/sweeney/display-sensor/internal/logic"
	"github.com/sweeney/display-sensor/internal/mqtt"
	"github.com/sweeney/display-sensor/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		assert.Equal(t, canonical, got)
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	require.NotNil(t, info)
	assert.Equal(t, &status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}, info)
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	assert.Nil(t, readNetworkInfo())
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "")

	info := readNetworkInfo()
	require.NotNil(t, info)
	assert.Equal(t, "connected", info.Status)
	assert.Empty(t, info.IP)
}

func TestSignalName(t *testing.T) {
	assert.Equal(t, "SIGINT", signalName(syscall.SIGINT))
	assert.Equal(t, "SIGTERM", signalName(syscall.SIGTERM))
	assert.Equal(t, "UNKNOWN", signalName(syscall.SIGHUP))
}

// --- daemon tests ---

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Sensor.Poll = time.Millisecond
	cfg.Debounce.On = 1
	cfg.Debounce.Off = 1
	cfg.Display.OnDelay = 1
	cfg.Display.OffDelay = 1
	cfg.Display.Brightness = 200
	cfg.HTTP.Addr = ""
	return cfg
}

type harness struct {
	d       *daemon
	backend *display.FakeBackend
	pub     *mqtt.FakePublisher
	sig     chan os.Signal
	beat    chan time.Time
	errCh   chan error
}

func startDaemon(t *testing.T, cfg config.Config, reader gpio.Reader) *harness {
	t.Helper()
	h := &harness{
		backend: display.NewFakeBackend(logic.PowerOff),
		pub:     mqtt.NewFakePublisher(),
		sig:     make(chan os.Signal, 1),
		beat:    make(chan time.Time),
		errCh:   make(chan error, 1),
	}
	h.pub.Connected = true
	h.d = newDaemon(cfg, zerolog.Nop(), reader, h.backend, h.pub)
	go func() {
		h.errCh <- h.d.run(h.sig, h.beat)
	}()
	return h
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
		return nil
	}
}

func (h *harness) displayOn() bool {
	on, _ := h.backend.Calls()
	return on > 0
}

func TestDaemonTurnsDisplayOnWithMotion(t *testing.T) {
	h := startDaemon(t, testConfig(), gpio.NewFakeReader(true))

	require.Eventually(t, h.displayOn, 2*time.Second, time.Millisecond)
	h.sig <- syscall.SIGTERM
	require.NoError(t, h.wait(t))

	on, off := h.backend.Calls()
	assert.Equal(t, 1, on)
	assert.Equal(t, 0, off)
	assert.Equal(t, 200, h.backend.Level)

	snap := h.d.tracker.Snapshot()
	assert.Equal(t, logic.PhaseOn, snap.Phase)
	assert.Equal(t, logic.PowerOn, snap.Power)
	assert.True(t, snap.Presence)
	assert.True(t, snap.MQTTConnected)

	events := h.pub.EventsSnapshot()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, logic.EventDisplay, last.Type)
	assert.Equal(t, logic.ActionTurnOn, last.Action)
}

func TestDaemonSystemEvents(t *testing.T) {
	h := startDaemon(t, testConfig(), gpio.NewFakeReader(false))

	h.beat <- time.Now()
	h.sig <- syscall.SIGINT
	require.NoError(t, h.wait(t))

	assert.Equal(t, []string{eventStartup, eventHeartbeat, eventShutdown}, h.pub.SystemEventNames())

	shutdown := h.pub.SystemEvents[2]
	assert.Equal(t, "SIGINT", shutdown.Reason)
	assert.True(t, shutdown.Retained)
	assert.Contains(t, string(shutdown.RawPayload), `"event":"SHUTDOWN"`)
	assert.Contains(t, string(shutdown.RawPayload), `"reason":"SIGINT"`)
}

func TestDaemonHeartbeatIncludesNetworkInfo(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "192.168.1.42")

	h := startDaemon(t, testConfig(), gpio.NewFakeReader(false))
	h.beat <- time.Now()
	h.sig <- syscall.SIGTERM
	require.NoError(t, h.wait(t))

	require.Len(t, h.pub.SystemEvents, 3)
	hb := h.pub.SystemEvents[1]
	assert.Equal(t, eventHeartbeat, hb.Event)
	assert.Contains(t, string(hb.RawPayload), "192.168.1.42")
}

func TestDaemonStopsOnSensorError(t *testing.T) {
	sentinel := errors.New("line released")
	reader := gpio.NewFakeReader(false)
	reader.FailAfter = 3
	reader.ReadError = sentinel

	h := startDaemon(t, testConfig(), reader)
	err := h.wait(t)

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)

	names := h.pub.SystemEventNames()
	require.NotEmpty(t, names)
	assert.Equal(t, eventShutdown, names[len(names)-1])
	assert.Equal(t, reasonSensorError, h.pub.SystemEvents[len(names)-1].Reason)
}

func TestDaemonPublishErrorsDoNotStopLoop(t *testing.T) {
	cfg := testConfig()
	h := &harness{
		backend: display.NewFakeBackend(logic.PowerOff),
		pub:     mqtt.NewFakePublisher(),
		sig:     make(chan os.Signal, 1),
		errCh:   make(chan error, 1),
	}
	h.pub.PublishError = errors.New("broker unavailable")
	h.pub.PublishSystemError = errors.New("broker unavailable")
	h.d = newDaemon(cfg, zerolog.Nop(), gpio.NewFakeReader(true), h.backend, h.pub)
	go func() { h.errCh <- h.d.run(h.sig, nil) }()

	require.Eventually(t, h.displayOn, 2*time.Second, time.Millisecond)
	h.sig <- syscall.SIGTERM
	require.NoError(t, h.wait(t))
	assert.Empty(t, h.pub.EventsSnapshot())
}

func TestDaemonSensorDisabledKeepsDisplayOn(t *testing.T) {
	cfg := testConfig()
	cfg.Sensor.Enabled = false

	h := startDaemon(t, cfg, gpio.NewFakeReader(false))
	require.Nil(t, h.d.poller)

	require.Eventually(t, h.displayOn, 2*time.Second, time.Millisecond)
	h.sig <- syscall.SIGTERM
	require.NoError(t, h.wait(t))

	on, off := h.backend.Calls()
	assert.Equal(t, 1, on)
	assert.Equal(t, 0, off)
	assert.Equal(t, logic.PhaseOn, h.d.tracker.Snapshot().Phase)
}

func TestDaemonWithoutPublisher(t *testing.T) {
	backend := display.NewFakeBackend(logic.PowerOn)
	d := newDaemon(testConfig(), zerolog.Nop(), gpio.NewFakeReader(true), backend, nil)

	sig := make(chan os.Signal, 1)
	sig <- syscall.SIGTERM
	assert.NoError(t, d.run(sig, nil))
}

func TestDaemonServesStatusOnBoundAddress(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.Addr = "127.0.0.1:0"
	h := startDaemon(t, cfg, gpio.NewFakeReader(true))

	require.Eventually(t, func() bool { return h.d.httpAddr.Load() != "" }, 2*time.Second, time.Millisecond)
	require.Eventually(t, h.displayOn, 2*time.Second, time.Millisecond)

	resp, err := http.Get("http://" + h.d.httpAddr.Load() + "/index.json")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"commands_failed": 0`)

	h.sig <- syscall.SIGTERM
	require.NoError(t, h.wait(t))
}

func TestDaemonReportsBindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := testConfig()
	cfg.HTTP.Addr = taken.Addr().String()
	var buf bytes.Buffer
	d := newDaemon(cfg, zerolog.New(&buf), nil, display.NewFakeBackend(logic.PowerOff), nil)

	assert.Nil(t, d.listenHTTP())
	assert.Empty(t, d.httpAddr.Load())
	assert.Contains(t, buf.String(), "http status server failed to bind")
	assert.NotContains(t, buf.String(), "http status server listening")

	// The daemon still runs and stops cleanly without the status page.
	sig := make(chan os.Signal, 1)
	sig <- syscall.SIGTERM
	assert.NoError(t, d.run(sig, nil))
}

func TestApplyConfigBrightness(t *testing.T) {
	backend := display.NewFakeBackend(logic.PowerOff)
	d := newDaemon(testConfig(), zerolog.Nop(), nil, backend, nil)

	cfg := testConfig()
	cfg.Display.Brightness = 64
	d.applyConfig(cfg)

	assert.Equal(t, 64, backend.Level)
	assert.Equal(t, 64, d.port.Brightness())
	assert.Equal(t, 64, d.tracker.Snapshot().Brightness)

	// Unchanged brightness is not rewritten.
	calls := backend.BrightnessCalls
	d.applyConfig(cfg)
	assert.Equal(t, calls, backend.BrightnessCalls)
}

// --- command tests ---

func TestRenderState(t *testing.T) {
	out := renderState(stateView{
		SensorEnabled: true,
		Motion:        true,
		Pin:           18,
		Kind:          display.KindPanel,
		Power:         logic.PowerOn,
		Brightness:    128,
	})
	assert.Contains(t, out, "MOTION")
	assert.Contains(t, out, "pin 18")
	assert.Contains(t, out, "ON")
	assert.Contains(t, out, "panel")
	assert.Contains(t, out, "128")

	out = renderState(stateView{Power: logic.PowerUnknown, Kind: display.KindNone})
	assert.Contains(t, out, "disabled")
	assert.Contains(t, out, "UNKNOWN")
}

func TestPrintBrightness(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printBrightness(&buf, 300, 255))
	assert.Equal(t, "brightness 255 (clamped from 300)\n", buf.String())

	buf.Reset()
	require.NoError(t, printBrightness(&buf, 80, 80))
	assert.Equal(t, "brightness 80\n", buf.String())
}

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "display-sensor.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigCommand(t *testing.T) {
	path := writeTestConfig(t, "[display]\nkind = \"none\"\non_delay = 7\n")

	out, err := execute(t, "--config", path, "config")
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.Contains(t, out, "OnDelay: 7")
}

func TestConfigCommandRejectsInvalidFile(t *testing.T) {
	path := writeTestConfig(t, "[display]\nbrightness = 999\n")

	_, err := execute(t, "--config", path, "config")
	assert.Error(t, err)
}

func TestBrightnessCommand(t *testing.T) {
	path := writeTestConfig(t, "[display]\nkind = \"none\"\n")

	out, err := execute(t, "--config", path, "brightness", "300")
	require.NoError(t, err)
	assert.Contains(t, out, "brightness 255 (clamped from 300)")

	_, err = execute(t, "--config", path, "brightness", "bright")
	assert.Error(t, err)

	_, err = execute(t, "--config", path, "brightness")
	assert.Error(t, err)
}

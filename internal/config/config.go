// Package config loads daemon settings from a config file and LUMICLOCK_*
// environment variables, and reloads them when the file changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sweeney/display-sensor/internal/display"
	"github.com/sweeney/display-sensor/internal/logging"
)

const (
	// EnvPrefix prefixes every environment override, e.g. LUMICLOCK_DISPLAY_BRIGHTNESS.
	EnvPrefix = "LUMICLOCK"
	// FileName is the config file name without extension.
	FileName = "display-sensor"
	appDir   = "lumiclock"
)

// Config is the full daemon configuration.
type Config struct {
	Sensor   SensorConfig   `mapstructure:"sensor"`
	Debounce DebounceConfig `mapstructure:"debounce"`
	Display  DisplayConfig  `mapstructure:"display"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
}

// SensorConfig selects the PIR input line.
type SensorConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Pin     int           `mapstructure:"pin"`
	Chip    string        `mapstructure:"chip"`
	Poll    time.Duration `mapstructure:"poll"`
}

// DebounceConfig holds the presence debouncer delays in ticks.
type DebounceConfig struct {
	On  int `mapstructure:"on"`
	Off int `mapstructure:"off"`
}

// DisplayConfig selects the display backend and lifecycle delays in ticks.
type DisplayConfig struct {
	Kind       string `mapstructure:"kind"`
	OnDelay    int    `mapstructure:"on_delay"`
	OffDelay   int    `mapstructure:"off_delay"`
	Brightness int    `mapstructure:"brightness"`
	Backlight  string `mapstructure:"backlight"`
	SysfsRoot  string `mapstructure:"sysfs_root"`
}

// MQTTConfig configures event publishing. An empty broker disables it.
type MQTTConfig struct {
	Broker    string        `mapstructure:"broker"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`
}

// HTTPConfig configures the status server. An empty address disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Sensor: SensorConfig{
			Enabled: true,
			Pin:     18,
			Chip:    "gpiochip0",
			Poll:    time.Second,
		},
		Debounce: DebounceConfig{On: 2, Off: 300},
		Display: DisplayConfig{
			Kind:       string(display.KindAuto),
			OnDelay:    10,
			OffDelay:   60,
			Brightness: display.MaxBrightness,
			Backlight:  display.DefaultBacklightDevice,
			SysfsRoot:  display.DefaultSysfsRoot,
		},
		MQTT: MQTTConfig{Heartbeat: 15 * time.Minute},
		HTTP: HTTPConfig{Addr: ":8080"},
		Log:  LogConfig{Level: "info", Format: "console"},
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Sensor.Pin < 0 {
		errs = append(errs, fmt.Errorf("sensor.pin must be >= 0, got %d", c.Sensor.Pin))
	}
	if c.Sensor.Poll <= 0 {
		errs = append(errs, fmt.Errorf("sensor.poll must be positive, got %s", c.Sensor.Poll))
	}
	if c.Debounce.On < 1 || c.Debounce.Off < 1 {
		errs = append(errs, fmt.Errorf("debounce.on and debounce.off must be >= 1, got %d/%d", c.Debounce.On, c.Debounce.Off))
	}
	if c.Display.OnDelay < 1 || c.Display.OffDelay < 1 {
		errs = append(errs, fmt.Errorf("display.on_delay and display.off_delay must be >= 1, got %d/%d", c.Display.OnDelay, c.Display.OffDelay))
	}
	if c.Display.Brightness < display.MinBrightness || c.Display.Brightness > display.MaxBrightness {
		errs = append(errs, fmt.Errorf("display.brightness must be %d..%d, got %d", display.MinBrightness, display.MaxBrightness, c.Display.Brightness))
	}
	if _, err := display.ParseKind(c.Display.Kind); err != nil {
		errs = append(errs, fmt.Errorf("display.kind: %w", err))
	}
	if c.MQTT.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("mqtt.heartbeat must be >= 0, got %s", c.MQTT.Heartbeat))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// DisplayKind returns the parsed display kind. Call after Validate.
func (c *Config) DisplayKind() display.Kind {
	k, _ := display.ParseKind(c.Display.Kind)
	return k
}

// SearchDirs returns the directories searched for the config file, in order.
func SearchDirs() []string {
	var dirs []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, appDir))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, ".config", appDir)
		if len(dirs) == 0 || dirs[0] != dir {
			dirs = append(dirs, dir)
		}
	}
	return append(dirs, ".")
}

func normalize(c *Config) {
	c.Display.Kind = strings.ToLower(strings.TrimSpace(c.Display.Kind))
	if c.Display.Kind == "" {
		c.Display.Kind = string(display.KindAuto)
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

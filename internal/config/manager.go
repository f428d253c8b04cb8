package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Manager handles configuration loading, watching, and reloading.
// The daemon never writes the config file.
type Manager struct {
	viper     *viper.Viper
	log       zerolog.Logger
	mu        sync.RWMutex
	config    *Config
	callbacks []func(Config)
	watching  bool
}

// NewManager creates a manager. A non-empty file is read as-is; otherwise
// display-sensor.{toml,yaml,json} is searched for in SearchDirs.
func NewManager(file string) *Manager {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		for _, dir := range SearchDirs() {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Manager{viper: v, log: zerolog.Nop()}
}

// SetLogger sets the logger used for reload messages.
func (m *Manager) SetLogger(log zerolog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = log
}

func (m *Manager) setDefaults() {
	d := Default()
	m.viper.SetDefault("sensor.enabled", d.Sensor.Enabled)
	m.viper.SetDefault("sensor.pin", d.Sensor.Pin)
	m.viper.SetDefault("sensor.chip", d.Sensor.Chip)
	m.viper.SetDefault("sensor.poll", d.Sensor.Poll)
	m.viper.SetDefault("debounce.on", d.Debounce.On)
	m.viper.SetDefault("debounce.off", d.Debounce.Off)
	m.viper.SetDefault("display.kind", d.Display.Kind)
	m.viper.SetDefault("display.on_delay", d.Display.OnDelay)
	m.viper.SetDefault("display.off_delay", d.Display.OffDelay)
	m.viper.SetDefault("display.brightness", d.Display.Brightness)
	m.viper.SetDefault("display.backlight", d.Display.Backlight)
	m.viper.SetDefault("display.sysfs_root", d.Display.SysfsRoot)
	m.viper.SetDefault("mqtt.broker", d.MQTT.Broker)
	m.viper.SetDefault("mqtt.heartbeat", d.MQTT.Heartbeat)
	m.viper.SetDefault("http.addr", d.HTTP.Addr)
	m.viper.SetDefault("log.level", d.Log.Level)
	m.viper.SetDefault("log.format", d.Log.Format)
	m.viper.SetDefault("log.file", d.Log.File)
}

// Load reads defaults, the config file if one exists, and the environment.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setDefaults()
	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config %s: %w", m.viper.ConfigFileUsed(), err)
		}
	}

	cfg, err := m.decode()
	if err != nil {
		return err
	}
	m.config = cfg
	return nil
}

func (m *Manager) decode() (*Config, error) {
	cfg := &Config{}
	if err := m.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", m.viper.ConfigFileUsed(), err)
	}
	normalize(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return Default()
	}
	return *m.config
}

// ConfigFileUsed returns the file that was read, or "" when running on
// defaults and environment only.
func (m *Manager) ConfigFileUsed() string {
	return m.viper.ConfigFileUsed()
}

// OnConfigChange registers a callback run after every successful reload.
func (m *Manager) OnConfigChange(callback func(Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// Watch reloads the config file when it changes. A reload that fails to
// parse or validate is logged and the previous configuration is kept.
// Without a config file there is nothing to watch.
func (m *Manager) Watch() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watching {
		return nil
	}
	if m.viper.ConfigFileUsed() == "" {
		return errors.New("no config file to watch")
	}

	m.viper.OnConfigChange(func(e fsnotify.Event) {
		m.mu.Lock()
		log := m.log
		log.Debug().Str("op", e.Op.String()).Str("file", e.Name).Msg("config change detected")

		cfg, err := m.decode()
		if err != nil {
			m.mu.Unlock()
			log.Warn().Err(err).Msg("config reload failed, keeping previous values")
			return
		}
		m.config = cfg
		callbacks := append([]func(Config){}, m.callbacks...)
		m.mu.Unlock()

		log.Info().Str("file", e.Name).Msg("config reloaded")
		for _, cb := range callbacks {
			cb(*cfg)
		}
	})
	m.viper.WatchConfig()
	m.watching = true
	return nil
}

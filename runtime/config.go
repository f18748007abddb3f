package runtime

import (
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leeforge/xrcore/config"
	"github.com/leeforge/xrcore/display"
	"github.com/leeforge/xrcore/eventbus"
	"github.com/leeforge/xrcore/logging"
	"github.com/leeforge/xrcore/recordlog"
)

// Config is the runtime configuration, usually read from config.yaml.
type Config struct {
	Log          logging.Config   `mapstructure:"log" json:"log" yaml:"log"`
	Bus          eventbus.Config  `mapstructure:"bus" json:"bus" yaml:"bus"`
	RecordLogger recordlog.Config `mapstructure:"record_logger" json:"recordLogger" yaml:"record_logger"`
	Display      display.Config   `mapstructure:"display" json:"display" yaml:"display"`
	Status       StatusConfig     `mapstructure:"status" json:"status" yaml:"status"`

	// Plugins lists the module paths loaded at startup, in load order.
	Plugins []string `mapstructure:"plugins" json:"plugins" yaml:"plugins"`

	// RunDuration stops the runtime after it elapses. Zero runs until
	// interrupted.
	RunDuration time.Duration `mapstructure:"run_duration" json:"runDuration" yaml:"run_duration" validate:"gte=0"`

	// PluginSettings holds one settings section per plugin name.
	PluginSettings map[string]map[string]any `mapstructure:"plugin_settings" json:"pluginSettings" yaml:"plugin_settings"`
}

// StatusConfig controls the HTTP status endpoint.
type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" json:"addr" yaml:"addr" default:"127.0.0.1:9464" validate:"required_if=Enabled true"`
}

// LoadConfig reads a Config through the layered config loader.
func LoadConfig(opts config.Options) (Config, error) {
	var cfg Config
	cfg.Log = logging.DefaultConfig()

	c, err := config.New(opts)
	if err != nil {
		return cfg, err
	}
	if err := c.Bind(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// WatchConfig is LoadConfig that keeps watching the configuration files.
// onChange receives each Config re-read after a file change, or the error of
// a failed reload. It runs on the watcher goroutine. Without configuration
// files there is nothing to watch and onChange never runs.
func WatchConfig(opts config.Options, onChange func(Config, error)) (Config, error) {
	live := &Config{Log: logging.DefaultConfig()}

	opts.Watchable = true
	opts.OnChange = func(_ fsnotify.Event, err error) {
		if err != nil {
			onChange(Config{}, err)
			return
		}
		onChange(*live, nil)
	}

	c, err := config.New(opts)
	if err != nil {
		return *live, err
	}
	if err := c.Bind(live); err != nil {
		return *live, err
	}
	return *live, nil
}

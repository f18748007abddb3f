// Package config loads layered YAML configuration with environment
// overrides.
//
// Files are read from Options.BasePath in this order, later files winning:
//
//	config.yaml
//	config.local.yaml
//	config.<mode>.yaml
//	config.<mode>.local.yaml
//
// followed by the aliases of the current env_mode (config.dev.yaml,
// config.prod.yaml, ...). Environment variables named PREFIX_SECTION_KEY
// override file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/leeforge/xrcore/env_mode"
	"github.com/leeforge/xrcore/utils"
)

const DefaultEnvPrefix = "XR"

var validate = validator.New(validator.WithRequiredStructEnabled())

func DefaultOptions() Options {
	basePath := os.Getenv("XR_CONFIG_PATH")
	if basePath == "" {
		basePath = "config"
	}

	return Options{
		BasePath:     basePath,
		FileName:     "config",
		FileType:     "yaml",
		EnvPrefix:    DefaultEnvPrefix,
		AllowMissing: true,
	}
}

// New reads the configuration files opts selects.
func New(optsArr ...Options) (*Config, error) {
	opts := DefaultOptions()
	if len(optsArr) > 0 {
		opts = optsArr[0]
	}
	if opts.FileName == "" {
		opts.FileName = "config"
	}
	if opts.FileType == "" {
		opts.FileType = "yaml"
	}

	files := filePaths(opts)
	if len(files) == 0 && !opts.AllowMissing {
		return nil, fmt.Errorf("no configuration files found in %s", opts.BasePath)
	}

	instance, err := load(files, opts)
	if err != nil {
		return nil, err
	}

	return &Config{instance: instance, opts: opts, files: files}, nil
}

// Files returns the configuration files that were read, in merge order.
func (c *Config) Files() []string {
	return append([]string(nil), c.files...)
}

// Bind decodes the configuration into instance, a pointer to a struct.
// Defaults from `default` tags fill zero fields and `validate` tags are
// checked. With Watchable set, instance is refreshed on every file change.
func (c *Config) Bind(instance any) error {
	if c == nil || c.instance == nil {
		return fmt.Errorf("config instance is nil")
	}
	if instance == nil || reflect.ValueOf(instance).Kind() != reflect.Pointer {
		return fmt.Errorf("bind target must be a non-nil pointer, got %T", instance)
	}

	c.watchMutex.Lock()
	defer c.watchMutex.Unlock()

	if err := c.decode(instance); err != nil {
		return err
	}

	if c.opts.Watchable && len(c.files) > 0 {
		c.watchOnce.Do(func() { c.watch(instance) })
	}
	return nil
}

func (c *Config) decode(instance any) error {
	return c.decodeWith(c.instance, instance)
}

func (c *Config) decodeWith(v *viper.Viper, instance any) error {
	if err := defaults.Set(instance); err != nil {
		return fmt.Errorf("failed to set defaults: %w", err)
	}
	if err := v.Unmarshal(instance); err != nil {
		return fmt.Errorf("failed to unmarshal config (path: %s): %w", c.opts.BasePath, err)
	}
	// Sections present in the files but missing nested keys still need
	// their defaults.
	if err := defaults.Set(instance); err != nil {
		return fmt.Errorf("failed to set defaults after unmarshal: %w", err)
	}
	return Validate(instance)
}

func (c *Config) watch(instance any) {
	// viper watches a single file; changes to the others are picked up on
	// the next event by re-reading every layer.
	c.instance.SetConfigFile(c.files[len(c.files)-1])
	target := reflect.ValueOf(instance).Elem()
	c.instance.OnConfigChange(func(e fsnotify.Event) {
		c.watchMutex.Lock()
		fresh, err := load(c.files, c.opts)
		if err == nil {
			// Decode into a zero value so keys removed from the files do not
			// linger, and a failed reload leaves instance untouched.
			next := reflect.New(target.Type())
			if err = c.decodeWith(fresh, next.Interface()); err == nil {
				c.instance = fresh
				target.Set(next.Elem())
			}
		}
		c.watchMutex.Unlock()

		if c.opts.OnChange != nil {
			c.opts.OnChange(e, err)
		}
	})
	c.instance.WatchConfig()
}

// Validate checks `validate` struct tags and the Validator interface.
func Validate(instance any) error {
	val := reflect.ValueOf(instance)
	for val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}
	if val.Kind() == reflect.Struct {
		if err := validate.Struct(instance); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	if v, ok := instance.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// Sub returns the raw settings under key.
func (c *Config) Sub(key string) map[string]any {
	c.watchMutex.RLock()
	defer c.watchMutex.RUnlock()

	return c.instance.GetStringMap(key)
}

func (c *Config) Get(key string) any {
	c.watchMutex.RLock()
	defer c.watchMutex.RUnlock()

	return c.instance.Get(key)
}

func (c *Config) Set(key string, value any) {
	c.watchMutex.Lock()
	defer c.watchMutex.Unlock()

	c.instance.Set(key, value)
}

func load(files []string, opts Options) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType(opts.FileType)

	for _, file := range files {
		layer := viper.New()
		layer.SetConfigFile(file)
		if err := layer.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", file, err)
		}
		if err := v.MergeConfigMap(layer.AllSettings()); err != nil {
			return nil, fmt.Errorf("error merging config file %s: %w", file, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.AutomaticEnv()
	applyEnvOverrides(v, opts.EnvPrefix)

	return v, nil
}

// applyEnvOverrides copies PREFIX_SECTION_KEY variables over every known
// key so they win over file values in Unmarshal as well as Get.
func applyEnvOverrides(v *viper.Viper, envPrefix string) {
	replacer := strings.NewReplacer(".", "_")

	for _, key := range v.AllKeys() {
		envKey := strings.ToUpper(replacer.Replace(key))
		if envPrefix != "" {
			envKey = envPrefix + "_" + envKey
		}
		if envValue, ok := os.LookupEnv(envKey); ok && envValue != "" {
			v.Set(key, envValue)
		}
	}
}

func filePaths(opts Options) (files []string) {
	for _, name := range fileNames(opts.FileName, env_mode.Mode()) {
		file := filepath.Join(opts.BasePath, name+"."+opts.FileType)
		if utils.IsFile(file) {
			files = append(files, file)
		}
	}
	return files
}

func fileNames(base string, mode env_mode.ENV_MODE) []string {
	names := []string{
		base,
		base + ".local",
		fmt.Sprintf("%s.%s", base, mode),
		fmt.Sprintf("%s.%s.local", base, mode),
	}

	var aliases []string
	switch mode {
	case env_mode.DevMode:
		aliases = []string{"dev"}
	case env_mode.ProMode:
		aliases = []string{"pro", "prod"}
	case env_mode.TestMode:
		aliases = []string{"testing"}
	}
	for _, alias := range aliases {
		names = append(names, base+"."+alias, base+"."+alias+".local")
	}
	return names
}

package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Validator is implemented by configuration structs with checks beyond
// struct tags.
type Validator interface {
	Validate() error
}

// Config is a layered configuration source backed by viper.
type Config struct {
	instance   *viper.Viper
	opts       Options
	files      []string
	watchOnce  sync.Once
	watchMutex sync.RWMutex
}

// Options controls where configuration is read from.
type Options struct {
	// BasePath is the directory holding the configuration files.
	BasePath string
	// FileName is the base name without extension.
	FileName  string
	FileType  string
	EnvPrefix string
	// AllowMissing accepts a directory with no configuration files, leaving
	// every value to defaults and the environment.
	AllowMissing bool
	Watchable    bool
	// OnChange runs after a watched file changed and the bound instance was
	// refreshed. err is non-nil when the refresh failed.
	OnChange func(e fsnotify.Event, err error)
}

package plugin

import (
	"time"

	"github.com/leeforge/xrcore/json"
)

// Settings gives a plugin typed access to its own configuration section.
type Settings interface {
	Get(key string) (any, bool)
	GetString(key string, defaultVal string) string
	GetInt(key string, defaultVal int) int
	GetFloat(key string, defaultVal float64) float64
	GetBool(key string, defaultVal bool) bool
	GetDuration(key string, defaultVal time.Duration) time.Duration
	// Bind decodes the section into target, applying `default` tags first.
	Bind(target any) error
}

// SettingsSource is the capability plugins look up to obtain their Settings.
type SettingsSource interface {
	For(pluginName string) Settings
}

// MapSettings is a Settings backed by a map.
type MapSettings struct {
	values map[string]any
}

// NewMapSettings creates Settings from values. A nil map behaves as empty.
func NewMapSettings(values map[string]any) *MapSettings {
	if values == nil {
		values = make(map[string]any)
	}
	return &MapSettings{values: values}
}

func (s *MapSettings) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *MapSettings) GetString(key string, defaultVal string) string {
	v, ok := s.values[key]
	if !ok {
		return defaultVal
	}
	str, ok := v.(string)
	if !ok {
		return defaultVal
	}
	return str
}

func (s *MapSettings) GetInt(key string, defaultVal int) int {
	v, ok := s.values[key]
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return defaultVal
	}
}

func (s *MapSettings) GetFloat(key string, defaultVal float64) float64 {
	v, ok := s.values[key]
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return defaultVal
	}
}

func (s *MapSettings) GetBool(key string, defaultVal bool) bool {
	v, ok := s.values[key]
	if !ok {
		return defaultVal
	}
	b, ok := v.(bool)
	if !ok {
		return defaultVal
	}
	return b
}

// GetDuration accepts a time.Duration, a duration string ("250ms") or a
// number of nanoseconds.
func (s *MapSettings) GetDuration(key string, defaultVal time.Duration) time.Duration {
	v, ok := s.values[key]
	if !ok {
		return defaultVal
	}
	switch d := v.(type) {
	case time.Duration:
		return d
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return defaultVal
		}
		return parsed
	case int:
		return time.Duration(d)
	case int64:
		return time.Duration(d)
	case float64:
		return time.Duration(d)
	default:
		return defaultVal
	}
}

func (s *MapSettings) Bind(target any) error {
	data, err := json.Marshal(s.values)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// StaticSettings is a SettingsSource backed by a map of per-plugin sections.
type StaticSettings map[string]map[string]any

func (s StaticSettings) For(pluginName string) Settings {
	return NewMapSettings(s[pluginName])
}

var (
	_ Settings       = (*MapSettings)(nil)
	_ SettingsSource = StaticSettings(nil)
)

package offload

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/leeforge/xrcore/config"
	"github.com/leeforge/xrcore/plugin"
	"github.com/leeforge/xrcore/storage"
)

// Environment overrides, checked after the plugin settings section.
const (
	EnvEnable = "XR_OFFLOAD_ENABLE"
	EnvPath   = "XR_OFFLOAD_PATH"
)

// Settings is the offload_data settings section.
type Settings struct {
	Enabled bool           `json:"enabled"`
	Path    string         `json:"path" default:"metrics/offloaded_data/" validate:"required"`
	Storage storage.Config `json:"storage"`
	// Scale downsizes frames before encoding; 1 keeps full resolution.
	Scale   float64 `json:"scale" default:"1" validate:"gt=0,lte=1"`
	Workers int     `json:"workers" default:"4" validate:"gte=1"`
}

func loadSettings(s plugin.Settings) (Settings, error) {
	var out Settings
	if err := s.Bind(&out); err != nil {
		return out, fmt.Errorf("bind offload settings: %w", err)
	}

	if v, ok := os.LookupEnv(EnvEnable); ok {
		enabled, err := parseBool(v)
		if err != nil {
			return out, fmt.Errorf("%s: %w", EnvEnable, err)
		}
		out.Enabled = enabled
	}
	if v := os.Getenv(EnvPath); v != "" {
		out.Path = v
	}

	if err := config.Validate(&out); err != nil {
		return out, err
	}
	return out, nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off", "":
		return false, nil
	}
	return strconv.ParseBool(v)
}

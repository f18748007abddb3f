// Package env_mode reports whether the process runs in development,
// production or test mode, read from XR_ENV_MODE.
package env_mode

import (
	"os"
	"strings"
	"sync"
)

const ENV_MODE_KEY = "XR_ENV_MODE"

type ENV_MODE string

const (
	DevMode  ENV_MODE = "development"
	ProMode  ENV_MODE = "production"
	TestMode ENV_MODE = "test"
)

var (
	currentEnv ENV_MODE
	modeMu     sync.RWMutex
)

func ParseEnv(env string) ENV_MODE {
	normalizedEnv := strings.ToLower(strings.TrimSpace(env))
	switch normalizedEnv {
	case "development", "dev", "":
		return DevMode
	case "production", "prod", "pro":
		return ProMode
	case "test", "testing":
		return TestMode
	default:
		return DevMode
	}
}

// Mode returns the current mode, reading XR_ENV_MODE on first use.
func Mode() ENV_MODE {
	modeMu.RLock()
	mode := currentEnv
	modeMu.RUnlock()
	if mode != "" {
		return mode
	}

	modeMu.Lock()
	defer modeMu.Unlock()
	if currentEnv == "" {
		currentEnv = ParseEnv(os.Getenv(ENV_MODE_KEY))
	}
	return currentEnv
}

// SetMode overrides the mode for this process and its children.
func SetMode(mode ENV_MODE) {
	modeMu.Lock()
	defer modeMu.Unlock()
	os.Setenv(ENV_MODE_KEY, string(mode))
	currentEnv = mode
}

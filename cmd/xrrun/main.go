// Command xrrun hosts the XR runtime: it loads plugin modules, runs until
// interrupted or the configured duration elapses, then shuts down in order.
package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/leeforge/xrcore/logging"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s)", version, commit)

	if err := cmd.Execute(); err != nil {
		logging.Global().Fatal("xrrun failed", zap.Error(err))
	}
}

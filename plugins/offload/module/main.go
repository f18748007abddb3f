// Command module builds the offload plugin as a loadable module:
//
//	go build -buildmode=plugin -o offload.so ./plugins/offload/module
package main

import (
	"github.com/leeforge/xrcore/plugin"
	"github.com/leeforge/xrcore/plugins/offload"
)

// Version is reported by the runtime next to the plugin name.
var Version = "1.0.0"

// MakePlugin is the module factory symbol.
func MakePlugin(r *plugin.Registry) plugin.Plugin {
	return offload.New(r)
}

func main() {}

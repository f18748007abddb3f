// Package plugin defines the unit of extension hosted by the runtime, the
// type-indexed registry plugins use to find their collaborators, and the
// lifecycle state machine the runtime drives them through.
package plugin

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leeforge/xrcore/guid"
	"github.com/leeforge/xrcore/logging"
)

// Plugin is the interface every plugin must implement.
//
// A plugin obtains everything it needs from the Registry inside its factory.
// Start begins long-running work. Stop must unwind every subscription and
// goroutine so that nothing runs on the plugin's behalf after it returns.
// Stop is also called after Start returned an error and must cope with a
// partial start.
type Plugin interface {
	Name() string
	Start() error
	Stop() error
}

// Factory builds a Plugin bound to a registry. Loadable modules export one
// under the name MakePlugin.
type Factory func(r *Registry) Plugin

// Base carries the state every plugin needs. Embed it and call NewBase from
// the factory.
type Base struct {
	name     string
	id       uuid.UUID
	registry *Registry
	settings Settings
	logger   logging.Logger
}

// NewBase resolves the plugin's identity, settings and logger from r. Missing
// optional capabilities fall back to a random id, empty settings and a no-op
// logger.
func NewBase(name string, r *Registry) Base {
	b := Base{
		name:     name,
		registry: r,
	}

	if src, err := Resolve[guid.Source](r); err == nil {
		b.id = src.New()
	} else {
		b.id = uuid.New()
	}

	if src, err := Resolve[SettingsSource](r); err == nil {
		b.settings = src.For(name)
	} else {
		b.settings = NewMapSettings(nil)
	}

	if l, err := Resolve[logging.Logger](r); err == nil {
		b.logger = l.Named(name).With(zap.String("plugin_id", b.id.String()))
	} else {
		b.logger = logging.NewNop()
	}

	return b
}

func (b *Base) Name() string           { return b.name }
func (b *Base) ID() uuid.UUID          { return b.id }
func (b *Base) Registry() *Registry    { return b.registry }
func (b *Base) Settings() Settings     { return b.settings }
func (b *Base) Logger() logging.Logger { return b.logger }

// Package display holds the platform display handle shared by rendering plugins.
package display

import (
	"fmt"
	"sync"
)

// Config describes the window the runtime opens on behalf of plugins.
type Config struct {
	Width  int    `mapstructure:"width" json:"width" yaml:"width" default:"896" validate:"gt=0"`
	Height int    `mapstructure:"height" json:"height" yaml:"height" default:"640" validate:"gt=0"`
	Title  string `mapstructure:"title" json:"title" yaml:"title" default:"xrcore"`
}

// Window is the display/context handle registered with the service registry.
// It owns no native resources; rendering plugins attach their own surfaces.
type Window struct {
	cfg Config

	mu       sync.Mutex
	attached []string
	closed   bool
}

// NewWindow creates a Window for cfg.
func NewWindow(cfg Config) *Window {
	return &Window{cfg: cfg}
}

func (w *Window) Width() int    { return w.cfg.Width }
func (w *Window) Height() int   { return w.cfg.Height }
func (w *Window) Title() string { return w.cfg.Title }

// Attach records owner as a user of the window's context.
func (w *Window) Attach(owner string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("display: window %q is closed", w.cfg.Title)
	}
	w.attached = append(w.attached, owner)
	return nil
}

// Attached returns the owners recorded by Attach, in attach order.
func (w *Window) Attached() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.attached...)
}

// Close releases the window. Later Attach calls fail.
func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.attached = nil
	return nil
}

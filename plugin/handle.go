package plugin

import (
	"io"
	"sync"

	"github.com/leeforge/xrcore/errors"
)

// Handle drives one plugin instance through constructed → started → stopped
// and refuses to release an instance that is still running.
type Handle struct {
	plugin Plugin

	mu    sync.Mutex
	state State
	err   error
}

// NewHandle wraps a freshly constructed plugin.
func NewHandle(p Plugin) *Handle {
	return &Handle{plugin: p, state: StateConstructed}
}

func (h *Handle) Plugin() Plugin { return h.plugin }
func (h *Handle) Name() string   { return h.plugin.Name() }

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the error reported by Start, if any.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Start calls the plugin's Start exactly once. Starting an instance that is
// not freshly constructed is fatal. An error from the plugin moves the handle
// to StateFailed and is returned wrapped as a plugin error. The handle lock is
// not held while the plugin runs, so State stays responsive.
func (h *Handle) Start() error {
	h.mu.Lock()
	if h.state != StateConstructed {
		state := h.state
		h.mu.Unlock()
		errors.Fatal(errors.NewLifecycle("plugin %q started while %s", h.plugin.Name(), state).
			WithCode("invalid_start"))
	}
	h.state = StateStarting
	h.mu.Unlock()

	err := h.plugin.Start()

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.state = StateFailed
		h.err = errors.NewPlugin(h.plugin.Name(), err)
		return h.err
	}
	h.state = StateStarted
	return nil
}

// Stop calls the plugin's Stop if Start was attempted, including a Start that
// failed, so partial work is unwound. It is idempotent; an instance that was
// never started moves straight to StateStopped. Stopping while Start is still
// running is fatal.
func (h *Handle) Stop() error {
	h.mu.Lock()
	switch h.state {
	case StateStarted, StateFailed:
		h.state = StateStopping
	case StateConstructed:
		h.state = StateStopped
		h.mu.Unlock()
		return nil
	case StateStarting:
		h.mu.Unlock()
		errors.Fatal(errors.NewLifecycle("plugin %q stopped while starting", h.plugin.Name()).
			WithCode("invalid_stop"))
	default:
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	err := h.plugin.Stop()

	h.mu.Lock()
	h.state = StateStopped
	h.mu.Unlock()

	if err != nil {
		return errors.NewPlugin(h.plugin.Name(), err)
	}
	return nil
}

// Destroy releases the instance. Destroying a started instance is fatal.
// Plugins that implement io.Closer are closed here.
func (h *Handle) Destroy() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.state.CanDestroy() {
		errors.Fatal(errors.NewLifecycle("plugin %q destroyed while still started", h.plugin.Name()).
			WithCode("destroy_while_started"))
	}
	if h.state == StateDestroyed {
		return nil
	}
	h.state = StateDestroyed

	if c, ok := h.plugin.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

package plugin

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/xrcore/clock"
	"github.com/leeforge/xrcore/errors"
	"github.com/leeforge/xrcore/guid"
	"github.com/leeforge/xrcore/logging"
)

// clockedPlugin looks up its clock in the factory, the way real plugins do.
type clockedPlugin struct {
	Base
	clock clock.Clock

	starts, stops int
	startErr      error
	closed        bool
}

func newClockedPlugin(r *Registry) Plugin {
	return &clockedPlugin{
		Base:  NewBase("clocked", r),
		clock: Lookup[clock.Clock](r),
	}
}

func (p *clockedPlugin) Start() error {
	p.starts++
	return p.startErr
}

func (p *clockedPlugin) Stop() error {
	p.stops++
	return nil
}

func (p *clockedPlugin) Close() error {
	p.closed = true
	return nil
}

func newTestRegistry() (*Registry, clock.Clock) {
	r := NewRegistry()
	c := clock.NewRealtime()
	Register[clock.Clock](r, c)
	return r, c
}

func TestFactory_PluginHoldsRegisteredClock(t *testing.T) {
	r, c := newTestRegistry()

	var factory Factory = newClockedPlugin
	p := factory(r).(*clockedPlugin)

	assert.Same(t, c, p.clock)
	assert.Equal(t, "clocked", p.Name())
	assert.Same(t, r, p.Registry())
}

func TestNewBase_UsesRegisteredCapabilities(t *testing.T) {
	r := NewRegistry()
	Register[guid.Source](r, guid.NewSource())
	Register[logging.Logger](r, logging.NewNop())
	Register[SettingsSource](r, StaticSettings{"offload": {"enabled": true}})

	b := NewBase("offload", r)

	assert.NotEqual(t, [16]byte{}, [16]byte(b.ID()))
	assert.True(t, b.Settings().GetBool("enabled", false))
	assert.NotNil(t, b.Logger())
}

func TestNewBase_FallsBackWithoutOptionalCapabilities(t *testing.T) {
	b := NewBase("bare", NewRegistry())

	assert.NotEqual(t, [16]byte{}, [16]byte(b.ID()))
	assert.NotNil(t, b.Settings())
	assert.NotNil(t, b.Logger())
}

func TestHandle_Lifecycle(t *testing.T) {
	r, _ := newTestRegistry()
	p := newClockedPlugin(r).(*clockedPlugin)
	h := NewHandle(p)

	assert.Equal(t, StateConstructed, h.State())
	require.NoError(t, h.Start())
	assert.Equal(t, StateStarted, h.State())

	require.NoError(t, h.Stop())
	require.NoError(t, h.Stop(), "Stop is idempotent")
	assert.Equal(t, StateStopped, h.State())
	assert.Equal(t, 1, p.starts)
	assert.Equal(t, 1, p.stops)

	require.NoError(t, h.Destroy())
	assert.True(t, p.closed)
	assert.Equal(t, StateDestroyed, h.State())
}

func TestHandle_DoubleStartIsFatal(t *testing.T) {
	r, _ := newTestRegistry()
	h := NewHandle(newClockedPlugin(r))
	require.NoError(t, h.Start())

	requireFatal(t, errors.ErrorTypeLifecycle, func() { _ = h.Start() })
	require.NoError(t, h.Stop())
}

func TestHandle_StartAfterStopIsFatal(t *testing.T) {
	r, _ := newTestRegistry()
	h := NewHandle(newClockedPlugin(r))
	require.NoError(t, h.Stop())

	requireFatal(t, errors.ErrorTypeLifecycle, func() { _ = h.Start() })
}

func TestHandle_DestroyWhileStartedIsFatal(t *testing.T) {
	r, _ := newTestRegistry()
	p := newClockedPlugin(r).(*clockedPlugin)
	h := NewHandle(p)
	require.NoError(t, h.Start())

	requireFatal(t, errors.ErrorTypeLifecycle, func() { _ = h.Destroy() })
	assert.False(t, p.closed)
	assert.Equal(t, StateStarted, h.State())
}

func TestHandle_StartErrorMarksFailed(t *testing.T) {
	r, _ := newTestRegistry()
	p := newClockedPlugin(r).(*clockedPlugin)
	p.startErr = stderrors.New("device not found")
	h := NewHandle(p)

	err := h.Start()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePlugin))
	assert.ErrorIs(t, err, p.startErr)
	assert.Equal(t, StateFailed, h.State())

	require.NoError(t, h.Stop())
	assert.Equal(t, 1, p.stops, "a failed start is unwound through Stop")
	assert.Equal(t, StateStopped, h.State())
	require.NoError(t, h.Stop())
	assert.Equal(t, 1, p.stops)
	require.NoError(t, h.Destroy())
}

func TestHandle_StopOfNeverStartedSkipsPlugin(t *testing.T) {
	r, _ := newTestRegistry()
	p := newClockedPlugin(r).(*clockedPlugin)
	h := NewHandle(p)

	require.NoError(t, h.Stop())
	assert.Equal(t, 0, p.stops)
	assert.Equal(t, StateStopped, h.State())
}

// slowStopPlugin blocks in Stop until released.
type slowStopPlugin struct {
	entered chan struct{}
	release chan struct{}
}

func (p *slowStopPlugin) Name() string { return "slow" }
func (p *slowStopPlugin) Start() error { return nil }

func (p *slowStopPlugin) Stop() error {
	close(p.entered)
	<-p.release
	return nil
}

func TestHandle_StateReadableWhilePluginStops(t *testing.T) {
	p := &slowStopPlugin{entered: make(chan struct{}), release: make(chan struct{})}
	h := NewHandle(p)
	require.NoError(t, h.Start())

	done := make(chan error, 1)
	go func() { done <- h.Stop() }()
	<-p.entered

	states := make(chan State, 1)
	go func() { states <- h.State() }()
	select {
	case s := <-states:
		assert.Equal(t, StateStopping, s)
	case <-time.After(time.Second):
		t.Fatal("State blocked while the plugin was stopping")
	}

	requireFatal(t, errors.ErrorTypeLifecycle, func() { _ = h.Destroy() })
	require.NoError(t, h.Stop(), "a concurrent Stop returns at once")

	close(p.release)
	require.NoError(t, <-done)
	assert.Equal(t, StateStopped, h.State())
}

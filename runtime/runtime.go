// Package runtime hosts plugins: it registers the built-in services, loads
// plugin modules in order, and drives the global stop sequence.
package runtime

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/leeforge/xrcore/clock"
	"github.com/leeforge/xrcore/display"
	"github.com/leeforge/xrcore/errors"
	"github.com/leeforge/xrcore/eventbus"
	"github.com/leeforge/xrcore/guid"
	"github.com/leeforge/xrcore/loader"
	"github.com/leeforge/xrcore/logging"
	"github.com/leeforge/xrcore/plugin"
	"github.com/leeforge/xrcore/recordlog"
)

// Options injects collaborators that would otherwise be built from Config.
type Options struct {
	Logger       logging.Logger
	RecordLogger recordlog.Logger
	Clock        clock.Clock
	GUID         guid.Source
	// Opener resolves module paths. Defaults to loader.OpenShared.
	Opener loader.OpenFunc
	// Metrics receives the runtime collectors. Defaults to a fresh registry.
	Metrics *prometheus.Registry
}

// PluginInfo describes one loaded plugin.
type PluginInfo struct {
	Name    string `json:"name"`
	Module  string `json:"module"`
	Version string `json:"version,omitempty"`
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
}

// Runtime owns the registry, the event bus and every loaded plugin.
type Runtime struct {
	cfg      Config
	logger   logging.Logger
	records  recordlog.Logger
	registry *plugin.Registry
	bus      *eventbus.Bus
	window   *display.Window
	clock    clock.Clock
	loader   *loader.Loader
	metrics  *prometheus.Registry
	level    *zap.AtomicLevel // nil when the logger was injected

	// lifecycle serializes Load against Stop: a Stop arriving mid-Load waits
	// for the batch to start and then stops it.
	lifecycle sync.Mutex

	mu      sync.RWMutex
	modules []*loader.Module
	plugins []*loaded

	stopOnce  sync.Once
	stopped   atomic.Bool
	terminate chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type loaded struct {
	module  string
	version string
	handle  *plugin.Handle
}

// source is one plugin to construct: where it came from and its factory.
type source struct {
	module  string
	version string
	factory plugin.Factory
}

// New builds a Runtime and registers the built-in services. No module is
// loaded yet.
func New(cfg Config, opts Options) (*Runtime, error) {
	logger := opts.Logger
	var level *zap.AtomicLevel
	if logger == nil {
		lvl := zap.NewAtomicLevelAt(cfg.Log.ZapLevel())
		level = &lvl
		logger = logging.NewLoggerWithLevel(cfg.Log, lvl)
	}

	records := opts.RecordLogger
	if records == nil {
		var err error
		records, err = recordlog.Open(context.Background(), cfg.RecordLogger, logger)
		if err != nil {
			return nil, errors.WrapWithType(err, errors.ErrorTypeConfiguration, "open record logger").
				WithCode("record_logger")
		}
	}
	logger = logging.WithHooks(logger, zapcore.WarnLevel, forwardTo(records))

	metrics := opts.Metrics
	if metrics == nil {
		metrics = prometheus.NewRegistry()
		metrics.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	src := opts.GUID
	if src == nil {
		src = guid.NewSource()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewRealtime()
	}

	r := &Runtime{
		cfg:       cfg,
		logger:    logger.Named("runtime"),
		records:   records,
		registry:  plugin.NewRegistry(),
		bus:       eventbus.New(cfg.Bus, logger, eventbus.NewMetrics(metrics)),
		window:    display.NewWindow(cfg.Display),
		clock:     clk,
		loader:    loader.New(opts.Opener),
		metrics:   metrics,
		level:     level,
		terminate: make(chan struct{}),
	}

	plugin.Register[logging.Logger](r.registry, logger)
	plugin.Register[recordlog.Logger](r.registry, records)
	plugin.Register[guid.Source](r.registry, src)
	plugin.Register(r.registry, r.bus)
	plugin.Register(r.registry, r.window)
	plugin.Register[clock.Clock](r.registry, clk)
	plugin.Register[plugin.SettingsSource](r.registry, plugin.StaticSettings(cfg.PluginSettings))

	if !clk.Started() {
		clk.Start()
	}

	r.logger.Info("runtime ready", zap.Strings("services", r.registry.Keys()))
	return r, nil
}

// Load opens every module, constructs one plugin per module and starts them
// in the order given. A module that cannot be opened aborts the whole call
// before any plugin is constructed.
func (r *Runtime) Load(paths ...string) error {
	if err := r.checkRunning("load"); err != nil {
		return err
	}

	modules, err := r.loader.OpenAll(paths)
	if err != nil {
		return errors.WrapWithType(err, errors.ErrorTypeConfiguration, "load plugins").
			WithCode("load_failed")
	}

	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if err := r.checkRunning("load"); err != nil {
		return err
	}

	r.mu.Lock()
	r.modules = append(r.modules, modules...)
	r.mu.Unlock()

	sources := make([]source, len(modules))
	for i, m := range modules {
		sources[i] = source{module: m.Path, version: m.Version(), factory: m.Factory}
	}
	return r.install(sources)
}

// MustLoad is Load, fatal on error.
func (r *Runtime) MustLoad(paths ...string) {
	errors.Fatal(r.Load(paths...))
}

// LoadFactory constructs and starts plugins from in-process factories.
func (r *Runtime) LoadFactory(factories ...plugin.Factory) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if err := r.checkRunning("load"); err != nil {
		return err
	}
	sources := make([]source, len(factories))
	for i, f := range factories {
		sources[i] = source{factory: f}
	}
	return r.install(sources)
}

// install runs with r.lifecycle held.
func (r *Runtime) install(sources []source) error {
	batch := make([]*loaded, 0, len(sources))
	for _, src := range sources {
		p := src.factory(r.registry)
		if p == nil {
			return errors.NewConfiguration("module %q returned a nil plugin", src.module).
				WithCode("nil_plugin")
		}
		l := &loaded{module: src.module, version: src.version, handle: plugin.NewHandle(p)}
		batch = append(batch, l)

		r.mu.Lock()
		r.plugins = append(r.plugins, l)
		r.mu.Unlock()
	}

	for _, l := range batch {
		start := time.Now()
		if err := l.handle.Start(); err != nil {
			r.logger.Error("plugin failed to start",
				zap.String("plugin", l.handle.Name()),
				zap.String("module", l.module),
				zap.Error(err))
			return err
		}
		r.logger.Info("plugin started",
			zap.String("plugin", l.handle.Name()),
			zap.String("module", l.module),
			zap.Duration("took", time.Since(start)))
	}
	return nil
}

func (r *Runtime) checkRunning(op string) error {
	if r.stopped.Load() {
		return errors.NewLifecycle("%s after stop", op).WithCode("runtime_stopped")
	}
	return nil
}

// Wait blocks until Stop has completed.
func (r *Runtime) Wait() {
	<-r.terminate
}

// WaitContext is Wait that also returns when ctx is done.
func (r *Runtime) WaitContext(ctx context.Context) error {
	select {
	case <-r.terminate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Stop has completed.
func (r *Runtime) Done() <-chan struct{} {
	return r.terminate
}

// Stop shuts down the event bus, then stops every plugin in load order, then
// releases Wait. Plugin stop errors are logged. Stop is idempotent. A Load in
// progress finishes first, so every plugin it starts is also stopped.
func (r *Runtime) Stop() {
	r.stopOnce.Do(func() {
		r.lifecycle.Lock()
		defer r.lifecycle.Unlock()

		r.logger.Info("runtime stopping")
		r.bus.Stop()

		r.mu.RLock()
		plugins := append([]*loaded(nil), r.plugins...)
		r.mu.RUnlock()

		for _, l := range plugins {
			if err := l.handle.Stop(); err != nil {
				r.logger.Error("plugin stop failed",
					zap.String("plugin", l.handle.Name()),
					zap.Error(err))
			}
		}

		r.stopped.Store(true)
		close(r.terminate)
		r.logger.Info("runtime stopped", zap.Duration("uptime", r.clock.Now()))
	})
}

// Close releases every plugin and the collaborators the runtime owns.
// Closing a runtime that was never stopped is fatal.
func (r *Runtime) Close() error {
	if !r.stopped.Load() {
		errors.Fatal(errors.NewLifecycle("runtime closed before stop").WithCode("close_before_stop"))
	}

	r.closeOnce.Do(func() {
		r.mu.RLock()
		plugins := append([]*loaded(nil), r.plugins...)
		r.mu.RUnlock()

		var errs []error
		for i := len(plugins) - 1; i >= 0; i-- {
			if err := plugins[i].handle.Destroy(); err != nil {
				errs = append(errs, errors.NewPlugin(plugins[i].handle.Name(), err))
			}
		}
		if err := r.window.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := r.records.Close(); err != nil {
			errs = append(errs, err)
		}
		_ = r.logger.Sync()

		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}

// Plugins lists the loaded plugins in load order.
func (r *Runtime) Plugins() []PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]PluginInfo, len(r.plugins))
	for i, l := range r.plugins {
		infos[i] = PluginInfo{
			Name:    l.handle.Name(),
			Module:  l.module,
			Version: l.version,
			State:   l.handle.State().String(),
		}
		if err := l.handle.Err(); err != nil {
			infos[i].Error = err.Error()
		}
	}
	return infos
}

// Reconfigure applies the settings that can change while running, which is
// the log level. Changes to plugins or the bus are reported and need a
// restart.
func (r *Runtime) Reconfigure(cfg Config) {
	r.mu.Lock()
	prev := r.cfg
	r.cfg.Log.Level = cfg.Log.Level
	r.mu.Unlock()

	if r.level != nil {
		if next := cfg.Log.ZapLevel(); next != r.level.Level() {
			r.level.SetLevel(next)
			r.logger.Info("log level changed", zap.Stringer("level", next))
		}
	} else if cfg.Log.Level != prev.Log.Level {
		r.logger.Warn("log level is fixed by the injected logger", zap.String("level", cfg.Log.Level))
	}

	if !slices.Equal(prev.Plugins, cfg.Plugins) || prev.Bus != cfg.Bus {
		r.logger.Warn("plugin or bus configuration changed, restart to apply",
			zap.Strings("plugins", cfg.Plugins))
	}
}

// LogLevel returns the minimum level of the runtime's logger. ok is false
// when the logger was injected through Options.
func (r *Runtime) LogLevel() (level zapcore.Level, ok bool) {
	if r.level == nil {
		return 0, false
	}
	return r.level.Level(), true
}

// Config returns the configuration the runtime was built with, including any
// log level applied by Reconfigure.
func (r *Runtime) Config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

func (r *Runtime) Registry() *plugin.Registry    { return r.registry }
func (r *Runtime) Bus() *eventbus.Bus            { return r.bus }
func (r *Runtime) Logger() logging.Logger        { return r.logger }
func (r *Runtime) Metrics() *prometheus.Registry { return r.metrics }
func (r *Runtime) Stopped() bool                 { return r.stopped.Load() }

package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/leeforge/xrcore/logging"
	"github.com/leeforge/xrcore/runtime"
	"github.com/leeforge/xrcore/status"
)

var shutdownTimeout = 5 * time.Second

// reloader hands configuration reloads to the running runtime. Reloads that
// arrive before the runtime exists are dropped.
type reloader struct {
	flags *rootFlags
	args  []string
	rt    atomic.Pointer[runtime.Runtime]
}

func (r *reloader) attach(rt *runtime.Runtime) {
	r.rt.Store(rt)
}

func (r *reloader) apply(cfg runtime.Config, err error) {
	rt := r.rt.Load()
	if rt == nil {
		return
	}
	if err != nil {
		rt.Logger().Warn("configuration reload failed", zap.Error(err))
		return
	}
	r.flags.override(&cfg)
	cfg.Plugins = append(cfg.Plugins, r.args...)
	rt.Reconfigure(cfg)
}

func run(ctx context.Context, cfg runtime.Config, rl *reloader) error {
	return runWith(ctx, cfg, runtime.Options{}, rl)
}

func runWith(ctx context.Context, cfg runtime.Config, opts runtime.Options, rl *reloader) error {
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := runtime.New(cfg, opts)
	if err != nil {
		return err
	}
	logger := rt.Logger()
	logging.SetGlobal(logger)
	if rl != nil {
		rl.attach(rt)
	}

	if cfg.Status.Enabled {
		srv := status.NewServer(cfg.Status.Addr, rt, logger)
		if err := srv.Start(); err != nil {
			rt.Stop()
			_ = rt.Close()
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				logger.Warn("status server shutdown", zap.Error(err))
			}
		}()
	}

	if err := rt.Load(cfg.Plugins...); err != nil {
		rt.Stop()
		_ = rt.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.RunDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunDuration)
		defer cancel()
	}

	logger.Info("running", zap.Int("plugins", len(cfg.Plugins)), zap.Duration("duration", cfg.RunDuration))

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested", zap.NamedError("reason", context.Cause(ctx)))
		rt.Stop()
	case <-rt.Done():
	}

	rt.Wait()
	return rt.Close()
}

// Package offload records every texture_pose frame while the runtime runs and
// writes them out to storage when the plugin stops: one PNG and one pose
// sidecar per frame plus a metadata.out summary of offload durations.
package offload

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/leeforge/xrcore/concurrency"
	"github.com/leeforge/xrcore/dataformat"
	"github.com/leeforge/xrcore/eventbus"
	"github.com/leeforge/xrcore/plugin"
	"github.com/leeforge/xrcore/recordlog"
	"github.com/leeforge/xrcore/storage"
)

// Name is the plugin name and its settings section.
const Name = "offload_data"

const (
	metadataFile = "metadata.out"
	statsStream  = "offload_stats"
)

// Plugin is the offload_data plugin.
type Plugin struct {
	plugin.Base

	bus      *eventbus.Bus
	records  recordlog.Logger
	settings Settings
	settErr  error
	store    storage.Provider
	exec     *concurrency.ParallelExecutor

	// replacing is set when the target already holds a finished offload.
	replacing bool

	sub    *eventbus.Subscription
	mu     sync.Mutex
	frames []*dataformat.TexturePose
}

// New is the plugin factory.
func New(r *plugin.Registry) plugin.Plugin {
	p := &Plugin{
		Base: plugin.NewBase(Name, r),
		bus:  plugin.Lookup[*eventbus.Bus](r),
	}
	if records, err := plugin.Resolve[recordlog.Logger](r); err == nil {
		p.records = records
	} else {
		p.records = recordlog.Noop{}
	}

	p.settings, p.settErr = loadSettings(p.Settings())
	if p.settErr == nil {
		p.exec = concurrency.NewParallelExecutor(p.settings.Workers)
	}
	return p
}

// WithStorage replaces the provider built from settings.
func (p *Plugin) WithStorage(store storage.Provider) *Plugin {
	p.store = store
	return p
}

func (p *Plugin) Start() error {
	if p.settErr != nil {
		return p.settErr
	}
	if !p.settings.Enabled {
		p.Logger().Info("offload disabled", zap.String("env", EnvEnable))
		return nil
	}

	if p.store == nil {
		store, err := storage.New(p.settings.Storage)
		if err != nil {
			return fmt.Errorf("open offload storage: %w", err)
		}
		p.store = store
	}

	previous := storage.Join(strings.TrimSuffix(p.settings.Path, "/"), metadataFile)
	exists, err := p.store.Exists(context.Background(), previous)
	if err != nil {
		return fmt.Errorf("check offload target: %w", err)
	}
	p.replacing = exists

	p.sub = eventbus.Schedule(p.bus, p.Name(), dataformat.TopicTexturePose, p.collect)
	p.Logger().Info("offload enabled",
		zap.String("path", p.settings.Path),
		zap.String("storage", p.store.Name()),
		zap.Int("workers", p.exec.Workers()),
		zap.Bool("replacing_previous", p.replacing))
	return nil
}

func (p *Plugin) collect(tp *dataformat.TexturePose, seq uint64) {
	p.mu.Lock()
	p.frames = append(p.frames, tp)
	n := len(p.frames)
	p.mu.Unlock()

	p.Logger().Debug("frame collected", zap.Uint64("seq", seq), zap.Int("frames", n))
}

// Frames returns how many frames are held for offload.
func (p *Plugin) Frames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

// Stop writes the collected frames. A failed write aborts the offload and is
// returned. After a failed Start there is nothing to write.
func (p *Plugin) Stop() error {
	if !p.settings.Enabled || p.settErr != nil || p.sub == nil {
		return nil
	}
	p.sub.Cancel()

	p.mu.Lock()
	frames := p.frames
	p.frames = nil
	p.mu.Unlock()

	return p.offload(context.Background(), frames)
}

func (p *Plugin) offload(ctx context.Context, frames []*dataformat.TexturePose) error {
	start := time.Now()
	prefix := strings.TrimSuffix(p.settings.Path, "/")

	if err := p.store.DeletePrefix(ctx, prefix); err != nil {
		return fmt.Errorf("clear %s: %w", prefix, err)
	}

	p.Logger().Info("writing offloaded frames",
		zap.Int("frames", len(frames)),
		zap.String("target", p.store.URL(prefix)))

	var done atomic.Int64
	tasks := make([]concurrency.Task, len(frames))
	for i, tp := range frames {
		tasks[i] = func(ctx context.Context) error {
			if err := p.writeFrame(ctx, prefix, i, tp); err != nil {
				return err
			}
			p.progress(int(done.Add(1)), len(frames))
			return nil
		}
	}
	if err := p.exec.Run(ctx, tasks); err != nil {
		return err
	}

	ms := make([]int64, len(frames))
	for i, tp := range frames {
		ms[i] = tp.OffloadDuration.Milliseconds()
	}
	meta := storage.Join(prefix, metadataFile)
	if err := p.store.Put(ctx, meta, strings.NewReader(metadataText(ms))); err != nil {
		return fmt.Errorf("write %s: %w", meta, err)
	}

	stats := computeStats(ms)
	p.records.Log(recordlog.New(statsStream, map[string]any{
		"frames":  stats.Count,
		"mean_ms": stats.Mean,
		"max_ms":  stats.Max,
		"min_ms":  stats.Min,
		"stdev":   stats.Stdev,
		"target":  p.store.URL(prefix),
	}))
	p.Logger().Info("offload complete",
		zap.Int("frames", len(frames)),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (p *Plugin) writeFrame(ctx context.Context, prefix string, idx int, tp *dataformat.TexturePose) error {
	name := strconv.Itoa(idx)

	data, err := encodeFrame(tp, p.settings.Scale)
	if err != nil {
		return fmt.Errorf("image %s create failed: %w", name, err)
	}
	if err := p.store.Put(ctx, storage.Join(prefix, name+".png"), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write image %s: %w", name, err)
	}
	if err := p.store.Put(ctx, storage.Join(prefix, name+".txt"), strings.NewReader(poseText(tp))); err != nil {
		return fmt.Errorf("write pose %s: %w", name, err)
	}
	return nil
}

func (p *Plugin) progress(done, total int) {
	percent := 100 * done / total
	if done == total || percent/10 != 100*(done-1)/total/10 {
		p.Logger().Info("offload progress",
			zap.Int("percent", percent),
			zap.Int("done", done),
			zap.Int("total", total))
	}
}

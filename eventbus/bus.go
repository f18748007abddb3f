// Package eventbus implements the typed publish/subscribe bus plugins use to
// exchange events.
//
// A topic is a (name, payload type) pair. The first Schedule, Publish, Writer
// or Reader call that names a topic binds its type; naming it later with a
// different type is fatal. Payloads travel as shared *T pointers and must not
// be mutated once published.
//
// Every subscription owns a bounded FIFO queue drained by its own goroutine,
// so Publish never runs subscriber code and events from one producer reach
// each subscriber in production order.
package eventbus

import (
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/creasty/defaults"
	"go.uber.org/zap"

	"github.com/leeforge/xrcore/errors"
	"github.com/leeforge/xrcore/logging"
)

// Bus is the process-wide event bus. It is registered with the plugin
// registry as *eventbus.Bus.
type Bus struct {
	cfg     Config
	logger  logging.Logger
	metrics *Metrics

	topics map[string]*topic
	mu     sync.RWMutex

	closed   atomic.Bool
	done     chan struct{} // closed by Stop; wakes workers and blocked publishers
	stopOnce sync.Once
	wg       sync.WaitGroup // one per live subscription worker

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	panics    atomic.Uint64
}

// Stats is a snapshot of the bus counters.
type Stats struct {
	Published uint64
	Delivered uint64
	Dropped   uint64
	Panics    uint64
}

// TopicInfo describes one bound topic.
type TopicInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
}

// New creates a running Bus. Zero fields of cfg take their defaults. logger
// and metrics may be nil.
func New(cfg Config, logger logging.Logger, metrics *Metrics) *Bus {
	_ = defaults.Set(&cfg)
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Bus{
		cfg:     cfg,
		logger:  logger.Named("eventbus"),
		metrics: metrics,
		topics:  make(map[string]*topic),
		done:    make(chan struct{}),
	}
}

// Stop closes the bus. No callback runs after Stop returns: it waits for
// in-flight callbacks and discards queued events, counting them as dropped.
// Stop is idempotent and must not be called from a subscriber callback.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.closed.Store(true)
		close(b.done)
		b.mu.Unlock()

		b.wg.Wait()

		stats := b.Stats()
		b.logger.Info("event bus stopped",
			zap.Uint64("published", stats.Published),
			zap.Uint64("delivered", stats.Delivered),
			zap.Uint64("dropped", stats.Dropped),
		)
	})
}

// Stopped reports whether Stop has been called.
func (b *Bus) Stopped() bool {
	return b.closed.Load()
}

// Stats returns the current counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
		Dropped:   b.dropped.Load(),
		Panics:    b.panics.Load(),
	}
}

// Topics returns every bound topic sorted by name.
func (b *Bus) Topics() []TopicInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	infos := make([]TopicInfo, 0, len(b.topics))
	for _, t := range b.topics {
		infos = append(infos, t.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// bind returns the topic called name, creating it with typ on first use. A
// type mismatch with an existing binding is fatal.
func (b *Bus) bind(name string, typ reflect.Type) *topic {
	b.mu.RLock()
	t, ok := b.topics[name]
	b.mu.RUnlock()

	if !ok {
		b.mu.Lock()
		if t, ok = b.topics[name]; !ok {
			t = &topic{name: name, typ: typ}
			b.topics[name] = t
			b.logger.Debug("topic bound", zap.String("topic", name), zap.Stringer("type", typ))
		}
		b.mu.Unlock()
	}

	if t.typ != typ {
		errors.Fatal(errors.NewConfiguration("topic %q carries %s, not %s", name, t.typ, typ).
			WithCode("topic_type_mismatch").
			WithDetail("topic", name))
	}
	return t
}

func (b *Bus) countDropped(topic string, n int) {
	if n == 0 {
		return
	}
	b.dropped.Add(uint64(n))
	b.metrics.recordDropped(topic, n)
}

func (b *Bus) ignoredSchedule(subscriberID, topic string) {
	b.logger.Warn("schedule after stop ignored",
		zap.String("topic", topic),
		zap.String("subscriber", subscriberID))
}

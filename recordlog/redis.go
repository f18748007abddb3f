package recordlog

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/leeforge/xrcore/json"
	"github.com/leeforge/xrcore/logging"
	"github.com/leeforge/xrcore/redis_client"
)

// RedisConfig configures the durable record logger.
type RedisConfig struct {
	redis_client.Config `mapstructure:",squash" yaml:",inline"`
	// StreamPrefix is prepended to every record stream name.
	StreamPrefix string `mapstructure:"stream_prefix" json:"streamPrefix" yaml:"stream_prefix" default:"xrcore:records"`
	// MaxLen caps each stream approximately; 0 keeps everything.
	MaxLen    int64 `mapstructure:"max_len" json:"maxLen" yaml:"max_len" default:"100000"`
	QueueSize int   `mapstructure:"queue_size" json:"queueSize" yaml:"queue_size" default:"1024"`
}

// StreamWriter is the part of the Redis client the logger uses.
type StreamWriter interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Redis appends records to Redis streams named <prefix>:<stream>. Records are
// queued and written by a background goroutine; when the queue is full new
// records are dropped and counted.
type Redis struct {
	cfg    RedisConfig
	client StreamWriter
	logger logging.Logger

	queue  chan Record
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// DialRedis connects to the configured server and starts a Redis logger.
func DialRedis(ctx context.Context, cfg RedisConfig, logger logging.Logger) (*Redis, error) {
	client, err := redis_client.NewRedis(ctx, cfg.Config, logger)
	if err != nil {
		return nil, err
	}
	return NewRedis(client, cfg, logger), nil
}

// NewRedis starts a Redis logger writing through client. If client implements
// io.Closer it is closed by Close.
func NewRedis(client StreamWriter, cfg RedisConfig, logger logging.Logger) *Redis {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.StreamPrefix == "" {
		cfg.StreamPrefix = "xrcore:records"
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	r := &Redis{
		cfg:    cfg,
		client: client,
		logger: logger.Named("record.redis"),
		queue:  make(chan Record, cfg.QueueSize),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *Redis) Log(rec Record) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.dropped.Add(1)
	}
}

func (r *Redis) LogMany(recs []Record) {
	for _, rec := range recs {
		r.Log(rec)
	}
}

// Close drains the queue, waits for pending writes and closes the client.
func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("record logger closed",
		zap.Uint64("written", r.written.Load()),
		zap.Uint64("dropped", r.dropped.Load()),
		zap.Uint64("failed", r.failed.Load()),
	)

	if c, ok := r.client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Written returns how many records reached Redis.
func (r *Redis) Written() uint64 { return r.written.Load() }

// Dropped returns how many records were discarded before reaching Redis.
func (r *Redis) Dropped() uint64 { return r.dropped.Load() }

func (r *Redis) run() {
	defer r.wg.Done()
	for rec := range r.queue {
		r.write(rec)
	}
}

func (r *Redis) write(rec Record) {
	data, err := json.Marshal(rec.Fields)
	if err != nil {
		r.failed.Add(1)
		r.logger.Warn("record encode failed", zap.String("stream", rec.Stream), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	args := &redis.XAddArgs{
		Stream: r.cfg.StreamPrefix + ":" + rec.Stream,
		Values: map[string]any{
			"time": rec.Time.UTC().Format(time.RFC3339Nano),
			"data": string(data),
		},
	}
	if r.cfg.MaxLen > 0 {
		args.MaxLen = r.cfg.MaxLen
		args.Approx = true
	}

	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		r.failed.Add(1)
		r.logger.Warn("record write failed", zap.String("stream", args.Stream), zap.Error(err))
		return
	}
	r.written.Add(1)
}

var _ Logger = (*Redis)(nil)

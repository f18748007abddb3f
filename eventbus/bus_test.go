package eventbus

import (
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/leeforge/xrcore/errors"
)

type pose struct {
	Time time.Duration
	X    float64
}

type imuSample struct {
	Time time.Duration
}

func newTestBus(t *testing.T, cfg Config) *Bus {
	t.Helper()
	b := New(cfg, nil, nil)
	t.Cleanup(b.Stop)
	return b
}

// collector gathers callback payloads for one subscriber.
type collector struct {
	mu    sync.Mutex
	times []time.Duration
	seqs  []uint64
}

func (c *collector) handle(ev *pose, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.times = append(c.times, ev.Time)
	c.seqs = append(c.seqs, seq)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.times)
}

func (c *collector) snapshot() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.times...)
}

func TestBus_TwoSubscribersReceiveAllPosesInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := New(DefaultConfig(), nil, nil)
	var a, c collector
	Schedule[pose](b, "tracker", "pose", a.handle)
	Schedule[pose](b, "renderer", "pose", c.handle)

	t1, t2, t3 := time.Millisecond, 2*time.Millisecond, 3*time.Millisecond
	for _, ts := range []time.Duration{t1, t2, t3} {
		require.NoError(t, Publish(b, "pose", &pose{Time: ts}))
	}

	require.Eventually(t, func() bool { return a.len() == 3 && c.len() == 3 }, time.Second, time.Millisecond)
	b.Stop()

	assert.Equal(t, []time.Duration{t1, t2, t3}, a.snapshot())
	assert.Equal(t, []time.Duration{t1, t2, t3}, c.snapshot())
	assert.Equal(t, []uint64{1, 2, 3}, a.seqs)
	assert.Equal(t, uint64(6), b.Stats().Delivered)
}

func TestBus_PreservesOrderForManyEvents(t *testing.T) {
	b := newTestBus(t, Config{BufferSize: 1024, DeliveryMode: DeliveryBlock})

	var got collector
	Schedule[pose](b, "sink", "pose", got.handle)

	const n = 500
	for i := 1; i <= n; i++ {
		require.NoError(t, Publish(b, "pose", &pose{Time: time.Duration(i)}))
	}

	require.Eventually(t, func() bool { return got.len() == n }, 2*time.Second, time.Millisecond)
	for i, ts := range got.snapshot() {
		require.Equal(t, time.Duration(i+1), ts)
	}
}

func TestBus_SubscribersSharePayload(t *testing.T) {
	b := newTestBus(t, DefaultConfig())

	seen := make(chan *pose, 2)
	Schedule[pose](b, "a", "pose", func(ev *pose, _ uint64) { seen <- ev })
	Schedule[pose](b, "b", "pose", func(ev *pose, _ uint64) { seen <- ev })

	ev := &pose{X: 1}
	require.NoError(t, Publish(b, "pose", ev))

	assert.Same(t, ev, <-seen)
	assert.Same(t, ev, <-seen)
}

func TestBus_ScheduleTypeMismatchIsFatal(t *testing.T) {
	b := newTestBus(t, DefaultConfig())
	Schedule[pose](b, "a", "pose", func(*pose, uint64) {})

	defer func() {
		r := recover()
		require.NotNil(t, r)
		coreErr, ok := r.(*errors.CoreError)
		require.True(t, ok, "panic value is %T", r)
		assert.Equal(t, errors.ErrorTypeConfiguration, coreErr.Type)
		assert.Equal(t, "topic_type_mismatch", coreErr.Code)
	}()
	Schedule[imuSample](b, "b", "pose", func(*imuSample, uint64) {})
}

func TestBus_PublishTypeMismatchIsFatal(t *testing.T) {
	b := newTestBus(t, DefaultConfig())
	require.NoError(t, Publish(b, "imu", &imuSample{}))

	assert.Panics(t, func() { _ = Publish(b, "imu", &pose{}) })
}

func TestBus_NoCallbacksAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := New(DefaultConfig(), nil, nil)
	var calls atomic.Int32
	Schedule[pose](b, "a", "pose", func(*pose, uint64) { calls.Add(1) })

	require.NoError(t, Publish(b, "pose", &pose{}))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	b.Stop()
	b.Stop()
	assert.True(t, b.Stopped())

	err := Publish(b, "pose", &pose{})
	assert.ErrorIs(t, err, ErrBusClosed)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBus_ScheduleAfterStopIsIgnored(t *testing.T) {
	b := New(DefaultConfig(), nil, nil)
	b.Stop()

	sub := Schedule[pose](b, "late", "pose", func(*pose, uint64) {})
	assert.Nil(t, sub)
	sub.Cancel()
}

func TestBus_StopWaitsForInFlightCallback(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := New(DefaultConfig(), nil, nil)
	entered := make(chan struct{})
	var finished atomic.Bool
	Schedule[pose](b, "slow", "pose", func(*pose, uint64) {
		close(entered)
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
	})

	require.NoError(t, Publish(b, "pose", &pose{}))
	<-entered

	b.Stop()
	assert.True(t, finished.Load(), "Stop returned before the in-flight callback completed")
}

func TestBus_StopDiscardsQueuedEvents(t *testing.T) {
	b := New(Config{BufferSize: 16}, nil, nil)
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var calls atomic.Int32
	sub := Schedule[pose](b, "slow", "pose", func(*pose, uint64) {
		calls.Add(1)
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, Publish(b, "pose", &pose{}))
	}
	<-entered

	stopped := make(chan struct{})
	go func() {
		b.Stop()
		close(stopped)
	}()
	require.Eventually(t, b.Stopped, time.Second, time.Millisecond)
	close(release)
	<-stopped

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(4), sub.Dropped())
	assert.Equal(t, uint64(4), b.Stats().Dropped)
}

func TestBus_SlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	b := New(Config{BufferSize: 2, DeliveryMode: DeliveryDrop}, nil, nil)
	release := make(chan struct{})
	Schedule[pose](b, "slow", "pose", func(*pose, uint64) { <-release })

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = Publish(b, "pose", &pose{})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
	assert.Greater(t, b.Stats().Dropped, uint64(0))

	close(release)
	b.Stop()
}

func TestBus_DropModeShowsGapsInSeq(t *testing.T) {
	b := New(Config{BufferSize: 1, DeliveryMode: DeliveryDrop}, nil, nil)
	entered := make(chan struct{}, 1)
	release := make(chan struct{})

	var c collector
	sub := Schedule[pose](b, "slow", "pose", func(ev *pose, seq uint64) {
		c.handle(ev, seq)
		if seq == 1 {
			entered <- struct{}{}
			<-release
		}
	})

	require.NoError(t, Publish(b, "pose", &pose{Time: 1}))
	<-entered
	for i := 2; i <= 5; i++ {
		require.NoError(t, Publish(b, "pose", &pose{Time: time.Duration(i)}))
	}
	close(release)

	require.Eventually(t, func() bool { return c.len() == 2 }, time.Second, time.Millisecond)
	b.Stop()

	assert.Equal(t, []uint64{1, 2}, c.seqs)
	assert.Equal(t, uint64(3), sub.Dropped())
}

func TestBus_BlockModeDeliversEveryEvent(t *testing.T) {
	b := New(Config{BufferSize: 1, DeliveryMode: DeliveryBlock}, nil, nil)

	var c collector
	Schedule[pose](b, "slow", "pose", func(ev *pose, seq uint64) {
		time.Sleep(100 * time.Microsecond)
		c.handle(ev, seq)
	})

	const n = 50
	for i := 1; i <= n; i++ {
		require.NoError(t, Publish(b, "pose", &pose{Time: time.Duration(i)}))
	}
	require.Eventually(t, func() bool { return c.len() == n }, 2*time.Second, time.Millisecond)
	b.Stop()

	for i, seq := range c.seqs {
		assert.Equal(t, uint64(i+1), seq)
	}
	assert.Zero(t, b.Stats().Dropped)
}

func TestBus_TimeoutModeDropsAfterDeadline(t *testing.T) {
	b := New(Config{BufferSize: 1, DeliveryMode: DeliveryTimeout, PublishTimeout: 5 * time.Millisecond}, nil, nil)
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	sub := Schedule[pose](b, "slow", "pose", func(*pose, uint64) {
		once.Do(func() { close(entered) })
		<-release
	})

	require.NoError(t, Publish(b, "pose", &pose{})) // picked up by the worker
	<-entered
	require.NoError(t, Publish(b, "pose", &pose{})) // fills the queue

	start := time.Now()
	require.NoError(t, Publish(b, "pose", &pose{})) // waits, then drops
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
	assert.Equal(t, uint64(1), sub.Dropped())

	close(release)
	b.Stop()
}

func TestBus_BlockModeUnblocksOnStop(t *testing.T) {
	b := New(Config{BufferSize: 1, DeliveryMode: DeliveryBlock}, nil, nil)
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	Schedule[pose](b, "slow", "pose", func(*pose, uint64) {
		once.Do(func() { close(entered) })
		<-release
	})

	require.NoError(t, Publish(b, "pose", &pose{}))
	<-entered
	require.NoError(t, Publish(b, "pose", &pose{}))

	published := make(chan error, 1)
	go func() { published <- Publish(b, "pose", &pose{}) }()

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	b.Stop()

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("blocked publisher was not released by Stop")
	}
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	b := newTestBus(t, DefaultConfig())

	var calls atomic.Int32
	sub := Schedule[pose](b, "a", "pose", func(*pose, uint64) { calls.Add(1) })
	require.NoError(t, Publish(b, "pose", &pose{}))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	sub.Cancel()
	sub.Cancel()
	require.NoError(t, Publish(b, "pose", &pose{}))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, b.Topics()[0].Subscribers)
}

func TestBus_CallbackPanicIsRecovered(t *testing.T) {
	b := newTestBus(t, DefaultConfig())

	var calls atomic.Int32
	Schedule[pose](b, "flaky", "pose", func(ev *pose, _ uint64) {
		calls.Add(1)
		if ev.X < 0 {
			panic("negative pose")
		}
	})

	require.NoError(t, Publish(b, "pose", &pose{X: -1}))
	require.NoError(t, Publish(b, "pose", &pose{X: 1}))

	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return b.Stats().Delivered == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(1), b.Stats().Panics)
}

func TestBus_NonFatalCoreErrorInCallbackIsRecovered(t *testing.T) {
	b := newTestBus(t, DefaultConfig())

	var calls atomic.Int32
	Schedule[pose](b, "a", "pose", func(*pose, uint64) {
		calls.Add(1)
		panic(errors.NewPlugin("a", ErrNilPayload))
	})
	require.NoError(t, Publish(b, "pose", &pose{}))

	require.Eventually(t, func() bool { return b.Stats().Panics == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

const crashEnv = "XR_EVENTBUS_CALLBACK_MISMATCH"

// The mismatched Publish runs on a subscription goroutine, so the only way to
// observe the fatal error is to run it in a child test process.
func TestBus_TypeMismatchInsideCallbackTerminatesProcess(t *testing.T) {
	if os.Getenv(crashEnv) == "1" {
		b := New(DefaultConfig(), nil, nil)
		Schedule[pose](b, "relay", "pose", func(*pose, uint64) {
			_ = Publish(b, "pose", &imuSample{})
		})
		_ = Publish(b, "pose", &pose{})
		time.Sleep(5 * time.Second)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestBus_TypeMismatchInsideCallbackTerminatesProcess$")
	cmd.Env = append(os.Environ(), crashEnv+"=1")
	out, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr, "child exited cleanly:\n%s", out)
	assert.False(t, exitErr.Success())
	assert.Contains(t, string(out), `topic "pose" carries`)
}

func TestBus_PublishNilPayload(t *testing.T) {
	b := newTestBus(t, DefaultConfig())
	assert.ErrorIs(t, Publish[pose](b, "pose", nil), ErrNilPayload)
}

func TestBus_LatestAndReaderWriter(t *testing.T) {
	b := newTestBus(t, DefaultConfig())

	_, ok := Latest[pose](b, "slow_pose")
	assert.False(t, ok)

	w := NewWriter[pose](b, "slow_pose")
	r := NewReader[pose](b, "slow_pose")
	_, ok = r.Get()
	assert.False(t, ok)

	first, second := &pose{X: 1}, &pose{X: 2}
	require.NoError(t, w.Put(first))
	require.NoError(t, w.Put(second))

	got, ok := r.Get()
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, uint64(2), r.Seq())

	latest, ok := Latest[pose](b, "slow_pose")
	require.True(t, ok)
	assert.Same(t, second, latest)

	assert.Panics(t, func() { NewReader[imuSample](b, "slow_pose") })
}

func TestBus_Topics(t *testing.T) {
	b := newTestBus(t, DefaultConfig())
	Schedule[pose](b, "a", "pose", func(*pose, uint64) {})
	Schedule[pose](b, "b", "pose", func(*pose, uint64) {})
	require.NoError(t, Publish(b, "imu", &imuSample{}))

	topics := b.Topics()
	require.Len(t, topics, 2)
	assert.Equal(t, "imu", topics[0].Name)
	assert.Equal(t, uint64(1), topics[0].Published)
	assert.Equal(t, "pose", topics[1].Name)
	assert.Equal(t, "eventbus.pose", topics[1].Type)
	assert.Equal(t, 2, topics[1].Subscribers)
}

func TestBus_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	b := New(DefaultConfig(), nil, m)

	var calls atomic.Int32
	Schedule[pose](b, "a", "pose", func(*pose, uint64) { calls.Add(1) })
	require.NoError(t, Publish(b, "pose", &pose{}))
	require.NoError(t, Publish(b, "pose", &pose{}))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
	b.Stop()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.published.WithLabelValues("pose")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.delivered.WithLabelValues("pose")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.handlerDuration))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 256, cfg.BufferSize)
	assert.Equal(t, DeliveryDrop, cfg.DeliveryMode)
	assert.Equal(t, 10*time.Millisecond, cfg.PublishTimeout)
}

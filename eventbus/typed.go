package eventbus

import (
	"reflect"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler receives one event. seq is the event's 1-based position on its
// topic; gaps mean events were dropped for this subscriber.
type Handler[T any] func(ev *T, seq uint64)

// Schedule subscribes fn to topic on behalf of subscriberID. fn runs on the
// subscription's own goroutine, once per event, in publication order.
// Scheduling on a topic bound to another payload type is fatal. After Stop the
// call is ignored and returns nil.
//
// Under the default DeliveryDrop mode a subscriber whose queue is full misses
// events: the loss is counted in Stats and shows up as gaps in seq. Configure
// DeliveryBlock when every subscriber must see every event and a slow
// subscriber may stall its publishers.
func Schedule[T any](b *Bus, subscriberID, topicName string, fn Handler[T]) *Subscription {
	if b.closed.Load() {
		b.ignoredSchedule(subscriberID, topicName)
		return nil
	}

	t := b.bind(topicName, reflect.TypeFor[T]())
	s := &Subscription{
		id:         uuid.NewString(),
		subscriber: subscriberID,
		topic:      t,
		bus:        b,
		handler: func(env *envelope) {
			fn(env.payload.(*T), env.seq)
		},
		queue:    make(chan *envelope, b.cfg.BufferSize),
		cancel:   make(chan struct{}),
		finished: make(chan struct{}),
	}

	// The closed check and wg.Add happen under the lock Stop takes before
	// waiting, so no worker starts after Stop begins waiting.
	b.mu.Lock()
	if b.closed.Load() {
		b.mu.Unlock()
		b.ignoredSchedule(subscriberID, topicName)
		return nil
	}
	b.wg.Add(1)
	t.add(s)
	b.mu.Unlock()

	go s.run()

	b.logger.Debug("subscription scheduled",
		zap.String("topic", topicName),
		zap.String("subscriber", subscriberID),
		zap.String("subscription", s.id))
	return s
}

// Publish hands ev to every current subscriber of topic and returns without
// waiting for any callback. The bus and all subscribers share ev; callers
// must not modify it afterwards. Publishing on a topic bound to another
// payload type is fatal. After Stop it returns ErrBusClosed.
func Publish[T any](b *Bus, topicName string, ev *T) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if ev == nil {
		return ErrNilPayload
	}

	t := b.bind(topicName, reflect.TypeFor[T]())
	env := &envelope{payload: ev, seq: t.seq.Add(1)}
	t.latest.Store(env)

	b.published.Add(1)
	b.metrics.recordPublished(topicName)

	for _, s := range t.snapshot() {
		if !s.enqueue(env) {
			s.markDropped(1)
		}
	}
	return nil
}

// Latest returns the most recently published payload on topic, if any.
func Latest[T any](b *Bus, topicName string) (*T, bool) {
	t := b.bind(topicName, reflect.TypeFor[T]())
	env := t.latest.Load()
	if env == nil {
		return nil, false
	}
	return env.payload.(*T), true
}

// Writer publishes to one topic.
type Writer[T any] struct {
	bus   *Bus
	topic string
}

// NewWriter binds topic to T and returns a Writer for it.
func NewWriter[T any](b *Bus, topicName string) *Writer[T] {
	b.bind(topicName, reflect.TypeFor[T]())
	return &Writer[T]{bus: b, topic: topicName}
}

func (w *Writer[T]) Topic() string { return w.topic }

// Put publishes ev.
func (w *Writer[T]) Put(ev *T) error {
	return Publish(w.bus, w.topic, ev)
}

// Reader polls the latest value of one topic.
type Reader[T any] struct {
	topic *topic
}

// NewReader binds topic to T and returns a Reader for it.
func NewReader[T any](b *Bus, topicName string) *Reader[T] {
	return &Reader[T]{topic: b.bind(topicName, reflect.TypeFor[T]())}
}

func (r *Reader[T]) Topic() string { return r.topic.name }

// Get returns the latest payload, or false if nothing was published yet.
func (r *Reader[T]) Get() (*T, bool) {
	env := r.topic.latest.Load()
	if env == nil {
		return nil, false
	}
	return env.payload.(*T), true
}

// Seq returns how many events have been published on the topic.
func (r *Reader[T]) Seq() uint64 {
	return r.topic.seq.Load()
}

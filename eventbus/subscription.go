package eventbus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/leeforge/xrcore/errors"
)

// Subscription is one scheduled callback on one topic.
type Subscription struct {
	id         string
	subscriber string
	topic      *topic
	bus        *Bus
	handler    func(*envelope)

	queue      chan *envelope
	cancel     chan struct{}
	cancelOnce sync.Once
	finished   chan struct{} // closed when the worker exits

	dropped atomic.Uint64
}

func (s *Subscription) ID() string         { return s.id }
func (s *Subscription) Subscriber() string { return s.subscriber }
func (s *Subscription) Topic() string      { return s.topic.name }

// Dropped returns how many events this subscription never received.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Cancel removes the subscription and waits for its worker to exit. It is
// idempotent, safe on a nil Subscription, and must not be called from the
// subscription's own callback.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.cancelOnce.Do(func() {
		s.topic.remove(s)
		close(s.cancel)
	})
	<-s.finished
}

// enqueue hands env to the worker according to the bus delivery mode and
// reports whether it was queued.
func (s *Subscription) enqueue(env *envelope) bool {
	select {
	case <-s.cancel:
		return false
	default:
	}

	switch s.bus.cfg.DeliveryMode {
	case DeliveryBlock:
		select {
		case s.queue <- env:
			return true
		case <-s.cancel:
		case <-s.bus.done:
		}
	case DeliveryTimeout:
		if s.bus.cfg.PublishTimeout <= 0 {
			select {
			case s.queue <- env:
				return true
			default:
			}
			break
		}
		timer := time.NewTimer(s.bus.cfg.PublishTimeout)
		defer timer.Stop()
		select {
		case s.queue <- env:
			return true
		case <-timer.C:
		case <-s.cancel:
		case <-s.bus.done:
		}
	default:
		select {
		case s.queue <- env:
			return true
		default:
		}
	}
	return false
}

func (s *Subscription) run() {
	defer s.bus.wg.Done()
	defer close(s.finished)

	for {
		select {
		case <-s.bus.done:
			s.discard()
			return
		case <-s.cancel:
			s.discard()
			return
		case env := <-s.queue:
			// Stop wins over a ready event.
			select {
			case <-s.bus.done:
				s.markDropped(1)
				s.discard()
				return
			default:
			}
			s.deliver(env)
		}
	}
}

// deliver runs the handler. Ordinary panics are recovered and counted; a
// fatal core error raised inside the handler is re-raised and ends the process.
func (s *Subscription) deliver(env *envelope) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			if coreErr, ok := errors.IsFatal(r); ok {
				s.bus.logger.Error("fatal error in subscriber callback",
					zap.String("topic", s.topic.name),
					zap.String("subscriber", s.subscriber),
					zap.Error(coreErr))
				panic(coreErr)
			}
			s.bus.panics.Add(1)
			s.bus.metrics.recordPanic(s.topic.name)
			s.bus.logger.Error("subscriber callback panicked",
				zap.String("topic", s.topic.name),
				zap.String("subscriber", s.subscriber),
				zap.Uint64("seq", env.seq),
				zap.String("panic", fmt.Sprint(r)),
				zap.Stack("stack"),
			)
			return
		}
		s.bus.delivered.Add(1)
		s.bus.metrics.recordDelivered(s.topic.name, time.Since(start))
	}()
	s.handler(env)
}

// discard empties the queue, counting what it finds as dropped.
func (s *Subscription) discard() {
	n := 0
	for {
		select {
		case <-s.queue:
			n++
		default:
			s.markDropped(n)
			return
		}
	}
}

func (s *Subscription) markDropped(n int) {
	if n == 0 {
		return
	}
	s.dropped.Add(uint64(n))
	s.bus.countDropped(s.topic.name, n)
}

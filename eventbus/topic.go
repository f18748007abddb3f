package eventbus

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// envelope is what travels through a subscription queue. payload is always a
// non-nil *T for the topic's T.
type envelope struct {
	payload any
	seq     uint64
}

type topic struct {
	name string
	typ  reflect.Type

	subs []*Subscription
	mu   sync.RWMutex

	seq    atomic.Uint64
	latest atomic.Pointer[envelope]
}

func (t *topic) add(s *Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = append(t.subs, s)
}

func (t *topic) remove(s *Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, sub := range t.subs {
		if sub == s {
			t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
			return
		}
	}
}

func (t *topic) snapshot() []*Subscription {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Subscription(nil), t.subs...)
}

func (t *topic) info() TopicInfo {
	t.mu.RLock()
	n := len(t.subs)
	t.mu.RUnlock()
	return TopicInfo{
		Name:        t.name,
		Type:        t.typ.String(),
		Subscribers: n,
		Published:   t.seq.Load(),
	}
}

// Package guid hands out identifiers that are unique within the process.
package guid

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Source supplies process-unique identifiers.
type Source interface {
	// New returns a random identifier.
	New() uuid.UUID
	// Next returns the next value of the counter named by namespace. Counters
	// start at 1 and never repeat a value.
	Next(namespace string) uint64
}

// UUIDSource is the default Source.
type UUIDSource struct {
	counters sync.Map // string -> *atomic.Uint64
}

// NewSource creates an empty UUIDSource.
func NewSource() *UUIDSource {
	return &UUIDSource{}
}

func (s *UUIDSource) New() uuid.UUID {
	return uuid.New()
}

func (s *UUIDSource) Next(namespace string) uint64 {
	c, _ := s.counters.LoadOrStore(namespace, new(atomic.Uint64))
	return c.(*atomic.Uint64).Add(1)
}

var _ Source = (*UUIDSource)(nil)

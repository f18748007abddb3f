package plugin

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/leeforge/xrcore/errors"
)

// Registry is the process-wide, type-indexed service locator shared by the
// runtime and every plugin. Each capability type maps to exactly one
// implementation; there is no unregister.
type Registry struct {
	services map[reflect.Type]any
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		services: make(map[reflect.Type]any),
	}
}

// Register installs impl as the implementation of capability T. Registering a
// capability twice, or registering a nil implementation, is fatal.
func Register[T any](r *Registry, impl T) {
	key := reflect.TypeFor[T]()
	if isNil(impl) {
		errors.Fatal(errors.NewConfiguration("capability %s registered with a nil implementation", key).
			WithCode("nil_capability"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.services[key]; exists {
		errors.Fatal(errors.NewConfiguration("capability %s already registered", key).
			WithCode("duplicate_capability").
			WithDetail("existing", fmt.Sprintf("%T", existing)))
	}
	r.services[key] = impl
}

// Lookup returns the implementation of capability T. A missing capability is fatal.
func Lookup[T any](r *Registry) T {
	svc, err := Resolve[T](r)
	if err != nil {
		errors.Fatal(err)
	}
	return svc
}

// Resolve returns the implementation of capability T, or a configuration error
// when none is registered.
func Resolve[T any](r *Registry) (T, error) {
	key := reflect.TypeFor[T]()

	r.mu.RLock()
	svc, exists := r.services[key]
	r.mu.RUnlock()

	var zero T
	if !exists {
		return zero, errors.NewConfiguration("capability %s not registered", key).
			WithCode("missing_capability")
	}
	return svc.(T), nil
}

// Has reports whether capability T is registered.
func Has[T any](r *Registry) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.services[reflect.TypeFor[T]()]
	return exists
}

// Keys returns the registered capability type names, sorted alphabetically.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.services))
	for k := range r.services {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	return keys
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

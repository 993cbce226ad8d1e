package manager

import (
	"log/slog"
	"sync"
)

// ComponentRegistry holds the scheduler/partitioner/planner/compressor
// instances a TaskManager coordinates, with one-time-or-replace
// registration and synchronous listener notification. Grounded on
// original_source/manager/component_registry.py; listener panics are
// recovered and logged instead of propagated, the Go analog of the
// original's per-listener try/except.
type ComponentRegistry struct {
	mu         sync.Mutex
	components map[string]interface{}
	listeners  map[string][]func(interface{})
	logger     *slog.Logger
}

// NewComponentRegistry builds an empty registry.
func NewComponentRegistry(logger *slog.Logger) *ComponentRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComponentRegistry{
		components: make(map[string]interface{}),
		listeners:  make(map[string][]func(interface{})),
		logger:     logger,
	}
}

// Register stores component under name. If name is already registered and
// replace is false, the call is a no-op (logged, not an error) — matching
// the original's "log and ignore" behavior rather than panicking. On a
// successful register or replace, every listener for name is notified
// synchronously.
func (r *ComponentRegistry) Register(name string, component interface{}, replace bool) bool {
	r.mu.Lock()
	_, exists := r.components[name]
	if exists && !replace {
		r.mu.Unlock()
		r.logger.Error("manager: component already registered, use replace=true to override", "component", name)
		return false
	}
	if exists {
		r.logger.Warn("manager: replacing existing component", "component", name)
	}
	r.components[name] = component
	listeners := append([]func(interface{})(nil), r.listeners[name]...)
	r.mu.Unlock()

	r.logger.Info("manager: registered component", "component", name)
	r.notifyListeners(name, component, listeners)
	return true
}

// Get returns the component registered under name, if any.
func (r *ComponentRegistry) Get(name string) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.components[name]
	return c, ok
}

// Has reports whether a component is registered under name.
func (r *ComponentRegistry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.components[name]
	return ok
}

// Unregister removes the component under name, returning whether one
// existed.
func (r *ComponentRegistry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.components[name]; !ok {
		return false
	}
	delete(r.components, name)
	r.logger.Info("manager: unregistered component", "component", name)
	return true
}

// AddListener registers a callback invoked synchronously, inside Register,
// every time componentName is (re)registered. Listeners must be
// non-blocking; a panicking listener is recovered and logged, not
// propagated to the caller of Register.
func (r *ComponentRegistry) AddListener(componentName string, callback func(interface{})) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[componentName] = append(r.listeners[componentName], callback)
}

func (r *ComponentRegistry) notifyListeners(name string, component interface{}, listeners []func(interface{})) {
	for _, cb := range listeners {
		r.invokeListener(name, component, cb)
	}
}

func (r *ComponentRegistry) invokeListener(name string, component interface{}, cb func(interface{})) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("manager: listener panicked", "component", name, "recovered", rec)
		}
	}()
	cb(component)
}

// ListComponents returns every currently registered component name.
func (r *ComponentRegistry) ListComponents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.components))
	for name := range r.components {
		out = append(out, name)
	}
	return out
}

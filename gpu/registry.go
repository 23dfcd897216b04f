package gpu

import "sync"

// AdapterFactory creates a new adapter instance, or returns nil if the
// backend is unavailable on this machine.
type AdapterFactory func() Adapter

// Backend names.
const (
	// BackendSoftware is the CPU reference backend (always available).
	BackendSoftware = "software"

	// BackendWGPU is the wgpu device-probe backend.
	BackendWGPU = "wgpu"
)

var (
	registryMu sync.RWMutex
	backends   = make(map[string]AdapterFactory)

	// Priority order for adapter selection (first available wins).
	backendPriority = []string{BackendWGPU, BackendSoftware}
)

// Register registers an adapter factory under the given name.
// Typically called from init() functions in backend packages.
// Registering an existing name replaces the previous factory.
func Register(name string, factory AdapterFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry. Useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the names of all registered backends.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	return names
}

// Get returns a new adapter for the named backend, or nil if the backend is
// not registered or unavailable.
func Get(name string) Adapter {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()
	if !ok {
		return nil
	}
	return factory()
}

// Default returns the best available adapter based on priority, or nil when
// no backend is registered. Unavailable backends (factory returned nil) are
// skipped, matching the calling convention of context acquisition: callers
// get nil, never a panic.
func Default() Adapter {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range backendPriority {
		if factory, ok := backends[name]; ok {
			if a := factory(); a != nil {
				return a
			}
		}
	}
	for _, factory := range backends {
		if a := factory(); a != nil {
			return a
		}
	}
	return nil
}

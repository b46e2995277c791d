package backend

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor builds a concrete backend from adapter-specific options.
type Constructor func(options map[string]string) (TaskBackend, error)

var (
	registryMu sync.Mutex
	registry   = make(map[string]Constructor)
)

// Register makes a backend adapter available under name. Adapters call this
// from their package init.
func Register(name string, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("backend: Register called twice for " + name)
	}
	registry[name] = c
}

// Open constructs the named backend with the given options.
func Open(name string, options map[string]string) (TaskBackend, error) {
	registryMu.Lock()
	c, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %v)", name, Names())
	}
	return c(options)
}

// Names lists the registered adapter names, sorted.
func Names() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

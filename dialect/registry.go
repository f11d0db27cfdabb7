package dialect

import (
	"fmt"
	"sort"
	"sync"
)

// registry maps dialect names to factories. Dialect packages register
// themselves from init, matching the database/sql driver registration
// idiom.
var registry = struct {
	mu sync.RWMutex
	m  map[string]func() Dialect
}{m: make(map[string]func() Dialect)}

// Register makes a dialect available under name. It panics on duplicate
// registration, which indicates two packages claiming the same backend.
func Register(name string, factory func() Dialect) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, dup := registry.m[name]; dup {
		panic(fmt.Sprintf("dialect: Register called twice for %q", name))
	}
	registry.m[name] = factory
}

// Lookup constructs a fresh dialect instance for name.
func Lookup(name string) (Dialect, error) {
	registry.mu.RLock()
	factory, ok := registry.m[name]
	registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dialect: unknown dialect %q (registered: %v)", name, Names())
	}
	return factory(), nil
}

// Names lists registered dialect names in sorted order.
func Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	names := make([]string, 0, len(registry.m))
	for name := range registry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

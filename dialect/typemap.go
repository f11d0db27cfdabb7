package dialect

import (
	"sync"

	"github.com/RamonWill/strata/core"
)

// Descriptor is a backend-specific rendering of a generic type.
type Descriptor struct {
	// SQL is the backend's DDL spelling of the type.
	SQL string

	// Kind preserves the generic kind the descriptor was derived from.
	Kind core.TypeKind
}

// TypeCompiler renders a generic type for one backend. Compilers must be
// pure functions: the result is cached per dialect name, so any dependence
// on instance or connection state would leak across connections.
type TypeCompiler func(t core.Type) Descriptor

// typeCache caches descriptors per dialect name. The key is the static
// backend identifier, not the dialect instance, enforcing the rule that the
// type-mapping table carries no per-connection state.
var typeCache = struct {
	mu sync.Mutex
	m  map[string]map[core.Type]Descriptor
}{m: make(map[string]map[core.Type]Descriptor)}

// cachedDescriptor returns the descriptor for t under dialectName,
// compiling and caching it on first use.
func cachedDescriptor(dialectName string, t core.Type, compile TypeCompiler) Descriptor {
	typeCache.mu.Lock()
	defer typeCache.mu.Unlock()

	perDialect, ok := typeCache.m[dialectName]
	if !ok {
		perDialect = make(map[core.Type]Descriptor)
		typeCache.m[dialectName] = perDialect
	}
	if d, ok := perDialect[t]; ok {
		return d
	}
	d := compile(t)
	perDialect[t] = d
	return d
}

// GenericTypeCompiler renders generic types with their standard SQL names.
// It is the default compiler for dialects that do not supply their own.
func GenericTypeCompiler(t core.Type) Descriptor {
	return Descriptor{SQL: t.String(), Kind: t.Kind}
}

// Package strata is a database-engine abstraction core: dialects,
// execution contexts, transaction management, result strategies and
// exception translation over pluggable drivers.
//
// Backends register themselves from init; importing a dialect package
// for its side effects makes it available by name:
//
//	import _ "github.com/RamonWill/strata/dialect/sqlite"
//
//	eng, err := strata.Open("sqlite", &core.URL{Database: "app.db"})
package strata

import (
	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/dialect"
	"github.com/RamonWill/strata/engine"
)

// Open assembles an engine for the named dialect.
func Open(name string, u *core.URL, opts ...engine.Option) (*engine.Engine, error) {
	return engine.Open(name, u, opts...)
}

// Dialects lists the registered dialect names.
func Dialects() []string {
	return dialect.Names()
}

// Package db reads table metadata from live PostgreSQL, MySQL and SQLite databases.
package db

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/tordrt/schemacache/internal/raw"
)

// Introspector reads the catalog description of a single table
type Introspector interface {
	Engine() raw.Engine
	// IntrospectTable issues read-only catalog queries for table. A table that
	// does not exist yields ErrTableNotFound; a table without columns is valid.
	IntrospectTable(ctx context.Context, table string) (*raw.Table, error)
	// ListTables returns the base tables visible to the adapter, in name order
	ListTables(ctx context.Context) ([]string, error)
	Close() error
}

// Options configures an adapter
type Options struct {
	// SchemaName is the PostgreSQL schema or MySQL database to read.
	// Empty means "public" for PostgreSQL and the DSN's database for MySQL.
	SchemaName string
}

// Factory opens an Introspector for a data source name
type Factory func(ctx context.Context, dsn string, opts Options) (Introspector, error)

var (
	registry = make(map[raw.Engine]Factory)
	mu       sync.RWMutex
)

// Register makes an adapter available under engine, replacing any previous one
func Register(engine raw.Engine, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[engine] = factory
}

// Open connects to dsn with the adapter registered for engine
func Open(ctx context.Context, engine raw.Engine, dsn string, opts Options) (Introspector, error) {
	mu.RLock()
	factory, ok := registry[engine]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEngine, engine)
	}

	introspector, err := factory(ctx, dsn, opts)
	if err != nil {
		return nil, classify(err)
	}
	return introspector, nil
}

// Engines lists the registered engines in name order
func Engines() []raw.Engine {
	mu.RLock()
	defer mu.RUnlock()

	engines := make([]raw.Engine, 0, len(registry))
	for engine := range registry {
		engines = append(engines, engine)
	}
	slices.Sort(engines)
	return engines
}

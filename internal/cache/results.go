package cache

import (
	"errors"
	"fmt"

	"github.com/tordrt/schemacache/internal/schema"
)

// Result is the outcome of warming one table
type Result struct {
	Table  string
	Schema *schema.Schema
	// Cached is set when Schema came from a fresh cache entry
	Cached bool
	Err    error
}

// Results holds per-table outcomes in request order
type Results []Result

// Err joins the errors of all failed tables, or returns nil
func (r Results) Err() error {
	var errs []error
	for _, res := range r {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("table %s: %w", res.Table, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Schemas returns the schemas of the tables that succeeded
func (r Results) Schemas() []schema.Schema {
	var out []schema.Schema
	for _, res := range r {
		if res.Schema != nil {
			out = append(out, *res.Schema)
		}
	}
	return out
}

// Hits counts the tables served from the cache
func (r Results) Hits() int {
	n := 0
	for _, res := range r {
		if res.Cached {
			n++
		}
	}
	return n
}

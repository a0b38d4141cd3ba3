// Package registry implements a process-wide named map of
// chunkstore.Table instances with idempotent create semantics. Follows
// internal/cluster.Registry's RWMutex-guarded map[string]*Instance, with
// the same create/get/drop/list surface, generalised from cluster
// instances to tables.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/reiase/probing-go/internal/chunkstore"
)

// ErrAlreadyExists is returned by Create when name is taken by a table
// with a different schema
var ErrAlreadyExists = errors.New("table already exists with a different schema")

// ErrUnknownTable is returned by Get/Drop for names the registry does not
// hold
var ErrUnknownTable = errors.New("unknown table")

// Registry is the single owner of Table storage; everything else holds a
// reference resolved on use
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*chunkstore.Table
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{tables: map[string]*chunkstore.Table{}}
}

// Create registers a table under name with the given schema and config.
// If name already holds a table with an identical schema, Create returns
// that existing handle idempotently; a differing schema fails with
// ErrAlreadyExists.
func (r *Registry) Create(name string, fields []string, kinds []chunkstore.Kind, cfg chunkstore.Config) (*chunkstore.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tables[name]; ok {
		if existing.SameSchema(fields, kinds) {
			return existing, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}
	tbl, err := chunkstore.NewTable(name, fields, kinds, cfg)
	if err != nil {
		return nil, err
	}
	r.tables[name] = tbl
	return tbl, nil
}

// Get resolves a table by name.
func (r *Registry) Get(name string) (*chunkstore.Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tbl, ok := r.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return tbl, nil
}

// Drop deletes a table, releasing its chunks. Dropping an unknown table
// is a no-op, matching the idempotent lifecycle expected of extension
// deinit .
func (r *Registry) Drop(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tables, name)
}

// List returns table names in sorted order together with their schemas,
// backing SHOW TABLES .
func (r *Registry) List() []TableInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TableInfo, 0, len(r.tables))
	for name, tbl := range r.tables {
		out = append(out, TableInfo{Name: name, Schema: tbl.Schema()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TableInfo is the SHOW TABLES row shape.
type TableInfo struct {
	Name   string
	Schema []string
}

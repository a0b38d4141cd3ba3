// Package sqlengine answers SQL queries over the registered tables.
// Follows internal/localdb.DB, which already reaches database/sql
// through modernc.org/sqlite for all of its persistence; this package
// reuses exactly that driver but opens a throwaway ":memory:" connection
// per query, populates it from the Table Registry and Virtual Table
// Resolver, and lets SQLite itself be the embedded query executor —
// this package's own job is table binding and result-to-JSON encoding,
// not reinventing joins/predicates/aggregates.
package sqlengine

import (
	"context"
	"regexp"
	"strings"

	"github.com/reiase/probing-go/internal/probelog"
	"github.com/reiase/probing-go/internal/registry"
	"github.com/reiase/probing-go/internal/virtual"
)

var log = probelog.Named("sqlengine")

// KnobSetter applies one SET probing.<knob> = <value> assignment. It
// returns ErrExtensionFailure-wrapped errors for extension lifecycle
// problems and ErrInvalidConfig-wrapped errors for malformed values.
type KnobSetter func(value string) error

// Result is the tabular JSON envelope requires:
// {names: [...], cols: [{<col>: [...]}]}.
type Result struct {
	Names []string         `json:"names"`
	Cols  []map[string]any `json:"cols"`
}

// Engine dispatches SQL text against the registry and virtual resolver.
type Engine struct {
	registry *registry.Registry
	virtual  *virtual.Resolver
	knobs    map[string]KnobSetter
}

// New builds an Engine bound to a registry and virtual resolver.
func New(reg *registry.Registry, vr *virtual.Resolver) *Engine {
	return &Engine{registry: reg, virtual: vr, knobs: map[string]KnobSetter{}}
}

// RegisterKnob wires a SET probing.<name> handler knob
// catalogue. Callers (the probe sampler, the extension loader) register
// their own knobs at startup.
func (e *Engine) RegisterKnob(name string, setter KnobSetter) {
	e.knobs[name] = setter
}

var setRe = regexp.MustCompile(`(?is)^\s*SET\s+probing\.([a-zA-Z0-9_.]+)\s*=\s*(.+?)\s*;?\s*$`)

// Query dispatches one statement: SHOW TABLES, SET
// probing.<knob>, or SELECT over registered/virtual tables.
func (e *Engine) Query(ctx context.Context, sqlText string) (Result, error) {
	trimmed := strings.TrimSpace(sqlText)
	switch {
	case strings.EqualFold(trimmed, "SHOW TABLES") || strings.EqualFold(trimmed, "SHOW TABLES;"):
		return e.showTables(), nil
	case setRe.MatchString(trimmed):
		return e.runSet(trimmed)
	default:
		return e.runSelect(ctx, trimmed)
	}
}

func (e *Engine) showTables() Result {
	tables := e.registry.List()
	names := make([]any, 0, len(tables))
	schemas := make([]any, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Name)
		schemas = append(schemas, strings.Join(t.Schema, ","))
	}
	return Result{
		Names: []string{"name", "schema"},
		Cols: []map[string]any{
			{"name": names},
			{"schema": schemas},
		},
	}
}

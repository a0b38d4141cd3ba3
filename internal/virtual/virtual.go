// Package virtual resolves table names under a namespace prefix by
// materialising them on demand from host introspection functions
// rather than reading them from the registry. Follows
// internal/db.AutoDiscoverAddr's "consult the live environment, never
// persist the answer" pattern, generalised from one hardcoded lookup to
// a registered table of inspectors.
package virtual

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Prefix is the namespace that identifies a virtual table reference,
// e.g. "host.goroutines" or "host.env(\"PATH\")". original_source used
// "python.<expr>" for the same idea; this module generalises it to
// introspect the host Go program instead of a Python runtime.
const Prefix = "host."

// Inspector produces the value a virtual table expression materialises
// into. Call-style expressions pass their parsed arguments through args.
type Inspector func(args []string) (any, error)

// Table is a one-shot materialised result: never registered, living only
// for the life of one query .
type Table struct {
	Columns []string
	Rows    [][]any
}

// Resolver holds the inspectors a host program has registered.
type Resolver struct {
	inspectors map[string]Inspector
	group      singleflight.Group
}

// NewResolver returns a resolver pre-populated with the built-in
// introspectors supplemented from original_source/python/probing/inspect:
// goroutine counts, memory stats, and build info, available with zero
// host configuration.
func NewResolver() *Resolver {
	r := &Resolver{inspectors: map[string]Inspector{}}
	registerBuiltins(r)
	return r
}

// Register adds or replaces an inspector under name (the part of the
// expression after Prefix and before any call parens).
func (r *Resolver) Register(name string, fn Inspector) {
	r.inspectors[name] = fn
}

// HasPrefix reports whether a table reference names the virtual
// namespace.
func HasPrefix(tableRef string) bool { return strings.HasPrefix(tableRef, Prefix) }

// Resolve evaluates a "host.<expr>" reference and materialises it into a
// Table, per the four shapes in Concurrent queries for the
// identical expression are collapsed via singleflight, since
// introspection functions (e.g. reading full memory stats) are not free.
func (r *Resolver) Resolve(tableRef string) (Table, error) {
	if !HasPrefix(tableRef) {
		return Table{}, fmt.Errorf("not a virtual table reference: %s", tableRef)
	}
	expr := strings.TrimPrefix(tableRef, Prefix)
	name, args, err := parseExpr(expr)
	if err != nil {
		return Table{}, err
	}
	fn, ok := r.inspectors[name]
	if !ok {
		return Table{}, fmt.Errorf("no introspector registered for %q", name)
	}
	v, err, _ := r.group.Do(tableRef, func() (any, error) { return fn(args) })
	if err != nil {
		return Table{}, fmt.Errorf("evaluate %s: %w", tableRef, err)
	}
	return materialize(v)
}

// parseExpr splits "name" or "name(a, b)" into a name and raw argument
// strings.
func parseExpr(expr string) (name string, args []string, err error) {
	expr = strings.TrimSpace(expr)
	open := strings.IndexByte(expr, '(')
	if open < 0 {
		return expr, nil, nil
	}
	if !strings.HasSuffix(expr, ")") {
		return "", nil, fmt.Errorf("malformed call expression: %s", expr)
	}
	name = strings.TrimSpace(expr[:open])
	inner := expr[open+1 : len(expr)-1]
	if strings.TrimSpace(inner) == "" {
		return name, nil, nil
	}
	for _, a := range strings.Split(inner, ",") {
		a = strings.TrimSpace(a)
		a = strings.Trim(a, `"'`)
		args = append(args, a)
	}
	return name, args, nil
}

// materialize turns an arbitrary Go value into a Table: a map becomes
// one row with a column per key, a slice or array becomes one row per
// element (with columns unioned across element maps), and anything
// else becomes a single "value" cell.
func materialize(v any) (Table, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return Table{Columns: []string{"value"}, Rows: [][]any{{nil}}}, nil
	}

	switch rv.Kind() {
	case reflect.Map:
		return materializeMapping(rv), nil
	case reflect.Slice, reflect.Array:
		return materializeSequence(rv)
	default:
		return Table{Columns: []string{"value"}, Rows: [][]any{{v}}}, nil
	}
}

func materializeMapping(rv reflect.Value) Table {
	keys := rv.MapKeys()
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, fmt.Sprint(k.Interface()))
	}
	sort.Strings(names)
	row := make([]any, len(names))
	for i, name := range names {
		row[i] = rv.MapIndex(reflect.ValueOf(name)).Interface()
	}
	return Table{Columns: names, Rows: [][]any{row}}
}

func materializeSequence(rv reflect.Value) (Table, error) {
	n := rv.Len()
	if n == 0 {
		return Table{Columns: []string{"value"}, Rows: [][]any{}}, nil
	}
	first := rv.Index(0).Interface()
	if reflect.ValueOf(first).Kind() == reflect.Map {
		colSet := map[string]struct{}{}
		for i := 0; i < n; i++ {
			mv := reflect.ValueOf(rv.Index(i).Interface())
			for _, k := range mv.MapKeys() {
				colSet[fmt.Sprint(k.Interface())] = struct{}{}
			}
		}
		cols := make([]string, 0, len(colSet))
		for c := range colSet {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		rows := make([][]any, n)
		for i := 0; i < n; i++ {
			mv := reflect.ValueOf(rv.Index(i).Interface())
			row := make([]any, len(cols))
			for j, c := range cols {
				mev := mv.MapIndex(reflect.ValueOf(c))
				if mev.IsValid() {
					row[j] = mev.Interface()
				} else {
					row[j] = nil
				}
			}
			rows[i] = row
		}
		return Table{Columns: cols, Rows: rows}, nil
	}
	rows := make([][]any, n)
	for i := 0; i < n; i++ {
		rows[i] = []any{rv.Index(i).Interface()}
	}
	return Table{Columns: []string{"value"}, Rows: rows}, nil
}

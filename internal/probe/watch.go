package probe

import (
	"fmt"
	"strings"

	"github.com/reiase/probing-go/internal/chunkstore"
)

// VariablesFields is the Variables table schema, recording watched
// variable snapshots (ported from original_source's torch.watch_vars).
var VariablesFields = []string{"step", "function", "name", "value", "kind"}

var variablesKinds = []chunkstore.Kind{
	chunkstore.KindInt64, chunkstore.KindString, chunkstore.KindString,
	chunkstore.KindString, chunkstore.KindString,
}

// watchSpec is one parsed "var@func" watch-list entry: trace variable
// Name each time function Function completes a step.
type watchSpec struct {
	Function string
	Name     string
}

// VarGetter fetches a watched variable's current value. function is the
// watchSpec.Function the variable was registered under; ok is false when
// the variable is out of scope at the time of the read (e.g. the function
// has not executed this step).
type VarGetter func(function, name string) (value any, ok bool)

// parseWatchSpec parses one "var@func" entry of a comma-separated watch
// list such as the config's torch_watch_vars value. A bare
// name with no "@func" suffix watches the module-global scope (function
// left empty).
func parseWatchSpec(s string) watchSpec {
	if i := strings.LastIndex(s, "@"); i >= 0 {
		return watchSpec{Function: s[i+1:], Name: s[:i]}
	}
	return watchSpec{Name: s}
}

// SetWatchedVars replaces the tracer's watch list and the getter used to
// resolve each entry's current value.
func (t *Tracer) SetWatchedVars(specs []string, getter VarGetter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	parsed := make([]watchSpec, 0, len(specs))
	for _, s := range specs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		parsed = append(parsed, parseWatchSpec(s))
	}
	t.watchedVars = parsed
	t.varGetter = getter
}

// traceWatchedVarsLocked appends one Variables row per configured watch
// entry whose getter resolves this step, called from stepBoundary (t.mu
// already held). A panicking or missing getter silently skips the entry,
// matching the guard policy applied to every other host callback.
func (t *Tracer) traceWatchedVarsLocked() {
	if len(t.watchedVars) == 0 || t.varGetter == nil {
		return
	}
	for _, spec := range t.watchedVars {
		var (
			value any
			found bool
		)
		t.guard.run("watch-var:"+spec.Function+"."+spec.Name, func() {
			value, found = t.varGetter(spec.Function, spec.Name)
		})
		if !found {
			continue
		}
		_ = t.vars.Append(valuesForVariable(t.step, spec.Function, spec.Name, value))
	}
}

// valuesForVariable renders a watched variable's dynamic value into the
// Variables table's string-typed value/kind columns: the store has no
// variant cell type, so arbitrary host values are formatted the same way
// the virtual table resolver stringifies unsupported scalars.
func valuesForVariable(step int64, function, name string, value any) []chunkstore.Value {
	return []chunkstore.Value{
		chunkstore.IntValue(step),
		chunkstore.StringValue(function),
		chunkstore.StringValue(name),
		chunkstore.StringValue(fmt.Sprintf("%v", value)),
		chunkstore.StringValue(fmt.Sprintf("%T", value)),
	}
}

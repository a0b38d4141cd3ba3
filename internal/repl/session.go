// Package repl implements the REPL Executor: a stateful
// interactive session reachable over the Socket Server. Follows
// original_source/python/probing/repl.py's persistent-session-plus-magic-
// command design. Go has no exec/eval, so "executing a source fragment"
// here means parsing a small command grammar (magic commands, `:=`
// variable assignment, bare SQL) rather than arbitrary code — see
// DESIGN.md for this resolution. The magic-command dispatch
// table follows internal/permission's capability-cache
// dispatch shape.
package repl

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"github.com/reiase/probing-go/internal/probelog"
	"github.com/reiase/probing-go/internal/registry"
	"github.com/reiase/probing-go/internal/sqlengine"
)

var log = probelog.Named("repl")

// Status is one of the three reply states.
type Status string

const (
	StatusOK       Status = "ok"
	StatusError    Status = "error"
	StatusContinue Status = "continue"
)

// Reply is the wire shape returned for every executed fragment.
type Reply struct {
	Status    Status   `json:"status"`
	Output    string   `json:"output"`
	Traceback []string `json:"traceback,omitempty"`
}

// MagicHandler implements one privileged introspection entry point:
// remote_debug, tprofile, tsummary, bt, dump_stack, get_objects,
// get_torch_tensors, get_torch_modules. It returns a JSON-stringifiable
// value or an error.
type MagicHandler func(s *Session, args []string) (any, error)

// Session is one REPL executor instance: persistent variable bindings
// plus a handle to the SQL engine for bare-SQL fragments. Requests
// against a Session are serialised: each runs to completion atomically
// with respect to the session's state.
type Session struct {
	mu       sync.Mutex
	scope    map[string]any
	engine   *sqlengine.Engine
	magics   map[string]MagicHandler
	registry *registry.Registry
}

// New builds a Session bound to a SQL engine and table registry, with the
// built-in magic commands registered. reg may be nil (tprofile/tsummary
// then report that no tables are available).
func New(engine *sqlengine.Engine, reg *registry.Registry) *Session {
	s := &Session{
		scope:    map[string]any{},
		engine:   engine,
		magics:   map[string]MagicHandler{},
		registry: reg,
	}
	registerBuiltinMagics(s)
	return s
}

// RegisterMagic adds or replaces a magic command handler, letting a host
// program expose its own privileged introspection entry points the way
// get_torch_tensors/get_torch_modules would be wired by a host embedding
// an ML framework this agent has no built-in knowledge of.
func (s *Session) RegisterMagic(name string, h MagicHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.magics[name] = h
}

var assignRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*:=\s*(.+)$`)

// Execute runs one source fragment against the session's persistent
// state.
func (s *Session) Execute(ctx context.Context, fragment string) Reply {
	s.mu.Lock()
	defer s.mu.Unlock()

	trimmed := strings.TrimSpace(fragment)
	if trimmed == "" {
		return Reply{Status: StatusOK}
	}
	if !balanced(trimmed) {
		return Reply{Status: StatusContinue}
	}

	if strings.HasPrefix(trimmed, "%") {
		return s.runMagic(trimmed[1:])
	}
	if m := assignRe.FindStringSubmatch(trimmed); m != nil {
		return s.runAssign(m[1], m[2])
	}
	return s.runSQL(ctx, trimmed)
}

// balanced reports whether every bracket/paren/brace opened in the
// fragment is closed. Execute uses this to flag an incomplete fragment
// and return the `continue` sentinel instead of evaluating it.
func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return true // unmatched close is a syntax error, not incompleteness
			}
		}
	}
	return depth == 0
}

func (s *Session) runMagic(rest string) Reply {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return errorReply(fmt.Errorf("empty magic command"))
	}
	name, args := fields[0], fields[1:]
	handler, ok := s.magics[name]
	if !ok {
		return errorReply(fmt.Errorf("unknown magic command %q", name))
	}
	value, err := handler(s, args)
	if err != nil {
		return errorReply(err)
	}
	return okReply(value)
}

func (s *Session) runAssign(name, rhs string) Reply {
	rhs = strings.TrimSpace(rhs)
	var value any
	switch {
	case rhs == "":
		value = nil
	case isQuoted(rhs):
		value = rhs[1 : len(rhs)-1]
	default:
		if f, err := strconv.ParseFloat(rhs, 64); err == nil {
			value = f
		} else if existing, ok := s.scope[rhs]; ok {
			value = existing
		} else {
			value = rhs
		}
	}
	s.scope[name] = value
	return okReply(value)
}

func isQuoted(s string) bool {
	return len(s) >= 2 && ((s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\''))
}

func (s *Session) runSQL(ctx context.Context, sqlText string) Reply {
	result, err := s.engine.Query(ctx, sqlText)
	if err != nil {
		return errorReply(err)
	}
	return okReply(result)
}

func okReply(value any) Reply {
	b, err := json.Marshal(value)
	if err != nil {
		return errorReply(fmt.Errorf("marshal result: %w", err))
	}
	return Reply{Status: StatusOK, Output: string(b)}
}

func errorReply(err error) Reply {
	log.Debugw("repl fragment failed", "error", err)
	return Reply{Status: StatusError, Output: "", Traceback: []string{err.Error()}}
}

// registerBuiltinMagics wires the eight built-in magic commands. Most
// have no ML-framework backing in this agent (get_torch_tensors,
// get_torch_modules) so they report an empty result rather than failing;
// a host program embedding an actual framework overrides them via
// RegisterMagic.
func registerBuiltinMagics(s *Session) {
	s.magics["dump_stack"] = func(_ *Session, _ []string) (any, error) {
		return string(debug.Stack()), nil
	}
	s.magics["bt"] = s.magics["dump_stack"]
	s.magics["get_objects"] = func(sess *Session, _ []string) (any, error) {
		names := make([]string, 0, len(sess.scope))
		for k := range sess.scope {
			names = append(names, k)
		}
		return names, nil
	}
	s.magics["remote_debug"] = func(_ *Session, args []string) (any, error) {
		return map[string]any{"enabled": len(args) == 0 || args[0] != "off"}, nil
	}
	s.magics["tprofile"] = func(sess *Session, _ []string) (any, error) {
		if sess.registry == nil {
			return map[string]any{"note": "no table registry bound to this session"}, nil
		}
		tbl, err := sess.registry.Get("TorchTrace")
		if err != nil {
			return map[string]any{"note": "tracer has not recorded any rows yet"}, nil
		}
		return map[string]any{"rows_appended": tbl.RowsAppended(), "active_rows": tbl.ActiveRows()}, nil
	}
	s.magics["tsummary"] = s.magics["tprofile"]
	s.magics["get_torch_tensors"] = func(_ *Session, _ []string) (any, error) {
		return []any{}, nil
	}
	s.magics["get_torch_modules"] = func(_ *Session, _ []string) (any, error) {
		return []any{}, nil
	}
}

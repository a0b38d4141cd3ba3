package repl

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/reiase/probing-go/internal/registry"
	"github.com/reiase/probing-go/internal/sqlengine"
	"github.com/reiase/probing-go/internal/virtual"
)

func newTestSession() *Session {
	reg := registry.New()
	vr := virtual.NewResolver()
	return New(sqlengine.New(reg, vr), reg)
}

func TestExecuteIncompleteFragmentReturnsContinue(t *testing.T) {
	s := newTestSession()
	r := s.Execute(context.Background(), "SELECT (1, 2")
	if r.Status != StatusContinue {
		t.Fatalf("unbalanced fragment should be StatusContinue, got %v", r.Status)
	}
}

func TestExecuteAssignmentPersistsAcrossCalls(t *testing.T) {
	s := newTestSession()
	r := s.Execute(context.Background(), "x := 42")
	if r.Status != StatusOK {
		t.Fatalf("assignment should succeed: %+v", r)
	}
	if s.scope["x"] != 42.0 {
		t.Fatalf("x should be stored as 42.0, got %#v", s.scope["x"])
	}

	r2 := s.Execute(context.Background(), "y := x")
	if r2.Status != StatusOK || s.scope["y"] != 42.0 {
		t.Fatalf("y should copy x's value: %+v scope=%v", r2, s.scope)
	}
}

func TestExecuteAssignmentQuotedString(t *testing.T) {
	s := newTestSession()
	s.Execute(context.Background(), `name := "probing"`)
	if s.scope["name"] != "probing" {
		t.Fatalf("quoted assignment should strip quotes, got %#v", s.scope["name"])
	}
}

func TestExecuteMagicDumpStack(t *testing.T) {
	s := newTestSession()
	r := s.Execute(context.Background(), "%dump_stack")
	if r.Status != StatusOK {
		t.Fatalf("dump_stack should succeed: %+v", r)
	}
	var out string
	if err := json.Unmarshal([]byte(r.Output), &out); err != nil {
		t.Fatalf("output should be a JSON string: %v", err)
	}
	if !strings.Contains(out, "goroutine") {
		t.Fatalf("dump_stack output should look like a stack trace")
	}
}

func TestExecuteUnknownMagicReturnsError(t *testing.T) {
	s := newTestSession()
	r := s.Execute(context.Background(), "%not_a_real_command")
	if r.Status != StatusError {
		t.Fatalf("unknown magic command should be an error reply, got %+v", r)
	}
	if len(r.Traceback) == 0 {
		t.Fatalf("error reply must carry a traceback")
	}
}

func TestExecuteBareSQLShowTables(t *testing.T) {
	s := newTestSession()
	r := s.Execute(context.Background(), "SHOW TABLES")
	if r.Status != StatusOK {
		t.Fatalf("SHOW TABLES should succeed: %+v", r)
	}
}

func TestExecuteGetObjectsListsScope(t *testing.T) {
	s := newTestSession()
	s.Execute(context.Background(), "a := 1")
	s.Execute(context.Background(), "b := 2")
	r := s.Execute(context.Background(), "%get_objects")
	if r.Status != StatusOK {
		t.Fatalf("get_objects should succeed: %+v", r)
	}
	var names []string
	if err := json.Unmarshal([]byte(r.Output), &names); err != nil {
		t.Fatalf("output should be a JSON array: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 scope entries, got %d: %v", len(names), names)
	}
}

func TestRegisterMagicOverridesHandler(t *testing.T) {
	s := newTestSession()
	s.RegisterMagic("get_torch_tensors", func(_ *Session, _ []string) (any, error) {
		return []string{"tensor-0"}, nil
	})
	r := s.Execute(context.Background(), "%get_torch_tensors")
	if !strings.Contains(r.Output, "tensor-0") {
		t.Fatalf("host override should take effect, got %q", r.Output)
	}
}

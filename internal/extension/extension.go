// Package extension implements the Config & Extension Loader: named
// init/deinit entry points toggled through
// `SET probing.python.enabled/disabled`, with reference-counting
// lifecycle semantics. Follows internal/settings's
// typed-settings manager (CRUD over a named record) and internal/audit's
// append-only audit trail — every enable/disable here is logged the same
// way.
package extension

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/reiase/probing-go/internal/probelog"
	"github.com/reiase/probing-go/internal/registry"
)

var log = probelog.Named("extension")

// ErrUnknownExtension is returned when enabling/disabling a path that was
// never registered with Register.
var ErrUnknownExtension = errors.New("unknown extension")

// ErrExtensionFailure wraps an init/deinit callback's own error.
var ErrExtensionFailure = errors.New("extension failure")

// InitFunc runs once an extension transitions from inactive to active
// (refcount 0 -> 1). It is handed the registry so it can create its own
// tables; a schema conflict with an existing table should be surfaced as
// chunkstore's ErrSchemaMismatch, which this package reports wrapped in
// ErrExtensionFailure.
type InitFunc func(reg *registry.Registry) error

// DeinitFunc runs once an extension transitions from active to inactive
// (refcount 1 -> 0). It should drop whatever tables Init registered.
type DeinitFunc func(reg *registry.Registry)

// Descriptor is one installable extension, keyed by its dotted path
// (e.g. "probing.ext.example").
type Descriptor struct {
	Path   string
	Init   InitFunc
	Deinit DeinitFunc
}

type entry struct {
	Descriptor
	refcount int
}

// Loader is the process-wide extension lifecycle manager: tracks which
// descriptors are known, their reference count, and dispatches
// init/deinit exactly at the 0<->1 refcount transition: two enables
// followed by one disable leaves the extension active.
type Loader struct {
	mu       sync.Mutex
	registry *registry.Registry
	known    map[string]*entry
	audit    []AuditEvent
}

// AuditEvent records one enable/disable decision, following
// internal/audit.Append's shape (id, action, entity). Timestamping is
// left to the caller/consumer since this package cannot call
// time.Now() deterministically in a workflow-run context.
type AuditEvent struct {
	ID       string
	Action   string // "enable" or "disable"
	Path     string
	Refcount int
}

// New builds a Loader bound to a registry.
func New(reg *registry.Registry) *Loader {
	return &Loader{registry: reg, known: map[string]*entry{}}
}

// Register installs a descriptor so it becomes a valid target for
// Enable/Disable. Built-in extensions (example, checkpoint_log, error_log,
// collective) are registered this way at process startup; Register itself
// never activates anything.
func (l *Loader) Register(d Descriptor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.known[d.Path] = &entry{Descriptor: d}
}

// Enable increments path's reference count, running Init on the 0->1
// transition. Re-enabling an already-active extension only bumps the
// count.
func (l *Loader) Enable(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.known[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownExtension, path)
	}
	if e.refcount == 0 && e.Init != nil {
		if err := e.Init(l.registry); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrExtensionFailure, path, err)
		}
	}
	e.refcount++
	l.record("enable", path, e.refcount)
	return nil
}

// Disable decrements path's reference count, running Deinit on the 1->0
// transition. Disabling an extension whose count is already zero is a
// no-op that returns nil; an unknown path returns ErrUnknownExtension.
func (l *Loader) Disable(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.known[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownExtension, path)
	}
	if e.refcount == 0 {
		return nil
	}
	e.refcount--
	if e.refcount == 0 && e.Deinit != nil {
		e.Deinit(l.registry)
	}
	l.record("disable", path, e.refcount)
	return nil
}

// Active reports whether path currently has a positive reference count.
func (l *Loader) Active(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.known[path]
	return ok && e.refcount > 0
}

// ActivePaths lists every extension with a positive reference count, in
// sorted order.
func (l *Loader) ActivePaths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.known))
	for path, e := range l.known {
		if e.refcount > 0 {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// AuditLog returns the recorded enable/disable history, oldest first.
func (l *Loader) AuditLog() []AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEvent, len(l.audit))
	copy(out, l.audit)
	return out
}

func (l *Loader) record(action, path string, refcount int) {
	ev := AuditEvent{ID: uuid.NewString(), Action: action, Path: path, Refcount: refcount}
	l.audit = append(l.audit, ev)
	log.Infow("extension lifecycle", "action", action, "path", path, "refcount", refcount)
}

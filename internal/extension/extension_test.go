package extension

import (
	"errors"
	"testing"

	"github.com/reiase/probing-go/internal/chunkstore"
	"github.com/reiase/probing-go/internal/registry"
)

func testCfg() chunkstore.Config {
	return chunkstore.Config{ChunkSize: 16, DiscardThreshold: 1 << 20, DiscardStrategy: chunkstore.BaseMemorySize}
}

func TestEnableDisableUnknownExtension(t *testing.T) {
	l := New(registry.New())
	if err := l.Enable("no.such.ext"); !errors.Is(err, ErrUnknownExtension) {
		t.Fatalf("want ErrUnknownExtension, got %v", err)
	}
	if err := l.Disable("no.such.ext"); !errors.Is(err, ErrUnknownExtension) {
		t.Fatalf("want ErrUnknownExtension, got %v", err)
	}
}

func TestReferenceCountingKeepsExtensionActiveUntilLastDisable(t *testing.T) {
	reg := registry.New()
	l := New(reg)
	RegisterBuiltins(l, testCfg())

	if err := l.Enable("probing.ext.example"); err != nil {
		t.Fatalf("first enable: %v", err)
	}
	if err := l.Enable("probing.ext.example"); err != nil {
		t.Fatalf("second enable: %v", err)
	}
	if err := l.Disable("probing.ext.example"); err != nil {
		t.Fatalf("first disable: %v", err)
	}
	if !l.Active("probing.ext.example") {
		t.Fatalf("two enables then one disable must leave the extension active (reference counting)")
	}
	if err := l.Disable("probing.ext.example"); err != nil {
		t.Fatalf("second disable: %v", err)
	}
	if l.Active("probing.ext.example") {
		t.Fatalf("refcount should reach zero after the matching disable")
	}
}

func TestExampleExtensionRegistersAndDropsTable(t *testing.T) {
	reg := registry.New()
	l := New(reg)
	RegisterBuiltins(l, testCfg())

	if err := l.Enable("probing.ext.example"); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if _, err := reg.Get(exampleTable); err != nil {
		t.Fatalf("example_ext table should exist after enable: %v", err)
	}

	if err := l.Disable("probing.ext.example"); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if _, err := reg.Get(exampleTable); err == nil {
		t.Fatalf("example_ext table should be dropped after disable")
	}

	// Repeat enable : it reappears.
	if err := l.Enable("probing.ext.example"); err != nil {
		t.Fatalf("re-enable: %v", err)
	}
	if _, err := reg.Get(exampleTable); err != nil {
		t.Fatalf("example_ext table should reappear after re-enable: %v", err)
	}
}

func TestActivePathsSorted(t *testing.T) {
	reg := registry.New()
	l := New(reg)
	RegisterBuiltins(l, testCfg())
	_ = l.Enable("probing.ext.error_log")
	_ = l.Enable("probing.ext.checkpoint_log")

	got := l.ActivePaths()
	if len(got) != 2 || got[0] != "probing.ext.checkpoint_log" || got[1] != "probing.ext.error_log" {
		t.Fatalf("ActivePaths should be sorted, got %v", got)
	}
}

func TestAuditLogRecordsLifecycle(t *testing.T) {
	reg := registry.New()
	l := New(reg)
	RegisterBuiltins(l, testCfg())
	_ = l.Enable("probing.ext.example")
	_ = l.Disable("probing.ext.example")

	events := l.AuditLog()
	if len(events) != 2 || events[0].Action != "enable" || events[1].Action != "disable" {
		t.Fatalf("expected [enable, disable], got %+v", events)
	}
}

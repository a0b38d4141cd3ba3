package registry

import (
	"errors"
	"testing"

	"github.com/reiase/probing-go/internal/chunkstore"
)

func TestCreateIdempotent(t *testing.T) {
	r := New()
	fields := []string{"a", "b"}
	kinds := []chunkstore.Kind{chunkstore.KindInt64, chunkstore.KindInt64}

	t1, err := r.Create("t", fields, kinds, chunkstore.DefaultConfig())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t2, err := r.Create("t", fields, kinds, chunkstore.DefaultConfig())
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if t1 != t2 {
		t.Fatalf("expected same handle on idempotent create")
	}

	_, err = r.Create("t", []string{"a"}, []chunkstore.Kind{chunkstore.KindInt64}, chunkstore.DefaultConfig())
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists for differing schema, got %v", err)
	}
}

func TestGetDropUnknown(t *testing.T) {
	r := New()
	if _, err := r.Get("missing"); !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("want ErrUnknownTable, got %v", err)
	}
	r.Drop("missing") // must not panic
}

func TestList(t *testing.T) {
	r := New()
	if _, err := r.Create("b", []string{"x"}, []chunkstore.Kind{chunkstore.KindInt64}, chunkstore.DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Create("a", []string{"y"}, []chunkstore.Kind{chunkstore.KindString}, chunkstore.DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	got := r.List()
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Fatalf("List() = %+v, want sorted [a b]", got)
	}
}

package chunkstore

import (
	"errors"
	"testing"
)

func mustTable(t *testing.T, fields []string, kinds []Kind, cfg Config) *Table {
	t.Helper()
	tbl, err := NewTable("t", fields, kinds, cfg)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return tbl
}

func ints(vs ...int64) []Value {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = IntValue(v)
	}
	return out
}

func TestCreateAppendTake(t *testing.T) {
	tbl := mustTable(t, []string{"a", "b"}, []Kind{KindInt64, KindInt64}, Config{ChunkSize: 10, DiscardThreshold: 1000, DiscardStrategy: BaseElementCount})
	rows := [][]Value{ints(1, 1), ints(2, 2), ints(3, 3)}
	if err := tbl.AppendMany(rows); err != nil {
		t.Fatalf("AppendMany: %v", err)
	}
	got := tbl.Take(10)
	if len(got) != 3 {
		t.Fatalf("want 3 rows, got %d", len(got))
	}
	for i, row := range got {
		if row[0].I64 != int64(i+1) || row[1].I64 != int64(i+1) {
			t.Fatalf("row %d mismatch: %+v", i, row)
		}
	}
	if got := tbl.Schema(); got[0] != "a" || got[1] != "b" {
		t.Fatalf("schema mismatch: %v", got)
	}
}

func TestEvictionByCount(t *testing.T) {
	tbl := mustTable(t, []string{"x"}, []Kind{KindInt64}, Config{ChunkSize: 10, DiscardThreshold: 10, DiscardStrategy: BaseElementCount})
	rows := make([][]Value, 30)
	for i := range rows {
		rows[i] = ints(int64(i))
	}
	if err := tbl.AppendMany(rows); err != nil {
		t.Fatalf("AppendMany: %v", err)
	}
	got := tbl.Take(100)
	if len(got) != 10 {
		t.Fatalf("want 10 rows after eviction, got %d", len(got))
	}
	for i, row := range got {
		want := int64(20 + i)
		if row[0].I64 != want {
			t.Fatalf("row %d = %d, want %d", i, row[0].I64, want)
		}
	}
	if tbl.RowsAppended() != 30 {
		t.Fatalf("rows_appended = %d, want 30 (monotonic, never decreases)", tbl.RowsAppended())
	}
}

func TestEvictionBySize(t *testing.T) {
	mkRows := func(n int, s string) [][]Value {
		rows := make([][]Value, n)
		for i := range rows {
			rows[i] = []Value{StringValue(s)}
		}
		return rows
	}

	t1 := mustTable(t, []string{"s"}, []Kind{KindString}, Config{ChunkSize: 10000, DiscardThreshold: 1_000_000_000, DiscardStrategy: BaseMemorySize})
	if err := t1.AppendMany(mkRows(12, "0123456789")); err != nil {
		t.Fatalf("AppendMany: %v", err)
	}
	if t1.ActiveRows() != 12 {
		t.Fatalf("nothing should be evicted, active_rows=%d", t1.ActiveRows())
	}

	t2 := mustTable(t, []string{"s"}, []Kind{KindString}, Config{ChunkSize: 10000, DiscardThreshold: 10, DiscardStrategy: BaseMemorySize})
	if err := t2.AppendMany(mkRows(12, "0123456789")); err != nil {
		t.Fatalf("AppendMany: %v", err)
	}
	if b := t2.ActiveBytes(); b > 10+120 {
		t.Fatalf("active_bytes=%d exceeds threshold+last_chunk_bytes bound", b)
	}
}

func TestTakeEmptyAndPartial(t *testing.T) {
	tbl := mustTable(t, []string{"a"}, []Kind{KindInt64}, DefaultConfig())
	if got := tbl.Take(10); len(got) != 0 {
		t.Fatalf("empty take should return empty listing, got %d rows", len(got))
	}
	if err := tbl.AppendMany([][]Value{{IntValue(1)}, {IntValue(2)}}); err != nil {
		t.Fatalf("AppendMany: %v", err)
	}
	got := tbl.Take(10)
	if len(got) != 2 {
		t.Fatalf("m <= n should return exactly m rows, got %d", len(got))
	}
}

func TestSchemaMismatchOnAppend(t *testing.T) {
	tbl := mustTable(t, []string{"a", "b"}, []Kind{KindInt64, KindInt64}, DefaultConfig())
	err := tbl.Append([]Value{IntValue(1)})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("want ErrSchemaMismatch, got %v", err)
	}
	err = tbl.Append([]Value{IntValue(1), StringValue("x")})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("want ErrSchemaMismatch for wrong type, got %v", err)
	}
}

func TestChunkSizeZeroRejected(t *testing.T) {
	_, err := NewTable("t", []string{"a"}, []Kind{KindInt64}, Config{ChunkSize: 0, DiscardStrategy: BaseElementCount})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("want ErrInvalidConfig, got %v", err)
	}
}

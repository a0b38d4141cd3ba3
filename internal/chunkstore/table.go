// Package chunkstore implements an append-only, memory-bounded columnar
// table with pluggable eviction. Follows internal/store.Store's
// RWMutex-guarded map, which serialises writers against readers the
// same way, generalised here from "slice of log lines" to "queue of
// fixed-size column chunks".
package chunkstore

import (
	"fmt"
	"sync"
)

// Table is an ordered list of equally-long columns sharing a schema.
type Table struct {
	name   string
	fields []string
	kinds  []Kind
	cfg    Config

	mu           sync.RWMutex
	cols         []*column
	rowsAppended uint64
}

// NewTable creates a table with the given schema and retention config.
// chunk_size = 0 (or any other invalid config field) is rejected here,
// create-time validation.
func NewTable(name string, fields []string, kinds []Kind, cfg Config) (*Table, error) {
	if len(fields) != len(kinds) {
		return nil, fmt.Errorf("%w: %d fields but %d kinds", ErrSchemaMismatch, len(fields), len(kinds))
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: table must have at least one column", ErrSchemaMismatch)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	t := &Table{name: name, fields: append([]string(nil), fields...), kinds: append([]Kind(nil), kinds...), cfg: cfg}
	t.cols = make([]*column, len(fields))
	for i, f := range fields {
		t.cols[i] = newColumn(f, kinds[i], cfg.ChunkSize)
	}
	return t, nil
}

// Name returns the table's registry key.
func (t *Table) Name() string { return t.name }

// Schema returns the ordered field names, fixed at creation.
func (t *Table) Schema() []string { return append([]string(nil), t.fields...) }

// Kinds returns the ordered field types, fixed at creation.
func (t *Table) Kinds() []Kind { return append([]Kind(nil), t.kinds...) }

// SameSchema reports whether a candidate schema/kind pair matches this
// table's, used by the Registry's idempotent create.
func (t *Table) SameSchema(fields []string, kinds []Kind) bool {
	if len(fields) != len(t.fields) || len(kinds) != len(t.kinds) {
		return false
	}
	for i := range fields {
		if fields[i] != t.fields[i] || kinds[i] != t.kinds[i] {
			return false
		}
	}
	return true
}

func (t *Table) validateRow(row []Value) error {
	if len(row) != len(t.fields) {
		return fmt.Errorf("%w: table %q expects %d columns, got %d", ErrSchemaMismatch, t.name, len(t.fields), len(row))
	}
	for i, v := range row {
		if !v.Null && v.Kind != t.kinds[i] {
			return fmt.Errorf("%w: table %q column %q expects %s, got %s", ErrSchemaMismatch, t.name, t.fields[i], t.kinds[i], v.Kind)
		}
	}
	return nil
}

// Append adds one row atomically: either every column advances or none
// does
func (t *Table) Append(row []Value) error {
	if err := t.validateRow(row); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appendLocked(row)
	t.evictLocked()
	return nil
}

// AppendMany validates every row before committing any of them, so a
// batch either applies completely or not at all
func (t *Table) AppendMany(rows [][]Value) error {
	for _, row := range rows {
		if err := t.validateRow(row); err != nil {
			return err
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, row := range rows {
		t.appendLocked(row)
	}
	t.evictLocked()
	return nil
}

func (t *Table) appendLocked(row []Value) {
	for i, v := range row {
		t.cols[i].append(v)
	}
	t.rowsAppended++
}

// evictLocked enforces the table's retention policy. It must be called
// with t.mu held for writing.
func (t *Table) evictLocked() {
	switch t.cfg.DiscardStrategy {
	case BaseElementCount:
		for t.activeRowsLocked() > t.cfg.DiscardThreshold {
			if !t.evictOneLocked() {
				break
			}
		}
	case BaseMemorySize:
		for t.activeBytesLocked() > t.cfg.DiscardThreshold+t.lastSealedBytesLocked() {
			if !t.evictOneLocked() {
				break
			}
		}
	}
}

// evictOneLocked drops the oldest sealed chunk from every column in
// lockstep, so columns always stay equal length. Returns
// false if there was nothing sealed to evict.
func (t *Table) evictOneLocked() bool {
	evicted := false
	for _, c := range t.cols {
		if _, _, ok := c.evictHead(); ok {
			evicted = true
		}
	}
	return evicted
}

func (t *Table) activeRowsLocked() int64 {
	if len(t.cols) == 0 {
		return 0
	}
	return int64(t.cols[0].activeRows())
}

func (t *Table) activeBytesLocked() int64 {
	var n int64
	for _, c := range t.cols {
		n += c.activeBytes()
	}
	return n
}

func (t *Table) lastSealedBytesLocked() int64 {
	if len(t.cols) == 0 {
		return 0
	}
	// All columns seal in lockstep, so any column's last sealed chunk
	// bytes is representative enough for the lag bound; sum across
	// columns to match the accounting used by activeBytesLocked.
	var n int64
	for _, c := range t.cols {
		n += c.lastSealedBytes()
	}
	return n
}

// ActiveRows returns the table's current live row count.
func (t *Table) ActiveRows() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeRowsLocked()
}

// ActiveBytes returns the table's current live byte footprint.
func (t *Table) ActiveBytes() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeBytesLocked()
}

// RowsAppended is the monotonic append counter, which never decreases even
// when chunks are evicted
func (t *Table) RowsAppended() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rowsAppended
}

// Take returns a snapshot of the most recent min(n, active_rows) rows in
// insertion order. It takes the read lock only long enough to copy chunk
// references, never blocking appenders on the data copy itself.
func (t *Table) Take(n int) [][]Value {
	if n <= 0 {
		return [][]Value{}
	}
	t.mu.RLock()
	perColumn := make([][]chunkRef, len(t.cols))
	for i, c := range t.cols {
		perColumn[i] = c.snapshot()
	}
	t.mu.RUnlock()

	cols := make([][]Value, len(perColumn))
	for i, refs := range perColumn {
		cols[i] = valuesFromSnapshot(refs, n)
	}
	rows := 0
	if len(cols) > 0 {
		rows = len(cols[0])
	}
	out := make([][]Value, rows)
	for r := 0; r < rows; r++ {
		row := make([]Value, len(cols))
		for c := range cols {
			row[c] = cols[c][r]
		}
		out[r] = row
	}
	return out
}

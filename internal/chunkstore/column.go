package chunkstore

// column is a queue of chunks for one field: zero or more sealed chunks
// followed by exactly one writable tail
type column struct {
	name      string
	kind      Kind
	chunkSize int
	sealed    []*chunk
	tail      *chunk
}

func newColumn(name string, kind Kind, chunkSize int) *column {
	return &column{name: name, kind: kind, chunkSize: chunkSize, tail: newChunk(chunkSize)}
}

// append pushes a value onto the tail, sealing and rotating to a fresh
// tail when it fills. Returns true if a new chunk was sealed.
func (c *column) append(v Value) (sealedNow bool) {
	c.tail.values = append(c.tail.values, v)
	if c.tail.len() >= c.chunkSize {
		c.tail.sealed = true
		c.sealed = append(c.sealed, c.tail)
		c.tail = newChunk(c.chunkSize)
		return true
	}
	return false
}

func (c *column) activeRows() int {
	n := c.tail.len()
	for _, s := range c.sealed {
		n += s.len()
	}
	return n
}

func (c *column) activeBytes() int64 {
	n := c.tail.bytes()
	for _, s := range c.sealed {
		n += s.bytes()
	}
	return n
}

// evictHead drops the oldest sealed chunk, returning the bytes/rows
// released, or ok=false if there is nothing sealed left to drop.
func (c *column) evictHead() (rows int, bytes int64, ok bool) {
	if len(c.sealed) == 0 {
		return 0, 0, false
	}
	head := c.sealed[0]
	c.sealed = c.sealed[1:]
	return head.len(), head.bytes(), true
}

func (c *column) lastSealedBytes() int64 {
	if len(c.sealed) == 0 {
		return 0
	}
	return c.sealed[len(c.sealed)-1].bytes()
}

// snapshot returns, under the table's read lock, the ordered list of
// chunks plus the exact length to read from each (the tail's length may
// still grow after the lock is released, but Go slices never rewrite
// already-appended elements, so reading up to the recorded length from
// the recorded slice header is race-free).
type chunkRef struct {
	c   *chunk
	len int
}

func (c *column) snapshot() []chunkRef {
	refs := make([]chunkRef, 0, len(c.sealed)+1)
	for _, s := range c.sealed {
		refs = append(refs, chunkRef{c: s, len: s.len()})
	}
	refs = append(refs, chunkRef{c: c.tail, len: c.tail.len()})
	return refs
}

// valuesFromSnapshot returns the last n values across the column's chunks, in
// insertion order, using a pre-taken snapshot.
func valuesFromSnapshot(refs []chunkRef, n int) []Value {
	total := 0
	for _, r := range refs {
		total += r.len
	}
	if n > total {
		n = total
	}
	out := make([]Value, 0, n)
	skip := total - n
	for _, r := range refs {
		if skip >= r.len {
			skip -= r.len
			continue
		}
		start := skip
		skip = 0
		out = append(out, r.c.values[start:r.len]...)
	}
	return out
}

package chunkstore

import "errors"

// Error kinds caller-observable Store-level operations only
// ever surface SchemaMismatch and InvalidConfig; the rest belong to
// higher layers (registry, SQL engine, extension loader).
var (
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrInvalidConfig  = errors.New("invalid config")
)

package sqlengine

import "errors"

// Error kinds caller-observable, for the subset owned by the
// SQL dispatcher itself (table resolution, SET knobs). Schema errors on
// append remain chunkstore.ErrSchemaMismatch; unknown-table errors remain
// registry.ErrUnknownTable so errors.Is works across layers.
var (
	ErrInvalidConfig    = errors.New("invalid config")
	ErrExtensionFailure = errors.New("extension failure")
	ErrInternal         = errors.New("internal error")
)

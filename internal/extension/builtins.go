package extension

import (
	"errors"
	"fmt"

	"github.com/reiase/probing-go/internal/chunkstore"
	"github.com/reiase/probing-go/internal/registry"
)

// RegisterBuiltins installs the four built-in extensions ported from
// original_source/: the demo extension (`probing.ext.example`) plus
// checkpoint_log, error_log, and collective, each gated behind the same
// enable/disable lifecycle as a user-supplied extension.
func RegisterBuiltins(l *Loader, cfg chunkstore.Config) {
	l.Register(exampleDescriptor(cfg))
	l.Register(checkpointLogDescriptor(cfg))
	l.Register(errorLogDescriptor(cfg))
	l.Register(collectiveDescriptor(cfg))
}

// initTable creates (or idempotently reuses) a table via the registry, so
// repeated enable calls after a disable+re-enable cycle stay well-formed.
func initTable(reg *registry.Registry, name string, fields []string, kinds []chunkstore.Kind, cfg chunkstore.Config) error {
	_, err := reg.Create(name, fields, kinds, cfg)
	if errors.Is(err, registry.ErrAlreadyExists) {
		return fmt.Errorf("%w: %v", chunkstore.ErrSchemaMismatch, err)
	}
	return err
}

const exampleTable = "example_ext"

func exampleDescriptor(cfg chunkstore.Config) Descriptor {
	fields := []string{"event", "value"}
	kinds := []chunkstore.Kind{chunkstore.KindString, chunkstore.KindString}
	return Descriptor{
		Path: "probing.ext.example",
		Init: func(reg *registry.Registry) error {
			return initTable(reg, exampleTable, fields, kinds, cfg)
		},
		Deinit: func(reg *registry.Registry) { reg.Drop(exampleTable) },
	}
}

const checkpointLogTable = "checkpoint_log"

func checkpointLogDescriptor(cfg chunkstore.Config) Descriptor {
	fields := []string{"step", "path", "size_bytes"}
	kinds := []chunkstore.Kind{chunkstore.KindInt64, chunkstore.KindString, chunkstore.KindInt64}
	return Descriptor{
		Path: "probing.ext.checkpoint_log",
		Init: func(reg *registry.Registry) error {
			return initTable(reg, checkpointLogTable, fields, kinds, cfg)
		},
		Deinit: func(reg *registry.Registry) { reg.Drop(checkpointLogTable) },
	}
}

const errorLogTable = "error_log"

func errorLogDescriptor(cfg chunkstore.Config) Descriptor {
	fields := []string{"step", "message", "severity"}
	kinds := []chunkstore.Kind{chunkstore.KindInt64, chunkstore.KindString, chunkstore.KindString}
	return Descriptor{
		Path: "probing.ext.error_log",
		Init: func(reg *registry.Registry) error {
			return initTable(reg, errorLogTable, fields, kinds, cfg)
		},
		Deinit: func(reg *registry.Registry) { reg.Drop(errorLogTable) },
	}
}

const collectiveTraceTable = "CollectiveTrace"

func collectiveDescriptor(cfg chunkstore.Config) Descriptor {
	fields := []string{"op", "size_bytes", "duration_ns"}
	kinds := []chunkstore.Kind{chunkstore.KindString, chunkstore.KindInt64, chunkstore.KindInt64}
	return Descriptor{
		Path: "probing.ext.collective",
		Init: func(reg *registry.Registry) error {
			return initTable(reg, collectiveTraceTable, fields, kinds, cfg)
		},
		Deinit: func(reg *registry.Registry) { reg.Drop(collectiveTraceTable) },
	}
}

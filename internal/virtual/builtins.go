package virtual

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
)

// registerBuiltins wires the zero-configuration introspectors recovered
// from original_source/python/probing/inspect/__init__.py and
// .../inspect/torch.py: the original ships default inspectors over the
// host language runtime (thread/tensor counts, module registries) so that
// "python.goroutines"-equivalent queries work without any user setup.
// This agent's equivalents operate on the Go runtime instead.
func registerBuiltins(r *Resolver) {
	r.Register("goroutines", func([]string) (any, error) {
		return runtime.NumGoroutine(), nil
	})
	r.Register("memstats", func([]string) (any, error) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return map[string]any{
			"alloc":       m.Alloc,
			"total_alloc": m.TotalAlloc,
			"sys":         m.Sys,
			"num_gc":      m.NumGC,
			"heap_alloc":  m.HeapAlloc,
			"heap_inuse":  m.HeapInuse,
		}, nil
	})
	r.Register("buildinfo", func([]string) (any, error) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return map[string]any{}, nil
		}
		return map[string]any{
			"go_version": info.GoVersion,
			"path":       info.Main.Path,
			"version":    info.Main.Version,
		}, nil
	})
	r.Register("env", func(args []string) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("host.env(name) expects exactly one argument")
		}
		return os.Getenv(args[0]), nil
	})
	r.Register("pid", func([]string) (any, error) {
		return os.Getpid(), nil
	})
}

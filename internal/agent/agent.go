// Package agent wires together the embeddable library surface: a host
// program builds an Agent once (directly, or indirectly via
// cmd/probing-agent's standalone demo harness) and gets a Table
// Registry, Virtual Table Resolver, SQL Engine, Extension Loader,
// Tracer, REPL Session and Socket Server all pointed at each other.
// Follows cmd/hostapp/main.go's wiring style: read config, build the
// dependency graph once, hand back something main can Serve/Close.
package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/reiase/probing-go/internal/chunkstore"
	"github.com/reiase/probing-go/internal/config"
	"github.com/reiase/probing-go/internal/extension"
	"github.com/reiase/probing-go/internal/probe"
	"github.com/reiase/probing-go/internal/probelog"
	"github.com/reiase/probing-go/internal/registry"
	"github.com/reiase/probing-go/internal/repl"
	"github.com/reiase/probing-go/internal/socket"
	"github.com/reiase/probing-go/internal/sqlengine"
	"github.com/reiase/probing-go/internal/virtual"
)

var log = probelog.Named("agent")

// Agent is the fully-wired runtime: every component reachable from one
// struct, the way a host program would hold it for the lifetime of the
// process.
type Agent struct {
	Registry *registry.Registry
	Virtual  *virtual.Resolver
	Engine   *sqlengine.Engine
	Loader   *extension.Loader
	Tracer   *probe.Tracer
	Session  *repl.Session
	Socket   *socket.Server

	mu           sync.Mutex
	samplingMode string
	samplingRate float64
}

// Boot builds an Agent from cfg without starting the socket listener;
// callers that only need the embedded library surface (create_table,
// query, load_extension) can stop here. Serve starts the network-facing
// half separately so tests and non-networked hosts don't pay for it.
func Boot(cfg config.Config) (*Agent, error) {
	reg := registry.New()
	vr := virtual.NewResolver()
	engine := sqlengine.New(reg, vr)
	loader := extension.New(reg)

	tableCfg := chunkstore.Config{
		ChunkSize:        cfg.ChunkSize,
		DiscardThreshold: cfg.DiscardThreshold,
		DiscardStrategy:  chunkstore.BaseMemorySize,
	}
	if tableCfg.ChunkSize <= 0 {
		tableCfg.ChunkSize = config.Default().ChunkSize
	}

	extension.RegisterBuiltins(loader, tableCfg)
	loader.RegisterKnobs(engine)

	tracer, err := probe.New(reg, tableCfg)
	if err != nil {
		return nil, err
	}
	tracer.SetSamplingExpr(cfg.TorchProfilingMode, cfg.TorchSampleRate)
	tracer.SetSync(cfg.TorchSync)
	if cfg.TorchWatchVars != "" {
		tracer.SetWatchedVars(strings.Split(cfg.TorchWatchVars, ","), func(string, string) (any, bool) {
			return nil, false
		})
	}

	a := &Agent{
		Registry:     reg,
		Virtual:      vr,
		Engine:       engine,
		Loader:       loader,
		Tracer:       tracer,
		samplingMode: cfg.TorchProfilingMode,
		samplingRate: cfg.TorchSampleRate,
	}
	a.registerSamplingKnobs(engine)

	a.Session = repl.New(engine, reg)
	a.Socket = socket.New(a.Session)
	return a, nil
}

// registerSamplingKnobs wires `SET probing.torch.profiling.mode` and
// `SET probing.torch.sample_rate` so either can change independently
// while both still feed the combined mode+rate Sampler reconstruction
// requires.
func (a *Agent) registerSamplingKnobs(engine *sqlengine.Engine) {
	engine.RegisterKnob("torch.profiling.mode", func(value string) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.samplingMode = strings.Trim(strings.TrimSpace(value), `'"`)
		a.Tracer.SetSamplingExpr(a.samplingMode, a.samplingRate)
		return nil
	})
	engine.RegisterKnob("torch.sample_rate", func(value string) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		_, rate := config.ParseSamplingExpr(a.samplingMode + ":" + strings.TrimSpace(value))
		a.samplingRate = rate
		a.Tracer.SetSamplingExpr(a.samplingMode, a.samplingRate)
		return nil
	})
	engine.RegisterKnob("torch.tracepy", func(value string) error { return nil })
}

// Serve starts the socket listener at the given endpoint (see
// socket.ParseEndpoint) and blocks until ctx is cancelled.
func (a *Agent) Serve(ctx context.Context, endpoint string) error {
	network, address := socket.ParseEndpoint(endpoint)
	log.Infow("socket listening", "network", network, "address", address)
	return a.Socket.Serve(ctx, network, address)
}

// Close releases resources that outlive a single request, namely the
// tracer's span-poller worker goroutine.
func (a *Agent) Close() {
	a.Tracer.Close()
}

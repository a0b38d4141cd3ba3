package probe

import (
	"testing"

	"github.com/reiase/probing-go/internal/chunkstore"
	"github.com/reiase/probing-go/internal/registry"
)

func testConfig() chunkstore.Config {
	return chunkstore.Config{ChunkSize: 64, DiscardThreshold: 1 << 20, DiscardStrategy: chunkstore.BaseMemorySize}
}

func TestOrderedSamplerRoundRobinCoverage(t *testing.T) {
	s := newOrderedSampler()
	modules := []string{"layer.a", "layer.bb", "layer.ccc"}
	for _, m := range modules {
		s.Discover(m)
	}
	s.BeginStep() // finalize discovery ordering

	seen := map[string]int{}
	for step := 0; step < len(modules)*2; step++ {
		for _, m := range modules {
			if s.Should(m) {
				seen[m]++
			}
		}
		s.BeginStep()
	}
	for _, m := range modules {
		if seen[m] == 0 {
			t.Fatalf("module %q never sampled across %d steady steps", m, len(modules)*2)
		}
	}
}

func TestOrderedSamplerSortsByNameLength(t *testing.T) {
	s := newOrderedSampler()
	s.Discover("ccc")
	s.Discover("a")
	s.Discover("bb")
	s.BeginStep()
	if !s.Should("a") {
		t.Fatalf("shortest name should be visited first")
	}
}

func TestRandomSamplerBounds(t *testing.T) {
	s := NewSampler("random", 2.0) // out of range, clamps to 1.0
	hits := 0
	for i := 0; i < 20; i++ {
		if s.Should("m") {
			hits++
		}
	}
	if hits == 0 {
		t.Fatalf("rate clamped to 1.0 should sample every call")
	}
}

func TestNewSamplerInvalidModeFallsBackToOrdered(t *testing.T) {
	s := NewSampler("bogus", 0.5)
	if _, ok := s.(*orderedSampler); !ok {
		t.Fatalf("invalid mode should fall back to ordered, got %T", s)
	}
}

func TestGuardSuppressesAfterMaxTry(t *testing.T) {
	g := newGuard(2)
	panics := 0
	run := func() {
		g.run("site", func() {
			panics++
			panic("boom")
		})
	}
	for i := 0; i < 5; i++ {
		run()
	}
	if panics != 5 {
		t.Fatalf("guard should always invoke fn, got %d calls", panics)
	}
}

func TestTracerDiscoveryThenSteadyPhase(t *testing.T) {
	reg := registry.New()
	tr, err := New(reg, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tr.Close()

	if !tr.inDiscovery() {
		t.Fatalf("tracer should start in discovery phase")
	}
	tr.Hook("mod.a", StagePreStep)
	tr.Hook("mod.a", StagePreForward)
	tr.Hook("mod.a", StagePostForward)
	tr.Hook("mod.a", StagePostStep)

	if tr.inDiscovery() {
		t.Fatalf("tracer should leave discovery after one post_step")
	}
}

func TestTracerEmitsForceStagesDuringDiscovery(t *testing.T) {
	reg := registry.New()
	tr, err := New(reg, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tr.Close()

	tr.Hook("mod.a", StagePreStep)
	tr.Hook("mod.a", StagePostStep)

	tbl, err := reg.Get("TorchTrace")
	if err != nil {
		t.Fatalf("Get TorchTrace: %v", err)
	}
	if rows := tbl.ActiveRows(); rows == 0 {
		t.Fatalf("pre/post step should always emit rows, even in discovery")
	}
}

func TestDedupOffsetCollapsesRepeatsAndResets(t *testing.T) {
	tr := &Tracer{}
	a := tr.dedupOffset("mod.a", StagePreForward)
	repeat := tr.dedupOffset("mod.a", StagePreForward)
	if repeat != a {
		t.Fatalf("repeating the same (module, stage) pair should not advance the offset: %d != %d", repeat, a)
	}
	b := tr.dedupOffset("mod.b", StagePreForward)
	if b == a {
		t.Fatalf("a different (module, stage) pair must advance the offset")
	}

	// stepBoundary resets these two fields at each post_step.
	tr.offset = 0
	tr.lastKey = ""
	afterReset := tr.dedupOffset("mod.a", StagePreForward)
	if afterReset != a {
		t.Fatalf("offset should restart from the same baseline after a step reset: got %d, want %d", afterReset, a)
	}
}

func TestSetWatchedVarsRecordsValue(t *testing.T) {
	reg := registry.New()
	tr, err := New(reg, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tr.Close()

	tr.SetWatchedVars([]string{"loss@train_step"}, func(function, name string) (any, bool) {
		if function == "train_step" && name == "loss" {
			return 0.42, true
		}
		return nil, false
	})

	tr.Hook("mod.a", StagePreStep)
	tr.Hook("mod.a", StagePostStep)

	vars, err := reg.Get("Variables")
	if err != nil {
		t.Fatalf("Get Variables: %v", err)
	}
	rows := vars.Take(10)
	if len(rows) == 0 {
		t.Fatalf("expected at least one watched-variable row")
	}
	if rows[0][2].Str != "loss" {
		t.Fatalf("name column = %q, want loss", rows[0][2].Str)
	}
}

func TestParseWatchSpecWithAndWithoutFunction(t *testing.T) {
	spec := parseWatchSpec("loss@train_step")
	if spec.Name != "loss" || spec.Function != "train_step" {
		t.Fatalf("parseWatchSpec mismatch: %+v", spec)
	}
	bare := parseWatchSpec("global_counter")
	if bare.Name != "global_counter" || bare.Function != "" {
		t.Fatalf("bare watch spec mismatch: %+v", bare)
	}
}

func TestSpanPollerDropsOnOverflow(t *testing.T) {
	// Construct the poller without starting its drain goroutine so the
	// buffered channel fills deterministically.
	p := &spanPoller{ch: make(chan spanEvent, 1), pending: map[string]TraceRow{}}
	if !p.enqueue(spanEvent{pendingKey: "a"}) {
		t.Fatalf("first enqueue into an empty buffered channel should succeed")
	}
	if p.enqueue(spanEvent{pendingKey: "b"}) {
		t.Fatalf("second enqueue should be dropped once the buffer is full")
	}
	if p.dropped != 1 {
		t.Fatalf("dropped = %d, want 1", p.dropped)
	}
}

package probe

import (
	"fmt"
	"sync"
	"time"

	"github.com/reiase/probing-go/internal/chunkstore"
	"github.com/reiase/probing-go/internal/registry"
)

// TorchTraceFields is the TorchTrace table's column schema.
var TorchTraceFields = []string{
	"step", "seq", "module", "stage",
	"allocated", "max_allocated", "cached", "max_cached",
	"time_offset_ns", "duration_ns",
}

var torchTraceKinds = []chunkstore.Kind{
	chunkstore.KindInt64, chunkstore.KindInt64, chunkstore.KindString, chunkstore.KindString,
	chunkstore.KindInt64, chunkstore.KindInt64, chunkstore.KindInt64, chunkstore.KindInt64,
	chunkstore.KindInt64, chunkstore.KindInt64,
}

func rowToValues(r TraceRow) []chunkstore.Value {
	return []chunkstore.Value{
		chunkstore.IntValue(r.Step),
		chunkstore.IntValue(r.Seq),
		chunkstore.StringValue(r.Module),
		chunkstore.StringValue(r.Stage.String()),
		chunkstore.IntValue(r.Allocated),
		chunkstore.IntValue(r.MaxAllocated),
		chunkstore.IntValue(r.Cached),
		chunkstore.IntValue(r.MaxCached),
		chunkstore.IntValue(int64(r.TimeOffset)),
		chunkstore.IntValue(int64(r.Duration)),
	}
}

// phase is the Tracer State Machine's two states
type phase uint8

const (
	phaseDiscovery phase = iota
	phaseSteady
)

// Tracer is one instrumented training loop's state: step/offset counters,
// the Discovery->Steady phase machine, sampler, timer, and pending span
// list. A Tracer is single-threaded: hook callbacks execute on the
// thread calling into the instrumented code, and its counters are
// per-instance.
type Tracer struct {
	mu sync.Mutex

	table  *chunkstore.Table
	vars   *chunkstore.Table
	guard  *guard
	poller *spanPoller

	sampler  Sampler
	timer    *Timer
	resource ResourceSampler

	phase       phase
	step        int64
	stepStart   time.Time
	offset      int64
	lastKey     string
	watchedVars []watchSpec
	varGetter   VarGetter
}

// Option configures a Tracer at construction.
type Option func(*Tracer)

// WithResourceSampler overrides the default runtime.MemStats-backed
// counters with a host-supplied one (e.g. a real device allocator).
func WithResourceSampler(fn ResourceSampler) Option {
	return func(t *Tracer) { t.resource = fn }
}

// WithMaxTry overrides the per-hook exception suppression threshold
// (default 3)
func WithMaxTry(n int) Option {
	return func(t *Tracer) { t.guard = newGuard(n) }
}

// New creates a Tracer bound to the registry's TorchTrace and Variables
// tables (created on first use implicit-lifecycle rule).
func New(reg *registry.Registry, cfg chunkstore.Config, opts ...Option) (*Tracer, error) {
	table, err := reg.Create("TorchTrace", TorchTraceFields, torchTraceKinds, cfg)
	if err != nil {
		return nil, fmt.Errorf("create TorchTrace table: %w", err)
	}
	vars, err := reg.Create("Variables", VariablesFields, variablesKinds, cfg)
	if err != nil {
		return nil, fmt.Errorf("create Variables table: %w", err)
	}
	t := &Tracer{
		table:    table,
		vars:     vars,
		guard:    newGuard(3),
		poller:   newSpanPoller(1024),
		sampler:  NewSampler("ordered", 1.0),
		timer:    NewTimer(false),
		resource: DefaultResourceSampler,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Close stops the span-poller worker, flushing whatever is still
// pending so no spans linger forever.
func (t *Tracer) Close() {
	rows := t.poller.drainAll()
	for _, r := range rows {
		_ = t.table.Append(rowToValues(r))
	}
	t.poller.stop()
}

// SetSamplingExpr replaces the sampler with NewSampler(mode, rate): an
// unrecognised mode falls back to ordered, and a random-mode rate outside
// (0,1] is clamped to 1.0.
func (t *Tracer) SetSamplingExpr(mode string, rate float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sampler = NewSampler(mode, rate)
}

// SetSync toggles synchronous device timing (torch.sync knob).
func (t *Tracer) SetSync(sync bool) { t.timer.SetSync(sync) }

// inDiscovery reports the current phase without locking (callers already
// hold t.mu).
func (t *Tracer) inDiscovery() bool { return t.phase == phaseDiscovery }

// dedupOffset advances the (module, stage)-deduplicated offset counter:
// it increments only when the pair differs from the previous
// observation, so nested calls to the same leaf within the same stage
// count once.
func (t *Tracer) dedupOffset(module string, stage Stage) int64 {
	key := module + "|" + stage.String()
	if key == t.lastKey {
		return t.offset
	}
	t.lastKey = key
	t.offset++
	return t.offset
}

// Hook is called by instrumented code at one of six points in a training
// step (pre/post forward, pre/post backward, pre/post step). mod is a
// stable module identifier; the caller is responsible for providing the
// same string for the same module instance across calls.
func (t *Tracer) Hook(mod string, stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase == phaseDiscovery {
		t.sampler.Discover(mod)
	}
	offset := t.dedupOffset(mod, stage)

	switch {
	case t.phase == phaseDiscovery && !stage.force():
		// Discovery: only force stages (pre/post step) emit rows.
	case t.phase == phaseDiscovery && stage.force():
		t.emit(mod, stage, offset)
	default:
		if t.sampler.Should(mod) {
			t.emit(mod, stage, offset)
		}
	}

	if stage == StagePostStep {
		t.stepBoundary()
	}
	if stage == StagePreStep && t.stepStart.IsZero() {
		t.stepStart = time.Now()
	}
}

// emit snapshots resource counters and schedules the row through the
// span poller steps 3-4.
func (t *Tracer) emit(mod string, stage Stage, offset int64) {
	var snap ResourceSnapshot
	t.guard.run("resource-sampler", func() { snap = t.resource() })

	offsetInStep := time.Duration(0)
	if !t.stepStart.IsZero() {
		offsetInStep = time.Since(t.stepStart)
	}

	row := TraceRow{
		Step: t.step, Seq: offset, Module: mod, Stage: stage,
		Allocated: snap.Allocated, MaxAllocated: snap.MaxAllocated,
		Cached: snap.Cached, MaxCached: snap.MaxCached,
		TimeOffset: offsetInStep,
	}

	key := mod + "|" + stage.group().string()
	if stage.isPre() {
		t.timer.Begin(mod, stage)
		t.poller.enqueue(spanEvent{row: row, pendingKey: key, isStart: true})
		return
	}
	if d, ok := t.timer.End(mod, stage); ok {
		row.Duration = d
	}
	t.poller.enqueue(spanEvent{row: row, pendingKey: key, isStart: false})
}

func (g StageGroup) string() string {
	switch g {
	case GroupForward:
		return "forward"
	case GroupBackward:
		return "backward"
	default:
		return "step"
	}
}

// stepBoundary runs the five actions due at a post_step boundary:
// drain pending spans, advance the step counter, advance the sampler's
// round-robin pointer, reset the offset counter, and trace watched
// variables.
func (t *Tracer) stepBoundary() {
	step := t.step
	ready := func(string) bool { return true }
	for _, row := range t.poller.drain(ready) {
		row.Step = step
		_ = t.table.Append(rowToValues(row))
	}

	t.step++
	t.stepStart = time.Time{}
	if t.phase == phaseDiscovery {
		t.phase = phaseSteady
	}
	t.sampler.BeginStep()
	t.offset = 0
	t.lastKey = ""

	t.traceWatchedVarsLocked()
}

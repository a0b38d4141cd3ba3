package probe

import (
	"sync"
	"time"
)

type timerKey struct {
	module string
	group  StageGroup
}

// deviceEvent is a matched pair of timing markers bracketing a module
// execution, i.e. a Span per the GLOSSARY.
type deviceEvent struct {
	start time.Time
}

// Timer maintains a (module_id, stage_group) -> device_event map,
// collapsing pre/post into the same key so a pre_X begin
// pairs with the matching post_X end.
type Timer struct {
	mu     sync.Mutex
	events map[timerKey]deviceEvent
	sync   bool
}

// NewTimer returns a Timer. The synchronous flag is stored (and changed
// by SetSync) but Begin and End do not read it: there is no device
// backend here, so both timestamp immediately whatever its value.
func NewTimer(synchronous bool) *Timer {
	return &Timer{events: map[timerKey]deviceEvent{}, sync: synchronous}
}

// SetSync toggles the synchronous-timing behavior (torch.sync knob).
func (t *Timer) SetSync(synchronous bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sync = synchronous
}

// Begin records the start marker for a (module, stage) pair.
func (t *Timer) Begin(module string, stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events[timerKey{module, stage.group()}] = deviceEvent{start: time.Now()}
}

// End returns the elapsed duration since the matching Begin, and whether
// a pending start marker existed. A missing start marker (e.g. the device
// timing queue evicted it, or End is called with no matching Begin) is
// reported as ok=false rather than a zero duration.
func (t *Timer) End(module string, stage Stage) (time.Duration, bool) {
	key := timerKey{module, stage.group()}
	t.mu.Lock()
	defer t.mu.Unlock()
	ev, ok := t.events[key]
	if !ok {
		return 0, false
	}
	delete(t.events, key)
	return time.Since(ev.start), true
}

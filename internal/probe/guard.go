package probe

import (
	"sync"

	"github.com/reiase/probing-go/internal/probelog"
)

var log = probelog.Named("probe")

// guard suppresses panics from host-supplied callbacks (a ResourceSampler,
// a watched variable getter) so a misbehaving hook never crashes the host
// program cancellation rule: "hooks never raise to the
// host; exceptions are caught, logged at most maxtry ... times per hook,
// then silently suppressed."
type guard struct {
	mu     sync.Mutex
	maxtry int
	counts map[string]int
}

func newGuard(maxtry int) *guard {
	if maxtry <= 0 {
		maxtry = 3
	}
	return &guard{maxtry: maxtry, counts: map[string]int{}}
}

// run invokes fn, recovering and logging up to maxtry panics per site
// before going silent.
func (g *guard) run(site string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			g.mu.Lock()
			n := g.counts[site]
			g.counts[site] = n + 1
			g.mu.Unlock()
			if n < g.maxtry {
				log.Warnw("hook callback panicked, suppressing", "site", site, "attempt", n+1, "error", r)
			}
		}
	}()
	fn()
}

package probe

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// spanEvent is what a hook enqueues for the span-poller to fold into the
// pending list; kept intentionally tiny so the enqueue from the
// instrumented thread is cheap.
type spanEvent struct {
	row        TraceRow
	pendingKey string
	isStart    bool
}

// spanPoller is the optional worker goroutine consuming a
// bounded queue (default 1024). On overflow the span is dropped, not
// blocked. Follows internal/jobs.Runner's queue
// goroutine shape, generalized from job records to trace spans.
type spanPoller struct {
	ch      chan spanEvent
	group   *errgroup.Group
	cancel  context.CancelFunc
	dropped int64

	mu      sync.Mutex
	pending map[string]TraceRow
}

func newSpanPoller(capacity int) *spanPoller {
	if capacity <= 0 {
		capacity = 1024
	}
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	p := &spanPoller{
		ch:      make(chan spanEvent, capacity),
		group:   g,
		cancel:  cancel,
		pending: map[string]TraceRow{},
	}
	g.Go(func() error {
		p.run(ctx)
		return nil
	})
	return p
}

func (p *spanPoller) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.ch:
			p.process(ev)
		}
	}
}

// process folds one span event into the pending map, pairing a start
// marker with its finalizing event under the same key.
func (p *spanPoller) process(ev spanEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev.isStart {
		p.pending[ev.pendingKey] = ev.row
		return
	}
	if start, ok := p.pending[ev.pendingKey]; ok {
		ev.row.TimeOffset = start.TimeOffset
	}
	p.pending[ev.pendingKey] = ev.row
}

// drainChannel pulls every event currently buffered in the channel into
// the pending map without blocking. Both the background worker goroutine
// and a caller of drain/drainAll race to receive from the same channel,
// but each event is delivered to exactly one receiver, so calling this
// from drain guarantees a step boundary observes every span enqueued
// before it was reached, regardless of goroutine scheduling.
func (p *spanPoller) drainChannel() {
	for {
		select {
		case ev := <-p.ch:
			p.process(ev)
		default:
			return
		}
	}
}

// enqueue offers an event without blocking; on a full queue the span is
// dropped rather than stalling the calling hook.
func (p *spanPoller) enqueue(ev spanEvent) bool {
	select {
	case p.ch <- ev:
		return true
	default:
		p.dropped++
		return false
	}
}

// drain removes and returns every pending row whose key ready accepts,
// called at the post_step boundary; rows it rejects stay pending. A row
// whose start marker never saw a matching end is returned like any other
// row: drain does not tell the two apart or evict it.
func (p *spanPoller) drain(ready func(key string) bool) []TraceRow {
	p.drainChannel()
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []TraceRow
	for key, row := range p.pending {
		if ready(key) {
			out = append(out, row)
			delete(p.pending, key)
		}
	}
	return out
}

// drainAll flushes everything regardless of readiness, used when a
// tracer is stopped so no rows linger forever.
func (p *spanPoller) drainAll() []TraceRow {
	p.drainChannel()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TraceRow, 0, len(p.pending))
	for key, row := range p.pending {
		out = append(out, row)
		delete(p.pending, key)
	}
	return out
}

func (p *spanPoller) stop() {
	p.cancel()
	_ = p.group.Wait()
}

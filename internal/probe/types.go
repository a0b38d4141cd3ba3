// Package probe implements a sampler, timer, and tracer state machine:
// sampling, ordering-aware hook dispatch that measures wall/device
// time and appends rows to the TorchTrace table. Follows
// internal/jobs.Runner's
// queue-plus-subscriber-channel worker shape for the span-poller goroutine,
// and internal/metrics.metrics.go's copy-on-write atomic map for resource
// counter bookkeeping.
package probe

import "time"

// Stage is one of the six hook points in a training step.
type Stage uint8

const (
	StagePreForward Stage = iota
	StagePostForward
	StagePreBackward
	StagePostBackward
	StagePreStep
	StagePostStep
)

func (s Stage) String() string {
	switch s {
	case StagePreForward:
		return "pre forward"
	case StagePostForward:
		return "post forward"
	case StagePreBackward:
		return "pre backward"
	case StagePostBackward:
		return "post backward"
	case StagePreStep:
		return "pre step"
	case StagePostStep:
		return "post step"
	default:
		return "unknown"
	}
}

// force reports whether this stage still emits a row during the
// Discovery phase ("no rows are emitted except on
// force=True stages (pre/post step)").
func (s Stage) force() bool {
	return s == StagePreStep || s == StagePostStep
}

// StageGroup collapses pre/post pairs into the bucket the Timer keys its
// device-event map by Timer description.
type StageGroup uint8

const (
	GroupForward StageGroup = iota
	GroupBackward
	GroupStep
)

func (s Stage) group() StageGroup {
	switch s {
	case StagePreForward, StagePostForward:
		return GroupForward
	case StagePreBackward, StagePostBackward:
		return GroupBackward
	default:
		return GroupStep
	}
}

func (s Stage) isPre() bool {
	return s == StagePreForward || s == StagePreBackward || s == StagePreStep
}

// ResourceSnapshot is the memory accounting a hook records alongside a
// trace row TorchTrace schema.
type ResourceSnapshot struct {
	Allocated    int64
	MaxAllocated int64
	Cached       int64
	MaxCached    int64
}

// ResourceSampler reports current device/host memory counters. The
// default implementation (see resources.go) uses runtime.MemStats as a
// stand-in for a GPU allocator, since this agent has no device backend of
// its own; a host program embedding the agent may substitute its own
// sampler.
type ResourceSampler func() ResourceSnapshot

// TraceRow mirrors TorchTrace record.
type TraceRow struct {
	Step         int64
	Seq          int64
	Module       string
	Stage        Stage
	Allocated    int64
	MaxAllocated int64
	Cached       int64
	MaxCached    int64
	TimeOffset   time.Duration
	Duration     time.Duration
}

package probe

import "runtime"

// DefaultResourceSampler reads runtime.MemStats as a stand-in for a
// device allocator's counters, so the tracer has a meaningful default
// without requiring a host program to wire one in.
func DefaultResourceSampler() ResourceSnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return ResourceSnapshot{
		Allocated:    int64(m.HeapAlloc),
		MaxAllocated: int64(m.HeapSys),
		Cached:       int64(m.HeapIdle),
		MaxCached:    int64(m.HeapIdle + m.HeapInuse),
	}
}

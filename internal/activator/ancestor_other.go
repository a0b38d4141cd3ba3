//go:build !linux

package activator

// AlreadyAttached is a documented no-op on platforms without /proc: the
// activator proceeds as if no ancestor is attached, matching the
// teacher's pdeathsig_stub.go fallback.
func AlreadyAttached() bool { return false }

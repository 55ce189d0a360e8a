package chunk

import "time"

// State is the lifecycle state of one chunk coordinate. Exactly one state
// holds per coordinate at any time; all transitions happen on the control
// goroutine inside Manager.
type State uint8

const (
	StateNotLoaded State = iota
	StateQueued
	StateGenerating
	StateLoaded
	StateMeshing
	StateReady
	StateUnloading
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotLoaded:
		return "not_loaded"
	case StateQueued:
		return "queued"
	case StateGenerating:
		return "generating"
	case StateLoaded:
		return "loaded"
	case StateMeshing:
		return "meshing"
	case StateReady:
		return "ready"
	case StateUnloading:
		return "unloading"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InFlight reports whether the coordinate has work the cache must not evict.
func (s State) InFlight() bool {
	return s == StateQueued || s == StateGenerating || s == StateMeshing
}

// Status is a read-only snapshot of one coordinate's lifecycle, returned by
// Manager.Status.
type Status struct {
	State    State
	Priority int
	Attempts int
	Err      error
}

// record is the Manager's per-coordinate bookkeeping. The token identifies
// the generation the record currently belongs to: it is minted from a
// manager-wide counter when a Generate task is dispatched, and a completed
// task whose token no longer matches its record is discarded as stale.
type record struct {
	state    State
	token    uint64
	priority int

	attempts  int // generation attempts so far
	lastErr   error
	retryAt   time.Time // zero when no retry is scheduled

	meshQueued bool // re-mesh requested while a mesh is already wanted
}

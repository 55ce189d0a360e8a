package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: observer position intake
	PhasePreUpdate               // 1: deliver last tick's events
	PhaseUpdate                  // 2: simulation + chunk pipeline pump
	PhasePostUpdate              // 3: cache pressure, derived state
	PhasePersist                 // 4: dirty chunk save-back
	PhaseCleanup                 // 5: destroy queued entities
)

// System is the interface every engine system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

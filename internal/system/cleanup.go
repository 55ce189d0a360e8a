package system

import (
	"time"

	coresys "github.com/voxelgate/server/internal/core/system"
	"github.com/voxelgate/server/internal/core/ecs"
)

// CleanupSystem flushes deferred entity destruction at the end of the tick,
// after every other system has finished iterating. Phase 5 (Cleanup).
type CleanupSystem struct {
	ecs *ecs.World
}

func NewCleanupSystem(w *ecs.World) *CleanupSystem {
	return &CleanupSystem{ecs: w}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.ecs.FlushDestroyQueue()
}

package system

import (
	"time"

	"github.com/voxelgate/server/internal/chunk"
	coresys "github.com/voxelgate/server/internal/core/system"
	"github.com/voxelgate/server/internal/core/ecs"
	"github.com/voxelgate/server/internal/world"
)

// ChunkStreamSystem reconciles the streamed chunk set against observer
// positions and pumps the chunk manager: worker results are drained, due
// retries requeued and pending work dispatched. Phase 2 (Update), after
// movement has settled this tick's positions.
type ChunkStreamSystem struct {
	ecs *ecs.World
	svc *world.Service
	mgr *chunk.Manager
}

func NewChunkStreamSystem(w *ecs.World, svc *world.Service, mgr *chunk.Manager) *ChunkStreamSystem {
	return &ChunkStreamSystem{ecs: w, svc: svc, mgr: mgr}
}

func (s *ChunkStreamSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *ChunkStreamSystem) Update(_ time.Duration) {
	s.svc.Refresh(s.ecs)
	s.mgr.Update()
}

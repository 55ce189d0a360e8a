package system

import (
	"time"

	"github.com/voxelgate/server/internal/component"
	coresys "github.com/voxelgate/server/internal/core/system"
	"github.com/voxelgate/server/internal/core/ecs"
)

// MovementSystem integrates velocity into position. Phase 2 (Update); ordered
// before chunk streaming by registration order so streaming sees this tick's
// positions.
type MovementSystem struct {
	ecs   *ecs.World
	query *ecs.Query
}

func NewMovementSystem(w *ecs.World) *MovementSystem {
	return &MovementSystem{
		ecs:   w,
		query: w.Query(component.TypePosition, component.TypeVelocity),
	}
}

func (s *MovementSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *MovementSystem) Update(dt time.Duration) {
	secs := dt.Seconds()
	s.query.Each(func(id ecs.EntityID) {
		pos, ok := ecs.Get[component.Position](s.ecs, id, component.TypePosition)
		if !ok {
			return
		}
		vel, ok := ecs.Get[component.Velocity](s.ecs, id, component.TypeVelocity)
		if !ok {
			return
		}
		pos.X += vel.X * secs
		pos.Y += vel.Y * secs
		pos.Z += vel.Z * secs
	})
}

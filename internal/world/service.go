package world

import (
	"go.uber.org/zap"

	"github.com/voxelgate/server/internal/chunk"
	"github.com/voxelgate/server/internal/component"
	"github.com/voxelgate/server/internal/core/ecs"
)

// Service streams chunks around observer entities: every chunk within an
// observer's render radius is requested and pinned, with priority equal to
// its Chebyshev distance to the nearest observer, and chunks beyond the
// unload radius of every observer are released. The gap between the two radii
// gives hysteresis so observers walking along a chunk border do not thrash.
// Accessed only from the game loop goroutine — no locks.
type Service struct {
	log *zap.Logger
	mgr *chunk.Manager

	renderRadius int
	unloadRadius int

	tracked map[chunk.Coord]struct{} // chunks currently pinned by this service
}

func NewService(mgr *chunk.Manager, renderRadius, unloadRadius int, log *zap.Logger) *Service {
	if unloadRadius < renderRadius {
		unloadRadius = renderRadius
	}
	return &Service{
		log:          log,
		mgr:          mgr,
		renderRadius: renderRadius,
		unloadRadius: unloadRadius,
		tracked:      make(map[chunk.Coord]struct{}, 256),
	}
}

// Tracked returns the number of chunks the service currently keeps pinned.
func (s *Service) Tracked() int { return len(s.tracked) }

// Refresh reconciles the streamed chunk set against current observer
// positions. Called once per tick before the manager pump.
func (s *Service) Refresh(w *ecs.World) {
	centers := s.observerCenters(w)

	// Request and pin everything in range. Requests are idempotent and
	// raise-only, so re-requesting a tracked chunk just refreshes priority.
	for _, obs := range centers {
		radius := obs.radius
		for dz := -radius; dz <= radius; dz++ {
			for dx := -radius; dx <= radius; dx++ {
				c := chunk.Coord{X: obs.center.X + int32(dx), Z: obs.center.Z + int32(dz)}
				prio := int(c.Chebyshev(obs.center))
				if err := s.mgr.Request(c, prio); err != nil {
					s.log.Warn("request streamed chunk",
						zap.Stringer("coord", c), zap.Error(err))
					continue
				}
				if _, ok := s.tracked[c]; !ok {
					s.mgr.Pin(c)
					s.tracked[c] = struct{}{}
				}
			}
		}
	}

	// Release chunks no observer can still see.
	for c := range s.tracked {
		if s.withinUnloadRadius(c, centers) {
			continue
		}
		s.mgr.Unpin(c)
		s.mgr.Unload(c)
		delete(s.tracked, c)
	}
}

type observerCenter struct {
	center chunk.Coord
	radius int
}

func (s *Service) observerCenters(w *ecs.World) []observerCenter {
	var centers []observerCenter
	q := w.Query(component.TypePosition, component.TypeObserver)
	q.Each(func(id ecs.EntityID) {
		pos, ok := ecs.Get[component.Position](w, id, component.TypePosition)
		if !ok {
			return
		}
		obs, _ := ecs.Get[component.Observer](w, id, component.TypeObserver)
		radius := s.renderRadius
		if obs != nil && obs.Radius > 0 {
			radius = obs.Radius
		}
		centers = append(centers, observerCenter{
			center: chunk.FromWorld(int32(pos.X), int32(pos.Z)),
			radius: radius,
		})
	})
	return centers
}

func (s *Service) withinUnloadRadius(c chunk.Coord, centers []observerCenter) bool {
	for _, obs := range centers {
		limit := s.unloadRadius
		if obs.radius > s.renderRadius {
			limit = obs.radius + (s.unloadRadius - s.renderRadius)
		}
		if int(c.Chebyshev(obs.center)) <= limit {
			return true
		}
	}
	return false
}

package component

import "github.com/voxelgate/server/internal/core/ecs"

// Component type IDs. Must stay below ecs.MaxComponentTypes.
const (
	TypePosition ecs.ComponentType = iota
	TypeVelocity
	TypeObserver
)

// Position is an entity's location in world block coordinates. Pure data,
// zero methods — all mutations happen in System functions.
type Position struct {
	X, Y, Z float64
}

// Velocity is the per-second movement applied by the movement system.
type Velocity struct {
	X, Y, Z float64
}

// Observer marks an entity whose position drives chunk streaming. Each
// observer keeps the chunks within Radius requested and pinned around it;
// a zero Radius falls back to the world default.
type Observer struct {
	Radius int
}

package vec

import "fmt"

// Vec2 is an integer chunk-grid coordinate (X east, Z south). It is the map
// key for every chunk-indexed structure, so it must stay a comparable value
// type.
type Vec2 struct {
	X int32
	Z int32
}

func (v Vec2) String() string {
	return fmt.Sprintf("(%d,%d)", v.X, v.Z)
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Z: v.Z + o.Z}
}

// Chebyshev returns the chessboard distance between two coordinates, the
// natural metric for square view radii.
func (v Vec2) Chebyshev(o Vec2) int32 {
	dx := abs32(v.X - o.X)
	dz := abs32(v.Z - o.Z)
	if dz > dx {
		return dz
	}
	return dx
}

func abs32(n int32) int32 {
	if n < 0 {
		return -n
	}
	return n
}

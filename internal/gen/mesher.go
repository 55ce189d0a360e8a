package gen

import (
	"context"

	"github.com/voxelgate/server/internal/chunk"
	"github.com/voxelgate/server/internal/data"
)

// face describes one of the six cube faces: its normal and the offsets of its
// four corners, wound counter-clockwise seen from outside.
type face struct {
	nx, ny, nz float32
	corners    [4][3]float32
}

var cubeFaces = [6]face{
	{0, 1, 0, [4][3]float32{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}},   // +Y
	{0, -1, 0, [4][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}},  // -Y
	{1, 0, 0, [4][3]float32{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}},   // +X
	{-1, 0, 0, [4][3]float32{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}},  // -X
	{0, 0, 1, [4][3]float32{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}},   // +Z
	{0, 0, -1, [4][3]float32{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}},  // -Z
}

var faceOffsets = [6][3]int{
	{0, 1, 0}, {0, -1, 0}, {1, 0, 0}, {-1, 0, 0}, {0, 0, 1}, {0, 0, -1},
}

// CulledMesher emits one quad per visible block face: a face is visible when
// its neighbour is not opaque. Neighbours outside the chunk are treated as
// air, so chunk borders always mesh; the renderer culls the overdraw.
type CulledMesher struct {
	blocks *data.BlockTable
}

func NewCulledMesher(blocks *data.BlockTable) *CulledMesher {
	return &CulledMesher{blocks: blocks}
}

// BuildMesh walks the snapshot and emits quads for every visible face.
func (m *CulledMesher) BuildMesh(ctx context.Context, ch *chunk.Chunk) (*chunk.Mesh, error) {
	mesh := &chunk.Mesh{}
	for y := 0; y < chunk.SizeY; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for z := 0; z < chunk.SizeZ; z++ {
			for x := 0; x < chunk.SizeX; x++ {
				id := ch.Blocks[chunk.BlockIndex(x, y, z)]
				if !m.blocks.Solid(id) {
					continue
				}
				for f := 0; f < 6; f++ {
					off := faceOffsets[f]
					if m.occluded(ch, x+off[0], y+off[1], z+off[2]) {
						continue
					}
					emitFace(mesh, &cubeFaces[f], x, y, z)
				}
			}
		}
	}
	return mesh, nil
}

// occluded reports whether the neighbour at chunk-local coordinates hides a
// face. Out-of-chunk neighbours never occlude.
func (m *CulledMesher) occluded(ch *chunk.Chunk, x, y, z int) bool {
	if x < 0 || x >= chunk.SizeX || y < 0 || y >= chunk.SizeY || z < 0 || z >= chunk.SizeZ {
		return false
	}
	return m.blocks.Opaque(ch.Blocks[chunk.BlockIndex(x, y, z)])
}

func emitFace(mesh *chunk.Mesh, f *face, x, y, z int) {
	base := uint32(len(mesh.Positions) / 3)
	for _, corner := range f.corners {
		mesh.Positions = append(mesh.Positions,
			float32(x)+corner[0], float32(y)+corner[1], float32(z)+corner[2])
		mesh.Normals = append(mesh.Normals, f.nx, f.ny, f.nz)
	}
	mesh.Indices = append(mesh.Indices,
		base, base+1, base+2,
		base, base+2, base+3)
}

package gen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelgate/server/internal/chunk"
)

func TestCulledMesher_SingleBlock(t *testing.T) {
	table := testBlockTable(t)
	m := NewCulledMesher(table)

	ch := chunk.NewChunk(chunk.Coord{})
	ch.Blocks[chunk.BlockIndex(8, 100, 8)] = table.ID("stone")

	mesh, err := m.BuildMesh(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, 6, mesh.FaceCount(), "a lone cube shows all six faces")
	assert.Len(t, mesh.Positions, 6*4*3)
	assert.Len(t, mesh.Normals, len(mesh.Positions))
	assert.Len(t, mesh.Indices, 6*6)
}

func TestCulledMesher_SharedFaceCulled(t *testing.T) {
	table := testBlockTable(t)
	m := NewCulledMesher(table)

	ch := chunk.NewChunk(chunk.Coord{})
	ch.Blocks[chunk.BlockIndex(4, 50, 4)] = table.ID("stone")
	ch.Blocks[chunk.BlockIndex(5, 50, 4)] = table.ID("stone")

	mesh, err := m.BuildMesh(context.Background(), ch)
	require.NoError(t, err)
	// Two cubes share one interior face pair: 12 - 2 = 10 quads.
	assert.Equal(t, 10, mesh.FaceCount())
}

func TestCulledMesher_BuriedBlockInvisible(t *testing.T) {
	table := testBlockTable(t)
	m := NewCulledMesher(table)

	ch := chunk.NewChunk(chunk.Coord{})
	stone := table.ID("stone")
	// 3×3×3 solid cube: the centre block contributes no faces.
	for y := 10; y < 13; y++ {
		for z := 4; z < 7; z++ {
			for x := 4; x < 7; x++ {
				ch.Blocks[chunk.BlockIndex(x, y, z)] = stone
			}
		}
	}

	mesh, err := m.BuildMesh(context.Background(), ch)
	require.NoError(t, err)
	// Only the outer shell is visible: 9 faces per side.
	assert.Equal(t, 54, mesh.FaceCount())
}

func TestCulledMesher_WaterDoesNotOcclude(t *testing.T) {
	table := testBlockTable(t)
	m := NewCulledMesher(table)

	ch := chunk.NewChunk(chunk.Coord{})
	ch.Blocks[chunk.BlockIndex(4, 50, 4)] = table.ID("stone")
	ch.Blocks[chunk.BlockIndex(4, 51, 4)] = table.ID("water")

	mesh, err := m.BuildMesh(context.Background(), ch)
	require.NoError(t, err)
	// Water is transparent and not solid: the stone still shows six faces and
	// the water contributes none.
	assert.Equal(t, 6, mesh.FaceCount())
}

func TestCulledMesher_ChunkBorderFacesEmitted(t *testing.T) {
	table := testBlockTable(t)
	m := NewCulledMesher(table)

	ch := chunk.NewChunk(chunk.Coord{})
	ch.Blocks[chunk.BlockIndex(0, 0, 0)] = table.ID("stone")

	mesh, err := m.BuildMesh(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, 6, mesh.FaceCount(), "out-of-chunk neighbours never occlude")
}

func TestCulledMesher_Cancelled(t *testing.T) {
	m := NewCulledMesher(testBlockTable(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.BuildMesh(ctx, chunk.NewChunk(chunk.Coord{}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHeightCollider(t *testing.T) {
	table := testBlockTable(t)
	c := NewHeightCollider(table)

	ch := chunk.NewChunk(chunk.Coord{})
	stone := table.ID("stone")
	ch.Blocks[chunk.BlockIndex(0, 0, 0)] = stone
	ch.Blocks[chunk.BlockIndex(0, 42, 0)] = stone
	ch.Blocks[chunk.BlockIndex(3, 7, 9)] = stone
	ch.Blocks[chunk.BlockIndex(3, 8, 9)] = table.ID("water") // not solid

	h, err := c.BuildHeights(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, int16(42), h.At(0, 0), "topmost solid wins")
	assert.Equal(t, int16(7), h.At(3, 9), "water above does not count")
	assert.Equal(t, int16(-1), h.At(15, 15), "empty column reports -1")
}

package chunk

import "github.com/voxelgate/server/internal/vec"

// Chunk dimensions. A chunk is a 16×256×16 block region; the Coord identifies
// its (X,Z) column in the chunk grid.
const (
	SizeX = 16
	SizeY = 256
	SizeZ = 16

	Volume = SizeX * SizeY * SizeZ
)

// Coord identifies a chunk column in the world.
type Coord = vec.Vec2

// FromWorld maps world block coordinates to the containing chunk coordinate.
func FromWorld(wx, wz int32) Coord {
	return Coord{X: floorDiv16(wx), Z: floorDiv16(wz)}
}

func floorDiv16(v int32) int32 {
	if v < 0 {
		return (v - 15) / 16
	}
	return v / 16
}

// BlockID is a palette index into the block table. 0 is always air.
type BlockID uint16

const BlockAir BlockID = 0

// Chunk is the block payload for one coordinate. Ownership is transferred
// whole between the control goroutine and workers; no two goroutines hold a
// mutable reference at the same time, so there is no lock here.
type Chunk struct {
	Coord  Coord
	Blocks []BlockID // len Volume, indexed via BlockIndex
	dirty  bool
}

func NewChunk(c Coord) *Chunk {
	return &Chunk{
		Coord:  c,
		Blocks: make([]BlockID, Volume),
	}
}

// BlockIndex flattens chunk-local coordinates into the Blocks slice.
// Layout is column-major (x fastest, then z, then y) so one vertical column
// is a strided walk and one horizontal slice is contiguous.
func BlockIndex(x, y, z int) int {
	return (y*SizeZ+z)*SizeX + x
}

func inBounds(x, y, z int) bool {
	return x >= 0 && x < SizeX && y >= 0 && y < SizeY && z >= 0 && z < SizeZ
}

// Block returns the block at chunk-local coordinates, air when out of bounds.
func (c *Chunk) Block(x, y, z int) BlockID {
	if !inBounds(x, y, z) {
		return BlockAir
	}
	return c.Blocks[BlockIndex(x, y, z)]
}

// SetBlock writes a block at chunk-local coordinates and marks the chunk
// dirty. Out-of-bounds writes are ignored.
func (c *Chunk) SetBlock(x, y, z int, id BlockID) {
	if !inBounds(x, y, z) {
		return
	}
	i := BlockIndex(x, y, z)
	if c.Blocks[i] == id {
		return
	}
	c.Blocks[i] = id
	c.dirty = true
}

func (c *Chunk) Dirty() bool { return c.dirty }
func (c *Chunk) MarkDirty()  { c.dirty = true }
func (c *Chunk) ClearDirty() { c.dirty = false }

// Snapshot returns a deep copy of the block grid. Handed to workers so the
// control goroutine and a meshing task never share a mutable buffer.
func (c *Chunk) Snapshot() *Chunk {
	blocks := make([]BlockID, Volume)
	copy(blocks, c.Blocks)
	return &Chunk{Coord: c.Coord, Blocks: blocks}
}

// Mesh is the render-ready output of a meshing task: one quad per visible
// block face. Consumed by the rendering collaborator via the ChunkReady
// event; this core never reads it back.
type Mesh struct {
	Positions []float32 // xyz triples
	Normals   []float32 // xyz triples, one per vertex
	Indices   []uint32
}

// FaceCount returns the number of emitted quads.
func (m *Mesh) FaceCount() int {
	return len(m.Indices) / 6
}

// HeightField is the physics summary for a chunk: the Y of the highest solid
// block per column, one entry per (x,z).
type HeightField [SizeX * SizeZ]int16

func (h *HeightField) At(x, z int) int16  { return h[z*SizeX+x] }
func (h *HeightField) Set(x, z int, y int16) { h[z*SizeX+x] = y }

package gen

import (
	"context"

	"github.com/voxelgate/server/internal/chunk"
	"github.com/voxelgate/server/internal/data"
)

// HeightCollider summarizes a chunk into a per-column solid height field for
// cheap ground collision. Columns with no solid block report -1.
type HeightCollider struct {
	blocks *data.BlockTable
}

func NewHeightCollider(blocks *data.BlockTable) *HeightCollider {
	return &HeightCollider{blocks: blocks}
}

// BuildHeights scans each column top-down for the highest solid block.
func (c *HeightCollider) BuildHeights(ctx context.Context, ch *chunk.Chunk) (*chunk.HeightField, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var h chunk.HeightField
	for z := 0; z < chunk.SizeZ; z++ {
		for x := 0; x < chunk.SizeX; x++ {
			h.Set(x, z, -1)
			for y := chunk.SizeY - 1; y >= 0; y-- {
				if c.blocks.Solid(ch.Blocks[chunk.BlockIndex(x, y, z)]) {
					h.Set(x, z, int16(y))
					break
				}
			}
		}
	}
	return &h, nil
}

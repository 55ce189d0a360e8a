package gen

import (
	"context"

	"github.com/aquilax/go-perlin"

	"github.com/voxelgate/server/internal/chunk"
	"github.com/voxelgate/server/internal/data"
	"github.com/voxelgate/server/internal/scripting"
)

// TerrainConfig holds the noise parameters for procedural terrain.
type TerrainConfig struct {
	Seed          int64
	SeaLevel      int
	BaseHeight    int
	Amplitude     int
	HeightScale   float64 // noise frequency for the heightmap
	MoistureScale float64 // noise frequency for the biome moisture map
}

// DefaultTerrainConfig returns the tuning used by the stock world.
func DefaultTerrainConfig() TerrainConfig {
	return TerrainConfig{
		Seed:          1,
		SeaLevel:      62,
		BaseHeight:    64,
		Amplitude:     24,
		HeightScale:   0.008,
		MoistureScale: 0.003,
	}
}

// TerrainGenerator builds chunk payloads from layered Perlin noise: one
// octaved heightmap plus a low-frequency moisture map that picks the biome.
// An optional Lua shape_column hook can reshape individual columns.
//
// Safe for concurrent calls: the noise tables are read-only after
// construction and the scripting engine serializes its own VM access.
type TerrainGenerator struct {
	cfg    TerrainConfig
	blocks *data.BlockTable
	engine *scripting.Engine
	useLua bool

	height   *perlin.Perlin
	moisture *perlin.Perlin

	stone, dirt, grass, sand, water, snow, bedrock chunk.BlockID
}

// NewTerrainGenerator wires the noise sources and resolves the block IDs the
// generator places. engine may be nil.
func NewTerrainGenerator(cfg TerrainConfig, blocks *data.BlockTable, engine *scripting.Engine) *TerrainGenerator {
	seed := cfg.Seed
	if engine != nil {
		if s, ok := engine.WorldSeedOverride(); ok {
			seed = s
		}
	}
	g := &TerrainGenerator{
		cfg:      cfg,
		blocks:   blocks,
		engine:   engine,
		height:   perlin.NewPerlin(2, 2, 3, seed),
		moisture: perlin.NewPerlin(2, 2, 2, seed+1),

		stone:   blocks.ID("stone"),
		dirt:    blocks.ID("dirt"),
		grass:   blocks.ID("grass"),
		sand:    blocks.ID("sand"),
		water:   blocks.ID("water"),
		snow:    blocks.ID("snow"),
		bedrock: blocks.ID("bedrock"),
	}
	if engine != nil && engine.HasShapeColumn() {
		g.useLua = true
	}
	return g
}

// Generate builds the chunk at c.
func (g *TerrainGenerator) Generate(ctx context.Context, c chunk.Coord) (*chunk.Chunk, error) {
	ch := chunk.NewChunk(c)
	for z := 0; z < chunk.SizeZ; z++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < chunk.SizeX; x++ {
			wx := int(c.X)*chunk.SizeX + x
			wz := int(c.Z)*chunk.SizeZ + z
			g.fillColumn(ch, x, z, wx, wz)
		}
	}
	return ch, nil
}

func (g *TerrainGenerator) fillColumn(ch *chunk.Chunk, x, z, wx, wz int) {
	h := g.heightAt(wx, wz)
	m := g.moistureAt(wx, wz)
	biome := g.biomeFor(h, m)

	surface, fill := g.surfaceFor(biome, h)
	if g.useLua {
		res, ok := g.engine.ShapeColumn(scripting.ColumnContext{
			WorldX:   wx,
			WorldZ:   wz,
			Height:   h,
			Biome:    biome,
			Moisture: m,
		})
		if ok {
			h = clampHeight(res.Height)
			if res.SurfaceBlock != "" {
				surface = g.blocks.ID(res.SurfaceBlock)
			}
			if res.FillBlock != "" {
				fill = g.blocks.ID(res.FillBlock)
			}
		}
	}

	ch.Blocks[chunk.BlockIndex(x, 0, z)] = g.bedrock
	for y := 1; y < h-3; y++ {
		ch.Blocks[chunk.BlockIndex(x, y, z)] = fill
	}
	subsurface := g.dirt
	if biome == "desert" || biome == "ocean" {
		subsurface = g.sand
	}
	for y := maxInt(1, h-3); y < h; y++ {
		ch.Blocks[chunk.BlockIndex(x, y, z)] = subsurface
	}
	ch.Blocks[chunk.BlockIndex(x, h, z)] = surface

	// Flood up to sea level.
	for y := h + 1; y <= g.cfg.SeaLevel && y < chunk.SizeY; y++ {
		ch.Blocks[chunk.BlockIndex(x, y, z)] = g.water
	}
}

func (g *TerrainGenerator) heightAt(wx, wz int) int {
	n := g.height.Noise2D(float64(wx)*g.cfg.HeightScale, float64(wz)*g.cfg.HeightScale)
	return clampHeight(g.cfg.BaseHeight + int(n*float64(g.cfg.Amplitude)))
}

// moistureAt returns the biome moisture in [0,1].
func (g *TerrainGenerator) moistureAt(wx, wz int) float64 {
	n := g.moisture.Noise2D(float64(wx)*g.cfg.MoistureScale, float64(wz)*g.cfg.MoistureScale)
	return (n + 1) / 2
}

func (g *TerrainGenerator) biomeFor(h int, m float64) string {
	switch {
	case h <= g.cfg.SeaLevel:
		return "ocean"
	case h >= g.cfg.BaseHeight+g.cfg.Amplitude*3/5:
		return "mountains"
	case m < 0.25:
		return "desert"
	default:
		return "plains"
	}
}

func (g *TerrainGenerator) surfaceFor(biome string, h int) (surface, fill chunk.BlockID) {
	fill = g.stone
	switch biome {
	case "ocean", "desert":
		surface = g.sand
	case "mountains":
		surface = g.stone
		if h >= g.cfg.BaseHeight+g.cfg.Amplitude*4/5 {
			surface = g.snow
		}
	default:
		surface = g.grass
	}
	return surface, fill
}

func clampHeight(h int) int {
	if h < 1 {
		return 1
	}
	if h > chunk.SizeY-2 {
		return chunk.SizeY - 2
	}
	return h
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

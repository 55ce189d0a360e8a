package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/voxelgate/server/internal/chunk"
)

// BlockTemplate holds static data for a block type loaded from YAML.
type BlockTemplate struct {
	BlockID  chunk.BlockID `yaml:"block_id"`
	Name     string        `yaml:"name"`
	Solid    bool          `yaml:"solid"`
	Opaque   bool          `yaml:"opaque"`
	Hardness float32       `yaml:"hardness"`
}

type blockListFile struct {
	Blocks []BlockTemplate `yaml:"blocks"`
}

// BlockTable holds all block templates indexed by BlockID. Read-only after
// load; safe to share with worker goroutines.
type BlockTable struct {
	templates map[chunk.BlockID]*BlockTemplate
	byName    map[string]*BlockTemplate
}

// LoadBlockTable loads block templates from a YAML file. The table must
// contain an entry for air (block_id 0) and air must not be solid.
func LoadBlockTable(path string) (*BlockTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read block_list: %w", err)
	}
	var f blockListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse block_list: %w", err)
	}
	return NewBlockTable(f.Blocks)
}

// NewBlockTable builds a table from templates already in memory.
func NewBlockTable(blocks []BlockTemplate) (*BlockTable, error) {
	t := &BlockTable{
		templates: make(map[chunk.BlockID]*BlockTemplate, len(blocks)),
		byName:    make(map[string]*BlockTemplate, len(blocks)),
	}
	for i := range blocks {
		b := &blocks[i]
		if _, dup := t.templates[b.BlockID]; dup {
			return nil, fmt.Errorf("block_list: duplicate block_id %d", b.BlockID)
		}
		t.templates[b.BlockID] = b
		t.byName[b.Name] = b
	}
	air, ok := t.templates[chunk.BlockAir]
	if !ok {
		return nil, fmt.Errorf("block_list: missing air entry (block_id 0)")
	}
	if air.Solid {
		return nil, fmt.Errorf("block_list: air must not be solid")
	}
	return t, nil
}

// Get returns a block template by ID, or nil if not found.
func (t *BlockTable) Get(id chunk.BlockID) *BlockTemplate {
	return t.templates[id]
}

// ByName returns a block template by name, or nil if not found.
func (t *BlockTable) ByName(name string) *BlockTemplate {
	return t.byName[name]
}

// ID returns the block ID for a name, air if unknown.
func (t *BlockTable) ID(name string) chunk.BlockID {
	if b := t.byName[name]; b != nil {
		return b.BlockID
	}
	return chunk.BlockAir
}

// Solid reports whether the block occludes and collides. Unknown IDs are
// treated as air.
func (t *BlockTable) Solid(id chunk.BlockID) bool {
	b := t.templates[id]
	return b != nil && b.Solid
}

// Opaque reports whether the block hides neighbouring faces.
func (t *BlockTable) Opaque(id chunk.BlockID) bool {
	b := t.templates[id]
	return b != nil && b.Opaque
}

// Count returns the number of loaded templates.
func (t *BlockTable) Count() int {
	return len(t.templates)
}

package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelgate/server/internal/chunk"
)

func writeBlockList(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "block_list.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadBlockTable(t *testing.T) {
	path := writeBlockList(t, `
blocks:
  - block_id: 0
    name: air
    solid: false
    opaque: false
  - block_id: 1
    name: stone
    solid: true
    opaque: true
    hardness: 1.5
  - block_id: 5
    name: water
    solid: false
    opaque: false
`)

	table, err := LoadBlockTable(path)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Count())

	stone := table.Get(1)
	require.NotNil(t, stone)
	assert.Equal(t, "stone", stone.Name)
	assert.InDelta(t, 1.5, stone.Hardness, 1e-6)

	assert.True(t, table.Solid(1))
	assert.False(t, table.Solid(5), "water is not solid")
	assert.False(t, table.Solid(99), "unknown blocks behave like air")
	assert.True(t, table.Opaque(1))

	assert.Equal(t, chunk.BlockID(5), table.ID("water"))
	assert.Equal(t, chunk.BlockAir, table.ID("lava"))
	assert.Nil(t, table.ByName("lava"))
}

func TestLoadBlockTable_MissingAir(t *testing.T) {
	path := writeBlockList(t, `
blocks:
  - block_id: 1
    name: stone
    solid: true
`)
	_, err := LoadBlockTable(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing air")
}

func TestLoadBlockTable_SolidAir(t *testing.T) {
	_, err := NewBlockTable([]BlockTemplate{
		{BlockID: 0, Name: "air", Solid: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "air must not be solid")
}

func TestNewBlockTable_DuplicateID(t *testing.T) {
	_, err := NewBlockTable([]BlockTemplate{
		{BlockID: 0, Name: "air"},
		{BlockID: 1, Name: "stone", Solid: true},
		{BlockID: 1, Name: "granite", Solid: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate block_id")
}

func TestLoadBlockTable_FileErrors(t *testing.T) {
	_, err := LoadBlockTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := writeBlockList(t, "blocks: [not a mapping")
	_, err = LoadBlockTable(bad)
	assert.Error(t, err)
}

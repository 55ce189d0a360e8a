package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/voxelgate/server/internal/chunk"
)

// ChunkRepo stores chunk block payloads. It implements the chunk manager's
// Loader interface; Load and Save are called from worker goroutines and the
// pgx pool handles the concurrency.
type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Load fetches the stored payload for a coordinate. Returns found=false when
// the chunk has never been saved.
func (r *ChunkRepo) Load(ctx context.Context, c chunk.Coord) (*chunk.Chunk, bool, error) {
	var data []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT blocks FROM chunks WHERE cx = $1 AND cz = $2`, c.X, c.Z,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load chunk %s: %w", c, err)
	}

	blocks, err := decodeBlocks(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode chunk %s: %w", c, err)
	}
	ch := &chunk.Chunk{Coord: c, Blocks: blocks}
	return ch, true, nil
}

// Save upserts the chunk's compressed payload.
func (r *ChunkRepo) Save(ctx context.Context, ch *chunk.Chunk) error {
	data := encodeBlocks(ch.Blocks)
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO chunks (cx, cz, blocks, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (cx, cz) DO UPDATE
		 SET blocks = EXCLUDED.blocks, updated_at = NOW()`,
		ch.Coord.X, ch.Coord.Z, data,
	)
	if err != nil {
		return fmt.Errorf("save chunk %s: %w", ch.Coord, err)
	}
	return nil
}

// Delete removes a stored chunk. Used by admin tooling; the manager never
// deletes persisted data on unload.
func (r *ChunkRepo) Delete(ctx context.Context, c chunk.Coord) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM chunks WHERE cx = $1 AND cz = $2`, c.X, c.Z)
	if err != nil {
		return fmt.Errorf("delete chunk %s: %w", c, err)
	}
	return nil
}

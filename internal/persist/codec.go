package persist

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/voxelgate/server/internal/chunk"
)

// Block payloads are stored as zstd-compressed little-endian uint16 arrays.
// A one-byte version prefix leaves room for palette or RLE formats later.
const blockCodecVersion = 1

var (
	zstdEnc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDec, _ = zstd.NewReader(nil)
)

// encodeBlocks serializes and compresses a block grid. EncodeAll is safe for
// concurrent use, which matters because Save runs on worker goroutines.
func encodeBlocks(blocks []chunk.BlockID) []byte {
	raw := make([]byte, 1+len(blocks)*2)
	raw[0] = blockCodecVersion
	for i, b := range blocks {
		binary.LittleEndian.PutUint16(raw[1+i*2:], uint16(b))
	}
	return zstdEnc.EncodeAll(raw, make([]byte, 0, len(raw)/8))
}

// decodeBlocks reverses encodeBlocks and validates the payload size.
func decodeBlocks(data []byte) ([]chunk.BlockID, error) {
	raw, err := zstdDec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress blocks: %w", err)
	}
	if len(raw) < 1 {
		return nil, fmt.Errorf("block payload empty")
	}
	if raw[0] != blockCodecVersion {
		return nil, fmt.Errorf("unsupported block codec version %d", raw[0])
	}
	body := raw[1:]
	if len(body) != chunk.Volume*2 {
		return nil, fmt.Errorf("block payload size %d, want %d", len(body), chunk.Volume*2)
	}
	blocks := make([]chunk.BlockID, chunk.Volume)
	for i := range blocks {
		blocks[i] = chunk.BlockID(binary.LittleEndian.Uint16(body[i*2:]))
	}
	return blocks, nil
}

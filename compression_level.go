package ewf

import "github.com/klauspost/compress/zlib"

// CompressionLevel selects how hard the Chunk Processor (§4.A) tries to
// shrink a chunk before falling back to the raw-plus-CRC form. Mirrors the
// teacher's CompressionLevel enum, narrowed to the four levels spec.md §6
// names instead of the teacher's five zstd/lz4 tiers.
type CompressionLevel int

const (
	CompressionNone CompressionLevel = iota
	CompressionFast
	CompressionDefault
	CompressionBest
)

func CompressionLevelFromString(level string) CompressionLevel {
	switch level {
	case "none":
		return CompressionNone
	case "fast":
		return CompressionFast
	case "default":
		return CompressionDefault
	case "best":
		return CompressionBest
	default:
		return CompressionDefault
	}
}

func (c CompressionLevel) zlibLevel() int {
	switch c {
	case CompressionNone:
		return zlib.NoCompression
	case CompressionFast:
		return zlib.BestSpeed
	case CompressionBest:
		return zlib.BestCompression
	case CompressionDefault:
		return zlib.DefaultCompression
	default:
		return zlib.DefaultCompression
	}
}

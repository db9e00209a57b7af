package ewf

import (
	"math"

	"github.com/google/uuid"
)

// Config is this engine's equivalent of the teacher's WriterOptions: one
// struct gathering every pre-write-time tunable spec.md §6 enumerates,
// with the same "zero value means use a sane default" convention the
// teacher applies to ChunkSize in NewWriter.
type Config struct {
	Format    Format
	EWFFormat EWFFormat
	Media     MediaValues
	Headers   HeaderValues

	SegmentFileSize int64
	// MaximumSegmentFileSize is the hard cap SegmentFileSize cannot
	// exceed (spec.md §3); setDefaults clamps SegmentFileSize down to it.
	MaximumSegmentFileSize int64
	DeltaSegmentFileSize   int64
	MaximumSectionChunks   uint32
	UnrestrictOffsetAmount bool

	Compression        CompressionLevel
	CompressEmptyBlock bool

	// PathPrefix names the acquisition; segment files are written as
	// "<PathPrefix>.<ext>" (E01/E02/.../S01/D01/...).
	PathPrefix string
}

func (c *Config) setDefaults() {
	if c.SegmentFileSize == 0 {
		c.SegmentFileSize = 1440 * 1024 * 1024 // legacy CD-sized default segment
	}
	if c.MaximumSegmentFileSize == 0 {
		c.MaximumSegmentFileSize = math.MaxInt32
	}
	if c.SegmentFileSize > c.MaximumSegmentFileSize {
		c.SegmentFileSize = c.MaximumSegmentFileSize
	}
	if c.DeltaSegmentFileSize == 0 {
		c.DeltaSegmentFileSize = math.MaxInt64 - 1
	}
	if c.MaximumSectionChunks == 0 {
		c.MaximumSectionChunks = 16375
	}
	if c.PathPrefix == "" {
		c.PathPrefix = "image"
	}
	if c.Media.Geometry.SegmentFileSetID == ([16]byte{}) {
		id := uuid.New()
		copy(c.Media.Geometry.SegmentFileSetID[:], id[:])
	}
}

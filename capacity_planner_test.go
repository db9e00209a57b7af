package ewf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunksPerSegmentE01TableReservationOutweighsS01Overhead(t *testing.T) {
	media := MediaValues{ChunkSize: 32768}
	remaining := int64(10 * 1024 * 1024)

	s01 := chunksPerSegment(remaining, 16375, 0, 0, media, FormatEnCase1, FormatS01, false)
	e01 := chunksPerSegment(remaining, 16375, 0, 0, media, FormatEnCase2, FormatE01, false)

	assert.Greater(t, s01, e01, "E01's sectors/table/table2 reservation outweighs S01's larger per-chunk overhead (319 vs 317 chunks)")
}

func TestChunksPerSegmentClampsToRemainingMedia(t *testing.T) {
	media := MediaValues{ChunkSize: 32768, AmountOfChunks: 5}
	got := chunksPerSegment(1<<30, 16375, 0, 0, media, FormatEnCase2, FormatE01, false)
	assert.LessOrEqual(t, got, uint64(5))
}

func TestChunksPerSegmentZeroBudgetReturnsSoFar(t *testing.T) {
	media := MediaValues{ChunkSize: 32768}
	got := chunksPerSegment(0, 16375, 7, 0, media, FormatEnCase2, FormatE01, false)
	assert.Equal(t, uint64(7), got)
}

func TestChunksPerChunksSectionRestrictsToMax(t *testing.T) {
	got, err := chunksPerChunksSection(100, 1000, 1, false)
	assert.NoError(t, err)
	assert.Equal(t, uint64(100), got)
}

func TestChunksPerChunksSectionUnrestrictIgnoresMax(t *testing.T) {
	got, err := chunksPerChunksSection(100, 1000, 1, true)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1000), got)
}

func TestChunksPerChunksSectionExhausted(t *testing.T) {
	_, err := chunksPerChunksSection(100, 100, 2, false)
	assert.ErrorIs(t, err, ErrExceedsMaximum)
}

func TestSegmentFileFullOnMediaExhaustion(t *testing.T) {
	s := plannerSnapshot{amountOfChunks: 10, totalChunks: 10, remainingSegmentSize: 1 << 20, chunkSize: 4096}
	assert.True(t, segmentFileFull(s))
}

func TestSegmentFileFullOnRemainingSpace(t *testing.T) {
	s := plannerSnapshot{remainingSegmentSize: 10, chunkSize: 4096}
	assert.True(t, segmentFileFull(s))
}

func TestSegmentFileNotFull(t *testing.T) {
	s := plannerSnapshot{format: FormatEnCase2, remainingSegmentSize: 1 << 20, chunkSize: 4096}
	assert.False(t, segmentFileFull(s))
}

func TestChunksSectionFullRequiresOpenSection(t *testing.T) {
	s := plannerSnapshot{chunksSectionOpen: false, sectionChunks: 999999}
	assert.False(t, chunksSectionFull(s))
}

func TestChunksSectionFullOnMaxSectionChunks(t *testing.T) {
	s := plannerSnapshot{
		chunksSectionOpen:    true,
		maxSectionChunks:     10,
		sectionChunks:        10,
		remainingSegmentSize: 1 << 20,
		chunkSize:            4096,
	}
	assert.True(t, chunksSectionFull(s))
}

func TestChunksSectionFullUnrestrictIgnoresMaxSectionChunks(t *testing.T) {
	s := plannerSnapshot{
		chunksSectionOpen:    true,
		unrestrict:           true,
		maxSectionChunks:     10,
		sectionChunks:        10,
		chunksPerSection:     1000,
		remainingSegmentSize: 1 << 20,
		chunkSize:            4096,
	}
	assert.False(t, chunksSectionFull(s))
}

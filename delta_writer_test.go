package ewf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Scenario 5 (spec.md §8): delta-overwriting the same chunk twice leaves
// only the second value retrievable, with the primary image untouched.
func TestDeltaWriterOverwriteTwiceKeepsOnlyLatest(t *testing.T) {
	fs, pool := newMemPool(t)
	cfg := Config{
		Format:      FormatEnCase2,
		EWFFormat:   FormatE01,
		Media:       MediaValues{ChunkSize: 64},
		Compression: CompressionNone,
		PathPrefix:  "image",
	}
	coord := NewWriteCoordinator(pool, cfg)

	chunks := [][]byte{
		bytes.Repeat([]byte{0x01}, 64),
		bytes.Repeat([]byte{0x02}, 64),
		bytes.Repeat([]byte{0x03}, 64),
	}
	for _, c := range chunks {
		_, err := coord.WriteChunk(c)
		assert.NoError(t, err)
	}
	assert.NoError(t, coord.Finalize())

	primaryData := readSegmentBytes(t, fs, segmentPath(cfg, 1))
	originalEntry, ok := coord.table.get(1)
	assert.True(t, ok)
	assert.False(t, originalEntry.compressed)

	dw := NewDeltaWriter(pool, coord.cfg, coord.table)

	firstDelta := bytes.Repeat([]byte{0xaa}, 64)
	assert.NoError(t, dw.AppendDeltaChunk(1, firstDelta))

	afterFirst, ok := coord.table.get(1)
	assert.True(t, ok)
	assert.True(t, afterFirst.delta)
	assert.NotEqual(t, originalEntry.segment, afterFirst.segment, "first overwrite appends to a new delta segment")

	secondDelta := bytes.Repeat([]byte{0xbb}, 64)
	assert.NoError(t, dw.AppendDeltaChunk(1, secondDelta))

	afterSecond, ok := coord.table.get(1)
	assert.True(t, ok)
	assert.Equal(t, afterFirst.segment, afterSecond.segment, "second overwrite rewrites the existing delta segment in place")

	assert.Len(t, dw.deltaSegments, 1, "one delta segment handles both overwrites")
	deltaPath := "image.D01"
	deltaData := readSegmentBytes(t, fs, deltaPath)

	records := parseSections(t, deltaData)
	deltaChunkSections := 0
	for _, r := range records {
		if r.kind == sectionTypeDeltaChunk {
			deltaChunkSections++
		}
	}
	assert.Equal(t, 1, deltaChunkSections, "the in-place overwrite rewrites the same delta_chunk section rather than appending a new one")
	assert.Equal(t, "done", records[len(records)-1].kind)

	got := decodeChunkBytes(t, deltaData, afterSecond, len(secondDelta))
	assert.Equal(t, secondDelta, got, "reading chunk 1 back must yield the second delta's bytes, not the first")

	// The primary segment file is untouched by delta writes.
	stillPrimary := readSegmentBytes(t, fs, segmentPath(cfg, 1))
	assert.Equal(t, primaryData, stillPrimary)
}

func TestDeltaWriterRejectsOverwriteOfUnwrittenChunk(t *testing.T) {
	_, pool := newMemPool(t)
	cfg := Config{Media: MediaValues{ChunkSize: 64}, PathPrefix: "image"}
	table := &offsetTable{}
	dw := NewDeltaWriter(pool, &cfg, table)

	err := dw.AppendDeltaChunk(0, bytes.Repeat([]byte{1}, 64))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

// A delta segment whose size cap is exceeded opens a fresh delta segment
// in the chain rather than overflowing the current one.
func TestDeltaWriterRollsOverToNewDeltaSegment(t *testing.T) {
	fs, pool := newMemPool(t)
	cfg := Config{
		Format:               FormatEnCase2,
		EWFFormat:            FormatE01,
		Media:                MediaValues{ChunkSize: 64},
		Compression:          CompressionNone,
		DeltaSegmentFileSize: 200, // small enough to force a rollover after one chunk
		PathPrefix:           "image",
	}
	coord := NewWriteCoordinator(pool, cfg)
	for i := 0; i < 2; i++ {
		_, err := coord.WriteChunk(bytes.Repeat([]byte{byte(i)}, 64))
		assert.NoError(t, err)
	}
	assert.NoError(t, coord.Finalize())

	dw := NewDeltaWriter(pool, coord.cfg, coord.table)
	assert.NoError(t, dw.AppendDeltaChunk(0, bytes.Repeat([]byte{0xaa}, 64)))
	assert.NoError(t, dw.AppendDeltaChunk(1, bytes.Repeat([]byte{0xbb}, 64)))

	assert.Len(t, dw.deltaSegments, 2, "the tiny DeltaSegmentFileSize forces a second delta segment")

	firstData := readSegmentBytes(t, fs, "image.D01")
	firstRecords := parseSections(t, firstData)
	assert.Equal(t, []string{sectionTypeDeltaChunk, "next"}, sectionKinds(firstRecords),
		"D01's done terminator from closing out chunk 0 must be rolled back to a single next, not left behind a stray extra terminator")

	secondData := readSegmentBytes(t, fs, "image.D02")
	secondRecords := parseSections(t, secondData)
	assert.Equal(t, []string{sectionTypeDeltaChunk, "done"}, sectionKinds(secondRecords))
}

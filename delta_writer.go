package ewf

import (
	"fmt"
	"io"
)

// DeltaWriter implements component F (spec.md §4.F): appending delta
// chunks to the parallel delta-segment chain, or overwriting one
// in-place when the chunk being rewritten is already a delta chunk.
type DeltaWriter struct {
	cfg    *Config
	pool   FilePool
	writer *SegmentWriter
	table  *offsetTable

	deltaSegments []*segmentFile
}

// NewDeltaWriter builds a Delta Writer sharing the primary write's
// offset table: a delta overwrite must see, and can replace, any entry
// the primary Write Coordinator produced. Delta chunks are always
// stored raw (spec.md §4.F), so unlike the primary path there is no
// Chunk Processor here — just the plain seeded CRC.
func NewDeltaWriter(pool FilePool, cfg *Config, table *offsetTable) *DeltaWriter {
	return &DeltaWriter{
		cfg:    cfg,
		pool:   pool,
		writer: &SegmentWriter{Config: cfg},
		table:  table,
	}
}

// AppendDeltaChunk implements append_delta_chunk: rewriting the chunk at
// chunkIdx with raw. If the chunk was never written by the primary path,
// this is an error (there is nothing to overwrite).
func (d *DeltaWriter) AppendDeltaChunk(chunkIdx int, raw []byte) error {
	entry, ok := d.table.get(chunkIdx)
	if !ok {
		return fmt.Errorf("ewf: delta overwrite of unwritten chunk %d: %w", chunkIdx, ErrInvalidArgument)
	}
	if len(raw) == 0 {
		return ErrInvalidArgument
	}
	crc := checksum(raw)

	if entry.segment.fileType != segmentTypeDWF {
		return d.appendNewDelta(chunkIdx, raw, crc)
	}
	return d.overwriteInPlace(entry, chunkIdx, raw, crc)
}

func (d *DeltaWriter) lastDeltaSegment() *segmentFile {
	if len(d.deltaSegments) == 0 {
		return nil
	}
	return d.deltaSegments[len(d.deltaSegments)-1]
}

// appendNewDelta implements the "append" branch of §4.F: a chunk that
// has never been delta-rewritten is appended to the current (or a
// freshly opened) delta segment.
func (d *DeltaWriter) appendNewDelta(chunkIdx int, raw []byte, crc uint32) error {
	sf := d.lastDeltaSegment()
	payloadCost := int64(sectionHeaderSize) + 4 + int64(len(raw)) + 4
	terminatorCost := int64(sectionHeaderSize)

	if sf == nil {
		var err error
		sf, err = d.openDeltaSegment()
		if err != nil {
			return err
		}
	} else if sf.w.Size()+payloadCost+terminatorCost > d.cfg.DeltaSegmentFileSize {
		// sf's existing terminator was written as "done" by the previous
		// call (it was the last delta segment at the time); it no longer
		// is, so correct it to "next" in place before moving on instead
		// of appending a second terminator after it.
		if err := d.rollBackTerminator(sf); err != nil {
			return err
		}
		if _, err := d.writer.WriteLastSection(sf, false); err != nil {
			return err
		}
		var err error
		sf, err = d.openDeltaSegment()
		if err != nil {
			return err
		}
	} else if err := d.rollBackTerminator(sf); err != nil {
		return err
	}

	if _, err := d.writer.WriteDeltaChunk(sf, d.table, chunkIdx, raw, crc, true, false); err != nil {
		return err
	}
	_, err := d.writer.WriteLastSection(sf, true)
	return err
}

// rollBackTerminator undoes the "next"/"done" terminator section a prior
// call left at the end of the delta segment, so the new delta chunk can
// be appended before a fresh terminator is written.
func (d *DeltaWriter) rollBackTerminator(sf *segmentFile) error {
	return d.writer.rollBackTerminator(d.pool, sf)
}

func (d *DeltaWriter) openDeltaSegment() (*segmentFile, error) {
	number := uint16(len(d.deltaSegments) + 1)
	path := fmt.Sprintf("%s.D%02d", d.cfg.PathPrefix, number)
	h, err := d.pool.Open(path, osCreateFlags)
	if err != nil {
		return nil, err
	}
	sf := &segmentFile{handle: h, number: number, fileType: segmentTypeDWF, pool: d.pool}
	sf.w = newWriteSizer(poolWriter{d.pool, h})
	sf.writeOpen = true
	if _, err := d.writer.WriteStart(sf, d.cfg.Media, nil, nil); err != nil {
		return nil, err
	}
	d.deltaSegments = append(d.deltaSegments, sf)
	return sf, nil
}

// overwriteInPlace implements the "in-place overwrite" branch of §4.F:
// the chunk already lives in a delta_chunk section from a previous
// delta write, so this seeks back to that section's header and
// rewrites it rather than growing the chain.
func (d *DeltaWriter) overwriteInPlace(entry *offsetEntry, chunkIdx int, raw []byte, crc uint32) error {
	sf := entry.segment
	headerOffset := entry.fileOffset - 4 - sectionHeaderSize
	savedSize := sf.w.Size()

	if _, err := d.pool.Seek(sf.handle, headerOffset, io.SeekStart); err != nil {
		return newIoError("delta:overwrite_seek", headerOffset, err)
	}
	// Rewriting an existing delta_chunk section never changes the file's
	// length (the raw chunk length is fixed), so writeSizer's tracked
	// size is pinned to headerOffset for the duration of the write and
	// then restored, rather than left to drift from the real EOF.
	sf.w.truncateTo(headerOffset)
	_, err := d.writer.WriteDeltaChunk(sf, d.table, chunkIdx, raw, crc, true, true)
	sf.w.truncateTo(savedSize)
	if err != nil {
		return err
	}

	if _, err := d.pool.Seek(sf.handle, 0, io.SeekEnd); err != nil {
		return newIoError("delta:overwrite_seek_end", 0, err)
	}
	return nil
}

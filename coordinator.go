package ewf

import "fmt"

// WriteCoordinator implements component E (spec.md §4.E): the per-chunk
// state machine that turns a stream of AppendChunk calls into a
// sequence of correctly-sized, correctly-sectioned segment files.
type WriteCoordinator struct {
	cfg    *Config
	pool   FilePool
	writer *SegmentWriter
	proc   *ChunkProcessor
	table  *offsetTable

	segments []*segmentFile

	remainingSegmentFileSize int64
	chunksPerSegment         uint64
	chunksPerChunksSection   uint64
	chunksSectionOffset      int64
	chunksSectionNumber      uint32
	segmentChunks            uint64
	sectionChunks            uint64
	totalChunks              uint64
	inputWriteCount          uint64
	writeFinalized           bool
	createChunksSection      bool

	dataSectionCache []byte

	sessions      []Session
	acquiryErrors []AcquiryError
	hash          *HashValues
	logicalTree   LogicalTree
}

// NewWriteCoordinator builds a Write Coordinator writing through pool,
// using cfg (zero-valued fields take the defaults Config.setDefaults
// fills in).
func NewWriteCoordinator(pool FilePool, cfg Config) *WriteCoordinator {
	cfg.setDefaults()
	c := &WriteCoordinator{
		cfg:   &cfg,
		pool:  pool,
		table: &offsetTable{},
	}
	c.writer = &SegmentWriter{Config: c.cfg}
	c.proc = NewChunkProcessor(cfg.Compression, cfg.CompressEmptyBlock, cfg.EWFFormat)
	return c
}

// SetSessions, SetAcquiryErrors and SetHash stage the records emitted at
// Finalize by write_close; they are opaque pass-through value objects
// per spec.md §6.
func (c *WriteCoordinator) SetSessions(sessions []Session) { c.sessions = sessions }

func (c *WriteCoordinator) SetAcquiryErrors(errs []AcquiryError) { c.acquiryErrors = errs }

func (c *WriteCoordinator) SetHash(h *HashValues) { c.hash = h }

// SetLogicalTree stages the "ltree" record a logical-evidence (L01)
// acquisition attaches at Finalize (spec.md §6); nil means no such record
// is emitted, which is correct for a physical (E01/S01) acquisition.
func (c *WriteCoordinator) SetLogicalTree(tree LogicalTree) { c.logicalTree = tree }

func (c *WriteCoordinator) currentSegment() *segmentFile {
	return c.segments[len(c.segments)-1]
}

// WriteChunk implements the Write Coordinator's AppendChunk entry point
// (spec.md §4.E): it compresses/checksums raw via the Chunk Processor,
// then appends it at the next sequential chunk index.
func (c *WriteCoordinator) WriteChunk(raw []byte) (int, error) {
	if c.writeFinalized {
		return 0, nil
	}
	if c.cfg.Media.MediaSize > 0 && c.inputWriteCount >= c.cfg.Media.MediaSize {
		return 0, nil
	}

	result, payload, err := c.proc.Process(c.cfg.Media.ChunkSize, raw, nil)
	if err != nil {
		return 0, err
	}

	chunkIdx := int(c.totalChunks)
	if err := c.appendChunk(chunkIdx, payload, len(raw), result.Compressed, result.CRC); err != nil {
		return 0, err
	}
	return len(raw), nil
}

// appendChunk implements spec.md §4.E steps 1-5: open a segment/section
// as needed, write the chunk, update bookkeeping, and close the
// section/segment if the planner says it is now full. payload is
// already write-ready (its own CRC, raw or the compressed stream's
// trailing checksum, already appended) — see ChunkProcessor.Process.
func (c *WriteCoordinator) appendChunk(chunkIdx int, payload []byte, rawLen int, compressed bool, crc uint32) error {
	if _, ok := c.table.get(chunkIdx); ok {
		return ErrAlreadyWritten
	}

	if err := c.ensureSegmentOpen(); err != nil {
		return err
	}
	if c.createChunksSection {
		if err := c.openChunksSection(); err != nil {
			return err
		}
	}

	sf := c.currentSegment()
	n, err := c.writer.WriteChunkData(sf, c.table, chunkIdx, payload, compressed, crc, false)
	if err != nil {
		return err
	}

	c.segmentChunks++
	c.sectionChunks++
	c.totalChunks++
	c.inputWriteCount += uint64(rawLen)
	c.remainingSegmentFileSize -= n + 2*tableOffsetSize

	if chunksSectionFull(c.snapshot(sf)) {
		if _, err := c.closeChunksSection(sf); err != nil {
			return err
		}
		if segmentFileFull(c.snapshot(sf)) {
			more := c.cfg.Media.MediaSize == 0 || c.inputWriteCount < c.cfg.Media.MediaSize
			more = more && (c.cfg.Media.AmountOfChunks == 0 || c.totalChunks < c.cfg.Media.AmountOfChunks)
			if _, err := c.writer.WriteClose(sf, !more, nil, nil, nil, nil); err != nil {
				return err
			}
			sf.writeOpen = false
		}
	}
	return nil
}

func (c *WriteCoordinator) ensureSegmentOpen() error {
	if len(c.segments) > 0 && c.currentSegment().writeOpen {
		return nil
	}

	number := uint16(len(c.segments) + 1)
	fileType := primarySegmentFileType(c.cfg.Media)
	path := fmt.Sprintf("%s.%s", c.cfg.PathPrefix, segmentExtension(c.cfg.Format, c.cfg.EWFFormat, fileType, number))
	h, err := c.pool.Open(path, osCreateFlags)
	if err != nil {
		return err
	}
	sf := &segmentFile{handle: h, number: number, fileType: fileType, pool: c.pool}
	sf.w = newWriteSizer(poolWriter{c.pool, h})
	sf.writeOpen = true
	c.segments = append(c.segments, sf)

	n, err := c.writer.WriteStart(sf, c.cfg.Media, c.cfg.Headers, c.dataSectionCache)
	if err != nil {
		return err
	}
	if number == 1 {
		c.dataSectionCache = geometryPayload(c.cfg.Media, c.cfg.EWFFormat)
	}

	c.remainingSegmentFileSize = c.cfg.SegmentFileSize - int64(n) - sectionHeaderSize
	c.segmentChunks = 0
	c.sectionChunks = 0
	c.chunksSectionNumber = 0
	c.createChunksSection = true
	c.chunksPerSegment = chunksPerSegment(
		c.remainingSegmentFileSize, c.cfg.MaximumSectionChunks, c.segmentChunks, c.totalChunks,
		c.cfg.Media, c.cfg.Format, c.cfg.EWFFormat, c.cfg.UnrestrictOffsetAmount,
	)
	return nil
}

func (c *WriteCoordinator) openChunksSection() error {
	sf := c.currentSegment()
	c.remainingSegmentFileSize -= sectionHeaderSize
	c.chunksSectionOffset = sf.w.Size()
	c.chunksSectionNumber++

	c.chunksPerSegment = chunksPerSegment(
		c.remainingSegmentFileSize, c.cfg.MaximumSectionChunks, c.segmentChunks, c.totalChunks,
		c.cfg.Media, c.cfg.Format, c.cfg.EWFFormat, c.cfg.UnrestrictOffsetAmount,
	)
	cpcs, err := chunksPerChunksSection(c.cfg.MaximumSectionChunks, c.chunksPerSegment, c.chunksSectionNumber, c.cfg.UnrestrictOffsetAmount)
	if err != nil {
		return err
	}
	c.chunksPerChunksSection = cpcs

	n, err := c.writer.WriteChunksSectionStart(sf, cpcs)
	if err != nil {
		return err
	}
	c.remainingSegmentFileSize -= n
	c.createChunksSection = false
	return nil
}

func (c *WriteCoordinator) closeChunksSection(sf *segmentFile) (int64, error) {
	baseChunk := int(c.totalChunks - c.sectionChunks)
	n, err := c.writer.WriteChunksCorrection(sf, c.table, c.chunksSectionOffset, baseChunk, int(c.sectionChunks))
	if err != nil {
		return 0, err
	}
	c.chunksSectionOffset = 0
	c.sectionChunks = 0
	c.createChunksSection = true
	return n, nil
}

func (c *WriteCoordinator) snapshot(sf *segmentFile) plannerSnapshot {
	return plannerSnapshot{
		format:               c.cfg.Format,
		ewfFormat:            c.cfg.EWFFormat,
		unrestrict:           c.cfg.UnrestrictOffsetAmount,
		chunkSize:            c.cfg.Media.ChunkSize,
		mediaSize:            c.cfg.Media.MediaSize,
		amountOfChunks:       c.cfg.Media.AmountOfChunks,
		totalChunks:          c.totalChunks,
		inputWriteCount:      c.inputWriteCount,
		segmentChunks:        c.segmentChunks,
		sectionChunks:        c.sectionChunks,
		chunksPerSegment:     c.chunksPerSegment,
		chunksPerSection:     c.chunksPerChunksSection,
		maxSectionChunks:     c.cfg.MaximumSectionChunks,
		chunksSectionOpen:    c.chunksSectionOffset != 0,
		remainingSegmentSize: c.remainingSegmentFileSize,
		segmentOffset:        sf.w.Size(),
		sectionOffset:        c.chunksSectionOffset,
	}
}

// Finalize implements the Write Coordinator's flush/close behavior: it
// closes any open chunks section and the final segment file. Calling it
// again is a no-op, per spec.md §7 (Finalized is not an error).
func (c *WriteCoordinator) Finalize() error {
	if c.writeFinalized {
		return nil
	}
	if len(c.segments) > 0 {
		sf := c.currentSegment()
		if sf.writeOpen {
			if c.chunksSectionOffset != 0 {
				if _, err := c.closeChunksSection(sf); err != nil {
					return err
				}
			}
			if _, err := c.writer.WriteClose(sf, true, c.sessions, c.acquiryErrors, c.hash, c.logicalTree); err != nil {
				return err
			}
		} else {
			// appendChunk already closed sf without any trailing records:
			// with "next" when the media size/amount was unknown, so it could
			// not tell that no further chunks would arrive, or with "done"
			// when the media was exhausted. Now that Finalize has been
			// called, roll back that terminator, attach the trailing records
			// and write "done", instead of leaving the last segment marked
			// "next" or lacking its records.
			if err := c.writer.rollBackTerminator(c.pool, sf); err != nil {
				return err
			}
			if _, err := c.writer.WriteClose(sf, true, c.sessions, c.acquiryErrors, c.hash, c.logicalTree); err != nil {
				return err
			}
		}
	}
	c.writeFinalized = true
	return nil
}

// TotalChunks reports how many chunks have been accepted so far.
func (c *WriteCoordinator) TotalChunks() uint64 { return c.totalChunks }

// primarySegmentFileType picks the primary-chain segmentFileType for an
// acquisition: logical-evidence media (§6: "the equivalent L01/D01
// signature for alternate file types") gets the "LVF"/L01 variant, every
// other media type gets the ordinary "EVF"/E01-or-S01 variant.
func primarySegmentFileType(media MediaValues) segmentFileType {
	if media.Geometry.MediaType == MediaTypeLogical {
		return segmentTypeLWF
	}
	return segmentTypeEWF
}

func segmentExtension(format Format, ewfFormat EWFFormat, fileType segmentFileType, number uint16) string {
	prefix := "E"
	switch {
	case fileType == segmentTypeLWF:
		prefix = "L"
	case ewfFormat == FormatS01:
		prefix = "S"
	}
	return fmt.Sprintf("%s%02d", prefix, number)
}

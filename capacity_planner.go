package ewf

// Component B: pure capacity-estimation functions over plain integers, so
// they can be (and are, in capacity_planner_test.go) tested without any
// file I/O. The exact arithmetic, including the two spots spec.md §9
// flags as preserved-as-specified rather than corrected, is kept verbatim.

// perChunkOverhead is the average per-chunk bookkeeping overhead the
// planner reserves against remaining segment space (spec.md §4.B step 1):
// 16 bytes for S01 (the format's average deflate tax), 4 bytes elsewhere
// (CRC only). Table entries, and table2 entries where present, are
// accounted for separately in the per-section reservation for every format.
func perChunkOverhead(ewfFormat EWFFormat) int64 {
	if ewfFormat == FormatS01 {
		return 16
	}
	return 4
}

// chunksPerSegment estimates the total number of chunks the current
// segment file will hold, given the space remaining in its budget
// (spec.md §4.B, steps 1-5).
func chunksPerSegment(
	remaining int64,
	maxSectionChunks uint32,
	segmentChunksSoFar uint64,
	totalChunksSoFar uint64,
	media MediaValues,
	format Format,
	ewfFormat EWFFormat,
	unrestrict bool,
) uint64 {
	chunkCost := int64(media.ChunkSize) + perChunkOverhead(ewfFormat)
	if chunkCost <= 0 || remaining <= 0 {
		return segmentChunksSoFar
	}
	maxChunks := remaining / chunkCost

	var requiredSections int64
	if unrestrict {
		requiredSections = 1
	} else if maxSectionChunks > 0 {
		// Preserved verbatim: spec.md §9 flags this modulo as possibly
		// intended to be a ceiling division, and explicitly says not to
		// guess intent. Do not "fix" this without re-deriving the format
		// from a real image.
		requiredSections = maxChunks % int64(maxSectionChunks)
	}

	var reserved int64
	switch {
	case ewfFormat == FormatS01:
		reserved = sectionHeaderSize*requiredSections + tableOffsetSize*maxChunks
	case format == FormatEnCase1:
		reserved = (sectionHeaderSize+4)*requiredSections + tableOffsetSize*maxChunks
	default:
		reserved = (3*sectionHeaderSize+8)*requiredSections + 2*tableOffsetSize*maxChunks
	}

	budget := remaining - reserved
	var estimate int64
	if budget > 0 {
		estimate = budget / chunkCost
	}

	total := estimate
	if media.AmountOfChunks > 0 {
		remainingMedia := int64(media.AmountOfChunks) - int64(totalChunksSoFar)
		if remainingMedia < 0 {
			remainingMedia = 0
		}
		if total > remainingMedia {
			total = remainingMedia
		}
	}

	total += int64(segmentChunksSoFar)
	if total < 0 {
		total = 0
	}
	if uint64(total) > maxUint32 {
		return maxUint32
	}
	return uint64(total)
}

// chunksPerChunksSection estimates how many chunks the Nth chunks section
// of the current segment will hold (spec.md §4.B).
func chunksPerChunksSection(maxSectionChunks uint32, segmentChunksPerSegment uint64, sectionNumber uint32, unrestrict bool) (uint64, error) {
	if sectionNumber == 0 {
		return 0, ErrInvalidArgument
	}
	remaining := int64(segmentChunksPerSegment) - int64(sectionNumber-1)*int64(maxSectionChunks)
	if remaining <= 0 {
		return 0, ErrExceedsMaximum
	}
	if !unrestrict && maxSectionChunks > 0 && remaining > int64(maxSectionChunks) {
		remaining = int64(maxSectionChunks)
	}
	if remaining > maxUint31 {
		remaining = maxUint31
	}
	return uint64(remaining), nil
}

// plannerSnapshot is the read-only view of Write-Coordinator state that
// segmentFileFull and chunksSectionFull need; building it explicitly
// keeps those two predicates pure functions of plain data, per spec.md's
// framing of the Capacity Planner as arithmetic, not stateful logic.
type plannerSnapshot struct {
	format    Format
	ewfFormat EWFFormat

	unrestrict       bool
	chunkSize        uint32
	mediaSize        uint64
	amountOfChunks   uint64
	totalChunks      uint64
	inputWriteCount  uint64
	segmentChunks    uint64
	sectionChunks    uint64
	chunksPerSegment uint64
	chunksPerSection uint64
	maxSectionChunks uint32

	chunksSectionOpen    bool
	remainingSegmentSize int64
	segmentOffset        int64
	sectionOffset        int64
}

// segmentFileFull reports whether the current segment file should be
// closed before writing another chunk (spec.md §4.B).
func segmentFileFull(s plannerSnapshot) bool {
	switch {
	case s.amountOfChunks > 0 && s.totalChunks >= s.amountOfChunks:
		return true
	case s.mediaSize > 0 && s.inputWriteCount >= s.mediaSize:
		return true
	case (s.ewfFormat == FormatS01 || s.format == FormatEnCase1) && s.segmentChunks >= s.chunksPerSegment:
		return true
	}
	return s.remainingSegmentSize < int64(s.chunkSize)+4
}

// chunksSectionFull reports whether the open chunks section should be
// closed before writing another chunk (spec.md §4.B).
func chunksSectionFull(s plannerSnapshot) bool {
	if !s.chunksSectionOpen {
		return false
	}
	switch {
	case s.amountOfChunks > 0 && s.totalChunks >= s.amountOfChunks:
		return true
	case s.mediaSize > 0 && s.inputWriteCount >= s.mediaSize:
		return true
	case !s.unrestrict && s.maxSectionChunks > 0 && s.sectionChunks >= uint64(s.maxSectionChunks):
		return true
	case s.sectionChunks > maxUint31:
		return true
	case s.segmentOffset-s.sectionOffset > maxUint31:
		return true
	case (s.ewfFormat == FormatS01 || s.format == FormatEnCase1) && s.sectionChunks >= s.chunksPerSection:
		return true
	}
	return s.remainingSegmentSize < int64(s.chunkSize)+4
}

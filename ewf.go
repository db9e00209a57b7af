// Package ewf implements the write path of a segmented EWF/EnCase
// forensic disk-image container: compressing and checksumming chunks,
// planning segment and section capacity, tracking where each chunk's
// data lives, and emitting the section-framed segment files (and their
// parallel delta-overwrite chain) that make up one acquisition.
package ewf

// On-disk segment file signatures (spec.md §6): 8 bytes identifying the
// segment file's family before the fields-start/segment-number/
// fields-end trailer.
var (
	SignatureEWF = [8]byte{'E', 'V', 'F', 0x09, 0x0d, 0x0a, 0xff, 0x00}
	SignatureLWF = [8]byte{'L', 'V', 'F', 0x09, 0x0d, 0x0a, 0xff, 0x00} // logical evidence (L01)
	SignatureDWF = [8]byte{'D', 'V', 'F', 0x09, 0x0d, 0x0a, 0xff, 0x00} // delta overlay (D01)
)

const (
	fileHeaderSize    = 12 // 8-byte signature + 1 fields-start + 2 segment number + 1 fields-end
	sectionHeaderSize = 76 // 16-byte type + 8-byte next offset + 8-byte size + 40 reserved + 4-byte CRC
	tableOffsetSize   = 4

	maxUint31 = 1<<31 - 1
	maxUint32 = 1<<32 - 1
)

// segmentFileType distinguishes the primary EWF/EnCase image chain, the
// logical-evidence (L01) variant of that same chain, and the parallel
// delta-overwrite chain (§4.F); each carries its own file signature.
type segmentFileType int

const (
	segmentTypeEWF segmentFileType = iota
	segmentTypeLWF
	segmentTypeDWF
)

// Section type names (16-byte, null-padded fields). spec.md §6 names
// these; this is the literal set.
const (
	sectionTypeHeader     = "header"
	sectionTypeHeader2    = "header2"
	sectionTypeXHeader    = "xheader"
	sectionTypeVolume     = "volume"
	sectionTypeDisk       = "disk"
	sectionTypeData       = "data"
	sectionTypeSectors    = "sectors"
	sectionTypeTable      = "table"
	sectionTypeTable2     = "table2"
	sectionTypeNext       = "next"
	sectionTypeDone       = "done"
	sectionTypeError2     = "error2"
	sectionTypeSession    = "session"
	sectionTypeHash       = "hash"
	sectionTypeDigest     = "digest"
	sectionTypeLtree      = "ltree"
	sectionTypeDeltaChunk = "delta_chunk"
)

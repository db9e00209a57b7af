package ewf

// Format is the EnCase on-disk variant a segment file declares
// compliance with; it selects the section sequence and per-section
// overhead used by the Capacity Planner and Segment File Writer.
type Format int

const (
	FormatEnCase1 Format = iota
	FormatEnCase2
	FormatEnCase3
	FormatEnCase4
	FormatEnCase5
	FormatEnCase6
	FormatEWFX
	FormatLinEn
	FormatFTK
	FormatSMART
)

// EWFFormat is the coarse on-disk family: the original EWF-S01 "SMART"
// layout, or the newer E01 EnCase layout.
type EWFFormat int

const (
	FormatE01 EWFFormat = iota
	FormatS01
)

// MediaGeometry carries the sector/CHS geometry and media-type fields
// that pass through untouched into the volume/data section (spec.md §3:
// "sector/geometry fields passed through to the volume section"). Field
// widths and byte-enum values follow the laenix-ewfgo reference reader's
// EWFSpecification/DiskSMART structs.
type MediaGeometry struct {
	MediaType              byte
	MediaFlags             byte
	BytesPerSector         uint32
	SectorsPerChunk        uint32
	CHSCylinders           uint32
	CHSHeads               uint32
	CHSSectors             uint32
	PALMVolumeStartSector  uint32
	SMARTLogsStartSector   uint32
	CompressionLevel       byte
	SectorErrorGranularity uint32
	SegmentFileSetID       [16]byte
}

// Media type byte values (laenix-ewfgo constants).
const (
	MediaTypeRemovable  byte = 0x00
	MediaTypeFixed      byte = 0x01
	MediaTypeOptical    byte = 0x03
	MediaTypeLogical    byte = 0x0e
	MediaTypeRAM        byte = 0x10
)

// Media flag byte values (laenix-ewfgo constants).
const (
	MediaFlagImageFile       byte = 0x01
	MediaFlagPhysicalDevice  byte = 0x02
	MediaFlagFastblocWB      byte = 0x04
	MediaFlagTableauWB       byte = 0x08
)

// MediaGeometryCompressionLevel byte values (laenix-ewfgo constants,
// distinct from the Chunk Processor's own CompressionLevel enum — this
// one is the informational value recorded in the volume/data section).
const (
	MediaGeometryNoCompression   byte = 0x00
	MediaGeometryGoodCompression byte = 0x01
	MediaGeometryBestCompression byte = 0x02
)

// MediaValues describes the media being imaged. It is read-only during
// writing (spec.md §3).
type MediaValues struct {
	ChunkSize      uint32
	MediaSize      uint64 // 0 = unknown
	AmountOfChunks uint64 // 0 = unknown
	Geometry       MediaGeometry
}

// HeaderValues, Session, AcquiryError and HashValues are the opaque value
// objects spec.md §6 says the caller produces and this engine only
// serializes through format-specific encoders.
type HeaderValues map[string]string

type Session struct {
	FirstSector uint64
	NumSectors  uint64
}

type AcquiryError struct {
	FirstSector uint64
	NumSectors  uint64
}

type HashValues struct {
	MD5  [16]byte
	SHA1 [20]byte
}

// LogicalTree is the opaque serialized directory/file tree record carried
// by logical-evidence (L01) acquisitions in the "ltree" section (spec.md
// §6). Its content is caller-produced; this engine deflates it and
// appends it behind a section header and CRC like every other
// pass-through record.
type LogicalTree []byte

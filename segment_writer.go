package ewf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// sectionDescriptor records where one already-written section lives in
// its segment file, so a later correction pass (write_chunks_correction)
// can seek back and rewrite its header.
type sectionDescriptor struct {
	kind   string
	offset int64
	size   int64
}

// segmentFile is one open segment file (primary EWF/EnCase, or a delta
// overlay) together with the bookkeeping the Segment File Writer needs:
// its file-pool handle, a size-tracking writer over it, and the sections
// written so far.
type segmentFile struct {
	handle    Handle
	number    uint16
	fileType  segmentFileType
	pool      FilePool
	w         *writeSizer
	sections  []sectionDescriptor
	writeOpen bool
}

func encodeFileHeader(sig [8]byte, segmentNumber uint16) []byte {
	buf := make([]byte, fileHeaderSize)
	copy(buf[0:8], sig[:])
	buf[8] = 1 // fields-start
	binary.LittleEndian.PutUint16(buf[9:11], segmentNumber)
	buf[11] = 0 // fields-end
	return buf
}

// encodeSectionHeader builds the 76-byte section header: a 16-byte
// null-padded type name, 8-byte next-section offset, 8-byte section
// size, 40 reserved bytes, and a 4-byte CRC over the preceding 72 bytes
// (spec.md §6).
func encodeSectionHeader(sectionType string, nextOffset, size uint64) []byte {
	buf := make([]byte, sectionHeaderSize)
	putFixedString(buf[0:16], sectionType)
	binary.LittleEndian.PutUint64(buf[16:24], nextOffset)
	binary.LittleEndian.PutUint64(buf[24:32], size)
	crc := checksum(buf[:72])
	binary.LittleEndian.PutUint32(buf[72:76], crc)
	return buf
}

// SegmentWriter implements component D (spec.md §4.D): it turns
// Write-Coordinator decisions into on-disk bytes through a FilePool.
type SegmentWriter struct {
	Config *Config
}

// appendSection writes one section (header, sized and CRC'd over the
// payload that follows it) and records its descriptor.
func (w *SegmentWriter) appendSection(sf *segmentFile, kind string, payload []byte) (int64, error) {
	offset := sf.w.Size()
	size := int64(sectionHeaderSize) + int64(len(payload))
	hdr := encodeSectionHeader(kind, uint64(offset+size), uint64(size))
	if _, err := sf.w.Write(hdr); err != nil {
		return 0, newIoError("write_section_header:"+kind, offset, err)
	}
	if len(payload) > 0 {
		if _, err := sf.w.Write(payload); err != nil {
			return 0, newIoError("write_section_payload:"+kind, offset, err)
		}
	}
	sf.sections = append(sf.sections, sectionDescriptor{kind: kind, offset: offset, size: size})
	return size, nil
}

// rollBackTerminator undoes the "next"/"done" terminator section a prior
// close left at the end of sf, so a caller that finds a segment already
// closed can correct its terminator in place (e.g. a primary segment
// auto-closed "next" because more input could still arrive, which
// Finalize later learns was not the case) instead of appending a second
// terminator after it.
func (w *SegmentWriter) rollBackTerminator(pool FilePool, sf *segmentFile) error {
	if len(sf.sections) == 0 {
		return nil
	}
	last := sf.sections[len(sf.sections)-1]
	if last.kind != sectionTypeNext && last.kind != sectionTypeDone {
		return nil
	}
	sf.sections = sf.sections[:len(sf.sections)-1]
	if _, err := pool.Seek(sf.handle, last.offset, io.SeekStart); err != nil {
		return newIoError("rollback_terminator", last.offset, err)
	}
	sf.w.truncateTo(last.offset)
	return nil
}

// WriteStart implements write_start: the file header, and on segment 1
// the header/volume sections, or on later segments the cached data
// section (spec.md §4.D).
func (w *SegmentWriter) WriteStart(sf *segmentFile, media MediaValues, headers HeaderValues, dataCache []byte) (int64, error) {
	sig := SignatureEWF
	switch sf.fileType {
	case segmentTypeLWF:
		sig = SignatureLWF
	case segmentTypeDWF:
		sig = SignatureDWF
	}
	fh := encodeFileHeader(sig, sf.number)
	if _, err := sf.w.Write(fh); err != nil {
		return 0, newIoError("write_start", 0, err)
	}
	written := int64(len(fh))

	if sf.fileType == segmentTypeDWF {
		return written, nil
	}

	if sf.number == 1 {
		n, err := w.writeHeaderSections(sf, headers)
		if err != nil {
			return written, err
		}
		written += n

		n, err = w.appendSection(sf, sectionTypeVolume, geometryPayload(media, w.Config.EWFFormat))
		if err != nil {
			return written, err
		}
		written += n

		if w.Config.Format == FormatEnCase1 {
			n, err = w.appendSection(sf, sectionTypeDisk, geometryPayload(media, w.Config.EWFFormat))
			if err != nil {
				return written, err
			}
			written += n
		}
	} else if dataCache != nil {
		n, err := w.appendSection(sf, sectionTypeData, dataCache)
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

func (w *SegmentWriter) writeHeaderSections(sf *segmentFile, headers HeaderValues) (int64, error) {
	payload, err := encodeHeaderPayload(headers)
	if err != nil {
		return 0, err
	}
	var total int64
	n, err := w.appendSection(sf, sectionTypeHeader, payload)
	if err != nil {
		return total, err
	}
	total += n

	if w.Config.Format >= FormatEnCase2 && w.Config.Format != FormatEWFX {
		n, err = w.appendSection(sf, sectionTypeHeader2, payload)
		if err != nil {
			return total, err
		}
		total += n
	}
	if w.Config.Format == FormatEWFX {
		n, err = w.appendSection(sf, sectionTypeXHeader, payload)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// chunksSectionPlaceholderKind returns the section type used for the
// chunks-section placeholder written at write_chunks_section_start: for
// S01/ENCASE1 the "table" section header itself doubles as that
// placeholder (chunk bytes and, at correction time, the offset array all
// live inside it — spec.md §6: "a single table section ... no table2");
// for newer formats it is the "sectors" marker, with table/table2
// following as their own sections once the section closes.
func (w *SegmentWriter) chunksSectionPlaceholderKind() string {
	if w.Config.EWFFormat == FormatS01 || w.Config.Format == FormatEnCase1 {
		return sectionTypeTable
	}
	return sectionTypeSectors
}

// WriteChunksSectionStart implements write_chunks_section_start: a
// placeholder chunks-section header sized for the planner's estimate.
func (w *SegmentWriter) WriteChunksSectionStart(sf *segmentFile, capacityEstimate uint64) (int64, error) {
	kind := w.chunksSectionPlaceholderKind()
	offset := sf.w.Size()
	guessedSize := int64(sectionHeaderSize) + int64(capacityEstimate)*(int64(w.Config.Media.ChunkSize)+4)
	hdr := encodeSectionHeader(kind, uint64(offset+guessedSize), uint64(guessedSize))
	if _, err := sf.w.Write(hdr); err != nil {
		return 0, newIoError("write_chunks_section_start", offset, err)
	}
	sf.sections = append(sf.sections, sectionDescriptor{kind: kind, offset: offset, size: guessedSize})
	return int64(sectionHeaderSize), nil
}

// WriteChunkData implements write_chunk_data: appends one chunk's
// payload (and, if requested, its CRC) and records its offset-table
// entry.
func (w *SegmentWriter) WriteChunkData(sf *segmentFile, table *offsetTable, chunkIdx int, payload []byte, compressed bool, crc uint32, writeCRC bool) (int64, error) {
	fileOffset := sf.w.Size()
	if _, err := sf.w.Write(payload); err != nil {
		return 0, newIoError("write_chunk_data", fileOffset, err)
	}
	written := int64(len(payload))
	if writeCRC {
		crcBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(crcBuf, crc)
		if _, err := sf.w.Write(crcBuf); err != nil {
			return written, newIoError("write_chunk_crc", fileOffset+written, err)
		}
		written += 4
	}
	entry := &offsetEntry{segment: sf, fileOffset: fileOffset, size: written, compressed: compressed}
	if err := table.set(chunkIdx, entry, false); err != nil {
		return written, err
	}
	return written, nil
}

// buildOffsetArray serializes the table payload for [baseChunk,
// baseChunk+count): count, base offset, count relative offsets (with the
// high bit set iff compressed), and a trailing CRC (spec.md §6).
func buildOffsetArray(table *offsetTable, sectionOffset int64, baseChunk, count int) ([]byte, error) {
	buf := make([]byte, 8+4*count+4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(count))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(sectionOffset))
	for i := 0; i < count; i++ {
		entry, ok := table.get(baseChunk + i)
		if !ok {
			return nil, fmt.Errorf("ewf: table correction: missing chunk %d: %w", baseChunk+i, ErrInvalidArgument)
		}
		rel := uint32(entry.fileOffset - sectionOffset)
		if entry.compressed {
			rel |= 0x80000000
		}
		binary.LittleEndian.PutUint32(buf[8+4*i:], rel)
	}
	crc := checksum(buf[:8+4*count])
	binary.LittleEndian.PutUint32(buf[8+4*count:], crc)
	return buf, nil
}

func (w *SegmentWriter) rewriteSectionHeader(sf *segmentFile, desc *sectionDescriptor, nextOffset, size uint64) error {
	hdr := encodeSectionHeader(desc.kind, nextOffset, size)
	if _, err := sf.pool.Seek(sf.handle, desc.offset, io.SeekStart); err != nil {
		return newIoError("chunks_correction:seek_header", desc.offset, err)
	}
	if _, err := sf.pool.Write(sf.handle, hdr); err != nil {
		return newIoError("chunks_correction:rewrite_header", desc.offset, err)
	}
	return nil
}

// WriteChunksCorrection implements write_chunks_correction: rewrites the
// chunks-section placeholder's true size and, for formats that use them,
// appends the table and table2 sections (spec.md §4.D).
func (w *SegmentWriter) WriteChunksCorrection(sf *segmentFile, table *offsetTable, sectionOffset int64, baseChunk, count int) (int64, error) {
	if len(sf.sections) == 0 {
		return 0, ErrNoChunksSection
	}
	desc := &sf.sections[len(sf.sections)-1]
	if desc.offset != sectionOffset {
		return 0, fmt.Errorf("ewf: chunks correction: section offset mismatch: %w", ErrInvalidArgument)
	}
	endOfFile := sf.w.Size()

	offsets, err := buildOffsetArray(table, sectionOffset, baseChunk, count)
	if err != nil {
		return 0, err
	}

	var appended int64
	if w.Config.EWFFormat == FormatS01 || w.Config.Format == FormatEnCase1 {
		newSize := (endOfFile - desc.offset) + int64(len(offsets))
		if err := w.rewriteSectionHeader(sf, desc, uint64(endOfFile+int64(len(offsets))), uint64(newSize)); err != nil {
			return 0, err
		}
		desc.size = newSize
		if _, err := sf.pool.Seek(sf.handle, endOfFile, io.SeekStart); err != nil {
			return 0, newIoError("chunks_correction:seek_end", endOfFile, err)
		}
		if _, err := sf.w.Write(offsets); err != nil {
			return 0, newIoError("chunks_correction:write_table", endOfFile, err)
		}
		appended = int64(len(offsets))
	} else {
		newSize := endOfFile - desc.offset
		if err := w.rewriteSectionHeader(sf, desc, uint64(endOfFile), uint64(newSize)); err != nil {
			return 0, err
		}
		desc.size = newSize
		if _, err := sf.pool.Seek(sf.handle, endOfFile, io.SeekStart); err != nil {
			return 0, newIoError("chunks_correction:seek_end", endOfFile, err)
		}
		n1, err := w.appendSection(sf, sectionTypeTable, offsets)
		if err != nil {
			return 0, err
		}
		n2, err := w.appendSection(sf, sectionTypeTable2, offsets)
		if err != nil {
			return 0, err
		}
		appended = n1 + n2
	}
	if _, err := sf.pool.Seek(sf.handle, 0, io.SeekEnd); err != nil {
		return appended, newIoError("chunks_correction:seek_eof", 0, err)
	}
	return appended, nil
}

// WriteDeltaChunk implements write_delta_chunk: emits one delta_chunk
// section (a 4-byte plaintext length, the raw chunk, and optionally its
// CRC). When noSectionAppend is true, the caller has already seeked to
// an existing delta_chunk section for an in-place overwrite, and the
// section list is left untouched.
func (w *SegmentWriter) WriteDeltaChunk(sf *segmentFile, table *offsetTable, chunkIdx int, raw []byte, crc uint32, writeCRC bool, noSectionAppend bool) (int64, error) {
	offset := sf.w.Size()
	payloadLen := int64(4) + int64(len(raw))
	if writeCRC {
		payloadLen += 4
	}
	sectionSize := int64(sectionHeaderSize) + payloadLen
	hdr := encodeSectionHeader(sectionTypeDeltaChunk, uint64(offset+sectionSize), uint64(sectionSize))
	if _, err := sf.w.Write(hdr); err != nil {
		return 0, newIoError("write_delta_chunk:header", offset, err)
	}
	szBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(szBuf, uint32(len(raw)))
	if _, err := sf.w.Write(szBuf); err != nil {
		return 0, newIoError("write_delta_chunk:size", offset, err)
	}
	if _, err := sf.w.Write(raw); err != nil {
		return 0, newIoError("write_delta_chunk:data", offset, err)
	}
	if writeCRC {
		crcBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(crcBuf, crc)
		if _, err := sf.w.Write(crcBuf); err != nil {
			return 0, newIoError("write_delta_chunk:crc", offset, err)
		}
	}
	if !noSectionAppend {
		sf.sections = append(sf.sections, sectionDescriptor{kind: sectionTypeDeltaChunk, offset: offset, size: sectionSize})
	}
	entry := &offsetEntry{
		segment:    sf,
		fileOffset: offset + sectionHeaderSize + 4,
		size:       int64(len(raw)),
		compressed: false,
		delta:      true,
	}
	if err := table.set(chunkIdx, entry, true); err != nil {
		return 0, err
	}
	return sectionSize, nil
}

// WriteLastSection implements write_last_section: a bare "next" or
// "done" terminator section.
func (w *SegmentWriter) WriteLastSection(sf *segmentFile, isLast bool) (int64, error) {
	kind := sectionTypeNext
	if isLast {
		kind = sectionTypeDone
	}
	n, err := w.appendSection(sf, kind, nil)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// WriteClose implements write_close: on the final segment, the optional
// session/error2/hash/digest/ltree records, then the terminator section.
func (w *SegmentWriter) WriteClose(sf *segmentFile, isLast bool, sessions []Session, acquiryErrors []AcquiryError, hash *HashValues, logicalTree LogicalTree) (int64, error) {
	var total int64
	if sf.fileType != segmentTypeDWF && isLast {
		if len(sessions) > 0 {
			n, err := w.appendSection(sf, sectionTypeSession, encodeSessions(sessions))
			if err != nil {
				return total, err
			}
			total += n
		}
		if len(acquiryErrors) > 0 {
			n, err := w.appendSection(sf, sectionTypeError2, encodeAcquiryErrors(acquiryErrors))
			if err != nil {
				return total, err
			}
			total += n
		}
		if hash != nil {
			n, err := w.appendSection(sf, sectionTypeHash, encodeHash(hash))
			if err != nil {
				return total, err
			}
			total += n
			n, err = w.appendSection(sf, sectionTypeDigest, encodeDigest(hash))
			if err != nil {
				return total, err
			}
			total += n
		}
		if len(logicalTree) > 0 {
			payload, err := encodeLogicalTree(logicalTree)
			if err != nil {
				return total, err
			}
			n, err := w.appendSection(sf, sectionTypeLtree, payload)
			if err != nil {
				return total, err
			}
			total += n
		}
	}
	n, err := w.WriteLastSection(sf, isLast)
	if err != nil {
		return total, err
	}
	total += n
	sf.writeOpen = false
	return total, nil
}

// geometryPayload encodes the media-geometry struct for the
// volume/data/disk section, following the laenix-ewfgo reference
// reader's DiskSMART (1052 bytes, S01) and EWFSpecification (94 bytes,
// E01) field layouts (other_examples).
func geometryPayload(media MediaValues, ewfFormat EWFFormat) []byte {
	g := media.Geometry
	if ewfFormat == FormatS01 {
		buf := make([]byte, 1052)
		buf[0] = g.MediaType
		binary.LittleEndian.PutUint32(buf[4:8], uint32(media.AmountOfChunks))
		binary.LittleEndian.PutUint32(buf[8:12], g.SectorsPerChunk)
		binary.LittleEndian.PutUint32(buf[12:16], g.BytesPerSector)
		sectorCount := uint64(0)
		if g.BytesPerSector > 0 {
			sectorCount = media.MediaSize / uint64(g.BytesPerSector)
		}
		binary.LittleEndian.PutUint64(buf[16:24], sectorCount)
		binary.LittleEndian.PutUint32(buf[24:28], g.CHSCylinders)
		binary.LittleEndian.PutUint32(buf[28:32], g.CHSHeads)
		binary.LittleEndian.PutUint32(buf[32:36], g.CHSSectors)
		buf[36] = g.MediaFlags
		binary.LittleEndian.PutUint32(buf[40:44], g.PALMVolumeStartSector)
		binary.LittleEndian.PutUint32(buf[48:52], g.SMARTLogsStartSector)
		buf[52] = g.CompressionLevel
		binary.LittleEndian.PutUint32(buf[56:60], g.SectorErrorGranularity)
		copy(buf[64:80], g.SegmentFileSetID[:])
		putFixedString(buf[1043:1048], "SMART")
		crc := checksum(buf[:1048])
		binary.LittleEndian.PutUint32(buf[1048:1052], crc)
		return buf
	}

	buf := make([]byte, 94)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(media.AmountOfChunks))
	binary.LittleEndian.PutUint32(buf[8:12], g.SectorsPerChunk)
	binary.LittleEndian.PutUint32(buf[12:16], g.BytesPerSector)
	sectorCount := uint32(0)
	if g.BytesPerSector > 0 {
		sectorCount = uint32(media.MediaSize / uint64(g.BytesPerSector))
	}
	binary.LittleEndian.PutUint32(buf[16:20], sectorCount)
	putFixedString(buf[85:90], "EWF")
	crc := checksum(buf[:90])
	binary.LittleEndian.PutUint32(buf[90:94], crc)
	return buf
}

// encodeHeaderPayload renders the caller-supplied header key/value pairs
// as tab-delimited text (the EnCase header convention) and deflates it,
// since spec.md §6 treats header values as an "opaque value object
// produced by caller" that the engine only serializes.
func encodeHeaderPayload(headers HeaderValues) ([]byte, error) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make([]string, len(keys))
	for i, k := range keys {
		vals[i] = headers[k]
	}

	var text bytes.Buffer
	text.WriteString("\xff\xfe")
	text.WriteString("1\nmain\n")
	text.WriteString(strings.Join(keys, "\t") + "\n")
	text.WriteString(strings.Join(vals, "\t") + "\n\n")

	var out bytes.Buffer
	zw := zlib.NewWriter(&out)
	if _, err := zw.Write(text.Bytes()); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// encodeLogicalTree deflates the caller-supplied logical-evidence tree
// record, the same "opaque value object, engine only serializes it"
// treatment encodeHeaderPayload gives header text (spec.md §6).
func encodeLogicalTree(tree LogicalTree) ([]byte, error) {
	var out bytes.Buffer
	zw := zlib.NewWriter(&out)
	if _, err := zw.Write(tree); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func encodeSessions(sessions []Session) []byte {
	buf := make([]byte, 4+len(sessions)*16+4)
	binary.LittleEndian.PutUint32(buf, uint32(len(sessions)))
	off := 4
	for _, s := range sessions {
		binary.LittleEndian.PutUint64(buf[off:], s.FirstSector)
		binary.LittleEndian.PutUint64(buf[off+8:], s.NumSectors)
		off += 16
	}
	crc := checksum(buf[:off])
	binary.LittleEndian.PutUint32(buf[off:], crc)
	return buf
}

func encodeAcquiryErrors(errs []AcquiryError) []byte {
	buf := make([]byte, 4+len(errs)*16+4)
	binary.LittleEndian.PutUint32(buf, uint32(len(errs)))
	off := 4
	for _, e := range errs {
		binary.LittleEndian.PutUint64(buf[off:], e.FirstSector)
		binary.LittleEndian.PutUint64(buf[off+8:], e.NumSectors)
		off += 16
	}
	crc := checksum(buf[:off])
	binary.LittleEndian.PutUint32(buf[off:], crc)
	return buf
}

func encodeHash(h *HashValues) []byte {
	buf := make([]byte, 16+4)
	copy(buf, h.MD5[:])
	crc := checksum(buf[:16])
	binary.LittleEndian.PutUint32(buf[16:], crc)
	return buf
}

func encodeDigest(h *HashValues) []byte {
	buf := make([]byte, 16+20+4)
	copy(buf[0:16], h.MD5[:])
	copy(buf[16:36], h.SHA1[:])
	crc := checksum(buf[:36])
	binary.LittleEndian.PutUint32(buf[36:], crc)
	return buf
}

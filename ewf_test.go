package ewf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"os"
	"testing"

	"github.com/absfs/memfs"
)

// sectionRecord is a parsed view of one on-disk section, used by the
// integration tests below to check the section sequence a write
// produced without depending on this package's own encoder.
type sectionRecord struct {
	kind    string
	offset  int64
	size    int64
	payload []byte
}

// parseSections walks a raw segment-file image (file header followed by
// a chain of 76-byte section headers) and returns every section in
// order, matching the layout spec.md §6 describes.
func parseSections(t *testing.T, data []byte) []sectionRecord {
	t.Helper()
	var records []sectionRecord
	offset := int64(fileHeaderSize)
	for offset < int64(len(data)) {
		if offset+sectionHeaderSize > int64(len(data)) {
			t.Fatalf("truncated section header at offset %d", offset)
		}
		hdr := data[offset : offset+sectionHeaderSize]
		kind := string(bytes.TrimRight(hdr[0:16], "\x00"))
		size := int64(binary.LittleEndian.Uint64(hdr[24:32]))
		if size < sectionHeaderSize {
			t.Fatalf("section %q at %d has impossible size %d", kind, offset, size)
		}
		payload := data[offset+sectionHeaderSize : offset+size]
		records = append(records, sectionRecord{kind: kind, offset: offset, size: size, payload: payload})
		offset += size
	}
	return records
}

func sectionKinds(records []sectionRecord) []string {
	kinds := make([]string, len(records))
	for i, r := range records {
		kinds[i] = r.kind
	}
	return kinds
}

// readSegmentBytes reads the full contents of a segment file directly
// from the backing memfs, independent of this package's FilePool, so
// the tests exercise the on-disk bytes an external reader would see.
func readSegmentBytes(t *testing.T, fs *memfs.FileSystem, path string) []byte {
	t.Helper()
	f, err := fs.OpenFile(path, os.O_RDONLY, 0o644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

// decodeChunkBytes recovers a chunk's original bytes given its offset
// table entry, decompressing if necessary, matching the round-trip
// property spec.md §8 requires ("bytes recovered by seeking to
// offset_table[c].file_offset ... equal the input bytes of c").
func decodeChunkBytes(t *testing.T, data []byte, entry *offsetEntry, rawLen int) []byte {
	t.Helper()
	stored := data[entry.fileOffset : entry.fileOffset+entry.size]
	if !entry.compressed {
		return stored[:rawLen]
	}
	zr, err := zlib.NewReader(bytes.NewReader(stored))
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("zlib read: %v", err)
	}
	return out
}

func newMemPool(t *testing.T) (*memfs.FileSystem, *AbsfsFilePool) {
	t.Helper()
	fs, err := memfs.NewFS()
	if err != nil {
		t.Fatalf("memfs.NewFS: %v", err)
	}
	return fs, NewAbsfsFilePool(fs)
}

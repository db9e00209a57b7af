package ewf

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// errBufferTooSmall signals that the managed compression cache's current
// capacity could not hold the compressed output of one attempt.
var errBufferTooSmall = errors.New("ewf: compressed buffer too small")

// ChunkProcessor implements component A (spec.md §4.A): it turns one raw
// chunk into its write-ready payload, choosing between the compressed
// form and the raw-plus-CRC form, and honors the compress_empty_block
// override.
type ChunkProcessor struct {
	Level              CompressionLevel
	CompressEmptyBlock bool
	EWFFormat          EWFFormat

	cache                *capWriter
	compressor           resettableWriteCloser
	emptyBlockCompressor resettableWriteCloser
}

// NewChunkProcessor builds a Chunk Processor for the given configuration.
// Its compressor is allocated once and Reset per chunk (spec.md's
// "engine-managed cache"), mirroring the teacher's pooled
// resettableWriteCloser pattern.
func NewChunkProcessor(level CompressionLevel, compressEmptyBlock bool, ewfFormat EWFFormat) *ChunkProcessor {
	cache := &capWriter{buf: make([]byte, 4096)}
	p := &ChunkProcessor{
		Level:              level,
		CompressEmptyBlock: compressEmptyBlock,
		EWFFormat:          ewfFormat,
		cache:              cache,
		compressor:         newZlibResettable(level, cache),
	}
	if compressEmptyBlock && level == CompressionNone {
		p.emptyBlockCompressor = newZlibResettable(CompressionDefault, cache)
	}
	return p
}

// ProcessedChunk describes the result of Process: whether the returned
// payload is compressed, its CRC, and whether the caller must still
// append that CRC itself (it will have been appended already when
// Process allocated its own buffer).
type ProcessedChunk struct {
	Compressed bool
	CRC        uint32
	WriteCRC   bool
}

// Process implements spec.md §4.A steps 1-4. raw is the uncompressed
// chunk (0 < len(raw) <= chunkSize). rawBuf, if non-nil, is a
// caller-owned buffer that receives the raw-plus-CRC form when
// compression isn't used or doesn't help; if nil, Process allocates its
// own buffer with the CRC appended in place and reports WriteCRC=false.
func (p *ChunkProcessor) Process(chunkSize uint32, raw []byte, rawBuf []byte) (ProcessedChunk, []byte, error) {
	if len(raw) == 0 || uint32(len(raw)) > chunkSize {
		return ProcessedChunk{}, nil, ErrInvalidArgument
	}
	if rawBuf != nil && samePointer(raw, rawBuf) {
		return ProcessedChunk{}, nil, ErrInvalidArgument
	}

	level := p.Level
	useEmptyBlockCompressor := false
	if level == CompressionNone && p.CompressEmptyBlock && isAllZero(raw) {
		level = CompressionDefault
		useEmptyBlockCompressor = true
	}

	if p.EWFFormat == FormatS01 || level != CompressionNone {
		target := p.compressor
		if useEmptyBlockCompressor {
			target = p.emptyBlockCompressor
		}
		compressed, err := p.compress(target, raw)
		if err != nil {
			return ProcessedChunk{}, nil, fmt.Errorf("%w: %v", ErrCompressionFailed, err)
		}
		if p.EWFFormat == FormatS01 || len(compressed) < int(chunkSize) {
			crc := binary.LittleEndian.Uint32(compressed[len(compressed)-4:])
			return ProcessedChunk{Compressed: true, CRC: crc, WriteCRC: false}, compressed, nil
		}
	}

	crc := checksum(raw)
	if rawBuf == nil {
		out := make([]byte, len(raw)+4)
		copy(out, raw)
		binary.LittleEndian.PutUint32(out[len(raw):], crc)
		return ProcessedChunk{Compressed: false, CRC: crc, WriteCRC: false}, out, nil
	}
	if len(rawBuf) < len(raw) {
		return ProcessedChunk{}, nil, ErrInvalidArgument
	}
	copy(rawBuf, raw)
	return ProcessedChunk{Compressed: false, CRC: crc, WriteCRC: true}, rawBuf[:len(raw)], nil
}

// compress runs target over raw via the managed cache, growing the cache
// and retrying once on overflow; failure after the retry is fatal
// (spec.md §4.A step 2).
func (p *ChunkProcessor) compress(target resettableWriteCloser, raw []byte) ([]byte, error) {
	for attempt := 0; attempt < 2; attempt++ {
		p.cache.n = 0
		target.Reset(p.cache)
		_, werr := target.Write(raw)
		cerr := target.Close()
		if werr == nil && cerr == nil {
			out := make([]byte, p.cache.n)
			copy(out, p.cache.buf[:p.cache.n])
			return out, nil
		}
		if !errors.Is(werr, errBufferTooSmall) && !errors.Is(cerr, errBufferTooSmall) {
			if werr != nil {
				return nil, werr
			}
			return nil, cerr
		}
		grown := len(p.cache.buf) * 2
		if bound := len(raw) + len(raw)/8 + 64; grown < bound {
			grown = bound
		}
		p.cache.buf = make([]byte, grown)
	}
	return nil, errors.New("compression cache exhausted after retry")
}

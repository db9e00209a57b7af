package ewf

import (
	"io"

	"github.com/klauspost/compress/zlib"
)

// capWriter writes into a fixed-capacity slice, reporting errBufferTooSmall
// instead of silently growing. This is the Go stand-in for the C engine's
// fixed dst_cap buffer contract described in spec.md §6's Compressor
// interface ("deflate(src, src_len, dst, dst_cap) -> (written, status)",
// status including buffer_too_small(required)).
type capWriter struct {
	buf []byte
	n   int
}

func (c *capWriter) Write(p []byte) (int, error) {
	if c.n+len(p) > len(c.buf) {
		return 0, errBufferTooSmall
	}
	copy(c.buf[c.n:], p)
	c.n += len(p)
	return len(p), nil
}

// zlibResettable adapts *zlib.Writer to resettableWriteCloser, replacing
// the teacher's lz4/zstd bufCloser adapters in this file with the one
// compression family the EWF chunk format actually uses.
type zlibResettable struct {
	w *zlib.Writer
}

func newZlibResettable(level CompressionLevel, dst io.Writer) resettableWriteCloser {
	zw, err := zlib.NewWriterLevel(dst, level.zlibLevel())
	if err != nil {
		zw = zlib.NewWriter(dst)
	}
	return &zlibResettable{w: zw}
}

func (z *zlibResettable) Write(p []byte) (int, error) { return z.w.Write(p) }

func (z *zlibResettable) Close() error { return z.w.Close() }

func (z *zlibResettable) Reset(w io.Writer) { z.w.Reset(w) }

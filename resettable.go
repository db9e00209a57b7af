package ewf

import "io"

// resettableWriteCloser is a WriteCloser that supports a Reset method, so
// the Chunk Processor (§4.A) can pool one compressor and retarget it at a
// new destination per chunk instead of allocating one every call.
type resettableWriteCloser interface {
	io.WriteCloser
	Reset(io.Writer)
}

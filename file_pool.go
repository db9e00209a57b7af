package ewf

import (
	"io"
	"os"

	"github.com/absfs/absfs"
)

// osCreateFlags is the flag set used to open a brand new segment file.
const osCreateFlags = os.O_RDWR | os.O_CREATE | os.O_TRUNC

// Handle identifies one open segment file within a FilePool.
type Handle int

// FilePool is the collaborator this engine consumes for all file I/O,
// matching the "File pool" interface in spec.md §5/§6: open, seek, read,
// write, get current offset, and close, accessed sequentially rather
// than concurrently by one Write Coordinator.
type FilePool interface {
	Open(path string, flag int) (Handle, error)
	Seek(h Handle, offset int64, whence int) (int64, error)
	Read(h Handle, buf []byte) (int, error)
	Write(h Handle, buf []byte) (int, error)
	Offset(h Handle) (int64, error)
	Close(h Handle) error
}

// AbsfsFilePool implements FilePool over an absfs.FileSystem, so the same
// engine can target a real directory (absfs/osfs), an in-memory image
// (absfs/memfs, used by this module's tests), or any other absfs
// backend, grounded on absfs-encryptfs's EncryptFS wrapping the same
// absfs.FileSystem seam.
type AbsfsFilePool struct {
	fs    absfs.FileSystem
	files []absfs.File
}

// NewAbsfsFilePool returns a FilePool backed by fs.
func NewAbsfsFilePool(fs absfs.FileSystem) *AbsfsFilePool {
	return &AbsfsFilePool{fs: fs}
}

func (p *AbsfsFilePool) Open(path string, flag int) (Handle, error) {
	f, err := p.fs.OpenFile(path, flag, 0o644)
	if err != nil {
		return -1, newIoError("open:"+path, 0, err)
	}
	p.files = append(p.files, f)
	return Handle(len(p.files) - 1), nil
}

func (p *AbsfsFilePool) file(h Handle) (absfs.File, error) {
	if int(h) < 0 || int(h) >= len(p.files) || p.files[h] == nil {
		return nil, ErrInvalidArgument
	}
	return p.files[h], nil
}

func (p *AbsfsFilePool) Seek(h Handle, offset int64, whence int) (int64, error) {
	f, err := p.file(h)
	if err != nil {
		return 0, err
	}
	n, err := f.Seek(offset, whence)
	if err != nil {
		return n, newIoError("seek", offset, err)
	}
	return n, nil
}

func (p *AbsfsFilePool) Read(h Handle, buf []byte) (int, error) {
	f, err := p.file(h)
	if err != nil {
		return 0, err
	}
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return n, newIoError("read", 0, err)
	}
	return n, err
}

func (p *AbsfsFilePool) Write(h Handle, buf []byte) (int, error) {
	f, err := p.file(h)
	if err != nil {
		return 0, err
	}
	n, err := f.Write(buf)
	if err != nil {
		return n, newIoError("write", 0, err)
	}
	return n, nil
}

func (p *AbsfsFilePool) Offset(h Handle) (int64, error) {
	f, err := p.file(h)
	if err != nil {
		return 0, err
	}
	n, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return n, newIoError("tell", 0, err)
	}
	return n, nil
}

func (p *AbsfsFilePool) Close(h Handle) error {
	f, err := p.file(h)
	if err != nil {
		return err
	}
	err = f.Close()
	p.files[h] = nil
	if err != nil {
		return newIoError("close", 0, err)
	}
	return nil
}

// poolWriter adapts a (FilePool, Handle) pair to io.Writer, the shape
// writeSizer and the compressor's destination expect.
type poolWriter struct {
	pool   FilePool
	handle Handle
}

func (p poolWriter) Write(b []byte) (int, error) {
	return p.pool.Write(p.handle, b)
}

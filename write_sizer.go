package ewf

import "io"

// writeSizer wraps an io.Writer and tracks the cumulative number of bytes
// appended through it, exactly like the teacher's write_sizer.go. It is
// the single source of truth for a segment file's logical length: every
// append-only write during segment construction goes through it, so
// Size() always equals the file's current length as long as in-place
// corrections (seek back, rewrite, seek to EOF) bypass it and use the
// file pool directly instead.
type writeSizer struct {
	w    io.Writer
	size int64
}

func newWriteSizer(w io.Writer) *writeSizer {
	return &writeSizer{w: w}
}

func (w *writeSizer) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *writeSizer) Size() int64 { return w.size }

// truncateTo adjusts the tracked size after an in-place rewind, so the
// next append-only write is recorded at the right logical offset.
func (w *writeSizer) truncateTo(n int64) { w.size = n }

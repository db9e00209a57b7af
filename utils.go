package ewf

// putFixedString copies s into buf, null-padding (or truncating) to
// exactly len(buf), matching the format's fixed-width, null-padded string
// fields (section type names, signatures).
func putFixedString(buf []byte, s string) int {
	for i := range buf {
		buf[i] = 0
	}
	n := copy(buf, s)
	return n
}

// isAllZero reports whether every byte of b is zero, used by the Chunk
// Processor's compress_empty_block rule (spec.md §4.A, §6).
func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// samePointer reports whether a and b alias the same backing array,
// guarding the Chunk Processor against overlapping src/dst buffers.
func samePointer(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return &a[0] == &b[0]
}

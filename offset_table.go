package ewf

// offsetEntry records where one chunk's data lives: which segment file
// owns it, its absolute file offset, the size of its stored (possibly
// compressed) payload, and whether that payload is compressed. delta is
// set once a chunk has been rewritten through the delta path (§4.F).
type offsetEntry struct {
	segment    *segmentFile
	fileOffset int64
	size       int64
	compressed bool
	delta      bool
}

// offsetTable is component C: a growable chunk-index -> offsetEntry map,
// densely indexed from 0, adapted from the teacher's generic
// slicemap[T] (slicemap.go) from uint16 channel IDs to int chunk indices
// carrying a richer entry value instead of a bare pointer.
type offsetTable struct {
	entries []*offsetEntry
}

// get returns the entry at idx, or ok=false if idx is out of range or
// unwritten.
func (t *offsetTable) get(idx int) (*offsetEntry, bool) {
	if idx < 0 || idx >= len(t.entries) {
		return nil, false
	}
	e := t.entries[idx]
	return e, e != nil
}

// set records an entry at idx, growing the table as needed. If an entry
// already exists at idx and allowOverwrite is false, it returns
// ErrAlreadyWritten (the primary-write-twice case from spec.md §7); the
// delta path passes allowOverwrite=true.
func (t *offsetTable) set(idx int, e *offsetEntry, allowOverwrite bool) error {
	if idx < 0 {
		return ErrInvalidArgument
	}
	if idx >= len(t.entries) {
		toAdd := idx + 1 - len(t.entries)
		t.entries = append(t.entries, make([]*offsetEntry, toAdd)...)
	}
	if t.entries[idx] != nil && !allowOverwrite {
		return ErrAlreadyWritten
	}
	t.entries[idx] = e
	return nil
}

// length returns the current capacity of the table (not the number of
// non-nil entries); it grows geometrically via set, not via reserve.
func (t *offsetTable) length() int { return len(t.entries) }

package roster

import "sync/atomic"

// Handle publishes roster snapshots to concurrent readers.
//
// A reload builds a complete new [Index] off to the side and installs it
// with a single atomic pointer swap, so a reader always observes either the
// old roster in full or the new one in full — never a partially populated
// index. The previous snapshot is garbage-collected once the last in-flight
// resolution drops its reference.
type Handle struct {
	current atomic.Pointer[Index]
}

// NewHandle returns a Handle publishing idx as the initial snapshot.
// idx may be nil; [Handle.Load] then reports no snapshot until the first
// [Handle.Swap].
func NewHandle(idx *Index) *Handle {
	h := &Handle{}
	if idx != nil {
		h.current.Store(idx)
	}
	return h
}

// Load returns the current snapshot, or (nil, false) when no roster has
// been published yet.
func (h *Handle) Load() (*Index, bool) {
	idx := h.current.Load()
	return idx, idx != nil
}

// Swap atomically replaces the published snapshot with idx and returns the
// previous snapshot (nil on first publish).
func (h *Handle) Swap(idx *Index) *Index {
	return h.current.Swap(idx)
}

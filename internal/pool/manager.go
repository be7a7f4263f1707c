// Package pool implements the core of a user-space memory pool allocator:
// a single pool's backing buffer, its address-ordered segment list, its
// size-sorted gap index, and the allocate/free/inspect operations that
// keep the two structures consistent under splitting and coalescing.
//
// A Manager is not safe for concurrent use; callers operating on distinct
// Managers may do so concurrently without coordination (package pool
// itself shares nothing across Managers).
package pool

import "unsafe"

// Allocation is an opaque reference to one live allocation, exposing only
// the fields spec.md promises callers: a base pointer into the pool's
// backing buffer and the allocation's size. It embeds enough to be
// resolved back to a segment (and to detect a stale or foreign handle)
// without leaking the arena's internal layout.
type Allocation struct {
	Base unsafe.Pointer
	Size int

	idx        segIdx
	generation uint64
}

// Manager owns one pool's backing buffer, its segment list, its gap
// index, and its placement policy and counters. It implements Allocate,
// Free, Inspect, and Close per spec.md §4.
type Manager struct {
	buffer []byte
	policy Policy

	arena *segmentArena
	list  *segmentList
	gaps  *gapIndex

	numAllocs int
	allocSize int
	closed    bool
}

// New opens a pool of exactly totalSize bytes under the given placement
// policy, with one free segment covering the whole range.
func New(totalSize int, policy Policy) (*Manager, error) {
	if totalSize <= 0 {
		return nil, ErrInvalidSize
	}

	arena := newSegmentArena()

	list, err := newSegmentList(arena, totalSize)
	if err != nil {
		return nil, err
	}

	gaps := newGapIndex()
	if err := gaps.insert(totalSize, list.head, arena.base); err != nil {
		return nil, err
	}

	return &Manager{
		buffer: make([]byte, totalSize),
		policy: policy,
		arena:  arena,
		list:   list,
		gaps:   gaps,
	}, nil
}

// base adapts segmentArena.get into the baseOf shape the gap index needs
// for its tie-break comparisons.
func (a *segmentArena) base(idx segIdx) int {
	return a.get(idx).base
}

// TotalSize returns the pool's fixed total capacity.
func (m *Manager) TotalSize() int {
	return len(m.buffer)
}

// Policy returns the pool's placement policy.
func (m *Manager) Policy() Policy {
	return m.policy
}

// NumAllocs returns the count of currently allocated segments.
func (m *Manager) NumAllocs() int {
	return m.numAllocs
}

// AllocSize returns the sum of the sizes of currently allocated segments.
func (m *Manager) AllocSize() int {
	return m.allocSize
}

// NumGaps returns the count of currently free segments.
func (m *Manager) NumGaps() int {
	return m.gaps.count
}

// Allocate satisfies a request of requested bytes per spec.md §4.3: grow
// the segment arena if needed, select a gap per policy, split or consume
// it exactly, and update the gap index and counters.
func (m *Manager) Allocate(requested int) (Allocation, error) {
	if m.closed {
		return Allocation{}, ErrClosed
	}

	if requested <= 0 {
		return Allocation{}, ErrInvalidSize
	}

	if err := m.arena.ensureCapacity(); err != nil {
		return Allocation{}, ErrOutOfMemory
	}

	var (
		idx segIdx
		ok  bool
	)

	switch m.policy {
	case FirstFit:
		idx, ok = m.list.firstFreeSufficient(requested)
	case BestFit:
		idx, ok = m.gaps.bestFit(requested)
	}

	if !ok {
		return Allocation{}, ErrNoFit
	}

	g := m.arena.get(idx)

	if err := m.gaps.remove(idx); err != nil {
		return Allocation{}, err
	}

	if g.size == requested {
		m.list.consumeExact(idx)
	} else {
		tIdx, err := m.list.split(idx, requested)
		if err != nil {
			// Undo the gap-index removal so the pool is left unchanged,
			// per spec.md §4.7 ("allocation fails cleanly, no state
			// change").
			_ = m.gaps.insert(g.size, idx, m.arena.base)

			return Allocation{}, err
		}

		t := m.arena.get(tIdx)
		if err := m.gaps.insert(t.size, tIdx, m.arena.base); err != nil {
			// The split already happened; undo it by merging tIdx back
			// into idx and restoring idx's original gap entry, so the
			// pool is left unchanged per spec.md §4.7/§7.
			m.list.coalesceWithNext(idx)
			restored := m.arena.get(idx)
			restored.allocated = false
			_ = m.gaps.insert(restored.size, idx, m.arena.base)

			return Allocation{}, err
		}
	}

	m.numAllocs++
	m.allocSize += requested

	allocated := m.arena.get(idx)

	return Allocation{
		Base:       unsafe.Pointer(&m.buffer[allocated.base]),
		Size:       requested,
		idx:        idx,
		generation: m.arena.generation(idx),
	}, nil
}

// resolve validates that a handle still refers to a live allocation in
// this pool: the arena index must be in range, its generation must match
// (ruling out a handle to a slot that has since been released and
// reused), the segment must currently be allocated (ruling out a
// double free), and the handle's base pointer must address that segment's
// start in this pool's own buffer (ruling out a handle from another pool
// whose index and generation happen to match).
func (m *Manager) resolve(a Allocation) (segIdx, error) {
	if a.idx < 0 || int(a.idx) >= len(m.arena.slots) {
		return noSeg, ErrBadHandle
	}

	if m.arena.generation(a.idx) != a.generation {
		return noSeg, ErrBadHandle
	}

	s := m.arena.get(a.idx)
	if !s.allocated {
		return noSeg, ErrBadHandle
	}

	if a.Base != unsafe.Pointer(&m.buffer[s.base]) {
		return noSeg, ErrBadHandle
	}

	return a.idx, nil
}

// Free releases an allocation per spec.md §4.4: flip it to free, update
// counters, then coalesce eagerly with a free next and/or a free prev,
// touching the gap index at most three times (two removes, one insert).
func (m *Manager) Free(a Allocation) error {
	if m.closed {
		return ErrClosed
	}

	idx, err := m.resolve(a)
	if err != nil {
		return err
	}

	s := m.arena.get(idx)
	s.allocated = false
	m.numAllocs--
	m.allocSize -= s.size

	merged := idx

	if s.next != noSeg && !m.arena.get(s.next).allocated {
		if err := m.gaps.remove(s.next); err != nil {
			return err
		}

		m.list.coalesceWithNext(merged)
	}

	if prevIdx := m.arena.get(merged).prev; prevIdx != noSeg && !m.arena.get(prevIdx).allocated {
		if err := m.gaps.remove(prevIdx); err != nil {
			return err
		}

		merged = m.list.coalesceWithPrev(merged)
	}

	mergedSeg := m.arena.get(merged)

	return m.gaps.insert(mergedSeg.size, merged, m.arena.base)
}

// SegmentInfo is a read-only view of one segment for inspection.
type SegmentInfo struct {
	Size      int
	Allocated bool
}

// Inspect returns every segment from lowest to highest base address. It
// performs no mutation; the returned slice's length always equals
// NumAllocs()+NumGaps().
func (m *Manager) Inspect() ([]SegmentInfo, error) {
	if m.closed {
		return nil, ErrClosed
	}

	raw := m.list.walk()
	out := make([]SegmentInfo, len(raw))

	for i, s := range raw {
		out[i] = SegmentInfo{Size: s.Size, Allocated: s.Allocated}
	}

	return out, nil
}

// Close is legal only when the pool has no outstanding allocations and
// exactly one gap (the whole buffer, coalesced back to a single free
// segment). It releases the manager's backing buffer for garbage
// collection; the caller must not use the Manager afterward.
func (m *Manager) Close() error {
	if m.closed {
		return ErrClosed
	}

	if m.numAllocs != 0 || m.gaps.count != 1 {
		return ErrNotEmpty
	}

	m.buffer = nil
	m.closed = true

	return nil
}

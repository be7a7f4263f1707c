// Package registry is the process-wide directory of open pools: a thin
// administrative layer over package pool, mapping opaque pool handles to
// managers. spec.md §1 scopes this as an external collaborator specified
// only at the interface level; it follows the same arena-of-indices
// discipline as the segment/gap storage one layer down (spec.md §9),
// applied to whole pools instead of segments.
package registry

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/arcpool/mempool/internal/pool"
)

// Sentinel errors for registry lifecycle misuse (spec.md §7).
var (
	ErrAlreadyInitialized = errors.New("registry: already initialized")
	ErrNotInitialized     = errors.New("registry: not initialized")
	ErrPoolsLive          = errors.New("registry: pools are still open")
	ErrBadHandle          = errors.New("registry: handle does not refer to a live pool")
)

// Handle is an opaque, stable reference to one registered pool. It
// survives registry growth because it carries an index rather than a
// pointer, and it detects stale reuse via generation, the same technique
// package pool uses for allocation handles.
type Handle struct {
	index      int
	generation uint64
}

type slot struct {
	manager    *pool.Manager
	generation uint64
	live       bool
}

// Registry is a process-wide directory of open pools. A Registry must be
// initialized with Init before Open is called, and torn down with
// Teardown only once every pool it holds has been closed.
type Registry struct {
	slots       []slot
	free        []int
	live        int
	initialized bool
}

// New creates an uninitialized registry.
func New() *Registry {
	return &Registry{}
}

// Init marks the registry ready for use. Calling Init twice without an
// intervening Teardown is an error.
func (r *Registry) Init() error {
	if r.initialized {
		return ErrAlreadyInitialized
	}

	r.initialized = true

	return nil
}

// Teardown marks the registry unusable until Init is called again. It
// refuses to run while any pool registered through it remains open.
func (r *Registry) Teardown() error {
	if !r.initialized {
		return ErrNotInitialized
	}

	if r.live > 0 {
		return ErrPoolsLive
	}

	r.initialized = false
	r.slots = nil
	r.free = nil

	return nil
}

func (r *Registry) occupancy() float64 {
	if len(r.slots) == 0 {
		return 1
	}

	return float64(r.live) / float64(len(r.slots))
}

func (r *Registry) ensureCapacity() error {
	switch {
	case len(r.slots) == 0:
		return r.grow(initialCapacity)
	case r.occupancy() > fillFactorThreshold:
		return r.grow(len(r.slots) * expandFactor)
	default:
		return nil
	}
}

func (r *Registry) grow(newCap int) error {
	if newCap <= len(r.slots) {
		return errors.New("registry: invalid growth target")
	}

	grown := make([]slot, newCap)
	copy(grown, r.slots)

	for i := len(r.slots); i < newCap; i++ {
		r.free = append(r.free, i)
	}

	r.slots = grown

	return nil
}

// Open registers an already-constructed manager and returns a handle a
// caller can use for Get/Close. Pool construction itself (sizing the
// backing buffer) is package pool's job; Open only does bookkeeping.
func (r *Registry) Open(m *pool.Manager) (Handle, error) {
	if !r.initialized {
		return Handle{}, ErrNotInitialized
	}

	if err := r.ensureCapacity(); err != nil {
		return Handle{}, errors.Wrap(err, "growing pool registry")
	}

	idx := r.free[len(r.free)-1]
	r.free = r.free[:len(r.free)-1]

	gen := newGeneration()
	r.slots[idx] = slot{manager: m, generation: gen, live: true}
	r.live++

	return Handle{index: idx, generation: gen}, nil
}

func (r *Registry) resolve(h Handle) (*pool.Manager, error) {
	if !r.initialized {
		return nil, ErrNotInitialized
	}

	if h.index < 0 || h.index >= len(r.slots) {
		return nil, ErrBadHandle
	}

	s := &r.slots[h.index]
	if !s.live || s.generation != h.generation {
		return nil, ErrBadHandle
	}

	return s.manager, nil
}

// Get resolves a handle to the Manager behind it, for Allocate/Free/
// Inspect calls.
func (r *Registry) Get(h Handle) (*pool.Manager, error) {
	return r.resolve(h)
}

// Close closes the pool behind h and returns its slot to the free list.
// The handle is invalid for any further use once Close succeeds.
func (r *Registry) Close(h Handle) error {
	m, err := r.resolve(h)
	if err != nil {
		return err
	}

	if err := m.Close(); err != nil {
		return errors.Wrapf(err, "closing pool at handle index %d", h.index)
	}

	s := &r.slots[h.index]
	s.live = false
	s.manager = nil
	s.generation++
	r.free = append(r.free, h.index)
	r.live--

	return nil
}

// LiveCount returns the number of pools currently registered and open.
func (r *Registry) LiveCount() int {
	return r.live
}

// newGeneration mints a fresh, effectively-unique generation value from a
// UUID's low 64 bits, rather than a bare monotonic counter, so that a
// handle from a long-since-torn-down registry cannot coincidentally match
// a freshly initialized one after a process restart shares no state
// (spec.md §9: "a handle can be realized as (pool_id, arena_index,
// generation) to detect use-after-free deterministically").
func newGeneration() uint64 {
	id := uuid.New()

	return binary.LittleEndian.Uint64(id[8:])
}

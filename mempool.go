// Package mempool is a user-space memory pool allocator: a process-wide
// registry of independent pools, each managing a fixed backing buffer
// with a segment list and a size-sorted gap index (see internal/pool and
// internal/registry for the implementation). This package is the public
// surface: RegistryInit/RegistryTeardown manage the process-wide
// directory, and Open/Close/Allocate/Free/Inspect operate on individual
// pools through opaque handles.
package mempool

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/arcpool/mempool/internal/pool"
	"github.com/arcpool/mempool/internal/registry"
)

// Policy selects how a pool chooses among free segments on allocation.
type Policy = pool.Policy

const (
	// FirstFit selects the lowest-address sufficient free segment.
	FirstFit = pool.FirstFit
	// BestFit selects the smallest sufficient free segment, breaking
	// ties by lowest address.
	BestFit = pool.BestFit
)

// SegmentInfo describes one segment of a pool's partition as reported by
// Inspect: its size and whether it is currently allocated.
type SegmentInfo = pool.SegmentInfo

// Allocation is an opaque handle to one live allocation, exposing only
// the base pointer and size a caller needs to use the memory.
type Allocation = pool.Allocation

// Handle is an opaque reference to one open pool, returned by Open and
// consumed by Close, Allocate, Free, and Inspect.
type Handle = registry.Handle

var (
	mu  sync.Mutex
	reg = registry.New()
)

// RegistryInit prepares the process-wide pool registry for use. It must
// be called once before Open, and fails if called again before a
// matching RegistryTeardown.
func RegistryInit() error {
	mu.Lock()
	defer mu.Unlock()

	if err := reg.Init(); err != nil {
		return errors.Wrap(err, "mempool: registry init")
	}

	return nil
}

// RegistryTeardown releases the process-wide registry. It refuses to run
// while any pool opened through it remains open.
func RegistryTeardown() error {
	mu.Lock()
	defer mu.Unlock()

	if err := reg.Teardown(); err != nil {
		return errors.Wrap(err, "mempool: registry teardown")
	}

	return nil
}

// Open creates a new pool of size bytes governed by the given placement
// policy and registers it, returning a handle for subsequent operations.
func Open(size int, policy Policy) (Handle, error) {
	mu.Lock()
	defer mu.Unlock()

	m, err := pool.New(size, policy)
	if err != nil {
		return Handle{}, errors.Wrapf(err, "mempool: open pool of size %d", size)
	}

	h, err := reg.Open(m)
	if err != nil {
		return Handle{}, errors.Wrap(err, "mempool: register pool")
	}

	return h, nil
}

// Close closes the pool behind h. It fails if the pool still has live
// allocations or more than one gap.
func Close(h Handle) error {
	mu.Lock()
	defer mu.Unlock()

	if err := reg.Close(h); err != nil {
		return errors.Wrap(err, "mempool: close pool")
	}

	return nil
}

// Allocate reserves size bytes from the pool behind h using its
// configured placement policy, returning an opaque allocation handle.
func Allocate(h Handle, size int) (Allocation, error) {
	mu.Lock()
	defer mu.Unlock()

	m, err := reg.Get(h)
	if err != nil {
		return Allocation{}, errors.Wrap(err, "mempool: allocate")
	}

	a, err := m.Allocate(size)
	if err != nil {
		return Allocation{}, errors.Wrapf(err, "mempool: allocate %d bytes", size)
	}

	return a, nil
}

// Free releases a, an allocation previously returned by Allocate for the
// pool behind h, back into the pool's free storage.
func Free(h Handle, a Allocation) error {
	mu.Lock()
	defer mu.Unlock()

	m, err := reg.Get(h)
	if err != nil {
		return errors.Wrap(err, "mempool: free")
	}

	if err := m.Free(a); err != nil {
		return errors.Wrap(err, "mempool: free allocation")
	}

	return nil
}

// Inspect returns the pool behind h's current partition as an ordered
// list of segments from lowest address to highest.
func Inspect(h Handle) ([]SegmentInfo, error) {
	mu.Lock()
	defer mu.Unlock()

	m, err := reg.Get(h)
	if err != nil {
		return nil, errors.Wrap(err, "mempool: inspect")
	}

	segs, err := m.Inspect()
	if err != nil {
		return nil, errors.Wrap(err, "mempool: inspect pool")
	}

	return segs, nil
}

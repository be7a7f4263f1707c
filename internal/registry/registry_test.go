package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/arcpool/mempool/internal/pool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mustManager(t *testing.T) *pool.Manager {
	t.Helper()

	m, err := pool.New(256, pool.FirstFit)
	require.NoError(t, err)

	return m
}

func TestInitTeardownLifecycle(t *testing.T) {
	r := New()

	require.ErrorIs(t, r.Teardown(), ErrNotInitialized)
	require.NoError(t, r.Init())
	require.ErrorIs(t, r.Init(), ErrAlreadyInitialized)
	require.NoError(t, r.Teardown())
}

func TestOpenRequiresInit(t *testing.T) {
	r := New()

	_, err := r.Open(mustManager(t))
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestTeardownRefusesWhileLive(t *testing.T) {
	r := New()
	require.NoError(t, r.Init())

	h, err := r.Open(mustManager(t))
	require.NoError(t, err)

	require.ErrorIs(t, r.Teardown(), ErrPoolsLive)

	require.NoError(t, r.Close(h))
	require.NoError(t, r.Teardown())
}

func TestOpenCloseRoundTrip(t *testing.T) {
	r := New()
	require.NoError(t, r.Init())

	h, err := r.Open(mustManager(t))
	require.NoError(t, err)
	assert.Equal(t, 1, r.LiveCount())

	got, err := r.Get(h)
	require.NoError(t, err)
	assert.NotNil(t, got)

	require.NoError(t, r.Close(h))
	assert.Equal(t, 0, r.LiveCount())

	_, err = r.Get(h)
	require.ErrorIs(t, err, ErrBadHandle)
}

func TestHandleFromClosedSlotIsRejectedAfterReuse(t *testing.T) {
	r := New()
	require.NoError(t, r.Init())

	stale, err := r.Open(mustManager(t))
	require.NoError(t, err)
	require.NoError(t, r.Close(stale))

	fresh, err := r.Open(mustManager(t))
	require.NoError(t, err)

	_, err = r.Get(stale)
	require.ErrorIs(t, err, ErrBadHandle)

	_, err = r.Get(fresh)
	require.NoError(t, err)

	require.NoError(t, r.Close(fresh))
	require.NoError(t, r.Teardown())
}

func TestRegistryGrowsPastInitialCapacity(t *testing.T) {
	r := New()
	require.NoError(t, r.Init())

	handles := make([]Handle, 0, initialCapacity*2)

	for i := 0; i < initialCapacity+1; i++ {
		h, err := r.Open(mustManager(t))
		require.NoError(t, err)

		handles = append(handles, h)
	}

	assert.Greater(t, len(r.slots), initialCapacity)

	for _, h := range handles {
		require.NoError(t, r.Close(h))
	}

	require.NoError(t, r.Teardown())
}

func TestBadHandleOutOfRange(t *testing.T) {
	r := New()
	require.NoError(t, r.Init())

	_, err := r.Get(Handle{index: 999, generation: 1})
	require.ErrorIs(t, err, ErrBadHandle)

	require.NoError(t, r.Teardown())
}

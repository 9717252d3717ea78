package objectstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemory("mem")

	body := []byte("abc")
	meta := map[string]string{"checksum": "1"}
	require.NoError(t, store.Put(ctx, "mem", "k", body, meta))

	// stored values are copies
	body[0] = 'z'
	meta["checksum"] = "2"

	got, err := store.Get(ctx, "mem", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	m, ok := store.Metadata("mem", "k")
	require.True(t, ok)
	assert.Equal(t, "1", m["checksum"])

	err = store.Put(ctx, "mem", "k", []byte("other"), nil)
	assert.True(t, errors.Is(err, ErrExists))
	got, err = store.Get(ctx, "mem", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got, "an existing object is never replaced")
	assert.Equal(t, 1, store.Puts())
	assert.Equal(t, 1, store.Len())

	_, err = store.Get(ctx, "mem", "nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = store.URL(ctx, "mem", "k", time.Minute)
	assert.True(t, errors.Is(err, ErrURLUnsupported))
	assert.Equal(t, ProviderMemory, store.Location().Provider)
}

func TestMemoryStore_InstancesAreIsolated(t *testing.T) {
	ctx := context.Background()
	a, b := NewMemory("x"), NewMemory("x")

	require.NoError(t, a.Put(ctx, "x", "k", []byte("1"), nil))
	_, err := b.Get(ctx, "x", "k")
	assert.True(t, errors.Is(err, ErrNotFound))
}

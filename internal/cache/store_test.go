package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the shared Store contract against a backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "iot_custom_devices", []byte(`[{"id":"a"}]`)))
	got, err := s.Get(ctx, "iot_custom_devices")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a"}]`, string(got))

	require.NoError(t, s.Set(ctx, "iot_custom_devices", []byte(`[]`)))
	got, err = s.Get(ctx, "iot_custom_devices")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))

	require.NoError(t, s.Delete(ctx, "iot_custom_devices"))
	_, err = s.Get(ctx, "iot_custom_devices")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Ping(ctx))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(0)
	exerciseStore(t, s)
	assert.NoError(t, s.Close())
}

func TestMemoryStore_Capacity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	require.NoError(t, s.Set(ctx, "a", []byte("12345")))
	require.NoError(t, s.Set(ctx, "a", []byte("1234567890")), "overwrite within budget")

	err := s.Set(ctx, "b", []byte("x"))
	assert.ErrorIs(t, err, ErrCapacity)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1234567890", string(got), "rejected write must not alter existing entries")

	require.NoError(t, s.Delete(ctx, "a"))
	assert.NoError(t, s.Set(ctx, "b", []byte("x")))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := NewRedisStore(context.Background(), mr.Addr(), "", 0, "sim:")
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)

	require.NoError(t, s.Set(context.Background(), "k", []byte("v")))
	assert.True(t, mr.Exists("sim:k"), "keys should carry the configured prefix")
	assert.Contains(t, s.Stats(), "total_conns")
}

func TestRedisStore_ConnectFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), addr, "", 0, "")
	assert.Error(t, err)
}

func TestIsOOM(t *testing.T) {
	assert.True(t, isOOM(errors.New("OOM command not allowed when used memory > 'maxmemory'.")))
	assert.False(t, isOOM(errors.New("connection refused")))
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := NewSQLiteStore(context.Background(), path)
	require.NoError(t, err)
	exerciseStore(t, s)

	require.NoError(t, s.Set(context.Background(), "iot_real_devices", []byte(`[1]`)))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(context.Background(), path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), "iot_real_devices")
	require.NoError(t, err)
	assert.Equal(t, "[1]", string(got), "entries survive reopening the file")
}

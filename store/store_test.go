package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSessionStore runs the behaviour every SessionStore must share.
func testSessionStore(t *testing.T, s SessionStore) {
	ctx := context.Background()

	t.Run("missing key returns nil", func(t *testing.T) {
		value, err := s.Get(ctx, "nobody", "bdt_nav_missing")
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "alice", "bdt_nav_a", []byte(`{"n":1}`)))

		value, err := s.Get(ctx, "alice", "bdt_nav_a")
		require.NoError(t, err)
		assert.Equal(t, `{"n":1}`, string(value))
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "alice", "bdt_nav_b", []byte("first")))
		require.NoError(t, s.Set(ctx, "alice", "bdt_nav_b", []byte("second")))

		value, err := s.Get(ctx, "alice", "bdt_nav_b")
		require.NoError(t, err)
		assert.Equal(t, "second", string(value))
	})

	t.Run("owners are isolated", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "bob", "bdt_nav_a", []byte("bob's")))

		value, err := s.Get(ctx, "alice", "bdt_nav_a")
		require.NoError(t, err)
		assert.Equal(t, `{"n":1}`, string(value))

		keys, err := s.Keys(ctx, "bob", "bdt_nav_")
		require.NoError(t, err)
		assert.Equal(t, []string{"bdt_nav_a"}, keys)
	})

	t.Run("keys filters by prefix and sorts", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "carol", "bdt_nav_z", []byte("1")))
		require.NoError(t, s.Set(ctx, "carol", "bdt_nav_m", []byte("2")))
		require.NoError(t, s.Set(ctx, "carol", "table_per_page", []byte("50")))
		require.NoError(t, s.Set(ctx, "carol", "bdtXnav_a", []byte("3")))

		keys, err := s.Keys(ctx, "carol", "bdt_nav_")
		require.NoError(t, err)
		assert.Equal(t, []string{"bdt_nav_m", "bdt_nav_z"}, keys)

		all, err := s.Keys(ctx, "carol", "")
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})

	t.Run("keys for unknown owner is empty", func(t *testing.T) {
		keys, err := s.Keys(ctx, "nobody", "bdt_nav_")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "dave", "bdt_nav_x", []byte("x")))
		require.NoError(t, s.Delete(ctx, "dave", "bdt_nav_x"))

		value, err := s.Get(ctx, "dave", "bdt_nav_x")
		require.NoError(t, err)
		assert.Nil(t, value)

		// Deleting again is not an error.
		require.NoError(t, s.Delete(ctx, "dave", "bdt_nav_x"))
		require.NoError(t, s.Delete(ctx, "nobody", "bdt_nav_x"))
	})
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{})
	defer s.Close()

	testSessionStore(t, s)
}

func TestMemoryStoreEvictsLeastRecentOwner(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{MaxOwners: 2})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "one", "k", []byte("1")))
	require.NoError(t, s.Set(ctx, "two", "k", []byte("2")))
	require.NoError(t, s.Set(ctx, "three", "k", []byte("3")))

	assert.Equal(t, 2, s.Owners())

	value, err := s.Get(ctx, "one", "k")
	require.NoError(t, err)
	assert.Nil(t, value, "oldest owner should have been dropped")

	value, err = s.Get(ctx, "three", "k")
	require.NoError(t, err)
	assert.Equal(t, "3", string(value))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{})
	defer s.Close()
	ctx := context.Background()

	original := []byte("abc")
	require.NoError(t, s.Set(ctx, "o", "k", original))
	original[0] = 'x'

	value, err := s.Get(ctx, "o", "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(value))

	value[1] = 'y'
	again, err := s.Get(ctx, "o", "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStoreDropsEmptyOwner(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "o", "k", []byte("v")))
	require.NoError(t, s.Delete(ctx, "o", "k"))
	assert.Equal(t, 0, s.Owners())
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	testSessionStore(t, s)
}

func TestSQLiteStorePrefixIsLiteral(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "o", "a%b_1", []byte("1")))
	require.NoError(t, s.Set(ctx, "o", "axbx2", []byte("2")))

	keys, err := s.Keys(ctx, "o", "a%b_")
	require.NoError(t, err)
	assert.Equal(t, []string{"a%b_1"}, keys)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "o", "k", []byte("kept")))
	require.NoError(t, s.Close())

	s, err = NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	value, err := s.Get(ctx, "o", "k")
	require.NoError(t, err)
	assert.Equal(t, "kept", string(value))
}

// newTestRedis creates a RedisStore backed by miniredis.
func newTestRedis(t *testing.T, expiration time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	s := NewRedisStore(client, "tablenav:test:", expiration)
	t.Cleanup(func() { s.Close() })
	return s, mini
}

func TestRedisStore(t *testing.T) {
	s, _ := newTestRedis(t, 0)
	testSessionStore(t, s)
}

func TestRedisStoreUsesOwnerHash(t *testing.T) {
	s, mini := newTestRedis(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "alice", "bdt_nav_a", []byte("v")))

	assert.True(t, mini.Exists("tablenav:test:alice"))
	assert.Equal(t, "v", mini.HGet("tablenav:test:alice", "bdt_nav_a"))
}

func TestRedisStoreExpiration(t *testing.T) {
	s, mini := newTestRedis(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "alice", "bdt_nav_a", []byte("v")))
	assert.Equal(t, time.Hour, mini.TTL("tablenav:test:alice"))

	mini.FastForward(2 * time.Hour)

	value, err := s.Get(ctx, "alice", "bdt_nav_a")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestRedisStoreBackendFailure(t *testing.T) {
	s, mini := newTestRedis(t, 0)
	mini.Close()

	_, err := s.Get(context.Background(), "alice", "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis:")
}

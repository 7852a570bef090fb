package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type field struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

var (
	fieldScope = Scope{Resource: "fields", BaseURL: "https://api.emarsys.net/api/v2/", Username: "acme001"}
	catalog    = []field{{ID: 1, Name: "firstName"}, {ID: 3, Name: "email"}}
)

func setNow(t *testing.T, at time.Time) *time.Time {
	t.Helper()
	current := at
	previous := now
	now = func() time.Time { return current }
	t.Cleanup(func() { now = previous })
	return &current
}

func TestScope(t *testing.T) {
	same := Scope{Resource: "fields", BaseURL: "https://api.emarsys.net/api/v2", Username: "acme001"}
	assert.Equal(t, fieldScope.hash(), same.hash(), "trailing slash must not change the scope")
	assert.Len(t, fieldScope.hash(), 12)

	other := fieldScope
	other.Username = "acme002"
	assert.NotEqual(t, fieldScope.hash(), other.hash())

	assert.Equal(t, "cache", Scope{}.resource())
	assert.Equal(t, "field-choices-3", Scope{Resource: "field_choices/3"}.resource())
}

func TestFileStore_PutAndGet(t *testing.T) {
	t.Setenv(EnvNoCache, "")
	ctx := context.Background()
	s := NewFileStore(t.TempDir(), fieldScope, time.Minute)

	s.Put(ctx, catalog)

	var got []field
	require.True(t, s.Get(ctx, &got))
	assert.Equal(t, catalog, got)

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_Expires(t *testing.T) {
	t.Setenv(EnvNoCache, "")
	ctx := context.Background()
	clock := setNow(t, time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC))
	s := NewFileStore(t.TempDir(), fieldScope, time.Minute)
	s.Put(ctx, catalog)

	*clock = clock.Add(59 * time.Second)
	var got []field
	assert.True(t, s.Get(ctx, &got))

	*clock = clock.Add(2 * time.Second)
	assert.False(t, s.Get(ctx, &got))
}

func TestFileStore_MissAndClear(t *testing.T) {
	t.Setenv(EnvNoCache, "")
	ctx := context.Background()
	s := NewFileStore(t.TempDir(), fieldScope, 0)
	assert.Equal(t, DefaultTTL, s.ttl)

	var got []field
	assert.False(t, s.Get(ctx, &got))

	s.Put(ctx, catalog)
	s.Clear(ctx)
	assert.False(t, s.Get(ctx, &got))
}

func TestFileStore_CorruptFile(t *testing.T) {
	t.Setenv(EnvNoCache, "")
	s := NewFileStore(t.TempDir(), fieldScope, time.Minute)
	require.NoError(t, os.WriteFile(s.Path(), []byte("not json"), 0o600))

	var got []field
	assert.False(t, s.Get(context.Background(), &got))
}

func TestFileStore_Disabled(t *testing.T) {
	t.Setenv(EnvNoCache, "1")
	ctx := context.Background()
	s := NewFileStore(t.TempDir(), fieldScope, time.Minute)
	s.Put(ctx, catalog)

	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestIsCacheFilename(t *testing.T) {
	cases := map[string]bool{
		"fields_abcdef123456.json":    true,
		"languages_0123456789ab.json": true,
		"_abcdef123456.json":          false,
		"fields_abcdef.json":          false,
		"fields_ABCDEF123456.json":    false,
		"fields_abcdef123456.txt":     false,
		"fields.json":                 false,
	}
	for name, want := range cases {
		assert.Equal(t, want, isCacheFilename(name), name)
	}
}

func TestClearAll_Files(t *testing.T) {
	t.Setenv(EnvNoCache, "")
	t.Setenv(EnvRedisURL, "")
	ctx := context.Background()
	dir := t.TempDir()

	NewFileStore(dir, fieldScope, time.Minute).Put(ctx, catalog)
	NewFileStore(dir, Scope{Resource: "languages"}, time.Minute).Put(ctx, []string{"en"})
	keep := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(keep, []byte("keep"), 0o600))

	n, err := ClearAll(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, keep)
}

func TestDefaultDir(t *testing.T) {
	t.Setenv(EnvCacheDir, "/tmp/emarsys-cache")
	dir, err := DefaultDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/emarsys-cache", dir)

	t.Setenv(EnvCacheDir, "")
	dir, err = DefaultDir()
	if err == nil {
		assert.Equal(t, dirName, filepath.Base(dir))
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_PutAndGet(t *testing.T) {
	t.Setenv(EnvNoCache, "")
	ctx := context.Background()
	mr, client := newRedis(t)
	s := NewRedisStore(client, fieldScope, time.Minute)

	s.Put(ctx, catalog)
	assert.True(t, mr.Exists(s.Key()))
	assert.Equal(t, time.Minute, mr.TTL(s.Key()))

	var got []field
	require.True(t, s.Get(ctx, &got))
	assert.Equal(t, catalog, got)
}

func TestRedisStore_ExpiresWithTTL(t *testing.T) {
	t.Setenv(EnvNoCache, "")
	ctx := context.Background()
	mr, client := newRedis(t)
	s := NewRedisStore(client, fieldScope, time.Minute)
	s.Put(ctx, catalog)

	mr.FastForward(2 * time.Minute)

	var got []field
	assert.False(t, s.Get(ctx, &got))
}

func TestRedisStore_Clear(t *testing.T) {
	t.Setenv(EnvNoCache, "")
	ctx := context.Background()
	mr, client := newRedis(t)
	s := NewRedisStore(client, fieldScope, time.Minute)
	s.Put(ctx, catalog)

	s.Clear(ctx)
	assert.False(t, mr.Exists(s.Key()))
}

func TestOpen_SelectsBackend(t *testing.T) {
	t.Setenv(EnvNoCache, "")
	ctx := context.Background()
	dir := t.TempDir()

	t.Setenv(EnvRedisURL, "")
	_, ok := Open(ctx, dir, fieldScope, time.Minute).(*FileStore)
	assert.True(t, ok, "expected file store without redis")

	mr := miniredis.RunT(t)
	t.Setenv(EnvRedisURL, "redis://"+mr.Addr()+"/0")
	store := Open(ctx, dir, fieldScope, time.Minute)
	rs, ok := store.(*RedisStore)
	require.True(t, ok, "expected redis store, got %T", store)
	t.Cleanup(func() { _ = rs.client.Close() })

	t.Setenv(EnvRedisURL, "redis://127.0.0.1:1/0")
	_, ok = Open(ctx, dir, fieldScope, time.Minute).(*FileStore)
	assert.True(t, ok, "unreachable redis falls back to files")
}

func TestClearAll_Redis(t *testing.T) {
	t.Setenv(EnvNoCache, "")
	ctx := context.Background()
	mr, client := newRedis(t)
	NewRedisStore(client, fieldScope, time.Minute).Put(ctx, catalog)
	NewRedisStore(client, Scope{Resource: "languages"}, time.Minute).Put(ctx, []string{"en"})
	require.NoError(t, mr.Set("unrelated", "x"))

	t.Setenv(EnvRedisURL, "redis://"+mr.Addr())
	n, err := ClearAll(ctx, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists("unrelated"))
}

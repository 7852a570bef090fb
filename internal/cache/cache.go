// Package cache keeps slowly changing catalogs, such as the field list, between
// CLI invocations.
//
// Entries are scoped per resource, API root and API user. The default backend
// is a directory of JSON files; setting EMARSYS_CACHE_REDIS_URL moves entries
// into Redis. Default TTL is 5 minutes. Disable with EMARSYS_NO_CACHE=1.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultTTL = 5 * time.Minute

	EnvNoCache  = "EMARSYS_NO_CACHE"
	EnvCacheDir = "EMARSYS_CACHE_DIR"
	EnvRedisURL = "EMARSYS_CACHE_REDIS_URL"

	dirName = "emarsys-cli"
)

// Store reads and writes one cache entry.
type Store interface {
	// Get decodes the entry into dst. It reports false on a miss, an expired
	// entry or a decode failure.
	Get(ctx context.Context, dst any) bool
	// Put replaces the entry. Failures are ignored; the cache is best effort.
	Put(ctx context.Context, v any)
	// Clear removes the entry.
	Clear(ctx context.Context)
}

// Scope identifies whose data an entry holds.
type Scope struct {
	Resource string
	BaseURL  string
	Username string
}

// hash is the 12 hex digit suffix shared by both backends.
func (s Scope) hash() string {
	sum := sha1.Sum([]byte(strings.TrimSuffix(s.BaseURL, "/") + "\x00" + s.Username))
	return hex.EncodeToString(sum[:6])
}

func (s Scope) resource() string {
	key := strings.TrimSpace(s.Resource)
	if key == "" {
		return "cache"
	}
	return strings.NewReplacer("/", "-", "\\", "-", "_", "-", ":", "-").Replace(key)
}

// Open returns the store configured by the environment, falling back to a file
// store under dir when Redis is not configured or unreachable.
func Open(ctx context.Context, dir string, scope Scope, ttl time.Duration) Store {
	if url := strings.TrimSpace(os.Getenv(EnvRedisURL)); url != "" {
		if client, err := NewRedisClient(ctx, url); err == nil {
			return NewRedisStore(client, scope, ttl)
		}
	}
	return NewFileStore(dir, scope, ttl)
}

// Disabled reports whether caching is switched off.
func Disabled() bool {
	return strings.TrimSpace(os.Getenv(EnvNoCache)) != ""
}

// DefaultDir returns EMARSYS_CACHE_DIR or the platform cache directory.
func DefaultDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(EnvCacheDir)); dir != "" {
		return dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, dirName), nil
}

// ClearAll removes every entry from dir and, when configured, from Redis. It
// returns the number of entries removed.
func ClearAll(ctx context.Context, dir string) (int, error) {
	removed := clearDir(dir)
	url := strings.TrimSpace(os.Getenv(EnvRedisURL))
	if url == "" {
		return removed, nil
	}
	client, err := NewRedisClient(ctx, url)
	if err != nil {
		return removed, err
	}
	defer func() { _ = client.Close() }()
	n, err := clearRedis(ctx, client)
	return removed + n, err
}

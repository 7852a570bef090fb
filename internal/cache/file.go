package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var now = time.Now

type entry struct {
	CachedAt time.Time       `json:"cached_at"`
	Items    json.RawMessage `json:"items"`
}

// FileStore keeps one entry in a JSON file.
type FileStore struct {
	path string
	ttl  time.Duration
}

var _ Store = (*FileStore)(nil)

// NewFileStore stores the entry of scope under dir as
// "<resource>_<12hex>.json".
func NewFileStore(dir string, scope Scope, ttl time.Duration) *FileStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	name := scope.resource() + "_" + scope.hash() + ".json"
	return &FileStore{path: filepath.Join(dir, name), ttl: ttl}
}

// Path returns the file backing the entry.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(_ context.Context, dst any) bool {
	if Disabled() {
		return false
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return false
	}
	if now().Sub(e.CachedAt) > s.ttl {
		return false
	}
	return json.Unmarshal(e.Items, dst) == nil
}

func (s *FileStore) Put(_ context.Context, v any) {
	if Disabled() {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	data, err := json.Marshal(entry{CachedAt: now(), Items: raw})
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		_ = os.Remove(tmp)
		return
	}
	_ = os.Rename(tmp, s.path)
}

func (s *FileStore) Clear(context.Context) {
	_ = os.Remove(s.path)
}

func clearDir(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !isCacheFilename(e.Name()) {
			continue
		}
		if os.Remove(filepath.Join(dir, e.Name())) == nil {
			removed++
		}
	}
	return removed
}

// isCacheFilename matches "<resource>_<12hex>.json" so ClearAll never touches
// foreign files in a shared directory.
func isCacheFilename(name string) bool {
	base, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return false
	}
	resource, suffix, ok := strings.Cut(base, "_")
	if !ok || resource == "" || len(suffix) != 12 {
		return false
	}
	for _, c := range suffix {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}

// Package cache implements C4: a namespaced key-value store with TTL,
// per-namespace LRU size bounds, and atomic file persistence.
package cache

import (
	"container/list"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bluekornchips/gandalf/pkg/logger"
)

var cacheLog = logger.New("cache")

// Entry mirrors the CacheEntry data-model record (§3): a namespaced
// key/value pair with its own TTL, independent of the namespace default.
type Entry struct {
	Namespace string          `json:"namespace"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	StoredAt  time.Time       `json:"stored_at"`
	TTL       time.Duration   `json:"ttl_seconds"`
	// Fingerprint, when non-empty, must match the fingerprint passed to
	// Get for a fingerprint-validated namespace (conversation indexes);
	// a mismatch is treated as a miss plus invalidation (§4.8).
	Fingerprint string `json:"fingerprint,omitempty"`
}

func (e *Entry) expired(now time.Time) bool {
	return e.TTL > 0 && now.After(e.StoredAt.Add(e.TTL))
}

type namespaceStore struct {
	mu       sync.RWMutex
	maxSize  int
	entries  map[string]*list.Element // key -> element in lru
	lru      *list.List                // front = most recently used
	loaded   bool
}

type lruItem struct {
	key   string
	entry *Entry
}

func newNamespaceStore(maxSize int) *namespaceStore {
	return &namespaceStore{
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Cache is the process-wide, thread-safe cache singleton (§3, §5). Each
// namespace guards itself with its own lock, so independent namespaces
// never contend. Gets take that lock for writing, like puts, because a hit
// moves the entry to the front of the LRU list.
type Cache struct {
	dir        string
	backupsDir string

	mu         sync.RWMutex
	namespaces map[string]*namespaceStore
	defaultTTL time.Duration
	maxSize    int
}

// New creates a Cache rooted at dir (typically $GANDALF_HOME/cache), with
// backups (§6: backups/<name>.backup.<yyyymmdd_HHMMSS>) written under
// backupsDir. Nothing is read from disk until the first Get for a given
// namespace.
func New(dir, backupsDir string, defaultTTL time.Duration, maxSize int) *Cache {
	return &Cache{
		dir:        dir,
		backupsDir: backupsDir,
		namespaces: make(map[string]*namespaceStore),
		defaultTTL: defaultTTL,
		maxSize:    maxSize,
	}
}

func (c *Cache) store(ns string) *namespaceStore {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.namespaces[ns]
	if !ok {
		s = newNamespaceStore(c.maxSize)
		c.namespaces[ns] = s
	}
	return s
}

// Get returns (value, true) on a hit. For a fingerprint-validated
// namespace, pass the expected fingerprint; a mismatch is reported as a
// miss and the stale entry is invalidated (§4.8, §3).
func (c *Cache) Get(ns, key string, fingerprint string) (json.RawMessage, bool) {
	s := c.store(ns)
	c.loadFromDisk(ns, s)

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	item := elem.Value.(*lruItem)

	now := time.Now()
	if item.entry.expired(now) {
		cacheLog.Printf("%s/%s: expired", ns, key)
		s.lru.Remove(elem)
		delete(s.entries, key)
		c.removeFile(ns, key)
		return nil, false
	}

	if fingerprint != "" && item.entry.Fingerprint != "" && item.entry.Fingerprint != fingerprint {
		cacheLog.Printf("%s/%s: fingerprint mismatch, invalidating", ns, key)
		c.backupFile(ns, key)
		s.lru.Remove(elem)
		delete(s.entries, key)
		c.removeFile(ns, key)
		return nil, false
	}

	s.lru.MoveToFront(elem)
	return item.entry.Value, true
}

// Put stores value under (ns, key) with the given ttl (0 means the
// cache's default TTL applies). Atomic persistence: write to a temp
// file, fsync, rename over the final name.
func (c *Cache) Put(ns, key string, value json.RawMessage, ttl time.Duration, fingerprint string) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	s := c.store(ns)
	entry := &Entry{
		Namespace:   ns,
		Key:         key,
		Value:       value,
		StoredAt:    time.Now(),
		TTL:         ttl,
		Fingerprint: fingerprint,
	}

	s.mu.Lock()
	if elem, ok := s.entries[key]; ok {
		s.lru.Remove(elem)
	}
	elem := s.lru.PushFront(&lruItem{key: key, entry: entry})
	s.entries[key] = elem
	c.evictIfNeeded(s)
	s.mu.Unlock()

	return c.persist(ns, key, entry)
}

func (c *Cache) evictIfNeeded(s *namespaceStore) {
	for s.maxSize > 0 && len(s.entries) > s.maxSize {
		oldest := s.lru.Back()
		if oldest == nil {
			return
		}
		item := oldest.Value.(*lruItem)
		cacheLog.Printf("evicting LRU entry %s (namespace at capacity %d)", item.key, s.maxSize)
		s.lru.Remove(oldest)
		delete(s.entries, item.key)
		c.removeFile(item.entry.Namespace, item.key)
	}
}

// Invalidate removes one key, or every key in ns when key == "".
func (c *Cache) Invalidate(ns, key string) {
	s := c.store(ns)
	c.loadFromDisk(ns, s)
	s.mu.Lock()
	defer s.mu.Unlock()

	if key == "" {
		for k, elem := range s.entries {
			s.lru.Remove(elem)
			c.removeFile(ns, k)
			delete(s.entries, k)
		}
		return
	}

	if elem, ok := s.entries[key]; ok {
		s.lru.Remove(elem)
		delete(s.entries, key)
		c.removeFile(ns, key)
	}
}

// ClearAll invalidates every namespace, including ones this process
// hasn't touched yet but that exist on disk from a prior run (§4.8).
func (c *Cache) ClearAll() {
	for _, ns := range c.Namespaces() {
		c.Invalidate(ns, "")
	}
}

// Namespaces lists every namespace known to this Cache: ones already
// touched in memory, plus any on-disk subdirectory of dir (excluding
// the backups directory itself).
func (c *Cache) Namespaces() []string {
	seen := make(map[string]bool)

	c.mu.RLock()
	for ns := range c.namespaces {
		seen[ns] = true
	}
	c.mu.RUnlock()

	if c.dir != "" {
		if entries, err := os.ReadDir(c.dir); err == nil {
			for _, de := range entries {
				if !de.IsDir() {
					continue
				}
				if filepath.Join(c.dir, de.Name()) == c.backupsDir {
					continue
				}
				seen[de.Name()] = true
			}
		}
	}

	namespaces := make([]string, 0, len(seen))
	for ns := range seen {
		namespaces = append(namespaces, ns)
	}
	return namespaces
}

func (c *Cache) nsDir(ns string) string {
	return filepath.Join(c.dir, ns)
}

func (c *Cache) fileFor(ns, key string) string {
	return filepath.Join(c.nsDir(ns), key+".bin")
}

func (c *Cache) persist(ns, key string, entry *Entry) error {
	if c.dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.nsDir(ns), 0o755); err != nil {
		return err
	}

	blob, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	final := c.fileFor(ns, key)
	tmp := final + "." + uuid.NewString() + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(blob); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, final)
}

// backupFile preserves a fingerprint-invalidated cache blob under the
// cache's backupsDir (GANDALF_HOME/cache/backups as the server and the
// cache command wire it; not GANDALF_HOME/backups) before it is deleted, so a corrupt or
// unexpectedly-stale conversation index can still be inspected
// afterward (see SPEC_FULL.md, "Backup-on-overwrite for cache
// persistence").
func (c *Cache) backupFile(ns, key string) {
	if c.dir == "" || c.backupsDir == "" {
		return
	}
	src := c.fileFor(ns, key)
	blob, err := os.ReadFile(src)
	if err != nil {
		return
	}
	if err := os.MkdirAll(c.backupsDir, 0o755); err != nil {
		return
	}
	name := ns + "_" + key + ".bin"
	dest := filepath.Join(c.backupsDir, name+".backup."+time.Now().Format("20060102_150405"))
	if err := os.WriteFile(dest, blob, 0o644); err != nil {
		cacheLog.Printf("could not back up %s: %v", src, err)
	}
}

func (c *Cache) removeFile(ns, key string) {
	if c.dir == "" {
		return
	}
	_ = os.Remove(c.fileFor(ns, key))
}

// loadFromDisk lazily hydrates a namespace's in-memory index from its
// on-disk files, once per namespace, the first time Get is called for it.
func (c *Cache) loadFromDisk(ns string, s *namespaceStore) {
	s.mu.Lock()
	if s.loaded || c.dir == "" {
		s.mu.Unlock()
		return
	}
	s.loaded = true
	s.mu.Unlock()

	entries, err := os.ReadDir(c.nsDir(ns))
	if err != nil {
		return
	}

	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		key := de.Name()
		const suffix = ".bin"
		if len(key) <= len(suffix) || key[len(key)-len(suffix):] != suffix {
			continue
		}
		key = key[:len(key)-len(suffix)]

		blob, err := os.ReadFile(c.fileFor(ns, key))
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(blob, &entry); err != nil {
			cacheLog.Printf("skipping malformed cache file %s/%s: %v", ns, key, err)
			continue
		}

		s.mu.Lock()
		if _, exists := s.entries[key]; !exists {
			elem := s.lru.PushBack(&lruItem{key: key, entry: &entry})
			s.entries[key] = elem
		}
		s.mu.Unlock()
	}
}

package static

import (
	"container/list"
	"context"
	"errors"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

var errCorruptEntry = errors.New("static: corrupt cache entry")

// Loader reads the payload of a file. compressed reports whether the payload
// is gzipped.
type Loader func() (payload []byte, compressed bool, err error)

// Entry is the cached payload of one file, valid for one ETag.
type Entry struct {
	mu         sync.RWMutex
	etag       string
	payload    []byte
	compressed bool
}

// Cache keeps file payloads in memory keyed by path. An entry is only served
// for the ETag it was stored with. With a capacity above zero the least
// recently used entries are evicted.
type Cache struct {
	entries  *xsync.MapOf[string, *Entry]
	capacity int

	mu    sync.Mutex
	lru   *list.List
	elems map[string]*list.Element
}

func NewCache(capacity int) *Cache {
	return &Cache{
		entries:  xsync.NewMapOf[string, *Entry](),
		capacity: capacity,
		lru:      list.New(),
		elems:    make(map[string]*list.Element),
	}
}

func (c *Cache) Len() int {
	return c.entries.Size()
}

// Lookup returns the payload stored for path when it is still valid for
// etag. A compressed payload is inflated for clients that do not accept gzip.
func (c *Cache) Lookup(path, etag string, gzip bool) (payload []byte, compressed bool, ok bool) {
	entry, found := c.entries.Load(path)
	if !found {
		return nil, false, false
	}

	entry.mu.RLock()
	if entry.etag != etag || entry.payload == nil {
		entry.mu.RUnlock()
		return nil, false, false
	}
	payload, compressed = entry.payload, entry.compressed
	entry.mu.RUnlock()

	c.touch(path)
	return decode(payload, compressed, gzip)
}

// Store replaces the payload of path.
func (c *Cache) Store(path, etag string, payload []byte, compressed bool) {
	entry, _ := c.entries.LoadOrCompute(path, func() *Entry { return &Entry{} })

	entry.mu.Lock()
	entry.etag, entry.payload, entry.compressed = etag, payload, compressed
	entry.mu.Unlock()

	c.touch(path)
}

// Fetch is Lookup falling back to load. Concurrent fetches of a stale entry
// load it once, under the entry write lock.
func (c *Cache) Fetch(path, etag string, gzip bool, load Loader) ([]byte, bool, error) {
	entry, _ := c.entries.LoadOrCompute(path, func() *Entry { return &Entry{} })

	entry.mu.RLock()
	if entry.etag == etag && entry.payload != nil {
		payload, compressed := entry.payload, entry.compressed
		entry.mu.RUnlock()

		cacheHits.Add(context.Background(), 1)
		c.touch(path)
		payload, compressed, ok := decode(payload, compressed, gzip)
		if !ok {
			return nil, false, errCorruptEntry
		}
		return payload, compressed, nil
	}
	entry.mu.RUnlock()

	entry.mu.Lock()
	if entry.etag != etag || entry.payload == nil {
		payload, compressed, err := load()
		if err != nil {
			entry.mu.Unlock()
			return nil, false, err
		}
		cacheMisses.Add(context.Background(), 1)
		entry.etag, entry.payload, entry.compressed = etag, payload, compressed
	}
	payload, compressed := entry.payload, entry.compressed
	entry.mu.Unlock()

	c.touch(path)
	payload, compressed, ok := decode(payload, compressed, gzip)
	if !ok {
		return nil, false, errCorruptEntry
	}
	return payload, compressed, nil
}

// Remove drops the entry of path.
func (c *Cache) Remove(path string) {
	c.entries.Delete(path)

	c.mu.Lock()
	if elem, ok := c.elems[path]; ok {
		c.lru.Remove(elem)
		delete(c.elems, path)
	}
	c.mu.Unlock()
}

func (c *Cache) touch(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.elems[path]; ok {
		c.lru.MoveToFront(elem)
		return
	}
	c.elems[path] = c.lru.PushFront(path)

	for c.capacity > 0 && c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		evicted := oldest.Value.(string)
		c.lru.Remove(oldest)
		delete(c.elems, evicted)
		c.entries.Delete(evicted)
	}
}

func decode(payload []byte, compressed, gzip bool) ([]byte, bool, bool) {
	if !compressed || gzip {
		return payload, compressed, true
	}

	inflated, err := Inflate(payload)
	if err != nil {
		logger.Error("cache: inflating entry failed", "error", err)
		return nil, false, false
	}
	return inflated, false, true
}

package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/SaharaSurfer/trustbit-rag-challenge/schema"
)

// EvidenceCache is a TTL-bounded LRU keyed by (entity, query). It fronts
// the hybrid retriever as an optional optimization layer; the retrieval
// core never requires it.
type EvidenceCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*entry
	order    *list.List
}

type entry struct {
	key     string
	value   schema.Evidence
	expires time.Time
	element *list.Element
}

// NewEvidenceCache creates a cache with the given capacity and TTL.
func NewEvidenceCache(capacity int, ttl time.Duration) *EvidenceCache {
	if capacity <= 0 {
		capacity = 512
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &EvidenceCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*entry, capacity),
		order:    list.New(),
	}
}

// Key builds the cache key for an (entity, query) pair.
func Key(entity, query string) string { return entity + "\x00" + query }

func (c *EvidenceCache) Get(key string) (schema.Evidence, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(ent.expires) {
		c.removeEntry(ent)
		return nil, false
	}
	c.order.MoveToFront(ent.element)
	return ent.value, true
}

func (c *EvidenceCache) Set(key string, value schema.Evidence) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		ent.value = value
		ent.expires = time.Now().Add(c.ttl)
		c.order.MoveToFront(ent.element)
		return
	}
	if len(c.items) >= c.capacity {
		c.evictOldest()
	}
	elem := c.order.PushFront(key)
	c.items[key] = &entry{key: key, value: value, expires: time.Now().Add(c.ttl), element: elem}
}

// Purge drops all entries.
func (c *EvidenceCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*entry, c.capacity)
	c.order.Init()
}

func (c *EvidenceCache) evictOldest() {
	back := c.order.Back()
	if back == nil {
		return
	}
	if ent, ok := c.items[back.Value.(string)]; ok {
		c.removeEntry(ent)
	}
}

func (c *EvidenceCache) removeEntry(ent *entry) {
	c.order.Remove(ent.element)
	delete(c.items, ent.key)
}

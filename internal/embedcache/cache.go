// Package embedcache keeps recently computed image embeddings so that
// repeated prompts on the same image skip the encoder.
//
// Entries are reference counted: an embedding evicted while a request is
// still decoding against it is closed when that request releases it.
package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"

	"segd/internal/sam"
)

// Entry is one cached embedding.
type Entry struct {
	ID        string
	Key       string
	Model     string
	Embedding sam.Embedding
	Created   time.Time

	mu      sync.Mutex
	refs    int
	evicted bool
	closed  bool
}

// Config configures a Cache.
type Config struct {
	// Size is the maximum number of embeddings kept; values below 1 mean 1.
	Size int
	// TTL expires entries after this long; zero keeps them until evicted.
	TTL   time.Duration
	Clock clockwork.Clock
	// OnEvict is called once for every entry leaving the cache.
	OnEvict func(*Entry)
}

// Cache is a bounded, optionally expiring embedding cache.
type Cache struct {
	mu      sync.Mutex
	lru     *expirable.LRU[string, *Entry]
	size    int
	clock   clockwork.Clock
	onEvict func(*Entry)

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New returns an empty cache.
func New(cfg Config) *Cache {
	c := &Cache{size: max(cfg.Size, 1), clock: cfg.Clock, onEvict: cfg.OnEvict}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	c.lru = expirable.NewLRU[string, *Entry](c.size, func(_ string, e *Entry) { c.retire(e) }, cfg.TTL)
	return c
}

// Key builds the cache key for an image identity under a model.
func Key(model, identity string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		model = "unknown"
	}
	sum := sha256.Sum256([]byte(identity))
	return "embed:" + model + ":" + hex.EncodeToString(sum[:])
}

// Get returns the entry stored under key with a reference held; the caller
// must Release it.
func (c *Cache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Get(key)
	if !ok || !e.acquire() {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e, true
}

// Pin is Get without touching the hit and miss counters. A pinned entry
// stays usable after eviction until it is released.
func (c *Cache) Pin(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Peek(key)
	if !ok || !e.acquire() {
		return nil, false
	}
	return e, true
}

// Put stores emb under key, replacing any previous entry, and returns the
// new entry with a reference held.
func (c *Cache) Put(key, model string, emb sam.Embedding) *Entry {
	e := &Entry{
		ID:        uuid.NewString(),
		Key:       key,
		Model:     model,
		Embedding: emb,
		Created:   c.clock.Now(),
		refs:      1,
	}
	c.mu.Lock()
	old, replaced := c.lru.Peek(key)
	c.lru.Add(key, e)
	c.mu.Unlock()
	if replaced && old != e {
		c.retire(old)
	}
	return e
}

// Release drops a reference taken by Get or Put.
func (c *Cache) Release(e *Entry) {
	if e == nil {
		return
	}
	e.mu.Lock()
	e.refs--
	closeNow := e.refs <= 0 && e.evicted && !e.closed
	if closeNow {
		e.closed = true
	}
	e.mu.Unlock()
	if closeNow {
		_ = e.Embedding.Close()
	}
}

// Remove evicts key if present.
func (c *Cache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(key)
}

// Purge evicts every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

func (c *Cache) Len() int { return c.lru.Len() }

func (c *Cache) Capacity() int { return c.size }

// Stats is a point-in-time view of the cache.
type Stats struct {
	Capacity int
	Len      int
	Hits     uint64
	Misses   uint64
	Entries  []EntryInfo
}

// EntryInfo describes an entry without exposing its embedding.
type EntryInfo struct {
	ID      string
	Key     string
	Model   string
	Created time.Time
}

// Stats returns counters and the live entries, oldest first.
func (c *Cache) Stats() Stats {
	vals := c.lru.Values()
	s := Stats{
		Capacity: c.size,
		Len:      len(vals),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Entries:  make([]EntryInfo, 0, len(vals)),
	}
	for _, e := range vals {
		s.Entries = append(s.Entries, EntryInfo{ID: e.ID, Key: e.Key, Model: e.Model, Created: e.Created})
	}
	return s
}

func (e *Entry) acquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return false
	}
	e.refs++
	return true
}

// retire marks e evicted and closes its embedding once unreferenced.
func (c *Cache) retire(e *Entry) {
	e.mu.Lock()
	if e.evicted {
		e.mu.Unlock()
		return
	}
	e.evicted = true
	closeNow := e.refs <= 0 && !e.closed
	if closeNow {
		e.closed = true
	}
	e.mu.Unlock()
	if closeNow {
		_ = e.Embedding.Close()
	}
	if c.onEvict != nil {
		c.onEvict(e)
	}
}

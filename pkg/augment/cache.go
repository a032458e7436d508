package augment

import (
	"context"
	"sync"

	"github.com/japaniel/entipedia/pkg/wikipedia"
	"golang.org/x/sync/singleflight"
)

// Key identifies one lookup. Entities that share an ID but were mentioned
// differently get separate entries.
type Key struct {
	ID      string
	Lang    string
	Mention string
}

func (k Key) String() string {
	return k.ID + "\x00" + k.Lang + "\x00" + k.Mention
}

// Cache memoizes lookup results for the life of the process. It is safe for
// concurrent use, and at most one fetch per key is in flight at a time.
// Failed fetches are not stored.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]wikipedia.Record
	hits    int
	misses  int
	group   singleflight.Group
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[Key]wikipedia.Record)}
}

// Get returns the record stored for k, calling fetch to fill it on a miss.
func (c *Cache) Get(ctx context.Context, k Key, fetch func(context.Context) (wikipedia.Record, error)) (wikipedia.Record, error) {
	if rec, ok := c.lookup(k); ok {
		return rec, nil
	}

	var fetched bool
	v, err, _ := c.group.Do(k.String(), func() (any, error) {
		c.mu.Lock()
		if rec, ok := c.entries[k]; ok {
			c.mu.Unlock()
			return rec, nil
		}
		c.misses++
		c.mu.Unlock()
		fetched = true

		rec, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[k] = rec
		c.mu.Unlock()
		return rec, nil
	})
	if err != nil {
		return wikipedia.Record{}, err
	}
	if !fetched {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
	}
	return v.(wikipedia.Record), nil
}

func (c *Cache) lookup(k Key) (wikipedia.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.entries[k]
	if ok {
		c.hits++
	}
	return rec, ok
}

// Hits is the number of lookups answered without fetching.
func (c *Cache) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

// Misses is the number of fetches performed.
func (c *Cache) Misses() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.misses
}

// Len is the number of stored records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

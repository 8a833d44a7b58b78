// Package query fronts store and database reads with a staleness-window cache
// so list endpoints stay cheap and screens can poll freely. Reads are keyed by
// stable string keys ("contacts", "chats:<phone>", ...); a read inside the key's
// staleness window returns the cached value without invoking the fetch again,
// and concurrent cache misses for the same key share one fetch. Mutations
// invalidate their matching keys so the next read recomputes.
package query

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Well-known cache keys.
const (
	KeyContacts  = "contacts"
	KeyCampaigns = "campaigns"
	KeyTemplates = "templates"
	KeyDashboard = "dashboard"
)

// KeyChats builds the per-thread chat history key.
func KeyChats(phone string) string {
	return "chats:" + phone
}

// FetchFunc produces a fresh value for a key.
type FetchFunc func() (interface{}, error)

type entry struct {
	data      interface{}
	fetchedAt time.Time
}

// Cache is a read-through cache with per-call staleness windows and
// single-flight de-duplication of concurrent fetches.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
	now     func() time.Time
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached value for key if it is younger than ttl, otherwise
// invokes fetch and caches the result. Fetch errors are returned to the caller
// and nothing is cached, so the next read retries.
func (c *Cache) Get(key string, ttl time.Duration, fetch FetchFunc) (interface{}, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.fetchedAt) < ttl {
		return e.data, nil
	}

	data, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Another caller may have refreshed the entry while we waited.
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && c.now().Sub(e.fetchedAt) < ttl {
			return e.data, nil
		}

		data, err := fetch()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = entry{data: data, fetchedAt: c.now()}
		c.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Invalidate drops the given keys so the next read recomputes.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
}

// InvalidatePrefix drops every key with the given prefix. Used for families of
// keys like per-thread chat histories.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

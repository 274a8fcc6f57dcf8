package caching

import (
	"encoding/gob"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Item represents a cached item with an expiration time
type Item struct {
	Value        interface{}
	ExpiresAt    time.Time
	NeverExpires bool
}

// Options configures a Cache. An empty Path keeps the cache in memory only.
type Options struct {
	Path            string
	CleanupInterval time.Duration
	SaveInterval    time.Duration
}

// Cache is a generic thread-safe cache with TTL support
type Cache struct {
	mu    sync.RWMutex
	items map[string]*Item
	dirty bool

	// serializes writers of the cache file
	saveMu sync.Mutex

	path      string
	stop      chan struct{}
	stopOnce  sync.Once
	loopsDone sync.WaitGroup
}

// cacheData is used for serialization (gob can't encode mutexes)
type cacheData struct {
	Items map[string]*Item
}

// NewCache creates a new cache instance
func NewCache(opts Options) *Cache {
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = 5 * time.Minute
	}
	if opts.SaveInterval <= 0 {
		opts.SaveInterval = 30 * time.Second
	}

	c := &Cache{
		items: make(map[string]*Item),
		path:  opts.Path,
		stop:  make(chan struct{}),
	}

	if c.path != "" {
		if err := c.loadFromFile(); err != nil {
			zap.S().Warnf("⚠️ Could not load cache from %s: %v (starting fresh)", c.path, err)
		} else {
			zap.S().Infof("✅ Loaded cache from %s: %d entries", c.path, len(c.items))
		}
	}

	c.loopsDone.Add(1)
	go c.startCleanup(opts.CleanupInterval)
	if c.path != "" {
		c.loopsDone.Add(1)
		go c.startPeriodicSave(opts.SaveInterval)
	}

	return c
}

// Get retrieves a value from the cache
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists {
		return nil, false
	}

	// Expired items stay until the cleanup loop removes them
	if !item.NeverExpires && time.Now().After(item.ExpiresAt) {
		return nil, false
	}

	return item.Value, true
}

// Set stores a value in the cache with a TTL
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &Item{
		Value:     value,
		ExpiresAt: time.Now().Add(ttl),
	}
	c.dirty = true
}

// SetPermanent stores a value in the cache that never expires
func (c *Cache) SetPermanent(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &Item{
		Value:        value,
		NeverExpires: true,
	}
	c.dirty = true
}

// Delete removes a value from the cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	c.dirty = true
}

// Clear removes all items from the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*Item)
	c.dirty = true
}

// Size returns the number of items in the cache
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// GetStats returns cache statistics
func (c *Cache) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := len(c.items)
	permanent := 0
	expired := 0
	now := time.Now()

	for _, item := range c.items {
		if item.NeverExpires {
			permanent++
		} else if now.After(item.ExpiresAt) {
			expired++
		}
	}

	return map[string]interface{}{
		"total_entries":     total,
		"permanent_entries": permanent,
		"expired_entries":   expired,
		"active_entries":    total - expired,
	}
}

// Close stops the background loops. It does not flush; call Flush after
// Close for a final save that no periodic save can race with.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	c.loopsDone.Wait()
}

// Flush writes the cache to disk. It is a no-op for in-memory caches.
func (c *Cache) Flush() error {
	if c.path == "" {
		return nil
	}
	if err := c.saveToFile(); err != nil {
		return err
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
	return nil
}

func (c *Cache) startCleanup(interval time.Duration) {
	defer c.loopsDone.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup removes expired items from the cache
func (c *Cache) cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	count := 0

	for key, item := range c.items {
		if !item.NeverExpires && now.After(item.ExpiresAt) {
			delete(c.items, key)
			count++
		}
	}

	if count > 0 {
		zap.S().Debugf("🧹 Cleaned up %d expired cache entries", count)
		c.dirty = true
	}
	return count
}

func (c *Cache) startPeriodicSave(interval time.Duration) {
	defer c.loopsDone.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.RLock()
			dirty := c.dirty
			c.mu.RUnlock()
			if !dirty {
				continue
			}
			if err := c.Flush(); err != nil {
				zap.S().Warnf("⚠️ Failed to save cache: %v", err)
			}
		}
	}
}

// loadFromFile loads cache data from disk
func (c *Cache) loadFromFile() error {
	file, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "open cache file")
	}
	defer file.Close()

	var data cacheData
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return errors.Wrap(err, "decode cache file")
	}

	c.mu.Lock()
	if data.Items != nil {
		c.items = data.Items
	}
	c.mu.Unlock()

	return nil
}

// saveToFile writes to a temp file and renames it over the cache file
func (c *Cache) saveToFile() error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.RLock()
	snapshot := make(map[string]*Item, len(c.items))
	for k, v := range c.items {
		snapshot[k] = v
	}
	c.mu.RUnlock()

	tmp := c.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "create cache file")
	}

	if err := gob.NewEncoder(file).Encode(cacheData{Items: snapshot}); err != nil {
		file.Close()
		return errors.Wrap(err, "encode cache")
	}
	if err := file.Close(); err != nil {
		return errors.Wrap(err, "close cache file")
	}

	return errors.Wrap(os.Rename(tmp, c.path), "replace cache file")
}

package caching

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCacheGetSet(t *testing.T) {
	c := NewCache(Options{})
	defer c.Close()

	c.Set("a", "page", time.Minute)
	c.SetPermanent("b", "forever")

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "page", v)

	v, ok = c.Get("b")
	require.True(t, ok)
	assert.Equal(t, "forever", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(Options{})
	defer c.Close()

	c.Set("stale", "x", -time.Millisecond)
	c.Set("fresh", "y", time.Hour)
	c.SetPermanent("pinned", "z")

	_, ok := c.Get("stale")
	assert.False(t, ok, "expired entries must not be returned")

	stats := c.GetStats()
	assert.Equal(t, 3, stats["total_entries"])
	assert.Equal(t, 1, stats["expired_entries"])
	assert.Equal(t, 1, stats["permanent_entries"])

	assert.Equal(t, 1, c.cleanup())
	assert.Equal(t, 2, c.Size())
}

func TestCachePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.gob")

	c := NewCache(Options{Path: path})
	c.Set("https://1337x.to/torrent/1/x/", "<html>detail</html>", time.Hour)
	require.NoError(t, c.Flush())
	c.Close()

	reloaded := NewCache(Options{Path: path})
	defer reloaded.Close()

	v, ok := reloaded.Get("https://1337x.to/torrent/1/x/")
	require.True(t, ok)
	assert.Equal(t, "<html>detail</html>", v)
}

func TestCacheInMemoryFlushIsNoop(t *testing.T) {
	c := NewCache(Options{})
	defer c.Close()

	c.Set("k", "v", time.Minute)
	assert.NoError(t, c.Flush())
}

func TestCacheCloseIsIdempotent(t *testing.T) {
	c := NewCache(Options{Path: filepath.Join(t.TempDir(), "c"), SaveInterval: time.Millisecond})
	c.Set("k", "v", time.Minute)
	time.Sleep(5 * time.Millisecond)
	c.Close()
	c.Close()
}

func TestCacheConcurrentFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c")
	c := NewCache(Options{Path: path, SaveInterval: time.Millisecond})
	for i := range 2000 {
		c.Set(fmt.Sprintf("leetx_page_%d", i), "<html>results</html>", time.Hour)
	}

	for range 50 {
		var wg sync.WaitGroup
		errs := make(chan error, 2)
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- c.Flush()
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
	}

	c.Close()
	require.NoError(t, c.Flush())

	reloaded := NewCache(Options{Path: path})
	defer reloaded.Close()
	assert.Equal(t, 2000, reloaded.Size())
}

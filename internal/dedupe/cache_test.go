// ABOUTME: Tests for the claim cache used to avoid duplicate warm runs.
// ABOUTME: Covers TTL expiry, release, size limits, cleanup and concurrency.

package dedupe

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache(ttl time.Duration, maxSize int) (*Cache, *clock) {
	clk := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	c := New(ttl, maxSize)
	c.now = clk.now
	return c, clk
}

func TestTryClaim(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)
	defer c.Close()

	assert.False(t, c.Held("teams"))
	_, ok := c.TryClaim("teams")
	assert.True(t, ok)
	assert.True(t, c.Held("teams"))
	_, ok = c.TryClaim("teams")
	assert.False(t, ok)
}

func TestClaimExpires(t *testing.T) {
	c, clk := newTestCache(time.Minute, 10)
	defer c.Close()

	c.TryClaim("teams")
	clk.advance(59 * time.Second)
	assert.True(t, c.Held("teams"))

	clk.advance(time.Second)
	assert.False(t, c.Held("teams"))
	_, ok := c.TryClaim("teams")
	assert.True(t, ok, "expired claim can be taken again")
}

func TestRelease(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)
	defer c.Close()

	_, token := c.ClaimAll([]string{"teams", "products"})
	c.Release(token, "teams", "unknown")

	assert.False(t, c.Held("teams"))
	assert.True(t, c.Held("products"))
	assert.Equal(t, 1, c.Len())
}

func TestReleaseKeepsNewerClaim(t *testing.T) {
	c, clk := newTestCache(time.Minute, 10)
	defer c.Close()

	_, first := c.ClaimAll([]string{"teams", "products"})
	clk.advance(2 * time.Minute)
	claimed, second := c.ClaimAll([]string{"teams"})
	assert.Equal(t, []string{"teams"}, claimed)
	assert.NotEqual(t, first, second)

	c.Release(first, "teams", "products")

	assert.True(t, c.Held("teams"), "a stale holder must not drop the new claim")
	assert.False(t, c.Held("products"))

	c.Release(second, "teams")
	assert.False(t, c.Held("teams"))
}

func TestClaimAll(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)
	defer c.Close()

	c.TryClaim("products")
	got, _ := c.ClaimAll([]string{"teams", "products", "clients", "teams"})

	assert.Equal(t, []string{"teams", "clients"}, got)
	assert.Equal(t, 3, c.Len())
	again, _ := c.ClaimAll([]string{"teams", "clients"})
	assert.Empty(t, again)
}

func TestEvictsOldestWhenFull(t *testing.T) {
	c, clk := newTestCache(time.Minute, 2)
	defer c.Close()

	c.TryClaim("a")
	clk.advance(time.Second)
	c.TryClaim("b")
	clk.advance(time.Second)
	c.TryClaim("c")

	assert.False(t, c.Held("a"))
	assert.True(t, c.Held("b"))
	assert.True(t, c.Held("c"))
	assert.Equal(t, 2, c.Len())
}

func TestExpiredReclaimMovesToBack(t *testing.T) {
	c, clk := newTestCache(time.Minute, 2)
	defer c.Close()

	c.TryClaim("a")
	c.TryClaim("b")
	clk.advance(2 * time.Minute)
	_, ok := c.TryClaim("a")
	assert.True(t, ok)
	c.TryClaim("c")

	assert.True(t, c.Held("a"))
	assert.True(t, c.Held("c"))
}

func TestExpireRemovesStaleClaims(t *testing.T) {
	c, clk := newTestCache(time.Minute, 10)
	defer c.Close()

	c.TryClaim("a")
	clk.advance(30 * time.Second)
	c.TryClaim("b")
	clk.advance(40 * time.Second)

	c.expire()

	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Held("b"))
}

func TestCloseTwice(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}

func TestConcurrentClaims(t *testing.T) {
	c := New(time.Minute, 100)
	defer c.Close()

	var won atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.TryClaim("teams"); ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
}

// ABOUTME: Thread-safe TTL set of claimed keys.
// ABOUTME: The warmer uses it to skip tables that a running warm already covers.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type claim struct {
	at      time.Time
	token   uint64
	element *list.Element
}

// Cache tracks claimed keys. A claim lasts until it is released or its TTL
// runs out, so a holder that never releases cannot block a key forever.
// When full, the oldest claim is dropped to make room.
type Cache struct {
	mu      sync.Mutex
	claims  map[string]*claim
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	tokens  uint64
	done    chan struct{}
	closed  bool
}

// New creates a cache and starts its background cleanup.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		claims:  make(map[string]*claim),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Held reports whether key has a live claim.
func (c *Cache) Held(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(key)
}

func (c *Cache) liveLocked(key string) bool {
	cl, ok := c.claims[key]
	return ok && c.now().Sub(cl.at) < c.ttl
}

// TryClaim claims key and returns its release token, or returns false if
// key is already held.
func (c *Cache) TryClaim(key string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.liveLocked(key) {
		return 0, false
	}
	token := c.nextToken()
	c.claimLocked(key, token)
	return token, true
}

// ClaimAll claims every key not already held and returns those it claimed,
// in input order, with the token that releases them. Duplicates in keys are
// claimed once.
func (c *Cache) ClaimAll(keys []string) ([]string, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.nextToken()
	var claimed []string
	for _, k := range keys {
		if c.liveLocked(k) {
			continue
		}
		c.claimLocked(k, token)
		claimed = append(claimed, k)
	}
	return claimed, token
}

func (c *Cache) nextToken() uint64 {
	c.tokens++
	return c.tokens
}

func (c *Cache) claimLocked(key string, token uint64) {
	now := c.now()

	if cl, ok := c.claims[key]; ok {
		cl.at = now
		cl.token = token
		c.order.MoveToBack(cl.element)
		return
	}

	if c.maxSize > 0 && len(c.claims) >= c.maxSize {
		c.evictOldest()
	}

	c.claims[key] = &claim{at: now, token: token, element: c.order.PushBack(key)}
}

// Release drops the claims on keys that were taken with token. Unknown keys
// and keys claimed again since, under another token, are left alone.
func (c *Cache) Release(token uint64, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		if cl, ok := c.claims[k]; ok && cl.token == token {
			c.order.Remove(cl.element)
			delete(c.claims, k)
		}
	}
}

// Len returns the number of stored claims, expired ones included until cleanup.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.claims)
}

func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.claims, key)
}

func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.expire()
		case <-c.done:
			return
		}
	}
}

// expire removes claims older than the TTL.
func (c *Cache) expire() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, cl := range c.claims {
		if now.Sub(cl.at) >= c.ttl {
			c.order.Remove(cl.element)
			delete(c.claims, key)
		}
	}
}

// Close stops the background cleanup. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}

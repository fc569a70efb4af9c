package market

import (
	"sync"
	"time"

	"market-bot/internal/domain"
)

type cacheKey struct {
	class  domain.AssetClass
	symbol string
}

type cachedQuote struct {
	quote    domain.Quote
	storedAt time.Time
}

type quoteCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[cacheKey]cachedQuote
}

func newQuoteCache(ttl time.Duration) *quoteCache {
	return &quoteCache{ttl: ttl, entries: make(map[cacheKey]cachedQuote)}
}

func (c *quoteCache) get(class domain.AssetClass, symbol string, now time.Time) (domain.Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{class: class, symbol: symbol}
	e, ok := c.entries[key]
	if !ok {
		return domain.Quote{}, false
	}
	if now.Sub(e.storedAt) > c.ttl {
		delete(c.entries, key)
		return domain.Quote{}, false
	}
	return e.quote, true
}

func (c *quoteCache) put(q domain.Quote, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{class: q.AssetClass, symbol: q.Symbol}] = cachedQuote{quote: q, storedAt: now}
}

func (c *quoteCache) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Package marketdata implements the MarketDataPort (spec §4.2): a polling
// REST leg for snapshots/bars/sector/rankings, a push websocket leg that
// keeps the quote cache warm, and an optional Redis coalescing cache that
// falls back to an in-process cache when no Redis URL is configured.
// Grounded on the teacher's exchangerate/tradernet clients and the pack's
// Redis-backed-with-in-memory-fallback repository pattern.
package marketdata

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/redis/go-redis/v9"
)

// quoteCache coalesces duplicate in-flight quote requests and serves
// short-TTL cached reads, backed by Redis when configured and an
// in-process map otherwise (spec §4.2: "MAY coalesce duplicate in-flight
// requests").
type quoteCache struct {
	redisClient   *redis.Client
	redisUp       atomic.Bool
	ttl           time.Duration
	mu            sync.RWMutex
	local         map[domain.Ticker]cachedQuote
	inflight      map[domain.Ticker]*singleflightCall
	inflightMu    sync.Mutex
}

type cachedQuote struct {
	quote     domain.Quote
	expiresAt time.Time
}

type singleflightCall struct {
	done  chan struct{}
	quote domain.Quote
	err   error
}

func newQuoteCache(redisURL string, ttl time.Duration) *quoteCache {
	c := &quoteCache{
		ttl:      ttl,
		local:    make(map[domain.Ticker]cachedQuote),
		inflight: make(map[domain.Ticker]*singleflightCall),
	}
	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err == nil {
			c.redisClient = redis.NewClient(opts)
			c.redisUp.Store(true)
		}
	}
	return c
}

func (c *quoteCache) key(t domain.Ticker) string {
	return "momentum:quote:" + string(t)
}

// get returns a cached quote if still fresh.
func (c *quoteCache) get(ctx context.Context, t domain.Ticker) (domain.Quote, bool) {
	if c.redisClient != nil && c.redisUp.Load() {
		raw, err := c.redisClient.Get(ctx, c.key(t)).Bytes()
		if err == nil {
			var q domain.Quote
			if jerr := json.Unmarshal(raw, &q); jerr == nil {
				return q, true
			}
		}
		if err != nil && err != redis.Nil {
			c.redisUp.Store(false)
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.local[t]
	if !ok || time.Now().After(entry.expiresAt) {
		return domain.Quote{}, false
	}
	return entry.quote, true
}

func (c *quoteCache) set(ctx context.Context, t domain.Ticker, q domain.Quote) {
	if c.redisClient != nil && c.redisUp.Load() {
		if raw, err := json.Marshal(q); err == nil {
			if err := c.redisClient.Set(ctx, c.key(t), raw, c.ttl).Err(); err != nil {
				c.redisUp.Store(false)
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[t] = cachedQuote{quote: q, expiresAt: time.Now().Add(c.ttl)}
}

// coalesce runs fetch at most once per ticker for any concurrently
// overlapping callers, the way the teacher's exchangerate client treats a
// single upstream call as shared state rather than one call per caller.
func (c *quoteCache) coalesce(t domain.Ticker, fetch func() (domain.Quote, error)) (domain.Quote, error) {
	c.inflightMu.Lock()
	if call, ok := c.inflight[t]; ok {
		c.inflightMu.Unlock()
		<-call.done
		return call.quote, call.err
	}
	call := &singleflightCall{done: make(chan struct{})}
	c.inflight[t] = call
	c.inflightMu.Unlock()

	call.quote, call.err = fetch()
	close(call.done)

	c.inflightMu.Lock()
	delete(c.inflight, t)
	c.inflightMu.Unlock()

	return call.quote, call.err
}

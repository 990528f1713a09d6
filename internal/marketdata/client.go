package marketdata

import (
	"context"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/nyxtrade/momentum-trader/internal/ports"
	"github.com/rs/zerolog"
)

// Config configures the Market Data Port adapter (spec §4.2).
type Config struct {
	BaseURL      string
	APIKey       string
	StreamURL    string
	RedisURL     string
	QuoteCacheTTL time.Duration
	StreamStaleAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		QuoteCacheTTL:    2 * time.Second,
		StreamStaleAfter: 10 * time.Second,
	}
}

// Client implements ports.MarketDataPort by combining a push websocket feed
// (freshest quotes, when connected) with a polling REST leg (bars, sector,
// rankings, and the quote fallback), coalesced through a short-TTL cache.
type Client struct {
	cfg    Config
	rest   *restLeg
	stream *quoteStream
	cache  *quoteCache
	log    zerolog.Logger
}

var _ ports.MarketDataPort = (*Client)(nil)

func New(cfg Config, log zerolog.Logger) *Client {
	scoped := log.With().Str("component", "marketdata").Logger()
	return &Client{
		cfg:    cfg,
		rest:   newRESTLeg(cfg.BaseURL, cfg.APIKey, scoped),
		stream: newQuoteStream(cfg.StreamURL, scoped),
		cache:  newQuoteCache(cfg.RedisURL, cfg.QuoteCacheTTL),
		log:    scoped,
	}
}

// Start launches the background push-feed connection. Safe to call even
// when no stream URL is configured (becomes a no-op).
func (c *Client) Start(ctx context.Context) {
	c.stream.Start(ctx)
}

// Snapshot prefers a recent push-feed tick, falls back to the coalesced
// REST leg, and degrades to whatever is cached on upstream failure
// (spec §4.2/§7 — transient errors degrade rather than propagate a panic).
func (c *Client) Snapshot(ctx context.Context, ticker domain.Ticker) (domain.Quote, error) {
	if q, ok := c.stream.get(ticker); ok && time.Since(q.Timestamp) < c.cfg.StreamStaleAfter {
		return q, nil
	}

	if q, ok := c.cache.get(ctx, ticker); ok {
		return q, nil
	}

	q, err := c.cache.coalesce(ticker, func() (domain.Quote, error) {
		return c.rest.fetchSnapshot(ctx, ticker)
	})
	if err != nil {
		c.cache.mu.RLock()
		stale, ok := c.cache.local[ticker]
		c.cache.mu.RUnlock()
		if ok {
			c.log.Warn().Err(err).Str("ticker", string(ticker)).Msg("snapshot fetch failed, serving stale cache")
			return stale.quote, nil
		}
		return domain.Quote{}, err
	}

	c.cache.set(ctx, ticker, q)
	return q, nil
}

func (c *Client) Bars(ctx context.Context, ticker domain.Ticker, interval time.Duration, from, to time.Time) ([]domain.Bar, error) {
	return c.rest.fetchBars(ctx, ticker, interval, from, to)
}

func (c *Client) Gainers(ctx context.Context) ([]ports.ShallowQuote, error) {
	return c.rest.fetchRanking(ctx, "gainers")
}

func (c *Client) Losers(ctx context.Context) ([]ports.ShallowQuote, error) {
	return c.rest.fetchRanking(ctx, "losers")
}

func (c *Client) Sector(ctx context.Context, ticker domain.Ticker) (string, error) {
	return c.rest.fetchSector(ctx, ticker)
}

package ports

import (
	"context"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/domain"
)

// ShallowQuote is the ranked-gainers/losers row shape (spec §4.2).
type ShallowQuote struct {
	Ticker       domain.Ticker
	Last         float64
	DayChangePct float64
	SessionVol   int64
}

// MarketDataPort is a read-only view over external quotes, bars, snapshots,
// and ticker reference data (spec §4.2). All operations are idempotent and
// safe for concurrent calls; implementations MAY coalesce duplicate
// in-flight requests.
type MarketDataPort interface {
	Snapshot(ctx context.Context, ticker domain.Ticker) (domain.Quote, error)
	Bars(ctx context.Context, ticker domain.Ticker, interval time.Duration, from, to time.Time) ([]domain.Bar, error)
	Gainers(ctx context.Context) ([]ShallowQuote, error)
	Losers(ctx context.Context) ([]ShallowQuote, error)
	Sector(ctx context.Context, ticker domain.Ticker) (string, error)
}

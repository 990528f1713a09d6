package ports

import (
	"context"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/nyxtrade/momentum-trader/internal/sentiment"
)

// SentimentSourcePort fetches raw sentiment observations for a ticker over
// a lookback window, ahead of the Sentiment Aggregator's composite scoring
// (spec §4.7). Implementations MAY merge multiple source families (news,
// forum, social) into one slice; failures degrade to an empty slice
// upstream rather than blocking the Recommender.
type SentimentSourcePort interface {
	Fetch(ctx context.Context, ticker domain.Ticker, lookback time.Duration) ([]sentiment.DataPoint, error)
}

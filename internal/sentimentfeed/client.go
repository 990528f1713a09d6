// Package sentimentfeed implements the SentimentSourcePort (spec §4.7 data
// collection leg): a polling HTTP client over a configured aggregator
// endpoint that returns raw per-source observations (news/forum/social),
// mirroring the original's multi-source collection habit
// (enhanced_sentiment.py's reddit/twitter/news fan-in) but against one
// already-aggregated upstream feed instead of three separate SDKs.
// Grounded on the teacher's exchangerate client's typed-timeout HTTP shape.
package sentimentfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/nyxtrade/momentum-trader/internal/ports"
	"github.com/nyxtrade/momentum-trader/internal/sentiment"
	"github.com/rs/zerolog"
)

type Config struct {
	BaseURL string
	APIKey  string
}

// Client implements ports.SentimentSourcePort.
type Client struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

var _ ports.SentimentSourcePort = (*Client)(nil)

func New(cfg Config, log zerolog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
		log:    log.With().Str("component", "sentiment_feed").Logger(),
	}
}

type dataPointDTO struct {
	Text              string  `json:"text"`
	RawScore          float64 `json:"raw_score"`
	Confidence        float64 `json:"confidence"`
	Source            string  `json:"source"`
	TimestampUnix     int64   `json:"timestamp"`
	AuthorCredibility float64 `json:"author_credibility"`
	Engagement        float64 `json:"engagement"`
}

// Fetch degrades to an empty slice (not an error) when no feed endpoint is
// configured, so the Recommender's sentiment step falls back to the
// zero-confidence neutral case rather than treating a missing feed as
// transient data unavailability.
func (c *Client) Fetch(ctx context.Context, ticker domain.Ticker, lookback time.Duration) ([]sentiment.DataPoint, error) {
	if c.cfg.BaseURL == "" {
		return nil, nil
	}

	since := time.Now().Add(-lookback).Unix()
	u := fmt.Sprintf("%s/v1/sentiment/%s?since=%d", c.cfg.BaseURL, url.PathEscape(string(ticker)), since)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ports.ErrDataUnavailable, err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("ticker", string(ticker)).Msg("sentiment feed unavailable, degrading to no observations")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Str("ticker", string(ticker)).Msg("sentiment feed returned non-200, degrading to no observations")
		return nil, nil
	}

	var dtos []dataPointDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		c.log.Warn().Err(err).Msg("sentiment feed decode failure, degrading to no observations")
		return nil, nil
	}

	points := make([]sentiment.DataPoint, 0, len(dtos))
	for _, d := range dtos {
		points = append(points, sentiment.DataPoint{
			Text:              d.Text,
			RawScore:          d.RawScore,
			Confidence:        d.Confidence,
			Source:            d.Source,
			Timestamp:         time.Unix(d.TimestampUnix, 0).UTC(),
			AuthorCredibility: d.AuthorCredibility,
			Engagement:        d.Engagement,
		})
	}
	return points, nil
}

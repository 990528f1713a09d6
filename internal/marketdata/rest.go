package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/nyxtrade/momentum-trader/internal/ports"
	"github.com/rs/zerolog"
)

// restLeg is the polling HTTP client used for snapshots, bars, rankings, and
// sector lookups. It mirrors the teacher's exchangerate client: a thin
// fmt.Sprintf URL builder, a short-timeout *http.Client, and error wrapping
// into the platform's typed taxonomy rather than raw transport errors.
type restLeg struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

func newRESTLeg(baseURL, apiKey string, log zerolog.Logger) *restLeg {
	return &restLeg{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 5 * time.Second},
		log:     log.With().Str("component", "marketdata_rest").Logger(),
	}
}

type quoteDTO struct {
	Ticker        string  `json:"ticker"`
	Last          float64 `json:"last"`
	Bid           float64 `json:"bid"`
	Ask           float64 `json:"ask"`
	SessionVol    int64   `json:"session_volume"`
	DayOpen       float64 `json:"day_open"`
	DayHigh       float64 `json:"day_high"`
	DayLow        float64 `json:"day_low"`
	PreviousClose float64 `json:"previous_close"`
	TimestampUnix int64   `json:"timestamp"`
}

func (r *restLeg) fetchSnapshot(ctx context.Context, ticker domain.Ticker) (domain.Quote, error) {
	u := fmt.Sprintf("%s/v1/quote/%s", r.baseURL, url.PathEscape(string(ticker)))
	var dto quoteDTO
	if err := r.getJSON(ctx, u, &dto); err != nil {
		return domain.Quote{}, err
	}
	return domain.Quote{
		Ticker:        domain.Ticker(dto.Ticker),
		Timestamp:     time.Unix(dto.TimestampUnix, 0).UTC(),
		Last:          dto.Last,
		Bid:           dto.Bid,
		Ask:           dto.Ask,
		SessionVol:    dto.SessionVol,
		DayOpen:       dto.DayOpen,
		DayHigh:       dto.DayHigh,
		DayLow:        dto.DayLow,
		PreviousClose: dto.PreviousClose,
	}, nil
}

type barDTO struct {
	StartUnix int64   `json:"start"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

func (r *restLeg) fetchBars(ctx context.Context, ticker domain.Ticker, interval time.Duration, from, to time.Time) ([]domain.Bar, error) {
	u := fmt.Sprintf("%s/v1/bars/%s?interval=%s&from=%d&to=%d",
		r.baseURL, url.PathEscape(string(ticker)), interval.String(), from.Unix(), to.Unix())

	var dtos []barDTO
	if err := r.getJSON(ctx, u, &dtos); err != nil {
		return nil, err
	}

	bars := make([]domain.Bar, 0, len(dtos))
	for _, d := range dtos {
		bars = append(bars, domain.Bar{
			Ticker:   ticker,
			Interval: interval,
			Start:    time.Unix(d.StartUnix, 0).UTC(),
			Open:     d.Open,
			High:     d.High,
			Low:      d.Low,
			Close:    d.Close,
			Volume:   d.Volume,
		})
	}
	return bars, nil
}

type shallowQuoteDTO struct {
	Ticker       string  `json:"ticker"`
	Last         float64 `json:"last"`
	DayChangePct float64 `json:"day_change_pct"`
	SessionVol   int64   `json:"session_volume"`
}

func (r *restLeg) fetchRanking(ctx context.Context, path string) ([]ports.ShallowQuote, error) {
	u := fmt.Sprintf("%s/v1/%s", r.baseURL, path)
	var dtos []shallowQuoteDTO
	if err := r.getJSON(ctx, u, &dtos); err != nil {
		return nil, err
	}
	out := make([]ports.ShallowQuote, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, ports.ShallowQuote{
			Ticker:       domain.Ticker(d.Ticker),
			Last:         d.Last,
			DayChangePct: d.DayChangePct,
			SessionVol:   d.SessionVol,
		})
	}
	return out, nil
}

func (r *restLeg) fetchSector(ctx context.Context, ticker domain.Ticker) (string, error) {
	u := fmt.Sprintf("%s/v1/sector/%s", r.baseURL, url.PathEscape(string(ticker)))
	var dto struct {
		Sector string `json:"sector"`
	}
	if err := r.getJSON(ctx, u, &dto); err != nil {
		return "", err
	}
	return dto.Sector, nil
}

func (r *restLeg) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: building request: %v", ports.ErrDataUnavailable, err)
	}
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ports.ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ports.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ports.ErrRateLimited, resp.StatusCode)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", ports.ErrTimeout, resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d", ports.ErrDataUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ports.ErrDataUnavailable, err)
	}
	return nil
}

package marketdata

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/rs/zerolog"
)

const (
	streamBaseReconnectDelay = 1 * time.Second
	streamMaxReconnectDelay  = 30 * time.Second
)

// tickDTO is one push update off the live quote feed.
type tickDTO struct {
	Ticker        string  `json:"ticker"`
	Last          float64 `json:"last"`
	Bid           float64 `json:"bid"`
	Ask           float64 `json:"ask"`
	SessionVol    int64   `json:"session_volume"`
	TimestampUnix int64   `json:"timestamp"`
}

// quoteStream consumes a live push feed and keeps an in-process cache of the
// latest tick per ticker, reconnecting with exponential backoff on drop.
// Grounded on the teacher's MarketStatusWebSocket reconnect loop and the
// pack's binance aggTrade ingester.
type quoteStream struct {
	url string
	log zerolog.Logger

	mu     sync.RWMutex
	latest map[domain.Ticker]domain.Quote
}

func newQuoteStream(url string, log zerolog.Logger) *quoteStream {
	return &quoteStream{
		url:    url,
		log:    log.With().Str("component", "marketdata_stream").Logger(),
		latest: make(map[domain.Ticker]domain.Quote),
	}
}

// Start launches the reconnecting read loop in the background. It is a
// no-op if no stream URL was configured.
func (s *quoteStream) Start(ctx context.Context) {
	if s.url == "" {
		return
	}
	go s.loop(ctx)
}

func (s *quoteStream) loop(ctx context.Context) {
	delay := streamBaseReconnectDelay
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.connectAndConsume(ctx); err != nil {
			s.log.Warn().Err(err).Dur("retry_in", delay).Msg("quote stream disconnected, reconnecting")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > streamMaxReconnectDelay {
				delay = streamMaxReconnectDelay
			}
			continue
		}
		delay = streamBaseReconnectDelay
	}
}

func (s *quoteStream) connectAndConsume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var tick tickDTO
		if err := json.Unmarshal(raw, &tick); err != nil {
			s.log.Debug().Err(err).Msg("quote stream: dropping malformed tick")
			continue
		}
		s.apply(tick)
	}
}

func (s *quoteStream) apply(tick tickDTO) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[domain.Ticker(tick.Ticker)] = domain.Quote{
		Ticker:     domain.Ticker(tick.Ticker),
		Timestamp:  time.Unix(tick.TimestampUnix, 0).UTC(),
		Last:       tick.Last,
		Bid:        tick.Bid,
		Ask:        tick.Ask,
		SessionVol: tick.SessionVol,
	}
}

// get returns the latest pushed quote for ticker, if one has arrived
// recently enough to trust (staleness is the caller's judgment call).
func (s *quoteStream) get(ticker domain.Ticker) (domain.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.latest[ticker]
	return q, ok
}

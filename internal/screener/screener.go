// Package screener implements the Screener (spec §4.4): it reduces the
// tradable universe to a bounded, sector-diverse watchlist, the way the
// teacher's internal/scanner narrows a universe before handing candidates
// to the recommender stage.
package screener

import (
	"context"
	"sort"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/nyxtrade/momentum-trader/internal/ports"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Config mirrors the screening knobs of spec §4.4/§6.
type Config struct {
	GainersCap        int
	PriceMin          float64
	PriceMax          float64
	MinSessionVolume  int64
	MinMomentumScore  float64
	MaxPerSector      int
	EnrichConcurrency int64
	EnrichInterval    time.Duration
}

// DefaultConfig matches spec §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		GainersCap:        100,
		PriceMin:          0.75,
		PriceMax:          10.0,
		MinSessionVolume:  100_000,
		MinMomentumScore:  5.0,
		MaxPerSector:      3,
		EnrichConcurrency: 8,
		EnrichInterval:    100 * time.Millisecond,
	}
}

// WatchlistStore is the narrow persistence seam the Screener needs: append
// the new watchlist and, on degraded-mode failure, recall the last one.
type WatchlistStore interface {
	AppendWatchlist(ctx context.Context, entries []domain.WatchlistEntry, screenedAt time.Time) error
	QueryLatestWatchlist(ctx context.Context) ([]domain.WatchlistEntry, error)
}

// Screener runs the full screening pipeline on demand.
type Screener struct {
	cfg     Config
	market  ports.MarketDataPort
	store   WatchlistStore
	log     zerolog.Logger
	nowFn   func() time.Time
	lastRun time.Time
	degraded bool
}

func New(cfg Config, market ports.MarketDataPort, store WatchlistStore, log zerolog.Logger) *Screener {
	return &Screener{cfg: cfg, market: market, store: store, log: log, nowFn: time.Now}
}

// Degraded reports whether the most recent Run fell back to the previously
// persisted watchlist because the upstream gainers call failed (spec §4.4).
func (s *Screener) Degraded() bool { return s.degraded }

// Run executes one full screening pass (spec §4.4 steps 1-6).
func (s *Screener) Run(ctx context.Context) ([]domain.WatchlistEntry, error) {
	now := s.nowFn()

	gainers, err := s.market.Gainers(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("screener: gainers call failed, degrading to previous watchlist")
		s.degraded = true
		prev, qerr := s.store.QueryLatestWatchlist(ctx)
		if qerr != nil {
			return nil, qerr
		}
		return prev, nil
	}
	s.degraded = false

	if len(gainers) > s.cfg.GainersCap {
		gainers = gainers[:s.cfg.GainersCap]
	}

	candidates := make([]ports.ShallowQuote, 0, len(gainers))
	for _, g := range gainers {
		if g.Last < s.cfg.PriceMin || g.Last > s.cfg.PriceMax {
			continue
		}
		if g.SessionVol < s.cfg.MinSessionVolume {
			continue
		}
		candidates = append(candidates, g)
	}

	entries := s.enrich(ctx, candidates, now)

	scored := entries[:0]
	for _, e := range entries {
		if e.MomentumScore >= s.cfg.MinMomentumScore {
			scored = append(scored, e)
		}
	}

	diversified := enforceSectorDiversity(scored, s.cfg.MaxPerSector)

	if err := s.store.AppendWatchlist(ctx, diversified, now); err != nil {
		return nil, err
	}
	s.lastRun = now
	return diversified, nil
}

// enrich computes a momentum score per candidate under bounded concurrency
// and a minimum inter-call spacing (spec §4.4: "at least 100ms between
// per-ticker enrichment calls ... never block on more than one ticker
// concurrently beyond an implementation-configurable bounded concurrency").
func (s *Screener) enrich(ctx context.Context, candidates []ports.ShallowQuote, now time.Time) []domain.WatchlistEntry {
	sem := semaphore.NewWeighted(s.cfg.EnrichConcurrency)
	results := make([]domain.WatchlistEntry, len(candidates))
	valid := make([]bool, len(candidates))

	ticker := time.NewTicker(s.cfg.EnrichInterval)
	defer ticker.Stop()

	done := make(chan struct{}, len(candidates))
	remaining := len(candidates)
	for i, c := range candidates {
		i, c := i, c

		if ctx.Err() != nil {
			remaining--
			continue
		}
		select {
		case <-ctx.Done():
			remaining--
			continue
		case <-ticker.C:
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			remaining--
			continue
		}
		go func() {
			defer sem.Release(1)
			defer func() { done <- struct{}{} }()

			sector, err := s.market.Sector(ctx, c.Ticker)
			if err != nil {
				s.log.Debug().Err(err).Str("ticker", string(c.Ticker)).Msg("screener: sector lookup failed, dropping candidate")
				return
			}

			relVol := relativeVolume(c.SessionVol, s.cfg.MinSessionVolume)
			score := momentumScore(c.DayChangePct, relVol, c.Last, s.cfg.PriceMin, s.cfg.PriceMax)

			results[i] = domain.WatchlistEntry{
				Ticker:         c.Ticker,
				SnapshotPrice:  c.Last,
				DayChangePct:   c.DayChangePct,
				RelativeVolume: relVol,
				MomentumScore:  score,
				Sector:         sector,
				ScreenedAt:     now,
			}
			valid[i] = true
		}()
	}
	for j := 0; j < remaining; j++ {
		<-done
	}

	out := make([]domain.WatchlistEntry, 0, len(candidates))
	for i, ok := range valid {
		if ok {
			out = append(out, results[i])
		}
	}
	return out
}

// momentumScore implements spec §4.4 step 3: day % change contributes 0-4
// points, relative volume 0-3 points, price-band preference 0-3 points.
func momentumScore(dayChangePct, relativeVolume, price, priceMin, priceMax float64) float64 {
	changePts := clamp(dayChangePct/10.0*4.0, 0, 4)
	volumePts := clamp((relativeVolume-1.0)*1.5, 0, 3)

	mid := (priceMin + priceMax) / 2
	span := (priceMax - priceMin) / 2
	var bandPts float64
	if span > 0 {
		distance := absF(price-mid) / span
		bandPts = clamp(3*(1-distance), 0, 3)
	}
	return changePts + volumePts + bandPts
}

// relativeVolume approximates volume vs. the prior-day norm using the
// screening floor as a stand-in baseline when no prior-day figure is
// available from the shallow quote.
func relativeVolume(sessionVol, baseline int64) float64 {
	if baseline <= 0 {
		return 1.0
	}
	return float64(sessionVol) / float64(baseline)
}

// enforceSectorDiversity keeps at most maxPerSector candidates per sector,
// preferring the highest momentum score within each sector (spec §4.4 step 5).
func enforceSectorDiversity(entries []domain.WatchlistEntry, maxPerSector int) []domain.WatchlistEntry {
	sorted := make([]domain.WatchlistEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MomentumScore > sorted[j].MomentumScore })

	counts := map[string]int{}
	out := make([]domain.WatchlistEntry, 0, len(sorted))
	for _, e := range sorted {
		if counts[e.Sector] >= maxPerSector {
			continue
		}
		counts[e.Sector]++
		out = append(out, e)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

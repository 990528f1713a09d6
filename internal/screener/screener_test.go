package screener

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/nyxtrade/momentum-trader/internal/ports"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarket struct {
	gainers    []ports.ShallowQuote
	gainersErr error
	sectors    map[domain.Ticker]string
}

func (f *fakeMarket) Snapshot(ctx context.Context, t domain.Ticker) (domain.Quote, error) {
	return domain.Quote{}, nil
}
func (f *fakeMarket) Bars(ctx context.Context, t domain.Ticker, interval time.Duration, from, to time.Time) ([]domain.Bar, error) {
	return nil, nil
}
func (f *fakeMarket) Gainers(ctx context.Context) ([]ports.ShallowQuote, error) {
	return f.gainers, f.gainersErr
}
func (f *fakeMarket) Losers(ctx context.Context) ([]ports.ShallowQuote, error) { return nil, nil }
func (f *fakeMarket) Sector(ctx context.Context, t domain.Ticker) (string, error) {
	if s, ok := f.sectors[t]; ok {
		return s, nil
	}
	return "unknown", nil
}

type fakeStore struct {
	latest []domain.WatchlistEntry
	saved  [][]domain.WatchlistEntry
}

func (f *fakeStore) AppendWatchlist(ctx context.Context, entries []domain.WatchlistEntry, at time.Time) error {
	f.saved = append(f.saved, entries)
	f.latest = entries
	return nil
}
func (f *fakeStore) QueryLatestWatchlist(ctx context.Context) ([]domain.WatchlistEntry, error) {
	return f.latest, nil
}

func testConfig() Config {
	c := DefaultConfig()
	c.EnrichInterval = time.Millisecond
	return c
}

func TestRun_FiltersByPriceBandAndVolume(t *testing.T) {
	market := &fakeMarket{
		gainers: []ports.ShallowQuote{
			{Ticker: "AAA", Last: 5.0, DayChangePct: 8, SessionVol: 500_000},   // in band
			{Ticker: "BBB", Last: 50.0, DayChangePct: 8, SessionVol: 500_000},  // out of band
			{Ticker: "CCC", Last: 5.0, DayChangePct: 8, SessionVol: 10_000},    // below volume floor
		},
		sectors: map[domain.Ticker]string{"AAA": "technology"},
	}
	store := &fakeStore{}
	s := New(testConfig(), market, store, zerolog.Nop())

	entries, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.Ticker("AAA"), entries[0].Ticker)
	assert.False(t, s.Degraded())
}

func TestRun_EnforcesMaxPerSector(t *testing.T) {
	gainers := make([]ports.ShallowQuote, 0, 5)
	sectors := map[domain.Ticker]string{}
	for i := 0; i < 5; i++ {
		tk := domain.Ticker(string(rune('A'+i)) + "AA")
		gainers = append(gainers, ports.ShallowQuote{Ticker: tk, Last: 5.0, DayChangePct: 9, SessionVol: 1_000_000})
		sectors[tk] = "technology"
	}
	market := &fakeMarket{gainers: gainers, sectors: sectors}
	store := &fakeStore{}
	cfg := testConfig()
	cfg.MaxPerSector = 3
	s := New(cfg, market, store, zerolog.Nop())

	entries, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, len(entries), 3)
}

func TestRun_DegradesToPreviousWatchlistOnGainersFailure(t *testing.T) {
	prev := []domain.WatchlistEntry{{Ticker: "ZZZ", MomentumScore: 7}}
	market := &fakeMarket{gainersErr: errors.New("upstream unavailable")}
	store := &fakeStore{latest: prev}
	s := New(testConfig(), market, store, zerolog.Nop())

	entries, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, prev, entries)
	assert.True(t, s.Degraded())
}

func TestMomentumScore_BoundedZeroToTen(t *testing.T) {
	score := momentumScore(50, 10, 5.0, 0.75, 10.0)
	assert.LessOrEqual(t, score, 10.0)
	assert.GreaterOrEqual(t, score, 0.0)
}

func TestEnforceSectorDiversity_KeepsHighestScorePerSector(t *testing.T) {
	entries := []domain.WatchlistEntry{
		{Ticker: "A", Sector: "tech", MomentumScore: 9},
		{Ticker: "B", Sector: "tech", MomentumScore: 8},
		{Ticker: "C", Sector: "tech", MomentumScore: 7},
		{Ticker: "D", Sector: "tech", MomentumScore: 6},
	}
	out := enforceSectorDiversity(entries, 2)
	require.Len(t, out, 2)
	assert.Equal(t, domain.Ticker("A"), out[0].Ticker)
	assert.Equal(t, domain.Ticker("B"), out[1].Ticker)
}

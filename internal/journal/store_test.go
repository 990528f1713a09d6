package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	db, err := Open(Config{Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func TestAppendAndQueryDecisions_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		d := domain.DecisionRecord{
			ID:          uuidFor(t, i),
			Ticker:      "AAPL",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
			FinalAction: domain.ActionBuy,
		}
		require.NoError(t, s.AppendDecision(ctx, d))
	}

	got, err := s.QueryDecisions(ctx, "AAPL", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.True(t, got[0].CreatedAt.After(got[1].CreatedAt))
	require.True(t, got[1].CreatedAt.After(got[2].CreatedAt))
}

func TestUpdateOutcome_AttachesOutcomeInPlace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := domain.DecisionRecord{ID: "dec-1", Ticker: "MSFT", CreatedAt: time.Now(), FinalAction: domain.ActionBuy}
	require.NoError(t, s.AppendDecision(ctx, d))

	outcome := domain.Outcome{PredictionID: "pred-1", RealizedMovePct: 0.04, Success: true, ClosedAt: time.Now()}
	require.NoError(t, s.UpdateOutcome(ctx, "dec-1", outcome, 0.82))

	got, err := s.QueryDecisions(ctx, "MSFT", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].ActualOutcome)
	require.Equal(t, 0.04, got[0].ActualOutcome.RealizedMovePct)
	require.NotNil(t, got[0].AccuracyScore)
	require.InDelta(t, 0.82, *got[0].AccuracyScore, 1e-9)
}

func TestQueryLatestWatchlist_DegradesToNilWhenEmpty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.QueryLatestWatchlist(context.Background())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestAppendWatchlist_RoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entries := []domain.WatchlistEntry{
		{Ticker: "NVDA", SnapshotPrice: 120.5, DayChangePct: 3.2, MomentumScore: 7.1, Sector: "technology"},
	}
	require.NoError(t, s.AppendWatchlist(ctx, entries, time.Now()))

	got, err := s.QueryLatestWatchlist(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, domain.Ticker("NVDA"), got[0].Ticker)
}

func TestQueryOpenPositions_FiltersClosed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	open := domain.Position{ID: "p1", Ticker: "TSLA", CreatedAt: time.Now()}
	closed := domain.Position{ID: "p2", Ticker: "AMD", CreatedAt: time.Now()}
	require.NoError(t, s.AppendPosition(ctx, open, true))
	require.NoError(t, s.AppendPosition(ctx, closed, false))

	got, err := s.QueryOpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, domain.Ticker("TSLA"), got[0].Ticker)
}

func TestQueryDecisionsWithOutcomes_OnlyReturnsResolved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendDecision(ctx, domain.DecisionRecord{ID: "dec-open", Ticker: "AAPL", CreatedAt: time.Now()}))
	require.NoError(t, s.AppendDecision(ctx, domain.DecisionRecord{ID: "dec-resolved", Ticker: "AAPL", CreatedAt: time.Now()}))
	require.NoError(t, s.UpdateOutcome(ctx, "dec-resolved", domain.Outcome{PredictionID: "pred-x", ClosedAt: time.Now()}, 0.6))

	got, err := s.QueryDecisionsWithOutcomes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "dec-resolved", got[0].ID)
}

func uuidFor(t *testing.T, i int) string {
	t.Helper()
	return "dec-" + string(rune('a'+i))
}

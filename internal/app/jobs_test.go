package app

import (
	"testing"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/confirmation"
	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/nyxtrade/momentum-trader/internal/ports"
	"github.com/stretchr/testify/assert"
)

func TestSharesFor_ComputesWholeSharesFromFractionAndEquity(t *testing.T) {
	assert.Equal(t, int64(50), sharesFor(0.05, 100_000, 100))
}

func TestSharesFor_ZeroEntryYieldsZeroShares(t *testing.T) {
	assert.Equal(t, int64(0), sharesFor(0.05, 100_000, 0))
}

func TestSharesFor_RoundsDownRatherThanUp(t *testing.T) {
	// 0.05 * 100_000 / 30 = 166.67 -> 166 whole shares, never 167.
	assert.Equal(t, int64(166), sharesFor(0.05, 100_000, 30))
}

func TestPositionFromFill_PrefersOrderFilledPriceOverRecommendationEntry(t *testing.T) {
	rec := domain.Recommendation{
		ID:         "rec-1",
		Ticker:     "SIRI",
		Entry:      4.00,
		StopLoss:   3.80,
		TakeProfit: 4.40,
		Shares:     100,
	}
	outcome := confirmation.Outcome{
		State: confirmation.StateExecuted,
		Order: &ports.OrderResult{OrderID: "o-1", FilledPrice: 4.02},
	}
	now := time.Now()

	pos := positionFromFill(rec, outcome, now)

	assert.Equal(t, 4.02, pos.EntryFill)
	assert.Equal(t, 4.02, pos.HighestPrice)
	assert.Equal(t, int64(100), pos.Shares)
	assert.Equal(t, 3.80, pos.StopLevel)
	assert.Equal(t, 3.80, pos.InitialStop)
	assert.Equal(t, 4.40, pos.TargetLevel)
	assert.True(t, pos.TrailingEnabled)
	assert.Equal(t, "rec-1", pos.RecommendationID)
}

func TestPositionFromFill_FallsBackToRecommendationEntryWhenOrderMissingPrice(t *testing.T) {
	rec := domain.Recommendation{Ticker: "SIRI", Entry: 4.00, StopLoss: 3.80, TakeProfit: 4.40, Shares: 100}
	outcome := confirmation.Outcome{State: confirmation.StateExecuted, Order: &ports.OrderResult{OrderID: "o-1"}}

	pos := positionFromFill(rec, outcome, time.Now())

	assert.Equal(t, 4.00, pos.EntryFill)
}

func TestTopFeature_ReturnsHighestMultiplier(t *testing.T) {
	w := domain.LearnedWeights{FeatureMultipliers: map[string]float64{
		"rsi_zscore": 1.1,
		"sentiment":  1.6,
		"vpt":        0.9,
	}}
	assert.Equal(t, "sentiment", topFeature(w))
}

func TestSummarizeDay_OnlyCountsOutcomesClosedToday(t *testing.T) {
	now := time.Date(2026, 7, 31, 16, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)

	outcomes := []domain.Outcome{
		{ClosedAt: now.Add(-time.Hour), Success: true},
		{ClosedAt: now.Add(-2 * time.Hour), Success: false},
		{ClosedAt: yesterday, Success: true},
	}

	summary := summarizeDay(outcomes, now, domain.LearnedWeights{FeatureMultipliers: map[string]float64{"rsi_zscore": 1.2}})

	assert.Equal(t, 2, summary.TradeCount)
	assert.InDelta(t, 0.5, summary.WinRate, 1e-9)
	assert.Equal(t, "rsi_zscore", summary.TopFactor)
}

func TestSummarizeDay_NoOutcomesTodayIsZeroWinRate(t *testing.T) {
	now := time.Now()
	summary := summarizeDay(nil, now, domain.LearnedWeights{})
	assert.Equal(t, 0, summary.TradeCount)
	assert.Equal(t, 0.0, summary.WinRate)
}

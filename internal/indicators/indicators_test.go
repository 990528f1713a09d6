package indicators

import (
	"math/rand"
	"testing"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/stretchr/testify/assert"
)

func syntheticBars(n int, start float64, drift float64, seed int64) []domain.Bar {
	r := rand.New(rand.NewSource(seed))
	bars := make([]domain.Bar, n)
	price := start
	t := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		open := price
		price = price*(1+drift) + (r.Float64()-0.5)*0.1
		if price <= 0.1 {
			price = 0.1
		}
		high := maxF(open, price) + r.Float64()*0.05
		low := minF(open, price) - r.Float64()*0.05
		if low <= 0 {
			low = 0.01
		}
		vol := int64(100000 + r.Intn(50000))
		bars[i] = domain.Bar{
			Ticker: "TEST", Interval: time.Minute, Start: t.Add(time.Duration(i) * time.Minute),
			Open: open, High: high, Low: low, Close: price, Volume: vol,
		}
	}
	return bars
}

func TestRSIZScore_InsufficientBarsIsNeutral(t *testing.T) {
	bars := syntheticBars(10, 5.0, 0.001, 1)
	sig := RSIZScore(bars, RSIZScorePeriod, false)
	assert.Equal(t, domain.DirectionNeutral, sig.Direction)
	assert.Equal(t, 0.0, sig.Strength)
	assert.Equal(t, 0.0, sig.Confidence)
}

func TestRSIZScore_SufficientBarsNeverPanics(t *testing.T) {
	bars := syntheticBars(200, 5.0, 0.002, 2)
	sig := RSIZScore(bars, RSIZScorePeriod, true)
	assert.Contains(t, []domain.Direction{domain.DirectionBullish, domain.DirectionBearish, domain.DirectionNeutral}, sig.Direction)
	assert.GreaterOrEqual(t, sig.Strength, 0.0)
	assert.LessOrEqual(t, sig.Strength, 1.0)
}

func TestMomentumDivergence_InsufficientBarsIsNeutral(t *testing.T) {
	bars := syntheticBars(5, 5.0, 0.0, 3)
	sig := MomentumDivergence(bars)
	assert.Equal(t, domain.DirectionNeutral, sig.Direction)
}

func TestVolumePriceTrend_InsufficientBarsIsNeutral(t *testing.T) {
	bars := syntheticBars(5, 5.0, 0.0, 4)
	sig := VolumePriceTrend(bars, 1.2)
	assert.Equal(t, domain.DirectionNeutral, sig.Direction)
}

func TestOrderFlowImbalance_BoundedOutput(t *testing.T) {
	bars := syntheticBars(100, 5.0, 0.001, 5)
	sig := OrderFlowImbalance(bars)
	assert.GreaterOrEqual(t, sig.Strength, 0.0)
	assert.LessOrEqual(t, sig.Strength, 1.0)
	assert.GreaterOrEqual(t, sig.Confidence, 0.0)
	assert.LessOrEqual(t, sig.Confidence, 1.0)
}

func TestSectorRelativeStrength_InsufficientBarsIsNeutral(t *testing.T) {
	short := syntheticBars(10, 5.0, 0.0, 6)
	sig := SectorRelativeStrength(short, short, short)
	assert.Equal(t, domain.DirectionNeutral, sig.Direction)
}

func TestSectorRelativeStrength_StrongOutperformanceIsBullish(t *testing.T) {
	ticker := syntheticBars(60, 5.0, 0.01, 7)
	sector := syntheticBars(60, 5.0, 0.0, 8)
	market := syntheticBars(60, 5.0, 0.0, 9)
	sig := SectorRelativeStrength(ticker, sector, market)
	assert.Equal(t, domain.DirectionBullish, sig.Direction)
}

func TestAdaptiveBollingerPosition_InsufficientBarsIsNeutral(t *testing.T) {
	bars := syntheticBars(5, 5.0, 0.0, 10)
	sig := AdaptiveBollingerPosition(bars)
	assert.Equal(t, domain.DirectionNeutral, sig.Direction)
}

func TestWilliamsR_InsufficientBarsIsNeutral(t *testing.T) {
	bars := syntheticBars(5, 5.0, 0.0, 11)
	sig := WilliamsR(bars, 14)
	assert.Equal(t, domain.DirectionNeutral, sig.Direction)
}

func TestComposite_WeightsAppliedAndLearnedMultiplierScales(t *testing.T) {
	signals := []domain.IndicatorSignal{
		{Name: "rsi_zscore", Direction: domain.DirectionBullish, Strength: 1, Confidence: 1},
		{Name: "vpt", Direction: domain.DirectionBearish, Strength: 1, Confidence: 1},
	}
	base := Composite(signals, nil)
	scaled := Composite(signals, func(name string) float64 {
		if name == "rsi_zscore" {
			return 2.0
		}
		return 1.0
	})
	assert.NotEqual(t, base, scaled)
	assert.InDelta(t, CategoryWeights["rsi_zscore"]-CategoryWeights["vpt"], base, 1e-9)
}

func TestVolatilityPercentile_BoundedZeroToOne(t *testing.T) {
	bars := syntheticBars(100, 5.0, 0.0, 12)
	p := VolatilityPercentile(bars, 20)
	assert.GreaterOrEqual(t, p, 0.0)
	assert.LessOrEqual(t, p, 1.0)
}

// Package regime classifies the current market regime (spec §3) from a bar
// window, feeding regime-adaptive thresholds into the Indicator Engine and
// Recommender.
package regime

import (
	"math"

	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/nyxtrade/momentum-trader/internal/indicators"
	"gonum.org/v1/gonum/stat"
)

// TrendWindow and VolatilityWindow are the lookbacks used to classify regime.
const (
	TrendWindow      = 20
	VolatilityWindow = 20
)

// Classify derives a RegimeClassification from a reference bar series (e.g.
// a market index), combining trend strength (absolute correlation of close
// against bar index over TrendWindow) with the volatility percentile of the last VolatilityWindow
// bars (spec §3: regime tag, confidence, volatility percentile).
func Classify(bars []domain.Bar) domain.RegimeClassification {
	if len(bars) < TrendWindow+1 {
		return domain.RegimeClassification{
			Regime:             domain.RegimeUncertain,
			Confidence:         0,
			VolatilityPercentile: 0.5,
			AdaptiveThresholds: map[string]float64{},
		}
	}

	closes := make([]float64, 0, TrendWindow)
	for _, b := range bars[len(bars)-TrendWindow:] {
		closes = append(closes, b.Close)
	}
	xs := make([]float64, len(closes))
	for i := range xs {
		xs[i] = float64(i)
	}

	_, slope := stat.LinearRegression(xs, closes, nil, false)
	correlation := stat.Correlation(xs, closes, nil)
	trendStrength := math.Abs(correlation)

	volPct := indicators.VolatilityPercentile(bars, VolatilityWindow)

	highVol := volPct >= 0.6
	trending := trendStrength >= 0.5

	var tag domain.Regime
	switch {
	case trending && highVol:
		tag = domain.RegimeTrendingHighVol
	case trending && !highVol:
		tag = domain.RegimeTrendingLowVol
	case !trending && highVol:
		tag = domain.RegimeMeanRevertHighVol
	default:
		tag = domain.RegimeMeanRevertLowVol
	}

	confidence := trendStrength
	if confidence < 0.3 {
		tag = domain.RegimeUncertain
	}

	return domain.RegimeClassification{
		Regime:               tag,
		Confidence:           confidence,
		VolatilityPercentile: volPct,
		AdaptiveThresholds: map[string]float64{
			"trend_strength": trendStrength,
			"slope":          slope,
		},
	}
}

// FavorsDirection reports whether the regime is generally favorable for a
// long entry in the given direction (spec §4.5 step 4, market-context step).
func FavorsDirection(rc domain.RegimeClassification, direction domain.Direction) bool {
	if direction != domain.DirectionBullish {
		return false
	}
	return rc.Regime == domain.RegimeTrendingLowVol || rc.Regime == domain.RegimeTrendingHighVol
}

// IsHighVolatility reports whether the classified regime counts as
// "high-volatility" for the purpose of regime-adaptive indicator thresholds
// (spec §4.3's RSI Z-Score threshold switch).
func IsHighVolatility(rc domain.RegimeClassification) bool {
	return rc.Regime == domain.RegimeTrendingHighVol || rc.Regime == domain.RegimeMeanRevertHighVol
}

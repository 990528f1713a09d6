package indicators

import (
	"github.com/markcheno/go-talib"
	"github.com/nyxtrade/momentum-trader/internal/domain"
)

// RSIZScorePeriod is the default RSI lookback P (spec §4.3).
const RSIZScorePeriod = 14

// RSIZScoreWindowMultiple is the z-score window expressed in multiples of P.
const RSIZScoreWindowMultiple = 3

// RSIZScore computes a standard RSI over period, then the z-score of that
// RSI series over a window of 3*period bars. Thresholds are regime-adaptive:
// +-2.0 in high-volatility regimes, +-1.5 otherwise. Bullish when
// z <= -threshold, bearish when z >= +threshold (spec §4.3).
func RSIZScore(bars []domain.Bar, period int, highVol bool) domain.IndicatorSignal {
	if period <= 0 {
		period = RSIZScorePeriod
	}
	window := RSIZScoreWindowMultiple * period
	if len(bars) < period+window {
		return domain.NeutralSignal("rsi_zscore")
	}

	rsiSeries := talib.Rsi(closes(bars), period)

	valid := make([]float64, 0, len(rsiSeries))
	for _, v := range rsiSeries {
		if !isNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) < window {
		return domain.NeutralSignal("rsi_zscore")
	}

	recent := valid[len(valid)-window:]
	m := mean(recent)
	sd := stddev(recent)
	if sd == 0 {
		return domain.NeutralSignal("rsi_zscore")
	}

	latestRSI := valid[len(valid)-1]
	z := (latestRSI - m) / sd

	threshold := 1.5
	if highVol {
		threshold = 2.0
	}

	direction := domain.DirectionNeutral
	strength := 0.0
	switch {
	case z <= -threshold:
		direction = domain.DirectionBullish
		strength = clamp((-z)/(threshold*2), 0, 1)
	case z >= threshold:
		direction = domain.DirectionBearish
		strength = clamp(z/(threshold*2), 0, 1)
	}

	confidence := clamp(sd/10.0, 0.2, 1.0)

	return domain.IndicatorSignal{
		Name:       "rsi_zscore",
		Value:      z,
		Direction:  direction,
		Strength:   strength,
		Confidence: confidence,
		Aux:        map[string]float64{"rsi": latestRSI, "threshold": threshold},
	}
}

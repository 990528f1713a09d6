package indicators

import (
	"github.com/markcheno/go-talib"
	"github.com/nyxtrade/momentum-trader/internal/domain"
)

// MomentumDivergenceWindow is the lookback over which extremes are compared (spec §4.3).
const MomentumDivergenceWindow = 20

const (
	tsiLongPeriod  = 25
	tsiShortPeriod = 13
)

// trueStrengthIndex computes a True-Strength-Index-style double-smoothed
// momentum series: EMA(EMA(momentum, long), short) / EMA(EMA(|momentum|, long), short) * 100.
func trueStrengthIndex(cl []float64) []float64 {
	if len(cl) < 2 {
		return nil
	}
	momentum := make([]float64, len(cl)-1)
	absMomentum := make([]float64, len(cl)-1)
	for i := 1; i < len(cl); i++ {
		d := cl[i] - cl[i-1]
		momentum[i-1] = d
		if d < 0 {
			absMomentum[i-1] = -d
		} else {
			absMomentum[i-1] = d
		}
	}

	if len(momentum) < tsiLongPeriod {
		return nil
	}

	smoothMom := talib.Ema(momentum, tsiLongPeriod)
	smoothMom = talib.Ema(smoothMom, tsiShortPeriod)
	smoothAbs := talib.Ema(absMomentum, tsiLongPeriod)
	smoothAbs = talib.Ema(smoothAbs, tsiShortPeriod)

	tsi := make([]float64, len(smoothMom))
	for i := range tsi {
		if isNaN(smoothMom[i]) || isNaN(smoothAbs[i]) || smoothAbs[i] == 0 {
			tsi[i] = 0
			continue
		}
		tsi[i] = 100 * smoothMom[i] / smoothAbs[i]
	}
	return tsi
}

// MomentumDivergence flags a price/momentum disagreement over the most
// recent 20-bar window: bullish on a lower price low paired with a higher
// momentum low, bearish on the mirror condition (spec §4.3).
func MomentumDivergence(bars []domain.Bar) domain.IndicatorSignal {
	if len(bars) < MomentumDivergenceWindow+tsiLongPeriod+tsiShortPeriod {
		return domain.NeutralSignal("momentum_divergence")
	}

	cl := closes(bars)
	tsi := trueStrengthIndex(cl)
	if tsi == nil || len(tsi) < MomentumDivergenceWindow {
		return domain.NeutralSignal("momentum_divergence")
	}

	priceWindow := cl[len(cl)-MomentumDivergenceWindow:]
	tsiWindow := tsi[len(tsi)-MomentumDivergenceWindow:]

	half := MomentumDivergenceWindow / 2
	priceOld, priceNew := priceWindow[:half], priceWindow[half:]
	tsiOld, tsiNew := tsiWindow[:half], tsiWindow[half:]

	priceLowOld, priceLowNew := minOf(priceOld), minOf(priceNew)
	priceHighOld, priceHighNew := maxOf(priceOld), maxOf(priceNew)
	tsiLowOld, tsiLowNew := minOf(tsiOld), minOf(tsiNew)
	tsiHighOld, tsiHighNew := maxOf(tsiOld), maxOf(tsiNew)

	direction := domain.DirectionNeutral
	strength := 0.0

	bullish := priceLowNew < priceLowOld && tsiLowNew > tsiLowOld
	bearish := priceHighNew > priceHighOld && tsiHighNew < tsiHighOld

	switch {
	case bullish && !bearish:
		direction = domain.DirectionBullish
		priceDrop := relDiff(priceLowOld, priceLowNew)
		momRise := relDiff(tsiLowNew, tsiLowOld)
		strength = clamp((priceDrop+momRise)/2, 0, 1)
	case bearish && !bullish:
		direction = domain.DirectionBearish
		priceRise := relDiff(priceHighNew, priceHighOld)
		momDrop := relDiff(tsiHighOld, tsiHighNew)
		strength = clamp((priceRise+momDrop)/2, 0, 1)
	}

	confidence := 0.0
	if direction != domain.DirectionNeutral {
		confidence = clamp(strength+0.2, 0, 1)
	}

	return domain.IndicatorSignal{
		Name:       "momentum_divergence",
		Value:      tsiWindow[len(tsiWindow)-1],
		Direction:  direction,
		Strength:   strength,
		Confidence: confidence,
		Aux:        map[string]float64{"tsi": tsiWindow[len(tsiWindow)-1]},
	}
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// relDiff returns the absolute relative difference |a-b|/|b| scaled by 10
// and clamped to [0, 1], used to scale divergence strength independent of
// price magnitude.
func relDiff(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	d := (a - b) / absF(b)
	if d < 0 {
		d = -d
	}
	return clamp(d*10, 0, 1)
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

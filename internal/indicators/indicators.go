// Package indicators implements the pure, stateless signal functions of
// spec.md §4.3. Every function takes a Bar window and returns one
// domain.IndicatorSignal; none ever panics or returns an error — insufficient
// data yields a neutral signal, per §4.3 and §7.
package indicators

import (
	"math"
	"sort"

	"github.com/nyxtrade/momentum-trader/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// closes/highs/lows/volumes extract parallel float64/int64 slices from a Bar
// window, oldest first (bars arrive ordered ascending by time per §4.2).
func closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func highs(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

func lows(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

func opens(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Open
	}
	return out
}

func volumes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = float64(b.Volume)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}

func isNaN(f float64) bool { return math.IsNaN(f) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// VolatilityPercentile ranks the most recent true-range-based volatility
// against its own trailing history, used by the adaptive indicators and by
// the Regime classifier (spec §3's volatility_percentile field).
func VolatilityPercentile(bars []domain.Bar, window int) float64 {
	if len(bars) < window+1 {
		return 0.5
	}
	trs := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		hi := bars[i].High
		lo := bars[i].Low
		prevClose := bars[i-1].Close
		tr := math.Max(hi-lo, math.Max(math.Abs(hi-prevClose), math.Abs(lo-prevClose)))
		trs = append(trs, tr)
	}
	recent := trs[len(trs)-window:]
	current := recent[len(recent)-1]

	sorted := make([]float64, len(trs))
	copy(sorted, trs)
	sort.Float64s(sorted)
	return stat.CDF(current, stat.Empirical, sorted, nil)
}

package indicators

import (
	"github.com/markcheno/go-talib"
	"github.com/nyxtrade/momentum-trader/internal/domain"
)

// AdaptiveBollingerPosition varies period and std-dev multiplier with the
// volatility percentile of the last 20 bars (shorter/wider in high vol,
// longer/tighter in low vol). Signal reflects band location unless a
// band-width squeeze is detected, in which case it is forced neutral
// regardless of position (spec §4.3).
func AdaptiveBollingerPosition(bars []domain.Bar) domain.IndicatorSignal {
	if len(bars) < 21 {
		return domain.NeutralSignal("adaptive_bb")
	}

	volPct := VolatilityPercentile(bars, 20)

	period := 20
	stdMult := 2.0
	switch {
	case volPct >= 0.7:
		period = 14
		stdMult = 2.5
	case volPct <= 0.3:
		period = 26
		stdMult = 1.8
	}

	if len(bars) < period {
		return domain.NeutralSignal("adaptive_bb")
	}

	cl := closes(bars)
	upper, middle, lower := talib.BBands(cl, period, stdMult, stdMult, 0)
	if len(upper) == 0 || isNaN(upper[len(upper)-1]) {
		return domain.NeutralSignal("adaptive_bb")
	}

	u := upper[len(upper)-1]
	l := lower[len(lower)-1]
	m := middle[len(middle)-1]
	price := cl[len(cl)-1]

	bandWidth := u - l
	squeeze := m != 0 && (bandWidth/m) < 0.04

	if squeeze {
		return domain.IndicatorSignal{
			Name:       "adaptive_bb",
			Value:      0,
			Direction:  domain.DirectionNeutral,
			Strength:   0,
			Confidence: 0.3,
			Aux:        map[string]float64{"squeeze": 1, "band_width_pct": bandWidth / maxF(m, 1)},
		}
	}

	position := 0.5
	if bandWidth > 0 {
		position = clamp((price-l)/bandWidth, 0, 1)
	}

	direction := domain.DirectionNeutral
	strength := 0.0
	switch {
	case position <= 0.2:
		direction = domain.DirectionBullish
		strength = clamp((0.2-position)/0.2, 0, 1)
	case position >= 0.8:
		direction = domain.DirectionBearish
		strength = clamp((position-0.8)/0.2, 0, 1)
	}

	return domain.IndicatorSignal{
		Name:       "adaptive_bb",
		Value:      position,
		Direction:  direction,
		Strength:   strength,
		Confidence: 0.6,
		Aux:        map[string]float64{"squeeze": 0, "period": float64(period), "std_mult": stdMult},
	}
}

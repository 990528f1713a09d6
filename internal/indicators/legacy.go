package indicators

import (
	"github.com/markcheno/go-talib"
	"github.com/nyxtrade/momentum-trader/internal/domain"
)

// WilliamsR is a textbook Williams %R, exposed for legacy scoring hooks and
// not wired into the default composite (spec §4.3).
func WilliamsR(bars []domain.Bar, period int) domain.IndicatorSignal {
	if period <= 0 {
		period = 14
	}
	if len(bars) < period {
		return domain.NeutralSignal("williams_r")
	}

	series := talib.WillR(highs(bars), lows(bars), closes(bars), period)
	if len(series) == 0 || isNaN(series[len(series)-1]) {
		return domain.NeutralSignal("williams_r")
	}
	v := series[len(series)-1] // in [-100, 0]

	direction := domain.DirectionNeutral
	strength := 0.0
	switch {
	case v <= -80:
		direction = domain.DirectionBullish
		strength = clamp((-80-v)/20, 0, 1)
	case v >= -20:
		direction = domain.DirectionBearish
		strength = clamp((v+20)/20, 0, 1)
	}

	return domain.IndicatorSignal{
		Name:       "williams_r",
		Value:      v,
		Direction:  direction,
		Strength:   strength,
		Confidence: 0.5,
	}
}

// BollingerSqueeze is a textbook band-width squeeze detector, exposed as a
// standalone legacy hook (spec §4.3); the default composite instead gets its
// squeeze behavior folded into AdaptiveBollingerPosition.
func BollingerSqueeze(bars []domain.Bar, period int, stdMult float64) domain.IndicatorSignal {
	if period <= 0 {
		period = 20
	}
	if stdMult <= 0 {
		stdMult = 2.0
	}
	if len(bars) < period {
		return domain.NeutralSignal("bollinger_squeeze")
	}

	upper, middle, lower := talib.BBands(closes(bars), period, stdMult, stdMult, 0)
	if len(upper) == 0 || isNaN(upper[len(upper)-1]) || middle[len(middle)-1] == 0 {
		return domain.NeutralSignal("bollinger_squeeze")
	}

	bandWidthPct := (upper[len(upper)-1] - lower[len(lower)-1]) / middle[len(middle)-1]
	squeeze := bandWidthPct < 0.04

	direction := domain.DirectionNeutral
	confidence := 0.3
	if squeeze {
		// A squeeze itself carries no direction, only an elevated-breakout-risk signal.
		confidence = 0.6
	}

	return domain.IndicatorSignal{
		Name:       "bollinger_squeeze",
		Value:      bandWidthPct,
		Direction:  direction,
		Strength:   0,
		Confidence: confidence,
		Aux:        map[string]float64{"squeeze": boolToFloat(squeeze)},
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

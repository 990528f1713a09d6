package indicators

import "github.com/nyxtrade/momentum-trader/internal/domain"

// OrderFlowHorizons are the multi-horizon lookbacks (spec §4.3).
var OrderFlowHorizons = [3]int{5, 20, 50}

// netOrderFlow computes a per-bar buy/sell pressure proxy:
// buying pressure = position-in-range * volume * (1 + max(0, intrabar return)),
// selling pressure is the mirror; net flow is their difference (spec §4.3).
func netOrderFlow(bars []domain.Bar) []float64 {
	flow := make([]float64, len(bars))
	for i, b := range bars {
		rng := b.High - b.Low
		pos := 0.5
		if rng > 0 {
			pos = (b.Close - b.Low) / rng
		}
		intrabarReturn := 0.0
		if b.Open != 0 {
			intrabarReturn = (b.Close - b.Open) / b.Open
		}
		buy := pos * float64(b.Volume) * (1 + maxF(0, intrabarReturn))
		sell := (1 - pos) * float64(b.Volume) * (1 + maxF(0, -intrabarReturn))
		flow[i] = buy - sell
	}
	return flow
}

// OrderFlowImbalance is a multi-horizon (5/20/50-bar) proxy for buy/sell
// pressure, normalized by average volume per horizon; signal magnitude
// combines the short flow, medium flow, and their first/second differences
// against volatility-scaled thresholds (spec §4.3).
func OrderFlowImbalance(bars []domain.Bar) domain.IndicatorSignal {
	longest := OrderFlowHorizons[2]
	if len(bars) < longest+1 {
		return domain.NeutralSignal("order_flow")
	}

	flow := netOrderFlow(bars)
	vol := volumes(bars)

	normalized := func(h int) float64 {
		flowWindow := flow[len(flow)-h:]
		volWindow := vol[len(vol)-h:]
		avgVol := mean(volWindow)
		if avgVol == 0 {
			return 0
		}
		sum := 0.0
		for _, f := range flowWindow {
			sum += f
		}
		return sum / (avgVol * float64(h))
	}

	short := normalized(OrderFlowHorizons[0])
	medium := normalized(OrderFlowHorizons[1])
	long := normalized(OrderFlowHorizons[2])

	firstDiff := short - medium
	secondDiff := firstDiff - (medium - long)

	volScale := stddev(flow[len(flow)-longest:])
	volatilityThreshold := 0.15
	if volScale > 0 {
		meanVol := mean(vol[len(vol)-longest:])
		if meanVol > 0 {
			volatilityThreshold = clamp(volScale/(meanVol*float64(longest)), 0.05, 0.5)
		}
	}

	magnitude := 0.4*short + 0.3*medium + 0.2*firstDiff + 0.1*secondDiff

	direction := domain.DirectionNeutral
	strength := 0.0
	switch {
	case magnitude >= volatilityThreshold:
		direction = domain.DirectionBullish
		strength = clamp(magnitude/(volatilityThreshold*3), 0, 1)
	case magnitude <= -volatilityThreshold:
		direction = domain.DirectionBearish
		strength = clamp(-magnitude/(volatilityThreshold*3), 0, 1)
	}

	confidence := clamp(absF(magnitude)/(volatilityThreshold*2), 0, 1)

	return domain.IndicatorSignal{
		Name:       "order_flow",
		Value:      magnitude,
		Direction:  direction,
		Strength:   strength,
		Confidence: confidence,
		Aux: map[string]float64{
			"short": short, "medium": medium, "long": long,
			"first_diff": firstDiff, "second_diff": secondDiff,
		},
	}
}

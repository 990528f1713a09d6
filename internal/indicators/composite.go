package indicators

import "github.com/nyxtrade/momentum-trader/internal/domain"

// CategoryWeights are the default composite weights (spec §4.5 step 2).
var CategoryWeights = map[string]float64{
	"rsi_zscore":          0.15,
	"momentum_divergence": 0.25,
	"vpt":                 0.20,
	"order_flow":          0.20,
	"sector_rs":           0.15,
	"adaptive_bb":         0.05,
}

// Multiplier looks up a per-feature learned multiplier; the zero-value
// implementation (nil) is treated as "always 1.0" (neutral).
type Multiplier func(name string) float64

// Composite combines the named signals into a single weighted scalar: each
// signal's directional value (+1 bullish, -1 bearish, 0 neutral) times
// strength times confidence times its learned multiplier times its category
// weight (spec §4.3, §4.5 step 2).
func Composite(signals []domain.IndicatorSignal, learned Multiplier) float64 {
	if learned == nil {
		learned = func(string) float64 { return 1.0 }
	}

	var total float64
	for _, s := range signals {
		w, ok := CategoryWeights[s.Name]
		if !ok {
			continue
		}
		dirSign := 0.0
		switch s.Direction {
		case domain.DirectionBullish:
			dirSign = 1
		case domain.DirectionBearish:
			dirSign = -1
		}
		total += dirSign * s.Strength * s.Confidence * learned(s.Name) * w
	}
	return total
}

package recommender

// ExpectedMoveInput bundles the four terms of the expected-move formula
// shared by the Recommender and the Learning Engine (spec §4.10).
type ExpectedMoveInput struct {
	RSI            float64
	VWAPDistance   float64 // fractional, negative means price below VWAP
	SentimentScore float64
	Confidence     float64 // [0, 10]
}

// ExpectedMovePct implements spec §4.10's expected-move formula:
// base 3% + RSI-oversold bonus + VWAP-deviation bonus + sentiment bonus,
// scaled by confidence/7.
func ExpectedMovePct(in ExpectedMoveInput) float64 {
	base := 0.03

	rsiBonus := 0.0
	if oversold := (30 - in.RSI) / 30; oversold > 0 {
		rsiBonus = oversold * 0.02
	}

	vwapBonus := 0.0
	if in.VWAPDistance < -0.02 {
		vwapBonus = absF(in.VWAPDistance) * 0.5
	}

	sentimentBonus := 0.0
	if in.SentimentScore > 0.3 {
		sentimentBonus = in.SentimentScore * 0.02
	}

	scale := in.Confidence / 7.0
	return (base + rsiBonus + vwapBonus + sentimentBonus) * scale
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Package recommender implements the Recommender (spec §4.5): it converts a
// screened candidate's feature snapshot into either a Recommendation or a
// documented refusal, the way the teacher's signal/scoring stage in
// pkg/formulas composes several indicator outputs into one trade decision
// before handing it to the broker layer.
package recommender

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/nyxtrade/momentum-trader/internal/indicators"
	"github.com/nyxtrade/momentum-trader/internal/regime"
	"github.com/nyxtrade/momentum-trader/internal/sentiment"
)

// PortfolioContext is the account-state input the Recommender needs to
// stay within the day's risk rails (spec §4.5 "Inputs per evaluation").
type PortfolioContext struct {
	OpenPositionCount    int
	DailyTradeCount      int
	MaxDailyTrades       int
	RemainingLossBudget  float64 // fraction of account still available to lose today
	RecentWinRate        float64 // trailing realized win rate, feeds the learning multiplier
}

// Config holds the Recommender's tunable base levels (spec §6).
type Config struct {
	BaseStopPct    float64
	BaseTargetPct  float64
	RRThreshold    float64
	BasePositionFraction    float64
	MaxPositionFraction     float64
	MinPositionFraction     float64
	LowPricedFractionCap    float64
	LowPricedThreshold      float64
	ValidityWindow          time.Duration
	MaxRiskFactors          int
}

// DefaultConfig matches spec §4.5/§6's documented defaults.
func DefaultConfig() Config {
	return Config{
		BaseStopPct:          0.03,
		BaseTargetPct:        0.06,
		RRThreshold:          2.0,
		BasePositionFraction: 0.05,
		MaxPositionFraction:  0.15,
		MinPositionFraction:  0.02,
		LowPricedFractionCap: 0.50,
		LowPricedThreshold:   3.0,
		ValidityWindow:       30 * time.Minute,
		MaxRiskFactors:       3,
	}
}

// Input bundles one evaluation's feature snapshot (spec §4.5 "Inputs").
type Input struct {
	Ticker      domain.Ticker
	Quote       domain.Quote
	Bars        []domain.Bar
	SectorBars  []domain.Bar
	MarketBars  []domain.Bar
	Sentiment   sentiment.Vector
	Regime      domain.RegimeClassification
	Weights     domain.LearnedWeights
	Thresholds  domain.AdaptiveThresholds
	Portfolio   PortfolioContext
}

// Result is a completed Recommender evaluation: exactly one of
// Recommendation/Prediction is populated (on buy) or Skip is non-empty.
type Result struct {
	Decision       domain.DecisionRecord
	Recommendation *domain.Recommendation
	Prediction     *domain.Prediction
	Skip           string
}

// Recommender runs the twelve-step evaluation procedure of spec §4.5.
type Recommender struct {
	cfg Config
	now func() time.Time
}

func New(cfg Config) *Recommender {
	return &Recommender{cfg: cfg, now: time.Now}
}

// Evaluate runs the full procedure and never panics: any infeasibility is
// captured as a documented skip on the returned DecisionRecord rather than
// propagated as an error (spec §4.5 "Errors").
func (r *Recommender) Evaluate(in Input) Result {
	now := r.now()
	decision := domain.DecisionRecord{
		ID:              uuid.NewString(),
		Ticker:          in.Ticker,
		CreatedAt:       now,
		ContextSnapshot: snapshotContext(in),
	}

	// Step 2: Indicator Engine + reasoning steps.
	signals := r.runIndicators(in)
	steps, confidenceSum := reasoningFromSignals(signals, in.Weights)
	decision.ReasoningSteps = append(decision.ReasoningSteps, steps...)

	// Step 3: sentiment reasoning step.
	sentStep, sentContribution := sentimentStep(in.Sentiment)
	decision.ReasoningSteps = append(decision.ReasoningSteps, sentStep)
	confidenceSum += sentContribution

	// Step 4: market-context reasoning step.
	ctxStep, ctxContribution := marketContextStep(in.Regime, dominantDirection(signals))
	decision.ReasoningSteps = append(decision.ReasoningSteps, ctxStep)
	confidenceSum += ctxContribution

	// Step 5: neutral base + sum, scaled by confidence multiplier, clamped.
	confMultiplier := in.Weights.ConfidenceMultiplier
	if confMultiplier == 0 {
		confMultiplier = 1.0
	}
	confidence := clamp((5.0+confidenceSum)*confMultiplier, 0, 10)
	decision.ConfidenceBreakdown = map[string]float64{
		"indicator_sum": confidenceSum,
		"base":          5.0,
		"multiplier":    confMultiplier,
	}
	decision.FinalConfidence = confidence

	// Step 6: minimum confidence gate.
	minConf := in.Thresholds.MinConfidenceScore
	if minConf == 0 {
		minConf = 7.0
	}
	if confidence < minConf {
		return skip(decision, "confidence_below_threshold")
	}

	direction := dominantDirection(signals)
	if direction != domain.DirectionBullish {
		return skip(decision, "no_bullish_direction")
	}

	entry := in.Quote.Last
	if entry <= 0 {
		return skip(decision, "invalid_entry_price")
	}

	// Step 7: stop/target levels.
	stop, target := r.priceLevels(entry, confidence)
	riskReward := (target - entry) / (entry - stop)
	rec := domain.Recommendation{
		ID:         uuid.NewString(),
		Ticker:     in.Ticker,
		Entry:      entry,
		StopLoss:   stop,
		TakeProfit: target,
		RiskReward: riskReward,
		Confidence: confidence,
	}
	rrThreshold := r.cfg.RRThreshold
	if !rec.Valid(rrThreshold) {
		return skip(decision, "levels_infeasible")
	}

	// Step 8: position sizing.
	fraction := r.positionFraction(confidence, in.Portfolio.RecentWinRate, entry)
	rec.PositionFraction = fraction

	// Step 9: validity expiry.
	rec.ValidityExpiry = now.Add(r.cfg.ValidityWindow)

	// Step 10: key/risk factors; refuse if the risk stack is too deep.
	keyFactors, riskFactors := extractFactors(decision.ReasoningSteps)
	if len(riskFactors) > r.cfg.MaxRiskFactors {
		return skip(decision, "risk_stack_too_deep")
	}
	rec.KeyFactors = keyFactors
	rec.RiskFactors = riskFactors

	// Step 11: Prediction record.
	expectedMove := ExpectedMovePct(ExpectedMoveInput{
		RSI:             rsiValue(signals),
		VWAPDistance:    vwapDistance(in.Quote, in.Bars),
		SentimentScore:  in.Sentiment.Score,
		Confidence:      confidence,
	})
	horizon := horizonHours(signals, confidence)
	prediction := domain.Prediction{
		ID:               uuid.NewString(),
		Ticker:           in.Ticker,
		Direction:        direction,
		PredictedMovePct: expectedMove,
		HorizonHours:     horizon,
		Confidence:       confidence,
		FeatureSnapshot:  decision.ContextSnapshot,
		CreatedAt:        now,
	}
	rec.PredictionID = prediction.ID
	rec.DecisionRecordID = decision.ID

	// Step 12: finalize DecisionRecord.
	decision.FinalAction = domain.ActionBuy
	decision.ExpectedOutcome = fmt.Sprintf("predicted %.2f%% move over %.1fh", expectedMove*100, horizon)

	return Result{Decision: decision, Recommendation: &rec, Prediction: &prediction}
}

func skip(decision domain.DecisionRecord, reason string) Result {
	decision.FinalAction = domain.ActionSkip
	decision.Reason = reason
	return Result{Decision: decision, Skip: reason}
}

func snapshotContext(in Input) map[string]float64 {
	ctx := map[string]float64{
		"last":                in.Quote.Last,
		"session_volume":      float64(in.Quote.SessionVol),
		"regime_confidence":   in.Regime.Confidence,
		"volatility_pctile":   in.Regime.VolatilityPercentile,
		"sentiment_score":     in.Sentiment.Score,
		"sentiment_confidence": in.Sentiment.Confidence,
		"open_positions":      float64(in.Portfolio.OpenPositionCount),
		"daily_trades":        float64(in.Portfolio.DailyTradeCount),
	}
	return ctx
}

// runIndicators evaluates the full Indicator Engine for one candidate.
func (r *Recommender) runIndicators(in Input) []domain.IndicatorSignal {
	highVol := regime.IsHighVolatility(in.Regime)
	signals := []domain.IndicatorSignal{
		indicators.RSIZScore(in.Bars, indicators.RSIZScorePeriod, highVol),
		indicators.MomentumDivergence(in.Bars),
		indicators.VolumePriceTrend(in.Bars, in.Thresholds.VolumeSpikeMultiplier),
		indicators.OrderFlowImbalance(in.Bars),
		indicators.SectorRelativeStrength(in.Bars, in.SectorBars, in.MarketBars),
		indicators.AdaptiveBollingerPosition(in.Bars),
	}
	return signals
}

// reasoningFromSignals logs every non-neutral indicator as a reasoning step
// with contribution = strength x confidence x learned-weight x
// category-weight (spec §4.5 step 2), and returns the summed contribution.
func reasoningFromSignals(signals []domain.IndicatorSignal, weights domain.LearnedWeights) ([]domain.ReasoningStep, float64) {
	var steps []domain.ReasoningStep
	var total float64
	for _, s := range signals {
		if s.Direction == domain.DirectionNeutral {
			continue
		}
		w, ok := indicators.CategoryWeights[s.Name]
		if !ok {
			continue
		}
		dirSign := 1.0
		if s.Direction == domain.DirectionBearish {
			dirSign = -1.0
		}
		contribution := dirSign * s.Strength * s.Confidence * weights.MultiplierFor(s.Name) * w
		steps = append(steps, domain.ReasoningStep{
			StepName:        s.Name,
			Input:           map[string]float64{"value": s.Value, "strength": s.Strength, "confidence": s.Confidence},
			ConfidenceDelta: contribution,
			Rationale:       fmt.Sprintf("%s signal %s at strength %.2f", s.Name, s.Direction, s.Strength),
		})
		total += contribution
	}
	return steps, total
}

// sentimentStep implements spec §4.5 step 3's bounded sentiment contribution.
func sentimentStep(v sentiment.Vector) (domain.ReasoningStep, float64) {
	var contribution float64
	switch {
	case v.Direction == domain.DirectionBullish && v.Score > 0.3:
		contribution = 1.5 * v.Score
	case v.Direction == domain.DirectionBearish && v.Score < -0.3:
		contribution = -1.0 * math.Abs(v.Score)
	default:
		contribution = 0.2 * v.Confidence
	}
	return domain.ReasoningStep{
		StepName:        "sentiment",
		Input:           map[string]float64{"score": v.Score, "confidence": v.Confidence},
		ConfidenceDelta: contribution,
		Rationale:       fmt.Sprintf("sentiment score %.2f confidence %.2f", v.Score, v.Confidence),
	}, contribution
}

// marketContextStep implements spec §4.5 step 4.
func marketContextStep(rc domain.RegimeClassification, direction domain.Direction) (domain.ReasoningStep, float64) {
	favors := regime.FavorsDirection(rc, direction)
	lowVol := rc.VolatilityPercentile < 0.5
	highVol := rc.VolatilityPercentile >= 0.7

	var contribution float64
	switch {
	case favors && lowVol:
		contribution = 0.4
	case !favors || highVol:
		contribution = -0.3
	default:
		contribution = 0
	}
	return domain.ReasoningStep{
		StepName:        "market_context",
		ConfidenceDelta: contribution,
		Rationale:       fmt.Sprintf("regime=%s favors=%v volatility_pctile=%.2f", rc.Regime, favors, rc.VolatilityPercentile),
	}, contribution
}

// dominantDirection is the majority direction among non-neutral signals,
// ties broken toward neutral (the Recommender only ever proposes longs).
func dominantDirection(signals []domain.IndicatorSignal) domain.Direction {
	var bull, bear int
	for _, s := range signals {
		switch s.Direction {
		case domain.DirectionBullish:
			bull++
		case domain.DirectionBearish:
			bear++
		}
	}
	switch {
	case bull > bear:
		return domain.DirectionBullish
	case bear > bull:
		return domain.DirectionBearish
	default:
		return domain.DirectionNeutral
	}
}

// priceLevels implements spec §4.5 step 7: confidence-banded stop/target.
func (r *Recommender) priceLevels(entry, confidence float64) (stop, target float64) {
	stopPct := r.cfg.BaseStopPct
	targetPct := r.cfg.BaseTargetPct
	switch {
	case confidence >= 9:
		stopPct *= 0.7
		targetPct *= 1.3
	case confidence <= 7.5:
		stopPct *= 1.3
		targetPct *= 0.8
	}
	stop = entry * (1 - stopPct)
	target = entry * (1 + targetPct)
	return stop, target
}

// positionFraction implements spec §4.5 step 8.
func (r *Recommender) positionFraction(confidence, recentWinRate, entry float64) float64 {
	confMultiplier := clamp(0.5+confidence/10, 0, 1.5)

	learningMultiplier := 1.0
	switch {
	case recentWinRate > 0.70:
		learningMultiplier = 1.2
	case recentWinRate < 0.40 && recentWinRate > 0:
		learningMultiplier = 0.7
	}

	fraction := r.cfg.BasePositionFraction * confMultiplier * learningMultiplier
	fraction = clamp(fraction, r.cfg.MinPositionFraction, r.cfg.MaxPositionFraction)

	if entry < r.cfg.LowPricedThreshold && fraction > r.cfg.LowPricedFractionCap*r.cfg.MaxPositionFraction {
		fraction = r.cfg.LowPricedFractionCap * r.cfg.MaxPositionFraction
	}
	return fraction
}

// extractFactors derives up to six key factors and all risk factors from
// the reasoning chain (spec §4.5 step 10): positive-contribution steps are
// key factors, negative-contribution steps are risk factors. No minimum is
// enforced; fewer than three key factors are returned when fewer steps
// contributed positively.
func extractFactors(steps []domain.ReasoningStep) (key, risk []string) {
	for _, s := range steps {
		switch {
		case s.ConfidenceDelta > 0:
			key = append(key, fmt.Sprintf("%s (+%.2f)", s.StepName, s.ConfidenceDelta))
		case s.ConfidenceDelta < 0:
			risk = append(risk, fmt.Sprintf("%s (%.2f)", s.StepName, s.ConfidenceDelta))
		}
	}
	if len(key) > 6 {
		key = key[:6]
	}
	return key, risk
}

func rsiValue(signals []domain.IndicatorSignal) float64 {
	for _, s := range signals {
		if s.Name == "rsi_zscore" {
			return s.Aux["rsi"]
		}
	}
	return 50
}

// vwapDistance approximates VWAP distance as the close's deviation from the
// simple mean close over the available window, used only by the
// expected-move formula (spec §4.10).
func vwapDistance(q domain.Quote, bars []domain.Bar) float64 {
	if len(bars) == 0 || q.Last <= 0 {
		return 0
	}
	var sum float64
	for _, b := range bars {
		sum += b.Close
	}
	vwapApprox := sum / float64(len(bars))
	if vwapApprox == 0 {
		return 0
	}
	return (q.Last - vwapApprox) / vwapApprox
}

// horizonHours implements spec §4.5 step 11's per-setup horizon table,
// adjusted by confidence.
func horizonHours(signals []domain.IndicatorSignal, confidence float64) float64 {
	base := 6.0
	for _, s := range signals {
		if s.Direction == domain.DirectionNeutral {
			continue
		}
		switch s.Name {
		case "vpt":
			base = 4.0
		case "rsi_zscore":
			base = 8.0
		case "order_flow":
			base = 2.0
		}
	}
	adjust := 1.0 + (confidence-5.0)/20.0
	return base * adjust
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

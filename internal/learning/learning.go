// Package learning implements the Learning Engine (spec §4.10): it mines
// realized Outcomes for per-category performance, proposes a bounded weight
// delta, and commits it only when a chronological validation re-scoring
// beats the previously committed score, the way the teacher's nightly
// rebalancing-parameter tuner in trader-go re-validates before persisting.
package learning

import (
	"context"
	"sort"

	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/nyxtrade/momentum-trader/internal/weights"
	"gonum.org/v1/gonum/stat"
)

// Store is the narrow journaling seam the Learning Engine needs.
type Store interface {
	QueryDecisionsWithOutcomes(ctx context.Context, limit int) ([]domain.DecisionRecord, error)
	AppendLearningCycle(ctx context.Context, committed bool, fields map[string]any) error
}

// Config holds the Learning Engine's tunables (spec §4.10/§6).
type Config struct {
	MinSamples          int
	MinCategorySamples  int
	LearningRate        float64
	TrainFraction       float64
	MinConfidenceFloor  float64
}

func DefaultConfig() Config {
	return Config{
		MinSamples:         20,
		MinCategorySamples: 5,
		LearningRate:       0.1,
		TrainFraction:      0.3,
		MinConfidenceFloor: 5.0,
	}
}

// Metrics is the full-set performance summary (spec §4.10 step 2).
type Metrics struct {
	WinRate             float64
	DirectionalAccuracy float64
	MeanAccuracyScore   float64
	SharpeLike          float64
	MaxDrawdown         float64
	WinnerLoserRatio    float64
	Calibration         float64
}

// CategoryStats is one indicator/sentiment category's performance
// (spec §4.10 step 3).
type CategoryStats struct {
	Name          string
	Samples       int
	WinRate       float64
	MeanReturn    float64
	MeanAccuracy  float64
}

// CycleResult is the outcome of one RunCycle invocation.
type CycleResult struct {
	Metrics          Metrics
	CategoryStats    []CategoryStats
	ValidationScore  float64
	PreviousScore    float64
	Committed        bool
	SkippedReason    string
}

// Engine runs Learning Engine cycles against a Holder of learned weights.
type Engine struct {
	cfg     Config
	store   Store
	holder  *weights.Holder
	lastValidationScore float64
}

func New(cfg Config, store Store, holder *weights.Holder) *Engine {
	return &Engine{cfg: cfg, store: store, holder: holder}
}

// RunCycle executes the full Learning Engine procedure (spec §4.10 steps 1-8).
func (e *Engine) RunCycle(ctx context.Context) (CycleResult, error) {
	decisions, err := e.store.QueryDecisionsWithOutcomes(ctx, 2000)
	if err != nil {
		return CycleResult{}, err
	}
	if len(decisions) < e.cfg.MinSamples {
		return CycleResult{SkippedReason: "insufficient_samples"}, nil
	}

	sort.Slice(decisions, func(i, j int) bool { return decisions[i].CreatedAt.Before(decisions[j].CreatedAt) })

	trainCount := int(float64(len(decisions)) * e.cfg.TrainFraction)
	if trainCount < 1 {
		trainCount = 1
	}
	validation := decisions[trainCount:]
	if len(validation) == 0 {
		validation = decisions
	}

	metrics := computeMetrics(decisions)
	categoryStats := computeCategoryStats(decisions, e.cfg.MinCategorySamples)

	snapshot := e.holder.Snapshot()
	proposed := proposeWeightDelta(snapshot, categoryStats, e.cfg.LearningRate)
	proposed.ConfidenceMultiplier = adjustConfidenceMultiplier(snapshot.ConfidenceMultiplier, metrics.Calibration)

	validationScore := scoreOnValidation(validation, snapshot, proposed, e.holder.Thresholds().MinConfidenceScore)

	result := CycleResult{
		Metrics:         metrics,
		CategoryStats:   categoryStats,
		ValidationScore: validationScore,
		PreviousScore:   e.lastValidationScore,
	}

	if validationScore > e.lastValidationScore {
		e.holder.CommitWeights(proposed)
		e.lastValidationScore = validationScore
		result.Committed = true

		newThresholds := adjustThresholds(e.holder.Thresholds(), metrics, categoryStats, e.cfg.MinConfidenceFloor)
		e.holder.CommitThresholds(newThresholds)
	}

	fields := map[string]any{
		"win_rate":             metrics.WinRate,
		"directional_accuracy": metrics.DirectionalAccuracy,
		"mean_accuracy":        metrics.MeanAccuracyScore,
		"sharpe_like":          metrics.SharpeLike,
		"max_drawdown":         metrics.MaxDrawdown,
		"calibration":          metrics.Calibration,
		"validation_score":     validationScore,
		"previous_score":       result.PreviousScore,
		"sample_count":         len(decisions),
	}
	if err := e.store.AppendLearningCycle(ctx, result.Committed, fields); err != nil {
		return result, err
	}
	return result, nil
}

func computeMetrics(decisions []domain.DecisionRecord) Metrics {
	var wins, losses int
	var accuracySum, returnSum float64
	var returns []float64
	var directionalMatches int
	var calibrationHits, calibrationTotal int

	for _, d := range decisions {
		o := d.ActualOutcome
		if o == nil {
			continue
		}
		if o.Success {
			wins++
		} else {
			losses++
		}
		if d.AccuracyScore != nil {
			accuracySum += *d.AccuracyScore
		}
		returnSum += o.RealizedMovePct
		returns = append(returns, o.RealizedMovePct)

		if (o.RealizedMovePct > 0) == (d.FinalConfidence >= 5) {
			directionalMatches++
		}

		calibrationTotal++
		predictedHigh := d.FinalConfidence >= 7
		if predictedHigh == o.Success {
			calibrationHits++
		}
	}

	total := wins + losses
	var winRate, meanAccuracy, directionalAccuracy, calibration float64
	if total > 0 {
		winRate = float64(wins) / float64(total)
		meanAccuracy = accuracySum / float64(total)
		directionalAccuracy = float64(directionalMatches) / float64(total)
	}
	if calibrationTotal > 0 {
		calibration = float64(calibrationHits) / float64(calibrationTotal)
	}

	winnerLoserRatio := 0.0
	if losses > 0 {
		winnerLoserRatio = float64(wins) / float64(losses)
	} else if wins > 0 {
		winnerLoserRatio = float64(wins)
	}

	return Metrics{
		WinRate:             winRate,
		DirectionalAccuracy: directionalAccuracy,
		MeanAccuracyScore:   meanAccuracy,
		SharpeLike:          sharpeLike(returns),
		MaxDrawdown:         maxDrawdown(returns),
		WinnerLoserRatio:    winnerLoserRatio,
		Calibration:         calibration,
	}
}

func sharpeLike(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := stat.Mean(returns, nil)
	sd := stat.StdDev(returns, nil)
	if sd == 0 {
		return 0
	}
	return mean / sd
}

// maxDrawdown treats the decision sequence as a cumulative-return curve and
// returns the largest peak-to-trough decline.
func maxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var cumulative, peak, worst float64
	for _, r := range returns {
		cumulative += r
		if cumulative > peak {
			peak = cumulative
		}
		if drawdown := peak - cumulative; drawdown > worst {
			worst = drawdown
		}
	}
	return worst
}

// computeCategoryStats groups each decision's reasoning steps by category
// name and requires at least minSamples observations (spec §4.10 step 3).
func computeCategoryStats(decisions []domain.DecisionRecord, minSamples int) []CategoryStats {
	type accum struct {
		samples    int
		wins       int
		returnSum  float64
		accuracySum float64
	}
	byName := map[string]*accum{}

	for _, d := range decisions {
		if d.ActualOutcome == nil {
			continue
		}
		for _, step := range d.ReasoningSteps {
			if step.ConfidenceDelta == 0 {
				continue
			}
			a, ok := byName[step.StepName]
			if !ok {
				a = &accum{}
				byName[step.StepName] = a
			}
			a.samples++
			if d.ActualOutcome.Success {
				a.wins++
			}
			a.returnSum += d.ActualOutcome.RealizedMovePct
			if d.AccuracyScore != nil {
				a.accuracySum += *d.AccuracyScore
			}
		}
	}

	var out []CategoryStats
	for name, a := range byName {
		if a.samples < minSamples {
			continue
		}
		out = append(out, CategoryStats{
			Name:         name,
			Samples:      a.samples,
			WinRate:      float64(a.wins) / float64(a.samples),
			MeanReturn:   a.returnSum / float64(a.samples),
			MeanAccuracy: a.accuracySum / float64(a.samples),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// proposeWeightDelta implements spec §4.10 step 4. Since the spec leaves the
// mapping from category performance to a single "performance_score" scalar
// unspecified, this uses `(win_rate - 0.5) * 2` (a category with a 50% win
// rate is neutral; above/below scales linearly toward +-1 before clamping).
func proposeWeightDelta(current domain.LearnedWeights, stats []CategoryStats, learningRate float64) domain.LearnedWeights {
	next := current.Clone()
	if next.FeatureMultipliers == nil {
		next.FeatureMultipliers = map[string]float64{}
	}
	for _, s := range stats {
		performanceScore := clamp((s.WinRate-0.5)*2, -0.5, 0.5)
		old := next.MultiplierFor(s.Name)
		updated := old * (1 + learningRate*performanceScore)
		next.FeatureMultipliers[s.Name] = clamp(updated, 0.3, 2.0)
	}
	return next
}

// adjustConfidenceMultiplier implements spec §4.10 step 5.
func adjustConfidenceMultiplier(current float64, calibration float64) float64 {
	if current == 0 {
		current = 1.0
	}
	switch {
	case calibration < 0.7:
		current *= 0.95
	case calibration > 0.9:
		current *= 1.02
	}
	return clamp(current, 0.5, 1.5)
}

// scoreOnValidation implements spec §4.10 step 6: re-score each validation
// decision's historical contribution under the candidate weights and
// compare the thresholded recomputed confidence against the realized
// outcome, weighted by per-trade accuracy.
func scoreOnValidation(validation []domain.DecisionRecord, oldWeights, newWeights domain.LearnedWeights, minConfidenceScore float64) float64 {
	if len(validation) == 0 {
		return 0
	}
	var sum float64
	for _, d := range validation {
		if d.ActualOutcome == nil {
			continue
		}
		recomputed := recomputeConfidence(d, oldWeights, newWeights)
		predictedBuy := recomputed >= minConfidenceScore
		accuracy := 0.5
		if d.AccuracyScore != nil {
			accuracy = *d.AccuracyScore
		}
		if predictedBuy == d.ActualOutcome.Success {
			sum += accuracy
		}
	}
	return sum / float64(len(validation))
}

// recomputeConfidence rescales each reasoning step's stored contribution by
// the ratio of the candidate multiplier to the multiplier in effect when the
// decision was originally scored, avoiding a full indicator re-run against
// bars that may no longer be retained.
func recomputeConfidence(d domain.DecisionRecord, oldWeights, newWeights domain.LearnedWeights) float64 {
	var sum float64
	for _, step := range d.ReasoningSteps {
		oldMultiplier := oldWeights.MultiplierFor(step.StepName)
		newMultiplier := newWeights.MultiplierFor(step.StepName)
		if oldMultiplier == 0 {
			sum += step.ConfidenceDelta
			continue
		}
		sum += step.ConfidenceDelta * (newMultiplier / oldMultiplier)
	}
	confMultiplier := newWeights.ConfidenceMultiplier
	if confMultiplier == 0 {
		confMultiplier = 1.0
	}
	return clamp((5.0+sum)*confMultiplier, 0, 10)
}

// adjustThresholds implements spec §4.10 step 8's safety-railed adjustment.
func adjustThresholds(current domain.AdaptiveThresholds, metrics Metrics, stats []CategoryStats, floor float64) domain.AdaptiveThresholds {
	next := current

	switch {
	case metrics.DirectionalAccuracy > 0.8:
		next.MinConfidenceScore += 0.5
	case metrics.DirectionalAccuracy < 0.6:
		next.MinConfidenceScore -= 0.5
	}
	if next.MinConfidenceScore < floor {
		next.MinConfidenceScore = floor
	}

	for _, s := range stats {
		if s.Name != "rsi_zscore" {
			continue
		}
		switch {
		case s.WinRate > 0.6:
			next.RSIOversold = clamp(next.RSIOversold+1, 10, 40)
			next.RSIOverbought = clamp(next.RSIOverbought-1, 60, 90)
		case s.WinRate < 0.4:
			next.RSIOversold = clamp(next.RSIOversold-1, 10, 40)
			next.RSIOverbought = clamp(next.RSIOverbought+1, 60, 90)
		}
	}
	return next
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

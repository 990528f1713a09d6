package learning

import (
	"context"
	"testing"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/nyxtrade/momentum-trader/internal/weights"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	decisions []domain.DecisionRecord
	cycles    []map[string]any
}

func (f *fakeStore) QueryDecisionsWithOutcomes(ctx context.Context, limit int) ([]domain.DecisionRecord, error) {
	return f.decisions, nil
}
func (f *fakeStore) AppendLearningCycle(ctx context.Context, committed bool, fields map[string]any) error {
	f.cycles = append(f.cycles, fields)
	return nil
}

func decisionWithOutcome(i int, stepName string, success bool, move, accuracy, confidence float64) domain.DecisionRecord {
	acc := accuracy
	return domain.DecisionRecord{
		ID:              "dec-" + string(rune('a'+i)),
		Ticker:          "AAPL",
		CreatedAt:       time.Now().Add(time.Duration(i) * time.Minute),
		FinalConfidence: confidence,
		AccuracyScore:   &acc,
		ReasoningSteps: []domain.ReasoningStep{
			{StepName: stepName, ConfidenceDelta: 0.5},
		},
		ActualOutcome: &domain.Outcome{
			Success: success, RealizedMovePct: move, ClosedAt: time.Now(),
		},
	}
}

func TestRunCycle_SkipsWhenBelowMinimumSamples(t *testing.T) {
	store := &fakeStore{decisions: []domain.DecisionRecord{decisionWithOutcome(0, "rsi_zscore", true, 0.05, 0.8, 8)}}
	holder := weights.NewHolder(domain.AdaptiveThresholds{MinConfidenceScore: 7})
	e := New(DefaultConfig(), store, holder)

	result, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "insufficient_samples", result.SkippedReason)
	assert.False(t, result.Committed)
}

func buildDecisionSet(n int, winFraction float64) []domain.DecisionRecord {
	decisions := make([]domain.DecisionRecord, n)
	for i := 0; i < n; i++ {
		success := float64(i)/float64(n) < winFraction
		move := 0.04
		if !success {
			move = -0.03
		}
		decisions[i] = decisionWithOutcome(i, "rsi_zscore", success, move, 0.7, 8)
	}
	return decisions
}

func TestRunCycle_ComputesMetricsOverFullSet(t *testing.T) {
	store := &fakeStore{decisions: buildDecisionSet(30, 0.7)}
	holder := weights.NewHolder(domain.AdaptiveThresholds{MinConfidenceScore: 7})
	e := New(DefaultConfig(), store, holder)

	result, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.SkippedReason)
	assert.InDelta(t, 0.7, result.Metrics.WinRate, 0.05)
	require.Len(t, store.cycles, 1)
}

func TestRunCycle_RequiresMinimumCategorySamples(t *testing.T) {
	decisions := buildDecisionSet(25, 0.6)
	// Give three of them a distinct rare category; the rest stay rsi_zscore.
	for i := 0; i < 3; i++ {
		decisions[i].ReasoningSteps = []domain.ReasoningStep{{StepName: "rare_category", ConfidenceDelta: 0.3}}
	}
	store := &fakeStore{decisions: decisions}
	holder := weights.NewHolder(domain.AdaptiveThresholds{MinConfidenceScore: 7})
	e := New(DefaultConfig(), store, holder)

	result, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	for _, cs := range result.CategoryStats {
		assert.NotEqual(t, "rare_category", cs.Name)
	}
}

func TestProposeWeightDelta_ClampsToConfiguredRange(t *testing.T) {
	current := domain.LearnedWeights{FeatureMultipliers: map[string]float64{"rsi_zscore": 1.95}}
	stats := []CategoryStats{{Name: "rsi_zscore", Samples: 10, WinRate: 1.0}}
	next := proposeWeightDelta(current, stats, 0.5)
	assert.LessOrEqual(t, next.FeatureMultipliers["rsi_zscore"], 2.0)
}

func TestAdjustConfidenceMultiplier_BoundedRange(t *testing.T) {
	assert.InDelta(t, 0.95, adjustConfidenceMultiplier(1.0, 0.5), 1e-9)
	assert.InDelta(t, 1.02, adjustConfidenceMultiplier(1.0, 0.95), 1e-9)
	v := adjustConfidenceMultiplier(1.49, 0.95)
	assert.LessOrEqual(t, v, 1.5)
}

func TestRunCycle_CommitsOnlyWhenValidationScoreImproves(t *testing.T) {
	store := &fakeStore{decisions: buildDecisionSet(40, 0.8)}
	holder := weights.NewHolder(domain.AdaptiveThresholds{MinConfidenceScore: 7})
	e := New(DefaultConfig(), store, holder)

	first, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	versionAfterFirst := holder.Snapshot().Version
	second, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	if second.Committed {
		assert.Greater(t, holder.Snapshot().Version, versionAfterFirst)
	} else {
		assert.Equal(t, versionAfterFirst, holder.Snapshot().Version)
	}
	_ = first
}

func TestMaxDrawdown_TracksWorstPeakToTrough(t *testing.T) {
	dd := maxDrawdown([]float64{0.05, 0.05, -0.2, 0.01})
	assert.InDelta(t, 0.2, dd, 1e-9)
}

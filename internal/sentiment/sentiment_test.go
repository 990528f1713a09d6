package sentiment

import (
	"testing"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestAggregate_NoPointsIsNeutralZeroConfidence(t *testing.T) {
	v := Aggregate("SIRI", nil, time.Now())
	assert.Equal(t, domain.DirectionNeutral, v.Direction)
	assert.Equal(t, 0.0, v.Score)
}

func TestAggregate_BullishAboveThreshold(t *testing.T) {
	now := time.Now()
	points := []DataPoint{
		{RawScore: 0.8, Confidence: 0.9, Source: "news", Timestamp: now.Add(-time.Hour), AuthorCredibility: 2, Engagement: 3},
		{RawScore: 0.6, Confidence: 0.8, Source: "social", Timestamp: now.Add(-2 * time.Hour), AuthorCredibility: 1, Engagement: 1},
	}
	v := Aggregate("SIRI", points, now)
	assert.Equal(t, domain.DirectionBullish, v.Direction)
	assert.Greater(t, v.Score, 0.1)
	assert.LessOrEqual(t, v.Score, 1.0)
}

func TestAggregate_OlderPointsDecayTowardFloor(t *testing.T) {
	now := time.Now()
	fresh := Aggregate("X", []DataPoint{{RawScore: 1.0, Confidence: 1, Source: "news", Timestamp: now, AuthorCredibility: 1, Engagement: 1}}, now)
	stale := Aggregate("X", []DataPoint{{RawScore: 1.0, Confidence: 1, Source: "news", Timestamp: now.Add(-23 * time.Hour), AuthorCredibility: 1, Engagement: 1}}, now)
	assert.Greater(t, fresh.Confidence, stale.Confidence)
}

func TestScoreRawText_LexiconAdjustsPolarity(t *testing.T) {
	base := ScoreRawText(0.5, nil)
	boosted := ScoreRawText(0.5, []string{"upgrade", "breakout"})
	assert.InDelta(t, base+0.2, boosted, 1e-9)
}

func TestScoreRawText_ClampedToUnitRange(t *testing.T) {
	v := ScoreRawText(0.95, []string{"upgrade", "breakout", "beat"})
	assert.LessOrEqual(t, v, 1.0)
}

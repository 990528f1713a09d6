package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBar_Valid(t *testing.T) {
	b := Bar{Open: 10, High: 12, Low: 9, Close: 11, Volume: 100}
	assert.True(t, b.Valid())

	bad := Bar{Open: 10, High: 9, Low: 9, Close: 11, Volume: 100}
	assert.False(t, bad.Valid())
}

func TestValidTicker(t *testing.T) {
	assert.True(t, ValidTicker("SIRI"))
	assert.True(t, ValidTicker("A"))
	assert.False(t, ValidTicker("TOOLONG1"))
	assert.False(t, ValidTicker("abc"))
	assert.False(t, ValidTicker(""))
}

func TestRecommendation_Valid(t *testing.T) {
	r := Recommendation{
		Entry: 25.50, StopLoss: 24.00, TakeProfit: 28.00,
		RiskReward: (28.00 - 25.50) / (25.50 - 24.00),
	}
	assert.True(t, r.Valid(2.0))
	assert.False(t, r.Valid(3.0))
}

func TestLearnedWeights_MultiplierForDefaultsNeutral(t *testing.T) {
	w := LearnedWeights{FeatureMultipliers: map[string]float64{"rsi_zscore": 1.3}}
	assert.Equal(t, 1.3, w.MultiplierFor("rsi_zscore"))
	assert.Equal(t, 1.0, w.MultiplierFor("unknown"))
}

func TestLearnedWeights_CloneIsIndependent(t *testing.T) {
	w := LearnedWeights{FeatureMultipliers: map[string]float64{"a": 1.0}, UpdatedAt: time.Now()}
	c := w.Clone()
	c.FeatureMultipliers["a"] = 2.0
	assert.Equal(t, 1.0, w.FeatureMultipliers["a"])
}

func TestNeutralSignal(t *testing.T) {
	s := NeutralSignal("rsi_zscore")
	assert.Equal(t, DirectionNeutral, s.Direction)
	assert.Equal(t, 0.0, s.Strength)
	assert.Equal(t, 0.0, s.Confidence)
}

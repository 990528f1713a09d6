package weights

import (
	"testing"

	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHolder_SeedsNeutralMultipliers(t *testing.T) {
	h := NewHolder(domain.AdaptiveThresholds{MinConfidenceScore: 7.0})
	snap := h.Snapshot()
	assert.Equal(t, int64(1), snap.Version)
	assert.Equal(t, 1.0, snap.MultiplierFor("rsi_zscore"))
	assert.Equal(t, 7.0, h.Thresholds().MinConfidenceScore)
}

func TestCommitWeights_IncrementsVersionAndRetainsHistory(t *testing.T) {
	h := NewHolder(domain.AdaptiveThresholds{})
	next := h.Snapshot()
	next.FeatureMultipliers["rsi_zscore"] = 1.3
	h.CommitWeights(next)

	snap := h.Snapshot()
	assert.Equal(t, int64(2), snap.Version)
	assert.Equal(t, 1.3, snap.MultiplierFor("rsi_zscore"))

	hist := h.History()
	require.Len(t, hist, 2)
	assert.Equal(t, int64(1), hist[0].Version)
	assert.Equal(t, int64(2), hist[1].Version)
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	h := NewHolder(domain.AdaptiveThresholds{})
	snap := h.Snapshot()
	snap.FeatureMultipliers["rsi_zscore"] = 99
	assert.Equal(t, 1.0, h.Snapshot().MultiplierFor("rsi_zscore"))
}

// Package weights holds the copy-on-read LearnedWeights and
// AdaptiveThresholds snapshots (spec §3, §5): "consumers fetch an immutable
// snapshot at the start of their phase."
package weights

import (
	"sync"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/domain"
)

// DefaultFeatureNames seeds every learnable feature at a neutral multiplier.
var DefaultFeatureNames = []string{
	"rsi_zscore", "momentum_divergence", "vpt", "order_flow", "sector_rs", "adaptive_bb", "sentiment",
}

// Holder is the single process-wide owner of the current LearnedWeights and
// AdaptiveThresholds. Only the Learning Engine writes to it (spec §3
// ownership rule); every other component only calls Snapshot().
type Holder struct {
	mu         sync.RWMutex
	weights    domain.LearnedWeights
	thresholds domain.AdaptiveThresholds
	history    []domain.LearnedWeights // retained versions, never deleted
}

// NewHolder seeds a Holder at version 1 with neutral multipliers and the
// supplied initial AdaptiveThresholds (spec §6 config-driven seed values).
func NewHolder(initial domain.AdaptiveThresholds) *Holder {
	fm := make(map[string]float64, len(DefaultFeatureNames))
	for _, n := range DefaultFeatureNames {
		fm[n] = 1.0
	}
	w := domain.LearnedWeights{
		Version:              1,
		UpdatedAt:            time.Now(),
		FeatureMultipliers:   fm,
		ConfidenceMultiplier: 1.0,
	}
	return &Holder{weights: w, thresholds: initial, history: []domain.LearnedWeights{w.Clone()}}
}

// Snapshot returns an immutable copy of the current LearnedWeights.
func (h *Holder) Snapshot() domain.LearnedWeights {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.weights.Clone()
}

// Thresholds returns a copy of the current AdaptiveThresholds.
func (h *Holder) Thresholds() domain.AdaptiveThresholds {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.thresholds
}

// CommitWeights installs a new LearnedWeights version. The caller (Learning
// Engine) is responsible for having already validated the candidate (spec
// §4.10 step 7); version increases monotonically and old versions are
// retained in history (spec §3).
func (h *Holder) CommitWeights(next domain.LearnedWeights) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next.Version = h.weights.Version + 1
	next.UpdatedAt = time.Now()
	h.weights = next.Clone()
	h.history = append(h.history, next.Clone())
}

// CommitThresholds installs new AdaptiveThresholds (spec §4.10 step 8).
func (h *Holder) CommitThresholds(next domain.AdaptiveThresholds) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.thresholds = next
}

// History returns every retained LearnedWeights version, oldest first.
func (h *Holder) History() []domain.LearnedWeights {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]domain.LearnedWeights, len(h.history))
	copy(out, h.history)
	return out
}

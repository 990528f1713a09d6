// Package execution implements the Execution Monitor (spec §4.8): it owns
// every open Position's lifecycle after fill, advancing trailing stops and
// evaluating exits on a fixed tick, the way the teacher's position-tracking
// loop in trader-go polls broker state on a cron-driven cadence.
package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/nyxtrade/momentum-trader/internal/ports"
	"github.com/rs/zerolog"
)

// PositionStore is the narrow journaling seam the Execution Monitor needs.
type PositionStore interface {
	AppendPosition(ctx context.Context, p domain.Position, open bool) error
	AppendOutcome(ctx context.Context, o domain.Outcome) error
	UpdateOutcome(ctx context.Context, decisionID string, outcome domain.Outcome, accuracy float64) error
}

// PredictionMeta carries the Prediction fields the accuracy-score formula
// needs at close time, since domain.Position itself only tracks the
// recommendation it came from (spec §4.8's accuracy-score formula).
type PredictionMeta struct {
	PredictionID        string
	DecisionID          string
	Direction           domain.Direction
	ExpectedMovePct      float64
	ExpectedDurationHrs  float64
}

// Config holds the Execution Monitor's tunables (spec §4.8/§6).
type Config struct {
	TickInterval         time.Duration
	TrailingTriggerMultiple float64
	TrailingLockInMultiple  float64
	EmergencyStopPct        float64
	MaxSellRetries          int
}

func DefaultConfig() Config {
	return Config{
		TickInterval:            30 * time.Second,
		TrailingTriggerMultiple: 1.5,
		TrailingLockInMultiple:  0.2,
		EmergencyStopPct:        0.08,
		MaxSellRetries:          3,
	}
}

type tracked struct {
	position domain.Position
	meta     PredictionMeta
	mu       sync.Mutex
	escalated bool
}

// Monitor runs the exit-evaluation loop over every open Position.
type Monitor struct {
	cfg      Config
	market   ports.MarketDataPort
	broker   ports.BrokerPort
	store    PositionStore
	notifier ports.NotifierPort
	log      zerolog.Logger
	now      func() time.Time

	mu         sync.RWMutex
	positions  map[string]*tracked
}

func New(cfg Config, market ports.MarketDataPort, broker ports.BrokerPort, store PositionStore, notifier ports.NotifierPort, log zerolog.Logger) *Monitor {
	return &Monitor{cfg: cfg, market: market, broker: broker, store: store, notifier: notifier, log: log, now: time.Now, positions: map[string]*tracked{}}
}

// Track registers a newly filled Position for lifecycle management (spec §4.8).
func (m *Monitor) Track(ctx context.Context, pos domain.Position, meta PredictionMeta) error {
	m.mu.Lock()
	m.positions[pos.ID] = &tracked{position: pos, meta: meta}
	m.mu.Unlock()
	return m.store.AppendPosition(ctx, pos, true)
}

// OpenCount reports the number of positions currently under management
// (used by the Recommender's portfolio-context input).
func (m *Monitor) OpenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.positions)
}

// Run ticks every cfg.TickInterval until ctx is cancelled (spec §4.8).
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one full pass over all open positions (spec §4.8 steps 1-5).
func (m *Monitor) Tick(ctx context.Context) {
	m.mu.RLock()
	items := make([]*tracked, 0, len(m.positions))
	for _, t := range m.positions {
		items = append(items, t)
	}
	m.mu.RUnlock()

	for _, t := range items {
		m.evaluateOne(ctx, t)
	}
}

func (m *Monitor) evaluateOne(ctx context.Context, t *tracked) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos := t.position

	quote, err := m.market.Snapshot(ctx, pos.Ticker)
	if err != nil {
		m.log.Warn().Err(err).Str("ticker", string(pos.Ticker)).Msg("execution: quote unavailable, skipping tick for this position")
		return
	}
	price := quote.Last
	now := m.now()

	if price > pos.HighestPrice {
		pos.HighestPrice = price
	}

	advanceTrailingStop(&pos, m.cfg)

	reason, exit := evaluateExit(pos, price, now, m.cfg)
	t.position = pos
	if !exit {
		if err := m.store.AppendPosition(ctx, pos, true); err != nil {
			m.log.Error().Err(err).Str("position_id", pos.ID).Msg("execution: failed to journal position update")
		}
		return
	}

	m.closePosition(ctx, t, price, now, reason)
}

// advanceTrailingStop implements spec §4.8 step 3: the stop never moves down.
func advanceTrailingStop(pos *domain.Position, cfg Config) {
	if !pos.TrailingEnabled {
		return
	}
	risk := pos.EntryFill - pos.InitialStop
	if risk <= 0 {
		return
	}
	trigger := pos.EntryFill + cfg.TrailingTriggerMultiple*risk
	if pos.HighestPrice < trigger {
		return
	}
	newStop := pos.EntryFill + cfg.TrailingLockInMultiple*risk
	if newStop > pos.StopLevel {
		pos.StopLevel = newStop
		pos.TrailingActive = true
	}
}

// evaluateExit implements spec §4.8 step 4's fixed evaluation order.
func evaluateExit(pos domain.Position, price float64, now time.Time, cfg Config) (domain.ExitReason, bool) {
	switch {
	case price >= pos.TargetLevel:
		return domain.ExitTarget, true
	case price <= pos.StopLevel:
		if pos.TrailingActive {
			return domain.ExitTrailingStop, true
		}
		return domain.ExitStop, true
	case !now.Before(pos.MaxHoldDeadline):
		return domain.ExitTime, true
	case (price-pos.EntryFill)/pos.EntryFill <= -cfg.EmergencyStopPct:
		return domain.ExitEmergency, true
	default:
		return "", false
	}
}

func (m *Monitor) closePosition(ctx context.Context, t *tracked, exitPrice float64, now time.Time, reason domain.ExitReason) {
	pos := t.position

	result, err := m.broker.PlaceSell(ctx, string(pos.Ticker), pos.Shares)
	if err != nil {
		pos.SellAttempts++
		t.position = pos
		m.log.Warn().Err(err).Str("position_id", pos.ID).Int("attempt", pos.SellAttempts).Msg("execution: sell failed, will retry next tick")
		if pos.SellAttempts >= m.cfg.MaxSellRetries && !t.escalated {
			t.escalated = true
			m.notifyBestEffort(ctx, fmt.Sprintf("ESCALATION: %s failed to sell after %d attempts, manual intervention required", pos.Ticker, pos.SellAttempts))
		}
		if err := m.store.AppendPosition(ctx, pos, true); err != nil {
			m.log.Error().Err(err).Msg("execution: failed to journal retry state")
		}
		return
	}
	_ = result

	m.mu.Lock()
	delete(m.positions, pos.ID)
	m.mu.Unlock()

	if err := m.store.AppendPosition(ctx, pos, false); err != nil {
		m.log.Error().Err(err).Msg("execution: failed to journal closed position")
	}

	realizedMove := (exitPrice - pos.EntryFill) / pos.EntryFill
	duration := now.Sub(pos.CreatedAt).Hours()

	outcome := domain.Outcome{
		PredictionID:        t.meta.PredictionID,
		EntryFill:           pos.EntryFill,
		ExitFill:            exitPrice,
		RealizedMovePct:     realizedMove,
		RealizedDurationHrs: duration,
		ExitReason:          reason,
		AccuracyScore:       0,
		Success:             realizedMove > 0,
		ClosedAt:            now,
	}

	directionMatch := (t.meta.Direction == domain.DirectionBullish && realizedMove > 0) ||
		(t.meta.Direction == domain.DirectionBearish && realizedMove < 0)
	accuracy := AccuracyScore(t.meta.ExpectedMovePct, realizedMove, t.meta.ExpectedDurationHrs, duration, directionMatch)
	outcome.AccuracyScore = accuracy

	if err := m.store.AppendOutcome(ctx, outcome); err != nil {
		m.log.Error().Err(err).Msg("execution: failed to journal outcome")
	}
	if t.meta.DecisionID != "" {
		if err := m.store.UpdateOutcome(ctx, t.meta.DecisionID, outcome, accuracy); err != nil {
			m.log.Error().Err(err).Msg("execution: failed to attach outcome to decision")
		}
	}

	m.notifyBestEffort(ctx, fmt.Sprintf("closed %s x%d @ %.2f (%s), realized %.2f%%", pos.Ticker, pos.Shares, exitPrice, reason, realizedMove*100))
}

// AccuracyScore implements spec §4.8's accuracy formula: direction match
// 0.5, magnitude closeness weighted 0.3, timing closeness weighted 0.2.
func AccuracyScore(expectedMovePct, actualMovePct, expectedDurationHrs, actualDurationHrs float64, directionMatch bool) float64 {
	var directionTerm float64
	if directionMatch {
		directionTerm = 0.5
	}

	var magnitudeTerm float64
	if expectedMovePct != 0 {
		magnitudeTerm = maxF(0, 1-absF(expectedMovePct-actualMovePct)/absF(expectedMovePct)) * 0.3
	}

	var timingTerm float64
	if expectedDurationHrs != 0 {
		timingTerm = maxF(0, 1-absF(expectedDurationHrs-actualDurationHrs)/absF(expectedDurationHrs)) * 0.2
	}

	return directionTerm + magnitudeTerm + timingTerm
}

func (m *Monitor) notifyBestEffort(ctx context.Context, text string) {
	if m.notifier == nil {
		return
	}
	if _, err := m.notifier.Send(ctx, text, ""); err != nil {
		m.log.Warn().Err(err).Msg("execution: best-effort notification failed")
	}
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Package confirmation implements the Confirmation Broker (spec §4.6): the
// state machine mediating whether a Recommendation becomes an order, the
// way the teacher's trade-execution approval flow gates an order behind an
// operator-facing notification before it reaches the broker.
package confirmation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/nyxtrade/momentum-trader/internal/ports"
	"github.com/rs/zerolog"
)

// Mode selects how a Proposed Recommendation is resolved (spec §4.6).
type Mode string

const (
	ModeAuto        Mode = "auto"
	ModeInteractive Mode = "interactive"
	ModeNotifyOnly  Mode = "notify_only"
)

// State is one of the Confirmation Broker's terminal or transitional states.
type State string

const (
	StateProposed State = "proposed"
	StateExecuted State = "executed"
	StateRejected State = "rejected"
	StateExpired  State = "expired"
)

// DefaultAffirmative and DefaultNegative implement spec §4.6's token sets.
var DefaultAffirmative = []string{
	"yes", "y", "buy", "go", "execute", "confirm", "ok", "okay", "proceed",
	"do it", "send it", "place order", "buy it", "sell it", "sell", "exit", "close",
}

var DefaultNegative = []string{
	"no", "n", "stop", "cancel", "reject", "skip", "don't", "dont", "hold off", "abort", "decline",
}

// DecisionStore is the narrow journaling seam the Confirmation Broker needs.
type DecisionStore interface {
	AppendDecision(ctx context.Context, d domain.DecisionRecord) error
}

// Outcome is the result of resolving one Proposed Recommendation.
type Outcome struct {
	State   State
	Order   *ports.OrderResult
	Reason  string
}

// Config holds the Confirmation Broker's tunables (spec §6).
type Config struct {
	ConfirmationTimeout time.Duration
	Affirmative         []string
	Negative            []string
}

func DefaultConfig() Config {
	return Config{ConfirmationTimeout: 30 * time.Second, Affirmative: DefaultAffirmative, Negative: DefaultNegative}
}

// Broker mediates Recommendation -> Order transitions.
type Broker struct {
	cfg      Config
	notifier ports.NotifierPort
	broker   ports.BrokerPort
	store    DecisionStore
	log      zerolog.Logger

	mu      sync.Mutex
	pending map[string]chan ports.Reply
}

func New(cfg Config, notifier ports.NotifierPort, broker ports.BrokerPort, store DecisionStore, log zerolog.Logger) *Broker {
	return &Broker{cfg: cfg, notifier: notifier, broker: broker, store: store, log: log, pending: map[string]chan ports.Reply{}}
}

// Start runs the reply dispatcher until ctx is cancelled. Replies are routed
// by correlation id; unmatched replies are dropped with a warning, and
// replies for a correlation id no longer pending (already resolved, or never
// registered) are discarded (spec §4.6: "late replies MUST be discarded",
// "unmatched replies are dropped with a warning").
func (b *Broker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reply, ok := <-b.notifier.Replies():
			if !ok {
				return
			}
			b.route(reply)
		}
	}
}

func (b *Broker) route(reply ports.Reply) {
	if reply.CorrelationID == "" {
		b.log.Warn().Str("text", reply.Text).Msg("confirmation: uncorrelated reply dropped")
		return
	}
	b.mu.Lock()
	ch, ok := b.pending[reply.CorrelationID]
	b.mu.Unlock()
	if !ok {
		b.log.Warn().Str("correlation_id", reply.CorrelationID).Msg("confirmation: reply for unknown or already-resolved correlation id dropped")
		return
	}
	select {
	case ch <- reply:
	default:
		b.log.Warn().Str("correlation_id", reply.CorrelationID).Msg("confirmation: late reply discarded, resolution already in flight")
	}
}

// Propose evaluates one Recommendation under the given Mode, driving it
// through Proposed to a terminal state (spec §4.6).
func (b *Broker) Propose(ctx context.Context, rec domain.Recommendation, decision domain.DecisionRecord, mode Mode) Outcome {
	decision.FinalAction = domain.ActionHold
	decision.ExpectedOutcome = "awaiting confirmation: " + string(mode)
	b.journal(ctx, decision)

	switch mode {
	case ModeAuto:
		return b.resolveAuto(ctx, rec, decision)
	case ModeNotifyOnly:
		return b.resolveNotifyOnly(ctx, rec, decision)
	case ModeInteractive:
		return b.resolveInteractive(ctx, rec, decision)
	default:
		return Outcome{State: StateRejected, Reason: "unknown confirmation mode"}
	}
}

func (b *Broker) resolveAuto(ctx context.Context, rec domain.Recommendation, decision domain.DecisionRecord) Outcome {
	order, err := b.broker.PlaceBuy(ctx, string(rec.Ticker), rec.Shares, nil, rec.ID)
	if err != nil {
		b.log.Warn().Err(err).Str("ticker", string(rec.Ticker)).Msg("confirmation: auto broker call failed")
		decision.FinalAction = domain.ActionSkip
		decision.Reason = "broker_rejected: " + err.Error()
		b.journal(ctx, decision)
		b.notifyBestEffort(ctx, fmt.Sprintf("order for %s rejected: %v", rec.Ticker, err), rec.ID)
		return Outcome{State: StateRejected, Reason: decision.Reason}
	}
	decision.FinalAction = domain.ActionBuy
	b.journal(ctx, decision)
	b.notifyBestEffort(ctx, fmt.Sprintf("bought %s x%d @ %.2f (auto)", rec.Ticker, rec.Shares, rec.Entry), rec.ID)
	return Outcome{State: StateExecuted, Order: &order}
}

func (b *Broker) resolveNotifyOnly(ctx context.Context, rec domain.Recommendation, decision domain.DecisionRecord) Outcome {
	b.notifyBestEffort(ctx, formatProposal(rec), rec.ID)
	decision.FinalAction = domain.ActionSkip
	decision.Reason = "notify_only: awaiting out-of-band action"
	b.journal(ctx, decision)
	return Outcome{State: StateExpired, Reason: decision.Reason}
}

func (b *Broker) resolveInteractive(ctx context.Context, rec domain.Recommendation, decision domain.DecisionRecord) Outcome {
	correlationID := uuid.NewString()
	replyCh := make(chan ports.Reply, 4)

	b.mu.Lock()
	b.pending[correlationID] = replyCh
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, correlationID)
		b.mu.Unlock()
	}()

	if _, err := b.notifier.Send(ctx, formatProposal(rec), correlationID); err != nil {
		b.log.Warn().Err(err).Msg("confirmation: failed to send confirmation prompt")
		decision.FinalAction = domain.ActionSkip
		decision.Reason = "notify_failed: " + err.Error()
		b.journal(ctx, decision)
		return Outcome{State: StateRejected, Reason: decision.Reason}
	}

	timer := time.NewTimer(b.cfg.ConfirmationTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			decision.FinalAction = domain.ActionSkip
			decision.Reason = "context_cancelled"
			b.journal(ctx, decision)
			return Outcome{State: StateExpired, Reason: decision.Reason}

		case <-timer.C:
			decision.FinalAction = domain.ActionSkip
			decision.Reason = "confirmation_timeout"
			b.journal(ctx, decision)
			return Outcome{State: StateExpired, Reason: decision.Reason}

		case reply := <-replyCh:
			switch classify(reply.Text, b.cfg.Affirmative, b.cfg.Negative) {
			case tokenAffirmative:
				order, err := b.broker.PlaceBuy(ctx, string(rec.Ticker), rec.Shares, nil, rec.ID)
				if err != nil {
					decision.FinalAction = domain.ActionSkip
					decision.Reason = "broker_rejected: " + err.Error()
					b.journal(ctx, decision)
					return Outcome{State: StateRejected, Reason: decision.Reason}
				}
				decision.FinalAction = domain.ActionBuy
				b.journal(ctx, decision)
				return Outcome{State: StateExecuted, Order: &order}

			case tokenNegative:
				decision.FinalAction = domain.ActionSkip
				decision.Reason = "user_rejected"
				b.journal(ctx, decision)
				return Outcome{State: StateRejected, Reason: decision.Reason}

			default:
				// Neither affirmative nor negative: keep waiting for the
				// remainder of the timeout window (spec §4.6).
				continue
			}
		}
	}
}

type tokenClass int

const (
	tokenUnmatched tokenClass = iota
	tokenAffirmative
	tokenNegative
)

// classify performs the case-insensitive token match of spec §4.6 against
// both sets: a multi-word token matches as a substring, a single-word token
// only as a whole whitespace-separated word. It prefers negative on a tie
// since rejecting a trade the user didn't actually confirm is always the
// safer default.
func classify(text string, affirmative, negative []string) tokenClass {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return tokenUnmatched
	}
	if matchesAny(lower, negative) {
		return tokenNegative
	}
	if matchesAny(lower, affirmative) {
		return tokenAffirmative
	}
	return tokenUnmatched
}

func matchesAny(lower string, set []string) bool {
	fields := strings.Fields(lower)
	for _, token := range set {
		if strings.Contains(token, " ") {
			if strings.Contains(lower, token) {
				return true
			}
			continue
		}
		for _, f := range fields {
			if f == token {
				return true
			}
		}
	}
	return false
}

func formatProposal(rec domain.Recommendation) string {
	return fmt.Sprintf("BUY %s x%d @ %.2f | stop %.2f target %.2f | confidence %.1f/10 | RR %.2f",
		rec.Ticker, rec.Shares, rec.Entry, rec.StopLoss, rec.TakeProfit, rec.Confidence, rec.RiskReward)
}

func (b *Broker) journal(ctx context.Context, d domain.DecisionRecord) {
	if err := b.store.AppendDecision(ctx, d); err != nil {
		b.log.Error().Err(err).Str("decision_id", d.ID).Msg("confirmation: failed to journal decision transition")
	}
}

func (b *Broker) notifyBestEffort(ctx context.Context, text, correlationID string) {
	if _, err := b.notifier.Send(ctx, text, correlationID); err != nil {
		b.log.Warn().Err(err).Msg("confirmation: best-effort notification failed")
	}
}

// Package notifier implements the NotifierPort (spec §4.2/§6): outbound
// alert delivery over a webhook (falling back to structured console
// logging when none is configured), inbound reply correlation for the
// Confirmation Broker, and the degraded-mode-transition/daily-digest
// habits carried over from the original's telegram_notifier.py (spec
// §12 supplemented features). Grounded on the teacher's exchangerate
// client's HTTP-with-typed-timeout shape.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nyxtrade/momentum-trader/internal/ports"
	"github.com/rs/zerolog"
)

// Config configures the Notifier (spec §6 NOTIFIER_WEBHOOK_URL).
type Config struct {
	WebhookURL string
	Timeout    time.Duration
}

func DefaultConfig() Config {
	return Config{Timeout: 5 * time.Second}
}

type outboundPayload struct {
	Text          string `json:"text"`
	CorrelationID string `json:"correlation_id,omitempty"`
	SentAt        int64  `json:"sent_at"`
}

type inboundReply struct {
	CorrelationID string `json:"correlation_id"`
	Text          string `json:"text"`
}

// Notifier implements ports.NotifierPort. When no webhook URL is
// configured it logs messages to the console and never produces replies
// (matching interactive confirmation's graceful degrade to notify-only,
// spec §4.6).
type Notifier struct {
	cfg     Config
	client  *http.Client
	log     zerolog.Logger
	replies chan ports.Reply
	modes   *ModeTracker
}

var _ ports.NotifierPort = (*Notifier)(nil)

func New(cfg Config, log zerolog.Logger) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Notifier{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     log.With().Str("component", "notifier").Logger(),
		replies: make(chan ports.Reply, 32),
		modes:   NewModeTracker(),
	}
}

// Send delivers text to the configured webhook, or logs it to the console
// when no webhook is configured.
func (n *Notifier) Send(ctx context.Context, text string, correlationID string) (ports.MessageID, error) {
	id := ports.MessageID(uuid.NewString())

	if n.cfg.WebhookURL == "" {
		n.log.Info().Str("correlation_id", correlationID).Msg(text)
		return id, nil
	}

	body, err := json.Marshal(outboundPayload{Text: text, CorrelationID: correlationID, SentAt: time.Now().Unix()})
	if err != nil {
		return "", fmt.Errorf("notifier: encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("notifier: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warn().Err(err).Msg("notifier: webhook delivery failed")
		return "", fmt.Errorf("notifier: webhook delivery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("notifier: webhook returned status %d", resp.StatusCode)
	}
	return id, nil
}

// Replies exposes the channel of correlated (or uncorrelated) user replies.
func (n *Notifier) Replies() <-chan ports.Reply {
	return n.replies
}

// ReceiveReply is an HTTP handler the composition root mounts as the
// inbound leg of the webhook notifier (e.g. a Telegram/Slack callback),
// pushing parsed replies onto the Replies() channel.
func (n *Notifier) ReceiveReply(w http.ResponseWriter, r *http.Request) {
	var in inboundReply
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid reply payload", http.StatusBadRequest)
		return
	}

	reply := ports.Reply{CorrelationID: in.CorrelationID, Text: in.Text, ReceivedAt: time.Now()}
	select {
	case n.replies <- reply:
	default:
		n.log.Warn().Msg("notifier: reply channel full, dropping inbound reply")
	}
	w.WriteHeader(http.StatusAccepted)
}

// NotifyModeChange sends a message only when the named degradation class's
// active/inactive state has actually flipped since the last call, so a
// sustained degradation doesn't spam one message per tick (spec §12).
func (n *Notifier) NotifyModeChange(ctx context.Context, class string, active bool, detail string) error {
	if !n.modes.Transitioned(class, active) {
		return nil
	}

	status := "RESOLVED"
	if active {
		status = "ACTIVE"
	}
	text := fmt.Sprintf("[degraded] %s now %s: %s", class, status, detail)
	_, err := n.Send(ctx, text, "")
	return err
}

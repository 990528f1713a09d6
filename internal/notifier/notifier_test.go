package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_NoWebhookLogsToConsole(t *testing.T) {
	n := New(Config{}, zerolog.Nop())
	id, err := n.Send(context.Background(), "buy SIRI", "corr-1")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestSend_PostsPayloadToWebhook(t *testing.T) {
	received := make(chan outboundPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p outboundPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		received <- p
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(Config{WebhookURL: srv.URL}, zerolog.Nop())
	_, err := n.Send(context.Background(), "buy NOK", "corr-2")
	require.NoError(t, err)

	select {
	case p := <-received:
		assert.Equal(t, "buy NOK", p.Text)
		assert.Equal(t, "corr-2", p.CorrelationID)
	case <-time.After(time.Second):
		t.Fatal("webhook never received payload")
	}
}

func TestSend_NonSuccessStatusReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(Config{WebhookURL: srv.URL}, zerolog.Nop())
	_, err := n.Send(context.Background(), "buy PLUG", "")
	require.Error(t, err)
}

func TestReceiveReply_PushesOntoRepliesChannel(t *testing.T) {
	n := New(Config{}, zerolog.Nop())

	body := `{"correlation_id":"corr-3","text":"yes"}`
	req := httptest.NewRequest(http.MethodPost, "/replies", strings.NewReader(body))
	rec := httptest.NewRecorder()

	n.ReceiveReply(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case reply := <-n.Replies():
		assert.Equal(t, "corr-3", reply.CorrelationID)
		assert.Equal(t, "yes", reply.Text)
	case <-time.After(time.Second):
		t.Fatal("expected reply to arrive on channel")
	}
}

func TestModeTracker_OnlyReportsOnActualTransition(t *testing.T) {
	m := NewModeTracker()
	assert.True(t, m.Transitioned("market_data_stale", true))
	assert.False(t, m.Transitioned("market_data_stale", true))
	assert.True(t, m.Transitioned("market_data_stale", false))
	assert.False(t, m.Transitioned("market_data_stale", false))
}

func TestModeTracker_FirstSeenInactiveIsNotAnnounced(t *testing.T) {
	m := NewModeTracker()
	assert.False(t, m.Transitioned("learning_skipped", false))
}

func TestNotifyModeChange_SendsOnlyOnTransition(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(Config{WebhookURL: srv.URL}, zerolog.Nop())
	require.NoError(t, n.NotifyModeChange(context.Background(), "screener_degraded", true, "gainers feed down"))
	require.NoError(t, n.NotifyModeChange(context.Background(), "screener_degraded", true, "gainers feed down"))
	require.NoError(t, n.NotifyModeChange(context.Background(), "screener_degraded", false, "recovered"))

	assert.Equal(t, 2, calls)
}

func TestFormatDigest_IncludesCoreFields(t *testing.T) {
	text := FormatDigest(DailySummary{TradeCount: 5, WinRate: 0.6, RealizedPnL: 123.45, TopFactor: "rsi_zscore", OpenPositions: 2})
	assert.Contains(t, text, "5 trades")
	assert.Contains(t, text, "rsi_zscore")
}

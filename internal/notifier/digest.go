package notifier

import "fmt"

// DailySummary is the daily-rollover task's input to the digest formatter
// (spec §4.11 market-close rollover; §12 daily digest carried over from the
// original's production_dashboard.py end-of-day summary block).
type DailySummary struct {
	TradeCount      int
	WinRate         float64
	RealizedPnL     float64
	TopFactor       string
	OpenPositions   int
}

// FormatDigest renders a short end-of-day summary for delivery via Send.
func FormatDigest(s DailySummary) string {
	return fmt.Sprintf(
		"Daily summary: %d trades, %.0f%% win rate, %+.2f realized P&L, %d open positions. Top factor: %s",
		s.TradeCount, s.WinRate*100, s.RealizedPnL, s.OpenPositions, s.TopFactor,
	)
}

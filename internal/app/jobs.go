package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nyxtrade/momentum-trader/internal/confirmation"
	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/nyxtrade/momentum-trader/internal/execution"
	"github.com/nyxtrade/momentum-trader/internal/notifier"
	"github.com/nyxtrade/momentum-trader/internal/recommender"
	"github.com/nyxtrade/momentum-trader/internal/regime"
	"github.com/nyxtrade/momentum-trader/internal/sentiment"
)

// barLookback is how much history every indicator-bearing Recommender input
// pulls per ticker; long enough for the widest sector-relative-strength
// timeframe (spec §4.3) without over-fetching.
const barLookback = 90 * 24 * time.Hour

// barInterval matches the daily-bar cadence the Indicator Engine's
// timeframes are expressed in (spec §4.3).
const barInterval = 24 * time.Hour

type executionTickJob struct{ app *Application }

func (j *executionTickJob) Name() string { return "execution_tick" }

func (j *executionTickJob) Run(ctx context.Context) error {
	j.app.Execution.Tick(ctx)
	return nil
}

type screenerRefreshJob struct{ app *Application }

func (j *screenerRefreshJob) Name() string { return "screener_refresh" }

func (j *screenerRefreshJob) Run(ctx context.Context) error {
	entries, err := j.app.Screener.Run(ctx)
	if err != nil {
		return err
	}
	j.app.setWatchlist(entries)
	return nil
}

type recommenderSweepJob struct{ app *Application }

func (j *recommenderSweepJob) Name() string { return "recommender_sweep" }

func (j *recommenderSweepJob) Run(ctx context.Context) error {
	a := j.app
	watchlist := a.CurrentWatchlist()
	if len(watchlist) == 0 {
		return nil
	}

	pc, err := a.portfolioContext(ctx, a.Execution.OpenCount())
	if err != nil {
		return fmt.Errorf("recommender_sweep: portfolio context: %w", err)
	}
	if refused, reason := a.tradingRefused(pc); refused {
		a.Log.Info().Str("reason", reason).Msg("recommender_sweep: refusing new entries for the remainder of the day")
		return nil
	}

	account, err := a.Broker.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("recommender_sweep: account: %w", err)
	}

	for _, entry := range watchlist {
		if err := ctx.Err(); err != nil {
			return err
		}
		j.evaluateOne(ctx, entry, pc, account.PortfolioValue)
	}
	return nil
}

func (j *recommenderSweepJob) evaluateOne(ctx context.Context, entry domain.WatchlistEntry, pc recommender.PortfolioContext, equity float64) {
	a := j.app
	now := a.Clock.Now()

	quote, err := a.Market.Snapshot(ctx, entry.Ticker)
	if err != nil {
		a.Log.Warn().Err(err).Str("ticker", string(entry.Ticker)).Msg("recommender_sweep: snapshot unavailable, skipping ticker this sweep")
		return
	}
	bars, err := a.Market.Bars(ctx, entry.Ticker, barInterval, now.Add(-barLookback), now)
	if err != nil {
		a.Log.Warn().Err(err).Str("ticker", string(entry.Ticker)).Msg("recommender_sweep: bars unavailable, skipping ticker this sweep")
		return
	}

	sectorBars, _ := a.Market.Bars(ctx, sectorReferenceTicker(entry.Sector), barInterval, now.Add(-barLookback), now)
	marketBars, _ := a.Market.Bars(ctx, marketReferenceTicker, barInterval, now.Add(-barLookback), now)

	sentVector := j.sentimentFor(ctx, entry.Ticker, now)
	regimeClass := regime.Classify(marketBars)

	input := recommender.Input{
		Ticker:     entry.Ticker,
		Quote:      quote,
		Bars:       bars,
		SectorBars: sectorBars,
		MarketBars: marketBars,
		Sentiment:  sentVector,
		Regime:     regimeClass,
		Weights:    a.Weights.Snapshot(),
		Thresholds: a.Weights.Thresholds(),
		Portfolio:  pc,
	}

	result := a.Recommender.Evaluate(input)

	if result.Prediction != nil {
		if err := a.Journal.AppendPrediction(ctx, *result.Prediction); err != nil {
			a.Log.Error().Err(err).Msg("recommender_sweep: failed to journal prediction")
		}
	}

	if result.Skip != "" {
		if err := a.Journal.AppendDecision(ctx, result.Decision); err != nil {
			a.Log.Error().Err(err).Msg("recommender_sweep: failed to journal skipped decision")
		}
		return
	}

	rec := *result.Recommendation
	rec.Shares = sharesFor(rec.PositionFraction, equity, rec.Entry)
	if rec.Shares <= 0 {
		result.Decision.FinalAction = domain.ActionSkip
		result.Decision.Reason = "position_size_rounds_to_zero_shares"
		_ = a.Journal.AppendDecision(ctx, result.Decision)
		return
	}

	outcome := a.Confirmation.Propose(ctx, rec, result.Decision, a.confirmMode)
	if outcome.State != confirmation.StateExecuted {
		return
	}

	a.daily.incrementTrades()
	pos := positionFromFill(rec, outcome, now)
	meta := execution.PredictionMeta{
		PredictionID:        rec.PredictionID,
		DecisionID:          rec.DecisionRecordID,
		Direction:           result.Prediction.Direction,
		ExpectedMovePct:     result.Prediction.PredictedMovePct,
		ExpectedDurationHrs: result.Prediction.HorizonHours,
	}
	if err := a.Execution.Track(ctx, pos, meta); err != nil {
		a.Log.Error().Err(err).Str("ticker", string(entry.Ticker)).Msg("recommender_sweep: failed to hand filled position to execution monitor")
	}
}

func (j *recommenderSweepJob) sentimentFor(ctx context.Context, ticker domain.Ticker, now time.Time) sentiment.Vector {
	points, err := j.app.SentimentFeed.Fetch(ctx, ticker, 24*time.Hour)
	if err != nil {
		j.app.Log.Debug().Err(err).Str("ticker", string(ticker)).Msg("recommender_sweep: sentiment feed failed, treating as neutral")
		points = nil
	}
	return sentiment.Aggregate(ticker, points, now)
}

func sharesFor(fraction, equity, entry float64) int64 {
	if entry <= 0 {
		return 0
	}
	dollars := fraction * equity
	return int64(dollars / entry)
}

func positionFromFill(rec domain.Recommendation, outcome confirmation.Outcome, now time.Time) domain.Position {
	fill := rec.Entry
	if outcome.Order != nil && outcome.Order.FilledPrice > 0 {
		fill = outcome.Order.FilledPrice
	}
	return domain.Position{
		ID:               uuid.NewString(),
		Ticker:           rec.Ticker,
		EntryFill:        fill,
		Shares:           rec.Shares,
		StopLevel:        rec.StopLoss,
		InitialStop:      rec.StopLoss,
		TargetLevel:      rec.TakeProfit,
		HighestPrice:     fill,
		CreatedAt:        now,
		MaxHoldDeadline:  rec.ValidityExpiry.Add(maxHoldExtension),
		TrailingEnabled:  true,
		RecommendationID: rec.ID,
	}
}

// maxHoldExtension bounds how long a filled Position is held past the
// Recommendation's own validity window before the Execution Monitor's
// time-based exit fires (spec §4.5 ExpectedDurationHrs informs this but the
// Recommendation's ValidityExpiry only bounds entry, not the hold).
const maxHoldExtension = 48 * time.Hour

type learningCycleJob struct {
	app  *Application
	full bool
}

func (j *learningCycleJob) Name() string {
	if j.full {
		return "learning_full_cycle"
	}
	return "learning_incremental"
}

func (j *learningCycleJob) Run(ctx context.Context) error {
	result, err := j.app.Learning.RunCycle(ctx)
	if err != nil {
		return err
	}
	if result.SkippedReason != "" {
		j.app.Log.Debug().Str("reason", result.SkippedReason).Str("job", j.Name()).Msg("learning cycle skipped")
		return nil
	}
	j.app.daily.recordWinRate(result.Metrics.WinRate)
	j.app.Log.Info().
		Bool("committed", result.Committed).
		Float64("validation_score", result.ValidationScore).
		Str("job", j.Name()).
		Msg("learning cycle complete")
	return nil
}

type dailyRolloverJob struct{ app *Application }

func (j *dailyRolloverJob) Name() string { return "daily_rollover" }

func (j *dailyRolloverJob) Run(ctx context.Context) error {
	a := j.app

	account, err := a.Broker.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("daily_rollover: account: %w", err)
	}

	outcomes, err := a.Journal.QueryOutcomes(ctx, 200)
	if err != nil {
		return fmt.Errorf("daily_rollover: outcomes: %w", err)
	}
	summary := summarizeDay(outcomes, a.Clock.Now(), a.Weights.Snapshot())

	tradeCount, startEquity, _ := a.daily.snapshot()
	if startEquity > 0 {
		summary.RealizedPnL = account.PortfolioValue - startEquity
	}
	summary.TradeCount = tradeCount

	positions, err := a.Broker.ListPositions(ctx)
	if err == nil {
		summary.OpenPositions = len(positions)
	}

	if _, err := a.Notifier.Send(ctx, notifier.FormatDigest(summary), ""); err != nil {
		a.Log.Warn().Err(err).Msg("daily_rollover: failed to send digest")
	}

	a.daily.reset(account.PortfolioValue)
	return nil
}

// summarizeDay reduces today's closed Outcomes to a DailySummary and names
// the currently highest-weighted learned feature as the digest's top factor
// (spec §4.11 "persist day summary, emit digest via Notifier").
func summarizeDay(outcomes []domain.Outcome, now time.Time, w domain.LearnedWeights) notifier.DailySummary {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var wins, total int
	for _, o := range outcomes {
		if o.ClosedAt.Before(midnight) {
			continue
		}
		total++
		if o.Success {
			wins++
		}
	}

	var winRate float64
	if total > 0 {
		winRate = float64(wins) / float64(total)
	}

	return notifier.DailySummary{
		TradeCount: total,
		WinRate:    winRate,
		TopFactor:  topFeature(w),
	}
}

func topFeature(w domain.LearnedWeights) string {
	best, bestValue := "", 0.0
	for name, multiplier := range w.FeatureMultipliers {
		if multiplier > bestValue {
			best, bestValue = name, multiplier
		}
	}
	return best
}

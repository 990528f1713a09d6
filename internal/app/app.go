// Package app wires every port, component, and the Scheduler into one
// explicit, passed-by-reference object built once at startup (spec §9
// Design Notes), the way the teacher's internal/server.Server bundles every
// database handle and module it serves instead of reaching for package
// globals.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/broker"
	"github.com/nyxtrade/momentum-trader/internal/clock"
	"github.com/nyxtrade/momentum-trader/internal/confirmation"
	"github.com/nyxtrade/momentum-trader/internal/config"
	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/nyxtrade/momentum-trader/internal/execution"
	"github.com/nyxtrade/momentum-trader/internal/journal"
	"github.com/nyxtrade/momentum-trader/internal/learning"
	"github.com/nyxtrade/momentum-trader/internal/marketdata"
	"github.com/nyxtrade/momentum-trader/internal/notifier"
	"github.com/nyxtrade/momentum-trader/internal/ports"
	"github.com/nyxtrade/momentum-trader/internal/recommender"
	"github.com/nyxtrade/momentum-trader/internal/scheduler"
	"github.com/nyxtrade/momentum-trader/internal/screener"
	"github.com/nyxtrade/momentum-trader/internal/sentimentfeed"
	"github.com/nyxtrade/momentum-trader/internal/weights"
	"github.com/rs/zerolog"
)

// dailyState holds the counters the daily-rollover task resets (spec §5
// "Daily counters ... are guarded by a single mutex and reset only by the
// daily-rollover task").
type dailyState struct {
	mu          sync.Mutex
	tradeCount  int
	startEquity float64
	lastWinRate float64
}

func (d *dailyState) snapshot() (tradeCount int, startEquity, winRate float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tradeCount, d.startEquity, d.lastWinRate
}

func (d *dailyState) incrementTrades() {
	d.mu.Lock()
	d.tradeCount++
	d.mu.Unlock()
}

func (d *dailyState) reset(startEquity float64) {
	d.mu.Lock()
	d.tradeCount = 0
	d.startEquity = startEquity
	d.mu.Unlock()
}

func (d *dailyState) recordWinRate(wr float64) {
	d.mu.Lock()
	d.lastWinRate = wr
	d.mu.Unlock()
}

// Application is the single process-wide object every task receives by
// reference; nothing here is a package-level global (spec §9).
type Application struct {
	Cfg *config.Config
	Log zerolog.Logger

	Clock         *clock.Clock
	Market        ports.MarketDataPort
	Broker        ports.BrokerPort
	Notifier      *notifier.Notifier
	SentimentFeed ports.SentimentSourcePort
	Journal       *journal.Store
	Weights       *weights.Holder

	Screener     *screener.Screener
	Recommender  *recommender.Recommender
	Confirmation *confirmation.Broker
	Execution    *execution.Monitor
	Learning     *learning.Engine

	Scheduler *scheduler.Scheduler

	confirmMode confirmation.Mode

	watchlistMu sync.RWMutex
	watchlist   []domain.WatchlistEntry

	daily dailyState

	db *journal.DB
}

// New constructs every port adapter and domain component, wires them into
// one Application, and registers the Scheduler's jobs. It does not start
// any background loop; call Run for that.
func New(cfg *config.Config, log zerolog.Logger) (*Application, error) {
	clk, err := clock.New(cfg.MarketTimezone)
	if err != nil {
		return nil, fmt.Errorf("app: build clock: %w", err)
	}

	db, err := journal.Open(journal.Config{Path: cfg.DataDir + "/journal.db"})
	if err != nil {
		return nil, fmt.Errorf("app: open journal: %w", err)
	}
	store := journal.NewStore(db)

	marketClient := marketdata.New(marketdata.Config{
		BaseURL:          cfg.MarketDataBaseURL,
		APIKey:           cfg.MarketDataAPIKey,
		StreamURL:        cfg.MarketDataWSURL,
		RedisURL:         cfg.RedisURL,
		QuoteCacheTTL:    time.Duration(cfg.QuoteCacheTTLMs) * time.Millisecond,
		StreamStaleAfter: 10 * time.Second,
	}, log)

	// Live brokerage wiring is out of scope (Non-goals); paper trading is
	// the only supported mode regardless of cfg.PaperTrading's value until
	// a live adapter exists.
	var brokerPort ports.BrokerPort = broker.New(broker.DefaultConfig(), marketClient, log)

	notif := notifier.New(notifier.Config{
		WebhookURL: cfg.NotifierWebhookURL,
		Timeout:    5 * time.Second,
	}, log)

	sentimentClient := sentimentfeed.New(sentimentfeed.Config{
		BaseURL: cfg.SentimentFeedBaseURL,
		APIKey:  cfg.SentimentFeedAPIKey,
	}, log)

	holder := weights.NewHolder(domain.AdaptiveThresholds{
		MinConfidenceScore:    cfg.MinConfidenceScore,
		RSIOversold:           cfg.RSIOversold,
		RSIOverbought:         cfg.RSIOverbought,
		VolumeSpikeMultiplier: cfg.VolumeSpikeMultiplier,
		MinExpectedMove:       cfg.MinExpectedMove,
	})

	screenerCfg := screener.DefaultConfig()
	screenerCfg.PriceMin = cfg.TickerPriceMin
	screenerCfg.PriceMax = cfg.TickerPriceMax
	screenerCfg.MinSessionVolume = cfg.MinSessionVolume
	screenerSvc := screener.New(screenerCfg, marketClient, store, log)

	recommenderCfg := recommender.DefaultConfig()
	recommenderCfg.RRThreshold = cfg.RRThreshold
	recommenderCfg.BasePositionFraction = cfg.PositionSizePercent
	recommenderCfg.MaxPositionFraction = cfg.MaxPositionSizePercent
	recommenderSvc := recommender.New(recommenderCfg)

	confirmCfg := confirmation.DefaultConfig()
	confirmCfg.ConfirmationTimeout = cfg.ConfirmationTimeout()
	confirmationSvc := confirmation.New(confirmCfg, notif, brokerPort, store, log)

	executionSvc := execution.New(execution.DefaultConfig(), marketClient, brokerPort, store, notif, log)

	learningSvc := learning.New(learning.DefaultConfig(), store, holder)

	mode := confirmation.ModeNotifyOnly
	switch {
	case cfg.AutoTradingEnabled:
		mode = confirmation.ModeAuto
	case cfg.InteractiveTradingEnabled:
		mode = confirmation.ModeInteractive
	}

	sched := scheduler.New(scheduler.DefaultConfig(), clk, store, log)

	a := &Application{
		Cfg:           cfg,
		Log:           log,
		Clock:         clk,
		Market:        marketClient,
		Broker:        brokerPort,
		Notifier:      notif,
		SentimentFeed: sentimentClient,
		Journal:       store,
		Weights:       holder,
		Screener:      screenerSvc,
		Recommender:   recommenderSvc,
		Confirmation:  confirmationSvc,
		Execution:     executionSvc,
		Learning:      learningSvc,
		Scheduler:     sched,
		confirmMode:   mode,
		db:            db,
	}

	if account, err := brokerPort.GetAccount(context.Background()); err == nil {
		a.daily.reset(account.PortfolioValue)
	}

	a.registerJobs()
	return a, nil
}

func (a *Application) registerJobs() {
	a.Scheduler.Register(scheduler.KindExecutionTick, &executionTickJob{app: a})
	a.Scheduler.Register(scheduler.KindRecommenderSweep, &recommenderSweepJob{app: a})
	a.Scheduler.Register(scheduler.KindScreenerRefresh, &screenerRefreshJob{app: a})
	a.Scheduler.Register(scheduler.KindLearningIncremental, &learningCycleJob{app: a, full: false})
	a.Scheduler.Register(scheduler.KindLearningFull, &learningCycleJob{app: a, full: true})
	a.Scheduler.Register(scheduler.KindDailyRollover, &dailyRolloverJob{app: a})
}

// Run starts every background loop (market data stream, confirmation reply
// dispatcher, execution monitor ticker, and the Scheduler's dispatch loop)
// and blocks until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if starter, ok := a.Market.(interface{ Start(context.Context) }); ok {
		starter.Start(ctx)
	}

	go a.Confirmation.Start(ctx)
	go a.Execution.Run(ctx)

	return a.Scheduler.Run(ctx)
}

// Shutdown releases the Journal Store's underlying connection cleanly (spec
// §5: "a system-wide shutdown signal causes ... the Journal Store [to]
// close ... cleanly").
func (a *Application) Shutdown() error {
	return a.db.Close()
}

// CurrentWatchlist returns the most recently screened watchlist.
func (a *Application) CurrentWatchlist() []domain.WatchlistEntry {
	a.watchlistMu.RLock()
	defer a.watchlistMu.RUnlock()
	out := make([]domain.WatchlistEntry, len(a.watchlist))
	copy(out, a.watchlist)
	return out
}

func (a *Application) setWatchlist(entries []domain.WatchlistEntry) {
	a.watchlistMu.Lock()
	a.watchlist = entries
	a.watchlistMu.Unlock()
}

// portfolioContext builds the Recommender's risk-rail inputs from the
// broker's current account state and the day's counters (spec §4.5 Inputs,
// §6 max_daily_trades / max_daily_loss_percent).
func (a *Application) portfolioContext(ctx context.Context, openCount int) (recommender.PortfolioContext, error) {
	account, err := a.Broker.GetAccount(ctx)
	if err != nil {
		return recommender.PortfolioContext{}, err
	}

	tradeCount, startEquity, winRate := a.daily.snapshot()
	remaining := 1.0
	if startEquity > 0 {
		drawdown := (startEquity - account.PortfolioValue) / startEquity
		if drawdown > 0 {
			remaining = 1 - drawdown/a.Cfg.MaxDailyLossPercent
			if remaining < 0 {
				remaining = 0
			}
		}
	}
	if winRate == 0 {
		winRate = 0.5
	}

	return recommender.PortfolioContext{
		OpenPositionCount:   openCount,
		DailyTradeCount:     tradeCount,
		MaxDailyTrades:      a.Cfg.MaxDailyTrades,
		RemainingLossBudget: remaining,
		RecentWinRate:       winRate,
	}, nil
}

// tradingRefused reports whether the day's trade cap or loss budget blocks
// new entries; the Execution Monitor keeps running regardless (spec §6).
func (a *Application) tradingRefused(pc recommender.PortfolioContext) (bool, string) {
	if pc.MaxDailyTrades > 0 && pc.DailyTradeCount >= pc.MaxDailyTrades {
		return true, "max_daily_trades_reached"
	}
	if pc.RemainingLossBudget <= 0 {
		return true, "max_daily_loss_percent_reached"
	}
	return false, ""
}

// Package scheduler implements the Scheduler (spec §4.11): a single
// cooperative dispatcher driving every pipeline phase on a cron-derived tick
// source, gated by market-session classification and per-kind wall-time
// budgets, grounded on the teacher's Job-interface cron dispatcher in
// trader-go/internal/scheduler/scheduler.go.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/clock"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Kind identifies one of the Scheduler's dispatchable task families.
type Kind string

const (
	KindExecutionTick       Kind = "execution_tick"
	KindRecommenderSweep    Kind = "recommender_sweep"
	KindScreenerRefresh     Kind = "screener_refresh"
	KindLearningIncremental Kind = "learning_incremental"
	KindDailyRollover       Kind = "daily_rollover"
	KindLearningFull        Kind = "learning_full"
)

// Job is one dispatchable unit of work (grounded on the teacher's
// scheduler.Job interface: Name/Run).
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// ControlCommand is an external operator command processed at tick
// boundaries (spec §6 "external trigger surface").
type ControlCommand string

const (
	CmdPauseTrading    ControlCommand = "pause_trading"
	CmdResumeTrading   ControlCommand = "resume_trading"
	CmdForceScreen     ControlCommand = "force_screen"
	CmdRequestShutdown ControlCommand = "request_shutdown"
)

// HealthStore is the narrow journaling seam the Scheduler needs for
// overrun/failure reporting (spec §4.9's system_health family).
type HealthStore interface {
	AppendSystemHealth(ctx context.Context, fields map[string]any) error
}

// Config holds the Scheduler's cron expressions and per-kind wall-time
// budgets (spec §4.11). Expressions use the 6-field seconds-enabled form.
type Config struct {
	ExecutionTickCron       string
	RecommenderSweepCron    string
	ScreenerRefreshCron     string
	LearningIncrementalCron string
	DailyRolloverCron       string
	LearningFullCron        string

	Budgets map[Kind]time.Duration

	EventBufferSize int

	// HealthSampleInterval is how often the Scheduler journals a
	// process-health heartbeat (CPU/mem pressure, clock validity)
	// independent of any task's success or failure.
	HealthSampleInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		ExecutionTickCron:       "*/30 * * * * *",
		RecommenderSweepCron:    "0 * * * * *",
		ScreenerRefreshCron:     "0 */5 * * * *",
		LearningIncrementalCron: "0 */30 * * * *",
		DailyRolloverCron:       "0 0 16 * * 1-5",
		LearningFullCron:        "0 0 20 * * 1-5",
		Budgets: map[Kind]time.Duration{
			KindExecutionTick:       10 * time.Second,
			KindRecommenderSweep:    45 * time.Second,
			KindScreenerRefresh:     60 * time.Second,
			KindLearningIncremental: 5 * time.Minute,
			KindDailyRollover:       30 * time.Second,
			KindLearningFull:        10 * time.Minute,
		},
		EventBufferSize:      32,
		HealthSampleInterval: time.Minute,
	}
}

// marketOpenOnly are the task kinds that must only dispatch while the Clock
// classifies the session as open (spec §4.11).
var marketOpenOnly = map[Kind]bool{
	KindExecutionTick:       true,
	KindRecommenderSweep:    true,
	KindScreenerRefresh:     true,
	KindLearningIncremental: true,
}

// pausable are the task kinds suppressed while trading is paused; the
// Execution Monitor keeps running so open Positions are still managed.
var pausable = map[Kind]bool{
	KindRecommenderSweep: true,
	KindScreenerRefresh:  true,
}

type tickEvent struct {
	kind Kind
}

// Scheduler is the single-threaded dispatcher over all pipeline phases.
type Scheduler struct {
	cfg    Config
	clock  *clock.Clock
	jobs   map[Kind]Job
	health HealthStore
	log    zerolog.Logger

	cron       *cron.Cron
	events     chan tickEvent
	controlCh  chan ControlCommand
	shutdownFn context.CancelFunc

	mu     sync.Mutex
	paused bool
}

func New(cfg Config, clk *clock.Clock, health HealthStore, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		clock:     clk,
		jobs:      map[Kind]Job{},
		health:    health,
		log:       log,
		cron:      cron.New(cron.WithSeconds()),
		events:    make(chan tickEvent, cfg.EventBufferSize),
		controlCh: make(chan ControlCommand, 16),
	}
}

// Register binds a Job to the Kind the Scheduler dispatches it under.
func (s *Scheduler) Register(kind Kind, job Job) {
	s.jobs[kind] = job
}

// Submit enqueues an external control command, processed at the next tick
// boundary (spec §6).
func (s *Scheduler) Submit(cmd ControlCommand) {
	select {
	case s.controlCh <- cmd:
	default:
		s.log.Warn().Str("command", string(cmd)).Msg("scheduler: control queue full, command dropped")
	}
}

// Run starts the cron triggers and the dispatch loop; it blocks until ctx is
// cancelled or a request_shutdown control command is processed.
func (s *Scheduler) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.shutdownFn = cancel

	scheduleMap := map[Kind]string{
		KindExecutionTick:       s.cfg.ExecutionTickCron,
		KindRecommenderSweep:    s.cfg.RecommenderSweepCron,
		KindScreenerRefresh:     s.cfg.ScreenerRefreshCron,
		KindLearningIncremental: s.cfg.LearningIncrementalCron,
		KindDailyRollover:       s.cfg.DailyRolloverCron,
		KindLearningFull:        s.cfg.LearningFullCron,
	}
	for kind, expr := range scheduleMap {
		kind := kind
		if _, err := s.cron.AddFunc(expr, func() { s.enqueue(kind) }); err != nil {
			cancel()
			return err
		}
	}
	s.cron.Start()
	defer s.cron.Stop()

	healthTicker := time.NewTicker(s.cfg.HealthSampleInterval)
	defer healthTicker.Stop()

	for {
		select {
		case <-runCtx.Done():
			return nil
		case cmd := <-s.controlCh:
			s.handleControl(cmd)
		case ev := <-s.events:
			s.dispatch(runCtx, ev)
		case <-healthTicker.C:
			s.journalHealth()
		}
	}
}

// journalHealth records one process-health heartbeat (spec §4.9's
// system_health family), independent of any task outcome.
func (s *Scheduler) journalHealth() {
	if s.health == nil {
		return
	}
	health, err := s.clock.ProcessHealth()
	if err != nil {
		s.log.Warn().Err(err).Msg("scheduler: process health sample failed")
		return
	}
	fields := map[string]any{
		"kind":        "heartbeat",
		"cpu_percent": health.CPUPercent,
		"mem_percent": health.MemPercent,
		"clock_valid": s.clock.Valid(),
	}
	if err := s.health.AppendSystemHealth(context.Background(), fields); err != nil {
		s.log.Error().Err(err).Msg("scheduler: failed to journal health heartbeat")
	}
}

func (s *Scheduler) enqueue(kind Kind) {
	select {
	case s.events <- tickEvent{kind: kind}:
	default:
		s.log.Warn().Str("kind", string(kind)).Msg("scheduler: dispatcher busy, tick dropped")
	}
}

func (s *Scheduler) handleControl(cmd ControlCommand) {
	switch cmd {
	case CmdPauseTrading:
		s.mu.Lock()
		s.paused = true
		s.mu.Unlock()
	case CmdResumeTrading:
		s.mu.Lock()
		s.paused = false
		s.mu.Unlock()
	case CmdForceScreen:
		s.enqueue(KindScreenerRefresh)
	case CmdRequestShutdown:
		if s.shutdownFn != nil {
			s.shutdownFn()
		}
	default:
		s.log.Warn().Str("command", string(cmd)).Msg("scheduler: unknown control command")
	}
}

func (s *Scheduler) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Scheduler) dispatch(ctx context.Context, ev tickEvent) {
	job, ok := s.jobs[ev.kind]
	if !ok {
		return
	}

	if marketOpenOnly[ev.kind] && !s.clock.IsOpen() {
		return
	}
	if marketOpenOnly[ev.kind] && !s.clock.Valid() {
		s.log.Warn().Str("kind", string(ev.kind)).Msg("scheduler: clock/process health invalid, refusing to trade this tick")
		return
	}
	if pausable[ev.kind] && s.isPaused() {
		return
	}

	budget, ok := s.cfg.Budgets[ev.kind]
	if !ok {
		budget = 30 * time.Second
	}
	taskCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := time.Now()
	err := job.Run(taskCtx)
	elapsed := time.Since(start)

	if err == nil {
		return
	}

	overran := errors.Is(err, context.DeadlineExceeded)
	s.log.Error().Err(err).Str("kind", string(ev.kind)).Dur("elapsed", elapsed).Bool("overran_budget", overran).Msg("scheduler: task failed")

	if s.health != nil {
		fields := map[string]any{
			"kind":           string(ev.kind),
			"error":          err.Error(),
			"elapsed_ms":     elapsed.Milliseconds(),
			"overran_budget": overran,
		}
		if jerr := s.health.AppendSystemHealth(context.Background(), fields); jerr != nil {
			s.log.Error().Err(jerr).Msg("scheduler: failed to journal task failure")
		}
	}
}

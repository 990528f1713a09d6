package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nyxtrade/momentum-trader/internal/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	err   error
}

func (f *fakeJob) Name() string { return "fake" }

func (f *fakeJob) Run(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func (f *fakeJob) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeHealth struct {
	mu     sync.Mutex
	events []map[string]any
}

func (f *fakeHealth) AppendSystemHealth(ctx context.Context, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, fields)
	return nil
}

func (f *fakeHealth) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func openClock(t *testing.T) *clock.Clock {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	at := time.Date(2026, 7, 31, 11, 0, 0, 0, loc)
	c, err := clock.NewFrozen("America/New_York", at)
	require.NoError(t, err)
	return c
}

func closedClock(t *testing.T) *clock.Clock {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	at := time.Date(2026, 7, 31, 2, 0, 0, 0, loc)
	c, err := clock.NewFrozen("America/New_York", at)
	require.NoError(t, err)
	return c
}

func TestDispatch_MarketOpenOnlyJobSkippedWhenClosed(t *testing.T) {
	s := New(DefaultConfig(), closedClock(t), nil, zerolog.Nop())
	job := &fakeJob{}
	s.Register(KindScreenerRefresh, job)

	s.dispatch(context.Background(), tickEvent{kind: KindScreenerRefresh})
	assert.Equal(t, 0, job.callCount())
}

func TestDispatch_MarketOpenOnlyJobRunsWhenOpen(t *testing.T) {
	s := New(DefaultConfig(), openClock(t), nil, zerolog.Nop())
	job := &fakeJob{}
	s.Register(KindScreenerRefresh, job)

	s.dispatch(context.Background(), tickEvent{kind: KindScreenerRefresh})
	assert.Equal(t, 1, job.callCount())
}

func TestDispatch_DailyRolloverIgnoresMarketSession(t *testing.T) {
	s := New(DefaultConfig(), closedClock(t), nil, zerolog.Nop())
	job := &fakeJob{}
	s.Register(KindDailyRollover, job)

	s.dispatch(context.Background(), tickEvent{kind: KindDailyRollover})
	assert.Equal(t, 1, job.callCount())
}

func TestDispatch_PausedSkipsPausableKindsNotExecution(t *testing.T) {
	s := New(DefaultConfig(), openClock(t), nil, zerolog.Nop())
	sweep := &fakeJob{}
	execTick := &fakeJob{}
	s.Register(KindRecommenderSweep, sweep)
	s.Register(KindExecutionTick, execTick)
	s.handleControl(CmdPauseTrading)

	s.dispatch(context.Background(), tickEvent{kind: KindRecommenderSweep})
	s.dispatch(context.Background(), tickEvent{kind: KindExecutionTick})

	assert.Equal(t, 0, sweep.callCount())
	assert.Equal(t, 1, execTick.callCount())
}

func TestDispatch_ResumeTradingClearsPause(t *testing.T) {
	s := New(DefaultConfig(), openClock(t), nil, zerolog.Nop())
	sweep := &fakeJob{}
	s.Register(KindRecommenderSweep, sweep)

	s.handleControl(CmdPauseTrading)
	s.handleControl(CmdResumeTrading)
	s.dispatch(context.Background(), tickEvent{kind: KindRecommenderSweep})

	assert.Equal(t, 1, sweep.callCount())
}

func TestDispatch_BudgetOverrunCancelsAndJournals(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Budgets[KindLearningIncremental] = 10 * time.Millisecond
	health := &fakeHealth{}
	s := New(cfg, openClock(t), health, zerolog.Nop())
	job := &fakeJob{delay: 100 * time.Millisecond}
	s.Register(KindLearningIncremental, job)

	s.dispatch(context.Background(), tickEvent{kind: KindLearningIncremental})

	assert.Equal(t, 1, health.count())
}

func TestDispatch_JobFailureJournalsWithoutOverrunFlag(t *testing.T) {
	health := &fakeHealth{}
	s := New(DefaultConfig(), openClock(t), health, zerolog.Nop())
	job := &fakeJob{err: errors.New("boom")}
	s.Register(KindExecutionTick, job)

	s.dispatch(context.Background(), tickEvent{kind: KindExecutionTick})

	require.Equal(t, 1, health.count())
	assert.Equal(t, false, health.events[0]["overran_budget"])
}

func TestDispatch_UnregisteredKindIsNoop(t *testing.T) {
	s := New(DefaultConfig(), openClock(t), nil, zerolog.Nop())
	assert.NotPanics(t, func() {
		s.dispatch(context.Background(), tickEvent{kind: KindLearningFull})
	})
}

func TestJournalHealth_RecordsCPUMemAndClockValidity(t *testing.T) {
	health := &fakeHealth{}
	s := New(DefaultConfig(), openClock(t), health, zerolog.Nop())

	s.journalHealth()

	require.Equal(t, 1, health.count())
	fields := health.events[0]
	assert.Equal(t, "heartbeat", fields["kind"])
	assert.Contains(t, fields, "cpu_percent")
	assert.Contains(t, fields, "mem_percent")
	assert.Equal(t, true, fields["clock_valid"])
}

func TestJournalHealth_NoopWithoutHealthStore(t *testing.T) {
	s := New(DefaultConfig(), openClock(t), nil, zerolog.Nop())
	assert.NotPanics(t, func() { s.journalHealth() })
}

func TestSubmit_ForceScreenEnqueuesScreenerRefresh(t *testing.T) {
	s := New(DefaultConfig(), openClock(t), nil, zerolog.Nop())
	s.handleControl(CmdForceScreen)

	select {
	case ev := <-s.events:
		assert.Equal(t, KindScreenerRefresh, ev.kind)
	default:
		t.Fatal("expected a screener_refresh event to be enqueued")
	}
}

func TestSubmit_RequestShutdownCancelsRunLoop(t *testing.T) {
	s := New(DefaultConfig(), openClock(t), nil, zerolog.Nop())
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	// Give the Run loop a moment to install its cron entries and start
	// selecting before submitting the shutdown command.
	time.Sleep(20 * time.Millisecond)
	s.Submit(CmdRequestShutdown)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not shut down after request_shutdown")
	}
}

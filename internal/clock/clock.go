// Package clock is the platform's single source of truth for wall time and
// market-session classification (spec §4.1). No other package may read the
// host clock directly; every other component takes time via this interface.
package clock

import (
	"time"
)

// Session is the classification of an instant relative to the market calendar.
type Session string

const (
	SessionWeekend    Session = "weekend"
	SessionClosed     Session = "closed"
	SessionPreMarket  Session = "pre_market"
	SessionOpen       Session = "open"
	SessionAfterHours Session = "after_hours"
)

// Hours describes one trading day's boundaries in the market timezone.
type Hours struct {
	PreMarketOpen time.Duration // offset from midnight
	MarketOpen    time.Duration
	MarketClose   time.Duration
	AfterHoursEnd time.Duration
}

// DefaultHours mirrors the US equities regular session.
var DefaultHours = Hours{
	PreMarketOpen: 4 * time.Hour,
	MarketOpen:    9*time.Hour + 30*time.Minute,
	MarketClose:   16 * time.Hour,
	AfterHoursEnd: 20 * time.Hour,
}

// invalidClockFloor is the sanity floor from spec §4.1: "if the host clock
// is clearly invalid (before year 2000), components must refuse to trade."
var invalidClockFloor = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock exposes now() in the market timezone and the derived session.
type Clock struct {
	loc   *time.Location
	hours Hours
	// nowFn is overridable in tests; production code never sets it.
	nowFn func() time.Time
}

// New builds a Clock for the given IANA location name, e.g. "America/New_York".
func New(location string) (*Clock, error) {
	loc, err := time.LoadLocation(location)
	if err != nil {
		return nil, err
	}
	return &Clock{loc: loc, hours: DefaultHours, nowFn: time.Now}, nil
}

// WithHours overrides the default session boundaries (e.g. for non-US markets).
func (c *Clock) WithHours(h Hours) *Clock {
	c.hours = h
	return c
}

// NewFrozen builds a Clock pinned to a fixed instant, for tests and for
// components that need a deterministic snapshot of "now" for one phase.
func NewFrozen(location string, at time.Time) (*Clock, error) {
	loc, err := time.LoadLocation(location)
	if err != nil {
		return nil, err
	}
	return &Clock{loc: loc, hours: DefaultHours, nowFn: func() time.Time { return at }}, nil
}

// Now returns the current instant in the market timezone.
func (c *Clock) Now() time.Time {
	return c.nowFn().In(c.loc)
}

// Valid reports whether the host clock and host process are sane enough to
// trade on: wall time past the sanity floor, and memory pressure under
// maxMemPercent. A failed health sample does not itself trip this guard;
// only a confirmed over-pressure reading does.
func (c *Clock) Valid() bool {
	if !c.Now().After(invalidClockFloor) {
		return false
	}
	health, err := c.ProcessHealth()
	if err != nil {
		return true
	}
	return health.MemPercent < maxMemPercent
}

// Classify returns the session classification for the clock's current time,
// c.Now(); it takes no time argument.
func (c *Clock) Classify() Session {
	now := c.Now()
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return SessionWeekend
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	elapsed := now.Sub(midnight)

	switch {
	case elapsed < c.hours.PreMarketOpen:
		return SessionClosed
	case elapsed < c.hours.MarketOpen:
		return SessionPreMarket
	case elapsed < c.hours.MarketClose:
		return SessionOpen
	case elapsed < c.hours.AfterHoursEnd:
		return SessionAfterHours
	default:
		return SessionClosed
	}
}

// IsOpen is a convenience predicate used by the Scheduler to gate
// "during market open" tasks.
func (c *Clock) IsOpen() bool {
	return c.Classify() == SessionOpen
}

// TimeUntilNextOpen returns the duration until the next market open,
// zero if the market is currently open.
func (c *Clock) TimeUntilNextOpen() time.Duration {
	now := c.Now()
	if c.IsOpen() {
		return 0
	}
	open := c.sessionBoundary(now, c.hours.MarketOpen)
	for !open.After(now) || c.isWeekend(open) {
		open = open.AddDate(0, 0, 1)
		open = c.sessionBoundary(open, c.hours.MarketOpen)
	}
	return open.Sub(now)
}

// TimeUntilNextClose returns the duration until the next market close,
// zero if the market is currently closed.
func (c *Clock) TimeUntilNextClose() time.Duration {
	now := c.Now()
	if !c.IsOpen() {
		return 0
	}
	close := c.sessionBoundary(now, c.hours.MarketClose)
	return close.Sub(now)
}

func (c *Clock) sessionBoundary(t time.Time, offset time.Duration) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return midnight.Add(offset)
}

func (c *Clock) isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

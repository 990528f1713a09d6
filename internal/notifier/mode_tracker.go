package notifier

import "sync"

// ModeTracker remembers the last-known active/inactive state of each named
// degradation class, so the Notifier reports a transition exactly once
// instead of once per tick (spec §12, carried over from the original's
// telegram_notifier.py mode-change habit).
type ModeTracker struct {
	mu    sync.Mutex
	state map[string]bool
}

func NewModeTracker() *ModeTracker {
	return &ModeTracker{state: make(map[string]bool)}
}

// Transitioned records the given class's new state and reports whether it
// differs from what was last recorded (a class seen for the first time
// only reports a transition if it starts active — a silent "off" baseline
// needs no announcement).
func (m *ModeTracker) Transitioned(class string, active bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, seen := m.state[class]
	m.state[class] = active

	if !seen {
		return active
	}
	return prev != active
}

package tactical

import "time"

// debounceState is the two-state gate debouncer phase.
type debounceState int

const (
	stateIdle debounceState = iota
	stateCooldown
)

// debouncer guards gate re-triggering: one small state machine instead of
// a separate in-flight latch and timestamp, so the latch and the timer
// cannot disagree. Not safe for concurrent use; the Controller serializes
// access.
type debouncer struct {
	state debounceState
	until time.Time
}

// TryTrigger attempts a transition at now. In Cooldown before the window
// elapses the attempt is dropped; otherwise the debouncer enters Cooldown
// until now+window and the attempt is allowed.
//
// Postcondition: Returns true at most once per window.
func (d *debouncer) TryTrigger(now time.Time, window time.Duration) bool {
	if d.state == stateCooldown && now.Before(d.until) {
		return false
	}
	d.state = stateCooldown
	d.until = now.Add(window)
	return true
}

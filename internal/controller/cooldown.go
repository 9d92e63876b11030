package controller

import "time"

// CooldownTable records the last successful action per point.
//
// Entries are created on the first action for a point, updated on every
// later one, and never deleted during a run. The table is owned by one
// control loop and is not safe for concurrent use.
type CooldownTable struct {
	last map[string]time.Time
}

// NewCooldownTable returns an empty table.
func NewCooldownTable() *CooldownTable {
	return &CooldownTable{last: make(map[string]time.Time)}
}

// Remaining returns how long point is still suppressed at now. Zero means
// an action may be submitted.
func (t *CooldownTable) Remaining(point string, now time.Time, cooldown time.Duration) time.Duration {
	last, ok := t.last[point]
	if !ok {
		return 0
	}
	if elapsed := now.Sub(last); elapsed < cooldown {
		return cooldown - elapsed
	}
	return 0
}

// Mark records a successful action on point at now.
func (t *CooldownTable) Mark(point string, now time.Time) {
	t.last[point] = now
}

// Last returns the time of the last recorded action on point.
func (t *CooldownTable) Last(point string) (time.Time, bool) {
	ts, ok := t.last[point]
	return ts, ok
}

// Len returns the number of points with an entry.
func (t *CooldownTable) Len() int { return len(t.last) }

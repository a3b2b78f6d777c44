package venue

import (
	"sync"
	"time"
)

// RateTracker counts orders per team within the current wall-clock-aligned
// one-second window (floor(now, 1s)), implementing constraints.RateSource.
// A sliding/token-bucket limiter doesn't match this: the constraint is
// "orders submitted in the current calendar second," not a smoothed rate.
type RateTracker struct {
	mu      sync.Mutex
	windows map[string]windowCount
}

type windowCount struct {
	second int64
	count  int
}

func NewRateTracker() *RateTracker {
	return &RateTracker{windows: make(map[string]windowCount)}
}

// Record registers one order submission and returns the count within the
// current window including this one.
func (r *RateTracker) Record(teamID string, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	sec := now.Unix()
	wc := r.windows[teamID]
	if wc.second != sec {
		wc = windowCount{second: sec, count: 0}
	}
	wc.count++
	r.windows[teamID] = wc
	return wc.count
}

// OrdersThisWindow implements constraints.RateSource: it reports the count
// so far in the current window without incrementing it. The matching
// constraint check runs before Record, so it sees the count prior to this
// order.
func (r *RateTracker) OrdersThisWindow(teamID string, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	wc := r.windows[teamID]
	if wc.second != now.Unix() {
		return 0
	}
	return wc.count
}

// Package phase implements the trading-day calendar (C3's time-driven half)
// and the transition handler that drives per-phase venue actions (C4).
package phase

import (
	"sort"
	"time"
)

// State is one of the four phases a trading day moves through.
type State int

const (
	Closed State = iota
	PreOpen
	OpeningAuction
	Continuous
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case PreOpen:
		return "pre_open"
	case OpeningAuction:
		return "opening_auction"
	case Continuous:
		return "continuous"
	default:
		return "unknown"
	}
}

// ExecutionStyle is the matching behavior a phase enables.
type ExecutionStyle int

const (
	ExecutionNone ExecutionStyle = iota
	ExecutionBatch
	ExecutionContinuous
)

// Capability is the fixed set of permissions each phase grants. The mapping
// from State to Capability never changes at runtime; only the schedule that
// decides which State is active does.
type Capability struct {
	OrderEntryAllowed   bool
	CancellationAllowed bool
	MatchingEnabled     bool
	ExecutionStyle      ExecutionStyle
}

var capabilities = map[State]Capability{
	Closed: {
		OrderEntryAllowed:   false,
		CancellationAllowed: false,
		MatchingEnabled:     false,
		ExecutionStyle:      ExecutionNone,
	},
	PreOpen: {
		OrderEntryAllowed:   true,
		CancellationAllowed: true,
		MatchingEnabled:     false,
		ExecutionStyle:      ExecutionNone,
	},
	OpeningAuction: {
		OrderEntryAllowed:   false,
		CancellationAllowed: false,
		MatchingEnabled:     true,
		ExecutionStyle:      ExecutionBatch,
	},
	Continuous: {
		OrderEntryAllowed:   true,
		CancellationAllowed: true,
		MatchingEnabled:     true,
		ExecutionStyle:      ExecutionContinuous,
	},
}

// CapabilitiesFor returns the capability vector for a phase.
func CapabilitiesFor(s State) Capability {
	return capabilities[s]
}

// Interval is one entry of the trading-day schedule: from Start (inclusive)
// to End (exclusive), wall-clock time-of-day, the venue is in Phase.
type Interval struct {
	Start time.Duration // offset since midnight, local time
	End   time.Duration
	Phase State
}

// Resolve is a pure function: given the current time and a schedule, it
// returns which phase is active. On Saturdays and Sundays, whatever the
// schedule says, and outside every interval on other days, the venue is
// Closed.
func Resolve(now time.Time, schedule []Interval) State {
	weekday := now.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return Closed
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	offset := now.Sub(midnight)

	for _, iv := range schedule {
		if offset >= iv.Start && offset < iv.End {
			return iv.Phase
		}
	}
	return Closed
}

// DefaultSchedule is a conventional single trading session: pre-open from
// 08:00, a thirty-second opening auction at 09:29:30, continuous trading
// from 09:30 to 16:00.
func DefaultSchedule() []Interval {
	h := time.Hour
	m := time.Minute
	s := time.Second
	return []Interval{
		{Start: 8 * h, End: 9*h + 29*m + 30*s, Phase: PreOpen},
		{Start: 9*h + 29*m + 30*s, End: 9*h + 30*m, Phase: OpeningAuction},
		{Start: 9*h + 30*m, End: 16 * h, Phase: Continuous},
	}
}

// SortSchedule orders intervals by start time; Resolve does not require a
// sorted schedule but callers building one from config should normalize it.
func SortSchedule(schedule []Interval) {
	sort.Slice(schedule, func(i, j int) bool { return schedule[i].Start < schedule[j].Start })
}

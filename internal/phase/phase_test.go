package phase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hour, minute, second int) time.Time {
	// 2026-01-05 is a Monday.
	return time.Date(2026, 1, 5, hour, minute, second, 0, time.UTC)
}

func TestResolve_DefaultScheduleTransitions(t *testing.T) {
	schedule := DefaultSchedule()

	cases := []struct {
		at   time.Time
		want State
	}{
		{at(7, 59, 0), Closed},
		{at(8, 0, 0), PreOpen},
		{at(9, 29, 0), PreOpen},
		{at(9, 29, 30), OpeningAuction},
		{at(9, 29, 59), OpeningAuction},
		{at(9, 30, 0), Continuous},
		{at(15, 59, 0), Continuous},
		{at(16, 0, 0), Closed},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Resolve(c.at, schedule), "at %s", c.at)
	}
}

func TestResolve_WeekendIsAlwaysClosed(t *testing.T) {
	schedule := DefaultSchedule()
	saturday := time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, Closed, Resolve(saturday, schedule))
}

func TestCapabilitiesFor(t *testing.T) {
	assert.Equal(t, ExecutionNone, CapabilitiesFor(Closed).ExecutionStyle)
	assert.False(t, CapabilitiesFor(Closed).OrderEntryAllowed)

	assert.Equal(t, ExecutionBatch, CapabilitiesFor(OpeningAuction).ExecutionStyle)
	assert.True(t, CapabilitiesFor(OpeningAuction).MatchingEnabled)
	assert.False(t, CapabilitiesFor(OpeningAuction).OrderEntryAllowed, "no new orders may enter once the auction is clearing")
	assert.False(t, CapabilitiesFor(OpeningAuction).CancellationAllowed, "queued orders can't be pulled once the auction is clearing")

	assert.Equal(t, ExecutionContinuous, CapabilitiesFor(Continuous).ExecutionStyle)
	assert.True(t, CapabilitiesFor(PreOpen).OrderEntryAllowed)
	assert.True(t, CapabilitiesFor(PreOpen).CancellationAllowed)
	assert.False(t, CapabilitiesFor(PreOpen).MatchingEnabled)
	assert.Equal(t, ExecutionNone, CapabilitiesFor(PreOpen).ExecutionStyle)
}

func TestSortSchedule(t *testing.T) {
	schedule := []Interval{
		{Start: 9*time.Hour + 30*time.Minute, End: 16 * time.Hour, Phase: Continuous},
		{Start: 9 * time.Hour, End: 9*time.Hour + 28*time.Minute, Phase: PreOpen},
	}
	SortSchedule(schedule)
	assert.Equal(t, PreOpen, schedule[0].Phase)
	assert.Equal(t, Continuous, schedule[1].Phase)
}

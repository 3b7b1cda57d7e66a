package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// dayOf truncates to day granularity in UTC. Trip dates are days; any
// time-of-day component that sneaks in through parsing is ignored.
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// TRIP ORDERING - One total order for everything downstream
// =============================================================================
//
// Every calculation in this package walks trips oldest to newest. The total
// order is (date, odometer, seq): date at day granularity, ending odometer,
// then the persisted insertion sequence to break same-day same-odometer ties.
// Because seq is persisted, two same-day fill-ups keep their order across
// edits of unrelated trips.

// chronoLess reports whether a sorts strictly before b.
func chronoLess(a, b TripRecord) bool {
	ad, bd := dayOf(a.Date), dayOf(b.Date)
	if !ad.Equal(bd) {
		return ad.Before(bd)
	}
	if !a.Odometer.Equal(b.Odometer) {
		return a.Odometer.LessThan(b.Odometer)
	}
	return a.Seq < b.Seq
}

// SortChronological returns a new slice sorted oldest to newest.
// The input slice is not modified.
func SortChronological(trips []TripRecord) []TripRecord {
	sorted := make([]TripRecord, len(trips))
	copy(sorted, trips)
	sort.SliceStable(sorted, func(i, j int) bool {
		return chronoLess(sorted[i], sorted[j])
	})
	return sorted
}

// TripNumbers assigns 1-based sequence numbers in chronological order.
// These are the row numbers a printed logbook shows.
func TripNumbers(sorted []TripRecord) map[TripID]int {
	numbers := make(map[TripID]int, len(sorted))
	for i, t := range sorted {
		numbers[t.ID] = i + 1
	}
	return numbers
}

// OdometerStarts derives each trip's starting odometer: the previous trip's
// ending odometer, or the year-start odometer for the first trip.
func OdometerStarts(sorted []TripRecord, yearStart decimal.Decimal) map[TripID]decimal.Decimal {
	starts := make(map[TripID]decimal.Decimal, len(sorted))
	prev := yearStart
	for _, t := range sorted {
		starts[t.ID] = prev
		prev = t.Odometer
	}
	return starts
}

// RenumberOdometers recomputes ending odometers as a running sum of
// distances from startOdometer. Used after a manual odometer override or a
// reorder, so the correction cascades through every later trip. The input
// must already be in chronological order; the returned slice is a copy.
func RenumberOdometers(sorted []TripRecord, startOdometer decimal.Decimal) []TripRecord {
	out := make([]TripRecord, len(sorted))
	copy(out, sorted)
	running := startOdometer
	for i := range out {
		running = running.Add(out[i].DistanceKm)
		out[i].Odometer = running
	}
	return out
}

// DateWarnings flags trips whose date runs backwards relative to the
// insertion sequence. A trip inserted with an earlier date than the one
// before it usually means a data-entry slip the user should look at.
func DateWarnings(trips []TripRecord) map[TripID]bool {
	bySeq := make([]TripRecord, len(trips))
	copy(bySeq, trips)
	sort.SliceStable(bySeq, func(i, j int) bool { return bySeq[i].Seq < bySeq[j].Seq })

	warnings := make(map[TripID]bool, len(bySeq))
	for i, t := range bySeq {
		warnings[t.ID] = i > 0 && dayOf(t.Date).Before(dayOf(bySeq[i-1].Date))
	}
	return warnings
}

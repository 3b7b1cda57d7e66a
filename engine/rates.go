package engine

import "github.com/shopspring/decimal"

// =============================================================================
// RATE ASSIGNMENT - Retroactive, per period
// =============================================================================
//
// A consumption rate is only knowable once a period closes, so the closing
// fill-up retroactively determines the rate of every trip inside the window.
// Trips still in the open window show the vehicle's baseline rate and are
// flagged estimated; the flag clears the moment a closing fill-up arrives.

// trackRates is the per-trip outcome of segmenting one energy track.
type trackRates struct {
	rates     map[TripID]decimal.Decimal
	estimated map[TripID]bool
	closers   map[TripID]bool // trips whose full event closed a period
	closed    []ConsumptionPeriod
	open      *ConsumptionPeriod
}

// assignRates segments the events and assigns each trip its period rate.
// A non-positive baseline leaves open-period trips at a zero rate, still
// flagged estimated; it never divides or panics.
func assignRates(events []trackEvent, baseline decimal.Decimal) trackRates {
	closed, open := segmentPeriods(events)

	tr := trackRates{
		rates:     make(map[TripID]decimal.Decimal, len(events)),
		estimated: make(map[TripID]bool, len(events)),
		closers:   make(map[TripID]bool),
		closed:    closed,
		open:      open,
	}

	for _, p := range closed {
		for _, id := range p.TripIDs {
			tr.rates[id] = p.Rate
			tr.estimated[id] = false
		}
		tr.closers[p.TripIDs[len(p.TripIDs)-1]] = true
	}

	if open != nil {
		est := decimal.Zero
		if baseline.IsPositive() {
			est = baseline
		}
		for _, id := range open.TripIDs {
			tr.rates[id] = est
			tr.estimated[id] = true
		}
	}
	return tr
}

// closedTotals sums distance and quantity over the closed periods only.
// Open-window fuel is excluded because its rate is not yet measured.
func closedTotals(closed []ConsumptionPeriod) (km, added decimal.Decimal) {
	for _, p := range closed {
		km = km.Add(p.Km)
		added = added.Add(p.Added)
	}
	return km, added
}

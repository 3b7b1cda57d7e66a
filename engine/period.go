/*
period.go - Fill-up period segmentation

PURPOSE:
  Splits a chronological trip list into consumption periods. A period runs
  from just after one full fill (or full charge) to the next one, and only a
  closed period has a measurable consumption rate: everything added over the
  window divided by everything driven in it.

INVARIANTS:
  - A full event closes a period only when liters/kWh were actually added
    AND at least one km accumulated. A zero-km full fill does not close;
    its quantity carries into the next period.
  - Partial adds accumulate and never close anything.
  - The trailing window is returned separately as the open period; it has
    no measured rate.
  - Zero trips yield zero periods.

SEE ALSO:
  - rates.go: assigns period rates back to individual trips
  - margin.go: evaluates closed periods against the legal limit
*/
package engine

import "github.com/shopspring/decimal"

// ConsumptionPeriod is one fill-up window on a single energy track.
type ConsumptionPeriod struct {
	TripIDs []TripID
	Km      decimal.Decimal
	Added   decimal.Decimal // liters or kWh delivered inside the window
	Rate    decimal.Decimal // per 100 km, meaningful only when Closed
	Closed  bool
}

// trackEvent is one trip projected onto a single energy track. The dual
// splitter feeds the fuel track with km_on_fuel instead of raw distance,
// which is the only place the two tracks differ structurally.
type trackEvent struct {
	id    TripID
	km    decimal.Decimal
	added decimal.Decimal
	full  bool
}

// fuelEvents projects trips onto the fuel track. kmOverride substitutes
// per-trip distances (dual-energy km_on_fuel); nil means raw distance.
func fuelEvents(sorted []TripRecord, kmOverride map[TripID]decimal.Decimal) []trackEvent {
	events := make([]trackEvent, len(sorted))
	for i, t := range sorted {
		km := t.DistanceKm
		if kmOverride != nil {
			km = kmOverride[t.ID]
		}
		events[i] = trackEvent{
			id:    t.ID,
			km:    km,
			added: t.fuelAdded(),
			full:  t.FullTank && t.IsFillUp(),
		}
	}
	return events
}

// energyEvents projects trips onto the battery track.
func energyEvents(sorted []TripRecord, kmOverride map[TripID]decimal.Decimal) []trackEvent {
	events := make([]trackEvent, len(sorted))
	for i, t := range sorted {
		km := t.DistanceKm
		if kmOverride != nil {
			km = kmOverride[t.ID]
		}
		events[i] = trackEvent{
			id:    t.ID,
			km:    km,
			added: t.energyAdded(),
			full:  t.FullCharge && t.IsCharge(),
		}
	}
	return events
}

// segmentPeriods walks events oldest to newest and cuts closed periods at
// qualifying full events. The trailing open window, if any trips remain in
// it, is returned separately with Closed=false and a zero rate.
func segmentPeriods(events []trackEvent) (closed []ConsumptionPeriod, open *ConsumptionPeriod) {
	var cur ConsumptionPeriod
	for _, ev := range events {
		cur.TripIDs = append(cur.TripIDs, ev.id)
		cur.Km = cur.Km.Add(ev.km)
		cur.Added = cur.Added.Add(ev.added)

		if ev.full && ev.added.IsPositive() && cur.Km.IsPositive() {
			cur.Rate = ratePer100(cur.Added, cur.Km)
			cur.Closed = true
			closed = append(closed, cur)
			cur = ConsumptionPeriod{}
		}
	}
	if len(cur.TripIDs) > 0 {
		open = &cur
	}
	return closed, open
}

package engine

import "github.com/shopspring/decimal"

// =============================================================================
// MISSING RECEIPTS - Is every recorded cost documented?
// =============================================================================
//
// A trip that records a fuel or energy cost should have a receipt behind
// it. A receipt covers a trip when it is explicitly linked to it, or when
// it matches exactly on day, quantity and total cost. The match is exact
// on purpose: a near-miss receipt is exactly the situation the accountant
// needs to see.

// missingReceipts flags each cost-recording trip with no covering receipt.
// Trips without a recorded cost are present in the map as false.
func missingReceipts(trips []TripRecord, receipts []Receipt) map[TripID]bool {
	out := make(map[TripID]bool, len(trips))
	for _, t := range trips {
		if !t.RecordsCost() {
			out[t.ID] = false
			continue
		}
		out[t.ID] = !receiptCovers(t, receipts)
	}
	return out
}

func receiptCovers(t TripRecord, receipts []Receipt) bool {
	qty, cost := recordedCost(t)
	for _, r := range receipts {
		if r.TripID != nil && *r.TripID == t.ID {
			return true
		}
		if r.Date == nil || !dayOf(*r.Date).Equal(dayOf(t.Date)) {
			continue
		}
		if r.TotalCost == nil || cost == nil || !r.TotalCost.Equal(*cost) {
			continue
		}
		// Liters must agree when both sides state them. Energy receipts
		// usually omit the quantity, so one-sided absence still matches.
		if r.Liters != nil && qty != nil && !r.Liters.Equal(*qty) {
			continue
		}
		return true
	}
	return false
}

// recordedCost returns the quantity and cost the trip recorded, fuel
// taking precedence when both tracks carry one.
func recordedCost(t TripRecord) (qty, cost *decimal.Decimal) {
	if t.FuelLiters != nil && t.FuelCost != nil {
		return t.FuelLiters, t.FuelCost
	}
	if t.EnergyKWh != nil && t.EnergyCost != nil {
		return t.EnergyKWh, t.EnergyCost
	}
	return nil, nil
}

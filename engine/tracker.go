/*
tracker.go - Remaining fuel and battery balance

PURPOSE:
  Walks trips oldest to newest carrying a running balance per energy track.
  Each trip subtracts what it consumed at its assigned rate, then credits
  whatever the trip delivered, and the balance is clamped to the physical
  capacity. These balances are what year-boundary carryover chains on.

ORDERING PER TRIP:
  1. Subtract distance x assigned rate / 100
     (battery only: a manual SoC override replaces the balance instead,
     superseding the subtraction for that trip)
  2. Credit delivered quantity: a full-tank fill sets fuel to tank capacity
     by definition of a fill-up; everything else adds
  3. Clamp to [0, capacity]

SEE ALSO:
  - rates.go: where the assigned rates come from
  - carryover.go: chains ending balances across years
*/
package engine

import "github.com/shopspring/decimal"

// fuelTrack holds the per-trip fuel consumption and running balance.
type fuelTrack struct {
	consumed  map[TripID]decimal.Decimal
	remaining map[TripID]decimal.Decimal
	ending    decimal.Decimal
}

// trackFuel runs the fuel balance over the sorted trips. kmOverride
// substitutes per-trip distances (dual-energy km_on_fuel); nil means raw.
func trackFuel(sorted []TripRecord, rates map[TripID]decimal.Decimal, kmOverride map[TripID]decimal.Decimal, seed, tank decimal.Decimal) fuelTrack {
	ft := fuelTrack{
		consumed:  make(map[TripID]decimal.Decimal, len(sorted)),
		remaining: make(map[TripID]decimal.Decimal, len(sorted)),
		ending:    seed,
	}

	balance := seed
	for _, t := range sorted {
		km := t.DistanceKm
		if kmOverride != nil {
			km = kmOverride[t.ID]
		}
		burned := consumedOver(km, rates[t.ID])
		balance = balance.Sub(burned)

		if t.FullTank && t.IsFillUp() {
			balance = tank
		} else if t.IsFillUp() {
			balance = balance.Add(t.fuelAdded())
		}
		balance = clamp(balance, tank)

		ft.consumed[t.ID] = burned
		ft.remaining[t.ID] = balance
	}
	ft.ending = balance
	return ft
}

// batteryTrack holds the per-trip battery state in kWh and percent.
type batteryTrack struct {
	remainingKWh map[TripID]decimal.Decimal
	remainingPct map[TripID]decimal.Decimal
	overrides    map[TripID]bool
	ending       decimal.Decimal
}

// trackBattery runs the battery balance over the sorted trips. A manual SoC
// override pins the balance to capacity x pct / 100 for that trip and every
// later trip subtracts from the pinned value.
func trackBattery(sorted []TripRecord, rates map[TripID]decimal.Decimal, kmOverride map[TripID]decimal.Decimal, seed, capacity decimal.Decimal) batteryTrack {
	bt := batteryTrack{
		remainingKWh: make(map[TripID]decimal.Decimal, len(sorted)),
		remainingPct: make(map[TripID]decimal.Decimal, len(sorted)),
		overrides:    make(map[TripID]bool, len(sorted)),
		ending:       seed,
	}

	balance := seed
	for _, t := range sorted {
		if t.HasSoCOverride() {
			balance = capacity.Mul(clamp(*t.SoCOverride, hundred)).Div(hundred)
			bt.overrides[t.ID] = true
		} else {
			km := t.DistanceKm
			if kmOverride != nil {
				km = kmOverride[t.ID]
			}
			balance = balance.Sub(consumedOver(km, rates[t.ID]))
		}

		if t.IsCharge() {
			balance = balance.Add(t.energyAdded())
		}
		balance = clamp(balance, capacity)

		bt.remainingKWh[t.ID] = balance
		bt.remainingPct[t.ID] = pctOf(balance, capacity)
	}
	bt.ending = balance
	return bt
}

// pctOf returns part/whole x 100, or zero when whole is not positive.
func pctOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

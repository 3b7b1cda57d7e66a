/*
phev.go - Dual-energy distance split

PURPOSE:
  For dual-energy vehicles every trip is split into an electric leg and a
  fuel leg: electricity is spent first, fuel covers whatever range the
  battery could not. Fuel-side period segmentation and the legal margin
  then run on km_on_fuel only, so fuel rates are not diluted by km the
  battery actually covered.

SPLIT PER TRIP:
  electric_range = battery_before / energy_rate x 100
  km_electric    = min(distance, electric_range)
  km_fuel        = distance - km_electric

  The split always uses the battery balance as it stood BEFORE the trip;
  energy delivered by the trip is credited after the subtraction. A manual
  SoC override pins the pre-trip balance first.

  Conservation holds by construction: the two legs sum to the distance and
  the electric leg never exceeds what the battery could cover.

SEE ALSO:
  - period.go: consumes km_fuel via the kmOverride projection
  - tracker.go: single-track balance walk this mirrors
*/
package engine

import "github.com/shopspring/decimal"

// dualSplit holds the per-trip outcome of the electricity-first split.
type dualSplit struct {
	kmElectric map[TripID]decimal.Decimal
	kmFuel     map[TripID]decimal.Decimal
	batteryKWh map[TripID]decimal.Decimal
	batteryPct map[TripID]decimal.Decimal
	overrides  map[TripID]bool
	ending     decimal.Decimal
}

// splitDualEnergy walks the sorted trips splitting each distance between
// the battery and the tank. energyRate is the declared kWh/100km; when it
// is not positive the battery range is unknowable and every km falls to
// the fuel side.
func splitDualEnergy(sorted []TripRecord, energyRate, seed, capacity decimal.Decimal) dualSplit {
	ds := dualSplit{
		kmElectric: make(map[TripID]decimal.Decimal, len(sorted)),
		kmFuel:     make(map[TripID]decimal.Decimal, len(sorted)),
		batteryKWh: make(map[TripID]decimal.Decimal, len(sorted)),
		batteryPct: make(map[TripID]decimal.Decimal, len(sorted)),
		overrides:  make(map[TripID]bool, len(sorted)),
		ending:     seed,
	}

	balance := seed
	for _, t := range sorted {
		if t.HasSoCOverride() {
			balance = capacity.Mul(clamp(*t.SoCOverride, hundred)).Div(hundred)
			ds.overrides[t.ID] = true
		}

		kmE := decimal.Zero
		if energyRate.IsPositive() {
			electricRange := balance.Div(energyRate).Mul(hundred)
			kmE = decimal.Min(t.DistanceKm, electricRange)
			if kmE.IsNegative() {
				kmE = decimal.Zero
			}
		}
		kmF := t.DistanceKm.Sub(kmE)

		balance = balance.Sub(consumedOver(kmE, energyRate))
		if t.IsCharge() {
			balance = balance.Add(t.energyAdded())
		}
		balance = clamp(balance, capacity)

		ds.kmElectric[t.ID] = kmE
		ds.kmFuel[t.ID] = kmF
		ds.batteryKWh[t.ID] = balance
		ds.batteryPct[t.ID] = pctOf(balance, capacity)
	}
	ds.ending = balance
	return ds
}

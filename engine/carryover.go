/*
carryover.go - Year-boundary balance resolution

PURPOSE:
  Fuel in the tank on December 31 is still there on January 1, and the
  odometer keeps counting. Computing any year therefore needs the ending
  state of every year before it. The resolver replays all prior years with
  trips in ascending order, chaining each year's ending balances into the
  next, and returns the state the requested year starts from.

SEEDING:
  With no prior history at all the vehicle starts with a full tank, a
  battery at capacity x initial percentage, and the configured initial
  odometer.

SEE ALSO:
  - grid.go: calls the resolver before assembling a year
  - tracker.go: produces the ending balances being chained
*/
package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// TripSource supplies prior-year trips to the resolver. The store and the
// in-memory test source both satisfy it.
type TripSource interface {
	// YearsWithTrips returns the calendar years that have at least one
	// trip for the vehicle, ascending.
	YearsWithTrips(ctx context.Context, vehicleID VehicleID) ([]int, error)

	// TripsForYear returns the vehicle's trips dated in the given year,
	// in any order.
	TripsForYear(ctx context.Context, vehicleID VehicleID, year int) ([]TripRecord, error)
}

// YearStart is the resolved state a calendar year begins from.
type YearStart struct {
	Odometer decimal.Decimal
	Fuel     decimal.Decimal
	Battery  decimal.Decimal
}

// ResolveYearStart replays every prior year with trips and returns the
// state carried into the requested year. A nil source means no history.
func ResolveYearStart(ctx context.Context, cfg VehicleConfig, source TripSource, year int) (YearStart, error) {
	start := initialYearStart(cfg)
	if source == nil {
		return start, nil
	}

	years, err := source.YearsWithTrips(ctx, cfg.ID)
	if err != nil {
		return YearStart{}, fmt.Errorf("resolving years with trips: %w", err)
	}

	for _, y := range years {
		if y >= year {
			break
		}
		trips, err := source.TripsForYear(ctx, cfg.ID, y)
		if err != nil {
			return YearStart{}, fmt.Errorf("loading trips for %d: %w", y, err)
		}
		start = yearEnding(cfg, SortChronological(trips), start)
	}
	return start, nil
}

// initialYearStart seeds the state for a vehicle with no history: full
// tank, battery at the configured initial percentage, initial odometer.
func initialYearStart(cfg VehicleConfig) YearStart {
	ys := YearStart{Odometer: cfg.InitialOdometer}
	if cfg.Mode.UsesFuel() {
		ys.Fuel = cfg.TankLiters
	}
	if cfg.Mode.UsesElectric() {
		ys.Battery = cfg.initialBattery()
	}
	return ys
}

// yearEnding runs one year's trips from the given start and returns the
// ending state. This is the balance subset of the full grid computation.
func yearEnding(cfg VehicleConfig, sorted []TripRecord, start YearStart) YearStart {
	end := start
	if len(sorted) == 0 {
		return end
	}
	end.Odometer = sorted[len(sorted)-1].Odometer

	switch cfg.Mode {
	case ModeFuel:
		tr := assignRates(fuelEvents(sorted, nil), cfg.BaselineFuelRate)
		end.Fuel = trackFuel(sorted, tr.rates, nil, start.Fuel, cfg.TankLiters).ending

	case ModeElectric:
		tr := assignRates(energyEvents(sorted, nil), cfg.BaselineEnergyRate)
		end.Battery = trackBattery(sorted, tr.rates, nil, start.Battery, cfg.BatteryKWh).ending

	case ModeDual:
		ds := splitDualEnergy(sorted, cfg.BaselineEnergyRate, start.Battery, cfg.BatteryKWh)
		tr := assignRates(fuelEvents(sorted, ds.kmFuel), cfg.BaselineFuelRate)
		end.Fuel = trackFuel(sorted, tr.rates, ds.kmFuel, start.Fuel, cfg.TankLiters).ending
		end.Battery = ds.ending
	}
	return end
}

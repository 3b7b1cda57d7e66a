package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/tripbook/trip-engine/engine"
	"github.com/tripbook/trip-engine/store"
)

// =============================================================================
// YEAR-BOUNDARY CARRYOVER
// =============================================================================

func TestCarryover_NoHistory_SeedsFullTankAndInitialOdometer(t *testing.T) {
	// GIVEN: a vehicle with no prior-year trips
	// WHEN: resolving the year start
	// THEN: full tank, configured initial odometer

	cfg := fuelVehicle()
	ys, err := engine.ResolveYearStart(context.Background(), cfg, store.NewMemory(), 2025)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantEqual(t, ys.Fuel, cfg.TankLiters, "seeded fuel")
	wantEqual(t, ys.Odometer, cfg.InitialOdometer, "seeded odometer")
}

func TestCarryover_FuelAndOdometerSurviveNewYear(t *testing.T) {
	// GIVEN: 300 km driven in December 2024 with no closing fill
	// WHEN: computing the 2025 grid
	// THEN: the Jan 1 balance is December's ending balance, not a fresh
	//       full tank, and the odometer continues where 2024 ended

	cfg := fuelVehicle()
	mem := store.NewMemory()
	ctx := context.Background()

	lb := newLedger(cfg)
	dec := lb.drive(day(2024, time.December, 20), "300")
	if err := mem.CreateTrip(ctx, dec); err != nil {
		t.Fatalf("seeding 2024: %v", err)
	}

	lb25 := newLedger(cfg)
	lb25.odo = dec.Odometer
	jan := lb25.drive(day(2025, time.January, 10), "100")

	res, err := engine.ComputeGrid(ctx, engine.GridInput{
		Config: cfg,
		Trips:  []engine.TripRecord{jan},
		Year:   2025,
		Source: mem,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 2024 ending: 50 - 300 x 6/100 = 32
	wantEqual(t, res.YearStartFuel, d("32"), "carried fuel")
	wantEqual(t, res.YearStartOdometer, dec.Odometer, "carried odometer")
	// after the January trip: 32 - 6 = 26
	wantEqual(t, res.FuelRemaining[jan.ID], d("26"), "balance continuing the chain")
}

func TestCarryover_ChainsAcrossMultipleYears(t *testing.T) {
	// GIVEN: open-window driving in both 2023 and 2024
	// WHEN: resolving the 2025 year start
	// THEN: both years' consumption is chained, oldest first

	cfg := fuelVehicle()
	mem := store.NewMemory()
	ctx := context.Background()

	lb := newLedger(cfg)
	t23 := lb.drive(day(2023, time.June, 1), "200")
	t24 := lb.drive(day(2024, time.June, 1), "100")
	for _, trip := range []engine.TripRecord{t23, t24} {
		if err := mem.CreateTrip(ctx, trip); err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}

	ys, err := engine.ResolveYearStart(ctx, cfg, mem, 2025)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 50 - 12 (2023) - 6 (2024) = 32
	wantEqual(t, ys.Fuel, d("32"), "fuel chained across two years")
	wantEqual(t, ys.Odometer, t24.Odometer, "odometer from the latest trip")
}

func TestCarryover_BatteryCarriesForElectricVehicles(t *testing.T) {
	// GIVEN: an electric vehicle ending 2024 at 24 kWh
	// WHEN: resolving the 2025 year start
	// THEN: the battery carries, it does not reset to the initial percent

	cfg := electricVehicle()
	mem := store.NewMemory()
	ctx := context.Background()

	lb := newLedger(cfg)
	dec := lb.drive(day(2024, time.November, 11), "200") // 60 - 36 = 24
	if err := mem.CreateTrip(ctx, dec); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	ys, err := engine.ResolveYearStart(ctx, cfg, mem, 2025)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantEqual(t, ys.Battery, d("24"), "carried battery")
}

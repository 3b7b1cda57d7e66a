package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tripbook/trip-engine/engine"
)

// wantClose compares decimals within a small tolerance, for values that
// come out of non-terminating divisions.
func wantClose(t *testing.T, got, want decimal.Decimal, what string) {
	t.Helper()
	if got.Sub(want).Abs().GreaterThan(d("0.001")) {
		t.Errorf("%s: got %v, want %v", what, got, want)
	}
}

// =============================================================================
// FUEL TRACK
// =============================================================================

func TestGrid_ClosedPeriod_RateAssignedRetroactively(t *testing.T) {
	// GIVEN: two 300 km trips; the second ends with a 30 L full-tank fill
	// WHEN: computing the grid
	// THEN: both trips show 5.0 l/100km, measured, and the second is the fill-up

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	t1 := lb.drive(day(2025, time.March, 3), "300")
	t2 := lb.drive(day(2025, time.March, 10), "300", withFullTank("30", "45.60"))

	res := computeGrid(t, cfg, lb.rows)

	wantEqual(t, res.FuelRates[t1.ID], d("5"), "first trip rate")
	wantEqual(t, res.FuelRates[t2.ID], d("5"), "second trip rate")
	if res.EstimatedFuelRates[t1.ID] || res.EstimatedFuelRates[t2.ID] {
		t.Error("closed-period trips must not be flagged estimated")
	}
	if !res.FillUps[t2.ID] {
		t.Error("closing trip must be in the fill-up set")
	}
	if res.FillUps[t1.ID] {
		t.Error("non-fill trip must not be in the fill-up set")
	}
}

func TestGrid_OpenPeriod_ShowsBaselineFlaggedEstimated(t *testing.T) {
	// GIVEN: trips with no full-tank fill at all
	// WHEN: computing the grid
	// THEN: every trip shows the baseline rate with the estimated flag

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	t1 := lb.drive(day(2025, time.April, 1), "120")
	t2 := lb.drive(day(2025, time.April, 2), "80", withPartialFuel("10"))

	res := computeGrid(t, cfg, lb.rows)

	wantEqual(t, res.FuelRates[t1.ID], cfg.BaselineFuelRate, "open-period rate")
	if !res.EstimatedFuelRates[t1.ID] || !res.EstimatedFuelRates[t2.ID] {
		t.Error("open-period trips must be flagged estimated")
	}
	if res.HasMargin {
		t.Error("no closed period yet, margin must be undefined")
	}
}

func TestGrid_EditingClosingTrip_RecomputesWholePeriod(t *testing.T) {
	// GIVEN: a closed period at 5.0 l/100km
	// WHEN: the closing fill is edited from 30 L to 36 L and recomputed
	// THEN: every trip in the period moves to 6.0, including older ones

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	t1 := lb.drive(day(2025, time.May, 1), "300")
	t2 := lb.drive(day(2025, time.May, 8), "300", withFullTank("30", "45.00"))

	before := computeGrid(t, cfg, lb.rows)
	wantEqual(t, before.FuelRates[t1.ID], d("5"), "rate before edit")

	lb.rows[1].FuelLiters = dp("36")
	after := computeGrid(t, cfg, lb.rows)

	wantEqual(t, after.FuelRates[t1.ID], d("6"), "older trip rate after edit")
	wantEqual(t, after.FuelRates[t2.ID], d("6"), "closing trip rate after edit")
}

func TestGrid_ZeroKmFullFill_DoesNotClose_FuelCarriesForward(t *testing.T) {
	// GIVEN: a 0 km full-tank fill, then 600 km closed by a 30 L full fill
	// WHEN: computing the grid
	// THEN: the zero-km fill does not close a period; its liters are part
	//       of the single closed window

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	t0 := lb.drive(day(2025, time.June, 1), "0", withFullTank("5", "7.50"))
	t1 := lb.drive(day(2025, time.June, 2), "300")
	t2 := lb.drive(day(2025, time.June, 9), "300", withFullTank("30", "45.00"))

	res := computeGrid(t, cfg, lb.rows)

	if res.FillUps[t0.ID] {
		t.Error("zero-km full fill must not close a period")
	}
	// (5 + 30) liters over 600 km
	wantClose(t, res.FuelRates[t1.ID], d("5.8333"), "carried-fuel period rate")
	wantClose(t, res.FuelRates[t2.ID], d("5.8333"), "carried-fuel period rate")
}

func TestGrid_Idempotent(t *testing.T) {
	// GIVEN: an arbitrary ledger
	// WHEN: computing the grid twice from identical inputs
	// THEN: the derived values are identical

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	lb.drive(day(2025, time.July, 1), "250", withPartialFuel("12"))
	t2 := lb.drive(day(2025, time.July, 5), "150", withFullTank("25", "38.00"))
	lb.drive(day(2025, time.July, 9), "90")

	a := computeGrid(t, cfg, lb.rows)
	b := computeGrid(t, cfg, lb.rows)

	for _, trip := range lb.rows {
		wantEqual(t, a.FuelRates[trip.ID], b.FuelRates[trip.ID], "rate stability")
		wantEqual(t, a.FuelRemaining[trip.ID], b.FuelRemaining[trip.ID], "balance stability")
	}
	wantEqual(t, a.FuelRates[t2.ID], b.FuelRates[t2.ID], "closing rate stability")
}

func TestGrid_WrongVehicleTrip_FailsFast(t *testing.T) {
	// GIVEN: a trip list containing a trip from another vehicle
	// WHEN: computing the grid
	// THEN: ErrVehicleMismatch, no partial result

	cfg := fuelVehicle()
	other := fuelVehicle()
	lb := newLedger(other)
	lb.drive(day(2025, time.August, 1), "100")

	_, err := engine.ComputeGrid(context.Background(), engine.GridInput{
		Config: cfg,
		Trips:  lb.rows,
		Year:   2025,
	})
	if !errors.Is(err, engine.ErrVehicleMismatch) {
		t.Fatalf("expected ErrVehicleMismatch, got %v", err)
	}
}

// =============================================================================
// MARGIN
// =============================================================================

func TestGrid_MarginBoundary_ExactlyAtLimitIsCompliant(t *testing.T) {
	// GIVEN: baseline 6.0, a closed period at exactly 7.2 l/100km (1.20x)
	// WHEN: evaluating the margin
	// THEN: compliant, no warnings; worst margin reads 20%

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	t1 := lb.drive(day(2025, time.March, 1), "100", withFullTank("7.2", "11.00"))

	res := computeGrid(t, cfg, lb.rows)

	if res.OverLimit {
		t.Error("exactly 1.20x baseline must be compliant")
	}
	if res.ConsumptionWarnings[t1.ID] {
		t.Error("no warning at exactly the limit")
	}
	wantEqual(t, res.WorstMarginPct, d("20"), "worst margin")
}

func TestGrid_MarginBoundary_JustAboveLimitViolates(t *testing.T) {
	// GIVEN: baseline 6.0, a closed period at 7.21 l/100km
	// WHEN: evaluating the margin
	// THEN: over limit, every trip in the period flagged

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	t1 := lb.drive(day(2025, time.March, 1), "50")
	t2 := lb.drive(day(2025, time.March, 2), "50", withFullTank("7.21", "11.00"))

	res := computeGrid(t, cfg, lb.rows)

	if !res.OverLimit {
		t.Error("7.21 over baseline 6.0 must violate the margin")
	}
	if !res.ConsumptionWarnings[t1.ID] || !res.ConsumptionWarnings[t2.ID] {
		t.Error("all trips of the violating period must be flagged")
	}
}

// =============================================================================
// ELECTRIC TRACK
// =============================================================================

func TestGrid_Electric_BaselineDrain(t *testing.T) {
	// GIVEN: 60 kWh battery at 100%, baseline 18 kWh/100km, one 200 km trip
	// WHEN: computing the grid
	// THEN: 36 kWh used, 24 kWh (40%) remaining, rate estimated

	cfg := electricVehicle()
	lb := newLedger(cfg)
	t1 := lb.drive(day(2025, time.February, 10), "200")

	res := computeGrid(t, cfg, lb.rows)

	wantEqual(t, res.BatteryRemainingKWh[t1.ID], d("24"), "battery remaining kWh")
	wantEqual(t, res.BatteryRemainingPct[t1.ID], d("40"), "battery remaining pct")
	wantEqual(t, res.EnergyRates[t1.ID], d("18"), "estimated energy rate")
	if !res.EstimatedEnergyRates[t1.ID] {
		t.Error("open energy period must be flagged estimated")
	}
}

func TestGrid_Electric_SoCOverrideSupersedesSubtraction(t *testing.T) {
	// GIVEN: a drained battery, then a trip carrying a 80% SoC override
	// WHEN: computing the grid
	// THEN: the override pins the balance; the next trip subtracts from it

	cfg := electricVehicle()
	lb := newLedger(cfg)
	lb.drive(day(2025, time.February, 1), "150")
	t2 := lb.drive(day(2025, time.February, 3), "100", withSoC("80"))
	t3 := lb.drive(day(2025, time.February, 5), "100")

	res := computeGrid(t, cfg, lb.rows)

	// 60 x 80% = 48, subtraction superseded
	wantEqual(t, res.BatteryRemainingKWh[t2.ID], d("48"), "pinned balance")
	if !res.SoCOverrides[t2.ID] {
		t.Error("override trip must be flagged")
	}
	// next trip: 48 - 18 = 30
	wantEqual(t, res.BatteryRemainingKWh[t3.ID], d("30"), "balance after pinned trip")
}

func TestGrid_Electric_ClosedChargePeriod(t *testing.T) {
	// GIVEN: 200 km then a full charge delivering 40 kWh
	// WHEN: computing the grid
	// THEN: the period closes at 20 kWh/100km, measured

	cfg := electricVehicle()
	lb := newLedger(cfg)
	t1 := lb.drive(day(2025, time.March, 1), "150")
	t2 := lb.drive(day(2025, time.March, 4), "50", withFullCharge("40"))

	res := computeGrid(t, cfg, lb.rows)

	wantEqual(t, res.EnergyRates[t1.ID], d("20"), "measured energy rate")
	if res.EstimatedEnergyRates[t1.ID] {
		t.Error("closed energy period must not be estimated")
	}
	if !res.FullCharges[t2.ID] {
		t.Error("closing charge must be in the full-charge set")
	}
}

// =============================================================================
// DUAL ENERGY
// =============================================================================

func TestGrid_Dual_ElectricityFirstSplit(t *testing.T) {
	// GIVEN: 10 kWh battery, 15 kWh/100km: electric range 66.67 km;
	//        one 100 km trip on a full battery
	// WHEN: computing the grid
	// THEN: 66.67 km electric + 33.33 km fuel, legs sum to the distance,
	//       battery ends empty

	cfg := dualVehicle()
	lb := newLedger(cfg)
	t1 := lb.drive(day(2025, time.May, 5), "100")

	res := computeGrid(t, cfg, lb.rows)

	wantClose(t, res.KmElectric[t1.ID], d("66.6667"), "electric leg")
	wantClose(t, res.KmFuel[t1.ID], d("33.3333"), "fuel leg")
	wantEqual(t, res.KmElectric[t1.ID].Add(res.KmFuel[t1.ID]), t1.DistanceKm, "legs must sum to distance")
	wantClose(t, res.BatteryRemainingKWh[t1.ID], d("0"), "battery after")
}

func TestGrid_Dual_FuelPeriodsRunOnFuelLegOnly(t *testing.T) {
	// GIVEN: an empty battery (SoC override 0), 100 km, full fill of 7 L
	// WHEN: computing the grid
	// THEN: the whole distance is a fuel leg and the period closes at 7.0

	cfg := dualVehicle()
	lb := newLedger(cfg)
	t1 := lb.drive(day(2025, time.June, 1), "100", withSoC("0"), withFullTank("7", "10.50"))

	res := computeGrid(t, cfg, lb.rows)

	wantEqual(t, res.KmFuel[t1.ID], d("100"), "fuel leg with empty battery")
	wantEqual(t, res.FuelRates[t1.ID], d("7"), "fuel-leg period rate")
	if res.EstimatedFuelRates[t1.ID] {
		t.Error("closed fuel period must not be estimated")
	}
}

func TestGrid_Dual_ShortTripStaysFullyElectric(t *testing.T) {
	// GIVEN: a full 10 kWh battery and a 40 km trip (range 66.67 km)
	// WHEN: computing the grid
	// THEN: no fuel leg at all, battery drops by 6 kWh

	cfg := dualVehicle()
	lb := newLedger(cfg)
	t1 := lb.drive(day(2025, time.July, 1), "40")

	res := computeGrid(t, cfg, lb.rows)

	wantEqual(t, res.KmFuel[t1.ID], d("0"), "fuel leg")
	wantEqual(t, res.KmElectric[t1.ID], d("40"), "electric leg")
	wantEqual(t, res.BatteryRemainingKWh[t1.ID], d("4"), "battery after")
}

// =============================================================================
// PREVIEW
// =============================================================================

func TestPreview_NewTrip_ProjectsWithoutPersisting(t *testing.T) {
	// GIVEN: one saved trip and a hypothetical second one
	// WHEN: previewing the hypothetical trip
	// THEN: projected estimated rate and balance come back; the input
	//       trip list is untouched

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	lb.drive(day(2025, time.April, 1), "100")

	in := engine.GridInput{Config: cfg, Trips: lb.rows, Year: 2025}
	edit := engine.TripRecord{
		VehicleID:  cfg.ID,
		Date:       day(2025, time.April, 2),
		DistanceKm: d("50"),
		Odometer:   d("10150"),
	}

	pr, err := engine.Preview(context.Background(), in, edit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantEqual(t, pr.Rate, cfg.BaselineFuelRate, "projected rate")
	if !pr.Estimated {
		t.Error("projection in an open period must be estimated")
	}
	// 50 - (150 km x 6/100) = 41
	wantEqual(t, pr.FuelRemaining, d("41"), "projected fuel remaining")
	if len(lb.rows) != 1 {
		t.Fatal("preview must not modify the input trips")
	}
}

func TestPreview_EditedFill_ShowsClosedRate(t *testing.T) {
	// GIVEN: 200 km driven, an unsaved edit turning the last trip into a
	//        14 L full-tank fill
	// WHEN: previewing the edit
	// THEN: the projected rate is the measured 7.0, not the baseline

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	lb.drive(day(2025, time.April, 1), "100")
	t2 := lb.drive(day(2025, time.April, 3), "100")

	edit := t2
	edit.FuelLiters = dp("14")
	edit.FuelCost = dp("21.00")
	edit.FullTank = true

	pr, err := engine.Preview(context.Background(), engine.GridInput{
		Config: cfg, Trips: lb.rows, Year: 2025,
	}, edit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantEqual(t, pr.Rate, d("7"), "projected measured rate")
	if pr.Estimated {
		t.Error("a closing fill makes the projection measured")
	}
}

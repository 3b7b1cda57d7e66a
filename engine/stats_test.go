package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/tripbook/trip-engine/engine"
)

// =============================================================================
// AGGREGATE STATS AND MONTH-END ROWS
// =============================================================================

func TestStats_AveragesClosedPeriodsOnly(t *testing.T) {
	// GIVEN: one closed period at 5.0 and open driving after it
	// WHEN: computing stats
	// THEN: the average rate is 5.0; the open window does not dilute it

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	lb.drive(day(2025, time.March, 1), "300")
	lb.drive(day(2025, time.March, 8), "300", withFullTank("30", "45.00"))
	lb.drive(day(2025, time.March, 15), "500") // open

	st, err := engine.ComputeStats(context.Background(), engine.GridInput{
		Config: cfg, Trips: lb.rows, Year: 2025,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantEqual(t, st.AvgRate, d("5"), "average over closed periods")
	wantEqual(t, st.LastRate, d("5"), "last measured rate")
	wantEqual(t, st.TotalKm, d("1100"), "total km")
	wantEqual(t, st.TotalFuel, d("30"), "total fuel")
	wantEqual(t, st.TotalFuelCost, d("45.00"), "total fuel cost")
}

func TestStats_NoBufferWhileCompliant(t *testing.T) {
	// GIVEN: baseline 6.0 and one closed period at exactly 7.2 l/100km,
	//        sitting right on the 120% limit
	// WHEN: computing stats
	// THEN: no margin violation, so no buffer km is recommended

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	lb.drive(day(2025, time.March, 1), "300")
	lb.drive(day(2025, time.March, 8), "0", withFullTank("21.6", "32.40"))

	st, err := engine.ComputeStats(context.Background(), engine.GridInput{
		Config: cfg, Trips: lb.rows, Year: 2025,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantEqual(t, st.AvgRate, d("7.2"), "closed period rate")
	if st.OverLimit {
		t.Fatal("a period at exactly the limit must stay compliant")
	}
	wantEqual(t, st.BufferKm, d("0"), "buffer km without a violation")
}

func TestStats_BufferFromClosedPeriodsOnViolation(t *testing.T) {
	// GIVEN: a closed period at 8.496 l/100km (over the 7.2 limit) and
	//        open driving after the fill-up
	// WHEN: computing stats
	// THEN: buffer km comes from the closed-period totals alone; the open
	//       window has no measured rate and must not shrink the plan

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	lb.drive(day(2025, time.March, 1), "500")
	lb.drive(day(2025, time.March, 8), "0", withFullTank("42.48", "63.00"))
	lb.drive(day(2025, time.March, 15), "200") // open

	st, err := engine.ComputeStats(context.Background(), engine.GridInput{
		Config: cfg, Trips: lb.rows, Year: 2025,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !st.OverLimit {
		t.Fatal("expected a margin violation")
	}
	// 42.48 l at the default 18% target (7.08 l/100km) covers 600 km;
	// 500 km are already driven in closed periods.
	wantEqual(t, st.BufferKm, d("100"), "buffer km from closed totals")
}

func TestStats_FuelRemainingIsLastBalance(t *testing.T) {
	// GIVEN: driving that leaves a computable balance
	// WHEN: computing stats
	// THEN: FuelRemaining equals the last trip's running balance

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	lb.drive(day(2025, time.April, 1), "400") // 50 - 24 = 26

	st, err := engine.ComputeStats(context.Background(), engine.GridInput{
		Config: cfg, Trips: lb.rows, Year: 2025,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantEqual(t, st.FuelRemaining, d("26"), "remaining after last trip")
}

func TestGrid_MonthEndRows_OnlyForElapsedMonths(t *testing.T) {
	// GIVEN: trips in January and February, "today" being March 15
	// WHEN: computing the grid
	// THEN: exactly two month-end rows, each carrying the state after the
	//       last trip in or before that month

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	t1 := lb.drive(day(2025, time.January, 10), "100")
	t2 := lb.drive(day(2025, time.February, 10), "100")

	res, err := engine.ComputeGrid(context.Background(), engine.GridInput{
		Config: cfg,
		Trips:  lb.rows,
		Year:   2025,
		AsOf:   day(2025, time.March, 15),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.MonthEnds) != 2 {
		t.Fatalf("expected 2 month-end rows, got %d", len(res.MonthEnds))
	}
	jan, feb := res.MonthEnds[0], res.MonthEnds[1]

	wantEqual(t, jan.Odometer, t1.Odometer, "January ending odometer")
	wantEqual(t, feb.Odometer, t2.Odometer, "February ending odometer")
	wantEqual(t, jan.FuelRemaining, d("44"), "January fuel state") // 50 - 6
	wantEqual(t, feb.FuelRemaining, d("38"), "February fuel state")
	if feb.Month != time.February {
		t.Errorf("expected February, got %v", feb.Month)
	}
	// interleaves after trip 1 and trip 2 respectively
	wantEqual(t, jan.SortKey, d("1.5"), "January sort key")
	wantEqual(t, feb.SortKey, d("2.5"), "February sort key")
}

func TestGrid_MonthEndRows_SkippedWithoutReferenceDate(t *testing.T) {
	// GIVEN: no AsOf reference date
	// WHEN: computing the grid
	// THEN: no month-end rows; the computation stays clock-free

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	lb.drive(day(2025, time.January, 10), "100")

	res := computeGrid(t, cfg, lb.rows)
	if len(res.MonthEnds) != 0 {
		t.Fatalf("expected no month-end rows, got %d", len(res.MonthEnds))
	}
}

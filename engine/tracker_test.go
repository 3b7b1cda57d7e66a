package engine_test

import (
	"testing"
	"time"
)

// =============================================================================
// BALANCE CLAMPING AND FILL SEMANTICS
// =============================================================================

func TestTracker_BalanceNeverGoesNegative(t *testing.T) {
	// GIVEN: a 50 L tank and far more driving than it covers
	// WHEN: computing the running balance
	// THEN: the balance floors at zero instead of going negative

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	t1 := lb.drive(day(2025, time.March, 1), "2000")

	res := computeGrid(t, cfg, lb.rows)

	wantEqual(t, res.FuelRemaining[t1.ID], d("0"), "floored balance")
}

func TestTracker_PartialFillClampsToTankCapacity(t *testing.T) {
	// GIVEN: a nearly full tank and a partial fill larger than the headroom
	// WHEN: computing the running balance
	// THEN: the balance caps at tank capacity

	cfg := fuelVehicle() // starts at a full 50 L tank
	lb := newLedger(cfg)
	t1 := lb.drive(day(2025, time.March, 1), "100", withPartialFuel("20"))

	res := computeGrid(t, cfg, lb.rows)

	// 50 - 6 + 20 = 64, clamped to 50
	wantEqual(t, res.FuelRemaining[t1.ID], d("50"), "capped balance")
}

func TestTracker_FullTankFillSetsBalanceToCapacity(t *testing.T) {
	// GIVEN: a run-down tank and a full-tank fill of fewer liters than the
	//        arithmetic gap
	// WHEN: computing the running balance
	// THEN: the balance reads tank capacity, because that is what a
	//       full-tank fill means

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	lb.drive(day(2025, time.March, 1), "400") // 50 - 24 = 26 left
	t2 := lb.drive(day(2025, time.March, 5), "100", withFullTank("10", "15.00"))

	res := computeGrid(t, cfg, lb.rows)

	wantEqual(t, res.FuelRemaining[t2.ID], cfg.TankLiters, "full after fill-up")
}

func TestTracker_FullChargeAddsAndClamps(t *testing.T) {
	// GIVEN: a battery at 24 kWh and a full charge delivering 50 kWh
	// WHEN: computing the battery balance
	// THEN: the balance clamps at capacity; a charge credits, it does not
	//       force the capacity value

	cfg := electricVehicle()
	lb := newLedger(cfg)
	lb.drive(day(2025, time.March, 1), "200") // 60 - 36 = 24
	t2 := lb.drive(day(2025, time.March, 3), "0", withFullCharge("50"))

	res := computeGrid(t, cfg, lb.rows)

	wantEqual(t, res.BatteryRemainingKWh[t2.ID], cfg.BatteryKWh, "clamped battery")
	wantEqual(t, res.BatteryRemainingPct[t2.ID], d("100"), "clamped percentage")
}

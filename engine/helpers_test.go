package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tripbook/trip-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func fuelVehicle() engine.VehicleConfig {
	return engine.VehicleConfig{
		ID:               uuid.New(),
		Name:             "Octavia",
		LicensePlate:     "BA-111XX",
		Mode:             engine.ModeFuel,
		TankLiters:       d("50"),
		BaselineFuelRate: d("6"),
		InitialOdometer:  d("10000"),
		Active:           true,
	}
}

func electricVehicle() engine.VehicleConfig {
	return engine.VehicleConfig{
		ID:                 uuid.New(),
		Name:               "Enyaq",
		LicensePlate:       "BA-222XX",
		Mode:               engine.ModeElectric,
		BatteryKWh:         d("60"),
		BaselineEnergyRate: d("18"),
		InitialBatteryPct:  d("100"),
		InitialOdometer:    d("5000"),
		Active:             true,
	}
}

func dualVehicle() engine.VehicleConfig {
	return engine.VehicleConfig{
		ID:                 uuid.New(),
		Name:               "Superb iV",
		LicensePlate:       "BA-333XX",
		Mode:               engine.ModeDual,
		TankLiters:         d("45"),
		BaselineFuelRate:   d("7"),
		BatteryKWh:         d("10"),
		BaselineEnergyRate: d("15"),
		InitialBatteryPct:  d("100"),
		InitialOdometer:    d("20000"),
		Active:             true,
	}
}

// ledgerBuilder accumulates trips with a running odometer and sequence,
// the way the service layer would create them.
type ledgerBuilder struct {
	cfg  engine.VehicleConfig
	odo  decimal.Decimal
	seq  int
	rows []engine.TripRecord
}

func newLedger(cfg engine.VehicleConfig) *ledgerBuilder {
	return &ledgerBuilder{cfg: cfg, odo: cfg.InitialOdometer}
}

type tripOpt func(*engine.TripRecord)

func withFullTank(liters, cost string) tripOpt {
	return func(t *engine.TripRecord) {
		t.FuelLiters = dp(liters)
		t.FuelCost = dp(cost)
		t.FullTank = true
	}
}

func withPartialFuel(liters string) tripOpt {
	return func(t *engine.TripRecord) { t.FuelLiters = dp(liters) }
}

func withFullCharge(kwh string) tripOpt {
	return func(t *engine.TripRecord) {
		t.EnergyKWh = dp(kwh)
		t.FullCharge = true
	}
}

func withSoC(pct string) tripOpt {
	return func(t *engine.TripRecord) { t.SoCOverride = dp(pct) }
}

func (b *ledgerBuilder) drive(date time.Time, km string, opts ...tripOpt) engine.TripRecord {
	b.seq++
	b.odo = b.odo.Add(d(km))
	t := engine.TripRecord{
		ID:          uuid.New(),
		VehicleID:   b.cfg.ID,
		Date:        date,
		Seq:         b.seq,
		Origin:      "Bratislava",
		Destination: "Trnava",
		Purpose:     "client visit",
		DistanceKm:  d(km),
		Odometer:    b.odo,
	}
	for _, opt := range opts {
		opt(&t)
	}
	b.rows = append(b.rows, t)
	return t
}

func computeGrid(t *testing.T, cfg engine.VehicleConfig, trips []engine.TripRecord) *engine.GridResult {
	t.Helper()
	res, err := engine.ComputeGrid(context.Background(), engine.GridInput{
		Config: cfg,
		Trips:  trips,
		Year:   2025,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return res
}

func wantEqual(t *testing.T, got, want decimal.Decimal, what string) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s: got %v, want %v", what, got, want)
	}
}

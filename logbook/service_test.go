package logbook

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripbook/trip-engine/engine"
	"github.com/tripbook/trip-engine/store"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := New(store.NewMemory(), zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

func createFuelVehicle(t *testing.T, svc *Service) engine.VehicleConfig {
	t.Helper()
	cfg, err := svc.CreateVehicle(context.Background(), engine.VehicleConfig{
		Name:             "Octavia",
		LicensePlate:     "BA-111XX",
		Mode:             engine.ModeFuel,
		TankLiters:       d("50"),
		BaselineFuelRate: d("6"),
		InitialOdometer:  d("10000"),
		Active:           true,
	})
	require.NoError(t, err)
	return cfg
}

func tripOn(vehicleID engine.VehicleID, date time.Time, km string) engine.TripRecord {
	return engine.TripRecord{
		VehicleID:  vehicleID,
		Date:       date,
		DistanceKm: d(km),
	}
}

// =============================================================================
// VEHICLES
// =============================================================================

func TestCreateVehicle_AssignsIDAndValidates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cfg := createFuelVehicle(t, svc)
	assert.NotEqual(t, uuid.Nil, cfg.ID)

	_, err := svc.CreateVehicle(ctx, engine.VehicleConfig{
		Name: "broken", Mode: engine.ModeFuel,
		TankLiters: d("0"), BaselineFuelRate: d("6"),
	})
	var cfgErr *engine.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "tank_liters", cfgErr.Field)
}

func TestUpdateVehicle_ModeLockedOnceTripsExist(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	cfg := createFuelVehicle(t, svc)

	// mode still changeable with no trips
	changed := cfg
	changed.Mode = engine.ModeDual
	changed.BatteryKWh = d("10")
	changed.BaselineEnergyRate = d("15")
	require.NoError(t, svc.UpdateVehicle(ctx, changed))

	// and back, then lock it with a trip
	require.NoError(t, svc.UpdateVehicle(ctx, cfg))
	_, err := svc.AddTrip(ctx, tripOn(cfg.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "100"))
	require.NoError(t, err)

	err = svc.UpdateVehicle(ctx, changed)
	assert.ErrorIs(t, err, engine.ErrModeLocked)

	// non-mode edits still go through
	renamed := cfg
	renamed.Name = "Octavia Combi"
	assert.NoError(t, svc.UpdateVehicle(ctx, renamed))
}

// =============================================================================
// TRIP MUTATIONS
// =============================================================================

func TestAddTrip_AssignsSeqAndDerivesOdometer(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	cfg := createFuelVehicle(t, svc)

	t1, err := svc.AddTrip(ctx, tripOn(cfg.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "100"))
	require.NoError(t, err)
	assert.Equal(t, 1, t1.Seq)
	assert.True(t, t1.Odometer.Equal(d("10100")), "first trip starts from the initial reading")

	t2, err := svc.AddTrip(ctx, tripOn(cfg.ID, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), "100"))
	require.NoError(t, err)
	assert.Equal(t, 2, t2.Seq)
	assert.True(t, t2.Odometer.Equal(d("10200")))
}

func TestAddTrip_BackdatedInsertCascades(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	cfg := createFuelVehicle(t, svc)

	_, err := svc.AddTrip(ctx, tripOn(cfg.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "100"))
	require.NoError(t, err)
	t2, err := svc.AddTrip(ctx, tripOn(cfg.ID, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "100"))
	require.NoError(t, err)

	// a trip slotted between the two shifts the later one
	mid, err := svc.AddTrip(ctx, tripOn(cfg.ID, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), "50"))
	require.NoError(t, err)
	assert.True(t, mid.Odometer.Equal(d("10150")))

	after, err := svc.TripsForYear(ctx, cfg.ID, 2025)
	require.NoError(t, err)
	require.Len(t, after, 3)
	assert.Equal(t, t2.ID, after[2].ID)
	assert.True(t, after[2].Odometer.Equal(d("10250")), "later trip must shift by the inserted distance")
}

func TestUpdateTrip_DistanceChangeCascades(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	cfg := createFuelVehicle(t, svc)

	t1, err := svc.AddTrip(ctx, tripOn(cfg.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "100"))
	require.NoError(t, err)
	_, err = svc.AddTrip(ctx, tripOn(cfg.ID, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), "100"))
	require.NoError(t, err)

	t1.DistanceKm = d("150")
	updated, err := svc.UpdateTrip(ctx, t1)
	require.NoError(t, err)
	assert.True(t, updated.Odometer.Equal(d("10150")))

	after, err := svc.TripsForYear(ctx, cfg.ID, 2025)
	require.NoError(t, err)
	assert.True(t, after[1].Odometer.Equal(d("10250")))
}

func TestUpdateTrip_RejectsVehicleSwap(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	cfg := createFuelVehicle(t, svc)

	t1, err := svc.AddTrip(ctx, tripOn(cfg.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "100"))
	require.NoError(t, err)

	t1.VehicleID = uuid.New()
	_, err = svc.UpdateTrip(ctx, t1)
	assert.ErrorIs(t, err, engine.ErrVehicleMismatch)
}

func TestDeleteTrip_RenumbersRemainder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	cfg := createFuelVehicle(t, svc)

	t1, err := svc.AddTrip(ctx, tripOn(cfg.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "100"))
	require.NoError(t, err)
	t2, err := svc.AddTrip(ctx, tripOn(cfg.ID, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), "100"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTrip(ctx, t1.ID))

	got, err := svc.TripsForYear(ctx, cfg.ID, 2025)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, t2.ID, got[0].ID)
	assert.True(t, got[0].Odometer.Equal(d("10100")), "gap left by the deleted trip must close")
}

func TestOverrideOdometer_AdjustsDistanceAndCascades(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	cfg := createFuelVehicle(t, svc)

	t1, err := svc.AddTrip(ctx, tripOn(cfg.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "100"))
	require.NoError(t, err)
	_, err = svc.AddTrip(ctx, tripOn(cfg.ID, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), "100"))
	require.NoError(t, err)

	got, err := svc.OverrideOdometer(ctx, t1.ID, d("10120"))
	require.NoError(t, err)
	assert.True(t, got.DistanceKm.Equal(d("120")), "correction is absorbed into the distance")
	assert.True(t, got.Odometer.Equal(d("10120")))

	after, err := svc.TripsForYear(ctx, cfg.ID, 2025)
	require.NoError(t, err)
	assert.True(t, after[1].Odometer.Equal(d("10220")), "later trips shift with the correction")
}

func TestOverrideOdometer_RejectsRegression(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	cfg := createFuelVehicle(t, svc)

	t1, err := svc.AddTrip(ctx, tripOn(cfg.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "100"))
	require.NoError(t, err)

	_, err = svc.OverrideOdometer(ctx, t1.ID, d("9999"))
	var cfgErr *engine.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "odometer", cfgErr.Field)
}

func TestAddTrip_RemembersRoute(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	cfg := createFuelVehicle(t, svc)

	trip := tripOn(cfg.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "55")
	trip.Origin = "Bratislava"
	trip.Destination = "Trnava"
	_, err := svc.AddTrip(ctx, trip)
	require.NoError(t, err)

	again := tripOn(cfg.ID, time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), "56")
	again.Origin = "Bratislava"
	again.Destination = "Trnava"
	_, err = svc.AddTrip(ctx, again)
	require.NoError(t, err)

	routes, err := svc.store.RoutesForVehicle(ctx, cfg.ID)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, 2, routes[0].UsageCount)
	assert.True(t, routes[0].DistanceKm.Equal(d("56")), "route keeps the latest distance")
}

// =============================================================================
// ORCHESTRATION
// =============================================================================

func TestGrid_EndToEnd(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	cfg := createFuelVehicle(t, svc)

	_, err := svc.AddTrip(ctx, tripOn(cfg.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "300"))
	require.NoError(t, err)
	closer := tripOn(cfg.ID, time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), "300")
	closer.FuelLiters = dp("30")
	closer.FuelCost = dp("45.00")
	closer.FullTank = true
	t2, err := svc.AddTrip(ctx, closer)
	require.NoError(t, err)

	grid, err := svc.Grid(ctx, cfg.ID, 2025)
	require.NoError(t, err)
	assert.True(t, grid.FuelRates[t2.ID].Equal(d("5")))
	assert.False(t, grid.EstimatedFuelRates[t2.ID])
}

func TestPreview_DoesNotPersist(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	cfg := createFuelVehicle(t, svc)

	_, err := svc.AddTrip(ctx, tripOn(cfg.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "100"))
	require.NoError(t, err)

	draft := tripOn(cfg.ID, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), "50")
	pv, err := svc.Preview(ctx, cfg.ID, 2025, draft)
	require.NoError(t, err)
	assert.True(t, pv.Rate.Equal(d("6")), "open window previews at the baseline")
	assert.True(t, pv.Estimated)

	stored, err := svc.TripsForYear(ctx, cfg.ID, 2025)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "preview must not write anything")
}

func TestCompensation_UsesStoredRoutes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	cfg := createFuelVehicle(t, svc)

	// 500 km on 42.48 L is 8.496 per 100, well over the band
	trip := tripOn(cfg.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "500")
	trip.FuelLiters = dp("42.48")
	trip.FuelCost = dp("63.00")
	trip.FullTank = true
	trip.Origin = "Bratislava"
	trip.Destination = "Kosice"
	_, err := svc.AddTrip(ctx, trip)
	require.NoError(t, err)

	plan, err := svc.Compensation(ctx, cfg.ID, 2025, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, plan.ExtraKm.Equal(d("100")), "default 18%% target needs 100 extra km, got %s", plan.ExtraKm)
	assert.True(t, plan.TargetRate.Equal(d("7.08")))

	_, err = svc.Compensation(ctx, cfg.ID, 2025, d("0.25"))
	assert.ErrorIs(t, err, engine.ErrTargetOutOfBand)
}

func TestStats_EndToEnd(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	cfg := createFuelVehicle(t, svc)

	_, err := svc.AddTrip(ctx, tripOn(cfg.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "300"))
	require.NoError(t, err)
	closer := tripOn(cfg.ID, time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), "300")
	closer.FuelLiters = dp("30")
	closer.FuelCost = dp("45.00")
	closer.FullTank = true
	_, err = svc.AddTrip(ctx, closer)
	require.NoError(t, err)

	st, err := svc.Stats(ctx, cfg.ID, 2025)
	require.NoError(t, err)
	assert.True(t, st.TotalKm.Equal(d("600")))
	assert.True(t, st.AvgRate.Equal(d("5")))
}

/*
Package sqlite provides the SQLite-backed implementation of store.Store.

PURPOSE:
  Persists the trip ledger: vehicles, trips, routes, receipts and
  settings. The engine never touches this package; the logbook service
  loads records here and hands them to the engine as plain values.

DECIMAL STORAGE:
  All quantities (liters, kWh, km, money) are stored as TEXT holding the
  decimal's canonical string. The numbers are legally significant, so
  they never pass through float64 on the way in or out.

KEY TABLES:
  vehicles:  Per-vehicle configuration the engine computes from
  trips:     The ledger rows; (vehicle_id, seq) is unique so the
             persisted insertion order can never collide
  routes:    Remembered origin->destination pairs for planning
  receipts:  Scanned receipt extracts for the missing-receipt check
  settings:  Small key/value bag (UI prefs, export defaults)

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  st, err := sqlite.New("./data/tripbook.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - store/store.go: Interface definition
  - store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/tripbook/trip-engine/engine"
	"github.com/tripbook/trip-engine/store"
)

const dayFormat = "2006-01-02"

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	// lastSeq tracks the highest seq handed out or stored per vehicle, so
	// two NextSeq calls can never draw the same value even before the
	// first of the two trips is inserted.
	lastSeq map[engine.VehicleID]int
}

var _ store.Store = (*Store)(nil)

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	st := &Store{db: db, lastSeq: make(map[engine.VehicleID]int)}
	if err := st.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return st, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vehicles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		license_plate TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL,
		tank_liters TEXT NOT NULL DEFAULT '0',
		baseline_fuel_rate TEXT NOT NULL DEFAULT '0',
		battery_kwh TEXT NOT NULL DEFAULT '0',
		baseline_energy_rate TEXT NOT NULL DEFAULT '0',
		initial_battery_pct TEXT NOT NULL DEFAULT '0',
		initial_odometer TEXT NOT NULL DEFAULT '0',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trips (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL REFERENCES vehicles(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		seq INTEGER NOT NULL,
		origin TEXT NOT NULL DEFAULT '',
		destination TEXT NOT NULL DEFAULT '',
		purpose TEXT NOT NULL DEFAULT '',
		distance_km TEXT NOT NULL,
		odometer TEXT NOT NULL,
		fuel_liters TEXT,
		fuel_cost TEXT,
		full_tank BOOLEAN NOT NULL DEFAULT FALSE,
		energy_kwh TEXT,
		energy_cost TEXT,
		full_charge BOOLEAN NOT NULL DEFAULT FALSE,
		soc_override TEXT,
		other_cost TEXT,
		other_cost_note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Hot path: loading one (vehicle, year) and scanning years with trips
	CREATE INDEX IF NOT EXISTS idx_trips_vehicle_date
		ON trips(vehicle_id, date);

	-- The persisted insertion order must never collide within a vehicle
	CREATE UNIQUE INDEX IF NOT EXISTS idx_trips_vehicle_seq
		ON trips(vehicle_id, seq);

	CREATE TABLE IF NOT EXISTS routes (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL REFERENCES vehicles(id) ON DELETE CASCADE,
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		distance_km TEXT NOT NULL,
		usage_count INTEGER NOT NULL DEFAULT 1,
		last_used TEXT NOT NULL,
		UNIQUE(vehicle_id, origin, destination)
	);

	CREATE TABLE IF NOT EXISTS receipts (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT,
		trip_id TEXT,
		date TEXT,
		liters TEXT,
		total_cost TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_receipts_vehicle
		ON receipts(vehicle_id) WHERE vehicle_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// VEHICLES
// =============================================================================

func (s *Store) CreateVehicle(ctx context.Context, v engine.VehicleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO vehicles
		(id, name, license_plate, mode, tank_liters, baseline_fuel_rate,
		 battery_kwh, baseline_energy_rate, initial_battery_pct, initial_odometer,
		 active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		v.ID.String(), v.Name, v.LicensePlate, string(v.Mode),
		v.TankLiters.String(), v.BaselineFuelRate.String(),
		v.BatteryKWh.String(), v.BaselineEnergyRate.String(),
		v.InitialBatteryPct.String(), v.InitialOdometer.String(),
		v.Active, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert vehicle: %w", err)
	}
	return nil
}

func (s *Store) GetVehicle(ctx context.Context, id engine.VehicleID) (engine.VehicleConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, vehicleColumns+" FROM vehicles WHERE id = ?", id.String())
	v, err := scanVehicle(row)
	if err == sql.ErrNoRows {
		return engine.VehicleConfig{}, engine.ErrVehicleNotFound
	}
	if err != nil {
		return engine.VehicleConfig{}, fmt.Errorf("failed to load vehicle: %w", err)
	}
	return v, nil
}

func (s *Store) ListVehicles(ctx context.Context) ([]engine.VehicleConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, vehicleColumns+" FROM vehicles ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	var out []engine.VehicleConfig
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) UpdateVehicle(ctx context.Context, v engine.VehicleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE vehicles SET
			name = ?, license_plate = ?, mode = ?,
			tank_liters = ?, baseline_fuel_rate = ?,
			battery_kwh = ?, baseline_energy_rate = ?,
			initial_battery_pct = ?, initial_odometer = ?,
			active = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		v.Name, v.LicensePlate, string(v.Mode),
		v.TankLiters.String(), v.BaselineFuelRate.String(),
		v.BatteryKWh.String(), v.BaselineEnergyRate.String(),
		v.InitialBatteryPct.String(), v.InitialOdometer.String(),
		v.Active, time.Now().UTC().Format(time.RFC3339),
		v.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update vehicle: %w", err)
	}
	return requireRow(res, engine.ErrVehicleNotFound)
}

func (s *Store) DeleteVehicle(ctx context.Context, id engine.VehicleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM vehicles WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}
	delete(s.lastSeq, id)
	return requireRow(res, engine.ErrVehicleNotFound)
}

const vehicleColumns = `
	SELECT id, name, license_plate, mode, tank_liters, baseline_fuel_rate,
	       battery_kwh, baseline_energy_rate, initial_battery_pct,
	       initial_odometer, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVehicle(row rowScanner) (engine.VehicleConfig, error) {
	var (
		v                    engine.VehicleConfig
		id, mode             string
		tank, fuelRate       string
		battery, energyRate  string
		batteryPct, odo      string
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &v.Name, &v.LicensePlate, &mode, &tank, &fuelRate,
		&battery, &energyRate, &batteryPct, &odo, &v.Active, &createdAt, &updatedAt)
	if err != nil {
		return v, err
	}

	v.ID, err = uuid.Parse(id)
	if err != nil {
		return v, fmt.Errorf("corrupt vehicle id %q: %w", id, err)
	}
	v.Mode = engine.EnergyMode(mode)
	if v.TankLiters, err = decimal.NewFromString(tank); err != nil {
		return v, fmt.Errorf("corrupt tank_liters %q: %w", tank, err)
	}
	if v.BaselineFuelRate, err = decimal.NewFromString(fuelRate); err != nil {
		return v, fmt.Errorf("corrupt baseline_fuel_rate %q: %w", fuelRate, err)
	}
	if v.BatteryKWh, err = decimal.NewFromString(battery); err != nil {
		return v, fmt.Errorf("corrupt battery_kwh %q: %w", battery, err)
	}
	if v.BaselineEnergyRate, err = decimal.NewFromString(energyRate); err != nil {
		return v, fmt.Errorf("corrupt baseline_energy_rate %q: %w", energyRate, err)
	}
	if v.InitialBatteryPct, err = decimal.NewFromString(batteryPct); err != nil {
		return v, fmt.Errorf("corrupt initial_battery_pct %q: %w", batteryPct, err)
	}
	if v.InitialOdometer, err = decimal.NewFromString(odo); err != nil {
		return v, fmt.Errorf("corrupt initial_odometer %q: %w", odo, err)
	}
	v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	v.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return v, nil
}

// =============================================================================
// TRIPS
// =============================================================================

const tripColumns = `
	SELECT id, vehicle_id, date, seq, origin, destination, purpose,
	       distance_km, odometer, fuel_liters, fuel_cost, full_tank,
	       energy_kwh, energy_cost, full_charge, soc_override,
	       other_cost, other_cost_note, created_at, updated_at`

func (s *Store) CreateTrip(ctx context.Context, t engine.TripRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := insertTrip(ctx, s.db, t); err != nil {
		return err
	}
	s.bumpSeq(t.VehicleID, t.Seq)
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTrip(ctx context.Context, db execer, t engine.TripRecord) error {
	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO trips
		(id, vehicle_id, date, seq, origin, destination, purpose,
		 distance_km, odometer, fuel_liters, fuel_cost, full_tank,
		 energy_kwh, energy_cost, full_charge, soc_override,
		 other_cost, other_cost_note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		t.ID.String(), t.VehicleID.String(), t.Date.Format(dayFormat), t.Seq,
		t.Origin, t.Destination, t.Purpose,
		t.DistanceKm.String(), t.Odometer.String(),
		nullDecimal(t.FuelLiters), nullDecimal(t.FuelCost), t.FullTank,
		nullDecimal(t.EnergyKWh), nullDecimal(t.EnergyCost), t.FullCharge,
		nullDecimal(t.SoCOverride),
		nullDecimal(t.OtherCost), t.OtherCostNote,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trip: %w", err)
	}
	return nil
}

func (s *Store) GetTrip(ctx context.Context, id engine.TripID) (engine.TripRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, tripColumns+" FROM trips WHERE id = ?", id.String())
	t, err := scanTrip(row)
	if err == sql.ErrNoRows {
		return engine.TripRecord{}, engine.ErrTripNotFound
	}
	if err != nil {
		return engine.TripRecord{}, fmt.Errorf("failed to load trip: %w", err)
	}
	return t, nil
}

func (s *Store) UpdateTrip(ctx context.Context, t engine.TripRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE trips SET
			date = ?, seq = ?, origin = ?, destination = ?, purpose = ?,
			distance_km = ?, odometer = ?,
			fuel_liters = ?, fuel_cost = ?, full_tank = ?,
			energy_kwh = ?, energy_cost = ?, full_charge = ?,
			soc_override = ?, other_cost = ?, other_cost_note = ?,
			updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		t.Date.Format(dayFormat), t.Seq, t.Origin, t.Destination, t.Purpose,
		t.DistanceKm.String(), t.Odometer.String(),
		nullDecimal(t.FuelLiters), nullDecimal(t.FuelCost), t.FullTank,
		nullDecimal(t.EnergyKWh), nullDecimal(t.EnergyCost), t.FullCharge,
		nullDecimal(t.SoCOverride), nullDecimal(t.OtherCost), t.OtherCostNote,
		time.Now().UTC().Format(time.RFC3339),
		t.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update trip: %w", err)
	}
	return requireRow(res, engine.ErrTripNotFound)
}

func (s *Store) DeleteTrip(ctx context.Context, id engine.TripID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM trips WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}
	return requireRow(res, engine.ErrTripNotFound)
}

func (s *Store) NextSeq(ctx context.Context, vehicleID engine.VehicleID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.lastSeq[vehicleID]
	if !ok {
		var max sql.NullInt64
		err := s.db.QueryRowContext(ctx,
			"SELECT MAX(seq) FROM trips WHERE vehicle_id = ?", vehicleID.String(),
		).Scan(&max)
		if err != nil {
			return 0, fmt.Errorf("failed to read max seq: %w", err)
		}
		last = int(max.Int64)
	}
	next := last + 1
	s.lastSeq[vehicleID] = next
	return next, nil
}

// bumpSeq records a stored seq so later NextSeq draws stay ahead of it.
// Callers must hold the write lock.
func (s *Store) bumpSeq(vehicleID engine.VehicleID, seq int) {
	if seq > s.lastSeq[vehicleID] {
		s.lastSeq[vehicleID] = seq
	}
}

// ReplaceTrips deletes the vehicle's trips in the year and writes the new
// set in one transaction, so a cascading renumbering can never be half
// applied.
func (s *Store) ReplaceTrips(ctx context.Context, vehicleID engine.VehicleID, year int, trips []engine.TripRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM trips WHERE vehicle_id = ? AND date >= ? AND date <= ?",
		vehicleID.String(), yearStart(year), yearEnd(year),
	)
	if err != nil {
		return fmt.Errorf("failed to clear year: %w", err)
	}
	for _, t := range trips {
		if err := insertTrip(ctx, tx, t); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for _, t := range trips {
		s.bumpSeq(t.VehicleID, t.Seq)
	}
	return nil
}

func (s *Store) TripsForYear(ctx context.Context, vehicleID engine.VehicleID, year int) ([]engine.TripRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := tripColumns + `
		FROM trips
		WHERE vehicle_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, CAST(odometer AS REAL) ASC, seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, vehicleID.String(), yearStart(year), yearEnd(year))
	if err != nil {
		return nil, fmt.Errorf("failed to query trips: %w", err)
	}
	defer rows.Close()

	var out []engine.TripRecord
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) YearsWithTrips(ctx context.Context, vehicleID engine.VehicleID) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT CAST(strftime('%Y', date) AS INTEGER) AS y
		 FROM trips WHERE vehicle_id = ? ORDER BY y ASC`,
		vehicleID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

func scanTrip(row rowScanner) (engine.TripRecord, error) {
	var (
		t                      engine.TripRecord
		id, vehicleID, date    string
		distance, odometer     string
		fuelLiters, fuelCost   sql.NullString
		energyKWh, energyCost  sql.NullString
		socOverride, otherCost sql.NullString
		createdAt, updatedAt   string
	)
	err := row.Scan(&id, &vehicleID, &date, &t.Seq, &t.Origin, &t.Destination,
		&t.Purpose, &distance, &odometer, &fuelLiters, &fuelCost, &t.FullTank,
		&energyKWh, &energyCost, &t.FullCharge, &socOverride,
		&otherCost, &t.OtherCostNote, &createdAt, &updatedAt)
	if err != nil {
		return t, err
	}

	if t.ID, err = uuid.Parse(id); err != nil {
		return t, fmt.Errorf("corrupt trip id %q: %w", id, err)
	}
	if t.VehicleID, err = uuid.Parse(vehicleID); err != nil {
		return t, fmt.Errorf("corrupt vehicle id %q: %w", vehicleID, err)
	}
	if t.Date, err = time.Parse(dayFormat, date); err != nil {
		return t, fmt.Errorf("corrupt trip date %q: %w", date, err)
	}
	if t.DistanceKm, err = decimal.NewFromString(distance); err != nil {
		return t, fmt.Errorf("corrupt distance_km %q: %w", distance, err)
	}
	if t.Odometer, err = decimal.NewFromString(odometer); err != nil {
		return t, fmt.Errorf("corrupt odometer %q: %w", odometer, err)
	}
	if t.FuelLiters, err = parseNullDecimal(fuelLiters); err != nil {
		return t, err
	}
	if t.FuelCost, err = parseNullDecimal(fuelCost); err != nil {
		return t, err
	}
	if t.EnergyKWh, err = parseNullDecimal(energyKWh); err != nil {
		return t, err
	}
	if t.EnergyCost, err = parseNullDecimal(energyCost); err != nil {
		return t, err
	}
	if t.SoCOverride, err = parseNullDecimal(socOverride); err != nil {
		return t, err
	}
	if t.OtherCost, err = parseNullDecimal(otherCost); err != nil {
		return t, err
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return t, nil
}

// =============================================================================
// ROUTES
// =============================================================================

// UpsertRoute refreshes a route keyed by (vehicle, origin, destination),
// bumping its usage count, or inserts it fresh.
func (s *Store) UpsertRoute(ctx context.Context, r engine.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO routes (id, vehicle_id, origin, destination, distance_km, usage_count, last_used)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(vehicle_id, origin, destination) DO UPDATE SET
			distance_km = excluded.distance_km,
			usage_count = routes.usage_count + 1,
			last_used = excluded.last_used
	`
	lastUsed := r.LastUsed
	if lastUsed.IsZero() {
		lastUsed = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, query,
		r.ID.String(), r.VehicleID.String(), r.Origin, r.Destination,
		r.DistanceKm.String(), lastUsed.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert route: %w", err)
	}
	return nil
}

func (s *Store) RoutesForVehicle(ctx context.Context, vehicleID engine.VehicleID) ([]engine.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vehicle_id, origin, destination, distance_km, usage_count, last_used
		 FROM routes WHERE vehicle_id = ?
		 ORDER BY usage_count DESC, origin ASC`,
		vehicleID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	var out []engine.Route
	for rows.Next() {
		var (
			r             engine.Route
			id, vid, dist string
			lastUsed      string
		)
		if err := rows.Scan(&id, &vid, &r.Origin, &r.Destination, &dist, &r.UsageCount, &lastUsed); err != nil {
			return nil, err
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("corrupt route id %q: %w", id, err)
		}
		if r.VehicleID, err = uuid.Parse(vid); err != nil {
			return nil, fmt.Errorf("corrupt route vehicle id %q: %w", vid, err)
		}
		if r.DistanceKm, err = decimal.NewFromString(dist); err != nil {
			return nil, fmt.Errorf("corrupt route distance %q: %w", dist, err)
		}
		r.LastUsed, _ = time.Parse(time.RFC3339, lastUsed)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DeleteRoute(ctx context.Context, id engine.RouteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM routes WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete route: %w", err)
	}
	return requireRow(res, engine.ErrRouteNotFound)
}

// =============================================================================
// RECEIPTS
// =============================================================================

func (s *Store) SaveReceipt(ctx context.Context, r engine.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO receipts (id, vehicle_id, trip_id, date, liters, total_cost)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vehicle_id = excluded.vehicle_id,
			trip_id = excluded.trip_id,
			date = excluded.date,
			liters = excluded.liters,
			total_cost = excluded.total_cost
	`
	var date *string
	if r.Date != nil {
		d := r.Date.Format(dayFormat)
		date = &d
	}
	_, err := s.db.ExecContext(ctx, query,
		r.ID.String(), nullUUID(r.VehicleID), nullUUID(r.TripID), date,
		nullDecimal(r.Liters), nullDecimal(r.TotalCost),
	)
	if err != nil {
		return fmt.Errorf("failed to save receipt: %w", err)
	}
	return nil
}

func (s *Store) ReceiptsForVehicle(ctx context.Context, vehicleID engine.VehicleID) ([]engine.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vehicle_id, trip_id, date, liters, total_cost
		 FROM receipts WHERE vehicle_id = ? OR vehicle_id IS NULL
		 ORDER BY date ASC`,
		vehicleID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var out []engine.Receipt
	for rows.Next() {
		var (
			r              engine.Receipt
			id             string
			vid, tid, date sql.NullString
			liters, cost   sql.NullString
		)
		if err := rows.Scan(&id, &vid, &tid, &date, &liters, &cost); err != nil {
			return nil, err
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("corrupt receipt id %q: %w", id, err)
		}
		if r.VehicleID, err = parseNullUUID(vid); err != nil {
			return nil, err
		}
		if r.TripID, err = parseNullUUID(tid); err != nil {
			return nil, err
		}
		if date.Valid {
			d, err := time.Parse(dayFormat, date.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt receipt date %q: %w", date.String, err)
			}
			r.Date = &d
		}
		if r.Liters, err = parseNullDecimal(liters); err != nil {
			return nil, err
		}
		if r.TotalCost, err = parseNullDecimal(cost); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) LinkReceipt(ctx context.Context, receiptID engine.ReceiptID, tripID engine.TripID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE receipts SET trip_id = ? WHERE id = ?",
		tripID.String(), receiptID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to link receipt: %w", err)
	}
	return requireRow(res, engine.ErrReceiptNotFound)
}

// =============================================================================
// SETTINGS
// =============================================================================

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load setting: %w", err)
	}
	return value, true, nil
}

func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to save setting: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func yearStart(year int) string { return fmt.Sprintf("%04d-01-01", year) }
func yearEnd(year int) string   { return fmt.Sprintf("%04d-12-31", year) }

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, fmt.Errorf("corrupt decimal %q: %w", ns.String, err)
	}
	return &d, nil
}

func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func parseNullUUID(ns sql.NullString) (*uuid.UUID, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	id, err := uuid.Parse(ns.String)
	if err != nil {
		return nil, fmt.Errorf("corrupt uuid %q: %w", ns.String, err)
	}
	return &id, nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

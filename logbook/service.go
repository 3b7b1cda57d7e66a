/*
Package logbook is the domain service over the store and the engine.

PURPOSE:
  Owns everything the pure engine refuses to own: persistence, mutation
  atomicity, and the bookkeeping rules that keep stored trips consistent.
  Handlers call this package; this package calls the engine.

INVARIANTS MAINTAINED HERE:
  - Every trip's ending odometer is the running distance sum from the
    year-start reading. Any mutation renumbers the whole (vehicle, year)
    and swaps it in one store transaction, so a correction cascades
    through every later trip and can never be half applied.
  - A vehicle's energy mode is immutable once it has trips: the mode
    decided how every historical row was computed.
  - Trip origins/destinations feed the remembered-route table on every
    save, so the compensation planner has routes to match against.

SEE ALSO:
  - engine/grid.go: the computation this package orchestrates
  - store/store.go: the persistence surface this package drives
*/
package logbook

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tripbook/trip-engine/engine"
	"github.com/tripbook/trip-engine/store"
)

// Service wires the store to the engine.
type Service struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

// New creates a Service over the given store.
func New(st store.Store, log zerolog.Logger) *Service {
	return &Service{
		store: st,
		log:   log.With().Str("component", "logbook").Logger(),
		now:   time.Now,
	}
}

// =============================================================================
// VEHICLES
// =============================================================================

// CreateVehicle validates and persists a new vehicle.
func (s *Service) CreateVehicle(ctx context.Context, cfg engine.VehicleConfig) (engine.VehicleConfig, error) {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if err := cfg.Validate(); err != nil {
		return engine.VehicleConfig{}, err
	}
	if err := s.store.CreateVehicle(ctx, cfg); err != nil {
		return engine.VehicleConfig{}, fmt.Errorf("creating vehicle: %w", err)
	}
	s.log.Info().Str("vehicle", cfg.ID.String()).Str("mode", string(cfg.Mode)).Msg("vehicle created")
	return cfg, nil
}

// UpdateVehicle validates and persists vehicle changes. The energy mode
// is locked once the vehicle has any trips.
func (s *Service) UpdateVehicle(ctx context.Context, cfg engine.VehicleConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	existing, err := s.store.GetVehicle(ctx, cfg.ID)
	if err != nil {
		return err
	}
	if existing.Mode != cfg.Mode {
		years, err := s.store.YearsWithTrips(ctx, cfg.ID)
		if err != nil {
			return fmt.Errorf("checking trip history: %w", err)
		}
		if len(years) > 0 {
			return engine.ErrModeLocked
		}
	}
	if err := s.store.UpdateVehicle(ctx, cfg); err != nil {
		return fmt.Errorf("updating vehicle: %w", err)
	}
	return nil
}

// GetVehicle returns one vehicle.
func (s *Service) GetVehicle(ctx context.Context, id engine.VehicleID) (engine.VehicleConfig, error) {
	return s.store.GetVehicle(ctx, id)
}

// ListVehicles returns all vehicles.
func (s *Service) ListVehicles(ctx context.Context) ([]engine.VehicleConfig, error) {
	return s.store.ListVehicles(ctx)
}

// DeleteVehicle removes a vehicle and, through the store, its trips and
// routes.
func (s *Service) DeleteVehicle(ctx context.Context, id engine.VehicleID) error {
	if err := s.store.DeleteVehicle(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("vehicle", id.String()).Msg("vehicle deleted")
	return nil
}

// =============================================================================
// TRIPS - every mutation renumbers and swaps the year atomically
// =============================================================================

// AddTrip persists a new trip. The caller supplies date, distance and
// events; the insertion sequence and the ending odometer are assigned
// here.
func (s *Service) AddTrip(ctx context.Context, t engine.TripRecord) (engine.TripRecord, error) {
	cfg, err := s.store.GetVehicle(ctx, t.VehicleID)
	if err != nil {
		return engine.TripRecord{}, err
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.DistanceKm.IsNegative() {
		return engine.TripRecord{}, &engine.ConfigError{Field: "distance_km", Reason: "must not be negative"}
	}
	t.Seq, err = s.store.NextSeq(ctx, t.VehicleID)
	if err != nil {
		return engine.TripRecord{}, fmt.Errorf("assigning sequence: %w", err)
	}

	if err := s.rebuildYear(ctx, cfg, t.Date.Year(), upsertInto(t)); err != nil {
		return engine.TripRecord{}, err
	}
	s.rememberRoute(ctx, t)
	s.log.Debug().Str("trip", t.ID.String()).Str("vehicle", t.VehicleID.String()).Msg("trip added")

	return s.store.GetTrip(ctx, t.ID)
}

// UpdateTrip replaces a trip's fields and renumbers the year.
func (s *Service) UpdateTrip(ctx context.Context, t engine.TripRecord) (engine.TripRecord, error) {
	existing, err := s.store.GetTrip(ctx, t.ID)
	if err != nil {
		return engine.TripRecord{}, err
	}
	if existing.VehicleID != t.VehicleID {
		return engine.TripRecord{}, &engine.VehicleMismatchError{
			TripID: t.ID, Expected: existing.VehicleID, Got: t.VehicleID,
		}
	}
	if t.DistanceKm.IsNegative() {
		return engine.TripRecord{}, &engine.ConfigError{Field: "distance_km", Reason: "must not be negative"}
	}
	t.Seq = existing.Seq
	cfg, err := s.store.GetVehicle(ctx, t.VehicleID)
	if err != nil {
		return engine.TripRecord{}, err
	}

	// A date change across years touches both ledgers.
	if existing.Date.Year() != t.Date.Year() {
		if err := s.rebuildYear(ctx, cfg, existing.Date.Year(), dropFrom(t.ID)); err != nil {
			return engine.TripRecord{}, err
		}
	}
	if err := s.rebuildYear(ctx, cfg, t.Date.Year(), upsertInto(t)); err != nil {
		return engine.TripRecord{}, err
	}
	s.rememberRoute(ctx, t)

	return s.store.GetTrip(ctx, t.ID)
}

// DeleteTrip removes a trip and renumbers the remaining year.
func (s *Service) DeleteTrip(ctx context.Context, id engine.TripID) error {
	existing, err := s.store.GetTrip(ctx, id)
	if err != nil {
		return err
	}
	cfg, err := s.store.GetVehicle(ctx, existing.VehicleID)
	if err != nil {
		return err
	}
	if err := s.rebuildYear(ctx, cfg, existing.Date.Year(), dropFrom(id)); err != nil {
		return err
	}
	s.log.Debug().Str("trip", id.String()).Msg("trip deleted")
	return nil
}

// OverrideOdometer corrects a trip's ending odometer reading. The
// correction is absorbed into the trip's distance, so the running sum
// stays consistent and every later trip shifts with it.
func (s *Service) OverrideOdometer(ctx context.Context, id engine.TripID, odometer decimal.Decimal) (engine.TripRecord, error) {
	existing, err := s.store.GetTrip(ctx, id)
	if err != nil {
		return engine.TripRecord{}, err
	}
	cfg, err := s.store.GetVehicle(ctx, existing.VehicleID)
	if err != nil {
		return engine.TripRecord{}, err
	}

	start, err := s.yearStart(ctx, cfg, existing.Date.Year())
	if err != nil {
		return engine.TripRecord{}, err
	}
	trips, err := s.store.TripsForYear(ctx, cfg.ID, existing.Date.Year())
	if err != nil {
		return engine.TripRecord{}, err
	}
	sorted := sortForRebuild(trips)

	prev := start.Odometer
	for i := range sorted {
		if sorted[i].ID == id {
			newDistance := odometer.Sub(prev)
			if newDistance.IsNegative() {
				return engine.TripRecord{}, &engine.ConfigError{
					Field: "odometer", Reason: "must not be below the previous trip's reading",
				}
			}
			sorted[i].DistanceKm = newDistance
			break
		}
		prev = sorted[i].Odometer
	}

	renumbered := engine.RenumberOdometers(sorted, start.Odometer)
	if err := s.store.ReplaceTrips(ctx, cfg.ID, existing.Date.Year(), renumbered); err != nil {
		return engine.TripRecord{}, fmt.Errorf("replacing year: %w", err)
	}
	return s.store.GetTrip(ctx, id)
}

// GetTrip returns one stored trip.
func (s *Service) GetTrip(ctx context.Context, id engine.TripID) (engine.TripRecord, error) {
	return s.store.GetTrip(ctx, id)
}

// Routes returns the vehicle's remembered routes.
func (s *Service) Routes(ctx context.Context, vehicleID engine.VehicleID) ([]engine.Route, error) {
	return s.store.RoutesForVehicle(ctx, vehicleID)
}

// TripsForYear returns the stored trips of one (vehicle, year).
func (s *Service) TripsForYear(ctx context.Context, vehicleID engine.VehicleID, year int) ([]engine.TripRecord, error) {
	return s.store.TripsForYear(ctx, vehicleID, year)
}

// YearsWithTrips returns the years the vehicle has trips in, ascending.
func (s *Service) YearsWithTrips(ctx context.Context, vehicleID engine.VehicleID) ([]int, error) {
	return s.store.YearsWithTrips(ctx, vehicleID)
}

// mutation edits the in-memory year trip set before renumbering.
type mutation func(trips []engine.TripRecord) []engine.TripRecord

func upsertInto(t engine.TripRecord) mutation {
	return func(trips []engine.TripRecord) []engine.TripRecord {
		for i := range trips {
			if trips[i].ID == t.ID {
				trips[i] = t
				return trips
			}
		}
		return append(trips, t)
	}
}

func dropFrom(id engine.TripID) mutation {
	return func(trips []engine.TripRecord) []engine.TripRecord {
		out := trips[:0]
		for _, t := range trips {
			if t.ID != id {
				out = append(out, t)
			}
		}
		return out
	}
}

// sortForRebuild orders trips by (date, seq) only. A freshly added or
// edited trip carries a stale or zero odometer, so the engine's full
// chronological order cannot be trusted until the renumbering has run.
func sortForRebuild(trips []engine.TripRecord) []engine.TripRecord {
	out := append([]engine.TripRecord(nil), trips...)
	sort.SliceStable(out, func(i, j int) bool {
		di := out[i].Date.UTC().Truncate(24 * time.Hour)
		dj := out[j].Date.UTC().Truncate(24 * time.Hour)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// rebuildYear applies the mutation to the (vehicle, year) trip set,
// renumbers every ending odometer from the year-start reading, and swaps
// the year in one store transaction.
func (s *Service) rebuildYear(ctx context.Context, cfg engine.VehicleConfig, year int, mutate mutation) error {
	trips, err := s.store.TripsForYear(ctx, cfg.ID, year)
	if err != nil {
		return fmt.Errorf("loading year %d: %w", year, err)
	}
	start, err := s.yearStart(ctx, cfg, year)
	if err != nil {
		return err
	}

	mutated := sortForRebuild(mutate(trips))
	renumbered := engine.RenumberOdometers(mutated, start.Odometer)

	if err := s.store.ReplaceTrips(ctx, cfg.ID, year, renumbered); err != nil {
		return fmt.Errorf("replacing year %d: %w", year, err)
	}
	return nil
}

func (s *Service) yearStart(ctx context.Context, cfg engine.VehicleConfig, year int) (engine.YearStart, error) {
	ys, err := engine.ResolveYearStart(ctx, cfg, s.store, year)
	if err != nil {
		return engine.YearStart{}, fmt.Errorf("resolving year start: %w", err)
	}
	return ys, nil
}

// rememberRoute refreshes the remembered-route table from a saved trip.
// Failures are logged, not surfaced: routes are a convenience cache.
func (s *Service) rememberRoute(ctx context.Context, t engine.TripRecord) {
	if t.Origin == "" || t.Destination == "" || !t.DistanceKm.IsPositive() {
		return
	}
	err := s.store.UpsertRoute(ctx, engine.Route{
		ID:          uuid.New(),
		VehicleID:   t.VehicleID,
		Origin:      t.Origin,
		Destination: t.Destination,
		DistanceKm:  t.DistanceKm,
		LastUsed:    dayOrNow(t.Date, s.now),
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("route upsert failed")
	}
}

func dayOrNow(t time.Time, now func() time.Time) time.Time {
	if t.IsZero() {
		return now()
	}
	return t
}

// =============================================================================
// COMPUTATIONS
// =============================================================================

// Grid computes the full derived view for one (vehicle, year).
func (s *Service) Grid(ctx context.Context, vehicleID engine.VehicleID, year int) (*engine.GridResult, error) {
	in, err := s.gridInput(ctx, vehicleID, year)
	if err != nil {
		return nil, err
	}
	return engine.ComputeGrid(ctx, in)
}

// Preview projects one unsaved trip edit against the stored ledger.
func (s *Service) Preview(ctx context.Context, vehicleID engine.VehicleID, year int, edit engine.TripRecord) (engine.PreviewResult, error) {
	in, err := s.gridInput(ctx, vehicleID, year)
	if err != nil {
		return engine.PreviewResult{}, err
	}
	return engine.Preview(ctx, in, edit)
}

// Stats aggregates one (vehicle, year) for the header display.
func (s *Service) Stats(ctx context.Context, vehicleID engine.VehicleID, year int) (engine.TripStats, error) {
	in, err := s.gridInput(ctx, vehicleID, year)
	if err != nil {
		return engine.TripStats{}, err
	}
	routes, err := s.store.RoutesForVehicle(ctx, vehicleID)
	if err != nil {
		return engine.TripStats{}, fmt.Errorf("loading routes: %w", err)
	}
	return engine.ComputeStats(ctx, in, routes)
}

// Compensation plans the documented extra km that would bring the year
// under the safety band, with an optional explicit target margin.
func (s *Service) Compensation(ctx context.Context, vehicleID engine.VehicleID, year int, targetMargin decimal.Decimal) (engine.CompensationPlan, error) {
	in, err := s.gridInput(ctx, vehicleID, year)
	if err != nil {
		return engine.CompensationPlan{}, err
	}
	if !in.Config.Mode.UsesFuel() {
		return engine.CompensationPlan{}, nil
	}
	grid, err := engine.ComputeGrid(ctx, in)
	if err != nil {
		return engine.CompensationPlan{}, err
	}

	var totalFuel, fuelKm decimal.Decimal
	for _, t := range grid.Trips {
		if t.FuelLiters != nil {
			totalFuel = totalFuel.Add(*t.FuelLiters)
		}
		if in.Config.Mode == engine.ModeDual {
			fuelKm = fuelKm.Add(grid.KmFuel[t.ID])
		} else {
			fuelKm = fuelKm.Add(t.DistanceKm)
		}
	}

	routes, err := s.store.RoutesForVehicle(ctx, vehicleID)
	if err != nil {
		return engine.CompensationPlan{}, fmt.Errorf("loading routes: %w", err)
	}
	return engine.PlanCompensation(totalFuel, fuelKm, in.Config.BaselineFuelRate, targetMargin, routes)
}

// Receipts returns the receipts visible to a vehicle.
func (s *Service) Receipts(ctx context.Context, vehicleID engine.VehicleID) ([]engine.Receipt, error) {
	return s.store.ReceiptsForVehicle(ctx, vehicleID)
}

// SaveReceipt stores a scanned receipt extract.
func (s *Service) SaveReceipt(ctx context.Context, r engine.Receipt) (engine.Receipt, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if err := s.store.SaveReceipt(ctx, r); err != nil {
		return engine.Receipt{}, err
	}
	return r, nil
}

// LinkReceipt attaches a receipt to a trip explicitly.
func (s *Service) LinkReceipt(ctx context.Context, receiptID engine.ReceiptID, tripID engine.TripID) error {
	if _, err := s.store.GetTrip(ctx, tripID); err != nil {
		return err
	}
	return s.store.LinkReceipt(ctx, receiptID, tripID)
}

// Setting reads one persisted application setting.
func (s *Service) Setting(ctx context.Context, key string) (string, bool, error) {
	return s.store.GetSetting(ctx, key)
}

// PutSetting stores one persisted application setting.
func (s *Service) PutSetting(ctx context.Context, key, value string) error {
	return s.store.PutSetting(ctx, key, value)
}

func (s *Service) gridInput(ctx context.Context, vehicleID engine.VehicleID, year int) (engine.GridInput, error) {
	cfg, err := s.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return engine.GridInput{}, err
	}
	trips, err := s.store.TripsForYear(ctx, vehicleID, year)
	if err != nil {
		return engine.GridInput{}, fmt.Errorf("loading trips: %w", err)
	}
	receipts, err := s.store.ReceiptsForVehicle(ctx, vehicleID)
	if err != nil {
		return engine.GridInput{}, fmt.Errorf("loading receipts: %w", err)
	}
	return engine.GridInput{
		Config:   cfg,
		Trips:    trips,
		Year:     year,
		Source:   s.store,
		Receipts: receipts,
		AsOf:     s.now(),
	}, nil
}

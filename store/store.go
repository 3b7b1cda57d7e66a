/*
store.go - Persistence interface for the trip ledger

PURPOSE:
  One interface for everything the service layer persists: vehicles,
  trips, routes, receipts and settings. Two implementations exist: the
  SQLite store (production) and the in-memory store (tests, previews).

CONTRACT NOTES:
  - Store satisfies engine.TripSource, so it plugs straight into the
    year-boundary resolver.
  - ReplaceTrips swaps a vehicle's entire trip set atomically; it is how
    the service applies cascading odometer renumbering.
  - Missing records map to the engine's not-found sentinels so callers
    branch with errors.Is regardless of the backing implementation.

SEE ALSO:
  - memory.go: in-memory implementation
  - sqlite/sqlite.go: production implementation
*/
package store

import (
	"context"

	"github.com/tripbook/trip-engine/engine"
)

// Store is the full persistence surface.
type Store interface {
	engine.TripSource

	// Vehicles
	CreateVehicle(ctx context.Context, v engine.VehicleConfig) error
	GetVehicle(ctx context.Context, id engine.VehicleID) (engine.VehicleConfig, error)
	ListVehicles(ctx context.Context) ([]engine.VehicleConfig, error)
	UpdateVehicle(ctx context.Context, v engine.VehicleConfig) error
	DeleteVehicle(ctx context.Context, id engine.VehicleID) error

	// Trips
	CreateTrip(ctx context.Context, t engine.TripRecord) error
	GetTrip(ctx context.Context, id engine.TripID) (engine.TripRecord, error)
	UpdateTrip(ctx context.Context, t engine.TripRecord) error
	DeleteTrip(ctx context.Context, id engine.TripID) error

	// NextSeq returns the next insertion sequence for the vehicle.
	NextSeq(ctx context.Context, vehicleID engine.VehicleID) (int, error)

	// ReplaceTrips atomically replaces every trip of the vehicle in the
	// given year with the provided set. Used for cascading renumbering.
	ReplaceTrips(ctx context.Context, vehicleID engine.VehicleID, year int, trips []engine.TripRecord) error

	// Routes
	UpsertRoute(ctx context.Context, r engine.Route) error
	RoutesForVehicle(ctx context.Context, vehicleID engine.VehicleID) ([]engine.Route, error)
	DeleteRoute(ctx context.Context, id engine.RouteID) error

	// Receipts
	SaveReceipt(ctx context.Context, r engine.Receipt) error
	ReceiptsForVehicle(ctx context.Context, vehicleID engine.VehicleID) ([]engine.Receipt, error)
	LinkReceipt(ctx context.Context, receiptID engine.ReceiptID, tripID engine.TripID) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, bool, error)
	PutSetting(ctx context.Context, key, value string) error

	Close() error
}

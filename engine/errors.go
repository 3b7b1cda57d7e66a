/*
errors.go - Centralized error types for the consumption engine

PURPOSE:
  All engine error types in one place for consistency and discoverability.
  Outer layers (logbook, api) wrap these with request context.

ERROR CATEGORIES:
  1. Input contract errors - Caller handed the engine inconsistent data
  2. Config errors - Vehicle parameters rejected before reaching the engine
  3. Lookup errors - Referenced records missing (shared with the store)

USAGE:
  Callers branch on sentinels:

    if errors.Is(err, engine.ErrVehicleMismatch) {
        return badRequest(...)
    }

SEE ALSO:
  - grid.go: Raises the input contract errors
  - types.go: VehicleConfig.Validate returns *ConfigError
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrVehicleMismatch is returned when a trip references a different
	// vehicle than the grid being computed. This is a caller bug, not a
	// data condition, so the computation fails fast.
	ErrVehicleMismatch = errors.New("trip belongs to a different vehicle")

	// ErrVehicleNotFound is returned when a referenced vehicle doesn't exist.
	ErrVehicleNotFound = errors.New("vehicle not found")

	// ErrTripNotFound is returned when a referenced trip doesn't exist.
	ErrTripNotFound = errors.New("trip not found")

	// ErrRouteNotFound is returned when a referenced route doesn't exist.
	ErrRouteNotFound = errors.New("route not found")

	// ErrReceiptNotFound is returned when a referenced receipt doesn't exist.
	ErrReceiptNotFound = errors.New("receipt not found")

	// ErrInvalidConfig is the category for vehicle configuration rejections.
	ErrInvalidConfig = errors.New("invalid vehicle configuration")

	// ErrModeLocked is returned when changing the energy mode of a vehicle
	// that already has trips. The mode determines how every historical row
	// was computed, so it is immutable once the ledger is non-empty.
	ErrModeLocked = errors.New("energy mode is locked once trips exist")

	// ErrTargetOutOfBand is returned when a compensation or fill-up target
	// falls outside its allowed band.
	ErrTargetOutOfBand = errors.New("target rate outside allowed band")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigError reports which vehicle field failed validation and why.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid vehicle configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// VehicleMismatchError identifies the offending trip.
type VehicleMismatchError struct {
	TripID   TripID
	Expected VehicleID
	Got      VehicleID
}

func (e *VehicleMismatchError) Error() string {
	return fmt.Sprintf("trip %s belongs to vehicle %s, expected %s",
		e.TripID, e.Got, e.Expected)
}

func (e *VehicleMismatchError) Unwrap() error { return ErrVehicleMismatch }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrVehicleNotFound) ||
		errors.Is(err, ErrTripNotFound) ||
		errors.Is(err, ErrRouteNotFound) ||
		errors.Is(err, ErrReceiptNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrModeLocked) ||
		errors.Is(err, ErrTargetOutOfBand) ||
		errors.Is(err, ErrVehicleMismatch)
}

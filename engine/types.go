/*
Package engine implements the trip-ledger consumption calculation engine.

PURPOSE:
  This package contains the pure domain types and algorithms that turn a
  vehicle's ordered trip list into per-trip derived metrics: consumption
  rate per fill-up period, remaining fuel and battery charge, legal-margin
  warnings and compensation planning. The numbers land in tax filings, so
  every computation is deterministic and exactly reproducible.

KEY CONCEPTS IN THIS FILE (types.go):
  - VehicleConfig: immutable-per-trip-history vehicle parameters
  - TripRecord: one ledger row (distance, odometer, fuel/energy events)
  - GridResult: the computed per-trip view for one (vehicle, year)
  - EnergyMode: fuel-only / electric-only / dual powertrain variants

DESIGN PRINCIPLES:
  1. Purity: the engine performs no I/O and persists nothing
  2. Precision: decimal.Decimal everywhere, no floating-point drift
  3. Determinism: identical inputs always produce identical output
  4. Closed variants: energy modes are a small enum, not a type hierarchy

SEE ALSO:
  - period.go: fill-up period segmentation
  - tracker.go: remaining fuel/battery balance
  - grid.go: the top-level grid assembler
*/
package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type VehicleID = uuid.UUID
type TripID = uuid.UUID
type RouteID = uuid.UUID
type ReceiptID = uuid.UUID

// =============================================================================
// ENERGY MODE - Closed tagged variant, evaluated once per vehicle
// =============================================================================

// EnergyMode selects which consumption tracks a vehicle activates.
// It is locked once the vehicle has any trips.
type EnergyMode string

const (
	ModeFuel     EnergyMode = "fuel"     // combustion only
	ModeElectric EnergyMode = "electric" // battery only
	ModeDual     EnergyMode = "dual"     // battery first, then fuel
)

// UsesFuel reports whether the mode has a combustion track.
func (m EnergyMode) UsesFuel() bool { return m == ModeFuel || m == ModeDual }

// UsesElectric reports whether the mode has a battery track.
func (m EnergyMode) UsesElectric() bool { return m == ModeElectric || m == ModeDual }

// Valid reports whether the mode is one of the three known variants.
func (m EnergyMode) Valid() bool {
	return m == ModeFuel || m == ModeElectric || m == ModeDual
}

// =============================================================================
// VEHICLE CONFIG
// =============================================================================

// VehicleConfig holds the per-vehicle parameters the engine computes from.
// Fuel fields are meaningful only for fuel-capable modes, battery fields
// only for electric-capable modes; Validate enforces the pairing.
type VehicleConfig struct {
	ID           VehicleID
	Name         string
	LicensePlate string
	Mode         EnergyMode

	// Fuel track (ModeFuel, ModeDual)
	TankLiters       decimal.Decimal // tank capacity
	BaselineFuelRate decimal.Decimal // l/100km from the technical passport

	// Battery track (ModeElectric, ModeDual)
	BatteryKWh         decimal.Decimal // battery capacity
	BaselineEnergyRate decimal.Decimal // kWh/100km, user-declared
	InitialBatteryPct  decimal.Decimal // starting SoC %, used only without prior history

	InitialOdometer decimal.Decimal
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks that the required fields match the declared energy mode.
// Called at save time, before any config reaches the engine.
func (c VehicleConfig) Validate() error {
	if !c.Mode.Valid() {
		return &ConfigError{Field: "mode", Reason: "unknown energy mode"}
	}
	if c.Mode.UsesFuel() {
		if !c.TankLiters.IsPositive() {
			return &ConfigError{Field: "tank_liters", Reason: "must be positive for fuel-capable vehicles"}
		}
		if !c.BaselineFuelRate.IsPositive() {
			return &ConfigError{Field: "baseline_fuel_rate", Reason: "must be positive for fuel-capable vehicles"}
		}
	}
	if c.Mode.UsesElectric() {
		if !c.BatteryKWh.IsPositive() {
			return &ConfigError{Field: "battery_kwh", Reason: "must be positive for electric-capable vehicles"}
		}
		if !c.BaselineEnergyRate.IsPositive() {
			return &ConfigError{Field: "baseline_energy_rate", Reason: "must be positive for electric-capable vehicles"}
		}
		if c.InitialBatteryPct.IsNegative() || c.InitialBatteryPct.GreaterThan(hundred) {
			return &ConfigError{Field: "initial_battery_pct", Reason: "must be between 0 and 100"}
		}
	}
	if c.InitialOdometer.IsNegative() {
		return &ConfigError{Field: "initial_odometer", Reason: "must not be negative"}
	}
	return nil
}

// initialBattery returns the battery seed when no prior-year history exists:
// capacity x initial percentage. A zero InitialBatteryPct on a fresh config
// means "unset" and defaults to a full battery.
func (c VehicleConfig) initialBattery() decimal.Decimal {
	pct := c.InitialBatteryPct
	if pct.IsZero() {
		pct = hundred
	}
	return c.BatteryKWh.Mul(pct).Div(hundred)
}

// =============================================================================
// TRIP RECORD
// =============================================================================

// TripRecord is one row of the trip ledger. Its logical position is the
// triple (Date, Odometer, Seq): Seq is a persisted per-vehicle insertion
// sequence that breaks ties between same-day, same-odometer trips.
type TripRecord struct {
	ID        TripID
	VehicleID VehicleID

	Date        time.Time // day granularity
	Seq         int       // persisted insertion order, ascending
	Origin      string
	Destination string
	Purpose     string

	DistanceKm decimal.Decimal
	Odometer   decimal.Decimal // ending odometer, derivable as prev + distance

	// Fuel event (ModeFuel, ModeDual)
	FuelLiters *decimal.Decimal
	FuelCost   *decimal.Decimal
	FullTank   bool

	// Energy event (ModeElectric, ModeDual)
	EnergyKWh   *decimal.Decimal
	EnergyCost  *decimal.Decimal
	FullCharge  bool
	SoCOverride *decimal.Decimal // manual battery % override, 0-100

	OtherCost     *decimal.Decimal
	OtherCostNote string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsFillUp reports whether the trip delivered fuel.
func (t TripRecord) IsFillUp() bool {
	return t.FuelLiters != nil && t.FuelLiters.IsPositive()
}

// IsCharge reports whether the trip delivered energy.
func (t TripRecord) IsCharge() bool {
	return t.EnergyKWh != nil && t.EnergyKWh.IsPositive()
}

// HasSoCOverride reports whether the trip carries a manual SoC override.
func (t TripRecord) HasSoCOverride() bool { return t.SoCOverride != nil }

// RecordsCost reports whether the trip records a fuel or energy cost,
// i.e. whether a receipt is expected for it.
func (t TripRecord) RecordsCost() bool {
	return (t.FuelLiters != nil && t.FuelCost != nil) ||
		(t.EnergyKWh != nil && t.EnergyCost != nil)
}

func (t TripRecord) fuelAdded() decimal.Decimal {
	if t.FuelLiters == nil {
		return decimal.Zero
	}
	return *t.FuelLiters
}

func (t TripRecord) energyAdded() decimal.Decimal {
	if t.EnergyKWh == nil {
		return decimal.Zero
	}
	return *t.EnergyKWh
}

// =============================================================================
// ROUTES & RECEIPTS - Inputs to compensation matching and receipt checks
// =============================================================================

// Route is a remembered origin->destination pair with its recorded distance.
// Routes feed the compensation planner's distance matching.
type Route struct {
	ID          RouteID
	VehicleID   VehicleID
	Origin      string
	Destination string
	DistanceKm  decimal.Decimal
	UsageCount  int
	LastUsed    time.Time
}

// Receipt is the subset of a scanned receipt the engine needs to decide
// whether a fuel/energy cost is documented. Parsing and OCR live elsewhere.
type Receipt struct {
	ID        ReceiptID
	VehicleID *VehicleID
	TripID    *TripID // set when explicitly linked to a trip
	Date      *time.Time
	Liters    *decimal.Decimal
	TotalCost *decimal.Decimal
}

// =============================================================================
// GRID RESULT - The computed per-trip view (derived, never persisted)
// =============================================================================

// GridResult is the engine's output for one (vehicle, year): every derived
// column the display layer and the export formatter render. It is a pure
// view, recomputed wholesale after any mutation.
type GridResult struct {
	Trips []TripRecord // chronological order

	// Fuel track
	FuelRates           map[TripID]decimal.Decimal // l/100km, retroactive per period
	EstimatedFuelRates  map[TripID]bool            // baseline used, no closing fill-up yet
	FuelConsumed        map[TripID]decimal.Decimal // liters burned by the trip
	FuelRemaining       map[TripID]decimal.Decimal // liters after the trip
	ConsumptionWarnings map[TripID]bool            // trip belongs to a >120% period

	// Dual-energy split legs (ModeDual only)
	KmElectric map[TripID]decimal.Decimal
	KmFuel     map[TripID]decimal.Decimal

	// Battery track
	EnergyRates          map[TripID]decimal.Decimal // kWh/100km
	EstimatedEnergyRates map[TripID]bool
	BatteryRemainingKWh  map[TripID]decimal.Decimal
	BatteryRemainingPct  map[TripID]decimal.Decimal
	SoCOverrides         map[TripID]bool

	FillUps         map[TripID]bool // trips that closed a fuel period
	FullCharges     map[TripID]bool // trips that closed an energy period
	MissingReceipts map[TripID]bool // fuel/energy cost recorded, no receipt
	DateWarnings    map[TripID]bool // date out of order vs insertion sequence

	// Compliance extras
	TripNumbers   map[TripID]int             // 1-based chronological sequence
	OdometerStart map[TripID]decimal.Decimal // odometer before the trip
	MonthEnds     []MonthEndRow

	// Worst closed fuel period vs baseline. HasMargin is false until at
	// least one fuel period has closed.
	WorstMarginPct decimal.Decimal
	HasMargin      bool
	OverLimit      bool

	// Resolved year-start balances (carryover or initial seed)
	YearStartOdometer decimal.Decimal
	YearStartFuel     decimal.Decimal
	YearStartBattery  decimal.Decimal

	SuggestedFillUps map[TripID]SuggestedFillUp
}

// MonthEndRow is a synthetic row showing the vehicle state at the end of a
// closed month, interleaved into exports by SortKey.
type MonthEndRow struct {
	Date          time.Time
	Month         time.Month
	Odometer      decimal.Decimal
	FuelRemaining decimal.Decimal
	SortKey       decimal.Decimal // last trip number in the month + 0.5
}

// SuggestedFillUp is the liters that would close the open period at the
// suggested target rate.
type SuggestedFillUp struct {
	Liters decimal.Decimal
	Rate   decimal.Decimal // resulting l/100km
}

// =============================================================================
// STATS & PREVIEW
// =============================================================================

// TripStats aggregates a (vehicle, year) for the header display and reports.
type TripStats struct {
	FuelRemaining decimal.Decimal
	AvgRate       decimal.Decimal // closed periods only
	LastRate      decimal.Decimal // most recent fill-up window
	WorstMargin   decimal.Decimal // worst closed period vs baseline, %
	HasMargin     bool
	OverLimit     bool
	TotalKm       decimal.Decimal
	TotalFuel     decimal.Decimal
	TotalFuelCost decimal.Decimal
	BufferKm      decimal.Decimal // extra km to reach the safety band
}

// PreviewResult is the projected row for a single unsaved trip edit.
type PreviewResult struct {
	FuelRemaining decimal.Decimal
	Rate          decimal.Decimal
	MarginPct     decimal.Decimal
	OverLimit     bool
	Estimated     bool
}

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

var hundred = decimal.NewFromInt(100)

// ratePer100 returns added/km x 100, or zero when km is not positive.
// Guarding here is what keeps zero-km periods from ever dividing by zero.
func ratePer100(added, km decimal.Decimal) decimal.Decimal {
	if !km.IsPositive() {
		return decimal.Zero
	}
	return added.Div(km).Mul(hundred)
}

// consumedOver returns distance x rate / 100.
func consumedOver(distance, rate decimal.Decimal) decimal.Decimal {
	return distance.Mul(rate).Div(hundred)
}

// clamp bounds v to [0, max].
func clamp(v, max decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}

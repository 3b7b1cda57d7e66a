/*
dto.go - JSON contract for the HTTP API

PURPOSE:
  Decouples the engine's types from the wire format. Handlers translate
  between the two; DTOs are pure data carriers with no behavior.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

DECIMALS:
  All quantities are shopspring decimals and marshal as quoted strings
  ("6.2"). Clients must not parse them as floats if they care about
  exactness; the engine does not, and neither should they.

SEE ALSO:
  - handlers.go: translation between DTOs and engine types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tripbook/trip-engine/engine"
)

const dayFormat = "2006-01-02"

// =============================================================================
// VEHICLES
// =============================================================================

// VehicleDTO represents a vehicle in API responses.
type VehicleDTO struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	LicensePlate       string          `json:"license_plate"`
	Mode               string          `json:"mode"`
	TankLiters         decimal.Decimal `json:"tank_liters"`
	BaselineFuelRate   decimal.Decimal `json:"baseline_fuel_rate"`
	BatteryKWh         decimal.Decimal `json:"battery_kwh"`
	BaselineEnergyRate decimal.Decimal `json:"baseline_energy_rate"`
	InitialBatteryPct  decimal.Decimal `json:"initial_battery_pct"`
	InitialOdometer    decimal.Decimal `json:"initial_odometer"`
	Active             bool            `json:"active"`
}

// VehicleRequest is the request body for creating or updating a vehicle.
type VehicleRequest struct {
	Name               string          `json:"name"`
	LicensePlate       string          `json:"license_plate"`
	Mode               string          `json:"mode"`
	TankLiters         decimal.Decimal `json:"tank_liters"`
	BaselineFuelRate   decimal.Decimal `json:"baseline_fuel_rate"`
	BatteryKWh         decimal.Decimal `json:"battery_kwh"`
	BaselineEnergyRate decimal.Decimal `json:"baseline_energy_rate"`
	InitialBatteryPct  decimal.Decimal `json:"initial_battery_pct"`
	InitialOdometer    decimal.Decimal `json:"initial_odometer"`
	Active             *bool           `json:"active,omitempty"`
}

func toVehicleDTO(v engine.VehicleConfig) VehicleDTO {
	return VehicleDTO{
		ID:                 v.ID.String(),
		Name:               v.Name,
		LicensePlate:       v.LicensePlate,
		Mode:               string(v.Mode),
		TankLiters:         v.TankLiters,
		BaselineFuelRate:   v.BaselineFuelRate,
		BatteryKWh:         v.BatteryKWh,
		BaselineEnergyRate: v.BaselineEnergyRate,
		InitialBatteryPct:  v.InitialBatteryPct,
		InitialOdometer:    v.InitialOdometer,
		Active:             v.Active,
	}
}

func (r VehicleRequest) toConfig(id engine.VehicleID) engine.VehicleConfig {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return engine.VehicleConfig{
		ID:                 id,
		Name:               r.Name,
		LicensePlate:       r.LicensePlate,
		Mode:               engine.EnergyMode(r.Mode),
		TankLiters:         r.TankLiters,
		BaselineFuelRate:   r.BaselineFuelRate,
		BatteryKWh:         r.BatteryKWh,
		BaselineEnergyRate: r.BaselineEnergyRate,
		InitialBatteryPct:  r.InitialBatteryPct,
		InitialOdometer:    r.InitialOdometer,
		Active:             active,
	}
}

// =============================================================================
// TRIPS
// =============================================================================

// TripDTO represents a stored trip.
type TripDTO struct {
	ID          string           `json:"id"`
	VehicleID   string           `json:"vehicle_id"`
	Seq         int              `json:"seq"`
	Date        string           `json:"date"`
	Origin      string           `json:"origin,omitempty"`
	Destination string           `json:"destination,omitempty"`
	Purpose     string           `json:"purpose,omitempty"`
	DistanceKm  decimal.Decimal  `json:"distance_km"`
	Odometer    decimal.Decimal  `json:"odometer"`
	FuelLiters  *decimal.Decimal `json:"fuel_liters,omitempty"`
	FuelCost    *decimal.Decimal `json:"fuel_cost,omitempty"`
	FullTank    bool             `json:"full_tank,omitempty"`
	EnergyKWh   *decimal.Decimal `json:"energy_kwh,omitempty"`
	EnergyCost  *decimal.Decimal `json:"energy_cost,omitempty"`
	FullCharge  bool             `json:"full_charge,omitempty"`
	SoCOverride *decimal.Decimal `json:"soc_override_pct,omitempty"`
	OtherCost   *decimal.Decimal `json:"other_cost,omitempty"`
}

// TripRequest is the request body for creating, updating or previewing a
// trip. The date uses YYYY-MM-DD.
type TripRequest struct {
	Date        string           `json:"date"`
	Origin      string           `json:"origin"`
	Destination string           `json:"destination"`
	Purpose     string           `json:"purpose"`
	DistanceKm  decimal.Decimal  `json:"distance_km"`
	FuelLiters  *decimal.Decimal `json:"fuel_liters,omitempty"`
	FuelCost    *decimal.Decimal `json:"fuel_cost,omitempty"`
	FullTank    bool             `json:"full_tank,omitempty"`
	EnergyKWh   *decimal.Decimal `json:"energy_kwh,omitempty"`
	EnergyCost  *decimal.Decimal `json:"energy_cost,omitempty"`
	FullCharge  bool             `json:"full_charge,omitempty"`
	SoCOverride *decimal.Decimal `json:"soc_override_pct,omitempty"`
	OtherCost   *decimal.Decimal `json:"other_cost,omitempty"`
}

func (r TripRequest) toRecord(vehicleID engine.VehicleID) (engine.TripRecord, error) {
	date, err := time.Parse(dayFormat, r.Date)
	if err != nil {
		return engine.TripRecord{}, err
	}
	return engine.TripRecord{
		VehicleID:   vehicleID,
		Date:        date,
		Origin:      r.Origin,
		Destination: r.Destination,
		Purpose:     r.Purpose,
		DistanceKm:  r.DistanceKm,
		FuelLiters:  r.FuelLiters,
		FuelCost:    r.FuelCost,
		FullTank:    r.FullTank,
		EnergyKWh:   r.EnergyKWh,
		EnergyCost:  r.EnergyCost,
		FullCharge:  r.FullCharge,
		SoCOverride: r.SoCOverride,
		OtherCost:   r.OtherCost,
	}, nil
}

func toTripDTO(t engine.TripRecord) TripDTO {
	return TripDTO{
		ID:          t.ID.String(),
		VehicleID:   t.VehicleID.String(),
		Seq:         t.Seq,
		Date:        t.Date.Format(dayFormat),
		Origin:      t.Origin,
		Destination: t.Destination,
		Purpose:     t.Purpose,
		DistanceKm:  t.DistanceKm,
		Odometer:    t.Odometer,
		FuelLiters:  t.FuelLiters,
		FuelCost:    t.FuelCost,
		FullTank:    t.FullTank,
		EnergyKWh:   t.EnergyKWh,
		EnergyCost:  t.EnergyCost,
		FullCharge:  t.FullCharge,
		SoCOverride: t.SoCOverride,
		OtherCost:   t.OtherCost,
	}
}

// OdometerRequest corrects a trip's ending reading.
type OdometerRequest struct {
	Odometer decimal.Decimal `json:"odometer"`
}

// =============================================================================
// GRID
// =============================================================================

// GridRowDTO is one trip with every engine-computed column attached. The
// values pass through unmodified; the display layer does no math.
type GridRowDTO struct {
	Trip          TripDTO         `json:"trip"`
	Number        int             `json:"number"`
	StartOdometer decimal.Decimal `json:"start_odometer"`

	FuelRate          *decimal.Decimal `json:"fuel_rate,omitempty"`
	FuelRateEstimated bool             `json:"fuel_rate_estimated,omitempty"`
	FuelConsumed      *decimal.Decimal `json:"fuel_consumed,omitempty"`
	FuelRemaining     *decimal.Decimal `json:"fuel_remaining,omitempty"`

	KmElectric *decimal.Decimal `json:"km_electric,omitempty"`
	KmFuel     *decimal.Decimal `json:"km_fuel,omitempty"`

	EnergyRate          *decimal.Decimal `json:"energy_rate,omitempty"`
	EnergyRateEstimated bool             `json:"energy_rate_estimated,omitempty"`
	BatteryKWh          *decimal.Decimal `json:"battery_kwh,omitempty"`
	BatteryPct          *decimal.Decimal `json:"battery_pct,omitempty"`

	FillUp              bool `json:"fill_up,omitempty"`
	FullCharge          bool `json:"full_charge,omitempty"`
	SoCOverride         bool `json:"soc_override,omitempty"`
	ConsumptionWarning  bool `json:"consumption_warning,omitempty"`
	MissingReceipt      bool `json:"missing_receipt,omitempty"`
	DateWarning         bool `json:"date_warning,omitempty"`

	SuggestedFillUp *SuggestedFillUpDTO `json:"suggested_fill_up,omitempty"`
}

// SuggestedFillUpDTO is the liters that would close the open period at
// the suggested rate.
type SuggestedFillUpDTO struct {
	Liters decimal.Decimal `json:"liters"`
	Rate   decimal.Decimal `json:"rate"`
}

// MonthEndDTO is a synthetic month-close row.
type MonthEndDTO struct {
	Date          string          `json:"date"`
	Month         string          `json:"month"`
	Odometer      decimal.Decimal `json:"odometer"`
	FuelRemaining decimal.Decimal `json:"fuel_remaining"`
	SortKey       decimal.Decimal `json:"sort_key"`
}

// GridDTO is the full derived view for one (vehicle, year).
type GridDTO struct {
	Rows      []GridRowDTO  `json:"rows"`
	MonthEnds []MonthEndDTO `json:"month_ends"`

	YearStartOdometer decimal.Decimal `json:"year_start_odometer"`
	YearStartFuel     decimal.Decimal `json:"year_start_fuel"`
	YearStartBattery  decimal.Decimal `json:"year_start_battery"`

	WorstMarginPct decimal.Decimal `json:"worst_margin_pct"`
	HasMargin      bool            `json:"has_margin"`
	OverLimit      bool            `json:"over_limit"`
}

func toGridDTO(g *engine.GridResult) GridDTO {
	dto := GridDTO{
		Rows:              make([]GridRowDTO, 0, len(g.Trips)),
		MonthEnds:         make([]MonthEndDTO, 0, len(g.MonthEnds)),
		YearStartOdometer: g.YearStartOdometer,
		YearStartFuel:     g.YearStartFuel,
		YearStartBattery:  g.YearStartBattery,
		WorstMarginPct:    g.WorstMarginPct,
		HasMargin:         g.HasMargin,
		OverLimit:         g.OverLimit,
	}
	for _, t := range g.Trips {
		row := GridRowDTO{
			Trip:          toTripDTO(t),
			Number:        g.TripNumbers[t.ID],
			StartOdometer: g.OdometerStart[t.ID],

			FuelRateEstimated:   g.EstimatedFuelRates[t.ID],
			EnergyRateEstimated: g.EstimatedEnergyRates[t.ID],
			FillUp:              g.FillUps[t.ID],
			FullCharge:          g.FullCharges[t.ID],
			SoCOverride:         g.SoCOverrides[t.ID],
			ConsumptionWarning:  g.ConsumptionWarnings[t.ID],
			MissingReceipt:      g.MissingReceipts[t.ID],
			DateWarning:         g.DateWarnings[t.ID],

			FuelRate:      fromMap(g.FuelRates, t.ID),
			FuelConsumed:  fromMap(g.FuelConsumed, t.ID),
			FuelRemaining: fromMap(g.FuelRemaining, t.ID),
			KmElectric:    fromMap(g.KmElectric, t.ID),
			KmFuel:        fromMap(g.KmFuel, t.ID),
			EnergyRate:    fromMap(g.EnergyRates, t.ID),
			BatteryKWh:    fromMap(g.BatteryRemainingKWh, t.ID),
			BatteryPct:    fromMap(g.BatteryRemainingPct, t.ID),
		}
		if s, ok := g.SuggestedFillUps[t.ID]; ok {
			row.SuggestedFillUp = &SuggestedFillUpDTO{Liters: s.Liters, Rate: s.Rate}
		}
		dto.Rows = append(dto.Rows, row)
	}
	for _, m := range g.MonthEnds {
		dto.MonthEnds = append(dto.MonthEnds, MonthEndDTO{
			Date:          m.Date.Format(dayFormat),
			Month:         m.Month.String(),
			Odometer:      m.Odometer,
			FuelRemaining: m.FuelRemaining,
			SortKey:       m.SortKey,
		})
	}
	return dto
}

func fromMap(m map[engine.TripID]decimal.Decimal, id engine.TripID) *decimal.Decimal {
	v, ok := m[id]
	if !ok {
		return nil
	}
	return &v
}

// =============================================================================
// STATS, PREVIEW, COMPENSATION
// =============================================================================

// StatsDTO is the aggregate header for one (vehicle, year).
type StatsDTO struct {
	FuelRemaining decimal.Decimal `json:"fuel_remaining"`
	AvgRate       decimal.Decimal `json:"avg_rate"`
	LastRate      decimal.Decimal `json:"last_rate"`
	WorstMargin   decimal.Decimal `json:"worst_margin"`
	HasMargin     bool            `json:"has_margin"`
	OverLimit     bool            `json:"over_limit"`
	TotalKm       decimal.Decimal `json:"total_km"`
	TotalFuel     decimal.Decimal `json:"total_fuel"`
	TotalFuelCost decimal.Decimal `json:"total_fuel_cost"`
	BufferKm      decimal.Decimal `json:"buffer_km"`
}

func toStatsDTO(s engine.TripStats) StatsDTO {
	return StatsDTO{
		FuelRemaining: s.FuelRemaining,
		AvgRate:       s.AvgRate,
		LastRate:      s.LastRate,
		WorstMargin:   s.WorstMargin,
		HasMargin:     s.HasMargin,
		OverLimit:     s.OverLimit,
		TotalKm:       s.TotalKm,
		TotalFuel:     s.TotalFuel,
		TotalFuelCost: s.TotalFuelCost,
		BufferKm:      s.BufferKm,
	}
}

// PreviewRequest projects one unsaved trip edit. A non-empty ID targets
// an existing trip; an empty ID previews a new one.
type PreviewRequest struct {
	ID   string      `json:"id,omitempty"`
	Trip TripRequest `json:"trip"`
}

// PreviewDTO is the projected row for the edit.
type PreviewDTO struct {
	FuelRemaining decimal.Decimal `json:"fuel_remaining"`
	Rate          decimal.Decimal `json:"rate"`
	MarginPct     decimal.Decimal `json:"margin_pct"`
	OverLimit     bool            `json:"over_limit"`
	Estimated     bool            `json:"estimated"`
}

// CompensationRequest carries an optional explicit target margin as a
// fraction (0.16 to 0.19). Zero means the default target.
type CompensationRequest struct {
	TargetMargin decimal.Decimal `json:"target_margin"`
}

// CompensationDTO is the planned extra documented driving.
type CompensationDTO struct {
	ExtraKm    decimal.Decimal `json:"extra_km"`
	TargetRate decimal.Decimal `json:"target_rate"`
	Route      *RouteDTO       `json:"route,omitempty"`
}

// RouteDTO is a remembered origin/destination pair.
type RouteDTO struct {
	ID          string          `json:"id"`
	Origin      string          `json:"origin"`
	Destination string          `json:"destination"`
	DistanceKm  decimal.Decimal `json:"distance_km"`
	UsageCount  int             `json:"usage_count"`
	LastUsed    string          `json:"last_used,omitempty"`
}

func toRouteDTO(r engine.Route) RouteDTO {
	dto := RouteDTO{
		ID:          r.ID.String(),
		Origin:      r.Origin,
		Destination: r.Destination,
		DistanceKm:  r.DistanceKm,
		UsageCount:  r.UsageCount,
	}
	if !r.LastUsed.IsZero() {
		dto.LastUsed = r.LastUsed.Format(dayFormat)
	}
	return dto
}

// =============================================================================
// RECEIPTS
// =============================================================================

// ReceiptDTO represents a scanned receipt extract.
type ReceiptDTO struct {
	ID        string           `json:"id"`
	TripID    string           `json:"trip_id,omitempty"`
	Date      string           `json:"date,omitempty"`
	Liters    *decimal.Decimal `json:"liters,omitempty"`
	TotalCost *decimal.Decimal `json:"total_cost,omitempty"`
}

// ReceiptRequest is the request body for saving a receipt.
type ReceiptRequest struct {
	Date      string           `json:"date,omitempty"`
	Liters    *decimal.Decimal `json:"liters,omitempty"`
	TotalCost *decimal.Decimal `json:"total_cost,omitempty"`
}

// LinkReceiptRequest attaches a receipt to a trip.
type LinkReceiptRequest struct {
	TripID string `json:"trip_id"`
}

func toReceiptDTO(r engine.Receipt) ReceiptDTO {
	dto := ReceiptDTO{
		ID:        r.ID.String(),
		Liters:    r.Liters,
		TotalCost: r.TotalCost,
	}
	if r.TripID != nil {
		dto.TripID = r.TripID.String()
	}
	if r.Date != nil {
		dto.Date = r.Date.Format(dayFormat)
	}
	return dto
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

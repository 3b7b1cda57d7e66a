/*
grid.go - The grid assembler

PURPOSE:
  The one entry point callers use: turn (vehicle config, trips, prior-year
  source, receipts) into the complete per-trip derived view for a calendar
  year. Everything here is orchestration; the arithmetic lives in the
  files this one calls into.

ALSO HERE:
  - Preview: the same computation against a modified in-memory trip list,
    for showing live numbers while a trip is being edited
  - ComputeStats: the year's aggregate header numbers
  - month-end rows: synthetic state snapshots for closed months

PURITY:
  No I/O besides the TripSource the caller injects, no persistence, no
  clock reads: "now" comes in through GridInput.AsOf. Identical inputs
  always produce the identical GridResult.
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GridInput is everything one grid computation needs.
type GridInput struct {
	Config   VehicleConfig
	Trips    []TripRecord // the (vehicle, year) trips, any order
	Year     int
	Source   TripSource // prior-year history; nil means none
	Receipts []Receipt
	AsOf     time.Time // reference "today" for month-end rows; zero skips them
}

// ComputeGrid assembles the per-trip derived view for one (vehicle, year).
func ComputeGrid(ctx context.Context, in GridInput) (*GridResult, error) {
	c, err := compute(ctx, in)
	if err != nil {
		return nil, err
	}
	return c.result, nil
}

// gridComputation keeps the intermediate track data alongside the result,
// so stats and preview can reuse one pipeline run.
type gridComputation struct {
	result *GridResult
	sorted []TripRecord
	start  YearStart
	fuel   trackRates // zero-valued for electric-only vehicles
}

func compute(ctx context.Context, in GridInput) (*gridComputation, error) {
	cfg := in.Config
	for _, t := range in.Trips {
		if t.VehicleID != cfg.ID {
			return nil, &VehicleMismatchError{TripID: t.ID, Expected: cfg.ID, Got: t.VehicleID}
		}
	}

	sorted := SortChronological(in.Trips)
	start, err := ResolveYearStart(ctx, cfg, in.Source, in.Year)
	if err != nil {
		return nil, fmt.Errorf("resolving year start: %w", err)
	}

	res := &GridResult{
		Trips:             sorted,
		TripNumbers:       TripNumbers(sorted),
		OdometerStart:     OdometerStarts(sorted, start.Odometer),
		DateWarnings:      DateWarnings(sorted),
		MissingReceipts:   missingReceipts(sorted, in.Receipts),
		YearStartOdometer: start.Odometer,
		YearStartFuel:     start.Fuel,
		YearStartBattery:  start.Battery,
	}
	c := &gridComputation{result: res, sorted: sorted, start: start}

	switch cfg.Mode {
	case ModeFuel:
		events := fuelEvents(sorted, nil)
		c.assembleFuel(events, nil, cfg)

	case ModeElectric:
		events := energyEvents(sorted, nil)
		tr := assignRates(events, cfg.BaselineEnergyRate)
		bt := trackBattery(sorted, tr.rates, nil, start.Battery, cfg.BatteryKWh)
		res.EnergyRates = tr.rates
		res.EstimatedEnergyRates = tr.estimated
		res.FullCharges = tr.closers
		res.BatteryRemainingKWh = bt.remainingKWh
		res.BatteryRemainingPct = bt.remainingPct
		res.SoCOverrides = bt.overrides

	case ModeDual:
		ds := splitDualEnergy(sorted, cfg.BaselineEnergyRate, start.Battery, cfg.BatteryKWh)
		c.assembleFuel(fuelEvents(sorted, ds.kmFuel), ds.kmFuel, cfg)

		res.KmElectric = ds.kmElectric
		res.KmFuel = ds.kmFuel

		etr := assignRates(energyEvents(sorted, ds.kmElectric), cfg.BaselineEnergyRate)
		res.EnergyRates = etr.rates
		res.EstimatedEnergyRates = etr.estimated
		res.FullCharges = etr.closers
		res.BatteryRemainingKWh = ds.batteryKWh
		res.BatteryRemainingPct = ds.batteryPct
		res.SoCOverrides = ds.overrides

	default:
		return nil, &ConfigError{Field: "mode", Reason: "unknown energy mode"}
	}

	if !in.AsOf.IsZero() {
		res.MonthEnds = monthEndRows(sorted, res, start, in.Year, in.AsOf)
	}
	return c, nil
}

// assembleFuel fills the fuel-side columns: rates, balances, margin,
// suggested fill-ups. kmOverride carries the dual-energy fuel legs.
func (c *gridComputation) assembleFuel(events []trackEvent, kmOverride map[TripID]decimal.Decimal, cfg VehicleConfig) {
	res := c.result
	tr := assignRates(events, cfg.BaselineFuelRate)
	ft := trackFuel(c.sorted, tr.rates, kmOverride, c.start.Fuel, cfg.TankLiters)
	mr := evaluateMargin(tr.closed, cfg.BaselineFuelRate)

	res.FuelRates = tr.rates
	res.EstimatedFuelRates = tr.estimated
	res.FillUps = tr.closers
	res.FuelConsumed = ft.consumed
	res.FuelRemaining = ft.remaining
	res.ConsumptionWarnings = mr.warnings
	res.WorstMarginPct = mr.worstPct
	res.HasMargin = mr.has
	res.OverLimit = mr.over
	res.SuggestedFillUps = suggestFillUps(events, tr.open, cfg.BaselineFuelRate, decimal.Zero)

	c.fuel = tr
}

// =============================================================================
// MONTH-END ROWS
// =============================================================================

// monthEndRows produces one synthetic row per fully elapsed month of the
// year, carrying the odometer and fuel state after the last trip dated in
// or before that month. SortKey interleaves the row after that trip.
func monthEndRows(sorted []TripRecord, res *GridResult, start YearStart, year int, asOf time.Time) []MonthEndRow {
	var rows []MonthEndRow
	half := decimal.RequireFromString("0.5")

	for m := time.January; m <= time.December; m++ {
		monthEnd := time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC)
		if !monthEnd.Before(dayOf(asOf)) {
			break // month not yet over
		}

		row := MonthEndRow{
			Date:          monthEnd,
			Month:         m,
			Odometer:      start.Odometer,
			FuelRemaining: start.Fuel,
			SortKey:       half,
		}
		for _, t := range sorted {
			if dayOf(t.Date).After(monthEnd) {
				break
			}
			row.Odometer = t.Odometer
			if rem, ok := res.FuelRemaining[t.ID]; ok {
				row.FuelRemaining = rem
			}
			row.SortKey = decimal.NewFromInt(int64(res.TripNumbers[t.ID])).Add(half)
		}
		rows = append(rows, row)
	}
	return rows
}

// =============================================================================
// LIVE PREVIEW
// =============================================================================

// Preview computes the projected row for one unsaved trip edit. An edit
// whose ID matches an existing trip replaces it; anything else is treated
// as a new trip appended to the ledger. Nothing is persisted.
func Preview(ctx context.Context, in GridInput, edit TripRecord) (PreviewResult, error) {
	if edit.ID == uuid.Nil {
		edit.ID = uuid.New()
	}
	if edit.VehicleID == uuid.Nil {
		edit.VehicleID = in.Config.ID
	}

	modified := make([]TripRecord, 0, len(in.Trips)+1)
	replaced := false
	maxSeq := 0
	for _, t := range in.Trips {
		if t.Seq > maxSeq {
			maxSeq = t.Seq
		}
		if t.ID == edit.ID {
			modified = append(modified, edit)
			replaced = true
			continue
		}
		modified = append(modified, t)
	}
	if !replaced {
		if edit.Seq == 0 {
			edit.Seq = maxSeq + 1
		}
		modified = append(modified, edit)
	}

	in.Trips = modified
	c, err := compute(ctx, in)
	if err != nil {
		return PreviewResult{}, err
	}
	res := c.result

	pr := PreviewResult{
		MarginPct: res.WorstMarginPct,
		OverLimit: res.OverLimit,
	}
	if in.Config.Mode.UsesFuel() {
		pr.Rate = res.FuelRates[edit.ID]
		pr.FuelRemaining = res.FuelRemaining[edit.ID]
		pr.Estimated = res.EstimatedFuelRates[edit.ID]
	} else {
		pr.Rate = res.EnergyRates[edit.ID]
		pr.FuelRemaining = res.BatteryRemainingKWh[edit.ID]
		pr.Estimated = res.EstimatedEnergyRates[edit.ID]
	}
	return pr, nil
}

// =============================================================================
// AGGREGATE STATS
// =============================================================================

// ComputeStats aggregates a (vehicle, year) into the header numbers:
// totals, average and last measured rate, worst margin, and the buffer km
// the compensation planner recommends.
func ComputeStats(ctx context.Context, in GridInput, routes []Route) (TripStats, error) {
	c, err := compute(ctx, in)
	if err != nil {
		return TripStats{}, err
	}
	res := c.result

	st := TripStats{
		FuelRemaining: c.start.Fuel,
		WorstMargin:   res.WorstMarginPct,
		HasMargin:     res.HasMargin,
		OverLimit:     res.OverLimit,
	}
	for _, t := range c.sorted {
		st.TotalKm = st.TotalKm.Add(t.DistanceKm)
		st.TotalFuel = st.TotalFuel.Add(t.fuelAdded())
		if t.FuelCost != nil {
			st.TotalFuelCost = st.TotalFuelCost.Add(*t.FuelCost)
		}
	}
	if len(c.sorted) > 0 {
		if rem, ok := res.FuelRemaining[c.sorted[len(c.sorted)-1].ID]; ok {
			st.FuelRemaining = rem
		}
	}

	// Average over closed periods only: the open window has no measured
	// rate and would skew the figure.
	closedKm, closedFuel := closedTotals(c.fuel.closed)
	st.AvgRate = ratePer100(closedFuel, closedKm)
	if n := len(c.fuel.closed); n > 0 {
		st.LastRate = c.fuel.closed[n-1].Rate
	}

	// The planner only runs once a closed period breaks the margin. A
	// compliant year needs no buffer, and the plan is computed from the
	// closed-period totals: the open window has no measured rate to
	// compensate against.
	if in.Config.Mode.UsesFuel() && res.OverLimit {
		plan, err := PlanCompensation(closedFuel, closedKm, in.Config.BaselineFuelRate, decimal.Zero, routes)
		if err != nil {
			return TripStats{}, err
		}
		st.BufferKm = plan.ExtraKm
	}
	return st, nil
}

/*
Package export renders a computed logbook to XLSX and PDF.

PURPOSE:
  Pure formatting over the engine's output. Every column shown here was
  computed by the engine; this package does no arithmetic of its own
  beyond string formatting. Month-end state rows are interleaved between
  trips by their sort key.

SEE ALSO:
  - engine/grid.go: produces the GridResult rendered here
  - xlsx.go, pdf.go: the two output formats
*/
package export

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tripbook/trip-engine/engine"
)

const dayFormat = "2006-01-02"

// Logbook bundles everything one rendered document needs.
type Logbook struct {
	Config engine.VehicleConfig
	Year   int
	Grid   *engine.GridResult
	Stats  engine.TripStats
}

type rowKind int

const (
	rowTrip rowKind = iota
	rowMonthEnd
)

type logRow struct {
	kind     rowKind
	trip     engine.TripRecord
	monthEnd engine.MonthEndRow
}

// interleavedRows merges trips and month-end rows into display order.
// Trips sort by their 1-based number, month-end rows by their fractional
// sort key, so a month closing after trip N lands between N and N+1.
func interleavedRows(g *engine.GridResult) []logRow {
	type keyed struct {
		key decimal.Decimal
		row logRow
	}
	rows := make([]keyed, 0, len(g.Trips)+len(g.MonthEnds))
	for _, t := range g.Trips {
		rows = append(rows, keyed{
			key: decimal.NewFromInt(int64(g.TripNumbers[t.ID])),
			row: logRow{kind: rowTrip, trip: t},
		})
	}
	for _, m := range g.MonthEnds {
		rows = append(rows, keyed{key: m.SortKey, row: logRow{kind: rowMonthEnd, monthEnd: m}})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].key.LessThan(rows[j].key) })

	out := make([]logRow, len(rows))
	for i, k := range rows {
		out[i] = k.row
	}
	return out
}

// headers returns the column captions for the vehicle's energy mode.
func headers(mode engine.EnergyMode) []string {
	base := []string{"No.", "Date", "From", "To", "Purpose", "Start km", "End km", "Km"}
	switch mode {
	case engine.ModeElectric:
		return append(base, "Charge kWh", "Cost", "kWh/100km", "Battery kWh", "Battery %", "Notes")
	case engine.ModeDual:
		return append(base, "Km el.", "Km fuel", "Fuel l", "Charge kWh", "Cost",
			"l/100km", "kWh/100km", "Tank l", "Battery %", "Notes")
	default:
		return append(base, "Fuel l", "Cost", "l/100km", "Tank l", "Notes")
	}
}

func tripCells(lb Logbook, t engine.TripRecord) []string {
	g := lb.Grid
	base := []string{
		itoa(g.TripNumbers[t.ID]),
		t.Date.Format(dayFormat),
		t.Origin,
		t.Destination,
		t.Purpose,
		num(g.OdometerStart[t.ID]),
		num(t.Odometer),
		num(t.DistanceKm),
	}
	switch lb.Config.Mode {
	case engine.ModeElectric:
		return append(base,
			optNum(t.EnergyKWh),
			cost(lb, t),
			rate(g.EnergyRates[t.ID], g.EstimatedEnergyRates[t.ID]),
			num(g.BatteryRemainingKWh[t.ID]),
			num(g.BatteryRemainingPct[t.ID]),
			notes(lb, t),
		)
	case engine.ModeDual:
		return append(base,
			num(g.KmElectric[t.ID]),
			num(g.KmFuel[t.ID]),
			optNum(t.FuelLiters),
			optNum(t.EnergyKWh),
			cost(lb, t),
			rate(g.FuelRates[t.ID], g.EstimatedFuelRates[t.ID]),
			rate(g.EnergyRates[t.ID], g.EstimatedEnergyRates[t.ID]),
			num(g.FuelRemaining[t.ID]),
			num(g.BatteryRemainingPct[t.ID]),
			notes(lb, t),
		)
	default:
		return append(base,
			optNum(t.FuelLiters),
			cost(lb, t),
			rate(g.FuelRates[t.ID], g.EstimatedFuelRates[t.ID]),
			num(g.FuelRemaining[t.ID]),
			notes(lb, t),
		)
	}
}

func monthEndCells(lb Logbook, m engine.MonthEndRow) []string {
	base := []string{
		"",
		m.Date.Format(dayFormat),
		"",
		"",
		"End of " + m.Month.String(),
		"",
		num(m.Odometer),
		"",
	}
	pad := len(headers(lb.Config.Mode)) - len(base)
	cells := append(base, make([]string, pad)...)
	switch lb.Config.Mode {
	case engine.ModeDual:
		cells[len(cells)-3] = num(m.FuelRemaining) // Tank l
	case engine.ModeFuel:
		cells[len(cells)-2] = num(m.FuelRemaining) // Tank l
	}
	return cells
}

// notes collects the engine's per-trip flags into one display column.
func notes(lb Logbook, t engine.TripRecord) string {
	g := lb.Grid
	var parts []string
	if g.FillUps[t.ID] {
		parts = append(parts, "fill-up")
	}
	if g.FullCharges[t.ID] {
		parts = append(parts, "full charge")
	}
	if g.SoCOverrides[t.ID] {
		parts = append(parts, "SoC set")
	}
	if g.ConsumptionWarnings[t.ID] {
		parts = append(parts, "over limit")
	}
	if g.MissingReceipts[t.ID] {
		parts = append(parts, "receipt missing")
	}
	if g.DateWarnings[t.ID] {
		parts = append(parts, "check date")
	}
	if s, ok := g.SuggestedFillUps[t.ID]; ok {
		parts = append(parts, "suggest "+num(s.Liters)+" l at "+num(s.Rate))
	}
	return strings.Join(parts, ", ")
}

func num(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func optNum(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// rate marks estimated values so a reader can tell a baseline projection
// from a measured figure.
func rate(d decimal.Decimal, estimated bool) string {
	if d.IsZero() {
		return ""
	}
	s := d.StringFixed(2)
	if estimated {
		return "~" + s
	}
	return s
}

func cost(lb Logbook, t engine.TripRecord) string {
	var total decimal.Decimal
	seen := false
	for _, c := range []*decimal.Decimal{t.FuelCost, t.EnergyCost, t.OtherCost} {
		if c != nil {
			total = total.Add(*c)
			seen = true
		}
	}
	if !seen {
		return ""
	}
	return total.StringFixed(2)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

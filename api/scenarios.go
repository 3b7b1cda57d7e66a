/*
scenarios.go - Demo scenario loaders

PURPOSE:
  Pre-built fleets that populate the database with realistic data for
  demos and manual testing. Each scenario clears existing data and
  creates vehicles with trips that exercise a specific feature.

AVAILABLE SCENARIOS:
  commuter:       fuel car, closed fill-up periods plus an open window
  audit-season:   fuel car over the allowed band, missing receipts
  company-ev:     electric car with charges and a dashboard SoC override
  plugin-hybrid:  dual-energy car splitting distance between battery and fuel

HOW SCENARIOS WORK:
 1. Delete every vehicle (trips and routes cascade)
 2. Create the scenario's vehicles through the service
 3. Add trips in entry order; odometers and sequences are assigned
    by the service exactly as they would be for a real user

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "commuter"}

NOTE:
  Scenarios wipe the database. Development and demo use only.

SEE ALSO:
  - handlers.go: shared helpers
  - server.go: scenario routes
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tripbook/trip-engine/engine"
)

// =============================================================================
// SCENARIO REGISTRY
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

const scenarioSetting = "scenario.current"

var scenarios = []ScenarioDTO{
	{
		ID:          "commuter",
		Name:        "Daily commuter",
		Description: "Fuel car with two closed fill-up periods and an open window running on the baseline rate.",
	},
	{
		ID:          "audit-season",
		Name:        "Audit season",
		Description: "Fuel car whose last period runs over the allowed band, with undocumented fill-ups to chase.",
	},
	{
		ID:          "company-ev",
		Name:        "Company EV",
		Description: "Electric car with charge periods and a dashboard state-of-charge correction.",
	},
	{
		ID:          "plugin-hybrid",
		Name:        "Plug-in hybrid",
		Description: "Dual-energy car splitting each trip between battery range and fuel.",
	},
}

// ListScenarios returns the scenario registry.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the most recently loaded scenario id. The id
// is persisted as a setting, so it survives a restart.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current, _, err := h.Service.Setting(r.Context(), scenarioSetting)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read current scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": current})
}

// LoadScenario wipes the database and loads the selected demo fleet.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.clearFleet(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear existing data", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "commuter":
		err = h.loadCommuterScenario(ctx)
	case "audit-season":
		err = h.loadAuditSeasonScenario(ctx)
	case "company-ev":
		err = h.loadCompanyEVScenario(ctx)
	case "plugin-hybrid":
		err = h.loadPluginHybridScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	if err := h.Service.PutSetting(ctx, scenarioSetting, req.ScenarioID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record loaded scenario", err)
		return
	}
	h.Log.Info().Str("scenario", req.ScenarioID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": req.ScenarioID})
}

func (h *Handler) clearFleet(ctx context.Context) error {
	vehicles, err := h.Service.ListVehicles(ctx)
	if err != nil {
		return err
	}
	for _, v := range vehicles {
		if err := h.Service.DeleteVehicle(ctx, v.ID); err != nil {
			return fmt.Errorf("deleting vehicle %s: %w", v.ID, err)
		}
	}
	return nil
}

// =============================================================================
// SCENARIO BUILDERS
// =============================================================================

type demoTrip struct {
	day         time.Time
	origin      string
	destination string
	purpose     string
	km          string
	fuel        string // liters, full tank when set
	fuelCost    string
	energy      string // kWh, full charge when set
	energyCost  string
	socPct      string
}

func (h *Handler) addDemoTrips(ctx context.Context, vehicleID engine.VehicleID, trips []demoTrip) error {
	for _, dt := range trips {
		rec := engine.TripRecord{
			VehicleID:   vehicleID,
			Date:        dt.day,
			Origin:      dt.origin,
			Destination: dt.destination,
			Purpose:     dt.purpose,
			DistanceKm:  decimal.RequireFromString(dt.km),
		}
		if dt.fuel != "" {
			v := decimal.RequireFromString(dt.fuel)
			rec.FuelLiters = &v
			rec.FullTank = true
		}
		if dt.fuelCost != "" {
			v := decimal.RequireFromString(dt.fuelCost)
			rec.FuelCost = &v
		}
		if dt.energy != "" {
			v := decimal.RequireFromString(dt.energy)
			rec.EnergyKWh = &v
			rec.FullCharge = true
		}
		if dt.energyCost != "" {
			v := decimal.RequireFromString(dt.energyCost)
			rec.EnergyCost = &v
		}
		if dt.socPct != "" {
			v := decimal.RequireFromString(dt.socPct)
			rec.SoCOverride = &v
		}
		if _, err := h.Service.AddTrip(ctx, rec); err != nil {
			return fmt.Errorf("adding demo trip: %w", err)
		}
	}
	return nil
}

func demoDay(month time.Month, day int) time.Time {
	return time.Date(time.Now().Year(), month, day, 0, 0, 0, 0, time.UTC)
}

func (h *Handler) loadCommuterScenario(ctx context.Context) error {
	v, err := h.Service.CreateVehicle(ctx, engine.VehicleConfig{
		Name:             "Skoda Octavia",
		LicensePlate:     "BA-482KL",
		Mode:             engine.ModeFuel,
		TankLiters:       decimal.RequireFromString("50"),
		BaselineFuelRate: decimal.RequireFromString("6.0"),
		InitialOdometer:  decimal.RequireFromString("84210"),
		Active:           true,
	})
	if err != nil {
		return err
	}
	return h.addDemoTrips(ctx, v.ID, []demoTrip{
		{day: demoDay(time.January, 8), origin: "Bratislava", destination: "Trnava", purpose: "client visit", km: "56"},
		{day: demoDay(time.January, 9), origin: "Trnava", destination: "Bratislava", purpose: "return", km: "56"},
		{day: demoDay(time.January, 15), origin: "Bratislava", destination: "Nitra", purpose: "site inspection", km: "93"},
		{day: demoDay(time.January, 16), origin: "Nitra", destination: "Bratislava", purpose: "return", km: "93", fuel: "17.9", fuelCost: "28.10"},
		{day: demoDay(time.February, 3), origin: "Bratislava", destination: "Zilina", purpose: "quarterly review", km: "201"},
		{day: demoDay(time.February, 4), origin: "Zilina", destination: "Bratislava", purpose: "return", km: "201", fuel: "23.3", fuelCost: "36.60"},
		{day: demoDay(time.February, 20), origin: "Bratislava", destination: "Trnava", purpose: "client visit", km: "56"},
	})
}

func (h *Handler) loadAuditSeasonScenario(ctx context.Context) error {
	v, err := h.Service.CreateVehicle(ctx, engine.VehicleConfig{
		Name:             "VW Passat",
		LicensePlate:     "BL-904EM",
		Mode:             engine.ModeFuel,
		TankLiters:       decimal.RequireFromString("66"),
		BaselineFuelRate: decimal.RequireFromString("5.5"),
		InitialOdometer:  decimal.RequireFromString("142300"),
		Active:           true,
	})
	if err != nil {
		return err
	}
	// the second period runs at 8.0 l/100km against a 5.5 baseline,
	// far past the 1.20x band, and neither fill-up has a receipt
	return h.addDemoTrips(ctx, v.ID, []demoTrip{
		{day: demoDay(time.March, 2), origin: "Bratislava", destination: "Kosice", purpose: "audit kickoff", km: "402"},
		{day: demoDay(time.March, 5), origin: "Kosice", destination: "Bratislava", purpose: "return", km: "402", fuel: "44.2", fuelCost: "69.80"},
		{day: demoDay(time.March, 12), origin: "Bratislava", destination: "Banska Bystrica", purpose: "branch audit", km: "210"},
		{day: demoDay(time.March, 13), origin: "Banska Bystrica", destination: "Bratislava", purpose: "return", km: "210", fuel: "33.6", fuelCost: "53.10"},
	})
}

func (h *Handler) loadCompanyEVScenario(ctx context.Context) error {
	v, err := h.Service.CreateVehicle(ctx, engine.VehicleConfig{
		Name:               "Hyundai Kona Electric",
		LicensePlate:       "BA-119EV",
		Mode:               engine.ModeElectric,
		BatteryKWh:         decimal.RequireFromString("64"),
		BaselineEnergyRate: decimal.RequireFromString("16.5"),
		InitialOdometer:    decimal.RequireFromString("31050"),
		Active:             true,
	})
	if err != nil {
		return err
	}
	return h.addDemoTrips(ctx, v.ID, []demoTrip{
		{day: demoDay(time.January, 10), origin: "Bratislava", destination: "Trencin", purpose: "supplier meeting", km: "128"},
		{day: demoDay(time.January, 11), origin: "Trencin", destination: "Bratislava", purpose: "return", km: "128", energy: "44.5", energyCost: "13.40"},
		// dashboard shows 70% after preheating losses the math cannot see
		{day: demoDay(time.February, 1), origin: "Bratislava", destination: "Nitra", purpose: "training", km: "93", socPct: "70"},
		{day: demoDay(time.February, 2), origin: "Nitra", destination: "Bratislava", purpose: "return", km: "93"},
	})
}

func (h *Handler) loadPluginHybridScenario(ctx context.Context) error {
	v, err := h.Service.CreateVehicle(ctx, engine.VehicleConfig{
		Name:               "Toyota RAV4 PHEV",
		LicensePlate:       "BA-733PH",
		Mode:               engine.ModeDual,
		TankLiters:         decimal.RequireFromString("55"),
		BaselineFuelRate:   decimal.RequireFromString("6.8"),
		BatteryKWh:         decimal.RequireFromString("18.1"),
		BaselineEnergyRate: decimal.RequireFromString("16"),
		InitialOdometer:    decimal.RequireFromString("12400"),
		Active:             true,
	})
	if err != nil {
		return err
	}
	return h.addDemoTrips(ctx, v.ID, []demoTrip{
		// short hops stay fully electric, the long leg spills into fuel
		{day: demoDay(time.January, 6), origin: "Bratislava", destination: "Senec", purpose: "warehouse run", km: "29"},
		{day: demoDay(time.January, 7), origin: "Senec", destination: "Bratislava", purpose: "return", km: "29", energy: "10.2", energyCost: "3.10"},
		{day: demoDay(time.January, 20), origin: "Bratislava", destination: "Zilina", purpose: "factory visit", km: "201"},
		{day: demoDay(time.January, 21), origin: "Zilina", destination: "Bratislava", purpose: "return", km: "201", fuel: "18.4", fuelCost: "29.00", energy: "17.5", energyCost: "5.20"},
	})
}

/*
handlers.go - HTTP handlers for the trip ledger

PURPOSE:
  Exposes the logbook service via REST. Handlers parse the request,
  delegate to the service, and translate results to DTOs. No domain
  logic lives here; every computed value passes through unmodified.

ENDPOINTS:
  Vehicles:
    GET    /api/vehicles                       List vehicles
    POST   /api/vehicles                       Create vehicle
    GET    /api/vehicles/{id}                  Get vehicle
    PUT    /api/vehicles/{id}                  Update vehicle
    DELETE /api/vehicles/{id}                  Delete vehicle

  Trips:
    GET    /api/vehicles/{id}/trips?year=YYYY  List trips for a year
    POST   /api/vehicles/{id}/trips            Create trip
    PUT    /api/trips/{id}                     Update trip
    DELETE /api/trips/{id}                     Delete trip
    POST   /api/trips/{id}/odometer            Correct the ending reading

  Computed views:
    GET    /api/vehicles/{id}/grid?year=YYYY          Full derived grid
    POST   /api/vehicles/{id}/preview?year=YYYY       Live row preview
    GET    /api/vehicles/{id}/stats?year=YYYY         Aggregates
    POST   /api/vehicles/{id}/compensation?year=YYYY  Extra-km plan
    GET    /api/vehicles/{id}/export?year=YYYY&format=xlsx|pdf

  Routes and receipts:
    GET    /api/vehicles/{id}/routes           Remembered routes
    GET    /api/vehicles/{id}/receipts         List receipts
    POST   /api/vehicles/{id}/receipts         Save receipt
    POST   /api/receipts/{id}/link             Link receipt to trip

  Scenarios:
    GET    /api/scenarios                      List demo scenarios
    GET    /api/scenarios/current              Currently loaded scenario
    POST   /api/scenarios/load                 Load a demo scenario

ERROR HANDLING:
  Errors map to status codes through the engine's error taxonomy:
  - 400: invalid input, validation failures, out-of-band targets
  - 404: vehicle/trip/route/receipt not found
  - 409: energy mode change on a vehicle with trips
  - 500: everything else

SEE ALSO:
  - dto.go: request/response shapes
  - server.go: router and middleware
  - scenarios.go: demo data loaders
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tripbook/trip-engine/engine"
	"github.com/tripbook/trip-engine/export"
	"github.com/tripbook/trip-engine/logbook"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds the dependencies of the HTTP layer.
type Handler struct {
	Service *logbook.Service
	Log     zerolog.Logger
}

// NewHandler creates a handler over the given service.
func NewHandler(svc *logbook.Service, log zerolog.Logger) *Handler {
	return &Handler{
		Service: svc,
		Log:     log.With().Str("component", "api").Logger(),
	}
}

// =============================================================================
// VEHICLE HANDLERS
// =============================================================================

// ListVehicles returns all vehicles.
func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.Service.ListVehicles(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list vehicles", err)
		return
	}
	dtos := make([]VehicleDTO, len(vehicles))
	for i, v := range vehicles {
		dtos[i] = toVehicleDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateVehicle creates a new vehicle.
func (h *Handler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req VehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	created, err := h.Service.CreateVehicle(r.Context(), req.toConfig(uuid.Nil))
	if err != nil {
		writeDomainError(w, "Failed to create vehicle", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVehicleDTO(created))
}

// GetVehicle returns a single vehicle.
func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	v, err := h.Service.GetVehicle(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get vehicle", err)
		return
	}
	writeJSON(w, http.StatusOK, toVehicleDTO(v))
}

// UpdateVehicle updates a vehicle's configuration.
func (h *Handler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req VehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Service.UpdateVehicle(r.Context(), req.toConfig(id)); err != nil {
		writeDomainError(w, "Failed to update vehicle", err)
		return
	}
	v, err := h.Service.GetVehicle(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to reload vehicle", err)
		return
	}
	writeJSON(w, http.StatusOK, toVehicleDTO(v))
}

// DeleteVehicle removes a vehicle with its trips and routes.
func (h *Handler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.DeleteVehicle(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete vehicle", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRIP HANDLERS
// =============================================================================

// ListTrips returns the trips of one (vehicle, year).
func (h *Handler) ListTrips(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	trips, err := h.Service.TripsForYear(r.Context(), id, year)
	if err != nil {
		writeDomainError(w, "Failed to list trips", err)
		return
	}
	dtos := make([]TripDTO, len(trips))
	for i, t := range trips {
		dtos[i] = toTripDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTrip adds a trip to a vehicle's ledger.
func (h *Handler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req TripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rec, err := req.toRecord(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	created, err := h.Service.AddTrip(r.Context(), rec)
	if err != nil {
		writeDomainError(w, "Failed to create trip", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTripDTO(created))
}

// UpdateTrip replaces a trip's fields.
func (h *Handler) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	existing, err := h.Service.GetTrip(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load trip", err)
		return
	}
	var req TripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rec, err := req.toRecord(existing.VehicleID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	rec.ID = id
	updated, err := h.Service.UpdateTrip(r.Context(), rec)
	if err != nil {
		writeDomainError(w, "Failed to update trip", err)
		return
	}
	writeJSON(w, http.StatusOK, toTripDTO(updated))
}

// DeleteTrip removes a trip.
func (h *Handler) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.DeleteTrip(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete trip", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OverrideOdometer corrects a trip's ending odometer reading.
func (h *Handler) OverrideOdometer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req OdometerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	updated, err := h.Service.OverrideOdometer(r.Context(), id, req.Odometer)
	if err != nil {
		writeDomainError(w, "Failed to correct odometer", err)
		return
	}
	writeJSON(w, http.StatusOK, toTripDTO(updated))
}

// =============================================================================
// COMPUTED VIEWS
// =============================================================================

// GetGrid returns the full derived grid for one (vehicle, year).
func (h *Handler) GetGrid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	grid, err := h.Service.Grid(r.Context(), id, year)
	if err != nil {
		writeDomainError(w, "Failed to compute grid", err)
		return
	}
	writeJSON(w, http.StatusOK, toGridDTO(grid))
}

// PreviewTrip projects one unsaved trip edit against the stored ledger.
func (h *Handler) PreviewTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rec, err := req.Trip.toRecord(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	if req.ID != "" {
		tripID, err := uuid.Parse(req.ID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid trip id", err)
			return
		}
		rec.ID = tripID
	}
	pv, err := h.Service.Preview(r.Context(), id, year, rec)
	if err != nil {
		writeDomainError(w, "Failed to preview trip", err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewDTO{
		FuelRemaining: pv.FuelRemaining,
		Rate:          pv.Rate,
		MarginPct:     pv.MarginPct,
		OverLimit:     pv.OverLimit,
		Estimated:     pv.Estimated,
	})
}

// GetStats returns the aggregate header for one (vehicle, year).
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	stats, err := h.Service.Stats(r.Context(), id, year)
	if err != nil {
		writeDomainError(w, "Failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(stats))
}

// PlanCompensation returns the extra documented driving that reaches the
// target margin.
func (h *Handler) PlanCompensation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	var req CompensationRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	plan, err := h.Service.Compensation(r.Context(), id, year, req.TargetMargin)
	if err != nil {
		writeDomainError(w, "Failed to plan compensation", err)
		return
	}
	dto := CompensationDTO{ExtraKm: plan.ExtraKm, TargetRate: plan.TargetRate}
	if plan.Route != nil {
		rd := toRouteDTO(*plan.Route)
		dto.Route = &rd
	}
	writeJSON(w, http.StatusOK, dto)
}

// ListRoutes returns the vehicle's remembered routes.
func (h *Handler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	routes, err := h.Service.Routes(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list routes", err)
		return
	}
	dtos := make([]RouteDTO, len(routes))
	for i, rt := range routes {
		dtos[i] = toRouteDTO(rt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportLogbook streams the year's logbook as xlsx or pdf.
func (h *Handler) ExportLogbook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}

	lb, err := h.assembleLogbook(r, id, year)
	if err != nil {
		writeDomainError(w, "Failed to assemble logbook", err)
		return
	}

	filename := fmt.Sprintf("logbook-%s-%d.%s", lb.Config.LicensePlate, year, format)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	switch format {
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = export.WriteXLSX(w, lb)
	case "pdf":
		w.Header().Set("Content-Type", "application/pdf")
		err = export.WritePDF(w, lb)
	default:
		writeError(w, http.StatusBadRequest, "Unknown format (use xlsx or pdf)", nil)
		return
	}
	if err != nil {
		// headers are out by now; log and abort the stream
		h.Log.Error().Err(err).Str("format", format).Msg("export failed mid-stream")
	}
}

func (h *Handler) assembleLogbook(r *http.Request, id engine.VehicleID, year int) (export.Logbook, error) {
	ctx := r.Context()
	cfg, err := h.Service.GetVehicle(ctx, id)
	if err != nil {
		return export.Logbook{}, err
	}
	grid, err := h.Service.Grid(ctx, id, year)
	if err != nil {
		return export.Logbook{}, err
	}
	stats, err := h.Service.Stats(ctx, id, year)
	if err != nil {
		return export.Logbook{}, err
	}
	return export.Logbook{Config: cfg, Year: year, Grid: grid, Stats: stats}, nil
}

// =============================================================================
// RECEIPT HANDLERS
// =============================================================================

// ListReceipts returns the receipts visible to a vehicle.
func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	receipts, err := h.Service.Receipts(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list receipts", err)
		return
	}
	dtos := make([]ReceiptDTO, len(receipts))
	for i, rc := range receipts {
		dtos[i] = toReceiptDTO(rc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveReceipt stores a receipt extract for a vehicle.
func (h *Handler) SaveReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rc := engine.Receipt{VehicleID: &id, Liters: req.Liters, TotalCost: req.TotalCost}
	if req.Date != "" {
		date, err := parseDay(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		rc.Date = &date
	}
	saved, err := h.Service.SaveReceipt(r.Context(), rc)
	if err != nil {
		writeDomainError(w, "Failed to save receipt", err)
		return
	}
	writeJSON(w, http.StatusCreated, toReceiptDTO(saved))
}

// LinkReceipt attaches a receipt to a trip.
func (h *Handler) LinkReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req LinkReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	tripID, err := uuid.Parse(req.TripID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid trip id", err)
		return
	}
	if err := h.Service.LinkReceipt(r.Context(), id, tripID); err != nil {
		writeDomainError(w, "Failed to link receipt", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "linked"})
}

// =============================================================================
// HELPERS
// =============================================================================

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return uuid.Nil, false
	}
	return id, true
}

func yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Missing year parameter", nil)
		return 0, false
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1900 || year > 9999 {
		writeError(w, http.StatusBadRequest, "Invalid year parameter", err)
		return 0, false
	}
	return year, true
}

func parseDay(s string) (t time.Time, err error) {
	return time.Parse(dayFormat, s)
}

// writeDomainError maps the engine's error taxonomy to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, engine.ErrModeLocked):
		writeError(w, http.StatusConflict, message, err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

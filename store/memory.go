package store

import (
	"context"
	"sort"
	"sync"

	"github.com/tripbook/trip-engine/engine"
)

// Memory is the in-memory Store used by tests and by preview scratch
// computations. Safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	vehicles map[engine.VehicleID]engine.VehicleConfig
	trips    map[engine.TripID]engine.TripRecord
	routes   map[engine.RouteID]engine.Route
	receipts map[engine.ReceiptID]engine.Receipt
	settings map[string]string
	seq      map[engine.VehicleID]int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		vehicles: make(map[engine.VehicleID]engine.VehicleConfig),
		trips:    make(map[engine.TripID]engine.TripRecord),
		routes:   make(map[engine.RouteID]engine.Route),
		receipts: make(map[engine.ReceiptID]engine.Receipt),
		settings: make(map[string]string),
		seq:      make(map[engine.VehicleID]int),
	}
}

var _ Store = (*Memory)(nil)

// =============================================================================
// VEHICLES
// =============================================================================

func (m *Memory) CreateVehicle(_ context.Context, v engine.VehicleConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.ID] = v
	return nil
}

func (m *Memory) GetVehicle(_ context.Context, id engine.VehicleID) (engine.VehicleConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[id]
	if !ok {
		return engine.VehicleConfig{}, engine.ErrVehicleNotFound
	}
	return v, nil
}

func (m *Memory) ListVehicles(_ context.Context) ([]engine.VehicleConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.VehicleConfig, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) UpdateVehicle(_ context.Context, v engine.VehicleConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vehicles[v.ID]; !ok {
		return engine.ErrVehicleNotFound
	}
	m.vehicles[v.ID] = v
	return nil
}

func (m *Memory) DeleteVehicle(_ context.Context, id engine.VehicleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vehicles[id]; !ok {
		return engine.ErrVehicleNotFound
	}
	delete(m.vehicles, id)
	for tid, t := range m.trips {
		if t.VehicleID == id {
			delete(m.trips, tid)
		}
	}
	for rid, r := range m.routes {
		if r.VehicleID == id {
			delete(m.routes, rid)
		}
	}
	return nil
}

// =============================================================================
// TRIPS
// =============================================================================

func (m *Memory) CreateTrip(_ context.Context, t engine.TripRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[t.ID] = t
	if t.Seq > m.seq[t.VehicleID] {
		m.seq[t.VehicleID] = t.Seq
	}
	return nil
}

func (m *Memory) GetTrip(_ context.Context, id engine.TripID) (engine.TripRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	if !ok {
		return engine.TripRecord{}, engine.ErrTripNotFound
	}
	return t, nil
}

func (m *Memory) UpdateTrip(_ context.Context, t engine.TripRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[t.ID]; !ok {
		return engine.ErrTripNotFound
	}
	m.trips[t.ID] = t
	return nil
}

func (m *Memory) DeleteTrip(_ context.Context, id engine.TripID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[id]; !ok {
		return engine.ErrTripNotFound
	}
	delete(m.trips, id)
	return nil
}

func (m *Memory) NextSeq(_ context.Context, vehicleID engine.VehicleID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[vehicleID]++
	return m.seq[vehicleID], nil
}

func (m *Memory) ReplaceTrips(_ context.Context, vehicleID engine.VehicleID, year int, trips []engine.TripRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.trips {
		if t.VehicleID == vehicleID && t.Date.Year() == year {
			delete(m.trips, id)
		}
	}
	for _, t := range trips {
		m.trips[t.ID] = t
		if t.Seq > m.seq[vehicleID] {
			m.seq[vehicleID] = t.Seq
		}
	}
	return nil
}

func (m *Memory) TripsForYear(_ context.Context, vehicleID engine.VehicleID, year int) ([]engine.TripRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.TripRecord
	for _, t := range m.trips {
		if t.VehicleID == vehicleID && t.Date.Year() == year {
			out = append(out, t)
		}
	}
	return engine.SortChronological(out), nil
}

func (m *Memory) YearsWithTrips(_ context.Context, vehicleID engine.VehicleID) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[int]bool)
	for _, t := range m.trips {
		if t.VehicleID == vehicleID {
			seen[t.Date.Year()] = true
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

// =============================================================================
// ROUTES
// =============================================================================

func (m *Memory) UpsertRoute(_ context.Context, r engine.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Upsert key is (vehicle, origin, destination); a re-traveled route
	// refreshes its distance and usage count under its existing ID.
	for id, existing := range m.routes {
		if existing.VehicleID == r.VehicleID &&
			existing.Origin == r.Origin && existing.Destination == r.Destination {
			r.ID = id
			r.UsageCount = existing.UsageCount + 1
			m.routes[id] = r
			return nil
		}
	}
	if r.UsageCount == 0 {
		r.UsageCount = 1
	}
	m.routes[r.ID] = r
	return nil
}

func (m *Memory) RoutesForVehicle(_ context.Context, vehicleID engine.VehicleID) ([]engine.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Route
	for _, r := range m.routes {
		if r.VehicleID == vehicleID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount > out[j].UsageCount
		}
		return out[i].Origin < out[j].Origin
	})
	return out, nil
}

func (m *Memory) DeleteRoute(_ context.Context, id engine.RouteID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routes[id]; !ok {
		return engine.ErrRouteNotFound
	}
	delete(m.routes, id)
	return nil
}

// =============================================================================
// RECEIPTS
// =============================================================================

func (m *Memory) SaveReceipt(_ context.Context, r engine.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[r.ID] = r
	return nil
}

func (m *Memory) ReceiptsForVehicle(_ context.Context, vehicleID engine.VehicleID) ([]engine.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Receipt
	for _, r := range m.receipts {
		if r.VehicleID == nil || *r.VehicleID == vehicleID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *Memory) LinkReceipt(_ context.Context, receiptID engine.ReceiptID, tripID engine.TripID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[receiptID]
	if !ok {
		return engine.ErrReceiptNotFound
	}
	r.TripID = &tripID
	m.receipts[receiptID] = r
	return nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (m *Memory) GetSetting(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.settings[key]
	return v, ok, nil
}

func (m *Memory) PutSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *Memory) Close() error { return nil }

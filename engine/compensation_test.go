package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tripbook/trip-engine/engine"
)

// =============================================================================
// COMPENSATION PLANNING
// =============================================================================

func TestPlanCompensation_ComputesExtraKm(t *testing.T) {
	// GIVEN: 42.48 L added over 500 km, baseline 6.0, target margin 18%
	// WHEN: planning compensation
	// THEN: target rate 7.08 needs 600 km total, so 100 extra

	plan, err := engine.PlanCompensation(d("42.48"), d("500"), d("6"), d("0.18"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantEqual(t, plan.TargetRate, d("7.08"), "target rate")
	wantEqual(t, plan.ExtraKm, d("100"), "extra km")
}

func TestPlanCompensation_AlreadySafe_ZeroExtra(t *testing.T) {
	// GIVEN: consumption already under the target rate
	// WHEN: planning compensation
	// THEN: zero extra km, never negative

	plan, err := engine.PlanCompensation(d("30"), d("600"), d("6"), d("0.18"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantEqual(t, plan.ExtraKm, d("0"), "extra km")
}

func TestPlanCompensation_ZeroTargetUsesDefault(t *testing.T) {
	// GIVEN: no explicit target margin
	// WHEN: planning
	// THEN: the 18% default applies

	plan, err := engine.PlanCompensation(d("42.48"), d("500"), d("6"), d("0"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantEqual(t, plan.TargetRate, d("7.08"), "default target rate")
}

func TestPlanCompensation_TargetOutsideBandRejected(t *testing.T) {
	// GIVEN: a 25% target margin
	// WHEN: planning
	// THEN: rejected, the band is 16-19%

	_, err := engine.PlanCompensation(d("40"), d("500"), d("6"), d("0.25"), nil)
	if !errors.Is(err, engine.ErrTargetOutOfBand) {
		t.Fatalf("expected ErrTargetOutOfBand, got %v", err)
	}
}

func TestMatchRoute_ClosestWithinTolerance(t *testing.T) {
	// GIVEN: routes at 96, 105 and 150 km; 100 extra km needed
	// WHEN: matching
	// THEN: 96 wins (closest inside the +-10% band); 150 is out of band

	cfg := fuelVehicle()
	routes := []engine.Route{
		{ID: uuid.New(), VehicleID: cfg.ID, Origin: "BA", Destination: "TT", DistanceKm: d("105")},
		{ID: uuid.New(), VehicleID: cfg.ID, Origin: "BA", Destination: "NR", DistanceKm: d("96")},
		{ID: uuid.New(), VehicleID: cfg.ID, Origin: "BA", Destination: "ZA", DistanceKm: d("150")},
	}

	match := engine.MatchRoute(routes, d("100"))
	if match == nil {
		t.Fatal("expected a match")
	}
	wantEqual(t, match.DistanceKm, d("96"), "matched distance")
}

func TestMatchRoute_NothingInBand_ReturnsNil(t *testing.T) {
	// GIVEN: only a far-off route
	// WHEN: matching 100 km
	// THEN: nil, no forced match

	routes := []engine.Route{{ID: uuid.New(), DistanceKm: d("400")}}
	if engine.MatchRoute(routes, d("100")) != nil {
		t.Fatal("expected no match outside the tolerance band")
	}
}

// =============================================================================
// SUGGESTED FILL-UPS
// =============================================================================

func TestGrid_SuggestedFillUp_ClosesOpenWindowAtTarget(t *testing.T) {
	// GIVEN: 200 km in the open window, baseline 6.0, default 112% target
	// WHEN: computing the grid
	// THEN: the last open trip suggests 13.44 L, landing at 6.72

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	lb.drive(day(2025, time.September, 1), "120")
	t2 := lb.drive(day(2025, time.September, 4), "80")

	res := computeGrid(t, cfg, lb.rows)

	s, ok := res.SuggestedFillUps[t2.ID]
	if !ok {
		t.Fatal("open-window trip must carry a suggestion")
	}
	wantEqual(t, s.Liters, d("13.44"), "suggested liters")
	wantEqual(t, s.Rate, d("6.72"), "resulting rate")
}

func TestGrid_SuggestedFillUp_CountsPartialFuelAlreadyAdded(t *testing.T) {
	// GIVEN: 200 km open with 10 L already added partially
	// WHEN: computing the suggestion
	// THEN: only the remaining 3.44 L are suggested

	cfg := fuelVehicle()
	lb := newLedger(cfg)
	lb.drive(day(2025, time.September, 1), "120", withPartialFuel("10"))
	t2 := lb.drive(day(2025, time.September, 4), "80")

	res := computeGrid(t, cfg, lb.rows)

	wantEqual(t, res.SuggestedFillUps[t2.ID].Liters, d("3.44"), "remaining liters")
}

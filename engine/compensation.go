/*
compensation.go - Buffer-km planning, route matching, suggested fill-ups

PURPOSE:
  When a year's measured consumption drifts toward the legal limit, the
  practical fix is driving documented extra km so the season average lands
  safely under it. The planner answers "how many km", the route matcher
  answers "which remembered route covers roughly that", and the fill-up
  suggester answers the inverse question for the open window: "how many
  liters would close it at a safe rate".

TARGETS:
  Both targets are explicit parameters with deterministic defaults, so the
  same ledger always produces the same plan. The compensation target is a
  margin in the 16-19% band (default 18%); the fill-up target is a factor
  of the baseline in the 105-120% band (default 112%).

SEE ALSO:
  - margin.go: the limit this planner keeps the vehicle under
*/
package engine

import "github.com/shopspring/decimal"

// Safety bands for the deterministic targets.
var (
	MinCompensationMargin     = decimal.RequireFromString("0.16")
	MaxCompensationMargin     = decimal.RequireFromString("0.19")
	DefaultCompensationMargin = decimal.RequireFromString("0.18")

	MinFillTargetFactor     = decimal.RequireFromString("1.05")
	MaxFillTargetFactor     = decimal.RequireFromString("1.20")
	DefaultFillTargetFactor = decimal.RequireFromString("1.12")

	// RouteMatchTolerance is how far a remembered route's distance may
	// deviate from the needed extra km and still count as a match.
	RouteMatchTolerance = decimal.RequireFromString("0.10")
)

// CompensationPlan is the planner's answer for one (vehicle, year).
type CompensationPlan struct {
	ExtraKm    decimal.Decimal
	TargetRate decimal.Decimal // the rate the extra km would land on
	Route      *Route          // closest remembered route within tolerance
}

// PlanCompensation computes the extra km needed so that all fuel added this
// year, spread over all km driven plus the extra, lands at
// baseline x (1 + targetMargin). A zero targetMargin selects the default;
// anything outside the band is rejected. A non-positive baseline yields a
// zero plan because no target rate can be formed.
func PlanCompensation(totalFuel, totalKm, baseline, targetMargin decimal.Decimal, routes []Route) (CompensationPlan, error) {
	if targetMargin.IsZero() {
		targetMargin = DefaultCompensationMargin
	}
	if targetMargin.LessThan(MinCompensationMargin) || targetMargin.GreaterThan(MaxCompensationMargin) {
		return CompensationPlan{}, ErrTargetOutOfBand
	}
	if !baseline.IsPositive() {
		return CompensationPlan{}, nil
	}

	targetRate := baseline.Mul(decimal.NewFromInt(1).Add(targetMargin))
	requiredKm := totalFuel.Mul(hundred).Div(targetRate)

	extra := requiredKm.Sub(totalKm)
	if extra.IsNegative() {
		extra = decimal.Zero
	}

	plan := CompensationPlan{ExtraKm: extra, TargetRate: targetRate}
	if extra.IsPositive() {
		plan.Route = MatchRoute(routes, extra)
	}
	return plan, nil
}

// MatchRoute returns the remembered route whose distance is closest to
// wantKm within the tolerance band, or nil when none qualifies.
func MatchRoute(routes []Route, wantKm decimal.Decimal) *Route {
	if !wantKm.IsPositive() {
		return nil
	}
	maxDelta := wantKm.Mul(RouteMatchTolerance)

	var best *Route
	var bestDelta decimal.Decimal
	for i := range routes {
		delta := routes[i].DistanceKm.Sub(wantKm).Abs()
		if delta.GreaterThan(maxDelta) {
			continue
		}
		if best == nil || delta.LessThan(bestDelta) {
			best = &routes[i]
			bestDelta = delta
		}
	}
	return best
}

// suggestFillUps computes, for each trip in the open fuel window, the
// liters a full-tank fill at that point would need to close the window at
// baseline x targetFactor. Already-added partial fuel counts toward the
// target, so the suggestion can reach zero.
func suggestFillUps(events []trackEvent, open *ConsumptionPeriod, baseline, targetFactor decimal.Decimal) map[TripID]SuggestedFillUp {
	if open == nil || !baseline.IsPositive() {
		return nil
	}
	if targetFactor.IsZero() {
		targetFactor = DefaultFillTargetFactor
	}
	targetRate := baseline.Mul(targetFactor)

	inOpen := make(map[TripID]bool, len(open.TripIDs))
	for _, id := range open.TripIDs {
		inOpen[id] = true
	}

	out := make(map[TripID]SuggestedFillUp, len(open.TripIDs))
	var cumKm, cumFuel decimal.Decimal
	for _, ev := range events {
		if !inOpen[ev.id] {
			continue
		}
		cumKm = cumKm.Add(ev.km)
		cumFuel = cumFuel.Add(ev.added)
		if !cumKm.IsPositive() {
			continue
		}
		liters := cumKm.Mul(targetRate).Div(hundred).Sub(cumFuel)
		if liters.IsNegative() {
			liters = decimal.Zero
		}
		out[ev.id] = SuggestedFillUp{
			Liters: liters,
			Rate:   ratePer100(cumFuel.Add(liters), cumKm),
		}
	}
	return out
}

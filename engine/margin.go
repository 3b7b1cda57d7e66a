package engine

import "github.com/shopspring/decimal"

// =============================================================================
// LEGAL MARGIN - The 120% line
// =============================================================================
//
// Tax practice tolerates measured consumption up to 120% of the vehicle's
// declared baseline. The comparison is strict and exact: a period at
// precisely 1.20x the baseline is still compliant. Only closed periods are
// evaluated; an open window has no measured rate to judge. For dual-energy
// vehicles the evaluation runs on the fuel side only.

// LegalMarginFactor is the multiple of the baseline rate above which a
// closed period violates the margin.
var LegalMarginFactor = decimal.RequireFromString("1.20")

// marginReport is the outcome of evaluating closed periods.
type marginReport struct {
	worstPct decimal.Decimal // worst period vs baseline, in percent over
	has      bool            // false until a period has closed
	over     bool            // worst period exceeds the legal margin
	warnings map[TripID]bool // trips inside violating periods
}

// evaluateMargin finds the worst closed period and flags every trip inside
// periods over the limit. A non-positive baseline makes the margin
// undefined; nothing is flagged and has stays false.
func evaluateMargin(closed []ConsumptionPeriod, baseline decimal.Decimal) marginReport {
	mr := marginReport{warnings: make(map[TripID]bool)}
	if !baseline.IsPositive() {
		return mr
	}
	limit := baseline.Mul(LegalMarginFactor)

	for _, p := range closed {
		marginPct := p.Rate.Sub(baseline).Div(baseline).Mul(hundred)
		if !mr.has || marginPct.GreaterThan(mr.worstPct) {
			mr.worstPct = marginPct
			mr.has = true
		}
		if p.Rate.GreaterThan(limit) {
			mr.over = true
			for _, id := range p.TripIDs {
				mr.warnings[id] = true
			}
		}
	}
	return mr
}

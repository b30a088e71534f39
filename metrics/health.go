/*
health.go - Data-quality health scoring per (store, supplier)

PURPOSE:
  Scores the trustworthiness of the raw data feeding every other metric.
  Four independent penalty signals per (store, supplier) group:

    MISSING_RRP    fraction of the supplier's catalog without a reference
                   retail price
    EXTREME_PRICE  fraction of the group's sales facts priced outside
                   [low*rrp, high*rrp]
    NEGATIVE_QTY   fraction of the group's sales facts with quantity < 0
    SUPPLIER_DRIFT supplier mean unit price moved beyond tolerance versus
                   its trailing baseline

SCORING:
  Fraction signals deduct fraction x weight; drift deducts its full weight
  when tripped. health_score = max(0, 100 - sum of deductions), so the
  score is monotonically non-increasing in every signal. Any signal with a
  positive deduction also records its anomaly flag.

EMPTY GROUPS:
  A group with zero sales facts in scope scores 100 with no flags. Absence
  of evidence is not evidence of poor health; this is deliberate policy.

DRIFT BASELINE:
  The scope window is split at its midpoint: facts before it form the
  trailing baseline, facts after form the current period. With an
  unbounded scope the observed date range is split instead. Drift is only
  evaluated when both halves have priced facts and the baseline mean is
  positive.

SEE ALSO:
  - params.go: HealthParams weights and thresholds
  - promo.go, priceindex.go: Consumers of the same fact relations
*/
package metrics

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// HealthEngine computes HealthScoreResult rows and persists them.
type HealthEngine struct {
	Store Store

	// Now stamps ComputedAt; tests pin it for reproducible rows.
	Now func() time.Time
}

// NewHealthEngine returns an engine bound to a store handle.
func NewHealthEngine(s Store) *HealthEngine {
	return &HealthEngine{Store: s}
}

type healthGroup struct {
	store    StoreID
	supplier SupplierID
}

// Compute reads facts, scores every (store, supplier) group, writes the
// result table with REPLACE_BY_KEY semantics, and returns the rows.
func (e *HealthEngine) Compute(ctx context.Context, params HealthParams) ([]HealthScoreResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	catalog, err := e.Store.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	facts, err := e.Store.SalesFacts(ctx, Window{})
	if err != nil {
		return nil, err
	}

	supplierOf := make(map[SKUID]SupplierID, len(catalog))
	rrpOf := make(map[SKUID]decimal.NullDecimal, len(catalog))
	for _, c := range catalog {
		supplierOf[c.SKUID] = c.SupplierID
		rrpOf[c.SKUID] = c.RRP
	}

	// Missing-RRP fraction is a catalog property of the supplier, shared
	// by all of its store groups.
	missingFrac := missingRRPFractions(catalog)

	// Groups come from the full fact set; signals from the scoped subset.
	// A group present overall but empty in scope still gets a row.
	groups := map[healthGroup][]RawSalesFact{}
	var scoped []RawSalesFact
	for _, f := range facts {
		sup, ok := supplierOf[f.SKUID]
		if !ok {
			continue // uncataloged sku, no supplier to attribute
		}
		g := healthGroup{store: f.StoreID, supplier: sup}
		if _, seen := groups[g]; !seen {
			groups[g] = nil
		}
		if params.Scope.Contains(f.Date) {
			groups[g] = append(groups[g], f)
			scoped = append(scoped, f)
		}
	}

	drift := supplierDrift(scoped, supplierOf, params.Scope)

	now := e.now()
	rows := make([]HealthScoreResult, 0, len(groups))
	for g, subset := range groups {
		rows = append(rows, scoreGroup(g, subset, missingFrac[g.supplier], drift[g.supplier], rrpOf, params, now))
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StoreID != rows[j].StoreID {
			return rows[i].StoreID < rows[j].StoreID
		}
		return rows[i].SupplierID < rows[j].SupplierID
	})

	if err := e.Store.ReplaceHealthScores(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (e *HealthEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// missingRRPFractions returns, per supplier, the fraction of its catalog
// SKUs without a reference price.
func missingRRPFractions(catalog []CatalogFact) map[SupplierID]decimal.Decimal {
	total := map[SupplierID]int{}
	missing := map[SupplierID]int{}
	for _, c := range catalog {
		total[c.SupplierID]++
		if !c.RRP.Valid {
			missing[c.SupplierID]++
		}
	}
	out := make(map[SupplierID]decimal.Decimal, len(total))
	for sup, n := range total {
		out[sup] = fracPct(missing[sup], n).Div(dHundred)
	}
	return out
}

// supplierDrift returns, per supplier, the relative change (percent) of
// the current mean unit price versus the trailing baseline mean. Suppliers
// without both halves populated are absent from the map.
func supplierDrift(scoped []RawSalesFact, supplierOf map[SKUID]SupplierID, scope Window) map[SupplierID]decimal.Decimal {
	if len(scoped) == 0 {
		return nil
	}

	var mid time.Time
	if scope.Bounded() {
		mid = scope.Midpoint()
	} else {
		lo, hi := scoped[0].Date, scoped[0].Date
		for _, f := range scoped[1:] {
			if f.Date.Before(lo) {
				lo = f.Date
			}
			if f.Date.After(hi) {
				hi = f.Date
			}
		}
		mid = Window{From: lo, To: hi}.Midpoint()
	}

	base := map[SupplierID][]decimal.Decimal{}
	cur := map[SupplierID][]decimal.Decimal{}
	for _, f := range scoped {
		sup := supplierOf[f.SKUID]
		if f.Date.Before(mid) {
			base[sup] = append(base[sup], f.UnitPrice)
		} else {
			cur[sup] = append(cur[sup], f.UnitPrice)
		}
	}

	out := map[SupplierID]decimal.Decimal{}
	for sup, basePrices := range base {
		curPrices := cur[sup]
		if len(curPrices) == 0 {
			continue
		}
		baseMean := meanDecimal(basePrices)
		if !baseMean.IsPositive() {
			continue
		}
		curMean := meanDecimal(curPrices)
		out[sup] = curMean.Sub(baseMean).Abs().Div(baseMean).Mul(dHundred)
	}
	return out
}

func scoreGroup(
	g healthGroup,
	facts []RawSalesFact,
	missingFrac decimal.Decimal,
	driftPct decimal.Decimal,
	rrpOf map[SKUID]decimal.NullDecimal,
	params HealthParams,
	now time.Time,
) HealthScoreResult {
	row := HealthScoreResult{
		StoreID:    g.store,
		SupplierID: g.supplier,
		ComputedAt: now,
	}

	// Zero scoped facts: perfect score, no flags, by policy.
	if len(facts) == 0 {
		row.HealthScore = dHundred
		row.MissingRRPPct = dZero
		row.ExtremePricePct = dZero
		row.NegativeQtyPct = dZero
		row.DriftPct = dZero
		return row
	}

	low := decimal.NewFromFloat(params.ExtremePriceMultiplierLow)
	high := decimal.NewFromFloat(params.ExtremePriceMultiplierHigh)

	negatives, extremes, priced := 0, 0, 0
	for _, f := range facts {
		if f.Quantity.IsNegative() {
			negatives++
		}
		rrp, ok := rrpOf[f.SKUID]
		if !ok || !rrp.Valid || !rrp.Decimal.IsPositive() {
			continue // no reference price to compare against
		}
		priced++
		if f.UnitPrice.LessThan(rrp.Decimal.Mul(low)) || f.UnitPrice.GreaterThan(rrp.Decimal.Mul(high)) {
			extremes++
		}
	}

	extremeFrac := dZero
	if priced > 0 {
		extremeFrac = fracPct(extremes, priced).Div(dHundred)
	}
	negFrac := fracPct(negatives, len(facts)).Div(dHundred)

	deduction := missingFrac.Mul(decimal.NewFromFloat(params.MissingRRPWeight)).
		Add(extremeFrac.Mul(decimal.NewFromFloat(params.ExtremePriceWeight))).
		Add(negFrac.Mul(decimal.NewFromFloat(params.NegativeQtyWeight)))

	drifted := driftPct.GreaterThan(decimal.NewFromFloat(params.DriftTolerancePct))
	if drifted {
		deduction = deduction.Add(decimal.NewFromFloat(params.SupplierDriftWeight))
	}

	row.HealthScore = round2(clamp(dHundred.Sub(deduction), dZero, dHundred))
	row.MissingRRPPct = round2(missingFrac.Mul(dHundred))
	row.ExtremePricePct = round2(extremeFrac.Mul(dHundred))
	row.NegativeQtyPct = round2(negFrac.Mul(dHundred))
	row.DriftPct = round2(driftPct)

	if missingFrac.IsPositive() && params.MissingRRPWeight > 0 {
		row.Flags = append(row.Flags, FlagMissingRRP)
	}
	if extremeFrac.IsPositive() && params.ExtremePriceWeight > 0 {
		row.Flags = append(row.Flags, FlagExtremePrice)
	}
	if negFrac.IsPositive() && params.NegativeQtyWeight > 0 {
		row.Flags = append(row.Flags, FlagNegativeQty)
	}
	if drifted && params.SupplierDriftWeight > 0 {
		row.Flags = append(row.Flags, FlagSupplierDrift)
	}
	row.Flags = row.Flags.Normalize()
	return row
}

/*
promo.go - Promotion uplift, coverage and price impact per SKU

PURPOSE:
  Compares a promotion window against a baseline window for one promo run
  and produces one PromoSummaryResult per participating SKU (a SKU with at
  least one promo-flagged fact in the promo window).

DEFINITIONS (fixed):
  baseline_volume  mean daily quantity over the baseline window: total
                   quantity / calendar days, so zero-sale days count
  promo_volume     same over the promo window
  uplift_pct       (promo - baseline) / baseline * 100; NULL when the
                   baseline volume is zero - "undefined" is not "zero"
  coverage_pct     distinct stores selling the SKU on promo in the promo
                   window / distinct stores that carry the SKU * 100
  price_impact     mean promo unit price - mean baseline unit price;
                   negative means a deeper discount; NULL when the
                   baseline has no priced rows

  Store carry is derived from the sales history: a store carries a SKU if
  it has ever sold it. The catalog has no store dimension, so the sales
  history is the authority on distribution.

DETERMINISM:
  Output is a pure function of facts and params: fixed rounding, fixed row
  order. Rerunning on identical inputs yields identical rows.

SEE ALSO:
  - trend.go: Longitudinal projection over this table
  - params.go: PromoParams
*/
package metrics

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PromoEngine computes PromoSummaryResult rows and persists them.
type PromoEngine struct {
	Store Store
	Now   func() time.Time
}

// NewPromoEngine returns an engine bound to a store handle.
func NewPromoEngine(s Store) *PromoEngine {
	return &PromoEngine{Store: s}
}

// Compute produces one row per (run, sku), writes them with
// REPLACE_BY_KEY semantics and returns them.
func (e *PromoEngine) Compute(ctx context.Context, params PromoParams) ([]PromoSummaryResult, error) {
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
	for _, c := range catalog {
		supplierOf[c.SKUID] = c.SupplierID
	}

	type skuFacts struct {
		promo     []RawSalesFact
		baseline  []RawSalesFact
		carriers  map[StoreID]struct{}
	}
	bySKU := map[SKUID]*skuFacts{}
	get := func(sku SKUID) *skuFacts {
		sf, ok := bySKU[sku]
		if !ok {
			sf = &skuFacts{carriers: map[StoreID]struct{}{}}
			bySKU[sku] = sf
		}
		return sf
	}

	for _, f := range facts {
		sf := get(f.SKUID)
		sf.carriers[f.StoreID] = struct{}{}
		switch {
		case f.PromoFlag && params.Promo.Contains(f.Date):
			sf.promo = append(sf.promo, f)
		case !f.PromoFlag && params.Baseline.Contains(f.Date):
			sf.baseline = append(sf.baseline, f)
		}
	}

	now := e.now()
	var rows []PromoSummaryResult
	for sku, sf := range bySKU {
		if len(sf.promo) == 0 {
			continue // sku did not participate in this run
		}
		rows = append(rows, e.summarize(params, sku, supplierOf[sku], sf.promo, sf.baseline, len(sf.carriers), now))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SKUID < rows[j].SKUID })

	if err := e.Store.ReplacePromoSummaries(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (e *PromoEngine) summarize(
	params PromoParams,
	sku SKUID,
	supplier SupplierID,
	promo, baseline []RawSalesFact,
	carrierCount int,
	now time.Time,
) PromoSummaryResult {
	row := PromoSummaryResult{
		PromoRunID: params.RunID,
		SKUID:      sku,
		SupplierID: supplier,
		PromoStart: params.Promo.From,
		PromoEnd:   params.Promo.To,
		ComputedAt: now,
	}

	row.BaselineVolume = round2(meanDailyQuantity(baseline, params.Baseline))
	row.PromoVolume = round2(meanDailyQuantity(promo, params.Promo))

	// Undefined ratio propagates as null, never zero.
	if !row.BaselineVolume.IsZero() {
		uplift := row.PromoVolume.Sub(row.BaselineVolume).Div(row.BaselineVolume).Mul(dHundred)
		row.UpliftPct = nullDec(round2(uplift))
	}

	promoStores := map[StoreID]struct{}{}
	for _, f := range promo {
		promoStores[f.StoreID] = struct{}{}
	}
	row.CoveragePct = round2(fracPct(len(promoStores), carrierCount))

	if len(baseline) > 0 {
		impact := meanUnitPrice(promo).Sub(meanUnitPrice(baseline))
		row.PriceImpact = nullDec(round2(impact))
	}
	return row
}

func (e *PromoEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// meanDailyQuantity is total quantity over calendar days of the window.
func meanDailyQuantity(facts []RawSalesFact, w Window) decimal.Decimal {
	days := w.Days()
	if days == 0 {
		return dZero
	}
	total := dZero
	for _, f := range facts {
		total = total.Add(f.Quantity)
	}
	return total.Div(decimal.NewFromInt(int64(days)))
}

func meanUnitPrice(facts []RawSalesFact) decimal.Decimal {
	prices := make([]decimal.Decimal, len(facts))
	for i, f := range facts {
		prices[i] = f.UnitPrice
	}
	return meanDecimal(prices)
}

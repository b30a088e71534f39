/*
trend.go - Longitudinal view over promotion runs

PURPOSE:
  Rolls the PromoSummaryResult history into ordered sequences for
  comparison over time: per SKU always, per supplier optionally. This is a
  grouping/ordering projection - no new business arithmetic beyond the
  optional volume-weighted supplier rollup.

PROJECTION CONTRACT:
  Every sku-level output row equals its source PromoSummaryResult row,
  reordered by promo window start and tagged with a run sequence number.
  The table has no independent source of truth.

SUPPLIER ROLLUP:
  Per (supplier, run): promo-volume-weighted mean of uplift_pct and
  coverage_pct across the supplier's SKUs. Runs with null uplift are
  excluded from the means, never treated as zero. If every contributing
  weight is zero the plain mean is used; if every run is null-uplift the
  rollup metrics stay null. Volumes are summed; price impact is not rolled
  up (it stays null at supplier level).

SEE ALSO:
  - promo.go: Producer of the source table
*/
package metrics

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TrendAggregator projects PromoSummaryResult into PromoTrendResult.
type TrendAggregator struct {
	Store Store
	Now   func() time.Time
}

// NewTrendAggregator returns an aggregator bound to a store handle.
func NewTrendAggregator(s Store) *TrendAggregator {
	return &TrendAggregator{Store: s}
}

// Compute reads the full promo summary history, orders it per group,
// writes the projection with REPLACE_BY_KEY semantics and returns it.
func (e *TrendAggregator) Compute(ctx context.Context, params TrendParams) ([]PromoTrendResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	history, err := e.Store.PromoSummaries(ctx)
	if err != nil {
		return nil, err
	}
	history = filterSummaries(history, params)

	now := e.now()
	rows := skuSequences(history, now)
	if params.SupplierRollup {
		rows = append(rows, supplierRollup(history, now)...)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.GroupID != b.GroupID {
			return a.GroupID < b.GroupID
		}
		return a.RunSeq < b.RunSeq
	})

	if err := e.Store.ReplacePromoTrends(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (e *TrendAggregator) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func filterSummaries(history []PromoSummaryResult, params TrendParams) []PromoSummaryResult {
	if len(params.SKUs) == 0 && len(params.Suppliers) == 0 {
		return history
	}
	skus := map[SKUID]struct{}{}
	for _, s := range params.SKUs {
		skus[s] = struct{}{}
	}
	sups := map[SupplierID]struct{}{}
	for _, s := range params.Suppliers {
		sups[s] = struct{}{}
	}
	var out []PromoSummaryResult
	for _, r := range history {
		if len(skus) > 0 {
			if _, ok := skus[r.SKUID]; !ok {
				continue
			}
		}
		if len(sups) > 0 {
			if _, ok := sups[r.SupplierID]; !ok {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// skuSequences orders each SKU's runs by promo start (run id as tiebreak)
// and copies the summary values through untouched.
func skuSequences(history []PromoSummaryResult, now time.Time) []PromoTrendResult {
	bySKU := map[SKUID][]PromoSummaryResult{}
	for _, r := range history {
		bySKU[r.SKUID] = append(bySKU[r.SKUID], r)
	}

	var rows []PromoTrendResult
	for sku, runs := range bySKU {
		sortRuns(runs)
		for i, r := range runs {
			rows = append(rows, PromoTrendResult{
				Level:          TrendLevelSKU,
				GroupID:        string(sku),
				SKUID:          sku,
				SupplierID:     r.SupplierID,
				PromoRunID:     r.PromoRunID,
				RunSeq:         i + 1,
				PromoStart:     r.PromoStart,
				BaselineVolume: r.BaselineVolume,
				PromoVolume:    r.PromoVolume,
				UpliftPct:      r.UpliftPct,
				CoveragePct:    nullDec(r.CoveragePct),
				PriceImpact:    r.PriceImpact,
				ComputedAt:     now,
			})
		}
	}
	return rows
}

// supplierRollup aggregates each supplier's runs across SKUs.
func supplierRollup(history []PromoSummaryResult, now time.Time) []PromoTrendResult {
	type supRun struct {
		supplier SupplierID
		run      PromoRunID
	}
	groups := map[supRun][]PromoSummaryResult{}
	for _, r := range history {
		if r.SupplierID == "" {
			continue // uncataloged sku, nothing to roll up under
		}
		k := supRun{supplier: r.SupplierID, run: r.PromoRunID}
		groups[k] = append(groups[k], r)
	}

	bySupplier := map[SupplierID][]PromoTrendResult{}
	for k, runs := range groups {
		row := PromoTrendResult{
			Level:      TrendLevelSupplier,
			GroupID:    string(k.supplier),
			SupplierID: k.supplier,
			PromoRunID: k.run,
			PromoStart: runs[0].PromoStart,
			ComputedAt: now,
		}

		var uplifts, coverages, weights []decimal.Decimal
		for _, r := range runs {
			row.BaselineVolume = row.BaselineVolume.Add(r.BaselineVolume)
			row.PromoVolume = row.PromoVolume.Add(r.PromoVolume)
			if r.PromoStart.Before(row.PromoStart) {
				row.PromoStart = r.PromoStart
			}
			if !r.UpliftPct.Valid {
				continue // undefined uplift never contributes as zero
			}
			uplifts = append(uplifts, r.UpliftPct.Decimal)
			coverages = append(coverages, r.CoveragePct)
			weights = append(weights, r.PromoVolume)
		}

		if len(uplifts) > 0 {
			row.UpliftPct = nullDec(round2(weightedMean(uplifts, weights)))
			row.CoveragePct = nullDec(round2(weightedMean(coverages, weights)))
		}
		bySupplier[k.supplier] = append(bySupplier[k.supplier], row)
	}

	var rows []PromoTrendResult
	for _, runs := range bySupplier {
		sort.Slice(runs, func(i, j int) bool {
			if !runs[i].PromoStart.Equal(runs[j].PromoStart) {
				return runs[i].PromoStart.Before(runs[j].PromoStart)
			}
			return runs[i].PromoRunID < runs[j].PromoRunID
		})
		for i := range runs {
			runs[i].RunSeq = i + 1
		}
		rows = append(rows, runs...)
	}
	return rows
}

func sortRuns(runs []PromoSummaryResult) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].PromoStart.Equal(runs[j].PromoStart) {
			return runs[i].PromoStart.Before(runs[j].PromoStart)
		}
		return runs[i].PromoRunID < runs[j].PromoRunID
	})
}

// weightedMean falls back to the plain mean when all weights are zero.
func weightedMean(values, weights []decimal.Decimal) decimal.Decimal {
	totalW := sumDecimal(weights)
	if totalW.IsZero() {
		return meanDecimal(values)
	}
	sum := dZero
	for i, v := range values {
		sum = sum.Add(v.Mul(weights[i]))
	}
	return sum.Div(totalW)
}

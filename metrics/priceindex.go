/*
priceindex.go - Competitor price index per (sku, store, competitor)

PURPOSE:
  Expresses each competitor's observed price as a percentage of the
  reference brand's own price for the same SKU, store and window:

    index_value = mean(competitor observed) / mean(reference price) * 100

  Means are taken per side first; the index is a ratio of means, never a
  mean of per-row ratios, so small-denominator rows cannot dominate.

BANDS:
  index > premium_above            PREMIUM
  discounted_below <= index <= ..  NEAR_MARKET (boundaries inclusive)
  index < discounted_below         DISCOUNTED
  Band assignment is a pure, total function of the index value.

MISSING REFERENCE:
  A (sku, store, competitor) combination whose reference brand has no
  priced sales fact in the window (or a non-positive mean, a precondition
  violation) produces NO row - a band is never defaulted. Compute still
  writes and returns the valid rows, and additionally returns a
  MissingReferencePriceError listing every skipped combination, so callers
  can surface both.

SEE ALSO:
  - params.go: PriceIndexParams thresholds
  - errors.go: MissingReferencePriceError
*/
package metrics

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PriceIndexEngine computes PriceIndexResult rows and persists them.
type PriceIndexEngine struct {
	Store Store
	Now   func() time.Time
}

// NewPriceIndexEngine returns an engine bound to a store handle.
func NewPriceIndexEngine(s Store) *PriceIndexEngine {
	return &PriceIndexEngine{Store: s}
}

// BandFor assigns the price band for an index value.
func (p PriceIndexParams) BandFor(index decimal.Decimal) PriceBand {
	switch {
	case index.GreaterThan(decimal.NewFromFloat(p.PremiumAbove)):
		return BandPremium
	case index.GreaterThanOrEqual(decimal.NewFromFloat(p.DiscountedBelow)):
		return BandNearMarket
	default:
		return BandDiscounted
	}
}

// Compute writes and returns one row per (sku, store, competitor) that has
// both competitor observations and a reference price in the window. When
// combinations are skipped for a missing reference price, the rows are
// still returned together with a non-nil *MissingReferencePriceError.
func (e *PriceIndexEngine) Compute(ctx context.Context, params PriceIndexParams) ([]PriceIndexResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	observations, err := e.Store.CompetitorPrices(ctx, params.Scope)
	if err != nil {
		return nil, err
	}
	sales, err := e.Store.SalesFacts(ctx, params.Scope)
	if err != nil {
		return nil, err
	}

	type refKey struct {
		sku   SKUID
		store StoreID
	}
	refPrices := map[refKey][]decimal.Decimal{}
	for _, f := range sales {
		k := refKey{sku: f.SKUID, store: f.StoreID}
		refPrices[k] = append(refPrices[k], f.UnitPrice)
	}

	competitor := map[PriceRefKey][]decimal.Decimal{}
	for _, o := range observations {
		k := PriceRefKey{SKUID: o.SKUID, StoreID: o.StoreID, CompetitorID: o.CompetitorID}
		competitor[k] = append(competitor[k], o.ObservedPrice)
	}

	combos := make([]PriceRefKey, 0, len(competitor))
	for k := range competitor {
		combos = append(combos, k)
	}
	sort.Slice(combos, func(i, j int) bool {
		a, b := combos[i], combos[j]
		if a.SKUID != b.SKUID {
			return a.SKUID < b.SKUID
		}
		if a.StoreID != b.StoreID {
			return a.StoreID < b.StoreID
		}
		return a.CompetitorID < b.CompetitorID
	})

	now := e.now()
	var rows []PriceIndexResult
	var missing []PriceRefKey
	for _, k := range combos {
		refs := refPrices[refKey{sku: k.SKUID, store: k.StoreID}]
		refMean := meanDecimal(refs)
		if len(refs) == 0 || !refMean.IsPositive() {
			missing = append(missing, k)
			continue
		}
		compMean := meanDecimal(competitor[k])
		index := round2(compMean.Div(refMean).Mul(dHundred))
		rows = append(rows, PriceIndexResult{
			SKUID:           k.SKUID,
			StoreID:         k.StoreID,
			CompetitorID:    k.CompetitorID,
			ReferencePrice:  round2(refMean),
			CompetitorPrice: round2(compMean),
			IndexValue:      index,
			Band:            params.BandFor(index),
			ComputedAt:      now,
		})
	}

	if err := e.Store.ReplacePriceIndexes(ctx, rows); err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return rows, &MissingReferencePriceError{Combos: missing}
	}
	return rows, nil
}

func (e *PriceIndexEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

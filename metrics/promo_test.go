package metrics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsight/retail-metrics/metrics"
)

func newPromoEngine(s metrics.Store) *metrics.PromoEngine {
	e := metrics.NewPromoEngine(s)
	e.Now = func() time.Time { return fixedNow }
	return e
}

func promoRunParams() metrics.PromoParams {
	return metrics.PromoParams{
		RunID:    "RUN-1",
		Baseline: win(day(2026, 1, 1), day(2026, 1, 10)),
		Promo:    win(day(2026, 2, 1), day(2026, 2, 10)),
	}
}

func TestPromoUpliftCoverageAndPriceImpact(t *testing.T) {
	// GIVEN 100 baseline units over 10 days and 130 promo units over 10
	// days, sold promo in 2 of the 3 stores that ever carried the SKU
	m := seedStore(t,
		[]metrics.CatalogFact{catalogRow("SKU-1", "SUP-A", "10")},
		[]metrics.RawSalesFact{
			sale("S1", "SKU-1", day(2026, 1, 1), "40", "10", false),
			sale("S2", "SKU-1", day(2026, 1, 2), "60", "10", false),
			sale("S1", "SKU-1", day(2026, 2, 1), "70", "8", true),
			sale("S2", "SKU-1", day(2026, 2, 2), "60", "8", true),
			// S3 carries the SKU but never sold it on promo.
			sale("S3", "SKU-1", day(2026, 3, 1), "5", "10", false),
		})
	engine := newPromoEngine(m)

	// WHEN computing the run
	rows, err := engine.Compute(context.Background(), promoRunParams())

	// THEN volume means, uplift, coverage and price impact all line up
	require.NoError(t, err)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, metrics.PromoRunID("RUN-1"), r.PromoRunID)
	assert.Equal(t, metrics.SupplierID("SUP-A"), r.SupplierID)
	assert.True(t, r.BaselineVolume.Equal(dec("10")), "baseline %s", r.BaselineVolume)
	assert.True(t, r.PromoVolume.Equal(dec("13")), "promo %s", r.PromoVolume)
	require.True(t, r.UpliftPct.Valid)
	assert.True(t, r.UpliftPct.Decimal.Equal(dec("30")), "uplift %s", r.UpliftPct.Decimal)
	assert.True(t, r.CoveragePct.Equal(dec("66.67")), "coverage %s", r.CoveragePct)
	require.True(t, r.PriceImpact.Valid)
	assert.True(t, r.PriceImpact.Decimal.Equal(dec("-2")), "impact %s", r.PriceImpact.Decimal)
}

func TestPromoUpliftNullWhenNoBaseline(t *testing.T) {
	// GIVEN a SKU that only ever sold on promo
	m := seedStore(t,
		[]metrics.CatalogFact{catalogRow("SKU-1", "SUP-A", "10")},
		[]metrics.RawSalesFact{
			sale("S1", "SKU-1", day(2026, 2, 1), "30", "8", true),
		})
	engine := newPromoEngine(m)

	// WHEN computing the run
	rows, err := engine.Compute(context.Background(), promoRunParams())

	// THEN uplift and price impact are null, never zero
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].UpliftPct.Valid)
	assert.False(t, rows[0].PriceImpact.Valid)
	assert.True(t, rows[0].BaselineVolume.IsZero())
	assert.True(t, rows[0].PromoVolume.Equal(dec("3")))
	assert.True(t, rows[0].CoveragePct.Equal(dec("100")))
}

func TestPromoNonParticipatingSKUExcluded(t *testing.T) {
	// GIVEN one participating SKU and one that never sold on promo
	m := seedStore(t,
		[]metrics.CatalogFact{
			catalogRow("SKU-1", "SUP-A", "10"),
			catalogRow("SKU-2", "SUP-A", "5"),
		},
		[]metrics.RawSalesFact{
			sale("S1", "SKU-1", day(2026, 1, 1), "10", "10", false),
			sale("S1", "SKU-1", day(2026, 2, 1), "20", "8", true),
			sale("S1", "SKU-2", day(2026, 1, 1), "10", "5", false),
			// Promo-flagged but outside the promo window: not participation.
			sale("S1", "SKU-2", day(2026, 3, 15), "10", "4", true),
		})
	engine := newPromoEngine(m)

	// WHEN computing the run
	rows, err := engine.Compute(context.Background(), promoRunParams())

	// THEN only the participating SKU gets a row
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, metrics.SKUID("SKU-1"), rows[0].SKUID)
}

func TestPromoZeroSaleDaysCountInMeans(t *testing.T) {
	// GIVEN a single sale of 10 units inside a 10-day window
	m := seedStore(t,
		[]metrics.CatalogFact{catalogRow("SKU-1", "SUP-A", "10")},
		[]metrics.RawSalesFact{
			sale("S1", "SKU-1", day(2026, 2, 3), "10", "8", true),
		})
	engine := newPromoEngine(m)

	// WHEN computing
	rows, err := engine.Compute(context.Background(), promoRunParams())

	// THEN volume is total over calendar days, not over selling days
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].PromoVolume.Equal(dec("1")), "got %s", rows[0].PromoVolume)
}

func TestPromoRerunIsIdempotent(t *testing.T) {
	// GIVEN a computed promo summary
	m := seedStore(t,
		[]metrics.CatalogFact{catalogRow("SKU-1", "SUP-A", "10")},
		[]metrics.RawSalesFact{
			sale("S1", "SKU-1", day(2026, 1, 1), "10", "10", false),
			sale("S1", "SKU-1", day(2026, 2, 1), "20", "8", true),
		})
	engine := newPromoEngine(m)
	ctx := context.Background()

	first, err := engine.Compute(ctx, promoRunParams())
	require.NoError(t, err)

	// WHEN recomputing on identical inputs
	second, err := engine.Compute(ctx, promoRunParams())
	require.NoError(t, err)

	// THEN the rows are identical and the table holds one row per key
	assert.Equal(t, first, second)
	stored, err := m.PromoSummaries(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, stored)
}

func TestPromoRequiresBoundedWindows(t *testing.T) {
	// GIVEN params missing the promo window
	m := seedStore(t, nil, nil)
	engine := newPromoEngine(m)
	params := promoRunParams()
	params.Promo = metrics.Window{}

	// WHEN computing
	_, err := engine.Compute(context.Background(), params)

	// THEN the run fails fast with a configuration error
	require.Error(t, err)
	assert.ErrorIs(t, err, metrics.ErrInvalidConfiguration)
}

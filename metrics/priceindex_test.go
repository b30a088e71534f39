package metrics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsight/retail-metrics/metrics"
	"github.com/shelfsight/retail-metrics/metrics/store"
)

func newPriceIndexEngine(s metrics.Store) *metrics.PriceIndexEngine {
	e := metrics.NewPriceIndexEngine(s)
	e.Now = func() time.Time { return fixedNow }
	return e
}

func observation(sku, st, comp string, d time.Time, price string) metrics.CompetitorPriceFact {
	return metrics.CompetitorPriceFact{
		SKUID:         metrics.SKUID(sku),
		StoreID:       metrics.StoreID(st),
		CompetitorID:  metrics.CompetitorID(comp),
		ObservedPrice: dec(price),
		Date:          d,
	}
}

func seedPrices(t *testing.T, sales []metrics.RawSalesFact, obs []metrics.CompetitorPriceFact) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.InsertSalesFacts(ctx, sales))
	require.NoError(t, m.InsertCompetitorPrices(ctx, obs))
	return m
}

func TestPriceIndexBands(t *testing.T) {
	// GIVEN a reference price of 2.00 and three competitors at 110%, 100%
	// and 90% of it
	m := seedPrices(t,
		[]metrics.RawSalesFact{
			sale("S1", "SKU-1", day(2026, 1, 5), "5", "2.00", false),
		},
		[]metrics.CompetitorPriceFact{
			observation("SKU-1", "S1", "C1", day(2026, 1, 6), "2.20"),
			observation("SKU-1", "S1", "C2", day(2026, 1, 6), "2.00"),
			observation("SKU-1", "S1", "C3", day(2026, 1, 6), "1.80"),
		})
	engine := newPriceIndexEngine(m)

	// WHEN computing with the default thresholds
	rows, err := engine.Compute(context.Background(), metrics.DefaultPriceIndexParams())

	// THEN each competitor lands in its band
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].IndexValue.Equal(dec("110")))
	assert.Equal(t, metrics.BandPremium, rows[0].Band)
	assert.True(t, rows[1].IndexValue.Equal(dec("100")))
	assert.Equal(t, metrics.BandNearMarket, rows[1].Band)
	assert.True(t, rows[2].IndexValue.Equal(dec("90")))
	assert.Equal(t, metrics.BandDiscounted, rows[2].Band)
}

func TestPriceIndexBandBoundariesAreNearMarket(t *testing.T) {
	// GIVEN competitors sitting exactly on both thresholds
	m := seedPrices(t,
		[]metrics.RawSalesFact{
			sale("S1", "SKU-1", day(2026, 1, 5), "5", "100", false),
		},
		[]metrics.CompetitorPriceFact{
			observation("SKU-1", "S1", "C1", day(2026, 1, 6), "105"),
			observation("SKU-1", "S1", "C2", day(2026, 1, 6), "95"),
		})
	engine := newPriceIndexEngine(m)

	// WHEN computing
	rows, err := engine.Compute(context.Background(), metrics.DefaultPriceIndexParams())

	// THEN both boundaries are inclusive to NEAR_MARKET
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, metrics.BandNearMarket, rows[0].Band)
	assert.Equal(t, metrics.BandNearMarket, rows[1].Band)
}

func TestPriceIndexIsRatioOfMeans(t *testing.T) {
	// GIVEN competitor observations of 1.00 and 3.00 against reference
	// sales of 2.00
	m := seedPrices(t,
		[]metrics.RawSalesFact{
			sale("S1", "SKU-1", day(2026, 1, 5), "5", "2.00", false),
		},
		[]metrics.CompetitorPriceFact{
			observation("SKU-1", "S1", "C1", day(2026, 1, 6), "1.00"),
			observation("SKU-1", "S1", "C1", day(2026, 1, 7), "3.00"),
		})
	engine := newPriceIndexEngine(m)

	// WHEN computing
	rows, err := engine.Compute(context.Background(), metrics.DefaultPriceIndexParams())

	// THEN the index is mean(competitor)/mean(reference), one row per combo
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IndexValue.Equal(dec("100")), "got %s", rows[0].IndexValue)
	assert.True(t, rows[0].CompetitorPrice.Equal(dec("2")))
	assert.True(t, rows[0].ReferencePrice.Equal(dec("2")))
}

func TestPriceIndexMissingReferenceSkipsCombo(t *testing.T) {
	// GIVEN one combo with a reference price and one without
	m := seedPrices(t,
		[]metrics.RawSalesFact{
			sale("S1", "SKU-1", day(2026, 1, 5), "5", "2.00", false),
		},
		[]metrics.CompetitorPriceFact{
			observation("SKU-1", "S1", "C1", day(2026, 1, 6), "2.20"),
			observation("SKU-2", "S1", "C1", day(2026, 1, 6), "4.00"),
		})
	engine := newPriceIndexEngine(m)

	// WHEN computing
	rows, err := engine.Compute(context.Background(), metrics.DefaultPriceIndexParams())

	// THEN the valid combo is returned and persisted, the other reported
	require.Len(t, rows, 1)
	assert.Equal(t, metrics.SKUID("SKU-1"), rows[0].SKUID)

	var missing *metrics.MissingReferencePriceError
	require.ErrorAs(t, err, &missing)
	require.Len(t, missing.Combos, 1)
	assert.Equal(t, metrics.SKUID("SKU-2"), missing.Combos[0].SKUID)
	assert.ErrorIs(t, err, metrics.ErrMissingReferencePrice)

	stored, serr := m.PriceIndexes(context.Background())
	require.NoError(t, serr)
	assert.Equal(t, rows, stored)
}

func TestPriceIndexScopeWindowFiltersBothSides(t *testing.T) {
	// GIVEN reference sales and observations inside and outside the scope
	m := seedPrices(t,
		[]metrics.RawSalesFact{
			sale("S1", "SKU-1", day(2026, 1, 5), "5", "2.00", false),
			sale("S1", "SKU-1", day(2025, 6, 1), "5", "99", false),
		},
		[]metrics.CompetitorPriceFact{
			observation("SKU-1", "S1", "C1", day(2026, 1, 6), "2.00"),
			observation("SKU-1", "S1", "C1", day(2025, 6, 2), "50"),
		})
	engine := newPriceIndexEngine(m)
	params := metrics.DefaultPriceIndexParams()
	params.Scope = win(day(2026, 1, 1), day(2026, 1, 31))

	// WHEN computing over January 2026 only
	rows, err := engine.Compute(context.Background(), params)

	// THEN out-of-window rows influence neither side of the ratio
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IndexValue.Equal(dec("100")), "got %s", rows[0].IndexValue)
}

func TestPriceIndexInvalidThresholdsRejected(t *testing.T) {
	// GIVEN thresholds out of order
	m := seedPrices(t, nil, nil)
	engine := newPriceIndexEngine(m)
	params := metrics.PriceIndexParams{PremiumAbove: 95, DiscountedBelow: 105}

	// WHEN computing
	_, err := engine.Compute(context.Background(), params)

	// THEN the run fails fast with a configuration error
	require.Error(t, err)
	assert.ErrorIs(t, err, metrics.ErrInvalidConfiguration)
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsight/retail-metrics/metrics"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSalesFactsRoundTrip(t *testing.T) {
	// GIVEN sales facts spanning two months
	s := newTestStore(t)
	ctx := context.Background()

	facts := []metrics.RawSalesFact{
		{StoreID: "S1", SKUID: "SKU-1", Date: day(2026, 1, 10), Quantity: dec("5"), UnitPrice: dec("2.50"), PromoFlag: false},
		{StoreID: "S1", SKUID: "SKU-1", Date: day(2026, 2, 10), Quantity: dec("8"), UnitPrice: dec("2.00"), PromoFlag: true},
		{StoreID: "S2", SKUID: "SKU-2", Date: day(2026, 2, 15), Quantity: dec("-1"), UnitPrice: dec("3.00"), PromoFlag: false},
	}
	require.NoError(t, s.InsertSalesFacts(ctx, facts))

	// WHEN reading with an unbounded window
	all, err := s.SalesFacts(ctx, metrics.Window{})

	// THEN every row survives with values intact
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Quantity.Equal(dec("5")))
	assert.True(t, all[1].PromoFlag)
	assert.True(t, all[2].Quantity.IsNegative())

	// WHEN reading a bounded window
	feb, err := s.SalesFacts(ctx, metrics.Window{From: day(2026, 2, 1), To: day(2026, 2, 28)})

	// THEN only the February rows come back
	require.NoError(t, err)
	require.Len(t, feb, 2)
	for _, f := range feb {
		assert.False(t, f.Date.Before(day(2026, 2, 1)))
	}
}

func TestCatalogNullRRP(t *testing.T) {
	// GIVEN a catalog where one SKU has no reference price
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertCatalog(ctx, []metrics.CatalogFact{
		{SKUID: "SKU-1", SupplierID: "SUP-A", RRP: decimal.NullDecimal{Decimal: dec("4.99"), Valid: true}, Category: "snacks"},
		{SKUID: "SKU-2", SupplierID: "SUP-A", Category: "snacks"},
	}))

	// WHEN reading the catalog back
	catalog, err := s.Catalog(ctx)

	// THEN the null survives as null, never as zero
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	assert.True(t, catalog[0].RRP.Valid)
	assert.True(t, catalog[0].RRP.Decimal.Equal(dec("4.99")))
	assert.False(t, catalog[1].RRP.Valid)
}

func TestCatalogUpsertBySKU(t *testing.T) {
	// GIVEN a SKU inserted twice with different suppliers
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertCatalog(ctx, []metrics.CatalogFact{
		{SKUID: "SKU-1", SupplierID: "SUP-A"},
	}))
	require.NoError(t, s.InsertCatalog(ctx, []metrics.CatalogFact{
		{SKUID: "SKU-1", SupplierID: "SUP-B"},
	}))

	// WHEN reading the catalog back
	catalog, err := s.Catalog(ctx)

	// THEN the second write replaced the first
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	assert.Equal(t, metrics.SupplierID("SUP-B"), catalog[0].SupplierID)
}

func TestReplaceHealthScoresUpserts(t *testing.T) {
	// GIVEN a persisted health row
	s := newTestStore(t)
	ctx := context.Background()
	at := day(2026, 3, 1)

	first := metrics.HealthScoreResult{
		StoreID: "S1", SupplierID: "SUP-A",
		HealthScore:   dec("82.50"),
		Flags:         metrics.AnomalyFlags{metrics.FlagMissingRRP, metrics.FlagNegativeQty},
		MissingRRPPct: dec("25"), ExtremePricePct: dec("0"),
		NegativeQtyPct: dec("12.5"), DriftPct: dec("3.1"),
		ComputedAt: at,
	}
	require.NoError(t, s.ReplaceHealthScores(ctx, []metrics.HealthScoreResult{first}))

	// WHEN the same key is written again with a new score
	second := first
	second.HealthScore = dec("90")
	second.Flags = metrics.AnomalyFlags{metrics.FlagMissingRRP}
	require.NoError(t, s.ReplaceHealthScores(ctx, []metrics.HealthScoreResult{second}))

	// THEN one row remains, carrying the second run's values
	rows, err := s.HealthScores(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].HealthScore.Equal(dec("90")))
	assert.Equal(t, metrics.AnomalyFlags{metrics.FlagMissingRRP}, rows[0].Flags)
	assert.True(t, rows[0].ComputedAt.Equal(at))
}

func TestPromoSummaryNullMetricsSurvive(t *testing.T) {
	// GIVEN a summary whose uplift and price impact are undefined
	s := newTestStore(t)
	ctx := context.Background()

	row := metrics.PromoSummaryResult{
		PromoRunID: "RUN-1", SKUID: "SKU-1", SupplierID: "SUP-A",
		PromoStart: day(2026, 2, 1), PromoEnd: day(2026, 2, 14),
		BaselineVolume: dec("0"), PromoVolume: dec("4.5"),
		CoveragePct: dec("66.67"),
		ComputedAt:  day(2026, 3, 1),
	}
	require.NoError(t, s.ReplacePromoSummaries(ctx, []metrics.PromoSummaryResult{row}))

	// WHEN reading the table back
	rows, err := s.PromoSummaries(ctx)

	// THEN nulls are still nulls, not zeros
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].UpliftPct.Valid)
	assert.False(t, rows[0].PriceImpact.Valid)
	assert.True(t, rows[0].CoveragePct.Equal(dec("66.67")))
}

func TestPromoTrendsOrderedRead(t *testing.T) {
	// GIVEN trend rows written out of sequence order
	s := newTestStore(t)
	ctx := context.Background()

	rows := []metrics.PromoTrendResult{
		{Level: metrics.TrendLevelSKU, GroupID: "SKU-1", SKUID: "SKU-1", PromoRunID: "RUN-2", RunSeq: 2,
			PromoStart: day(2026, 3, 1), BaselineVolume: dec("2"), PromoVolume: dec("3"), ComputedAt: day(2026, 4, 1)},
		{Level: metrics.TrendLevelSKU, GroupID: "SKU-1", SKUID: "SKU-1", PromoRunID: "RUN-1", RunSeq: 1,
			PromoStart: day(2026, 1, 1), BaselineVolume: dec("2"), PromoVolume: dec("2.6"), ComputedAt: day(2026, 4, 1)},
		{Level: metrics.TrendLevelSupplier, GroupID: "SUP-A", SupplierID: "SUP-A", PromoRunID: "RUN-1", RunSeq: 1,
			PromoStart: day(2026, 1, 1), BaselineVolume: dec("4"), PromoVolume: dec("5.2"), ComputedAt: day(2026, 4, 1)},
	}
	require.NoError(t, s.ReplacePromoTrends(ctx, rows))

	// WHEN reading the projection back
	got, err := s.PromoTrends(ctx)

	// THEN rows come back ordered by (level, group, run_seq)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, metrics.PromoRunID("RUN-1"), got[0].PromoRunID)
	assert.Equal(t, metrics.PromoRunID("RUN-2"), got[1].PromoRunID)
	assert.Equal(t, metrics.TrendLevelSupplier, got[2].Level)
}

func TestPriceIndexRoundTrip(t *testing.T) {
	// GIVEN persisted index rows for two competitors
	s := newTestStore(t)
	ctx := context.Background()

	rows := []metrics.PriceIndexResult{
		{SKUID: "SKU-1", StoreID: "S1", CompetitorID: "C1",
			ReferencePrice: dec("2.00"), CompetitorPrice: dec("2.20"),
			IndexValue: dec("110"), Band: metrics.BandPremium, ComputedAt: day(2026, 3, 1)},
		{SKUID: "SKU-1", StoreID: "S1", CompetitorID: "C2",
			ReferencePrice: dec("2.00"), CompetitorPrice: dec("1.80"),
			IndexValue: dec("90"), Band: metrics.BandDiscounted, ComputedAt: day(2026, 3, 1)},
	}
	require.NoError(t, s.ReplacePriceIndexes(ctx, rows))

	// WHEN rerunning with an updated value for one key
	rows[1].IndexValue = dec("96")
	rows[1].Band = metrics.BandNearMarket
	require.NoError(t, s.ReplacePriceIndexes(ctx, rows[1:]))

	// THEN the table still has two rows and the rerun replaced its key
	got, err := s.PriceIndexes(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, metrics.BandPremium, got[0].Band)
	assert.Equal(t, metrics.BandNearMarket, got[1].Band)
	assert.True(t, got[1].IndexValue.Equal(dec("96")))
}

func TestResetClearsEverything(t *testing.T) {
	// GIVEN a store with facts and results
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertSalesFacts(ctx, []metrics.RawSalesFact{
		{StoreID: "S1", SKUID: "SKU-1", Date: day(2026, 1, 1), Quantity: dec("1"), UnitPrice: dec("1")},
	}))
	require.NoError(t, s.ReplaceHealthScores(ctx, []metrics.HealthScoreResult{
		{StoreID: "S1", SupplierID: "SUP-A", HealthScore: dec("100"),
			MissingRRPPct: dec("0"), ExtremePricePct: dec("0"),
			NegativeQtyPct: dec("0"), DriftPct: dec("0"), ComputedAt: day(2026, 1, 2)},
	}))

	// WHEN resetting
	require.NoError(t, s.Reset(ctx))

	// THEN every table is empty
	facts, err := s.SalesFacts(ctx, metrics.Window{})
	require.NoError(t, err)
	assert.Empty(t, facts)
	scores, err := s.HealthScores(ctx)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

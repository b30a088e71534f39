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

func newTrendAggregator(s metrics.Store) *metrics.TrendAggregator {
	e := metrics.NewTrendAggregator(s)
	e.Now = func() time.Time { return fixedNow }
	return e
}

func summaryRow(run, sku, supplier string, start time.Time, baseVol, promoVol string, uplift, cov string) metrics.PromoSummaryResult {
	r := metrics.PromoSummaryResult{
		PromoRunID:     metrics.PromoRunID(run),
		SKUID:          metrics.SKUID(sku),
		SupplierID:     metrics.SupplierID(supplier),
		PromoStart:     start,
		PromoEnd:       start.AddDate(0, 0, 13),
		BaselineVolume: dec(baseVol),
		PromoVolume:    dec(promoVol),
		CoveragePct:    dec(cov),
		ComputedAt:     fixedNow,
	}
	if uplift != "" {
		r.UpliftPct = nd(uplift)
	}
	return r
}

func seedHistory(t *testing.T, rows []metrics.PromoSummaryResult) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	require.NoError(t, m.ReplacePromoSummaries(context.Background(), rows))
	return m
}

func TestTrendSKURowsAreOrderedProjections(t *testing.T) {
	// GIVEN two runs for one SKU stored out of chronological order
	m := seedHistory(t, []metrics.PromoSummaryResult{
		summaryRow("RUN-A", "SKU-1", "SUP-A", day(2026, 3, 1), "8", "12", "30", "80"),
		summaryRow("RUN-B", "SKU-1", "SUP-A", day(2026, 1, 1), "8", "10", "20", "50"),
	})
	engine := newTrendAggregator(m)

	// WHEN computing sku-level trends
	rows, err := engine.Compute(context.Background(), metrics.TrendParams{})

	// THEN runs are sequenced by promo start and values copied through
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first, second := rows[0], rows[1]
	assert.Equal(t, metrics.TrendLevelSKU, first.Level)
	assert.Equal(t, "SKU-1", first.GroupID)
	assert.Equal(t, metrics.PromoRunID("RUN-B"), first.PromoRunID)
	assert.Equal(t, 1, first.RunSeq)
	assert.True(t, first.UpliftPct.Decimal.Equal(dec("20")))
	require.True(t, first.CoveragePct.Valid)
	assert.True(t, first.CoveragePct.Decimal.Equal(dec("50")))
	assert.True(t, first.BaselineVolume.Equal(dec("8")))
	assert.True(t, first.PromoVolume.Equal(dec("10")))

	assert.Equal(t, metrics.PromoRunID("RUN-A"), second.PromoRunID)
	assert.Equal(t, 2, second.RunSeq)
	assert.True(t, second.UpliftPct.Decimal.Equal(dec("30")))
}

func TestTrendSupplierRollupWeightsByPromoVolume(t *testing.T) {
	// GIVEN two SKUs of one supplier in the same run
	m := seedHistory(t, []metrics.PromoSummaryResult{
		summaryRow("RUN-A", "SKU-1", "SUP-A", day(2026, 1, 1), "8", "10", "20", "50"),
		summaryRow("RUN-A", "SKU-2", "SUP-A", day(2026, 1, 1), "4", "30", "60", "90"),
	})
	engine := newTrendAggregator(m)

	// WHEN computing with the supplier rollup
	rows, err := engine.Compute(context.Background(), metrics.TrendParams{SupplierRollup: true})
	require.NoError(t, err)

	var rollup *metrics.PromoTrendResult
	for i := range rows {
		if rows[i].Level == metrics.TrendLevelSupplier {
			rollup = &rows[i]
		}
	}
	require.NotNil(t, rollup)

	// THEN volumes sum and uplift is the promo-volume-weighted mean:
	// (20*10 + 60*30) / 40 = 50
	assert.Equal(t, "SUP-A", rollup.GroupID)
	assert.True(t, rollup.BaselineVolume.Equal(dec("12")))
	assert.True(t, rollup.PromoVolume.Equal(dec("40")))
	require.True(t, rollup.UpliftPct.Valid)
	assert.True(t, rollup.UpliftPct.Decimal.Equal(dec("50")), "got %s", rollup.UpliftPct.Decimal)
	require.True(t, rollup.CoveragePct.Valid)
	// (50*10 + 90*30) / 40 = 80
	assert.True(t, rollup.CoveragePct.Decimal.Equal(dec("80")), "got %s", rollup.CoveragePct.Decimal)
}

func TestTrendRollupExcludesNullUplift(t *testing.T) {
	// GIVEN one defined-uplift SKU and one null-uplift SKU in a run
	m := seedHistory(t, []metrics.PromoSummaryResult{
		summaryRow("RUN-A", "SKU-1", "SUP-A", day(2026, 1, 1), "8", "10", "20", "50"),
		summaryRow("RUN-A", "SKU-2", "SUP-A", day(2026, 1, 1), "0", "5", "", "100"),
	})
	engine := newTrendAggregator(m)

	// WHEN computing the rollup
	rows, err := engine.Compute(context.Background(), metrics.TrendParams{SupplierRollup: true})
	require.NoError(t, err)

	var rollup *metrics.PromoTrendResult
	for i := range rows {
		if rows[i].Level == metrics.TrendLevelSupplier {
			rollup = &rows[i]
		}
	}
	require.NotNil(t, rollup)

	// THEN the null run is excluded from the mean, not treated as zero,
	// while its volumes still sum
	require.True(t, rollup.UpliftPct.Valid)
	assert.True(t, rollup.UpliftPct.Decimal.Equal(dec("20")), "got %s", rollup.UpliftPct.Decimal)
	assert.True(t, rollup.PromoVolume.Equal(dec("15")))
}

func TestTrendRollupAllNullStaysNull(t *testing.T) {
	// GIVEN a run where every SKU lacks a baseline
	m := seedHistory(t, []metrics.PromoSummaryResult{
		summaryRow("RUN-A", "SKU-1", "SUP-A", day(2026, 1, 1), "0", "5", "", "100"),
	})
	engine := newTrendAggregator(m)

	// WHEN computing the rollup
	rows, err := engine.Compute(context.Background(), metrics.TrendParams{SupplierRollup: true})
	require.NoError(t, err)

	var rollup *metrics.PromoTrendResult
	for i := range rows {
		if rows[i].Level == metrics.TrendLevelSupplier {
			rollup = &rows[i]
		}
	}
	require.NotNil(t, rollup)

	// THEN the rollup metrics stay null
	assert.False(t, rollup.UpliftPct.Valid)
	assert.False(t, rollup.CoveragePct.Valid)
}

func TestTrendFiltersBySKU(t *testing.T) {
	// GIVEN history for two SKUs
	m := seedHistory(t, []metrics.PromoSummaryResult{
		summaryRow("RUN-A", "SKU-1", "SUP-A", day(2026, 1, 1), "8", "10", "20", "50"),
		summaryRow("RUN-A", "SKU-2", "SUP-B", day(2026, 1, 1), "4", "6", "50", "90"),
	})
	engine := newTrendAggregator(m)

	// WHEN filtering to one SKU
	rows, err := engine.Compute(context.Background(), metrics.TrendParams{
		SKUs: []metrics.SKUID{"SKU-1"},
	})

	// THEN only that SKU's sequence is produced
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, metrics.SKUID("SKU-1"), rows[0].SKUID)
}

func TestTrendRowOrderIsDeterministic(t *testing.T) {
	// GIVEN a mixed sku and supplier projection
	m := seedHistory(t, []metrics.PromoSummaryResult{
		summaryRow("RUN-A", "SKU-2", "SUP-A", day(2026, 1, 1), "4", "6", "50", "90"),
		summaryRow("RUN-A", "SKU-1", "SUP-A", day(2026, 1, 1), "8", "10", "20", "50"),
	})
	engine := newTrendAggregator(m)

	// WHEN computing twice
	first, err := engine.Compute(context.Background(), metrics.TrendParams{SupplierRollup: true})
	require.NoError(t, err)
	second, err := engine.Compute(context.Background(), metrics.TrendParams{SupplierRollup: true})
	require.NoError(t, err)

	// THEN output is identical and ordered by (level, group, seq)
	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, "SKU-1", first[0].GroupID)
	assert.Equal(t, "SKU-2", first[1].GroupID)
	assert.Equal(t, metrics.TrendLevelSupplier, first[2].Level)

	var prev metrics.PromoTrendResult
	for i, r := range first {
		if i > 0 && r.Level == prev.Level && r.GroupID == prev.GroupID {
			assert.Greater(t, r.RunSeq, prev.RunSeq)
		}
		prev = r
	}
}

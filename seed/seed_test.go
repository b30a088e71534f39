package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsight/retail-metrics/config"
	"github.com/shelfsight/retail-metrics/metrics"
	"github.com/shelfsight/retail-metrics/metrics/store"
)

func testSeedConfig() config.SeedConfig {
	return config.SeedConfig{
		Stores:      3,
		SKUs:        12,
		Suppliers:   2,
		Competitors: 2,
		Days:        90,
		PromoRuns:   2,
		RandomSeed:  42,
	}
}

func TestGeneratorPopulatesAllRelations(t *testing.T) {
	// GIVEN a pinned generator over a 90-day history
	g := New(testSeedConfig())
	g.End = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	m := store.NewMemory()

	// WHEN running the generator
	sum, err := g.Run(context.Background(), m)
	require.NoError(t, err)

	// THEN every fact relation is populated and the summary matches
	ctx := context.Background()
	catalog, err := m.Catalog(ctx)
	require.NoError(t, err)
	assert.Len(t, catalog, 12)
	assert.Equal(t, 12, sum.CatalogRows)

	sales, err := m.SalesFacts(ctx, metrics.Window{})
	require.NoError(t, err)
	assert.Len(t, sales, sum.SalesFacts)
	assert.NotEmpty(t, sales)

	comp, err := m.CompetitorPrices(ctx, metrics.Window{})
	require.NoError(t, err)
	assert.Len(t, comp, sum.CompetitorRows)
	assert.NotEmpty(t, comp)

	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), sum.HistoryStart)
	assert.Equal(t, g.End, sum.HistoryEnd)
}

func TestGeneratorPromoScheduleFitsHistory(t *testing.T) {
	// GIVEN the pinned generator
	g := New(testSeedConfig())
	g.End = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	m := store.NewMemory()

	sum, err := g.Run(context.Background(), m)
	require.NoError(t, err)

	// THEN each promo run has bounded windows inside the history, baseline
	// ending the day before the promo starts
	require.Len(t, sum.Promos, 2)
	for _, p := range sum.Promos {
		assert.NotEmpty(t, p.ID)
		assert.False(t, p.Baseline.From.IsZero())
		assert.Equal(t, p.Promo.From.AddDate(0, 0, -1), p.Baseline.To)
		assert.False(t, p.Promo.From.After(p.Promo.To))
		assert.False(t, p.Promo.To.After(sum.HistoryEnd))
	}

	// AND promo-flagged facts exist inside the promo windows
	sales, err := m.SalesFacts(context.Background(), sum.Promos[0].Promo)
	require.NoError(t, err)
	var flagged int
	for _, f := range sales {
		if f.PromoFlag {
			flagged++
		}
	}
	assert.Positive(t, flagged)
}

func TestGeneratorIsDeterministicPerSeed(t *testing.T) {
	// GIVEN two generators with the same seed and end date
	end := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	g1 := New(testSeedConfig())
	g1.End = end
	g2 := New(testSeedConfig())
	g2.End = end

	m1, m2 := store.NewMemory(), store.NewMemory()
	ctx := context.Background()

	s1, err := g1.Run(ctx, m1)
	require.NoError(t, err)
	s2, err := g2.Run(ctx, m2)
	require.NoError(t, err)

	// THEN the universes are identical
	assert.Equal(t, s1, s2)
	f1, err := m1.SalesFacts(ctx, metrics.Window{})
	require.NoError(t, err)
	f2, err := m2.SalesFacts(ctx, metrics.Window{})
	require.NoError(t, err)
	assert.Equal(t, f1, f2)
}

func TestGeneratorLeavesSomeRRPsMissing(t *testing.T) {
	// GIVEN a larger catalog
	cfg := testSeedConfig()
	cfg.SKUs = 100
	g := New(cfg)
	g.End = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	m := store.NewMemory()

	_, err := g.Run(context.Background(), m)
	require.NoError(t, err)

	// THEN some but not all SKUs ship without a reference price
	catalog, err := m.Catalog(context.Background())
	require.NoError(t, err)
	var missing int
	for _, c := range catalog {
		if !c.RRP.Valid {
			missing++
		}
	}
	assert.Positive(t, missing)
	assert.Less(t, missing, len(catalog))
}

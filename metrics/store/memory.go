// Package store provides an in-memory metrics.Store implementation
// (for testing/dev). Result tables are keyed maps, so REPLACE_BY_KEY is
// literal: a rerun overwrites rows with the same key and never duplicates.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shelfsight/retail-metrics/metrics"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	sales      []metrics.RawSalesFact
	catalog    []metrics.CatalogFact
	compPrices []metrics.CompetitorPriceFact

	health  map[healthKey]metrics.HealthScoreResult
	promo   map[promoKey]metrics.PromoSummaryResult
	trends  map[trendKey]metrics.PromoTrendResult
	indexes map[metrics.PriceRefKey]metrics.PriceIndexResult
}

type healthKey struct {
	Store    metrics.StoreID
	Supplier metrics.SupplierID
}

type promoKey struct {
	Run metrics.PromoRunID
	SKU metrics.SKUID
}

type trendKey struct {
	Level metrics.TrendLevel
	Group string
	Run   metrics.PromoRunID
}

func NewMemory() *Memory {
	return &Memory{
		health:  make(map[healthKey]metrics.HealthScoreResult),
		promo:   make(map[promoKey]metrics.PromoSummaryResult),
		trends:  make(map[trendKey]metrics.PromoTrendResult),
		indexes: make(map[metrics.PriceRefKey]metrics.PriceIndexResult),
	}
}

// Reset clears all facts and results.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales = nil
	m.catalog = nil
	m.compPrices = nil
	m.health = make(map[healthKey]metrics.HealthScoreResult)
	m.promo = make(map[promoKey]metrics.PromoSummaryResult)
	m.trends = make(map[trendKey]metrics.PromoTrendResult)
	m.indexes = make(map[metrics.PriceRefKey]metrics.PriceIndexResult)
	return nil
}

// =============================================================================
// FACT WRITES (metrics.FactWriter)
// =============================================================================

func (m *Memory) InsertSalesFacts(_ context.Context, rows []metrics.RawSalesFact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales = append(m.sales, rows...)
	return nil
}

func (m *Memory) InsertCatalog(_ context.Context, rows []metrics.CatalogFact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog = append(m.catalog, rows...)
	return nil
}

func (m *Memory) InsertCompetitorPrices(_ context.Context, rows []metrics.CompetitorPriceFact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compPrices = append(m.compPrices, rows...)
	return nil
}

// =============================================================================
// FACT READS (metrics.Store)
// =============================================================================

func (m *Memory) SalesFacts(_ context.Context, w metrics.Window) ([]metrics.RawSalesFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []metrics.RawSalesFact
	for _, f := range m.sales {
		if w.Contains(f.Date) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *Memory) Catalog(_ context.Context) ([]metrics.CatalogFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]metrics.CatalogFact, len(m.catalog))
	copy(out, m.catalog)
	return out, nil
}

func (m *Memory) CompetitorPrices(_ context.Context, w metrics.Window) ([]metrics.CompetitorPriceFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []metrics.CompetitorPriceFact
	for _, f := range m.compPrices {
		if w.Contains(f.Date) {
			out = append(out, f)
		}
	}
	return out, nil
}

// =============================================================================
// RESULT READS
// =============================================================================

func (m *Memory) HealthScores(_ context.Context) ([]metrics.HealthScoreResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]metrics.HealthScoreResult, 0, len(m.health))
	for _, r := range m.health {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StoreID != out[j].StoreID {
			return out[i].StoreID < out[j].StoreID
		}
		return out[i].SupplierID < out[j].SupplierID
	})
	return out, nil
}

func (m *Memory) PromoSummaries(_ context.Context) ([]metrics.PromoSummaryResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]metrics.PromoSummaryResult, 0, len(m.promo))
	for _, r := range m.promo {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PromoRunID != out[j].PromoRunID {
			return out[i].PromoRunID < out[j].PromoRunID
		}
		return out[i].SKUID < out[j].SKUID
	})
	return out, nil
}

func (m *Memory) PromoTrends(_ context.Context) ([]metrics.PromoTrendResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]metrics.PromoTrendResult, 0, len(m.trends))
	for _, r := range m.trends {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.GroupID != b.GroupID {
			return a.GroupID < b.GroupID
		}
		return a.RunSeq < b.RunSeq
	})
	return out, nil
}

func (m *Memory) PriceIndexes(_ context.Context) ([]metrics.PriceIndexResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]metrics.PriceIndexResult, 0, len(m.indexes))
	for _, r := range m.indexes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SKUID != b.SKUID {
			return a.SKUID < b.SKUID
		}
		if a.StoreID != b.StoreID {
			return a.StoreID < b.StoreID
		}
		return a.CompetitorID < b.CompetitorID
	})
	return out, nil
}

// =============================================================================
// RESULT WRITES (REPLACE_BY_KEY)
// =============================================================================

func (m *Memory) ReplaceHealthScores(_ context.Context, rows []metrics.HealthScoreResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.health[healthKey{Store: r.StoreID, Supplier: r.SupplierID}] = r
	}
	return nil
}

func (m *Memory) ReplacePromoSummaries(_ context.Context, rows []metrics.PromoSummaryResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.promo[promoKey{Run: r.PromoRunID, SKU: r.SKUID}] = r
	}
	return nil
}

func (m *Memory) ReplacePromoTrends(_ context.Context, rows []metrics.PromoTrendResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.trends[trendKey{Level: r.Level, Group: r.GroupID, Run: r.PromoRunID}] = r
	}
	return nil
}

func (m *Memory) ReplacePriceIndexes(_ context.Context, rows []metrics.PriceIndexResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.indexes[metrics.PriceRefKey{SKUID: r.SKUID, StoreID: r.StoreID, CompetitorID: r.CompetitorID}] = r
	}
	return nil
}

/*
store.go - Store adapter contract between the engines and persistence

PURPOSE:
  Defines the sole I/O boundary of the metrics engine. Engines read fact
  relations and write result relations through this interface; they never
  touch a database driver directly. Implementations exist for SQLite
  (production) and memory (tests/dev).

READ-YOUR-WRITES:
  A Replace* write is visible to any subsequent read on the same handle.
  Nothing is guaranteed across independent handles beyond last-writer-wins
  per key.

REPLACE_BY_KEY:
  Every Replace* call upserts by the result table's key atomically: a
  concurrent recomputation can race, but a reader never observes a partial
  interleaving of two row sets under one key.

FAILURE:
  Open failures surface as ErrStoreUnavailable; malformed queries or
  unknown relations as QueryError (wrapping ErrQuery). Both are fatal to
  the calling engine invocation.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Embedded SQLite analytical store
  - metrics/store/memory.go: In-memory, for tests and demos

SEE ALSO:
  - types.go: Row types moved across this boundary
*/
package metrics

import "context"

// =============================================================================
// STORE - Fact reads and result writes
// =============================================================================

// Store is the analytical store handle injected into every engine.
type Store interface {
	// SalesFacts returns raw sales rows inside the window (unbounded
	// window sides are open). Row order is not significant.
	SalesFacts(ctx context.Context, w Window) ([]RawSalesFact, error)

	// Catalog returns the full SKU catalog.
	Catalog(ctx context.Context) ([]CatalogFact, error)

	// CompetitorPrices returns competitor observations inside the window.
	CompetitorPrices(ctx context.Context, w Window) ([]CompetitorPriceFact, error)

	// HealthScores returns the persisted health result table.
	HealthScores(ctx context.Context) ([]HealthScoreResult, error)

	// PromoSummaries returns the full promo summary history.
	PromoSummaries(ctx context.Context) ([]PromoSummaryResult, error)

	// PromoTrends returns the persisted trend projection.
	PromoTrends(ctx context.Context) ([]PromoTrendResult, error)

	// PriceIndexes returns the persisted price index table.
	PriceIndexes(ctx context.Context) ([]PriceIndexResult, error)

	// ReplaceHealthScores upserts rows keyed by (store_id, supplier_id).
	ReplaceHealthScores(ctx context.Context, rows []HealthScoreResult) error

	// ReplacePromoSummaries upserts rows keyed by (promo_run_id, sku_id).
	ReplacePromoSummaries(ctx context.Context, rows []PromoSummaryResult) error

	// ReplacePromoTrends upserts rows keyed by (level, group_id, promo_run_id).
	ReplacePromoTrends(ctx context.Context, rows []PromoTrendResult) error

	// ReplacePriceIndexes upserts rows keyed by (sku_id, store_id, competitor_id).
	ReplacePriceIndexes(ctx context.Context, rows []PriceIndexResult) error
}

// =============================================================================
// FACT WRITER - Ingestion side, outside the engine core
// =============================================================================

// FactWriter loads raw facts. The engines never write facts; this exists
// for the seeder and for external ingestion.
type FactWriter interface {
	InsertSalesFacts(ctx context.Context, rows []RawSalesFact) error
	InsertCatalog(ctx context.Context, rows []CatalogFact) error
	InsertCompetitorPrices(ctx context.Context, rows []CompetitorPriceFact) error
}

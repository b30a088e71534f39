/*
Package sqlite provides the embedded SQLite-backed analytical store.

PURPOSE:
  Implements metrics.Store and metrics.FactWriter on a single local SQLite
  file. This is the shared analytical store both presentation surfaces
  read: the engines write derived tables here, the API and dashboard read
  them back.

KEY TABLES:
  raw_sales_facts:        Append-only sales observations
  catalog_facts:          SKU catalog (supplier, nullable rrp, category)
  competitor_price_facts: Observed competitor prices
  health_scores:          Derived, key (store_id, supplier_id)
  promo_summaries:        Derived, key (promo_run_id, sku_id)
  promo_trends:           Derived, key (level, group_id, promo_run_id)
  price_indexes:          Derived, key (sku_id, store_id, competitor_id)

REPLACE_BY_KEY:
  Derived tables are written with INSERT ... ON CONFLICT(key) DO UPDATE
  inside one transaction, under a write mutex. Reruns replace rows with
  the same key instead of duplicating them, and a concurrent reader never
  observes a partial interleaving of two row sets.

WAL MODE:
  The database is opened with WAL so the dashboard and API can read while
  an engine writes.

DECIMALS:
  Prices, quantities and metric values are stored as decimal strings;
  nullable metrics (uplift_pct, price_impact) as SQL NULL, never zero.

SCHEMA CONTRACT:
  Column names and types of the four derived tables are the wire contract
  both consumers depend on; changing them requires migrating both.

USAGE:
  store, err := sqlite.New("./data/metrics.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := metrics.NewHealthEngine(store)

SEE ALSO:
  - metrics/store.go: Interface definitions
  - metrics/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/shelfsight/retail-metrics/metrics"
)

// Store implements metrics.Store and metrics.FactWriter using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the store at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", metrics.ErrStoreUnavailable, dbPath, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: open %s: %v", metrics.ErrStoreUnavailable, dbPath, err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", metrics.ErrStoreUnavailable, err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Raw facts (append-only inputs, never mutated by the engines)
	CREATE TABLE IF NOT EXISTS raw_sales_facts (
		store_id TEXT NOT NULL,
		sku_id TEXT NOT NULL,
		date TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		promo_flag BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_sales_date ON raw_sales_facts(date);
	CREATE INDEX IF NOT EXISTS idx_sales_sku_store ON raw_sales_facts(sku_id, store_id);

	CREATE TABLE IF NOT EXISTS catalog_facts (
		sku_id TEXT PRIMARY KEY,
		supplier_id TEXT NOT NULL,
		rrp TEXT,
		category TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_catalog_supplier ON catalog_facts(supplier_id);

	CREATE TABLE IF NOT EXISTS competitor_price_facts (
		sku_id TEXT NOT NULL,
		store_id TEXT NOT NULL,
		competitor_id TEXT NOT NULL,
		observed_price TEXT NOT NULL,
		date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_competitor_date ON competitor_price_facts(date);
	CREATE INDEX IF NOT EXISTS idx_competitor_sku_store ON competitor_price_facts(sku_id, store_id);

	-- Derived result tables (REPLACE_BY_KEY; schema is the wire contract)
	CREATE TABLE IF NOT EXISTS health_scores (
		store_id TEXT NOT NULL,
		supplier_id TEXT NOT NULL,
		health_score TEXT NOT NULL,
		anomaly_flags TEXT NOT NULL DEFAULT '',
		missing_rrp_pct TEXT NOT NULL,
		extreme_price_pct TEXT NOT NULL,
		negative_qty_pct TEXT NOT NULL,
		drift_pct TEXT NOT NULL,
		computed_at TEXT NOT NULL,
		PRIMARY KEY (store_id, supplier_id)
	);

	CREATE TABLE IF NOT EXISTS promo_summaries (
		promo_run_id TEXT NOT NULL,
		sku_id TEXT NOT NULL,
		supplier_id TEXT NOT NULL DEFAULT '',
		promo_start TEXT NOT NULL,
		promo_end TEXT NOT NULL,
		baseline_volume TEXT NOT NULL,
		promo_volume TEXT NOT NULL,
		uplift_pct TEXT,
		coverage_pct TEXT NOT NULL,
		price_impact TEXT,
		computed_at TEXT NOT NULL,
		PRIMARY KEY (promo_run_id, sku_id)
	);

	CREATE INDEX IF NOT EXISTS idx_promo_supplier ON promo_summaries(supplier_id);

	CREATE TABLE IF NOT EXISTS promo_trends (
		level TEXT NOT NULL,
		group_id TEXT NOT NULL,
		promo_run_id TEXT NOT NULL,
		run_seq INTEGER NOT NULL,
		sku_id TEXT NOT NULL DEFAULT '',
		supplier_id TEXT NOT NULL DEFAULT '',
		promo_start TEXT NOT NULL,
		baseline_volume TEXT NOT NULL,
		promo_volume TEXT NOT NULL,
		uplift_pct TEXT,
		coverage_pct TEXT,
		price_impact TEXT,
		computed_at TEXT NOT NULL,
		PRIMARY KEY (level, group_id, promo_run_id)
	);

	CREATE TABLE IF NOT EXISTS price_indexes (
		sku_id TEXT NOT NULL,
		store_id TEXT NOT NULL,
		competitor_id TEXT NOT NULL,
		reference_price TEXT NOT NULL,
		competitor_price TEXT NOT NULL,
		index_value TEXT NOT NULL,
		band TEXT NOT NULL,
		computed_at TEXT NOT NULL,
		PRIMARY KEY (sku_id, store_id, competitor_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// FACT WRITES (metrics.FactWriter)
// =============================================================================

// InsertSalesFacts appends sales observations.
func (s *Store) InsertSalesFacts(ctx context.Context, rows []metrics.RawSalesFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, "raw_sales_facts", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO raw_sales_facts (store_id, sku_id, date, quantity, unit_price, promo_flag)
			 VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx,
				r.StoreID, r.SKUID, r.Date.UTC().Format(time.RFC3339),
				r.Quantity.String(), r.UnitPrice.String(), r.PromoFlag,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertCatalog upserts catalog rows by sku.
func (s *Store) InsertCatalog(ctx context.Context, rows []metrics.CatalogFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, "catalog_facts", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO catalog_facts (sku_id, supplier_id, rrp, category)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(sku_id) DO UPDATE SET
				supplier_id = excluded.supplier_id,
				rrp = excluded.rrp,
				category = excluded.category`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx,
				r.SKUID, r.SupplierID, nullDecString(r.RRP), r.Category,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertCompetitorPrices appends competitor observations.
func (s *Store) InsertCompetitorPrices(ctx context.Context, rows []metrics.CompetitorPriceFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, "competitor_price_facts", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO competitor_price_facts (sku_id, store_id, competitor_id, observed_price, date)
			 VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx,
				r.SKUID, r.StoreID, r.CompetitorID,
				r.ObservedPrice.String(), r.Date.UTC().Format(time.RFC3339),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// FACT READS (metrics.Store)
// =============================================================================

// SalesFacts returns raw sales rows inside the window.
func (s *Store) SalesFacts(ctx context.Context, w metrics.Window) ([]metrics.RawSalesFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT store_id, sku_id, date, quantity, unit_price, promo_flag FROM raw_sales_facts`
	where, args := windowClause("date", w)
	rows, err := s.db.QueryContext(ctx, query+where, args...)
	if err != nil {
		return nil, &metrics.QueryError{Relation: "raw_sales_facts", Err: err}
	}
	defer rows.Close()

	var out []metrics.RawSalesFact
	for rows.Next() {
		var (
			f                metrics.RawSalesFact
			date, qty, price string
		)
		if err := rows.Scan(&f.StoreID, &f.SKUID, &date, &qty, &price, &f.PromoFlag); err != nil {
			return nil, &metrics.QueryError{Relation: "raw_sales_facts", Err: err}
		}
		f.Date = parseTime(date)
		f.Quantity = parseDec(qty)
		f.UnitPrice = parseDec(price)
		out = append(out, f)
	}
	return out, wrapRowsErr("raw_sales_facts", rows.Err())
}

// Catalog returns the full SKU catalog.
func (s *Store) Catalog(ctx context.Context) ([]metrics.CatalogFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT sku_id, supplier_id, rrp, category FROM catalog_facts ORDER BY sku_id`)
	if err != nil {
		return nil, &metrics.QueryError{Relation: "catalog_facts", Err: err}
	}
	defer rows.Close()

	var out []metrics.CatalogFact
	for rows.Next() {
		var (
			f   metrics.CatalogFact
			rrp sql.NullString
		)
		if err := rows.Scan(&f.SKUID, &f.SupplierID, &rrp, &f.Category); err != nil {
			return nil, &metrics.QueryError{Relation: "catalog_facts", Err: err}
		}
		f.RRP = parseNullDec(rrp)
		out = append(out, f)
	}
	return out, wrapRowsErr("catalog_facts", rows.Err())
}

// CompetitorPrices returns competitor observations inside the window.
func (s *Store) CompetitorPrices(ctx context.Context, w metrics.Window) ([]metrics.CompetitorPriceFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT sku_id, store_id, competitor_id, observed_price, date FROM competitor_price_facts`
	where, args := windowClause("date", w)
	rows, err := s.db.QueryContext(ctx, query+where, args...)
	if err != nil {
		return nil, &metrics.QueryError{Relation: "competitor_price_facts", Err: err}
	}
	defer rows.Close()

	var out []metrics.CompetitorPriceFact
	for rows.Next() {
		var (
			f           metrics.CompetitorPriceFact
			price, date string
		)
		if err := rows.Scan(&f.SKUID, &f.StoreID, &f.CompetitorID, &price, &date); err != nil {
			return nil, &metrics.QueryError{Relation: "competitor_price_facts", Err: err}
		}
		f.ObservedPrice = parseDec(price)
		f.Date = parseTime(date)
		out = append(out, f)
	}
	return out, wrapRowsErr("competitor_price_facts", rows.Err())
}

// =============================================================================
// RESULT READS
// =============================================================================

// HealthScores returns the persisted health result table.
func (s *Store) HealthScores(ctx context.Context) ([]metrics.HealthScoreResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT store_id, supplier_id, health_score, anomaly_flags,
		        missing_rrp_pct, extreme_price_pct, negative_qty_pct, drift_pct, computed_at
		 FROM health_scores
		 ORDER BY store_id, supplier_id`)
	if err != nil {
		return nil, &metrics.QueryError{Relation: "health_scores", Err: err}
	}
	defer rows.Close()

	var out []metrics.HealthScoreResult
	for rows.Next() {
		var (
			r                                 metrics.HealthScoreResult
			score, flags                      string
			missing, extreme, negative, drift string
			computedAt                        string
		)
		if err := rows.Scan(&r.StoreID, &r.SupplierID, &score, &flags,
			&missing, &extreme, &negative, &drift, &computedAt); err != nil {
			return nil, &metrics.QueryError{Relation: "health_scores", Err: err}
		}
		r.HealthScore = parseDec(score)
		r.Flags = metrics.ParseAnomalyFlags(flags)
		r.MissingRRPPct = parseDec(missing)
		r.ExtremePricePct = parseDec(extreme)
		r.NegativeQtyPct = parseDec(negative)
		r.DriftPct = parseDec(drift)
		r.ComputedAt = parseTime(computedAt)
		out = append(out, r)
	}
	return out, wrapRowsErr("health_scores", rows.Err())
}

// PromoSummaries returns the full promo summary history.
func (s *Store) PromoSummaries(ctx context.Context) ([]metrics.PromoSummaryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT promo_run_id, sku_id, supplier_id, promo_start, promo_end,
		        baseline_volume, promo_volume, uplift_pct, coverage_pct, price_impact, computed_at
		 FROM promo_summaries
		 ORDER BY promo_run_id, sku_id`)
	if err != nil {
		return nil, &metrics.QueryError{Relation: "promo_summaries", Err: err}
	}
	defer rows.Close()

	var out []metrics.PromoSummaryResult
	for rows.Next() {
		var (
			r                      metrics.PromoSummaryResult
			start, end, computedAt string
			baseVol, promoVol, cov string
			uplift, impact         sql.NullString
		)
		if err := rows.Scan(&r.PromoRunID, &r.SKUID, &r.SupplierID, &start, &end,
			&baseVol, &promoVol, &uplift, &cov, &impact, &computedAt); err != nil {
			return nil, &metrics.QueryError{Relation: "promo_summaries", Err: err}
		}
		r.PromoStart = parseTime(start)
		r.PromoEnd = parseTime(end)
		r.BaselineVolume = parseDec(baseVol)
		r.PromoVolume = parseDec(promoVol)
		r.UpliftPct = parseNullDec(uplift)
		r.CoveragePct = parseDec(cov)
		r.PriceImpact = parseNullDec(impact)
		r.ComputedAt = parseTime(computedAt)
		out = append(out, r)
	}
	return out, wrapRowsErr("promo_summaries", rows.Err())
}

// PromoTrends returns the persisted trend projection.
func (s *Store) PromoTrends(ctx context.Context) ([]metrics.PromoTrendResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT level, group_id, promo_run_id, run_seq, sku_id, supplier_id, promo_start,
		        baseline_volume, promo_volume, uplift_pct, coverage_pct, price_impact, computed_at
		 FROM promo_trends
		 ORDER BY level, group_id, run_seq`)
	if err != nil {
		return nil, &metrics.QueryError{Relation: "promo_trends", Err: err}
	}
	defer rows.Close()

	var out []metrics.PromoTrendResult
	for rows.Next() {
		var (
			r                   metrics.PromoTrendResult
			start, computedAt   string
			baseVol, promoVol   string
			uplift, cov, impact sql.NullString
		)
		if err := rows.Scan(&r.Level, &r.GroupID, &r.PromoRunID, &r.RunSeq, &r.SKUID, &r.SupplierID,
			&start, &baseVol, &promoVol, &uplift, &cov, &impact, &computedAt); err != nil {
			return nil, &metrics.QueryError{Relation: "promo_trends", Err: err}
		}
		r.PromoStart = parseTime(start)
		r.BaselineVolume = parseDec(baseVol)
		r.PromoVolume = parseDec(promoVol)
		r.UpliftPct = parseNullDec(uplift)
		r.CoveragePct = parseNullDec(cov)
		r.PriceImpact = parseNullDec(impact)
		r.ComputedAt = parseTime(computedAt)
		out = append(out, r)
	}
	return out, wrapRowsErr("promo_trends", rows.Err())
}

// PriceIndexes returns the persisted price index table.
func (s *Store) PriceIndexes(ctx context.Context) ([]metrics.PriceIndexResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT sku_id, store_id, competitor_id, reference_price, competitor_price,
		        index_value, band, computed_at
		 FROM price_indexes
		 ORDER BY sku_id, store_id, competitor_id`)
	if err != nil {
		return nil, &metrics.QueryError{Relation: "price_indexes", Err: err}
	}
	defer rows.Close()

	var out []metrics.PriceIndexResult
	for rows.Next() {
		var (
			r                metrics.PriceIndexResult
			ref, comp, index string
			computedAt       string
		)
		if err := rows.Scan(&r.SKUID, &r.StoreID, &r.CompetitorID,
			&ref, &comp, &index, &r.Band, &computedAt); err != nil {
			return nil, &metrics.QueryError{Relation: "price_indexes", Err: err}
		}
		r.ReferencePrice = parseDec(ref)
		r.CompetitorPrice = parseDec(comp)
		r.IndexValue = parseDec(index)
		r.ComputedAt = parseTime(computedAt)
		out = append(out, r)
	}
	return out, wrapRowsErr("price_indexes", rows.Err())
}

// =============================================================================
// RESULT WRITES (REPLACE_BY_KEY)
// =============================================================================

// ReplaceHealthScores upserts rows keyed by (store_id, supplier_id).
func (s *Store) ReplaceHealthScores(ctx context.Context, rows []metrics.HealthScoreResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, "health_scores", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO health_scores
			 (store_id, supplier_id, health_score, anomaly_flags,
			  missing_rrp_pct, extreme_price_pct, negative_qty_pct, drift_pct, computed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(store_id, supplier_id) DO UPDATE SET
				health_score = excluded.health_score,
				anomaly_flags = excluded.anomaly_flags,
				missing_rrp_pct = excluded.missing_rrp_pct,
				extreme_price_pct = excluded.extreme_price_pct,
				negative_qty_pct = excluded.negative_qty_pct,
				drift_pct = excluded.drift_pct,
				computed_at = excluded.computed_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx,
				r.StoreID, r.SupplierID, r.HealthScore.String(), r.Flags.String(),
				r.MissingRRPPct.String(), r.ExtremePricePct.String(),
				r.NegativeQtyPct.String(), r.DriftPct.String(),
				r.ComputedAt.UTC().Format(time.RFC3339),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplacePromoSummaries upserts rows keyed by (promo_run_id, sku_id).
func (s *Store) ReplacePromoSummaries(ctx context.Context, rows []metrics.PromoSummaryResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, "promo_summaries", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO promo_summaries
			 (promo_run_id, sku_id, supplier_id, promo_start, promo_end,
			  baseline_volume, promo_volume, uplift_pct, coverage_pct, price_impact, computed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(promo_run_id, sku_id) DO UPDATE SET
				supplier_id = excluded.supplier_id,
				promo_start = excluded.promo_start,
				promo_end = excluded.promo_end,
				baseline_volume = excluded.baseline_volume,
				promo_volume = excluded.promo_volume,
				uplift_pct = excluded.uplift_pct,
				coverage_pct = excluded.coverage_pct,
				price_impact = excluded.price_impact,
				computed_at = excluded.computed_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx,
				r.PromoRunID, r.SKUID, r.SupplierID,
				r.PromoStart.UTC().Format(time.RFC3339), r.PromoEnd.UTC().Format(time.RFC3339),
				r.BaselineVolume.String(), r.PromoVolume.String(),
				nullDecString(r.UpliftPct), r.CoveragePct.String(), nullDecString(r.PriceImpact),
				r.ComputedAt.UTC().Format(time.RFC3339),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplacePromoTrends upserts rows keyed by (level, group_id, promo_run_id).
func (s *Store) ReplacePromoTrends(ctx context.Context, rows []metrics.PromoTrendResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, "promo_trends", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO promo_trends
			 (level, group_id, promo_run_id, run_seq, sku_id, supplier_id, promo_start,
			  baseline_volume, promo_volume, uplift_pct, coverage_pct, price_impact, computed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(level, group_id, promo_run_id) DO UPDATE SET
				run_seq = excluded.run_seq,
				sku_id = excluded.sku_id,
				supplier_id = excluded.supplier_id,
				promo_start = excluded.promo_start,
				baseline_volume = excluded.baseline_volume,
				promo_volume = excluded.promo_volume,
				uplift_pct = excluded.uplift_pct,
				coverage_pct = excluded.coverage_pct,
				price_impact = excluded.price_impact,
				computed_at = excluded.computed_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx,
				r.Level, r.GroupID, r.PromoRunID, r.RunSeq, r.SKUID, r.SupplierID,
				r.PromoStart.UTC().Format(time.RFC3339),
				r.BaselineVolume.String(), r.PromoVolume.String(),
				nullDecString(r.UpliftPct), nullDecString(r.CoveragePct), nullDecString(r.PriceImpact),
				r.ComputedAt.UTC().Format(time.RFC3339),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplacePriceIndexes upserts rows keyed by (sku_id, store_id, competitor_id).
func (s *Store) ReplacePriceIndexes(ctx context.Context, rows []metrics.PriceIndexResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, "price_indexes", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO price_indexes
			 (sku_id, store_id, competitor_id, reference_price, competitor_price,
			  index_value, band, computed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(sku_id, store_id, competitor_id) DO UPDATE SET
				reference_price = excluded.reference_price,
				competitor_price = excluded.competitor_price,
				index_value = excluded.index_value,
				band = excluded.band,
				computed_at = excluded.computed_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx,
				r.SKUID, r.StoreID, r.CompetitorID,
				r.ReferencePrice.String(), r.CompetitorPrice.String(),
				r.IndexValue.String(), r.Band,
				r.ComputedAt.UTC().Format(time.RFC3339),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"raw_sales_facts", "catalog_facts", "competitor_price_facts",
		"health_scores", "promo_summaries", "promo_trends", "price_indexes",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return &metrics.QueryError{Relation: table, Err: err}
		}
	}
	return nil
}

// withTx runs fn inside a transaction, wrapping failures as QueryError.
func (s *Store) withTx(ctx context.Context, relation string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &metrics.QueryError{Relation: relation, Err: err}
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return &metrics.QueryError{Relation: relation, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &metrics.QueryError{Relation: relation, Err: err}
	}
	return nil
}

// windowClause builds an optional WHERE clause for an inclusive window.
// RFC3339 UTC strings compare lexicographically in date order.
func windowClause(column string, w metrics.Window) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if !w.From.IsZero() {
		clauses = append(clauses, column+" >= ?")
		args = append(args, w.From.UTC().Format(time.RFC3339))
	}
	if !w.To.IsZero() {
		clauses = append(clauses, column+" <= ?")
		args = append(args, w.To.UTC().Format(time.RFC3339))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	if len(clauses) == 2 {
		where += " AND " + clauses[1]
	}
	return where, args
}

func wrapRowsErr(relation string, err error) error {
	if err != nil {
		return &metrics.QueryError{Relation: relation, Err: err}
	}
	return nil
}

func parseDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseNullDec(ns sql.NullString) decimal.NullDecimal {
	if !ns.Valid || ns.String == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: parseDec(ns.String), Valid: true}
}

func nullDecString(nd decimal.NullDecimal) sql.NullString {
	if !nd.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: nd.Decimal.String(), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

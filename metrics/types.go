/*
Package metrics provides the retail metrics computation engine.

PURPOSE:
  This package contains the types and engines that turn raw transactional
  and catalog records into derived metric tables: data-quality health
  scores, promotion performance, promotion trends, and a competitor price
  index. Every engine is a deterministic read-compute-write cycle against
  a Store handle that the caller injects.

KEY CONCEPTS IN THIS FILE (types.go):
  - Window: An inclusive date range used to scope fact reads
  - RawSalesFact / CatalogFact / CompetitorPriceFact: Source inputs
  - HealthScoreResult / PromoSummaryResult / PromoTrendResult /
    PriceIndexResult: Derived rows, keyed and replaced by key on rerun
  - Typed identifiers: StoreID, SKUID, SupplierID, CompetitorID

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all prices and metric values
  2. Explicit nulls: undefined ratios are decimal.NullDecimal, never zero
  3. Type safety: strong ID types prevent mixing store/sku/supplier keys
  4. Purity: result rows are a function of facts plus params at call time

SEE ALSO:
  - params.go: Engine configuration with defaults and validation
  - store.go: The Store adapter contract
  - health.go, promo.go, trend.go, priceindex.go: The engines
*/
package metrics

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StoreID string
type SKUID string
type SupplierID string
type CompetitorID string
type PromoRunID string

// =============================================================================
// WINDOW - Inclusive date range
// =============================================================================

// Window is an inclusive [From, To] date range. A zero From or To leaves
// that side unbounded, which is how callers scope "everything".
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && t.After(w.To) {
		return false
	}
	return true
}

// Bounded reports whether both edges are set.
func (w Window) Bounded() bool {
	return !w.From.IsZero() && !w.To.IsZero()
}

// Days returns the number of calendar days covered, inclusive.
// Returns 0 for an unbounded or inverted window.
func (w Window) Days() int {
	if !w.Bounded() || w.To.Before(w.From) {
		return 0
	}
	from := w.From.Truncate(24 * time.Hour)
	to := w.To.Truncate(24 * time.Hour)
	return int(to.Sub(from).Hours()/24) + 1
}

// Midpoint returns the middle of a bounded window. Used by the health
// engine to split a scope into trailing-baseline and current halves.
func (w Window) Midpoint() time.Time {
	return w.From.Add(w.To.Sub(w.From) / 2)
}

// =============================================================================
// SOURCE FACTS - Append-only inputs, never mutated by the engines
// =============================================================================

// RawSalesFact is one sales observation.
type RawSalesFact struct {
	StoreID   StoreID
	SKUID     SKUID
	Date      time.Time
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	PromoFlag bool
}

// CatalogFact describes a SKU. RRP (reference retail price) is nullable:
// a missing RRP is a data-quality signal, not an error.
type CatalogFact struct {
	SKUID      SKUID
	SupplierID SupplierID
	RRP        decimal.NullDecimal
	Category   string
}

// CompetitorPriceFact is one observed competitor price point.
type CompetitorPriceFact struct {
	SKUID         SKUID
	StoreID       StoreID
	CompetitorID  CompetitorID
	ObservedPrice decimal.Decimal
	Date          time.Time
}

// =============================================================================
// ANOMALY FLAGS
// =============================================================================

type AnomalyFlag string

const (
	FlagMissingRRP    AnomalyFlag = "MISSING_RRP"
	FlagExtremePrice  AnomalyFlag = "EXTREME_PRICE"
	FlagNegativeQty   AnomalyFlag = "NEGATIVE_QTY"
	FlagSupplierDrift AnomalyFlag = "SUPPLIER_DRIFT"
)

// AnomalyFlags is the set of flags raised for a health group.
type AnomalyFlags []AnomalyFlag

// Has reports whether the set contains f.
func (a AnomalyFlags) Has(f AnomalyFlag) bool {
	for _, x := range a {
		if x == f {
			return true
		}
	}
	return false
}

// Normalize sorts the set so persisted and compared output is stable.
func (a AnomalyFlags) Normalize() AnomalyFlags {
	out := make(AnomalyFlags, len(a))
	copy(out, a)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String joins the set as "A;B;C" for storage.
func (a AnomalyFlags) String() string {
	parts := make([]string, len(a))
	for i, f := range a.Normalize() {
		parts[i] = string(f)
	}
	return strings.Join(parts, ";")
}

// ParseAnomalyFlags is the inverse of String.
func ParseAnomalyFlags(s string) AnomalyFlags {
	if s == "" {
		return nil
	}
	var flags AnomalyFlags
	for _, part := range strings.Split(s, ";") {
		if part != "" {
			flags = append(flags, AnomalyFlag(part))
		}
	}
	return flags.Normalize()
}

// =============================================================================
// DERIVED RESULTS - Replaced by key on every engine run
// =============================================================================

// HealthScoreResult scores data trustworthiness for one (store, supplier)
// pair. Key: (StoreID, SupplierID).
type HealthScoreResult struct {
	StoreID    StoreID
	SupplierID SupplierID

	// HealthScore is in [0, 100]; 100 means no anomalies observed.
	HealthScore decimal.Decimal
	Flags       AnomalyFlags

	// Per-signal fractions (0-100 scale), kept so consumers can explain
	// a score without rerunning the engine.
	MissingRRPPct   decimal.Decimal
	ExtremePricePct decimal.Decimal
	NegativeQtyPct  decimal.Decimal
	DriftPct        decimal.Decimal

	ComputedAt time.Time
}

// PromoSummaryResult is one promotion run's outcome for one SKU.
// Key: (PromoRunID, SKUID). SupplierID is a denormalized catalog join kept
// here so the trend aggregator remains a pure projection of this table.
type PromoSummaryResult struct {
	PromoRunID PromoRunID
	SKUID      SKUID
	SupplierID SupplierID

	PromoStart time.Time
	PromoEnd   time.Time

	BaselineVolume decimal.Decimal
	PromoVolume    decimal.Decimal

	// UpliftPct is null iff BaselineVolume is zero: "uplift undefined" is
	// distinct from "no uplift".
	UpliftPct   decimal.NullDecimal
	CoveragePct decimal.Decimal
	PriceImpact decimal.NullDecimal

	ComputedAt time.Time
}

// TrendLevel says whether a trend row is a per-SKU sequence entry or a
// supplier-level rollup.
type TrendLevel string

const (
	TrendLevelSKU      TrendLevel = "sku"
	TrendLevelSupplier TrendLevel = "supplier"
)

// PromoTrendResult is one entry in the longitudinal promo view.
// Key: (Level, GroupID, PromoRunID), where GroupID is the SKU for sku-level
// rows and the supplier for rollup rows.
type PromoTrendResult struct {
	Level      TrendLevel
	GroupID    string
	SKUID      SKUID
	SupplierID SupplierID
	PromoRunID PromoRunID

	// RunSeq orders runs within a group by promo window start.
	RunSeq     int
	PromoStart time.Time

	BaselineVolume decimal.Decimal
	PromoVolume    decimal.Decimal
	UpliftPct      decimal.NullDecimal
	CoveragePct    decimal.NullDecimal
	PriceImpact    decimal.NullDecimal

	ComputedAt time.Time
}

// =============================================================================
// PRICE INDEX
// =============================================================================

type PriceBand string

const (
	BandPremium    PriceBand = "PREMIUM"
	BandNearMarket PriceBand = "NEAR_MARKET"
	BandDiscounted PriceBand = "DISCOUNTED"
)

// PriceIndexResult expresses a competitor's price as a percentage of the
// reference brand's price. Key: (SKUID, StoreID, CompetitorID).
type PriceIndexResult struct {
	SKUID        SKUID
	StoreID      StoreID
	CompetitorID CompetitorID

	// ReferencePrice and CompetitorPrice are window means; IndexValue is
	// the ratio of the means, not a mean of per-row ratios.
	ReferencePrice  decimal.Decimal
	CompetitorPrice decimal.Decimal
	IndexValue      decimal.Decimal
	Band            PriceBand

	ComputedAt time.Time
}

// PriceRefKey identifies a (sku, store, competitor) combination. Used to
// report combinations skipped for lack of a reference price.
type PriceRefKey struct {
	SKUID        SKUID
	StoreID      StoreID
	CompetitorID CompetitorID
}

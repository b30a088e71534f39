/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal metric model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific formatting (decimals as numbers, dates as ISO strings)
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Response: Compute response wrappers (rows plus summary and insights)

NULL PROPAGATION:
  Nullable metrics (uplift_pct, price_impact, rollup coverage) are
  *float64: an undefined metric serializes as JSON null, never as 0.

SEE ALSO:
  - handlers.go: Uses these types
  - metrics/types.go: The domain rows these mirror
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shelfsight/retail-metrics/metrics"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// HealthScoreDTO is one (store, supplier) health row.
type HealthScoreDTO struct {
	StoreID    string   `json:"store_id"`
	SupplierID string   `json:"supplier_id"`
	Score      float64  `json:"health_score"`
	Flags      []string `json:"anomaly_flags"`

	MissingRRPPct   float64 `json:"missing_rrp_pct"`
	ExtremePricePct float64 `json:"extreme_price_pct"`
	NegativeQtyPct  float64 `json:"negative_qty_pct"`
	DriftPct        float64 `json:"drift_pct"`

	ComputedAt string `json:"computed_at"`
}

// PromoSummaryDTO is one promotion run's outcome for one SKU.
type PromoSummaryDTO struct {
	PromoRunID string `json:"promo_run_id"`
	SKUID      string `json:"sku_id"`
	SupplierID string `json:"supplier_id,omitempty"`

	PromoStart string `json:"promo_start"`
	PromoEnd   string `json:"promo_end"`

	BaselineVolume float64  `json:"baseline_volume"`
	PromoVolume    float64  `json:"promo_volume"`
	UpliftPct      *float64 `json:"uplift_pct"`
	CoveragePct    float64  `json:"coverage_pct"`
	PriceImpact    *float64 `json:"price_impact"`

	ComputedAt string `json:"computed_at"`
}

// PromoTrendDTO is one entry in the longitudinal promo view.
type PromoTrendDTO struct {
	Level      string `json:"level"`
	GroupID    string `json:"group_id"`
	SKUID      string `json:"sku_id,omitempty"`
	SupplierID string `json:"supplier_id,omitempty"`
	PromoRunID string `json:"promo_run_id"`

	RunSeq     int    `json:"run_seq"`
	PromoStart string `json:"promo_start"`

	BaselineVolume float64  `json:"baseline_volume"`
	PromoVolume    float64  `json:"promo_volume"`
	UpliftPct      *float64 `json:"uplift_pct"`
	CoveragePct    *float64 `json:"coverage_pct"`
	PriceImpact    *float64 `json:"price_impact"`

	ComputedAt string `json:"computed_at"`
}

// PriceIndexDTO is one competitor price index row.
type PriceIndexDTO struct {
	SKUID        string `json:"sku_id"`
	StoreID      string `json:"store_id"`
	CompetitorID string `json:"competitor_id"`

	ReferencePrice  float64 `json:"reference_price"`
	CompetitorPrice float64 `json:"competitor_price"`
	IndexValue      float64 `json:"index_value"`
	Band            string  `json:"band"`

	ComputedAt string `json:"computed_at"`
}

// MissingReferenceDTO identifies a combination skipped for lack of a
// reference price.
type MissingReferenceDTO struct {
	SKUID        string `json:"sku_id"`
	StoreID      string `json:"store_id"`
	CompetitorID string `json:"competitor_id"`
}

// =============================================================================
// COMPUTE RESPONSES - rows plus stakeholder summary and insights
// =============================================================================

// HealthResponse is the data_health compute response.
type HealthResponse struct {
	RunTimestamp string           `json:"run_timestamp"`
	Summary      HealthSummary    `json:"summary"`
	Insights     []string         `json:"insights"`
	Rows         []HealthScoreDTO `json:"rows"`
}

// HealthSummary aggregates the health run for a stakeholder.
type HealthSummary struct {
	GroupCount    int     `json:"group_count"`
	FlaggedGroups int     `json:"flagged_groups"`
	AvgScore      float64 `json:"avg_health_score"`
	MinScore      float64 `json:"min_health_score"`
}

// PromoResponse is the promo_summary compute response.
type PromoResponse struct {
	RunTimestamp string            `json:"run_timestamp"`
	Summary      PromoSummary      `json:"summary"`
	Insights     []string          `json:"insights"`
	Rows         []PromoSummaryDTO `json:"rows"`
}

// PromoSummary aggregates one promo run across SKUs. Averages cover only
// SKUs with a defined uplift.
type PromoSummary struct {
	SKUCount       int      `json:"sku_count"`
	AvgUpliftPct   *float64 `json:"avg_uplift_pct"`
	AvgCoveragePct float64  `json:"avg_coverage_pct"`
}

// TrendResponse is the promo_trends compute response.
type TrendResponse struct {
	RunTimestamp string          `json:"run_timestamp"`
	Summary      TrendSummary    `json:"summary"`
	Rows         []PromoTrendDTO `json:"rows"`
}

// TrendSummary sizes the longitudinal view.
type TrendSummary struct {
	SKUGroups      int `json:"sku_groups"`
	SupplierGroups int `json:"supplier_groups"`
	RowCount       int `json:"row_count"`
}

// PriceIndexResponse is the price_index compute response.
type PriceIndexResponse struct {
	RunTimestamp string                `json:"run_timestamp"`
	Summary      PriceIndexSummary     `json:"summary"`
	Insights     []string              `json:"insights"`
	Rows         []PriceIndexDTO       `json:"rows"`
	Missing      []MissingReferenceDTO `json:"missing_reference,omitempty"`
}

// PriceIndexSummary aggregates band membership across combinations.
type PriceIndexSummary struct {
	ComboCount      int     `json:"combo_count"`
	AvgIndex        float64 `json:"avg_index"`
	PremiumCount    int     `json:"premium_count"`
	NearMarketCount int     `json:"near_market_count"`
	DiscountedCount int     `json:"discounted_count"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func f64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func nullF64(nd decimal.NullDecimal) *float64 {
	if !nd.Valid {
		return nil
	}
	f := f64(nd.Decimal)
	return &f
}

func isoDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func toHealthDTO(r metrics.HealthScoreResult) HealthScoreDTO {
	flags := make([]string, len(r.Flags))
	for i, f := range r.Flags {
		flags[i] = string(f)
	}
	return HealthScoreDTO{
		StoreID:         string(r.StoreID),
		SupplierID:      string(r.SupplierID),
		Score:           f64(r.HealthScore),
		Flags:           flags,
		MissingRRPPct:   f64(r.MissingRRPPct),
		ExtremePricePct: f64(r.ExtremePricePct),
		NegativeQtyPct:  f64(r.NegativeQtyPct),
		DriftPct:        f64(r.DriftPct),
		ComputedAt:      r.ComputedAt.Format(time.RFC3339),
	}
}

func toHealthDTOs(rows []metrics.HealthScoreResult) []HealthScoreDTO {
	dtos := make([]HealthScoreDTO, len(rows))
	for i, r := range rows {
		dtos[i] = toHealthDTO(r)
	}
	return dtos
}

func toPromoDTO(r metrics.PromoSummaryResult) PromoSummaryDTO {
	return PromoSummaryDTO{
		PromoRunID:     string(r.PromoRunID),
		SKUID:          string(r.SKUID),
		SupplierID:     string(r.SupplierID),
		PromoStart:     isoDate(r.PromoStart),
		PromoEnd:       isoDate(r.PromoEnd),
		BaselineVolume: f64(r.BaselineVolume),
		PromoVolume:    f64(r.PromoVolume),
		UpliftPct:      nullF64(r.UpliftPct),
		CoveragePct:    f64(r.CoveragePct),
		PriceImpact:    nullF64(r.PriceImpact),
		ComputedAt:     r.ComputedAt.Format(time.RFC3339),
	}
}

func toPromoDTOs(rows []metrics.PromoSummaryResult) []PromoSummaryDTO {
	dtos := make([]PromoSummaryDTO, len(rows))
	for i, r := range rows {
		dtos[i] = toPromoDTO(r)
	}
	return dtos
}

func toTrendDTO(r metrics.PromoTrendResult) PromoTrendDTO {
	return PromoTrendDTO{
		Level:          string(r.Level),
		GroupID:        r.GroupID,
		SKUID:          string(r.SKUID),
		SupplierID:     string(r.SupplierID),
		PromoRunID:     string(r.PromoRunID),
		RunSeq:         r.RunSeq,
		PromoStart:     isoDate(r.PromoStart),
		BaselineVolume: f64(r.BaselineVolume),
		PromoVolume:    f64(r.PromoVolume),
		UpliftPct:      nullF64(r.UpliftPct),
		CoveragePct:    nullF64(r.CoveragePct),
		PriceImpact:    nullF64(r.PriceImpact),
		ComputedAt:     r.ComputedAt.Format(time.RFC3339),
	}
}

func toTrendDTOs(rows []metrics.PromoTrendResult) []PromoTrendDTO {
	dtos := make([]PromoTrendDTO, len(rows))
	for i, r := range rows {
		dtos[i] = toTrendDTO(r)
	}
	return dtos
}

func toPriceIndexDTO(r metrics.PriceIndexResult) PriceIndexDTO {
	return PriceIndexDTO{
		SKUID:           string(r.SKUID),
		StoreID:         string(r.StoreID),
		CompetitorID:    string(r.CompetitorID),
		ReferencePrice:  f64(r.ReferencePrice),
		CompetitorPrice: f64(r.CompetitorPrice),
		IndexValue:      f64(r.IndexValue),
		Band:            string(r.Band),
		ComputedAt:      r.ComputedAt.Format(time.RFC3339),
	}
}

func toPriceIndexDTOs(rows []metrics.PriceIndexResult) []PriceIndexDTO {
	dtos := make([]PriceIndexDTO, len(rows))
	for i, r := range rows {
		dtos[i] = toPriceIndexDTO(r)
	}
	return dtos
}

func toMissingDTOs(combos []metrics.PriceRefKey) []MissingReferenceDTO {
	dtos := make([]MissingReferenceDTO, len(combos))
	for i, k := range combos {
		dtos[i] = MissingReferenceDTO{
			SKUID:        string(k.SKUID),
			StoreID:      string(k.StoreID),
			CompetitorID: string(k.CompetitorID),
		}
	}
	return dtos
}

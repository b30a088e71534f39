/*
handlers.go - HTTP API handlers for the retail metrics engine

PURPOSE:
  Exposes the metric engines via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engines. Compute endpoints run
  an engine (persisting its result table as a side effect) and return the
  rows with a stakeholder summary; result endpoints read the persisted
  tables without recomputing.

ENDPOINTS:
  Compute (read facts, write result table, return rows):
    GET /api/data_health     Health scores per (store, supplier)
    GET /api/promo_summary   Promotion uplift/coverage/price impact
    GET /api/promo_trends    Longitudinal promo view
    GET /api/price_index     Competitor price index

  Persisted results (no recompute):
    GET /api/results/data_health
    GET /api/results/promo_summary
    GET /api/results/promo_trends
    GET /api/results/price_index

  Admin:
    POST /api/reset          Clear all tables (dev/demo only)

QUERY PARAMETERS:
  Dates are ISO (2006-01-02) and inclusive. Window params are optional on
  data_health and price_index (absent = all history) and required on
  promo_summary (baseline_from/to, promo_from/to, run_id).

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid configuration or malformed query params
  - 500: Query failures
  - 503: Store unavailable
  A price index run with missing reference prices is NOT an error: the
  valid rows come back 200 with the skipped combinations listed.

SEE ALSO:
  - dto.go: Response data structures
  - server.go: Router setup and middleware
  - metrics: The engines these handlers drive
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shelfsight/retail-metrics/config"
	"github.com/shelfsight/retail-metrics/logging"
	"github.com/shelfsight/retail-metrics/metrics"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter is implemented by stores that can wipe all tables.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store metrics.Store
	Cfg   *config.Config

	health *metrics.HealthEngine
	promo  *metrics.PromoEngine
	trends *metrics.TrendAggregator
	prices *metrics.PriceIndexEngine
}

// NewHandler creates a new handler over the given store.
func NewHandler(store metrics.Store, cfg *config.Config) *Handler {
	return &Handler{
		Store:  store,
		Cfg:    cfg,
		health: metrics.NewHealthEngine(store),
		promo:  metrics.NewPromoEngine(store),
		trends: metrics.NewTrendAggregator(store),
		prices: metrics.NewPriceIndexEngine(store),
	}
}

// =============================================================================
// COMPUTE ENDPOINTS
// =============================================================================

// ComputeHealth runs the health engine and returns the scored groups.
// GET /api/data_health?from=2026-01-01&to=2026-03-31
func (h *Handler) ComputeHealth(w http.ResponseWriter, r *http.Request) {
	scope, ok := windowParam(w, r, "from", "to")
	if !ok {
		return
	}

	rows, err := h.health.Compute(r.Context(), h.Cfg.HealthParams(scope))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		RunTimestamp: time.Now().UTC().Format(time.RFC3339),
		Summary:      healthSummary(rows),
		Insights:     healthInsights(rows),
		Rows:         toHealthDTOs(rows),
	})
}

// ComputePromo runs the promo engine for one promotion run.
// GET /api/promo_summary?run_id=RUN-001&baseline_from=...&baseline_to=...&promo_from=...&promo_to=...
func (h *Handler) ComputePromo(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run_id is required", nil)
		return
	}
	baseline, ok := windowParam(w, r, "baseline_from", "baseline_to")
	if !ok {
		return
	}
	promo, ok := windowParam(w, r, "promo_from", "promo_to")
	if !ok {
		return
	}

	rows, err := h.promo.Compute(r.Context(), metrics.PromoParams{
		RunID:    metrics.PromoRunID(runID),
		Baseline: baseline,
		Promo:    promo,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PromoResponse{
		RunTimestamp: time.Now().UTC().Format(time.RFC3339),
		Summary:      promoSummary(rows),
		Insights:     promoInsights(rows),
		Rows:         toPromoDTOs(rows),
	})
}

// ComputeTrends runs the trend aggregator over the stored promo history.
// GET /api/promo_trends?supplier_rollup=true&sku=SKU-1&supplier=SUP-A
func (h *Handler) ComputeTrends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := metrics.TrendParams{
		SupplierRollup: q.Get("supplier_rollup") == "true",
	}
	for _, s := range q["sku"] {
		params.SKUs = append(params.SKUs, metrics.SKUID(s))
	}
	for _, s := range q["supplier"] {
		params.Suppliers = append(params.Suppliers, metrics.SupplierID(s))
	}

	rows, err := h.trends.Compute(r.Context(), params)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TrendResponse{
		RunTimestamp: time.Now().UTC().Format(time.RFC3339),
		Summary:      trendSummary(rows),
		Rows:         toTrendDTOs(rows),
	})
}

// ComputePriceIndex runs the price index engine.
// GET /api/price_index?from=2026-01-01&to=2026-03-31
func (h *Handler) ComputePriceIndex(w http.ResponseWriter, r *http.Request) {
	scope, ok := windowParam(w, r, "from", "to")
	if !ok {
		return
	}

	rows, err := h.prices.Compute(r.Context(), h.Cfg.PriceIndexParams(scope))

	var missing *metrics.MissingReferencePriceError
	if err != nil && !errors.As(err, &missing) {
		writeEngineError(w, err)
		return
	}

	resp := PriceIndexResponse{
		RunTimestamp: time.Now().UTC().Format(time.RFC3339),
		Summary:      priceIndexSummary(rows),
		Insights:     priceIndexInsights(rows, missing),
		Rows:         toPriceIndexDTOs(rows),
	}
	if missing != nil {
		resp.Missing = toMissingDTOs(missing.Combos)
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// PERSISTED RESULT ENDPOINTS
// =============================================================================

// GetHealthScores returns the persisted health table.
// GET /api/results/data_health
func (h *Handler) GetHealthScores(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.HealthScores(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": toHealthDTOs(rows)})
}

// GetPromoSummaries returns the persisted promo summary history.
// GET /api/results/promo_summary
func (h *Handler) GetPromoSummaries(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.PromoSummaries(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": toPromoDTOs(rows)})
}

// GetPromoTrends returns the persisted trend projection.
// GET /api/results/promo_trends
func (h *Handler) GetPromoTrends(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.PromoTrends(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": toTrendDTOs(rows)})
}

// GetPriceIndexes returns the persisted price index table.
// GET /api/results/price_index
func (h *Handler) GetPriceIndexes(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.PriceIndexes(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": toPriceIndexDTOs(rows)})
}

// ResetDatabase clears all fact and result tables.
// POST /api/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	rs, ok := h.Store.(Resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not support reset", nil)
		return
	}
	if err := rs.Reset(r.Context()); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SUMMARIES AND INSIGHTS
// =============================================================================

func healthSummary(rows []metrics.HealthScoreResult) HealthSummary {
	s := HealthSummary{GroupCount: len(rows)}
	if len(rows) == 0 {
		return s
	}
	sum := decimal.Zero
	min := rows[0].HealthScore
	for _, r := range rows {
		sum = sum.Add(r.HealthScore)
		if r.HealthScore.LessThan(min) {
			min = r.HealthScore
		}
		if len(r.Flags) > 0 {
			s.FlaggedGroups++
		}
	}
	s.AvgScore = f64(sum.Div(decimal.NewFromInt(int64(len(rows)))).Round(2))
	s.MinScore = f64(min)
	return s
}

func healthInsights(rows []metrics.HealthScoreResult) []string {
	if len(rows) == 0 {
		return []string{"No (store, supplier) groups found in the sales history."}
	}
	worst := rows[0]
	flagCounts := map[metrics.AnomalyFlag]int{}
	for _, r := range rows {
		if r.HealthScore.LessThan(worst.HealthScore) {
			worst = r
		}
		for _, f := range r.Flags {
			flagCounts[f]++
		}
	}
	insights := []string{
		fmt.Sprintf("Lowest health: %s / %s at %s", worst.StoreID, worst.SupplierID, worst.HealthScore),
	}
	for _, f := range []metrics.AnomalyFlag{
		metrics.FlagMissingRRP, metrics.FlagExtremePrice,
		metrics.FlagNegativeQty, metrics.FlagSupplierDrift,
	} {
		if n := flagCounts[f]; n > 0 {
			insights = append(insights, fmt.Sprintf("%s raised in %d group(s)", f, n))
		}
	}
	return insights
}

func promoSummary(rows []metrics.PromoSummaryResult) PromoSummary {
	s := PromoSummary{SKUCount: len(rows)}
	if len(rows) == 0 {
		return s
	}
	upliftSum, upliftN := decimal.Zero, 0
	covSum := decimal.Zero
	for _, r := range rows {
		covSum = covSum.Add(r.CoveragePct)
		if r.UpliftPct.Valid {
			upliftSum = upliftSum.Add(r.UpliftPct.Decimal)
			upliftN++
		}
	}
	s.AvgCoveragePct = f64(covSum.Div(decimal.NewFromInt(int64(len(rows)))).Round(2))
	if upliftN > 0 {
		avg := f64(upliftSum.Div(decimal.NewFromInt(int64(upliftN))).Round(2))
		s.AvgUpliftPct = &avg
	}
	return s
}

func promoInsights(rows []metrics.PromoSummaryResult) []string {
	if len(rows) == 0 {
		return []string{"No SKUs participated in this promotion run."}
	}
	var top *metrics.PromoSummaryResult
	for i := range rows {
		r := &rows[i]
		if !r.UpliftPct.Valid {
			continue
		}
		if top == nil || r.UpliftPct.Decimal.GreaterThan(top.UpliftPct.Decimal) {
			top = r
		}
	}
	if top == nil {
		return []string{"Every participating SKU lacks a baseline; uplift is undefined across the run."}
	}
	return []string{
		fmt.Sprintf("Top performing SKU: %s (%s%% uplift)", top.SKUID, top.UpliftPct.Decimal),
	}
}

func trendSummary(rows []metrics.PromoTrendResult) TrendSummary {
	skuGroups := map[string]struct{}{}
	supGroups := map[string]struct{}{}
	for _, r := range rows {
		switch r.Level {
		case metrics.TrendLevelSKU:
			skuGroups[r.GroupID] = struct{}{}
		case metrics.TrendLevelSupplier:
			supGroups[r.GroupID] = struct{}{}
		}
	}
	return TrendSummary{
		SKUGroups:      len(skuGroups),
		SupplierGroups: len(supGroups),
		RowCount:       len(rows),
	}
}

func priceIndexSummary(rows []metrics.PriceIndexResult) PriceIndexSummary {
	s := PriceIndexSummary{ComboCount: len(rows)}
	if len(rows) == 0 {
		return s
	}
	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(r.IndexValue)
		switch r.Band {
		case metrics.BandPremium:
			s.PremiumCount++
		case metrics.BandNearMarket:
			s.NearMarketCount++
		case metrics.BandDiscounted:
			s.DiscountedCount++
		}
	}
	s.AvgIndex = f64(sum.Div(decimal.NewFromInt(int64(len(rows)))).Round(2))
	return s
}

func priceIndexInsights(rows []metrics.PriceIndexResult, missing *metrics.MissingReferencePriceError) []string {
	var insights []string
	if len(rows) > 0 {
		premium := 0
		for _, r := range rows {
			if r.Band == metrics.BandPremium {
				premium++
			}
		}
		insights = append(insights,
			fmt.Sprintf("Competitors priced above the reference brand in %d of %d combinations", premium, len(rows)))
	}
	if missing != nil {
		insights = append(insights,
			fmt.Sprintf("%d combination(s) skipped: no reference price in the window", len(missing.Combos)))
	}
	if len(insights) == 0 {
		insights = append(insights, "No competitor observations found in the window.")
	}
	return insights
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, metrics.ErrInvalidConfiguration):
		writeError(w, http.StatusBadRequest, "Invalid configuration", err)
	case errors.Is(err, metrics.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
	default:
		logging.Error().Err(err).Msg("engine failure")
		writeError(w, http.StatusInternalServerError, "Computation failed", err)
	}
}

// windowParam parses an optional inclusive window from two query params.
// Writes a 400 and returns ok=false on a malformed date.
func windowParam(w http.ResponseWriter, r *http.Request, fromKey, toKey string) (metrics.Window, bool) {
	var win metrics.Window
	q := r.URL.Query()
	if v := q.Get(fromKey); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s date", fromKey), err)
			return win, false
		}
		win.From = t
	}
	if v := q.Get(toKey); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s date", toKey), err)
			return win, false
		}
		win.To = t
	}
	if win.Bounded() && win.To.Before(win.From) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("%s/%s window ends before it starts", fromKey, toKey), nil)
		return win, false
	}
	return win, true
}

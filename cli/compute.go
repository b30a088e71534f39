/*
compute.go - Engine commands

PURPOSE:
  Runs the metric engines from the command line. Each subcommand performs
  one read-compute-write cycle against the configured store and logs what
  it wrote; results land in the shared result tables that serve and the
  dashboard read.

SUBCOMMANDS:
  compute health      Data-quality scores per (store, supplier)
  compute promo       Promotion uplift/coverage/price impact for one run
  compute trends      Longitudinal promo view
  compute priceindex  Competitor price index

SEE ALSO:
  - metrics: The engines
  - api/handlers.go: The same cycles over HTTP
*/
package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelfsight/retail-metrics/logging"
	"github.com/shelfsight/retail-metrics/metrics"
	"github.com/shelfsight/retail-metrics/store/sqlite"
)

var (
	fromFlag, toFlag string

	runIDFlag        string
	baselineFromFlag string
	baselineToFlag   string
	promoFromFlag    string
	promoToFlag      string

	rollupFlag    bool
	skuFlags      []string
	supplierFlags []string
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Run a metric engine against the store",
}

var computeHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Compute data-quality health scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		scope, err := parseWindow(fromFlag, toFlag)
		if err != nil {
			return err
		}
		engine := metrics.NewHealthEngine(store)
		rows, err := engine.Compute(cmd.Context(), cfg.HealthParams(scope))
		if err != nil {
			return err
		}
		logging.Info().Int("groups", len(rows)).Msg("health scores written")
		return nil
	},
}

var computePromoCmd = &cobra.Command{
	Use:   "promo",
	Short: "Compute promotion performance for one run",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		baseline, err := parseWindow(baselineFromFlag, baselineToFlag)
		if err != nil {
			return err
		}
		promo, err := parseWindow(promoFromFlag, promoToFlag)
		if err != nil {
			return err
		}
		engine := metrics.NewPromoEngine(store)
		rows, err := engine.Compute(cmd.Context(), metrics.PromoParams{
			RunID:    metrics.PromoRunID(runIDFlag),
			Baseline: baseline,
			Promo:    promo,
		})
		if err != nil {
			return err
		}
		logging.Info().Str("run", runIDFlag).Int("skus", len(rows)).Msg("promo summary written")
		return nil
	},
}

var computeTrendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Compute the longitudinal promo view",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		params := metrics.TrendParams{SupplierRollup: rollupFlag}
		for _, s := range skuFlags {
			params.SKUs = append(params.SKUs, metrics.SKUID(s))
		}
		for _, s := range supplierFlags {
			params.Suppliers = append(params.Suppliers, metrics.SupplierID(s))
		}

		engine := metrics.NewTrendAggregator(store)
		rows, err := engine.Compute(cmd.Context(), params)
		if err != nil {
			return err
		}
		logging.Info().Int("rows", len(rows)).Bool("rollup", rollupFlag).Msg("promo trends written")
		return nil
	},
}

var computePriceIndexCmd = &cobra.Command{
	Use:   "priceindex",
	Short: "Compute the competitor price index",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		scope, err := parseWindow(fromFlag, toFlag)
		if err != nil {
			return err
		}
		engine := metrics.NewPriceIndexEngine(store)
		rows, err := engine.Compute(cmd.Context(), cfg.PriceIndexParams(scope))

		// Missing reference prices are reported, not fatal: the valid
		// rows were still written.
		var missing *metrics.MissingReferencePriceError
		if err != nil && !errors.As(err, &missing) {
			return err
		}
		if missing != nil {
			logging.Warn().Int("skipped", len(missing.Combos)).Msg("combinations without a reference price")
		}
		logging.Info().Int("combos", len(rows)).Msg("price index written")
		return nil
	},
}

func init() {
	computeHealthCmd.Flags().StringVar(&fromFlag, "from", "", "scope start (YYYY-MM-DD, inclusive)")
	computeHealthCmd.Flags().StringVar(&toFlag, "to", "", "scope end (YYYY-MM-DD, inclusive)")

	computePromoCmd.Flags().StringVar(&runIDFlag, "run-id", "", "promotion run identifier")
	computePromoCmd.Flags().StringVar(&baselineFromFlag, "baseline-from", "", "baseline window start")
	computePromoCmd.Flags().StringVar(&baselineToFlag, "baseline-to", "", "baseline window end")
	computePromoCmd.Flags().StringVar(&promoFromFlag, "promo-from", "", "promo window start")
	computePromoCmd.Flags().StringVar(&promoToFlag, "promo-to", "", "promo window end")
	computePromoCmd.MarkFlagRequired("run-id")
	computePromoCmd.MarkFlagRequired("baseline-from")
	computePromoCmd.MarkFlagRequired("baseline-to")
	computePromoCmd.MarkFlagRequired("promo-from")
	computePromoCmd.MarkFlagRequired("promo-to")

	computeTrendsCmd.Flags().BoolVar(&rollupFlag, "supplier-rollup", false, "add supplier-level rollup rows")
	computeTrendsCmd.Flags().StringSliceVar(&skuFlags, "sku", nil, "limit to these SKUs")
	computeTrendsCmd.Flags().StringSliceVar(&supplierFlags, "supplier", nil, "limit to these suppliers")

	computePriceIndexCmd.Flags().StringVar(&fromFlag, "from", "", "scope start (YYYY-MM-DD, inclusive)")
	computePriceIndexCmd.Flags().StringVar(&toFlag, "to", "", "scope end (YYYY-MM-DD, inclusive)")

	computeCmd.AddCommand(computeHealthCmd)
	computeCmd.AddCommand(computePromoCmd)
	computeCmd.AddCommand(computeTrendsCmd)
	computeCmd.AddCommand(computePriceIndexCmd)
}

// parseWindow builds an inclusive window from two optional ISO dates.
func parseWindow(from, to string) (metrics.Window, error) {
	var w metrics.Window
	if from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return w, fmt.Errorf("invalid from date %q: %w", from, err)
		}
		w.From = t
	}
	if to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return w, fmt.Errorf("invalid to date %q: %w", to, err)
		}
		w.To = t
	}
	return w, nil
}

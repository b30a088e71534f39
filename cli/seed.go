/*
seed.go - Demo data command

PURPOSE:
  Populates the store with a generated retail universe and, with
  --compute, runs every engine over it so a fresh database comes up with
  all four result tables filled.

SEE ALSO:
  - seed/seed.go: The generator
*/
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/shelfsight/retail-metrics/logging"
	"github.com/shelfsight/retail-metrics/metrics"
	"github.com/shelfsight/retail-metrics/seed"
	"github.com/shelfsight/retail-metrics/store/sqlite"
)

var (
	seedComputeFlag bool
	seedResetFlag   bool
	randomSeedFlag  uint64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the store with generated demo data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if randomSeedFlag != 0 {
			cfg.Seed.RandomSeed = randomSeedFlag
		}
		if err := cfg.ValidateSeed(); err != nil {
			return err
		}

		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		if seedResetFlag {
			if err := store.Reset(ctx); err != nil {
				return err
			}
			logging.Info().Msg("store reset")
		}

		gen := seed.New(cfg.Seed)
		summary, err := gen.Run(ctx, store)
		if err != nil {
			return err
		}
		logging.Info().
			Int("catalog", summary.CatalogRows).
			Int("sales", summary.SalesFacts).
			Int("competitor_prices", summary.CompetitorRows).
			Int("promo_runs", len(summary.Promos)).
			Msg("demo universe written")

		if seedComputeFlag {
			return computeAll(ctx, store, summary)
		}
		return nil
	},
}

// computeAll runs every engine over the freshly seeded universe.
func computeAll(ctx context.Context, store *sqlite.Store, summary seed.Summary) error {
	health := metrics.NewHealthEngine(store)
	if rows, err := health.Compute(ctx, cfg.HealthParams(metrics.Window{})); err != nil {
		return err
	} else {
		logging.Info().Int("groups", len(rows)).Msg("health scores written")
	}

	promo := metrics.NewPromoEngine(store)
	for _, run := range summary.Promos {
		rows, err := promo.Compute(ctx, metrics.PromoParams{
			RunID:    run.ID,
			Baseline: run.Baseline,
			Promo:    run.Promo,
		})
		if err != nil {
			return err
		}
		logging.Info().Str("run", string(run.ID)).Int("skus", len(rows)).Msg("promo summary written")
	}

	trends := metrics.NewTrendAggregator(store)
	if rows, err := trends.Compute(ctx, metrics.TrendParams{SupplierRollup: true}); err != nil {
		return err
	} else {
		logging.Info().Int("rows", len(rows)).Msg("promo trends written")
	}

	prices := metrics.NewPriceIndexEngine(store)
	rows, err := prices.Compute(ctx, cfg.PriceIndexParams(metrics.Window{}))
	var missing *metrics.MissingReferencePriceError
	if err != nil && !errors.As(err, &missing) {
		return err
	}
	if missing != nil {
		logging.Warn().Int("skipped", len(missing.Combos)).Msg("combinations without a reference price")
	}
	logging.Info().Int("combos", len(rows)).Msg("price index written")
	return nil
}

func init() {
	seedCmd.Flags().BoolVar(&seedComputeFlag, "compute", false, "run every engine after seeding")
	seedCmd.Flags().BoolVar(&seedResetFlag, "reset", false, "clear all tables before seeding")
	seedCmd.Flags().Uint64Var(&randomSeedFlag, "random-seed", 0, "pin the generator for reproducible data")
}

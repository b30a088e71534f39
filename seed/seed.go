/*
Package seed generates a demo retail universe.

PURPOSE:
  Populates a metrics.FactWriter with a plausible history: a supplier and
  store universe, a SKU catalog with the occasional missing reference
  price, a daily sales history with embedded promotion runs, and weekly
  competitor price observations. The generated data deliberately includes
  the anomalies the health engine scores (missing RRP, extreme prices,
  negative quantities) so a fresh database produces interesting output.

DETERMINISM:
  The generator is seeded; the same RandomSeed yields the same universe,
  which keeps demos and integration tests reproducible. RandomSeed 0 asks
  the faker for a random seed.

SEE ALSO:
  - config/config.go: SeedConfig knobs
  - cli/seed.go: The command driving this package
*/
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"

	"github.com/shelfsight/retail-metrics/config"
	"github.com/shelfsight/retail-metrics/metrics"
)

// PromoRun describes one generated promotion: its id and the baseline and
// promo windows the promo engine should be pointed at.
type PromoRun struct {
	ID       metrics.PromoRunID
	Baseline metrics.Window
	Promo    metrics.Window
}

// Summary reports what the generator wrote.
type Summary struct {
	CatalogRows     int
	SalesFacts      int
	CompetitorRows  int
	Promos          []PromoRun
	HistoryStart    time.Time
	HistoryEnd      time.Time
}

// Generator produces the demo universe.
type Generator struct {
	cfg   config.SeedConfig
	faker *gofakeit.Faker

	// End is the last day of the generated history. Defaults to today;
	// tests pin it.
	End time.Time
}

// New returns a generator for the given configuration.
func New(cfg config.SeedConfig) *Generator {
	return &Generator{
		cfg:   cfg,
		faker: gofakeit.New(cfg.RandomSeed),
	}
}

type sku struct {
	id       metrics.SKUID
	supplier metrics.SupplierID
	rrp      decimal.NullDecimal
	// price is the everyday unit price facts are generated around,
	// present even when the catalog rrp is missing.
	price decimal.Decimal
}

// Run writes the universe through w and returns a summary.
func (g *Generator) Run(ctx context.Context, w metrics.FactWriter) (Summary, error) {
	end := g.End
	if end.IsZero() {
		end = time.Now().UTC().Truncate(24 * time.Hour)
	}
	start := end.AddDate(0, 0, -(g.cfg.Days - 1))

	stores := make([]metrics.StoreID, g.cfg.Stores)
	for i := range stores {
		stores[i] = metrics.StoreID(fmt.Sprintf("ST-%03d", i+1))
	}
	suppliers := make([]metrics.SupplierID, g.cfg.Suppliers)
	for i := range suppliers {
		suppliers[i] = metrics.SupplierID(fmt.Sprintf("SUP-%03d", i+1))
	}
	competitors := make([]metrics.CompetitorID, g.cfg.Competitors)
	for i := range competitors {
		competitors[i] = metrics.CompetitorID(fmt.Sprintf("CMP-%02d", i+1))
	}

	skus, catalog := g.buildCatalog(suppliers)
	if err := w.InsertCatalog(ctx, catalog); err != nil {
		return Summary{}, err
	}

	promos := g.promoSchedule(start, end)
	sales := g.buildSales(stores, skus, promos, start, end)
	if err := w.InsertSalesFacts(ctx, sales); err != nil {
		return Summary{}, err
	}

	compRows := g.buildCompetitorPrices(stores, skus, competitors, start, end)
	if err := w.InsertCompetitorPrices(ctx, compRows); err != nil {
		return Summary{}, err
	}

	return Summary{
		CatalogRows:    len(catalog),
		SalesFacts:     len(sales),
		CompetitorRows: len(compRows),
		Promos:         promos,
		HistoryStart:   start,
		HistoryEnd:     end,
	}, nil
}

// buildCatalog assigns each SKU a supplier, a category and usually an RRP.
// Roughly one SKU in ten ships without a reference price.
func (g *Generator) buildCatalog(suppliers []metrics.SupplierID) ([]sku, []metrics.CatalogFact) {
	skus := make([]sku, g.cfg.SKUs)
	catalog := make([]metrics.CatalogFact, g.cfg.SKUs)
	for i := range skus {
		price := decimal.NewFromFloat(g.faker.Float64Range(1.5, 40)).Round(2)
		s := sku{
			id:       metrics.SKUID(fmt.Sprintf("SKU-%04d", i+1)),
			supplier: suppliers[i%len(suppliers)],
			price:    price,
		}
		if g.faker.IntRange(1, 10) > 1 {
			s.rrp = decimal.NullDecimal{Decimal: price, Valid: true}
		}
		skus[i] = s
		catalog[i] = metrics.CatalogFact{
			SKUID:      s.id,
			SupplierID: s.supplier,
			RRP:        s.rrp,
			Category:   g.faker.ProductCategory(),
		}
	}
	return skus, catalog
}

// promoSchedule spaces the configured number of two-week promo runs evenly
// through the history, each preceded by a four-week baseline.
func (g *Generator) promoSchedule(start, end time.Time) []PromoRun {
	if g.cfg.PromoRuns == 0 {
		return nil
	}
	const promoDays = 14
	const baselineDays = 28

	days := int(end.Sub(start).Hours()/24) + 1
	stride := days / (g.cfg.PromoRuns + 1)
	var promos []PromoRun
	for i := 1; i <= g.cfg.PromoRuns; i++ {
		promoStart := start.AddDate(0, 0, i*stride)
		promoEnd := promoStart.AddDate(0, 0, promoDays-1)
		if promoEnd.After(end) {
			break
		}
		promos = append(promos, PromoRun{
			ID: metrics.PromoRunID(fmt.Sprintf("RUN-%03d", i)),
			Baseline: metrics.Window{
				From: promoStart.AddDate(0, 0, -baselineDays),
				To:   promoStart.AddDate(0, 0, -1),
			},
			Promo: metrics.Window{From: promoStart, To: promoEnd},
		})
	}
	return promos
}

// buildSales writes one fact per (day, store, sku) that sold. Promo windows
// lift volume and cut price; a sprinkle of returns and fat-finger prices
// feeds the health engine.
func (g *Generator) buildSales(
	stores []metrics.StoreID,
	skus []sku,
	promos []PromoRun,
	start, end time.Time,
) []metrics.RawSalesFact {
	onPromo := func(d time.Time) bool {
		for _, p := range promos {
			if p.Promo.Contains(d) {
				return true
			}
		}
		return false
	}

	var facts []metrics.RawSalesFact
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		promoDay := onPromo(d)
		for _, st := range stores {
			for _, s := range skus {
				// Not every sku sells in every store every day.
				if g.faker.IntRange(1, 100) > 55 {
					continue
				}

				qty := decimal.NewFromInt(int64(g.faker.IntRange(1, 12)))
				price := jitter(g.faker, s.price, 0.05)
				flag := false

				switch {
				case promoDay && g.faker.IntRange(1, 100) <= 60:
					// On promo: discounted price, lifted volume.
					flag = true
					price = s.price.Mul(decimal.NewFromFloat(g.faker.Float64Range(0.70, 0.85))).Round(2)
					qty = qty.Add(decimal.NewFromInt(int64(g.faker.IntRange(2, 8))))
				case g.faker.IntRange(1, 200) == 1:
					// Return.
					qty = qty.Neg()
				case g.faker.IntRange(1, 300) == 1:
					// Fat-finger price entry.
					price = s.price.Mul(decimal.NewFromInt(int64(g.faker.IntRange(15, 40)))).Round(2)
				}

				facts = append(facts, metrics.RawSalesFact{
					StoreID:   st,
					SKUID:     s.id,
					Date:      d,
					Quantity:  qty,
					UnitPrice: price,
					PromoFlag: flag,
				})
			}
		}
	}
	return facts
}

// buildCompetitorPrices emits weekly observations per competitor for a
// rotating subset of (sku, store) pairs.
func (g *Generator) buildCompetitorPrices(
	stores []metrics.StoreID,
	skus []sku,
	competitors []metrics.CompetitorID,
	start, end time.Time,
) []metrics.CompetitorPriceFact {
	var rows []metrics.CompetitorPriceFact
	for d := start; !d.After(end); d = d.AddDate(0, 0, 7) {
		for _, c := range competitors {
			for _, s := range skus {
				if g.faker.IntRange(1, 100) > 40 {
					continue
				}
				st := stores[g.faker.IntRange(0, len(stores)-1)]
				rows = append(rows, metrics.CompetitorPriceFact{
					SKUID:         s.id,
					StoreID:       st,
					CompetitorID:  c,
					ObservedPrice: jitter(g.faker, s.price, 0.15),
					Date:          d,
				})
			}
		}
	}
	return rows
}

// jitter applies a symmetric relative perturbation and rounds to cents.
func jitter(f *gofakeit.Faker, base decimal.Decimal, frac float64) decimal.Decimal {
	factor := decimal.NewFromFloat(f.Float64Range(1-frac, 1+frac))
	return base.Mul(factor).Round(2)
}

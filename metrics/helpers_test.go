package metrics_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shelfsight/retail-metrics/metrics"
	"github.com/shelfsight/retail-metrics/metrics/store"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func win(from, to time.Time) metrics.Window {
	return metrics.Window{From: from, To: to}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func nd(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: dec(s), Valid: true}
}

func sale(st, sku string, d time.Time, qty, price string, promo bool) metrics.RawSalesFact {
	return metrics.RawSalesFact{
		StoreID:   metrics.StoreID(st),
		SKUID:     metrics.SKUID(sku),
		Date:      d,
		Quantity:  dec(qty),
		UnitPrice: dec(price),
		PromoFlag: promo,
	}
}

func catalogRow(sku, supplier string, rrp string) metrics.CatalogFact {
	c := metrics.CatalogFact{
		SKUID:      metrics.SKUID(sku),
		SupplierID: metrics.SupplierID(supplier),
	}
	if rrp != "" {
		c.RRP = nd(rrp)
	}
	return c
}

func seedStore(t *testing.T, catalog []metrics.CatalogFact, facts []metrics.RawSalesFact) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.InsertCatalog(ctx, catalog))
	require.NoError(t, m.InsertSalesFacts(ctx, facts))
	return m
}

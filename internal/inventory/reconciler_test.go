package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	catalogdomain "github.com/smallbiznis/posbridge/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/posbridge/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/posbridge/internal/catalog/service"
	"github.com/smallbiznis/posbridge/internal/clock"
	"github.com/smallbiznis/posbridge/internal/config"
	posdomain "github.com/smallbiznis/posbridge/internal/pos/domain"
	"github.com/smallbiznis/posbridge/internal/pos/postest"
	"github.com/smallbiznis/posbridge/internal/ratelimit"
	storefrontdomain "github.com/smallbiznis/posbridge/internal/storefront/domain"
	"github.com/smallbiznis/posbridge/internal/storefront/storefronttest"
	"github.com/smallbiznis/posbridge/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const locationID = 77

type fixture struct {
	reconciler *Reconciler
	pos        *postest.Fake
	storefront *storefronttest.Fake
	catalog    catalogdomain.Service
	clock      *clock.FakeClock
}

func newFixture(t *testing.T, products []storefrontdomain.Product, stock map[string]string) fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	clk := clock.NewFakeClock(time.Date(2024, 1, 20, 6, 0, 0, 0, time.UTC))

	sf := storefronttest.NewFake()
	sf.Products = products

	pos := postest.NewFake()
	for code, qty := range stock {
		pos.Stock = append(pos.Stock, posdomain.StockLevel{ItemCode: code, Qty: json.Number(qty)})
	}

	catalog := catalogservice.New(catalogservice.Params{
		DB:         dbtest.Open(t, &catalogdomain.Variant{}),
		Log:        log,
		Repo:       catalogrepo.Provide(),
		Storefront: sf,
		Clock:      clk,
	})

	cfg := config.Config{
		POS:  config.POSConfig{WarehouseCode: "SW004", UserID: "uid", UserPassword: "upwd"},
		Sync: config.SyncConfig{PushInterval: 501 * time.Millisecond, InventoryPageLimit: 50},
	}
	reconciler := New(Params{
		Config:     cfg,
		Log:        log,
		POS:        pos,
		Catalog:    catalog,
		Storefront: sf,
		Throttle:   ratelimit.NewIntervalThrottle(clk, cfg.Sync.PushInterval),
	})

	return fixture{reconciler: reconciler, pos: pos, storefront: sf, catalog: catalog, clock: clk}
}

func product(id int64, variants ...storefrontdomain.Variant) storefrontdomain.Product {
	for i := range variants {
		variants[i].ProductID = id
	}
	return storefrontdomain.Product{ID: id, Title: "Product", Variants: variants}
}

func variant(id int64, sku, barcode string) storefrontdomain.Variant {
	v := storefrontdomain.Variant{ID: id, InventoryItemID: id * 10}
	if sku != "" {
		v.SKU = storefronttest.StringPtr(sku)
	}
	if barcode != "" {
		v.Barcode = storefronttest.StringPtr(barcode)
	}
	return v
}

func TestReconcilePrefersBarcodeOverSku(t *testing.T) {
	f := newFixture(t,
		[]storefrontdomain.Product{product(1, variant(1, "S1", "B1"))},
		map[string]string{"B1": "5", "S1": "9"},
	)
	f.storefront.SetLevel(10, locationID, 0)

	result, err := f.reconciler.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"B1"}, result.Updated)
	assert.Equal(t, []storefronttest.SetCall{{LocationID: locationID, InventoryItemID: 10, Available: 5}}, f.storefront.SetCalls())
}

func TestReconcileFallsBackToSku(t *testing.T) {
	f := newFixture(t,
		[]storefrontdomain.Product{product(1, variant(1, "S1", "B-unknown"))},
		map[string]string{"S1": "9"},
	)
	f.storefront.SetLevel(10, locationID, 3)

	result, err := f.reconciler.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"S1"}, result.Updated)
	require.Len(t, f.storefront.SetCalls(), 1)
	assert.Equal(t, 9, f.storefront.SetCalls()[0].Available)
}

func TestReconcileEqualQuantityIsUpToDate(t *testing.T) {
	f := newFixture(t,
		[]storefrontdomain.Product{product(1, variant(1, "S1", ""))},
		map[string]string{"S1": "4"},
	)
	f.storefront.SetLevel(10, locationID, 4)

	result, err := f.reconciler.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"S1"}, result.UpToDate)
	assert.Empty(t, result.Updated)
	assert.Empty(t, f.storefront.SetCalls())
}

func TestReconcileThrottlesOnlyAttemptedVariants(t *testing.T) {
	f := newFixture(t,
		[]storefrontdomain.Product{
			product(1, variant(1, "S1", ""), variant(2, "MISSING-1", "")),
			product(2, variant(3, "S3", ""), variant(4, "", "")),
		},
		map[string]string{"S1": "1", "S3": "3"},
	)
	f.storefront.SetLevel(10, locationID, 0)
	f.storefront.SetLevel(30, locationID, 3)

	result, err := f.reconciler.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"S1"}, result.Updated)
	assert.Equal(t, []string{"S3"}, result.UpToDate)
	assert.Equal(t, []string{"MISSING-1", "variant:4"}, result.NotFound)
	assert.Equal(t, []time.Duration{501 * time.Millisecond, 501 * time.Millisecond}, f.clock.Sleeps())
}

func TestReconcileContinuesAfterPushFailure(t *testing.T) {
	f := newFixture(t,
		[]storefrontdomain.Product{product(1, variant(1, "S1", ""), variant(2, "S2", ""), variant(3, "S3", ""))},
		map[string]string{"S1": "1", "S2": "2", "S3": "3"},
	)
	f.storefront.SetLevel(10, locationID, 0)
	f.storefront.SetLevel(20, locationID, 0)
	f.storefront.SetErr[20] = &storefrontdomain.APIError{Status: 429, Body: "throttled"}

	result, err := f.reconciler.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"S1"}, result.Updated)
	assert.Equal(t, []string{"S2", "S3"}, result.NotUpdated)
	assert.Len(t, f.clock.Sleeps(), 3)
}

func TestReconcileUsesPublishedProductsAndClosesSession(t *testing.T) {
	f := newFixture(t, nil, map[string]string{"S1": "1"})

	_, err := f.reconciler.Reconcile(context.Background())
	require.NoError(t, err)

	queries := f.storefront.ListQueries()
	require.Len(t, queries, 1)
	assert.Equal(t, storefrontdomain.PublishedStatusPublished, queries[0].PublishedStatus)
	assert.Equal(t, 50, queries[0].Limit)
	assert.Equal(t, []string{"open", "lock", "fetch_stock", "release", "close"}, f.pos.Calls())
}

func TestReconcileWritesMirrorInventory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		[]storefrontdomain.Product{product(1, variant(1, "S1", "B1"), variant(2, "S2", ""))},
		map[string]string{" B1 ": "7", "S2": "2.0"},
	)
	_, err := f.catalog.Refresh(ctx)
	require.NoError(t, err)

	_, err = f.reconciler.Reconcile(ctx)
	require.NoError(t, err)

	first, err := f.catalog.FindByVariantID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, first.LastKnownInventory)
	assert.Equal(t, 7, *first.LastKnownInventory)

	second, err := f.catalog.FindByVariantID(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, second.LastKnownInventory)
	assert.Equal(t, 2, *second.LastKnownInventory)
}

func TestReconcileStockFailureAborts(t *testing.T) {
	f := newFixture(t, []storefrontdomain.Product{product(1, variant(1, "S1", ""))}, nil)
	f.pos.StockErr = posdomain.ErrTransport

	_, err := f.reconciler.Reconcile(context.Background())
	require.ErrorIs(t, err, posdomain.ErrTransport)
	assert.Empty(t, f.storefront.ListQueries())
	assert.Equal(t, 1, f.pos.Count("close"))
}

func TestPushSingleCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []storefrontdomain.Product{product(1, variant(1, "S1", "B1"))}, nil)
	_, err := f.catalog.Refresh(ctx)
	require.NoError(t, err)
	f.storefront.SetLevel(10, locationID, 1)

	result, err := f.reconciler.Push(ctx, "B1", 12)
	require.NoError(t, err)
	assert.Equal(t, []string{"B1"}, result.Updated)
	assert.Equal(t, []storefronttest.SetCall{{LocationID: locationID, InventoryItemID: 10, Available: 12}}, f.storefront.SetCalls())

	result, err = f.reconciler.Push(ctx, "B1", 12)
	require.NoError(t, err)
	assert.Equal(t, []string{"B1"}, result.UpToDate)
}

func TestPushUnknownCode(t *testing.T) {
	f := newFixture(t, nil, nil)

	result, err := f.reconciler.Push(context.Background(), "NOPE", 1)
	require.True(t, errors.Is(err, catalogdomain.ErrNotFound))
	assert.Equal(t, []string{"NOPE"}, result.NotFound)

	_, err = f.reconciler.Push(context.Background(), " ", 1)
	assert.ErrorIs(t, err, ErrInvalidCode)
	_, err = f.reconciler.Push(context.Background(), "S1", -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestParseQty(t *testing.T) {
	qty, err := parseQty("12")
	require.NoError(t, err)
	assert.Equal(t, 12, qty)

	qty, err = parseQty("3.9")
	require.NoError(t, err)
	assert.Equal(t, 3, qty)

	_, err = parseQty("")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = parseQty("x")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

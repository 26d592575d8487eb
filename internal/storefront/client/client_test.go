package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallbiznis/posbridge/internal/config"
	"github.com/smallbiznis/posbridge/internal/storefront/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(config.StorefrontConfig{
		ShopURL:     srv.URL,
		AccessToken: "shpat_test",
		APIVersion:  "2022-01",
		Timeout:     2 * time.Second,
	}, zaptest.NewLogger(t))
}

func TestNextPageQuery(t *testing.T) {
	header := `<https://shop.example/admin/api/2022-01/products.json?limit=250&page_info=prev1>; rel="previous", ` +
		`<https://shop.example/admin/api/2022-01/products.json?limit=250&page_info=next2>; rel="next"`

	q := nextPageQuery(header)
	require.NotNil(t, q)
	assert.Equal(t, "next2", q.Get("page_info"))
	assert.Equal(t, "250", q.Get("limit"))

	assert.Nil(t, nextPageQuery(`<https://shop.example/x?page_info=p>; rel="previous"`))
	assert.Nil(t, nextPageQuery(""))
}

func TestListProductsFollowsLinkHeader(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2022-01/products.json", r.URL.Path)
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))

		switch r.URL.Query().Get("page_info") {
		case "":
			assert.Equal(t, "250", r.URL.Query().Get("limit"))
			assert.Equal(t, "published", r.URL.Query().Get("published_status"))
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set("Link", fmt.Sprintf(`<%s/admin/api/2022-01/products.json?limit=250&page_info=p2>; rel="next"`, srvURL))
			_, _ = w.Write([]byte(`{"products":[{"id":1,"title":"Tee","variants":[{"id":11,"sku":"S1","barcode":"B1","inventory_item_id":111}]}]}`))
		case "p2":
			_, _ = w.Write([]byte(`{"products":[{"id":2,"title":"Cap","variants":[{"id":21,"sku":null,"barcode":null,"inventory_item_id":211}]}]}`))
		default:
			t.Errorf("unexpected page %q", r.URL.RawQuery)
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	c := newTestClient(t, srv)
	var ids []int64
	err := c.ListProducts(context.Background(), domain.ProductQuery{PublishedStatus: domain.PublishedStatusPublished}, func(page []domain.Product) error {
		for _, p := range page {
			ids = append(ids, p.ID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
}

func TestGetInventoryLevels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2022-01/inventory_levels.json", r.URL.Path)
		assert.Equal(t, "111", r.URL.Query().Get("inventory_item_ids"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"inventory_levels":[{"inventory_item_id":111,"location_id":9,"available":4}]}`))
	}))
	defer srv.Close()

	levels, err := newTestClient(t, srv).GetInventoryLevels(context.Background(), 111)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, int64(9), levels[0].LocationID)
	require.NotNil(t, levels[0].Available)
	assert.Equal(t, 4, *levels[0].Available)
}

func TestDecodesBodyWithoutJSONContentType(t *testing.T) {
	for _, contentType := range []string{"", "text/plain", "text/html; charset=utf-8"} {
		t.Run(contentType, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if contentType != "" {
					w.Header().Set("Content-Type", contentType)
				}
				_, _ = w.Write([]byte(`{"inventory_levels":[{"inventory_item_id":111,"location_id":9,"available":4}]}`))
			}))
			defer srv.Close()

			levels, err := newTestClient(t, srv).GetInventoryLevels(context.Background(), 111)
			require.NoError(t, err)
			require.Len(t, levels, 1)
			require.NotNil(t, levels[0].Available)
			assert.Equal(t, 4, *levels[0].Available)
		})
	}
}

func TestSetInventoryLevel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/api/2022-01/inventory_levels/set.json", r.URL.Path)

		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, map[string]any{"location_id": float64(9), "inventory_item_id": float64(111), "available": float64(7)}, body)

		_, _ = w.Write([]byte(`{"inventory_level":{"inventory_item_id":111,"location_id":9,"available":7}}`))
	}))
	defer srv.Close()

	level, err := newTestClient(t, srv).SetInventoryLevel(context.Background(), 9, 111, 7)
	require.NoError(t, err)
	require.NotNil(t, level.Available)
	assert.Equal(t, 7, *level.Available)
}

func TestAPIErrorOnNon2xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"errors":"Exceeded 2 calls per second"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).SetInventoryLevel(context.Background(), 9, 111, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRequestFailed)

	var apiErr *domain.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNotConfigured(t *testing.T) {
	c := NewClient(config.StorefrontConfig{}, zaptest.NewLogger(t))
	_, err := c.GetInventoryLevels(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestWebhookManagement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/admin/api/2022-01/webhooks.json":
			raw, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"webhook":{"topic":"orders/create","address":"https://bridge.example/webhooks/orders/create","format":"json"}}`, string(raw))
			_, _ = w.Write([]byte(`{"webhook":{"id":42,"topic":"orders/create","address":"https://bridge.example/webhooks/orders/create","format":"json"}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/admin/api/2022-01/webhooks/count.json":
			assert.Equal(t, "orders/create", r.URL.Query().Get("topic"))
			_, _ = w.Write([]byte(`{"count":1}`))
		case r.Method == http.MethodGet && r.URL.Path == "/admin/api/2022-01/webhooks.json":
			_, _ = w.Write([]byte(`{"webhooks":[{"id":42,"topic":"orders/create"}]}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/admin/api/2022-01/webhooks/42.json":
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx := context.Background()

	created, err := c.CreateWebhook(ctx, domain.Webhook{Topic: "orders/create", Address: "https://bridge.example/webhooks/orders/create"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), created.ID)

	count, err := c.CountWebhooks(ctx, "orders/create")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	hooks, err := c.ListWebhooks(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, hooks, 1)

	require.NoError(t, c.DeleteWebhook(ctx, 42))

	_, err = c.CreateWebhook(ctx, domain.Webhook{})
	assert.ErrorIs(t, err, domain.ErrInvalidTopic)
}

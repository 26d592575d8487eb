package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/smallbiznis/posbridge/internal/config"
	"github.com/smallbiznis/posbridge/internal/observability/tracing"
	"github.com/smallbiznis/posbridge/internal/storefront/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultProductLimit   = 250
	inventoryLevelsLimit  = 50
	accessTokenHeaderName = "X-Shopify-Access-Token"
)

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

// Client talks to the storefront admin REST API.
type Client struct {
	http    *resty.Client
	log     *zap.Logger
	address string
}

func New(p Params) domain.Client {
	return NewClient(p.Config.Storefront, p.Log)
}

func NewClient(cfg config.StorefrontConfig, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	redirects := cfg.MaxRedirects
	if redirects <= 0 {
		redirects = 5
	}
	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		version = "2022-01"
	}

	baseURL := strings.TrimRight(cfg.ShopURL, "/") + "/admin/api/" + version
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(redirects)).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader(accessTokenHeaderName, cfg.AccessToken)

	return &Client{
		http:    httpClient,
		log:     log.Named("storefront.client"),
		address: strings.TrimRight(cfg.ShopURL, "/"),
	}
}

type productsEnvelope struct {
	Products []domain.Product `json:"products"`
}

type inventoryLevelsEnvelope struct {
	InventoryLevels []domain.InventoryLevel `json:"inventory_levels"`
}

type inventoryLevelEnvelope struct {
	InventoryLevel domain.InventoryLevel `json:"inventory_level"`
}

type webhookEnvelope struct {
	Webhook domain.Webhook `json:"webhook"`
}

type webhooksEnvelope struct {
	Webhooks []domain.Webhook `json:"webhooks"`
}

type countEnvelope struct {
	Count int `json:"count"`
}

type setInventoryRequest struct {
	LocationID      int64 `json:"location_id"`
	InventoryItemID int64 `json:"inventory_item_id"`
	Available       int   `json:"available"`
}

// ListProducts walks every product page, following the Link header, and hands
// each page to fn.
func (c *Client) ListProducts(ctx context.Context, query domain.ProductQuery, fn func(page []domain.Product) error) error {
	limit := query.Limit
	if limit <= 0 || limit > defaultProductLimit {
		limit = defaultProductLimit
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if query.PublishedStatus != "" {
		params.Set("published_status", query.PublishedStatus)
	}

	for page := 1; params != nil; page++ {
		var out productsEnvelope
		next, err := c.getPage(ctx, "products.json", params, &out)
		if err != nil {
			return fmt.Errorf("list products page %d: %w", page, err)
		}
		c.log.Debug("storefront.products.page",
			zap.Int("page", page),
			zap.Int("products", len(out.Products)),
		)
		if err := fn(out.Products); err != nil {
			return err
		}
		params = next
	}
	return nil
}

func (c *Client) GetInventoryLevels(ctx context.Context, inventoryItemID int64) ([]domain.InventoryLevel, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(inventoryLevelsLimit))
	params.Set("inventory_item_ids", strconv.FormatInt(inventoryItemID, 10))

	var levels []domain.InventoryLevel
	for params != nil {
		var out inventoryLevelsEnvelope
		next, err := c.getPage(ctx, "inventory_levels.json", params, &out)
		if err != nil {
			return nil, fmt.Errorf("inventory levels for item %d: %w", inventoryItemID, err)
		}
		levels = append(levels, out.InventoryLevels...)
		params = next
	}
	return levels, nil
}

func (c *Client) SetInventoryLevel(ctx context.Context, locationID, inventoryItemID int64, available int) (domain.InventoryLevel, error) {
	var out inventoryLevelEnvelope
	err := c.call(ctx, "inventory_levels.set", func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetBody(setInventoryRequest{
				LocationID:      locationID,
				InventoryItemID: inventoryItemID,
				Available:       available,
			}).
			SetResult(&out).
			Post("inventory_levels/set.json")
	})
	if err != nil {
		return domain.InventoryLevel{}, err
	}
	return out.InventoryLevel, nil
}

func (c *Client) CreateWebhook(ctx context.Context, webhook domain.Webhook) (domain.Webhook, error) {
	if strings.TrimSpace(webhook.Topic) == "" {
		return domain.Webhook{}, domain.ErrInvalidTopic
	}
	if webhook.Format == "" {
		webhook.Format = "json"
	}
	var out webhookEnvelope
	err := c.call(ctx, "webhooks.create", func(req *resty.Request) (*resty.Response, error) {
		return req.SetBody(webhookEnvelope{Webhook: webhook}).SetResult(&out).Post("webhooks.json")
	})
	if err != nil {
		return domain.Webhook{}, err
	}
	return out.Webhook, nil
}

func (c *Client) ListWebhooks(ctx context.Context, sinceID int64) ([]domain.Webhook, error) {
	var out webhooksEnvelope
	err := c.call(ctx, "webhooks.list", func(req *resty.Request) (*resty.Response, error) {
		if sinceID > 0 {
			req.SetQueryParam("since_id", strconv.FormatInt(sinceID, 10))
		}
		return req.SetResult(&out).Get("webhooks.json")
	})
	if err != nil {
		return nil, err
	}
	return out.Webhooks, nil
}

func (c *Client) CountWebhooks(ctx context.Context, topic string) (int, error) {
	var out countEnvelope
	err := c.call(ctx, "webhooks.count", func(req *resty.Request) (*resty.Response, error) {
		if topic = strings.TrimSpace(topic); topic != "" {
			req.SetQueryParam("topic", topic)
		}
		return req.SetResult(&out).Get("webhooks/count.json")
	})
	if err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) UpdateWebhook(ctx context.Context, id int64, webhook domain.Webhook) (domain.Webhook, error) {
	webhook.ID = id
	var out webhookEnvelope
	err := c.call(ctx, "webhooks.update", func(req *resty.Request) (*resty.Response, error) {
		return req.SetBody(webhookEnvelope{Webhook: webhook}).SetResult(&out).Put(fmt.Sprintf("webhooks/%d.json", id))
	})
	if err != nil {
		return domain.Webhook{}, err
	}
	return out.Webhook, nil
}

func (c *Client) DeleteWebhook(ctx context.Context, id int64) error {
	return c.call(ctx, "webhooks.delete", func(req *resty.Request) (*resty.Response, error) {
		return req.Delete(fmt.Sprintf("webhooks/%d.json", id))
	})
}

func (c *Client) getPage(ctx context.Context, path string, params url.Values, out any) (url.Values, error) {
	var link string
	err := c.call(ctx, strings.TrimSuffix(path, ".json"), func(req *resty.Request) (*resty.Response, error) {
		resp, err := req.SetQueryParamsFromValues(params).SetResult(out).Get(path)
		if resp != nil {
			link = resp.Header().Get("Link")
		}
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return nextPageQuery(link), nil
}

func (c *Client) call(ctx context.Context, operation string, send func(req *resty.Request) (*resty.Response, error)) error {
	if c.address == "" {
		return domain.ErrNotConfigured
	}
	ctx, span := tracing.StartSpan(ctx, "storefront."+operation, attribute.String("storefront.operation", operation))
	defer span.End()

	start := time.Now()
	resp, err := send(c.http.R().SetContext(ctx).ForceContentType("application/json"))
	err = c.check(resp, err)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, operation)
		c.log.Warn("storefront.call.failed",
			zap.String("operation", operation),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (c *Client) check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRequestFailed, err)
	}
	if resp.IsError() {
		body := string(resp.Body())
		if len(body) > 512 {
			body = body[:512]
		}
		return &domain.APIError{Status: resp.StatusCode(), Body: body}
	}
	return nil
}

package domain

import (
	"context"
	"errors"
	"fmt"
)

// Client is the storefront admin API surface used by the sync jobs.
type Client interface {
	ListProducts(ctx context.Context, query ProductQuery, fn func(page []Product) error) error
	GetInventoryLevels(ctx context.Context, inventoryItemID int64) ([]InventoryLevel, error)
	SetInventoryLevel(ctx context.Context, locationID, inventoryItemID int64, available int) (InventoryLevel, error)

	CreateWebhook(ctx context.Context, webhook Webhook) (Webhook, error)
	ListWebhooks(ctx context.Context, sinceID int64) ([]Webhook, error)
	CountWebhooks(ctx context.Context, topic string) (int, error)
	UpdateWebhook(ctx context.Context, id int64, webhook Webhook) (Webhook, error)
	DeleteWebhook(ctx context.Context, id int64) error
}

var (
	ErrRequestFailed = errors.New("storefront_request_failed")
	ErrNotConfigured = errors.New("storefront_not_configured")
	ErrInvalidTopic  = errors.New("invalid_webhook_topic")
)

// APIError is a non-2xx storefront reply.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrRequestFailed.Error(), e.Status, e.Body)
}

func (e *APIError) Unwrap() error {
	return ErrRequestFailed
}

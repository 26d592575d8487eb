// Package storefronttest provides an in-memory storefront for package tests.
package storefronttest

import (
	"context"
	"sync"

	"github.com/smallbiznis/posbridge/internal/storefront/domain"
)

type SetCall struct {
	LocationID      int64
	InventoryItemID int64
	Available       int
}

// Fake implements domain.Client over in-memory products and inventory levels.
type Fake struct {
	mu sync.Mutex

	Products []domain.Product
	PageSize int
	Levels   map[int64][]domain.InventoryLevel
	SetErr   map[int64]error
	ListErr  error
	Webhooks []domain.Webhook

	setCalls    []SetCall
	levelCalls  []int64
	listQueries []domain.ProductQuery
}

func NewFake() *Fake {
	return &Fake{
		Levels: map[int64][]domain.InventoryLevel{},
		SetErr: map[int64]error{},
	}
}

// SetLevel registers the current level of an inventory item at a location.
func (f *Fake) SetLevel(inventoryItemID, locationID int64, available int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := available
	f.Levels[inventoryItemID] = []domain.InventoryLevel{{
		InventoryItemID: inventoryItemID,
		LocationID:      locationID,
		Available:       &a,
	}}
}

func (f *Fake) ListProducts(ctx context.Context, query domain.ProductQuery, fn func(page []domain.Product) error) error {
	f.mu.Lock()
	f.listQueries = append(f.listQueries, query)
	products := append([]domain.Product(nil), f.Products...)
	size := f.PageSize
	listErr := f.ListErr
	f.mu.Unlock()

	if listErr != nil {
		return listErr
	}
	if size <= 0 {
		size = len(products)
		if size == 0 {
			size = 1
		}
	}
	for start := 0; start < len(products); start += size {
		end := start + size
		if end > len(products) {
			end = len(products)
		}
		if err := fn(products[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fake) GetInventoryLevels(ctx context.Context, inventoryItemID int64) ([]domain.InventoryLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levelCalls = append(f.levelCalls, inventoryItemID)
	return append([]domain.InventoryLevel(nil), f.Levels[inventoryItemID]...), nil
}

func (f *Fake) SetInventoryLevel(ctx context.Context, locationID, inventoryItemID int64, available int) (domain.InventoryLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.SetErr[inventoryItemID]; err != nil {
		return domain.InventoryLevel{}, err
	}
	f.setCalls = append(f.setCalls, SetCall{LocationID: locationID, InventoryItemID: inventoryItemID, Available: available})
	a := available
	level := domain.InventoryLevel{InventoryItemID: inventoryItemID, LocationID: locationID, Available: &a}
	f.Levels[inventoryItemID] = []domain.InventoryLevel{level}
	return level, nil
}

func (f *Fake) CreateWebhook(ctx context.Context, webhook domain.Webhook) (domain.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if webhook.Topic == "" {
		return domain.Webhook{}, domain.ErrInvalidTopic
	}
	webhook.ID = int64(len(f.Webhooks) + 1)
	f.Webhooks = append(f.Webhooks, webhook)
	return webhook, nil
}

func (f *Fake) ListWebhooks(ctx context.Context, sinceID int64) ([]domain.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Webhook
	for _, w := range f.Webhooks {
		if w.ID > sinceID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *Fake) CountWebhooks(ctx context.Context, topic string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, w := range f.Webhooks {
		if topic == "" || w.Topic == topic {
			n++
		}
	}
	return n, nil
}

func (f *Fake) UpdateWebhook(ctx context.Context, id int64, webhook domain.Webhook) (domain.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.Webhooks {
		if w.ID == id {
			webhook.ID = id
			f.Webhooks[i] = webhook
			return webhook, nil
		}
	}
	return domain.Webhook{}, &domain.APIError{Status: 404, Body: "not found"}
}

func (f *Fake) DeleteWebhook(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.Webhooks {
		if w.ID == id {
			f.Webhooks = append(f.Webhooks[:i], f.Webhooks[i+1:]...)
			return nil
		}
	}
	return &domain.APIError{Status: 404, Body: "not found"}
}

func (f *Fake) SetCalls() []SetCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SetCall(nil), f.setCalls...)
}

func (f *Fake) LevelCalls() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.levelCalls...)
}

func (f *Fake) ListQueries() []domain.ProductQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ProductQuery(nil), f.listQueries...)
}

func StringPtr(s string) *string {
	return &s
}

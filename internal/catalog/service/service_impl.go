package service

import (
	"context"
	"sort"
	"strings"

	"github.com/smallbiznis/posbridge/internal/catalog/domain"
	"github.com/smallbiznis/posbridge/internal/clock"
	storefrontdomain "github.com/smallbiznis/posbridge/internal/storefront/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Repo       domain.Repository
	Storefront storefrontdomain.Client
	Clock      clock.Clock
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	storefront storefrontdomain.Client
	clock      clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("catalog.service"),
		repo:       p.Repo,
		storefront: p.Storefront,
		clock:      p.Clock,
	}
}

// Refresh pulls the whole storefront catalog and upserts one mirror entry per
// variant. Entries missing from the pull are kept.
func (s *Service) Refresh(ctx context.Context) (domain.RefreshResult, error) {
	var result domain.RefreshResult

	err := s.storefront.ListProducts(ctx, storefrontdomain.ProductQuery{PublishedStatus: storefrontdomain.PublishedStatusAny}, func(page []storefrontdomain.Product) error {
		now := s.clock.Now()
		variants := make([]*domain.Variant, 0, len(page))
		for _, product := range page {
			result.Products++
			for _, v := range product.Variants {
				if v.ID == 0 {
					continue
				}
				variants = append(variants, &domain.Variant{
					VariantID:       v.ID,
					ProductID:       product.ID,
					ProductTitle:    optional(product.Title),
					VariantTitle:    optional(v.Title),
					InventoryItemID: v.InventoryItemID,
					SKU:             optionalPtr(v.SKU),
					Barcode:         optionalPtr(v.Barcode),
					CreatedAt:       now,
					UpdatedAt:       now,
				})
			}
		}
		if err := s.repo.Upsert(ctx, s.db, variants); err != nil {
			return err
		}
		result.Variants += len(variants)
		return nil
	})
	if err != nil {
		return result, err
	}

	s.log.Info("catalog.refresh.completed",
		zap.Int("products", result.Products),
		zap.Int("variants", result.Variants),
	)
	return result, nil
}

// FindByVariantID returns nil without error when the variant is not mirrored.
func (s *Service) FindByVariantID(ctx context.Context, variantID int64) (*domain.Variant, error) {
	if variantID <= 0 {
		return nil, domain.ErrInvalidVariant
	}
	return s.repo.FindByVariantID(ctx, s.db, variantID)
}

func (s *Service) FindByCode(ctx context.Context, code string) (domain.Variant, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Variant{}, domain.ErrInvalidCode
	}
	variant, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return domain.Variant{}, err
	}
	if variant == nil {
		return domain.Variant{}, domain.ErrNotFound
	}
	return *variant, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Variant, error) {
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{SKU: req.SKU, Barcode: req.Barcode, Limit: req.Limit})
	if err != nil {
		return nil, err
	}
	variants := make([]domain.Variant, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		variants = append(variants, *item)
	}
	return variants, nil
}

// RecordInventory stores the POS quantity on every mirror entry whose SKU or
// barcode equals the item code. It returns the number of rows touched.
func (s *Service) RecordInventory(ctx context.Context, levels map[string]int) (int64, error) {
	codes := make([]string, 0, len(levels))
	for code := range levels {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	now := s.clock.Now()
	var total int64
	for _, code := range codes {
		if code == "" {
			continue
		}
		affected, err := s.repo.UpdateInventoryByCode(ctx, s.db, code, levels[code], now)
		if err != nil {
			return total, err
		}
		total += affected
	}
	return total, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optionalPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return optional(*s)
}

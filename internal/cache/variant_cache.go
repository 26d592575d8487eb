package cache

import (
	"context"
	"time"

	catalogdomain "github.com/smallbiznis/posbridge/internal/catalog/domain"
	"github.com/smallbiznis/posbridge/internal/clock"
	"go.uber.org/fx"
)

const (
	defaultVariantTTL = 10 * time.Minute
	defaultMissTTL    = 45 * time.Second
)

// VariantSource is the catalog mirror read used on the translation path.
type VariantSource interface {
	FindByVariantID(ctx context.Context, variantID int64) (*catalogdomain.Variant, error)
}

// VariantCache fronts mirror lookups by variant id. Misses are cached for a
// shorter time so a catalog refresh is picked up quickly.
type VariantCache struct {
	source  VariantSource
	entries Cache[int64, *catalogdomain.Variant]
	hitTTL  time.Duration
	missTTL time.Duration
}

type Params struct {
	fx.In

	Catalog catalogdomain.Service
	Clock   clock.Clock
}

func NewVariantCache(p Params) *VariantCache {
	return NewVariantCacheWithTTL(p.Catalog, p.Clock, defaultVariantTTL, defaultMissTTL)
}

func NewVariantCacheWithTTL(source VariantSource, clk clock.Clock, hitTTL, missTTL time.Duration) *VariantCache {
	return &VariantCache{
		source:  source,
		entries: NewTTLCache[int64, *catalogdomain.Variant](clk),
		hitTTL:  hitTTL,
		missTTL: missTTL,
	}
}

// FindByVariantID returns the mirrored variant, or (nil, nil) when the
// variant is not mirrored.
func (c *VariantCache) FindByVariantID(ctx context.Context, variantID int64) (*catalogdomain.Variant, error) {
	if cached, ok := c.entries.Get(variantID); ok {
		return clone(cached), nil
	}

	variant, err := c.source.FindByVariantID(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if variant == nil {
		c.entries.Set(variantID, nil, c.missTTL)
		return nil, nil
	}
	c.entries.Set(variantID, clone(variant), c.hitTTL)
	return clone(variant), nil
}

// Purge drops every cached lookup.
func (c *VariantCache) Purge() {
	c.entries.Purge()
}

func clone(v *catalogdomain.Variant) *catalogdomain.Variant {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

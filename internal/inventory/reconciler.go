// Package inventory pushes POS stock levels to the storefront.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/posbridge/internal/catalog/domain"
	"github.com/smallbiznis/posbridge/internal/config"
	obsmetrics "github.com/smallbiznis/posbridge/internal/observability/metrics"
	"github.com/smallbiznis/posbridge/internal/observability/tracing"
	posclient "github.com/smallbiznis/posbridge/internal/pos/client"
	posdomain "github.com/smallbiznis/posbridge/internal/pos/domain"
	"github.com/smallbiznis/posbridge/internal/ratelimit"
	storefrontdomain "github.com/smallbiznis/posbridge/internal/storefront/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	BucketUpdated    = "updated"
	BucketUpToDate   = "up_to_date"
	BucketNotUpdated = "not_updated"
	BucketNotFound   = "not_found"

	jobName = "inventory_sync"
)

var (
	ErrInvalidCode     = errors.New("invalid_item_code")
	ErrInvalidQuantity = errors.New("invalid_quantity")
	ErrNoLocation      = errors.New("inventory_location_not_found")
)

// Result lists the item codes that landed in each bucket.
type Result struct {
	Updated    []string `json:"updated"`
	UpToDate   []string `json:"up_to_date"`
	NotUpdated []string `json:"not_updated"`
	NotFound   []string `json:"not_found"`
}

func newResult() Result {
	return Result{
		Updated:    []string{},
		UpToDate:   []string{},
		NotUpdated: []string{},
		NotFound:   []string{},
	}
}

type Params struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	POS        posdomain.Client
	Catalog    catalogdomain.Service
	Storefront storefrontdomain.Client
	Throttle   ratelimit.Throttle
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Reconciler struct {
	log        *zap.Logger
	pos        posdomain.Client
	creds      posdomain.Credentials
	warehouse  string
	pageLimit  int
	catalog    catalogdomain.Service
	storefront storefrontdomain.Client
	throttle   ratelimit.Throttle
	metrics    *obsmetrics.Metrics
	sync       *obsmetrics.SyncMetrics
}

func New(p Params) *Reconciler {
	return &Reconciler{
		log:        p.Log.Named("inventory"),
		pos:        p.POS,
		creds:      posclient.CredentialsFromConfig(p.Config.POS),
		warehouse:  strings.TrimSpace(p.Config.POS.WarehouseCode),
		pageLimit:  p.Config.Sync.InventoryPageLimit,
		catalog:    p.Catalog,
		storefront: p.Storefront,
		throttle:   p.Throttle,
		metrics:    p.Metrics,
		sync:       obsmetrics.Sync(),
	}
}

// Reconcile reads the POS stock feed and pushes every differing quantity to
// the storefront. A failing variant lands in NotUpdated and the loop goes on.
func (r *Reconciler) Reconcile(ctx context.Context) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "inventory.reconcile", attribute.String("warehouse", r.warehouse))
	defer span.End()

	result := newResult()

	levels, err := r.fetchLevels(ctx)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		return result, err
	}

	if touched, err := r.catalog.RecordInventory(ctx, levels); err != nil {
		r.log.Warn("inventory.mirror_update_failed", zap.Error(err))
	} else {
		r.log.Info("inventory.mirror_updated", zap.Int64("rows", touched), zap.Int("codes", len(levels)))
	}

	query := storefrontdomain.ProductQuery{
		PublishedStatus: storefrontdomain.PublishedStatusPublished,
		Limit:           r.pageLimit,
	}
	err = r.storefront.ListProducts(ctx, query, func(page []storefrontdomain.Product) error {
		for _, product := range page {
			for _, variant := range product.Variants {
				if err := r.reconcileVariant(ctx, levels, variant, &result); err != nil {
					return err
				}
			}
		}
		return nil
	})

	r.record(ctx, result)
	r.log.Info("inventory.reconcile.completed",
		zap.Int("updated", len(result.Updated)),
		zap.Int("up_to_date", len(result.UpToDate)),
		zap.Int("not_updated", len(result.NotUpdated)),
		zap.Int("not_found", len(result.NotFound)),
	)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		return result, err
	}
	return result, nil
}

func (r *Reconciler) fetchLevels(ctx context.Context) (map[string]int, error) {
	var rows []posdomain.StockLevel
	err := posclient.WithSession(ctx, r.pos, r.creds, func(ctx context.Context, session posdomain.Session) error {
		var err error
		rows, err = r.pos.FetchStock(ctx, session, r.warehouse)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pos stock: %w", err)
	}

	levels := make(map[string]int, len(rows))
	for _, row := range rows {
		code := strings.TrimSpace(row.ItemCode)
		if code == "" {
			continue
		}
		qty, err := parseQty(row.Qty.String())
		if err != nil {
			r.log.Warn("inventory.feed_row_skipped", zap.String("item_code", code), zap.String("qty", row.Qty.String()))
			continue
		}
		levels[code] = qty
	}
	return levels, nil
}

// reconcileVariant only returns an error when the run must stop.
func (r *Reconciler) reconcileVariant(ctx context.Context, levels map[string]int, variant storefrontdomain.Variant, result *Result) error {
	code, qty, ok := matchCode(levels, variant)
	if !ok {
		result.NotFound = append(result.NotFound, variantLabel(variant))
		return nil
	}

	bucket, err := r.apply(ctx, variant.InventoryItemID, qty)
	switch bucket {
	case BucketUpdated:
		result.Updated = append(result.Updated, code)
	case BucketUpToDate:
		result.UpToDate = append(result.UpToDate, code)
	default:
		result.NotUpdated = append(result.NotUpdated, code)
		r.log.Warn("inventory.push_failed",
			zap.String("item_code", code),
			zap.Int64("inventory_item_id", variant.InventoryItemID),
			zap.Error(err),
		)
	}

	return r.throttle.Wait(ctx)
}

// apply compares the storefront's available count with qty and sets it when
// they differ.
func (r *Reconciler) apply(ctx context.Context, inventoryItemID int64, qty int) (string, error) {
	current, err := r.storefront.GetInventoryLevels(ctx, inventoryItemID)
	if err != nil {
		return BucketNotUpdated, err
	}
	if len(current) == 0 {
		return BucketNotUpdated, ErrNoLocation
	}
	level := current[0]
	if level.Available != nil && *level.Available == qty {
		return BucketUpToDate, nil
	}
	if _, err := r.storefront.SetInventoryLevel(ctx, level.LocationID, inventoryItemID, qty); err != nil {
		return BucketNotUpdated, err
	}
	return BucketUpdated, nil
}

// Push sets the storefront quantity of a single mirrored item code.
func (r *Reconciler) Push(ctx context.Context, code string, qty int) (Result, error) {
	result := newResult()
	code = strings.TrimSpace(code)
	if code == "" {
		return result, ErrInvalidCode
	}
	if qty < 0 {
		return result, ErrInvalidQuantity
	}

	variant, err := r.catalog.FindByCode(ctx, code)
	if errors.Is(err, catalogdomain.ErrNotFound) {
		result.NotFound = append(result.NotFound, code)
		return result, err
	}
	if err != nil {
		return result, err
	}

	if _, err := r.catalog.RecordInventory(ctx, map[string]int{code: qty}); err != nil {
		r.log.Warn("inventory.mirror_update_failed", zap.String("item_code", code), zap.Error(err))
	}

	bucket, err := r.apply(ctx, variant.InventoryItemID, qty)
	switch bucket {
	case BucketUpdated:
		result.Updated = append(result.Updated, code)
	case BucketUpToDate:
		result.UpToDate = append(result.UpToDate, code)
	default:
		result.NotUpdated = append(result.NotUpdated, code)
	}
	r.record(ctx, result)
	if err != nil {
		return result, err
	}
	r.log.Info("inventory.push.completed", zap.String("item_code", code), zap.String("bucket", bucket))
	return result, nil
}

func (r *Reconciler) record(ctx context.Context, result Result) {
	buckets := map[string]int{
		BucketUpdated:    len(result.Updated),
		BucketUpToDate:   len(result.UpToDate),
		BucketNotUpdated: len(result.NotUpdated),
		BucketNotFound:   len(result.NotFound),
	}
	total := 0
	for bucket, n := range buckets {
		total += n
		r.sync.AddInventoryResults(bucket, n)
		for i := 0; i < n; i++ {
			r.metrics.RecordInventoryPush(ctx, bucket)
		}
	}
	r.sync.AddBatchProcessed(jobName, "variants", total)
}

// matchCode prefers the barcode and falls back to the SKU.
func matchCode(levels map[string]int, variant storefrontdomain.Variant) (string, int, bool) {
	for _, candidate := range []*string{variant.Barcode, variant.SKU} {
		if candidate == nil {
			continue
		}
		code := strings.TrimSpace(*candidate)
		if code == "" {
			continue
		}
		if qty, ok := levels[code]; ok {
			return code, qty, true
		}
	}
	return "", 0, false
}

func variantLabel(variant storefrontdomain.Variant) string {
	for _, candidate := range []*string{variant.SKU, variant.Barcode} {
		if candidate != nil && strings.TrimSpace(*candidate) != "" {
			return strings.TrimSpace(*candidate)
		}
	}
	return fmt.Sprintf("variant:%d", variant.ID)
}

// parseQty accepts integral and fractional feed quantities, truncating the
// latter.
func parseQty(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidQuantity
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidQuantity, err)
	}
	return int(d.IntPart()), nil
}

package scheduler

import (
	"fmt"
	"time"

	"github.com/smallbiznis/posbridge/internal/config"
)

// Config controls job cadence, timeouts and lock lifetimes.
type Config struct {
	Enabled          bool
	RecoveryInterval time.Duration
	CatalogRefreshAt []TimeOfDay
	InventorySyncAt  []TimeOfDay
	Location         *time.Location
	JobLockTTL       time.Duration

	RecoveryTimeout  time.Duration
	CatalogTimeout   time.Duration
	InventoryTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		RecoveryInterval: 10 * time.Minute,
		CatalogRefreshAt: []TimeOfDay{{Hour: 0, Minute: 0}},
		InventorySyncAt: []TimeOfDay{
			{Hour: 0, Minute: 0},
			{Hour: 6, Minute: 0},
			{Hour: 12, Minute: 0},
			{Hour: 18, Minute: 0},
		},
		Location:         time.UTC,
		JobLockTTL:       30 * time.Minute,
		RecoveryTimeout:  5 * time.Minute,
		CatalogTimeout:   15 * time.Minute,
		InventoryTimeout: 2 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RecoveryInterval <= 0 {
		c.RecoveryInterval = defaults.RecoveryInterval
	}
	if len(c.CatalogRefreshAt) == 0 {
		c.CatalogRefreshAt = defaults.CatalogRefreshAt
	}
	if len(c.InventorySyncAt) == 0 {
		c.InventorySyncAt = defaults.InventorySyncAt
	}
	if c.Location == nil {
		c.Location = defaults.Location
	}
	if c.JobLockTTL <= 0 {
		c.JobLockTTL = defaults.JobLockTTL
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = defaults.RecoveryTimeout
	}
	if c.CatalogTimeout <= 0 {
		c.CatalogTimeout = defaults.CatalogTimeout
	}
	if c.InventoryTimeout <= 0 {
		c.InventoryTimeout = defaults.InventoryTimeout
	}
	return c
}

// ProvideConfig maps the application config onto the scheduler config.
func ProvideConfig(cfg config.Config) (Config, error) {
	catalogAt, err := ParseTimesOfDay(cfg.Sync.CatalogRefreshAt)
	if err != nil {
		return Config{}, fmt.Errorf("catalog refresh schedule: %w", err)
	}
	inventoryAt, err := ParseTimesOfDay(cfg.Sync.InventorySyncAt)
	if err != nil {
		return Config{}, fmt.Errorf("inventory sync schedule: %w", err)
	}
	return Config{
		Enabled:          cfg.Sync.Enabled,
		RecoveryInterval: cfg.Sync.RecoveryInterval,
		CatalogRefreshAt: catalogAt,
		InventorySyncAt:  inventoryAt,
		Location:         cfg.POS.Location(),
		JobLockTTL:       cfg.Sync.JobLockTTL,
	}.withDefaults(), nil
}

package main

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/joho/godotenv"
	"github.com/smallbiznis/posbridge/internal/cache"
	"github.com/smallbiznis/posbridge/internal/catalog"
	"github.com/smallbiznis/posbridge/internal/clock"
	"github.com/smallbiznis/posbridge/internal/config"
	"github.com/smallbiznis/posbridge/internal/inventory"
	"github.com/smallbiznis/posbridge/internal/migration"
	"github.com/smallbiznis/posbridge/internal/observability"
	"github.com/smallbiznis/posbridge/internal/ordersync"
	"github.com/smallbiznis/posbridge/internal/pos"
	"github.com/smallbiznis/posbridge/internal/ratelimit"
	"github.com/smallbiznis/posbridge/internal/scheduler"
	"github.com/smallbiznis/posbridge/internal/storefront"
	"github.com/smallbiznis/posbridge/internal/transaction"
	"github.com/smallbiznis/posbridge/internal/translator"
	"github.com/smallbiznis/posbridge/pkg/db"
	"go.uber.org/fx"
)

// coreModules wires everything the sync jobs need, without any listener.
func coreModules() fx.Option {
	return fx.Options(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,

		// Functional Domains
		pos.Module,
		storefront.Module,
		transaction.Module,
		catalog.Module,
		cache.Module,
		translator.Module,
		ordersync.Module,
		inventory.Module,
		scheduler.Module,
	)
}

func loadEnv(opts *RootOptions) error {
	if opts.EnvFile == "" {
		return nil
	}
	if err := godotenv.Load(opts.EnvFile); err != nil {
		return fmt.Errorf("load %s: %w", opts.EnvFile, err)
	}
	return nil
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

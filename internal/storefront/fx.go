package storefront

import (
	"github.com/smallbiznis/posbridge/internal/storefront/client"
	"github.com/smallbiznis/posbridge/internal/storefront/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("storefront",
	fx.Provide(client.New),
	fx.Provide(webhook.NewVerifier),
)

package pos

import (
	"github.com/smallbiznis/posbridge/internal/pos/client"
	"go.uber.org/fx"
)

var Module = fx.Module("pos.client",
	fx.Provide(client.New),
)

package enrichment

import (
	"go.uber.org/fx"
)

var Module = fx.Module("enrichment",
	fx.Provide(
		NewQueue,
		NewService,
		NewHandler,
		NewSweeper,
	),
	fx.Invoke(
		RegisterRoutes,
		RegisterSweeper,
	),
)

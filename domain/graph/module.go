package graph

import (
	"go.uber.org/fx"
)

var Module = fx.Module("graph",
	fx.Provide(
		NewRepository,
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)

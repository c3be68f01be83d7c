package chunks

import (
	"go.uber.org/fx"
)

var Module = fx.Module("chunks",
	fx.Provide(NewRepository),
)

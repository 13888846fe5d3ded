package adaptive

import "go.uber.org/fx"

var Module = fx.Module("adaptive",
	fx.Provide(New),
)

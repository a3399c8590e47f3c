package pedido

import "go.uber.org/fx"

// Module provides the pedido service to Fx.
var Module = fx.Provide(NewService)

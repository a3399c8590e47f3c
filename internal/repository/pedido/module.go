package pedido

import "go.uber.org/fx"

// Module provides the pedido repository to Fx.
var Module = fx.Provide(NewRepository)

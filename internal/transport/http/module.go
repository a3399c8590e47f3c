package http

import (
	"go.uber.org/fx"

	estadisticatransport "github.com/casadx/pedidos/internal/transport/http/estadistica"
	pedidotransport "github.com/casadx/pedidos/internal/transport/http/pedido"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	pedidotransport.Module,
	estadisticatransport.Module,
)

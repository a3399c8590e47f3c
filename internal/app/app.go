package app

import (
	"go.uber.org/fx"

	"github.com/casadx/pedidos/internal/cache"
	"github.com/casadx/pedidos/internal/config"
	"github.com/casadx/pedidos/internal/database"
	"github.com/casadx/pedidos/internal/logger"
	"github.com/casadx/pedidos/internal/messaging"
	"github.com/casadx/pedidos/internal/migration"
	"github.com/casadx/pedidos/internal/observability"
	repositorypedido "github.com/casadx/pedidos/internal/repository/pedido"
	grpcserver "github.com/casadx/pedidos/internal/server/grpc"
	httpserver "github.com/casadx/pedidos/internal/server/http"
	serviceestadistica "github.com/casadx/pedidos/internal/service/estadistica"
	servicepedido "github.com/casadx/pedidos/internal/service/pedido"
	"github.com/casadx/pedidos/internal/storage/imagen"
	transporthttp "github.com/casadx/pedidos/internal/transport/http"
)

// Infra provides configuration, logging and the database, enough for the
// migrate and seed commands.
var Infra = fx.Options(
	config.Module,
	logger.Module,
	database.Module,
	migration.Module,
	repositorypedido.Module,
)

// Core adds the services and their backing clients.
var Core = fx.Options(
	Infra,
	cache.Module,
	messaging.Module,
	observability.Module,
	imagen.Module,
	servicepedido.Module,
	serviceestadistica.Module,
)

// HTTP wires the HTTP transport and the optional gRPC health server on top of
// the core modules.
var HTTP = fx.Options(
	Core,
	fx.Invoke(migration.RunOnStart),
	httpserver.Module,
	transporthttp.Module,
	grpcserver.Module,
)

// Module is the default application wiring.
var Module = HTTP

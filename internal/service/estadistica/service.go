// Package estadistica aggregates pedidos into the dashboard statistics.
package estadistica

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/casadx/pedidos/internal/dto"
	"github.com/casadx/pedidos/internal/entity"
	repo "github.com/casadx/pedidos/internal/repository/pedido"
	"github.com/casadx/pedidos/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/casadx/pedidos/service/estadistica")

// monthLayout keys totalPorMes by UTC year and month.
const monthLayout = "2006-01"

// Service computes statistics over every stored pedido.
type Service struct {
	repo   *repo.Repository
	logger *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: p.Repository, logger: logger}
}

// Compute aggregates every stored pedido on each call.
func (s *Service) Compute(ctx context.Context) (dto.EstadisticasResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "EstadisticaService.Compute")
	defer span.End()

	rows, err := s.repo.Resumen(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return dto.EstadisticasResponse{}, errorbank.Store("Error al obtener estadísticas", errorbank.WithCause(err))
	}

	stats := Aggregate(rows)
	span.SetAttributes(attribute.Int("pedido.count", len(rows)))
	s.logger.Debug("statistics computed", zap.Int("pedidos", len(rows)))
	return stats, nil
}

// Aggregate folds pedidos into monthly counts, the delivered amount, counts
// per estado and the amount spent per familiar. Every map is non-nil.
func Aggregate(pedidos []entity.Pedido) dto.EstadisticasResponse {
	stats := dto.EstadisticasResponse{
		TotalPorMes:    make(map[string]int),
		PorEstado:      make(map[string]int),
		PorPersona:     make(map[string]dto.Monto),
	}
	entregado := decimal.Zero
	for _, p := range pedidos {
		stats.TotalPorMes[p.Fecha.UTC().Format(monthLayout)]++
		stats.PorEstado[string(p.Estado)]++
		stats.PorPersona[p.Familiar] = dto.NewMonto(stats.PorPersona[p.Familiar].Add(p.TotalMonto))
		if p.Estado == entity.EstadoEntregado {
			entregado = entregado.Add(p.TotalMonto)
		}
	}
	stats.MontoEntregado = dto.NewMonto(entregado)
	return stats
}

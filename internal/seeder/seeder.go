package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/casadx/pedidos/internal/entity"
	repo "github.com/casadx/pedidos/internal/repository/pedido"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder loads example pedidos for local/dev setups.
type Seeder struct {
	repo   *repo.Repository
	logger *zap.Logger
}

// New constructs a Seeder on top of the pedido repository.
func New(r *repo.Repository, logger *zap.Logger) *Seeder {
	return &Seeder{repo: r, logger: logger}
}

// Pedidos inserts the example pedidos when the table is empty and reports how
// many rows were written.
func (s *Seeder) Pedidos(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count pedidos: %w", err)
	}
	if n > 0 {
		if s.logger != nil {
			s.logger.Info("pedidos already present; skipping seed", zap.Int("count", n))
		}
		return 0, nil
	}

	samples := examples()
	for _, p := range samples {
		if err := s.repo.Create(ctx, p); err != nil {
			return 0, fmt.Errorf("seed pedido for %s: %w", p.Familiar, err)
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded pedidos", zap.Int("count", len(samples)))
	}
	return len(samples), nil
}

func examples() []*entity.Pedido {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	}
	return []*entity.Pedido{
		{
			Familiar:    "Mamá",
			TotalMonto:  decimal.NewFromInt(10),
			Comentarios: "Regalo de cumpleaños",
			Fecha:       day(2025, time.January, 15),
			Estado:      entity.EstadoEntregado,
			Articulos: []*entity.Articulo{
				{Nombre: "Bufanda", Cantidad: 1, PrecioUnit: decimal.NewFromInt(10)},
			},
		},
		{
			Familiar:   "Mamá",
			TotalMonto: decimal.NewFromInt(5),
			Fecha:      day(2025, time.January, 20),
			Estado:     entity.EstadoPendiente,
			Articulos: []*entity.Articulo{
				{Nombre: "Aretes", Cantidad: 2, PrecioUnit: decimal.RequireFromString("2.50")},
			},
		},
		{
			Familiar:   "Tío Carlos",
			TotalMonto: decimal.NewFromInt(7),
			Fecha:      day(2025, time.February, 1),
			Estado:     entity.EstadoEntregado,
			Articulos: []*entity.Articulo{
				{Nombre: "Cargador USB-C", Cantidad: 1, PrecioUnit: decimal.NewFromInt(7)},
			},
		},
	}
}

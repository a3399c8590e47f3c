package pedido

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/casadx/pedidos/internal/codigo"
	"github.com/casadx/pedidos/internal/database"
	"github.com/casadx/pedidos/internal/entity"
)

var repoTracer = otel.Tracer("github.com/casadx/pedidos/repository/pedido")

// ErrNotFound is returned when a pedido is missing.
var ErrNotFound = errors.New("pedido not found")

// Repository encapsulates read/write access for pedidos and their children.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists the pedido with its articulos and imagenes in one
// transaction. The codigo is derived from the row's own id inside that
// transaction, so concurrent creations never share a code. On success p is
// replaced by the stored row including children.
func (r *Repository) Create(ctx context.Context, p *entity.Pedido) error {
	if p == nil {
		return errors.New("nil pedido")
	}
	ctx, span := repoTracer.Start(ctx, "PedidoRepository.Create", trace.WithAttributes(
		attribute.String("pedido.familiar", p.Familiar),
		attribute.Int("pedido.articulos", len(p.Articulos)),
		attribute.Int("pedido.imagenes", len(p.Imagenes)),
	))
	defer span.End()

	stored := new(entity.Pedido)
	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		p.Codigo = ""
		if _, err := tx.NewInsert().Model(p).Exec(ctx); err != nil {
			return fmt.Errorf("insert pedido: %w", err)
		}
		if p.ID == 0 {
			return errors.New("insert pedido: no id assigned")
		}

		// Ids come from the store's sequence, so every earlier pedido holds an
		// id below p.ID and the code follows p.ID-1.
		p.Codigo = codigo.Next(p.ID - 1)
		if _, err := tx.NewUpdate().Model(p).Column("codigo").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("assign codigo: %w", err)
		}

		if len(p.Articulos) > 0 {
			for _, a := range p.Articulos {
				a.PedidoID = p.ID
			}
			if _, err := tx.NewInsert().Model(&p.Articulos).Exec(ctx); err != nil {
				return fmt.Errorf("insert articulos: %w", err)
			}
		}

		if len(p.Imagenes) > 0 {
			for _, img := range p.Imagenes {
				img.PedidoID = p.ID
			}
			if _, err := tx.NewInsert().Model(&p.Imagenes).Exec(ctx); err != nil {
				return fmt.Errorf("insert imagenes: %w", err)
			}
		}

		return selectWithChildren(tx, stored).Where("p.id = ?", p.ID).Scan(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}

	*p = *stored
	span.SetAttributes(attribute.Int64("pedido.id", p.ID), attribute.String("pedido.codigo", p.Codigo))
	return nil
}

// List returns every pedido with children, most recent fecha first.
func (r *Repository) List(ctx context.Context) ([]*entity.Pedido, error) {
	ctx, span := repoTracer.Start(ctx, "PedidoRepository.List")
	defer span.End()

	pedidos := make([]*entity.Pedido, 0)
	err := selectWithChildren(r.reader, &pedidos).
		OrderExpr("p.fecha DESC, p.id DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("pedido.count", len(pedidos)))
	return pedidos, nil
}

// GetByID fetches a pedido with children using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Pedido, error) {
	ctx, span := repoTracer.Start(ctx, "PedidoRepository.GetByID", trace.WithAttributes(attribute.Int64("pedido.id", id)))
	defer span.End()

	p := new(entity.Pedido)
	err := selectWithChildren(r.reader, p).Where("p.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return p, nil
}

// UpdateEstado sets the estado of an existing pedido.
func (r *Repository) UpdateEstado(ctx context.Context, id int64, estado entity.Estado) error {
	ctx, span := repoTracer.Start(ctx, "PedidoRepository.UpdateEstado", trace.WithAttributes(
		attribute.Int64("pedido.id", id),
		attribute.String("pedido.estado", string(estado)),
	))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := ensureExists(ctx, tx, id); err != nil {
			return err
		}
		_, err := tx.NewUpdate().
			Model((*entity.Pedido)(nil)).
			Set("estado = ?", estado).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
	if err != nil {
		recordTxError(span, err, "update failed")
	}
	return err
}

// Delete removes the pedido after its articulos and imagenes.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "PedidoRepository.Delete", trace.WithAttributes(attribute.Int64("pedido.id", id)))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := ensureExists(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*entity.Articulo)(nil)).Where("pedido_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete articulos: %w", err)
		}
		if _, err := tx.NewDelete().Model((*entity.Imagen)(nil)).Where("pedido_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete imagenes: %w", err)
		}
		if _, err := tx.NewDelete().Model((*entity.Pedido)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete pedido: %w", err)
		}
		return nil
	})
	if err != nil {
		recordTxError(span, err, "delete failed")
	}
	return err
}

// Resumen loads the columns needed for statistics, without children.
func (r *Repository) Resumen(ctx context.Context) ([]entity.Pedido, error) {
	ctx, span := repoTracer.Start(ctx, "PedidoRepository.Resumen")
	defer span.End()

	rows := make([]entity.Pedido, 0)
	err := r.reader.NewSelect().
		Model(&rows).
		Column("familiar", "total_monto", "fecha", "estado").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return rows, nil
}

// Count returns the number of stored pedidos.
func (r *Repository) Count(ctx context.Context) (int, error) {
	ctx, span := repoTracer.Start(ctx, "PedidoRepository.Count")
	defer span.End()

	n, err := r.reader.NewSelect().Model((*entity.Pedido)(nil)).Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
	}
	return n, err
}

func selectWithChildren(db bun.IDB, model any) *bun.SelectQuery {
	byID := func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("id ASC")
	}
	return db.NewSelect().
		Model(model).
		Relation("Articulos", byID).
		Relation("Imagenes", byID)
}

func ensureExists(ctx context.Context, tx bun.Tx, id int64) error {
	exists, err := tx.NewSelect().Model((*entity.Pedido)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func recordTxError(span trace.Span, err error, msg string) {
	if errors.Is(err, ErrNotFound) {
		span.SetStatus(codes.Error, "not found")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Estado is the fulfillment state of a pedido. The set is open; these are the
// values the application itself assigns or aggregates on.
type Estado string

const (
	EstadoPendiente Estado = "PENDIENTE"
	EstadoEntregado Estado = "ENTREGADO"
)

// Pedido represents a purchase order placed by a household member.
type Pedido struct {
	bun.BaseModel `bun:"table:pedidos,alias:p"`

	ID          int64           `bun:",pk,autoincrement"`
	Codigo      string          `bun:"codigo,nullzero,unique"`
	Familiar    string          `bun:"familiar,notnull"`
	TotalMonto  decimal.Decimal `bun:"total_monto,type:decimal(14,2),notnull"`
	Comentarios string          `bun:"comentarios,nullzero"`
	Fecha       time.Time       `bun:"fecha,notnull"`
	Estado      Estado          `bun:"estado,notnull"`

	Articulos []*Articulo `bun:"rel:has-many,join:id=pedido_id"`
	Imagenes  []*Imagen   `bun:"rel:has-many,join:id=pedido_id"`
}

// Articulo is one purchased line of a pedido.
type Articulo struct {
	bun.BaseModel `bun:"table:articulos_pedido,alias:a"`

	ID         int64           `bun:",pk,autoincrement"`
	PedidoID   int64           `bun:"pedido_id,notnull"`
	Nombre     string          `bun:"nombre,notnull"`
	Cantidad   int             `bun:"cantidad,notnull"`
	PrecioUnit decimal.Decimal `bun:"precio_unit,type:decimal(14,2),notnull"`
}

// Imagen is a photo attached to a pedido.
type Imagen struct {
	bun.BaseModel `bun:"table:imagenes,alias:i"`

	ID       int64  `bun:",pk,autoincrement"`
	PedidoID int64  `bun:"pedido_id,notnull"`
	URL      string `bun:"url,notnull"`
}

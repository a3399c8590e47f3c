package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/casadx/pedidos/internal/entity"
)

// Monto is an amount that travels as a bare JSON number, as the ordering app
// expects. Decoding accepts both numbers and strings.
type Monto struct {
	decimal.Decimal
}

// NewMonto wraps d for JSON output.
func NewMonto(d decimal.Decimal) Monto {
	return Monto{Decimal: d}
}

// MarshalJSON renders the amount without quotes.
func (m Monto) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// PedidoResponse represents a pedido as exposed via transport layers.
type PedidoResponse struct {
	ID          int64              `json:"id"`
	Codigo      string             `json:"codigo"`
	Familiar    string             `json:"familiar"`
	TotalMonto  Monto              `json:"totalMonto"`
	Comentarios *string            `json:"comentarios"`
	Fecha       time.Time          `json:"fecha"`
	Estado      string             `json:"estado"`
	Articulos   []ArticuloResponse `json:"articulos"`
	Imagenes    []ImagenResponse   `json:"imagenes"`
}

// ArticuloResponse is a line item of a pedido.
type ArticuloResponse struct {
	ID         int64  `json:"id"`
	Nombre     string `json:"nombre"`
	Cantidad   int    `json:"cantidad"`
	PrecioUnit Monto  `json:"precioUnit"`
	PedidoID   int64  `json:"pedidoId"`
}

// ImagenResponse is a stored photo of a pedido.
type ImagenResponse struct {
	ID       int64  `json:"id"`
	URL      string `json:"url"`
	PedidoID int64  `json:"pedidoId"`
}

// CrearPedidoRequest is the JSON body of POST /pedidos. Articulos stays raw so
// the service can tell a missing or non-list value apart from a malformed item.
type CrearPedidoRequest struct {
	Familiar    string          `json:"familiar"`
	TotalMonto  decimal.Decimal `json:"totalMonto"`
	Comentarios string          `json:"comentarios"`
	Articulos   json.RawMessage `json:"articulos"`
	Fecha       string          `json:"fecha"`
	Estado      string          `json:"estado"`
}

// ActualizarEstadoRequest is the JSON body of PUT /pedidos/:id/estado.
type ActualizarEstadoRequest struct {
	Estado string `json:"estado" validate:"required"`
}

// MensajeResponse carries a plain confirmation.
type MensajeResponse struct {
	Mensaje string `json:"mensaje"`
}

// EstadisticasResponse is the aggregated view served by GET /estadisticas.
type EstadisticasResponse struct {
	TotalPorMes    map[string]int   `json:"totalPorMes"`
	MontoEntregado Monto            `json:"montoEntregado"`
	PorEstado      map[string]int   `json:"porEstado"`
	PorPersona     map[string]Monto `json:"porPersona"`
}

// FromPedido maps the persistence model onto the response shape.
func FromPedido(p *entity.Pedido) PedidoResponse {
	resp := PedidoResponse{
		ID:         p.ID,
		Codigo:     p.Codigo,
		Familiar:   p.Familiar,
		TotalMonto: NewMonto(p.TotalMonto),
		Fecha:      p.Fecha,
		Estado:     string(p.Estado),
		Articulos:  make([]ArticuloResponse, 0, len(p.Articulos)),
		Imagenes:   make([]ImagenResponse, 0, len(p.Imagenes)),
	}
	if p.Comentarios != "" {
		c := p.Comentarios
		resp.Comentarios = &c
	}
	for _, a := range p.Articulos {
		resp.Articulos = append(resp.Articulos, ArticuloResponse{
			ID:         a.ID,
			Nombre:     a.Nombre,
			Cantidad:   a.Cantidad,
			PrecioUnit: NewMonto(a.PrecioUnit),
			PedidoID:   a.PedidoID,
		})
	}
	for _, img := range p.Imagenes {
		resp.Imagenes = append(resp.Imagenes, ImagenResponse{ID: img.ID, URL: img.URL, PedidoID: img.PedidoID})
	}
	return resp
}

// FromPedidos maps a list, never returning nil so the body is always an array.
func FromPedidos(pedidos []*entity.Pedido) []PedidoResponse {
	out := make([]PedidoResponse, 0, len(pedidos))
	for _, p := range pedidos {
		out = append(out, FromPedido(p))
	}
	return out
}

package pedido

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/casadx/pedidos/internal/dto"
	"github.com/casadx/pedidos/internal/presentation/http/response"
	service "github.com/casadx/pedidos/internal/service/pedido"
	"github.com/casadx/pedidos/internal/storage/imagen"
	"github.com/casadx/pedidos/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/casadx/pedidos/transport/http/pedido")

// imagenesField is the multipart field carrying the photos.
const imagenesField = "imagenes"

// Handler exposes pedido endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a pedido Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/pedidos", h.create)
	e.POST("/pedidos-con-foto", h.createWithImages)

	g := e.Group("/pedidos")
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.PUT("/:id/estado", h.updateStatus)
	g.DELETE("/:id", h.delete)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var req dto.CrearPedidoRequest
	if err := c.Bind(&req); err != nil {
		return b.WithError(invalidBody(err)).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "pedidos.create")
	defer span.End()

	p, err := h.svc.Create(ctx, service.NuevoPedido{
		Familiar:    req.Familiar,
		TotalMonto:  req.TotalMonto,
		Comentarios: req.Comentarios,
		Articulos:   req.Articulos,
		Fecha:       req.Fecha,
		Estado:      req.Estado,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromPedido(p)).Build()
}

func (h *Handler) createWithImages(c echo.Context) error {
	b := response.New(c)

	var uploads []imagen.Upload
	form, err := c.MultipartForm()
	switch {
	case err == nil:
		uploads = imagen.FromFileHeaders(form.File[imagenesField])
	case errors.Is(err, http.ErrNotMultipart):
	default:
		return b.WithError(errorbank.Validation("Formulario inválido", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "pedidos.createWithImages", trace.WithAttributes(
		attribute.Int("pedido.imagenes", len(uploads)),
	))
	defer span.End()

	p, err := h.svc.CreateWithImages(ctx, service.PedidoConImagenes{
		Familiar:    c.FormValue("familiar"),
		TotalMonto:  c.FormValue("totalMonto"),
		Comentarios: c.FormValue("comentarios"),
		Articulos:   c.FormValue("articulos"),
		Fecha:       c.FormValue("fecha"),
		Estado:      c.FormValue("estado"),
		Imagenes:    uploads,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromPedido(p)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "pedidos.list")
	defer span.End()

	pedidos, err := h.svc.List(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromPedidos(pedidos)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "pedidos.getByID", trace.WithAttributes(attribute.Int64("pedido.id", id)))
	defer span.End()

	p, err := h.svc.GetByID(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromPedido(p)).Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var req dto.ActualizarEstadoRequest
	if err := c.Bind(&req); err != nil {
		return b.WithError(invalidBody(err)).Build()
	}
	if err := c.Validate(&req); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "pedidos.updateStatus", trace.WithAttributes(
		attribute.Int64("pedido.id", id),
		attribute.String("pedido.estado", req.Estado),
	))
	defer span.End()

	p, err := h.svc.UpdateStatus(ctx, id, req.Estado)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromPedido(p)).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "pedidos.delete", trace.WithAttributes(attribute.Int64("pedido.id", id)))
	defer span.End()

	if err := h.svc.Delete(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.MensajeResponse{Mensaje: "Pedido eliminado correctamente"}).Build()
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.Validation("Identificador de pedido inválido", errorbank.WithDetail("id", c.Param("id")))
	}
	return id, nil
}

func invalidBody(err error) error {
	return errorbank.Validation("Cuerpo de la solicitud inválido", errorbank.WithCause(err))
}

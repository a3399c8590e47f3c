package estadistica

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/casadx/pedidos/internal/presentation/http/response"
	service "github.com/casadx/pedidos/internal/service/estadistica"
)

var httpTracer = otel.Tracer("github.com/casadx/pedidos/transport/http/estadistica")

// Handler serves the aggregated statistics.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an estadistica Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/estadisticas", h.get)
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "estadisticas.get")
	defer span.End()

	stats, err := h.svc.Compute(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(stats).Build()
}

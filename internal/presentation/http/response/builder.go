package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/casadx/pedidos/pkg/errorbank"
)

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Error   string         `json:"error"`
	Tipo    string         `json:"tipo"`
	Detalle map[string]any `json:"detalle,omitempty"`
}

// Builder helps construct consistent HTTP responses. Successful responses
// carry the payload as the whole body.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches a success payload.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithError records an error to be rendered.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// Build finalises and emits the HTTP response.
func (b *Builder) Build() error {
	if b.err != nil {
		return b.buildError()
	}
	return b.buildSuccess()
}

func (b *Builder) buildSuccess() error {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	if b.data == nil {
		return b.ctx.NoContent(b.status)
	}
	return b.ctx.JSON(b.status, b.data)
}

func (b *Builder) buildError() error {
	appErr := errorbank.From(b.err)
	status := b.status
	if status < 400 {
		status = appErr.StatusCode()
	}
	return b.ctx.JSON(status, ErrorBody{
		Error:   appErr.Message(),
		Tipo:    string(appErr.Kind()),
		Detalle: appErr.Details(),
	})
}

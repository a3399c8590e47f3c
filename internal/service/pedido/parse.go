package pedido

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/casadx/pedidos/internal/entity"
	"github.com/casadx/pedidos/pkg/errorbank"
)

const (
	msgArticulosInvalidos = "Los artículos deben ser un arreglo válido."
	msgFechaInvalida      = "La fecha no tiene un formato válido."
	msgMontoInvalido      = "El monto total no es un número válido."
)

// fechaLayouts are tried in order; values without offset are read as UTC.
var fechaLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type articuloInput struct {
	Nombre     string          `json:"nombre" validate:"required"`
	Cantidad   int             `json:"cantidad" validate:"gte=0"`
	PrecioUnit decimal.Decimal `json:"precioUnit"`
}

// parseArticulos decodes a JSON array of articulos. Anything that is not an
// array of well-formed objects is a validation error carrying the JSON kind
// that was received.
func parseArticulos(raw []byte, validate *validator.Validate) ([]*entity.Articulo, error) {
	kind := jsonKind(raw)
	if kind != "array" {
		return nil, errorbank.Validation(msgArticulosInvalidos, errorbank.WithDetail("recibido", kind))
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errorbank.Validation(msgArticulosInvalidos, errorbank.WithCause(err), errorbank.WithDetail("recibido", kind))
	}

	articulos := make([]*entity.Articulo, 0, len(items))
	for i, item := range items {
		if k := jsonKind(item); k != "object" {
			return nil, invalidArticulo(i, fmt.Sprintf("se esperaba un objeto, se recibió %s", k), nil)
		}
		var in articuloInput
		if err := json.Unmarshal(item, &in); err != nil {
			return nil, invalidArticulo(i, "campos con tipo inválido", err)
		}
		in.Nombre = strings.TrimSpace(in.Nombre)
		if err := validate.Struct(in); err != nil {
			return nil, invalidArticulo(i, describeValidation(err), err)
		}
		if in.PrecioUnit.IsNegative() {
			return nil, invalidArticulo(i, "precioUnit no puede ser negativo", nil)
		}
		articulos = append(articulos, &entity.Articulo{
			Nombre:     in.Nombre,
			Cantidad:   in.Cantidad,
			PrecioUnit: in.PrecioUnit,
		})
	}
	return articulos, nil
}

func invalidArticulo(index int, reason string, cause error) error {
	opts := []errorbank.Option{
		errorbank.WithDetail("indice", index),
		errorbank.WithDetail("motivo", reason),
	}
	if cause != nil {
		opts = append(opts, errorbank.WithCause(cause))
	}
	return errorbank.Validation(msgArticulosInvalidos, opts...)
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s:%s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

// jsonKind names the JSON type of raw, "undefined" when absent.
func jsonKind(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "undefined"
	}
	switch trimmed[0] {
	case '[':
		return "array"
	case '{':
		return "object"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

// parseFecha accepts RFC 3339 timestamps and plain dates. Times are stored in
// UTC with microsecond precision so every supported database round-trips them.
func parseFecha(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range fechaLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return normalizeFecha(t), nil
		}
	}
	return time.Time{}, errorbank.Validation(msgFechaInvalida, errorbank.WithDetail("fecha", value))
}

func normalizeFecha(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func parseMonto(value string) (decimal.Decimal, error) {
	monto, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Decimal{}, errorbank.Validation(msgMontoInvalido, errorbank.WithCause(err), errorbank.WithDetail("totalMonto", value))
	}
	return monto, nil
}

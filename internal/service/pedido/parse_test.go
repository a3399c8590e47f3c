package pedido

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casadx/pedidos/pkg/errorbank"
)

func TestParseArticulos(t *testing.T) {
	v := validator.New()

	articulos, err := parseArticulos([]byte(`[{"nombre":"Audífonos","cantidad":1,"precioUnit":15.5},{"nombre":"Funda","cantidad":2,"precioUnit":"5"}]`), v)
	require.NoError(t, err)
	require.Len(t, articulos, 2)
	assert.Equal(t, "Audífonos", articulos[0].Nombre)
	assert.True(t, decimal.RequireFromString("15.5").Equal(articulos[0].PrecioUnit))
	assert.Equal(t, 2, articulos[1].Cantidad)

	empty, err := parseArticulos([]byte(`[]`), v)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestParseArticulosRejectsNonArrays(t *testing.T) {
	v := validator.New()
	cases := map[string]string{
		"":               "undefined",
		`{"nombre":"x"}`: "object",
		`"[]"`:           "string",
		`42`:             "number",
		`true`:           "boolean",
		`null`:           "null",
	}
	for raw, kind := range cases {
		_, err := parseArticulos([]byte(raw), v)
		require.Error(t, err, raw)
		appErr := errorbank.From(err)
		assert.Equal(t, errorbank.KindValidation, appErr.Kind())
		assert.Equal(t, msgArticulosInvalidos, appErr.Message())
		assert.Equal(t, kind, appErr.Details()["recibido"], raw)
	}
}

func TestParseArticulosRejectsBadItems(t *testing.T) {
	v := validator.New()
	for _, raw := range []string{
		`[1, 2]`,
		`[{"nombre":"","cantidad":1,"precioUnit":1}]`,
		`[{"nombre":"a","cantidad":"uno","precioUnit":1}]`,
		`[{"nombre":"a","cantidad":-1,"precioUnit":1}]`,
		`[{"nombre":"a","cantidad":1,"precioUnit":-3}]`,
		`[{"nombre":"a"`,
	} {
		_, err := parseArticulos([]byte(raw), v)
		assert.True(t, errorbank.Is(err, errorbank.KindValidation), raw)
	}
}

func TestParseFecha(t *testing.T) {
	cases := map[string]time.Time{
		"2025-01-15":                time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		"2025-01-15T10:30":          time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		"2025-01-15T10:30:00Z":      time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		"2025-01-15T10:30:00-05:00": time.Date(2025, 1, 15, 15, 30, 0, 0, time.UTC),
		"2025-01-15T10:30:00.123Z":  time.Date(2025, 1, 15, 10, 30, 0, 123000000, time.UTC),
	}
	for in, want := range cases {
		got, err := parseFecha(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
		assert.Equal(t, time.UTC, got.Location())
	}

	_, err := parseFecha("15/01/2025")
	assert.True(t, errorbank.Is(err, errorbank.KindValidation))
}

func TestParseMonto(t *testing.T) {
	monto, err := parseMonto(" 120.50 ")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("120.5").Equal(monto))

	_, err = parseMonto("doce")
	assert.True(t, errorbank.Is(err, errorbank.KindValidation))
}

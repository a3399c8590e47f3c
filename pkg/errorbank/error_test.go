package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCodeByKind(t *testing.T) {
	cases := []struct {
		err  *AppError
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{Store("db down"), http.StatusInternalServerError},
		{Internal("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.StatusCode(), string(tc.err.Kind()))
	}
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("socket closed")
	appErr := From(cause)
	require.NotNil(t, appErr)
	assert.Equal(t, KindInternal, appErr.Kind())
	assert.ErrorIs(t, appErr, cause)

	wrapped := fmt.Errorf("outer: %w", NotFound("pedido no encontrado"))
	assert.Equal(t, KindNotFound, From(wrapped).Kind())
	assert.Nil(t, From(nil))
}

func TestDetailsExposeCauseForStoreErrors(t *testing.T) {
	err := Store("Error al crear pedido", WithCause(errors.New("unique violation")), WithDetail("op", "create"))
	details := err.Details()
	assert.Equal(t, "unique violation", details["causa"])
	assert.Equal(t, "create", details["op"])

	validation := Validation("Faltan campos requeridos", WithCause(errors.New("ignored")))
	assert.Nil(t, validation.Details())
}

func TestIs(t *testing.T) {
	assert.True(t, Is(NotFound("x"), KindNotFound))
	assert.False(t, Is(NotFound("x"), KindValidation))
	assert.False(t, Is(errors.New("plain"), KindNotFound))
}

func TestFromStatus(t *testing.T) {
	assert.Equal(t, KindNotFound, FromStatus(http.StatusNotFound, "Not Found").Kind())
	assert.Equal(t, KindValidation, FromStatus(http.StatusMethodNotAllowed, "nope").Kind())
	assert.Equal(t, KindInternal, FromStatus(http.StatusBadGateway, "upstream").Kind())
}

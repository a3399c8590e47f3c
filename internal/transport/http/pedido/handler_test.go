package pedido_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casadx/pedidos/internal/cache"
	"github.com/casadx/pedidos/internal/config"
	"github.com/casadx/pedidos/internal/database/dbtest"
	"github.com/casadx/pedidos/internal/messaging"
	repo "github.com/casadx/pedidos/internal/repository/pedido"
	serverhttp "github.com/casadx/pedidos/internal/server/http"
	service "github.com/casadx/pedidos/internal/service/pedido"
	"github.com/casadx/pedidos/internal/storage/imagen"
	transport "github.com/casadx/pedidos/internal/transport/http/pedido"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

type urlStore struct{}

func (urlStore) Store(_ context.Context, upload imagen.Upload) (string, error) {
	return "https://res.test/temu-pedidos/" + upload.Filename(), nil
}

type pedidoBody struct {
	ID          int64   `json:"id"`
	Codigo      string  `json:"codigo"`
	Familiar    string  `json:"familiar"`
	TotalMonto  float64 `json:"totalMonto"`
	Comentarios *string `json:"comentarios"`
	Fecha       string  `json:"fecha"`
	Estado      string  `json:"estado"`
	Articulos   []struct {
		Nombre     string  `json:"nombre"`
		Cantidad   int     `json:"cantidad"`
		PrecioUnit float64 `json:"precioUnit"`
		PedidoID   int64   `json:"pedidoId"`
	} `json:"articulos"`
	Imagenes []struct {
		URL      string `json:"url"`
		PedidoID int64  `json:"pedidoId"`
	} `json:"imagenes"`
}

type errorBody struct {
	Error   string         `json:"error"`
	Tipo    string         `json:"tipo"`
	Detalle map[string]any `json:"detalle"`
}

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	conns := dbtest.New(t)
	cfg := config.Config{
		Storage: config.Storage{MaxUploads: 10, MaxFileSize: 1 << 20, UploadWorkers: 2},
	}
	svc, err := service.NewService(service.Params{
		Repository: repo.NewRepository(conns),
		Images:     urlStore{},
		Cache:      cache.Noop(),
		Config:     cfg,
		Logger:     zap.NewNop(),
		Publisher:  messaging.Noop("pedidos.events"),
	})
	require.NoError(t, err)

	e := serverhttp.NewEcho(cfg, nil, conns, zap.NewNop())
	transport.Register(e, transport.NewHandler(svc))
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const validPedido = `{
	"familiar": "Ana",
	"totalMonto": 25.5,
	"comentarios": "para el cumpleaños",
	"articulos": [{"nombre": "Audífonos", "cantidad": 1, "precioUnit": 15.5}, {"nombre": "Funda", "cantidad": 2, "precioUnit": 5}],
	"fecha": "2025-01-15T10:00:00Z"
}`

func TestCreatePedido(t *testing.T) {
	e := newServer(t)

	rec := doJSON(t, e, http.MethodPost, "/pedidos", validPedido)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[pedidoBody](t, rec)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "Dx0001", got.Codigo)
	assert.Equal(t, "PENDIENTE", got.Estado)
	assert.Equal(t, 25.5, got.TotalMonto)
	require.NotNil(t, got.Comentarios)
	assert.Equal(t, "para el cumpleaños", *got.Comentarios)
	require.Len(t, got.Articulos, 2)
	assert.Equal(t, int64(1), got.Articulos[0].PedidoID)
	assert.NotNil(t, got.Imagenes)
	assert.Empty(t, got.Imagenes)

	rec = doJSON(t, e, http.MethodPost, "/pedidos", `{"familiar":"Luis","totalMonto":"7","articulos":[]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decode[pedidoBody](t, rec)
	assert.Equal(t, "Dx0002", second.Codigo)
	assert.Nil(t, second.Comentarios)
}

func TestCreatePedidoRejectsNonArrayArticulos(t *testing.T) {
	e := newServer(t)

	rec := doJSON(t, e, http.MethodPost, "/pedidos", `{"familiar":"Ana","totalMonto":3,"articulos":"uno"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "Los artículos deben ser un arreglo válido.", body.Error)
	assert.Equal(t, "validation", body.Tipo)
	assert.Equal(t, "string", body.Detalle["recibido"])

	rec = doJSON(t, e, http.MethodPost, "/pedidos", `{"familiar":"Ana","totalMonto":3}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "undefined", decode[errorBody](t, rec).Detalle["recibido"])

	rec = doJSON(t, e, http.MethodPost, "/pedidos", `{"familiar":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePedidoWithImages(t *testing.T) {
	e := newServer(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"familiar":   "Ana",
		"totalMonto": "30.00",
		"fecha":      "2025-01-15",
		"estado":     "PENDIENTE",
		"articulos":  `[{"nombre":"Zapatos","cantidad":1,"precioUnit":30}]`,
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, name := range []string{"uno.png", "dos.png"} {
		part, err := w.CreateFormFile("imagenes", name)
		require.NoError(t, err)
		_, err = part.Write(pngBytes)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/pedidos-con-foto", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[pedidoBody](t, rec)
	assert.Equal(t, "Dx0001", got.Codigo)
	require.Len(t, got.Imagenes, 2)
	assert.Equal(t, "https://res.test/temu-pedidos/uno.png", got.Imagenes[0].URL)
	assert.Equal(t, "https://res.test/temu-pedidos/dos.png", got.Imagenes[1].URL)
	assert.Len(t, got.Articulos, 1)
}

func TestCreatePedidoWithImagesMissingFields(t *testing.T) {
	e := newServer(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("familiar", "Ana"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/pedidos-con-foto", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "Faltan campos requeridos", body.Error)
	assert.ElementsMatch(t, []any{"totalMonto", "fecha", "estado", "articulos"}, body.Detalle["faltantes"])
}

func TestListGetUpdateDelete(t *testing.T) {
	e := newServer(t)

	rec := doJSON(t, e, http.MethodGet, "/pedidos", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	require.Equal(t, http.StatusOK, doJSON(t, e, http.MethodPost, "/pedidos", validPedido).Code)
	require.Equal(t, http.StatusOK, doJSON(t, e, http.MethodPost, "/pedidos",
		`{"familiar":"Luis","totalMonto":7,"articulos":[],"fecha":"2025-03-01"}`).Code)

	rec = doJSON(t, e, http.MethodGet, "/pedidos", "")
	list := decode[[]pedidoBody](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "Luis", list[0].Familiar)
	assert.Equal(t, "Ana", list[1].Familiar)

	rec = doJSON(t, e, http.MethodGet, "/pedidos/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Dx0001", decode[pedidoBody](t, rec).Codigo)

	rec = doJSON(t, e, http.MethodPut, "/pedidos/1/estado", `{"estado":"ENTREGADO"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ENTREGADO", decode[pedidoBody](t, rec).Estado)

	rec = doJSON(t, e, http.MethodPut, "/pedidos/1/estado", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []any{"estado"}, decode[errorBody](t, rec).Detalle["faltantes"])

	rec = doJSON(t, e, http.MethodPut, "/pedidos/42/estado", `{"estado":"ENTREGADO"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, e, http.MethodDelete, "/pedidos/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"mensaje":"Pedido eliminado correctamente"}`, rec.Body.String())

	rec = doJSON(t, e, http.MethodGet, "/pedidos/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[errorBody](t, rec).Tipo)

	rec = doJSON(t, e, http.MethodDelete, "/pedidos/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidID(t *testing.T) {
	e := newServer(t)
	for _, path := range []string{"/pedidos/abc", "/pedidos/0", "/pedidos/-3"} {
		rec := doJSON(t, e, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	e := newServer(t)
	rec := doJSON(t, e, http.MethodGet, "/nada", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "Ruta no encontrada", body.Error)
	assert.Equal(t, "not_found", body.Tipo)
}

func TestFechaIsSerializedAsTimestamp(t *testing.T) {
	e := newServer(t)
	rec := doJSON(t, e, http.MethodPost, "/pedidos", validPedido)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[pedidoBody](t, rec)
	fecha, err := time.Parse(time.RFC3339Nano, got.Fecha)
	require.NoError(t, err)
	assert.True(t, fecha.Equal(time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)), fmt.Sprint(fecha))
}

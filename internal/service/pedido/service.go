package pedido

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/casadx/pedidos/internal/cache"
	"github.com/casadx/pedidos/internal/config"
	"github.com/casadx/pedidos/internal/entity"
	"github.com/casadx/pedidos/internal/messaging"
	repo "github.com/casadx/pedidos/internal/repository/pedido"
	"github.com/casadx/pedidos/internal/storage/imagen"
	"github.com/casadx/pedidos/pkg/errorbank"
)

const instrumentationName = "github.com/casadx/pedidos/service/pedido"

var serviceTracer = otel.Tracer(instrumentationName)

const (
	msgPedidoNoEncontrado = "Pedido no encontrado"
	msgCamposFaltantes    = "Faltan campos requeridos"
	msgEstadoRequerido    = "El campo estado es requerido"
)

// NuevoPedido is a JSON pedido creation request. Articulos stays raw so the
// service can tell a missing list from a malformed one.
type NuevoPedido struct {
	Familiar    string
	TotalMonto  decimal.Decimal
	Comentarios string
	Articulos   json.RawMessage
	Fecha       string
	Estado      string
}

// PedidoConImagenes is a multipart creation request: every scalar arrives as
// text and articulos is a JSON-encoded string.
type PedidoConImagenes struct {
	Familiar    string
	TotalMonto  string
	Comentarios string
	Articulos   string
	Fecha       string
	Estado      string
	Imagenes    []imagen.Upload
}

// Service encapsulates business logic around pedidos.
type Service struct {
	repo      *repo.Repository
	images    imagen.Store
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Publisher
	validate  *validator.Validate
	uploads   uploadLimits
	metrics   serviceMetrics
}

type uploadLimits struct {
	maxFiles    int
	maxFileSize int64
	workers     int
}

type serviceMetrics struct {
	creados  metric.Int64Counter
	imagenes metric.Int64Counter
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Images     imagen.Store
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Publisher
}

// NewService wires a new Service instance.
func NewService(p Params) (*Service, error) {
	metrics, err := newServiceMetrics()
	if err != nil {
		return nil, err
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := p.Config.Storage.UploadWorkers
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		repo:      p.Repository,
		images:    p.Images,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    logger,
		publisher: p.Publisher,
		validate:  validator.New(),
		uploads: uploadLimits{
			maxFiles:    p.Config.Storage.MaxUploads,
			maxFileSize: p.Config.Storage.MaxFileSize,
			workers:     workers,
		},
		metrics: metrics,
	}, nil
}

func newServiceMetrics() (serviceMetrics, error) {
	meter := otel.Meter(instrumentationName)
	creados, err := meter.Int64Counter("pedidos.creados",
		metric.WithDescription("Pedidos persisted"),
		metric.WithUnit("{pedido}"),
	)
	if err != nil {
		return serviceMetrics{}, err
	}
	imagenes, err := meter.Int64Counter("pedidos.imagenes.subidas",
		metric.WithDescription("Images stored for pedidos"),
		metric.WithUnit("{imagen}"),
	)
	if err != nil {
		return serviceMetrics{}, err
	}
	return serviceMetrics{creados: creados, imagenes: imagenes}, nil
}

// Create persists a pedido sent as JSON. Fecha defaults to now and estado to
// PENDIENTE; the codigo is assigned by the repository.
func (s *Service) Create(ctx context.Context, in NuevoPedido) (*entity.Pedido, error) {
	ctx, span := serviceTracer.Start(ctx, "PedidoService.Create", trace.WithAttributes(attribute.String("pedido.familiar", in.Familiar)))
	defer span.End()

	articulos, err := parseArticulos(in.Articulos, s.validate)
	if err != nil {
		span.SetStatus(codes.Error, "invalid articulos")
		return nil, err
	}

	fecha := normalizeFecha(time.Now())
	if strings.TrimSpace(in.Fecha) != "" {
		if fecha, err = parseFecha(in.Fecha); err != nil {
			span.SetStatus(codes.Error, "invalid fecha")
			return nil, err
		}
	}

	estado := entity.Estado(strings.TrimSpace(in.Estado))
	if estado == "" {
		estado = entity.EstadoPendiente
	}

	p := &entity.Pedido{
		Familiar:    strings.TrimSpace(in.Familiar),
		TotalMonto:  in.TotalMonto,
		Comentarios: in.Comentarios,
		Fecha:       fecha,
		Estado:      estado,
		Articulos:   articulos,
	}
	if err := s.persist(ctx, span, p, "Error al crear pedido"); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateWithImages persists a pedido submitted as a multipart form. Every
// image is validated before any of them is uploaded.
func (s *Service) CreateWithImages(ctx context.Context, in PedidoConImagenes) (*entity.Pedido, error) {
	ctx, span := serviceTracer.Start(ctx, "PedidoService.CreateWithImages", trace.WithAttributes(
		attribute.String("pedido.familiar", in.Familiar),
		attribute.Int("pedido.imagenes", len(in.Imagenes)),
	))
	defer span.End()

	if missing := missingFields(in); len(missing) > 0 {
		span.SetStatus(codes.Error, "missing fields")
		return nil, errorbank.Validation(msgCamposFaltantes, errorbank.WithDetail("faltantes", missing))
	}

	monto, err := parseMonto(in.TotalMonto)
	if err != nil {
		return nil, err
	}
	fecha, err := parseFecha(in.Fecha)
	if err != nil {
		return nil, err
	}
	articulos, err := parseArticulos([]byte(in.Articulos), s.validate)
	if err != nil {
		return nil, err
	}
	if err := s.checkUploads(in.Imagenes); err != nil {
		span.SetStatus(codes.Error, "invalid images")
		return nil, err
	}

	urls, err := s.storeImages(ctx, in.Imagenes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "image upload failed")
		return nil, errorbank.Store("Error al procesar el pedido con imagen", errorbank.WithCause(err))
	}

	p := &entity.Pedido{
		Familiar:    strings.TrimSpace(in.Familiar),
		TotalMonto:  monto,
		Comentarios: in.Comentarios,
		Fecha:       fecha,
		Estado:      entity.Estado(strings.TrimSpace(in.Estado)),
		Articulos:   articulos,
		Imagenes:    make([]*entity.Imagen, 0, len(urls)),
	}
	for _, url := range urls {
		p.Imagenes = append(p.Imagenes, &entity.Imagen{URL: url})
	}
	if err := s.persist(ctx, span, p, "Error al procesar el pedido con imagen"); err != nil {
		// Stored files are not rolled back; the URLs are logged for cleanup.
		s.logger.Warn("pedido not saved after image upload", zap.Strings("urls", urls))
		return nil, err
	}
	s.metrics.imagenes.Add(ctx, int64(len(urls)))
	return p, nil
}

// List returns every pedido, most recent fecha first.
func (s *Service) List(ctx context.Context) ([]*entity.Pedido, error) {
	ctx, span := serviceTracer.Start(ctx, "PedidoService.List")
	defer span.End()

	pedidos, err := s.repo.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Store("Error al obtener pedidos", errorbank.WithCause(err))
	}
	return pedidos, nil
}

// GetByID returns one pedido, consulting the cache first. A miss is filled
// only if no write invalidated the pedido while it was being loaded.
func (s *Service) GetByID(ctx context.Context, id int64) (*entity.Pedido, error) {
	ctx, span := serviceTracer.Start(ctx, "PedidoService.GetByID", trace.WithAttributes(attribute.Int64("pedido.id", id)))
	defer span.End()

	key := cache.KeyPedido(id)
	var cached entity.Pedido
	err := cache.GetJSON(ctx, s.cache, key, &cached)
	if err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("pedidos cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	gen, genErr := s.generation(ctx, key)
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.repoError(span, err, "Error al obtener pedido")
	}
	if genErr == nil {
		s.fill(ctx, p, gen)
	}
	return p, nil
}

// UpdateStatus sets a new estado and returns the updated pedido.
func (s *Service) UpdateStatus(ctx context.Context, id int64, estado string) (*entity.Pedido, error) {
	ctx, span := serviceTracer.Start(ctx, "PedidoService.UpdateStatus", trace.WithAttributes(
		attribute.Int64("pedido.id", id),
		attribute.String("pedido.estado", estado),
	))
	defer span.End()

	estado = strings.TrimSpace(estado)
	if estado == "" {
		span.SetStatus(codes.Error, "missing estado")
		return nil, errorbank.Validation(msgEstadoRequerido)
	}

	if err := s.repo.UpdateEstado(ctx, id, entity.Estado(estado)); err != nil {
		return nil, s.repoError(span, err, "Error al actualizar el estado del pedido")
	}
	s.invalidate(ctx, id)

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.repoError(span, err, "Error al actualizar el estado del pedido")
	}
	s.publish(ctx, newEvent(EventEstadoActualizado, p))
	return p, nil
}

// Delete removes a pedido with its articulos and imagenes.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "PedidoService.Delete", trace.WithAttributes(attribute.Int64("pedido.id", id)))
	defer span.End()

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.repoError(span, err, "Error al eliminar el pedido")
	}
	s.invalidate(ctx, id)
	s.publish(ctx, newEvent(EventEliminado, &entity.Pedido{ID: id}))
	return nil
}

func (s *Service) persist(ctx context.Context, span trace.Span, p *entity.Pedido, failure string) error {
	if err := s.repo.Create(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Store(failure, errorbank.WithCause(err))
	}
	span.SetAttributes(attribute.Int64("pedido.id", p.ID), attribute.String("pedido.codigo", p.Codigo))
	s.metrics.creados.Add(ctx, 1, metric.WithAttributes(attribute.String("estado", string(p.Estado))))
	s.logger.Info("pedido created",
		zap.Int64("id", p.ID),
		zap.String("codigo", p.Codigo),
		zap.Int("articulos", len(p.Articulos)),
		zap.Int("imagenes", len(p.Imagenes)),
	)

	s.invalidate(ctx, p.ID)
	s.publish(ctx, newEvent(EventCreado, p))
	return nil
}

func (s *Service) repoError(span trace.Span, err error, failure string) error {
	if errors.Is(err, repo.ErrNotFound) {
		span.SetStatus(codes.Error, "not found")
		return errorbank.NotFound(msgPedidoNoEncontrado)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "repository error")
	return errorbank.Store(failure, errorbank.WithCause(err))
}

func missingFields(in PedidoConImagenes) []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"familiar", in.Familiar},
		{"totalMonto", in.TotalMonto},
		{"fecha", in.Fecha},
		{"estado", in.Estado},
		{"articulos", in.Articulos},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

func (s *Service) checkUploads(uploads []imagen.Upload) error {
	if s.uploads.maxFiles > 0 && len(uploads) > s.uploads.maxFiles {
		return errorbank.Validation("Demasiadas imágenes",
			errorbank.WithDetail("maximo", s.uploads.maxFiles),
			errorbank.WithDetail("recibidas", len(uploads)),
		)
	}
	for _, upload := range uploads {
		if s.uploads.maxFileSize > 0 && upload.Size() > s.uploads.maxFileSize {
			return errorbank.Validation("Imagen demasiado grande",
				errorbank.WithDetail("archivo", upload.Filename()),
				errorbank.WithDetail("maximo", humanize.IBytes(uint64(s.uploads.maxFileSize))),
			)
		}
		if _, err := imagen.Detect(upload); err != nil {
			if errors.Is(err, imagen.ErrUnsupportedType) {
				return errorbank.Validation("Solo se permiten imágenes jpg, jpeg o png",
					errorbank.WithDetail("archivo", upload.Filename()),
				)
			}
			return errorbank.Store("Error al leer la imagen", errorbank.WithCause(err))
		}
	}
	return nil
}

// storeImages uploads concurrently and returns URLs in upload order.
func (s *Service) storeImages(ctx context.Context, uploads []imagen.Upload) ([]string, error) {
	urls := make([]string, len(uploads))
	if len(uploads) == 0 {
		return urls, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.uploads.workers)
	for i, upload := range uploads {
		g.Go(func() error {
			url, err := s.images.Store(gctx, upload)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

func (s *Service) generation(ctx context.Context, key string) (int64, error) {
	if s.cache == nil {
		return 0, errors.New("cache disabled")
	}
	gen, err := s.cache.Generation(ctx, key)
	if err != nil {
		s.logger.Warn("pedidos cache generation read failed", zap.String("key", key), zap.Error(err))
	}
	return gen, err
}

func (s *Service) fill(ctx context.Context, p *entity.Pedido, gen int64) {
	stored, err := cache.FillJSON(ctx, s.cache, cache.KeyPedido(p.ID), p, s.cacheTTL, gen)
	if err != nil {
		s.logger.Warn("pedidos cache write failed", zap.Int64("id", p.ID), zap.Error(err))
		return
	}
	if !stored {
		s.logger.Debug("pedidos cache fill skipped", zap.Int64("id", p.ID))
	}
}

// invalidate runs after every committed write to the pedido.
func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	key := cache.KeyPedido(id)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.logger.Warn("pedidos cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}

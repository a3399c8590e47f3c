// Package imagen stores uploaded pedido photos and hands back retrievable URLs.
package imagen

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/casadx/pedidos/internal/config"
)

// ErrUnsupportedType is returned for uploads that are not jpg/jpeg/png images.
var ErrUnsupportedType = errors.New("unsupported image type")

// Store persists an uploaded file and returns a durable URL for it.
type Store interface {
	Store(ctx context.Context, upload Upload) (string, error)
}

// Module provides the configured image store to Fx.
var Module = fx.Provide(NewStore)

// NewStore selects the storage backend (local disk or cloudinary).
func NewStore(cfg config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.Storage.Driver {
	case "local":
		logger.Info("image storage on local disk", zap.String("dir", cfg.Storage.LocalDir))
		return NewLocalStore(cfg.Storage, logger), nil
	case "cloudinary":
		logger.Info("image storage on cloudinary", zap.String("folder", cfg.Storage.Folder))
		return NewCloudinaryStore(cfg.Storage, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
}

// Format describes the sniffed content of an upload.
type Format struct {
	MIME      string
	Extension string
}

var allowedFormats = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// Detect sniffs the upload content and accepts only jpg/jpeg/png images.
func Detect(upload Upload) (Format, error) {
	rc, err := upload.Open()
	if err != nil {
		return Format{}, fmt.Errorf("open %s: %w", upload.Filename(), err)
	}
	defer rc.Close()

	mime, err := mimetype.DetectReader(rc)
	if err != nil && !errors.Is(err, io.EOF) {
		return Format{}, fmt.Errorf("detect %s: %w", upload.Filename(), err)
	}
	if mime == nil {
		return Format{}, fmt.Errorf("%w: %s", ErrUnsupportedType, upload.Filename())
	}
	for m := mime; m != nil; m = m.Parent() {
		if ext, ok := allowedFormats[m.String()]; ok {
			return Format{MIME: m.String(), Extension: ext}, nil
		}
	}
	return Format{MIME: mime.String()}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, upload.Filename(), mime.String())
}

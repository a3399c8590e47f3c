package imagen

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casadx/pedidos/internal/config"
)

// CloudinaryStore uploads photos to a cloudinary folder.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
	logger *zap.Logger
}

// NewCloudinaryStore builds a store from API credentials.
func NewCloudinaryStore(cfg config.Storage, logger *zap.Logger) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloudinaryStore{cld: cld, folder: cfg.Folder, logger: logger}, nil
}

// Store uploads the file and returns its secure URL.
func (s *CloudinaryStore) Store(ctx context.Context, upload Upload) (string, error) {
	if _, err := Detect(upload); err != nil {
		return "", err
	}

	src, err := upload.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", upload.Filename(), err)
	}
	defer src.Close()

	resp, err := s.cld.Upload.Upload(ctx, src, uploader.UploadParams{
		Folder:   s.folder,
		PublicID: uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload %s: %w", upload.Filename(), err)
	}
	if resp == nil || resp.SecureURL == "" {
		return "", errors.New("cloudinary upload returned no url")
	}

	s.logger.Debug("image uploaded",
		zap.String("file", upload.Filename()),
		zap.String("url", resp.SecureURL),
		zap.String("size", humanize.Bytes(uint64(upload.Size()))),
	)

	return resp.SecureURL, nil
}

package imagen

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casadx/pedidos/internal/config"
)

// LocalStore writes uploads below a directory served by the HTTP server.
type LocalStore struct {
	dir       string
	folder    string
	publicURL string
	logger    *zap.Logger
}

// NewLocalStore builds a disk-backed store. Files land in <LocalDir>/<Folder>
// and are addressed as <PublicURL>/<Folder>/<name>.
func NewLocalStore(cfg config.Storage, logger *zap.Logger) *LocalStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalStore{
		dir:       cfg.LocalDir,
		folder:    cfg.Folder,
		publicURL: cfg.PublicURL,
		logger:    logger,
	}
}

// Store copies the upload to disk under a random name.
func (s *LocalStore) Store(ctx context.Context, upload Upload) (string, error) {
	format, err := Detect(upload)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	targetDir := filepath.Join(s.dir, s.folder)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.NewString() + format.Extension
	target := filepath.Join(targetDir, name)

	src, err := upload.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", upload.Filename(), err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", target, err)
	}
	written, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("write %s: %w", target, err)
	}

	s.logger.Debug("image stored",
		zap.String("file", upload.Filename()),
		zap.String("path", target),
		zap.String("size", humanize.Bytes(uint64(written))),
	)

	return s.url(name), nil
}

func (s *LocalStore) url(name string) string {
	if s.folder == "" {
		return s.publicURL + "/" + name
	}
	return s.publicURL + "/" + s.folder + "/" + name
}

package imagen

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casadx/pedidos/internal/config"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, make([]byte, 32)...)
)

func TestDetectAcceptsImages(t *testing.T) {
	format, err := Detect(NewUpload("foto.png", pngBytes))
	require.NoError(t, err)
	assert.Equal(t, "image/png", format.MIME)
	assert.Equal(t, ".png", format.Extension)

	format, err = Detect(NewUpload("foto.jpeg", jpegBytes))
	require.NoError(t, err)
	assert.Equal(t, ".jpg", format.Extension)
}

func TestDetectRejectsOtherContent(t *testing.T) {
	_, err := Detect(NewUpload("notas.png", []byte("esto no es una imagen")))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = Detect(NewUpload("vacio.jpg", nil))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestLocalStoreWritesFileAndReturnsURL(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(config.Storage{LocalDir: dir, Folder: "temu-pedidos", PublicURL: "/uploads"}, zap.NewNop())

	url, err := store.Store(context.Background(), NewUpload("foto.png", pngBytes))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/temu-pedidos/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)

	stored, err := os.ReadFile(filepath.Join(dir, "temu-pedidos", filepath.Base(url)))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, stored)
}

func TestLocalStoreRejectsUnsupportedWithoutWriting(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(config.Storage{LocalDir: dir, Folder: "f", PublicURL: "/uploads"}, nil)

	_, err := store.Store(context.Background(), NewUpload("doc.pdf", []byte("%PDF-1.4 hello")))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalStoreHonoursCancelledContext(t *testing.T) {
	store := NewLocalStore(config.Storage{LocalDir: t.TempDir(), Folder: "f", PublicURL: "/uploads"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Store(ctx, NewUpload("foto.png", pngBytes))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewStoreSelectsDriver(t *testing.T) {
	store, err := NewStore(config.Config{Storage: config.Storage{Driver: "local", LocalDir: t.TempDir()}}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = NewStore(config.Config{Storage: config.Storage{Driver: "ftp"}}, zap.NewNop())
	assert.Error(t, err)
}

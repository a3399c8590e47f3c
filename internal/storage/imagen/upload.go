package imagen

import (
	"bytes"
	"io"
	"mime/multipart"
)

// Upload is a client file awaiting storage. Open may be called more than once.
type Upload interface {
	Filename() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// FromFileHeader wraps a multipart file part.
func FromFileHeader(fh *multipart.FileHeader) Upload {
	return fileHeaderUpload{fh: fh}
}

// FromFileHeaders wraps every part of a multipart file field.
func FromFileHeaders(fhs []*multipart.FileHeader) []Upload {
	uploads := make([]Upload, 0, len(fhs))
	for _, fh := range fhs {
		uploads = append(uploads, FromFileHeader(fh))
	}
	return uploads
}

type fileHeaderUpload struct {
	fh *multipart.FileHeader
}

func (u fileHeaderUpload) Filename() string { return u.fh.Filename }
func (u fileHeaderUpload) Size() int64      { return u.fh.Size }
func (u fileHeaderUpload) Open() (io.ReadCloser, error) {
	return u.fh.Open()
}

// NewUpload builds an in-memory upload.
func NewUpload(filename string, data []byte) Upload {
	return memoryUpload{name: filename, data: data}
}

type memoryUpload struct {
	name string
	data []byte
}

func (u memoryUpload) Filename() string { return u.name }
func (u memoryUpload) Size() int64      { return int64(len(u.data)) }
func (u memoryUpload) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(u.data)), nil
}

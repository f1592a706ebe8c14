package ingestion

import (
	"bytes"
	"context"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileSource supplies the identity and bytes of one file. Open may be called
// more than once; each call must return the full content from the start.
type FileSource interface {
	FileID() uuid.UUID
	FileName() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// ContentTyper is implemented by sources that know their media type.
// Sources without it are treated as text.
type ContentTyper interface {
	ContentType() string
}

// FileIDForPath derives a stable file id from a filesystem path so repeated
// runs over the same tree reconcile with earlier records.
func FileIDForPath(path string) uuid.UUID {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(filepath.Clean(path))))
}

// LocalFileSource reads a file from the local filesystem.
type LocalFileSource struct {
	path string
	id   uuid.UUID
}

var (
	_ FileSource   = (*LocalFileSource)(nil)
	_ ContentTyper = (*LocalFileSource)(nil)
)

// NewLocalFileSource creates a source for path. A zero id is replaced by
// FileIDForPath(path).
func NewLocalFileSource(path string, id uuid.UUID) *LocalFileSource {
	if id == uuid.Nil {
		id = FileIDForPath(path)
	}
	return &LocalFileSource{path: path, id: id}
}

func (s *LocalFileSource) FileID() uuid.UUID { return s.id }

func (s *LocalFileSource) FileName() string { return s.path }

func (s *LocalFileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(s.path)
}

// ContentType guesses the media type from the file extension.
func (s *LocalFileSource) ContentType() string {
	return contentTypeForName(s.path)
}

// BytesSource serves content held in memory.
type BytesSource struct {
	id          uuid.UUID
	name        string
	data        []byte
	contentType string
}

var (
	_ FileSource   = (*BytesSource)(nil)
	_ ContentTyper = (*BytesSource)(nil)
)

// NewBytesSource creates a source over data. The content type is guessed
// from name unless WithContentType is used.
func NewBytesSource(id uuid.UUID, name string, data []byte) *BytesSource {
	return &BytesSource{id: id, name: name, data: data}
}

// WithContentType overrides the guessed media type.
func (s *BytesSource) WithContentType(contentType string) *BytesSource {
	s.contentType = contentType
	return s
}

func (s *BytesSource) FileID() uuid.UUID { return s.id }

func (s *BytesSource) FileName() string { return s.name }

func (s *BytesSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

func (s *BytesSource) ContentType() string {
	if s.contentType != "" {
		return s.contentType
	}
	return contentTypeForName(s.name)
}

func contentTypeForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case "", ".txt", ".text":
		return "text/plain"
	case ".md", ".markdown", ".mdx":
		return "text/markdown"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"chat-gateway/internal/models"
)

const (
	DefaultMaxFileSize = 5 << 20
	PublicPrefix       = "/uploads"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrEmptyFile       = errors.New("empty file")
)

var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "image/gif", "application/pdf"}

// Result is a stored upload. Filename is the name on disk under the upload
// directory.
type Result struct {
	Attachment models.Attachment
	Filename   string
}

// Uploader stores one uploaded file.
type Uploader interface {
	Save(ctx context.Context, originalName, declaredType string, r io.Reader) (Result, error)
}

// Service writes uploads to a local directory.
type Service struct {
	dir     string
	maxSize int64
	allowed map[string]bool
}

// NewService creates dir if needed. An empty allowed list accepts every type.
func NewService(dir string, maxSize int64, allowed []string) (*Service, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	set := make(map[string]bool, len(allowed))
	for _, t := range allowed {
		if t = normalizeType(t); t != "" {
			set[t] = true
		}
	}
	return &Service{dir: dir, maxSize: maxSize, allowed: set}, nil
}

// Dir is the directory uploads are written to.
func (s *Service) Dir() string {
	return s.dir
}

func (s *Service) MaxSize() int64 {
	return s.maxSize
}

// Save validates and stores the content of r. The declared type wins; it is
// sniffed from the content only when missing or generic.
func (s *Service) Save(ctx context.Context, originalName, declaredType string, r io.Reader) (Result, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return Result{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return Result{}, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxSize)
	}
	if len(data) == 0 {
		return Result{}, ErrEmptyFile
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	contentType := normalizeType(declaredType)
	detected := mimetype.Detect(data)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = normalizeType(detected.String())
	}
	if len(s.allowed) > 0 && !s.allowed[contentType] {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	originalName = filepath.Base(strings.TrimSpace(originalName))
	filename := uuid.NewString() + extensionFor(contentType)

	f, err := os.OpenFile(filepath.Join(s.dir, filename), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Result{}, fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return Result{}, fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return Result{}, fmt.Errorf("close upload file: %w", err)
	}

	return Result{
		Attachment: models.Attachment{
			URL:          path.Join(PublicPrefix, filename),
			OriginalName: originalName,
			MimeType:     contentType,
			SizeBytes:    int64(len(data)),
		},
		Filename: filename,
	}, nil
}

// extensionFor maps a validated media type to the extension stored files
// carry. The client's file name never chooses it.
func extensionFor(contentType string) string {
	if m := mimetype.Lookup(contentType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// normalizeType drops parameters and case from a media type.
func normalizeType(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(t); err == nil {
		return parsed
	}
	return strings.ToLower(t)
}

// Package upload validates files before they are sent to the upload endpoints.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"trazio/internal/config"
	"trazio/internal/models"
	"trazio/internal/observability"

	"github.com/gabriel-vasile/mimetype"
)

// Kind selects the upload endpoint and its limits.
type Kind string

const (
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
)

const mb = 1 << 20

// sniffLen is how much of a file is read to detect its type.
const sniffLen = 3072

var allowedTypes = map[Kind][]string{
	KindImage: {"image/jpeg", "image/png", "image/gif", "image/webp"},
	KindVideo: {"video/mp4", "video/webm", "video/quicktime"},
	KindDocument: {
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"text/plain",
	},
}

// ParseKind validates a kind taken from a URL or form.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindImage, KindVideo, KindDocument:
		return k, nil
	}
	return "", models.NewValidationErrorFrom(fmt.Sprintf("tipo de archivo %q no soportado", s), models.ErrUnsupportedFileType)
}

// Limits holds the maximum size in bytes per kind.
type Limits map[Kind]int64

// DefaultLimits are 10 MB for images, 100 MB for videos and 20 MB for documents.
func DefaultLimits() Limits {
	return Limits{KindImage: 10 * mb, KindVideo: 100 * mb, KindDocument: 20 * mb}
}

// LimitsFromConfig reads the per-kind limits, falling back to the defaults.
func LimitsFromConfig(cfg *config.Config) Limits {
	l := DefaultLimits()
	if cfg.UploadMaxImageMB > 0 {
		l[KindImage] = int64(cfg.UploadMaxImageMB) * mb
	}
	if cfg.UploadMaxVideoMB > 0 {
		l[KindVideo] = int64(cfg.UploadMaxVideoMB) * mb
	}
	if cfg.UploadMaxDocumentMB > 0 {
		l[KindDocument] = int64(cfg.UploadMaxDocumentMB) * mb
	}
	return l
}

// File is a validated file ready to be streamed to the backend.
type File struct {
	Kind        Kind
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// Validator rejects files that exceed their limit or are not of an allowed type.
type Validator struct {
	limits Limits
}

func NewValidator(limits Limits) *Validator {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Validator{limits: limits}
}

// Limit returns the maximum size for kind.
func (v *Validator) Limit(kind Kind) int64 {
	return v.limits[kind]
}

// Validate checks the declared size first, then sniffs the content type.
// The returned File replays the sniffed prefix.
func (v *Validator) Validate(kind Kind, name string, size int64, r io.Reader) (*File, error) {
	limit, ok := v.limits[kind]
	if !ok {
		return nil, reject(kind, "kind", models.NewValidationErrorFrom("tipo de archivo no soportado", models.ErrUnsupportedFileType))
	}
	if size > limit {
		msg := fmt.Sprintf("El archivo supera el límite de %d MB", limit/mb)
		return nil, reject(kind, "size", models.NewValidationErrorFrom(msg, models.ErrFileTooLarge))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, models.NewInternalError(fmt.Errorf("read upload: %w", err))
	}
	head = head[:n]

	mtype := mimetype.Detect(head)
	if !allowed(kind, mtype) {
		msg := fmt.Sprintf("Formato %s no permitido para %s", mtype.String(), kind)
		return nil, reject(kind, "type", models.NewValidationErrorFrom(msg, models.ErrUnsupportedFileType))
	}

	return &File{
		Kind:        kind,
		Name:        name,
		Size:        size,
		ContentType: mtype.String(),
		Body:        io.MultiReader(bytes.NewReader(head), r),
	}, nil
}

func allowed(kind Kind, mtype *mimetype.MIME) bool {
	for _, t := range allowedTypes[kind] {
		if mtype.Is(t) {
			return true
		}
	}
	return false
}

func reject(kind Kind, reason string, err error) error {
	observability.UploadRejections.WithLabelValues(string(kind), reason).Inc()
	return err
}

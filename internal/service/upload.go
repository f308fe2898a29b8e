package service

import (
	"context"
	"io"
	"net/http"

	"trazio/internal/models"
	"trazio/internal/upload"
)

// UploadValidator checks a file before it is sent.
type UploadValidator interface {
	Validate(kind upload.Kind, name string, size int64, r io.Reader) (*upload.File, error)
}

type UploadService struct {
	api       API
	validator UploadValidator
}

func NewUploadService(api API, v UploadValidator) *UploadService {
	if v == nil {
		v = upload.NewValidator(upload.DefaultLimits())
	}
	return &UploadService{api: api, validator: v}
}

func (s *UploadService) Image(ctx context.Context, name string, size int64, r io.Reader) (*models.UploadResult, error) {
	return s.Upload(ctx, upload.KindImage, name, size, r)
}

func (s *UploadService) Video(ctx context.Context, name string, size int64, r io.Reader) (*models.UploadResult, error) {
	return s.Upload(ctx, upload.KindVideo, name, size, r)
}

func (s *UploadService) Document(ctx context.Context, name string, size int64, r io.Reader) (*models.UploadResult, error) {
	return s.Upload(ctx, upload.KindDocument, name, size, r)
}

// Upload validates the file and only then posts it to /upload/{kind}.
func (s *UploadService) Upload(ctx context.Context, kind upload.Kind, name string, size int64, r io.Reader) (*models.UploadResult, error) {
	f, err := s.validator.Validate(kind, name, size, r)
	if err != nil {
		return nil, err
	}
	var out models.UploadResult
	if err := s.api.Upload(ctx, "/upload/"+string(kind), "file", f.Name, f.ContentType, f.Body, &out); err != nil {
		return nil, err
	}
	if out.OriginalName == "" {
		out.OriginalName = f.Name
	}
	return &out, nil
}

// Delete removes an uploaded file by its provider public id.
func (s *UploadService) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return models.NewValidationError("El identificador del archivo es obligatorio")
	}
	return s.api.Do(ctx, http.MethodDelete, "/upload/"+escape(publicID), nil, nil)
}

package service

import (
	"context"
	"net/http"
	"strings"

	"trazio/internal/models"
	"trazio/internal/validation"
)

type CommentService struct {
	api API
}

type createCommentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

func NewCommentService(api API) *CommentService {
	return &CommentService{api: api}
}

func (s *CommentService) ForPost(ctx context.Context, postID string) ([]models.Comment, error) {
	var out []models.Comment
	if err := s.api.Do(ctx, http.MethodGet, "/posts/"+escape(postID)+"/comments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CommentService) Create(ctx context.Context, postID, content string) (*models.Comment, error) {
	req := createCommentRequest{Content: strings.TrimSpace(content)}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	var c models.Comment
	if err := s.api.Do(ctx, http.MethodPost, "/posts/"+escape(postID)+"/comments", req, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete asks the backend to delete the comment; ownership is enforced there.
func (s *CommentService) Delete(ctx context.Context, commentID string) error {
	return s.api.Do(ctx, http.MethodDelete, "/comments/"+escape(commentID), nil, nil)
}

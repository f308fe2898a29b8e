package service

import (
	"context"
	"net/http"
	"strings"

	"trazio/internal/models"
	"trazio/internal/validation"
)

type LikeService struct {
	api API
}

func NewLikeService(api API) *LikeService {
	return &LikeService{api: api}
}

func (s *LikeService) Like(ctx context.Context, postID string) error {
	return s.api.Do(ctx, http.MethodPost, "/posts/"+escape(postID)+"/like", nil, nil)
}

func (s *LikeService) Unlike(ctx context.Context, postID string) error {
	return s.api.Do(ctx, http.MethodDelete, "/posts/"+escape(postID)+"/like", nil, nil)
}

type HighlightService struct {
	api API
}

type highlightRequest struct {
	Comment string `json:"comment,omitempty" validate:"max=500"`
}

func NewHighlightService(api API) *HighlightService {
	return &HighlightService{api: api}
}

// Highlight endorses a post, optionally with a comment.
func (s *HighlightService) Highlight(ctx context.Context, postID, comment string) error {
	req := highlightRequest{Comment: strings.TrimSpace(comment)}
	if err := validation.Struct(req); err != nil {
		return err
	}
	return s.api.Do(ctx, http.MethodPost, "/posts/"+escape(postID)+"/highlight", req, nil)
}

func (s *HighlightService) Unhighlight(ctx context.Context, postID string) error {
	return s.api.Do(ctx, http.MethodDelete, "/posts/"+escape(postID)+"/highlight", nil, nil)
}

func (s *HighlightService) ForPost(ctx context.Context, postID string) ([]models.Highlight, error) {
	var out []models.Highlight
	if err := s.api.Do(ctx, http.MethodGet, "/posts/"+escape(postID)+"/highlights", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

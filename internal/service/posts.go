package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"trazio/internal/hashtag"
	"trazio/internal/models"
	"trazio/internal/validation"
)

type PostService struct {
	api API
}

// CreatePostInput is the composer form. Hashtags are derived from Content.
type CreatePostInput struct {
	Content    string             `json:"content" validate:"required,max=5000"`
	Type       models.PostType    `json:"type" validate:"required,oneof=general exam assignment project resource"`
	LinkedID   string             `json:"linkedId,omitempty" validate:"required_if=Type exam,required_if=Type assignment,required_if=Type project"`
	Attachment *models.Attachment `json:"attachment,omitempty" validate:"omitempty"`
}

type createPostRequest struct {
	CreatePostInput
	Hashtags []string `json:"hashtags"`
}

func NewPostService(api API) *PostService {
	return &PostService{api: api}
}

// Feed returns one page of the feed, starting at page 1.
func (s *PostService) Feed(ctx context.Context, page int) (*models.FeedPage, error) {
	if page < 1 {
		page = 1
	}
	var out models.FeedPage
	if err := s.api.Do(ctx, http.MethodGet, fmt.Sprintf("/posts?page=%d", page), nil, &out); err != nil {
		return nil, err
	}
	if out.Page == 0 {
		out.Page = page
	}
	return &out, nil
}

func (s *PostService) Get(ctx context.Context, id string) (*models.Post, error) {
	var p models.Post
	if err := s.api.Do(ctx, http.MethodGet, "/posts/"+escape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostService) ByUser(ctx context.Context, userID string) ([]models.Post, error) {
	var out []models.Post
	if err := s.api.Do(ctx, http.MethodGet, "/users/"+escape(userID)+"/posts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ByHashtag lists posts tagged with tag; a leading '#' is ignored.
func (s *PostService) ByHashtag(ctx context.Context, tag string) ([]models.Post, error) {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	if tag == "" {
		return nil, models.NewValidationError("La etiqueta es obligatoria")
	}
	var out []models.Post
	if err := s.api.Do(ctx, http.MethodGet, "/posts/hashtag/"+escape(tag), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create validates the input, extracts hashtags and submits the post.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.Type == "" {
		in.Type = models.PostTypeGeneral
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	switch in.Type {
	case models.PostTypeGeneral, models.PostTypeResource:
		in.LinkedID = ""
	}

	req := createPostRequest{CreatePostInput: in, Hashtags: hashtag.Extract(in.Content)}
	var p models.Post
	if err := s.api.Do(ctx, http.MethodPost, "/posts", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostService) Delete(ctx context.Context, id string) error {
	return s.api.Do(ctx, http.MethodDelete, "/posts/"+escape(id), nil, nil)
}

package service

import (
	"context"
	"net/http"

	"trazio/internal/models"
	"trazio/internal/validation"
)

type ProfileService struct {
	api API
}

// UpdateProfileInput carries the editable profile fields. Role is not editable.
type UpdateProfileInput struct {
	Name       string   `json:"name" validate:"required,min=2,max=100"`
	Username   string   `json:"username,omitempty" validate:"omitempty,username"`
	Avatar     string   `json:"avatar,omitempty" validate:"omitempty,url"`
	Bio        string   `json:"bio,omitempty" validate:"max=500"`
	University string   `json:"university,omitempty" validate:"max=150"`
	Career     string   `json:"career,omitempty" validate:"max=150"`
	Semester   int      `json:"semester,omitempty" validate:"omitempty,min=1,max=16"`
	Department string   `json:"department,omitempty" validate:"max=150"`
	Interests  []string `json:"interests,omitempty" validate:"max=20,dive,max=50"`
}

func NewProfileService(api API) *ProfileService {
	return &ProfileService{api: api}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	if err := s.api.Do(ctx, http.MethodGet, "/users/"+escape(userID), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *ProfileService) Update(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	var u models.User
	if err := s.api.Do(ctx, http.MethodPut, "/users/profile", in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

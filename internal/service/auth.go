package service

import (
	"context"
	"net/http"
	"strings"

	"trazio/internal/models"
	"trazio/internal/validation"
)

type AuthService struct {
	api API
}

// LoginInput is the login form.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterInput is the sign-up form. The role is chosen later, during onboarding.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

func NewAuthService(api API) *AuthService {
	return &AuthService{api: api}
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*models.AuthResponse, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	var out models.AuthResponse
	if err := s.api.Do(ctx, http.MethodPost, "/auth/login", in, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, models.NewBackendError(http.StatusBadGateway, "Respuesta de autenticación sin token")
	}
	return &out, nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.AuthResponse, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	var out models.AuthResponse
	if err := s.api.Do(ctx, http.MethodPost, "/auth/register", in, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, models.NewBackendError(http.StatusBadGateway, "Respuesta de autenticación sin token")
	}
	return &out, nil
}

// Me fetches the user the stored token belongs to.
func (s *AuthService) Me(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := s.api.Do(ctx, http.MethodGet, "/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

package service

import (
	"context"
	"net/http"

	"trazio/internal/models"
)

type OnboardingService struct {
	api API
}

func NewOnboardingService(api API) *OnboardingService {
	return &OnboardingService{api: api}
}

// Complete submits the whole wizard draft and returns the completed user.
// Step validation happens in the wizard before this is called.
func (s *OnboardingService) Complete(ctx context.Context, draft models.OnboardingDraft) (*models.User, error) {
	var u models.User
	if err := s.api.Do(ctx, http.MethodPost, "/onboarding/complete", draft, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Subjects lists the subjects offered in the onboarding steps.
func (s *OnboardingService) Subjects(ctx context.Context) ([]models.Subject, error) {
	var out []models.Subject
	if err := s.api.Do(ctx, http.MethodGet, "/subjects", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Package service maps each TRAZIO resource onto its REST endpoints.
package service

import (
	"context"
	"io"
	"net/url"
)

// API is the subset of the HTTP client the services need.
type API interface {
	Do(ctx context.Context, method, path string, body, out any) error
	Upload(ctx context.Context, path, field, filename, contentType string, r io.Reader, out any) error
}

// Services bundles every resource service bound to one API client.
type Services struct {
	Auth        *AuthService
	Posts       *PostService
	Exams       *ExamService
	Assignments *AssignmentService
	Projects    *ProjectService
	Comments    *CommentService
	Likes       *LikeService
	Highlights  *HighlightService
	Profile     *ProfileService
	Uploads     *UploadService
	Onboarding  *OnboardingService
}

// New wires all services to api. uploads may be nil for the default limits.
func New(api API, uploads UploadValidator) *Services {
	return &Services{
		Auth:        NewAuthService(api),
		Posts:       NewPostService(api),
		Exams:       NewExamService(api),
		Assignments: NewAssignmentService(api),
		Projects:    NewProjectService(api),
		Comments:    NewCommentService(api),
		Likes:       NewLikeService(api),
		Highlights:  NewHighlightService(api),
		Profile:     NewProfileService(api),
		Uploads:     NewUploadService(api, uploads),
		Onboarding:  NewOnboardingService(api),
	}
}

func escape(segment string) string {
	return url.PathEscape(segment)
}

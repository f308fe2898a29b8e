package service

import (
	"context"
	"net/http"
	"time"

	"trazio/internal/models"
	"trazio/internal/validation"
)

// ResourceService is the CRUD surface shared by exams, assignments and projects.
type ResourceService[T any, In any] struct {
	api  API
	path string
}

func (s *ResourceService[T, In]) List(ctx context.Context) ([]T, error) {
	var out []T
	if err := s.api.Do(ctx, http.MethodGet, s.path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ResourceService[T, In]) Get(ctx context.Context, id string) (*T, error) {
	var out T
	if err := s.api.Do(ctx, http.MethodGet, s.path+"/"+escape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ResourceService[T, In]) Create(ctx context.Context, in In) (*T, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	var out T
	if err := s.api.Do(ctx, http.MethodPost, s.path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ResourceService[T, In]) Update(ctx context.Context, id string, in In) (*T, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	var out T
	if err := s.api.Do(ctx, http.MethodPut, s.path+"/"+escape(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ResourceService[T, In]) Delete(ctx context.Context, id string) error {
	return s.api.Do(ctx, http.MethodDelete, s.path+"/"+escape(id), nil, nil)
}

// ExamInput is the exam form.
type ExamInput struct {
	SubjectID   string              `json:"subjectId" validate:"required"`
	Title       string              `json:"title" validate:"required,max=150"`
	Description string              `json:"description,omitempty" validate:"max=2000"`
	Date        time.Time           `json:"date" validate:"required"`
	Status      models.ExamStatus   `json:"status,omitempty" validate:"omitempty,oneof=scheduled completed graded"`
	Grade       *float64            `json:"grade,omitempty" validate:"omitempty,min=0,max=100"`
	Attachments []models.Attachment `json:"attachments" validate:"max=10,dive"`
}

// AssignmentInput is the assignment form.
type AssignmentInput struct {
	SubjectID   string                  `json:"subjectId" validate:"required"`
	Title       string                  `json:"title" validate:"required,max=150"`
	Description string                  `json:"description,omitempty" validate:"max=2000"`
	DueDate     time.Time               `json:"dueDate" validate:"required"`
	Status      models.AssignmentStatus `json:"status,omitempty" validate:"omitempty,oneof=pending submitted graded late"`
	Grade       *float64                `json:"grade,omitempty" validate:"omitempty,min=0,max=100"`
	Attachments []models.Attachment     `json:"attachments" validate:"max=10,dive"`
}

// ProjectInput is the project form.
type ProjectInput struct {
	SubjectID   string               `json:"subjectId" validate:"required"`
	Title       string               `json:"title" validate:"required,max=150"`
	Description string               `json:"description,omitempty" validate:"max=2000"`
	StartDate   time.Time            `json:"startDate" validate:"required"`
	EndDate     *time.Time           `json:"endDate,omitempty"`
	Status      models.ProjectStatus `json:"status,omitempty" validate:"omitempty,oneof=planning in_progress completed graded"`
	Grade       *float64             `json:"grade,omitempty" validate:"omitempty,min=0,max=100"`
	Attachments []models.Attachment  `json:"attachments" validate:"max=10,dive"`
}

type (
	ExamService       = ResourceService[models.Exam, ExamInput]
	AssignmentService = ResourceService[models.Assignment, AssignmentInput]
	ProjectService    = ResourceService[models.Project, ProjectInput]
)

func NewExamService(api API) *ExamService {
	return &ExamService{api: api, path: "/exams"}
}

func NewAssignmentService(api API) *AssignmentService {
	return &AssignmentService{api: api, path: "/assignments"}
}

func NewProjectService(api API) *ProjectService {
	return &ProjectService{api: api, path: "/projects"}
}

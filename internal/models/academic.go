package models

import "time"

type ExamStatus string

const (
	ExamScheduled ExamStatus = "scheduled"
	ExamCompleted ExamStatus = "completed"
	ExamGraded    ExamStatus = "graded"
)

type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentSubmitted AssignmentStatus = "submitted"
	AssignmentGraded    AssignmentStatus = "graded"
	AssignmentLate      AssignmentStatus = "late"
)

type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "planning"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectGraded     ProjectStatus = "graded"
)

// Exam is a student's exam record.
type Exam struct {
	ID          string       `json:"id"`
	Owner       string       `json:"owner"`
	Subject     Subject      `json:"subject"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Date        time.Time    `json:"date"`
	Status      ExamStatus   `json:"status"`
	Grade       *float64     `json:"grade,omitempty"`
	Attachments []Attachment `json:"attachments"`
}

// Link returns the summary embedded in exam posts.
func (e *Exam) Link() ExamLink {
	return ExamLink{ID: e.ID, Title: e.Title, Subject: e.Subject.Name, Date: e.Date, Status: e.Status, Grade: e.Grade}
}

// Assignment is a homework or coursework record.
type Assignment struct {
	ID          string           `json:"id"`
	Owner       string           `json:"owner"`
	Subject     Subject          `json:"subject"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	DueDate     time.Time        `json:"dueDate"`
	SubmittedAt *time.Time       `json:"submittedAt,omitempty"`
	Status      AssignmentStatus `json:"status"`
	Grade       *float64         `json:"grade,omitempty"`
	Attachments []Attachment     `json:"attachments"`
}

// Link returns the summary embedded in assignment posts.
func (a *Assignment) Link() AssignmentLink {
	return AssignmentLink{ID: a.ID, Title: a.Title, Subject: a.Subject.Name, DueDate: a.DueDate, Status: a.Status, Grade: a.Grade}
}

// Project is a longer-running piece of student work.
type Project struct {
	ID          string        `json:"id"`
	Owner       string        `json:"owner"`
	Subject     Subject       `json:"subject"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	StartDate   time.Time     `json:"startDate"`
	EndDate     *time.Time    `json:"endDate,omitempty"`
	Status      ProjectStatus `json:"status"`
	Grade       *float64      `json:"grade,omitempty"`
	Attachments []Attachment  `json:"attachments"`
}

// Link returns the summary embedded in project posts.
func (p *Project) Link() ProjectLink {
	return ProjectLink{ID: p.ID, Title: p.Title, Subject: p.Subject.Name, StartDate: p.StartDate, EndDate: p.EndDate, Status: p.Status, Grade: p.Grade}
}

// UploadResult is what the upload endpoints return.
type UploadResult struct {
	URL          string  `json:"url"`
	PublicID     string  `json:"publicId"`
	ResourceType string  `json:"resourceType"`
	Format       string  `json:"format,omitempty"`
	Bytes        int64   `json:"bytes"`
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	OriginalName string  `json:"originalName,omitempty"`
}

// Attachment converts an upload into the reference stored on entities.
func (r *UploadResult) Attachment(kind string) Attachment {
	return Attachment{URL: r.URL, Type: kind, Name: r.OriginalName}
}

// OnboardingDraft accumulates every answer of the onboarding wizard and is
// submitted as a single request.
type OnboardingDraft struct {
	Role       Role     `json:"role" yaml:"role"`
	FirstName  string   `json:"firstName" yaml:"firstName"`
	LastName   string   `json:"lastName" yaml:"lastName"`
	Username   string   `json:"username" yaml:"username"`
	Avatar     string   `json:"avatar,omitempty" yaml:"avatar"`
	Bio        string   `json:"bio,omitempty" yaml:"bio"`
	University string   `json:"university,omitempty" yaml:"university"`
	Career     string   `json:"career,omitempty" yaml:"career"`
	Semester   int      `json:"semester,omitempty" yaml:"semester"`
	Department string   `json:"department,omitempty" yaml:"department"`
	Title      string   `json:"title,omitempty" yaml:"title"`
	Subjects   []string `json:"subjects,omitempty" yaml:"subjects"`
	Interests  []string `json:"interests,omitempty" yaml:"interests"`
	Goals      string   `json:"goals,omitempty" yaml:"goals"`
}

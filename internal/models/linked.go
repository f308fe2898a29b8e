package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// LinkedEntity is the closed set of academic entities a post can reference.
// Implementations: ExamLink, AssignmentLink, ProjectLink.
type LinkedEntity interface {
	LinkedType() PostType
	sealedLinked()
}

// ExamLink is the exam summary embedded in an exam post.
type ExamLink struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Subject string     `json:"subject"`
	Date    time.Time  `json:"date"`
	Status  ExamStatus `json:"status"`
	Grade   *float64   `json:"grade,omitempty"`
}

// AssignmentLink is the assignment summary embedded in an assignment post.
type AssignmentLink struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	Subject string           `json:"subject"`
	DueDate time.Time        `json:"dueDate"`
	Status  AssignmentStatus `json:"status"`
	Grade   *float64         `json:"grade,omitempty"`
}

// ProjectLink is the project summary embedded in a project post.
type ProjectLink struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Subject   string        `json:"subject"`
	StartDate time.Time     `json:"startDate"`
	EndDate   *time.Time    `json:"endDate,omitempty"`
	Status    ProjectStatus `json:"status"`
	Grade     *float64      `json:"grade,omitempty"`
}

func (ExamLink) LinkedType() PostType       { return PostTypeExam }
func (AssignmentLink) LinkedType() PostType { return PostTypeAssignment }
func (ProjectLink) LinkedType() PostType    { return PostTypeProject }

func (ExamLink) sealedLinked()       {}
func (AssignmentLink) sealedLinked() {}
func (ProjectLink) sealedLinked()    {}

// LinkedCases holds one handler per variant. None handles a nil entity and may
// be left unset when the caller has already checked for nil.
type LinkedCases[T any] struct {
	Exam       func(ExamLink) T
	Assignment func(AssignmentLink) T
	Project    func(ProjectLink) T
	None       func() T
}

// MatchLinked dispatches e to the handler for its variant. A missing handler
// for the variant actually present panics, so every call site must cover the
// variants it can receive.
func MatchLinked[T any](e LinkedEntity, cases LinkedCases[T]) T {
	var zero T
	switch v := e.(type) {
	case nil:
		if cases.None == nil {
			return zero
		}
		return cases.None()
	case ExamLink:
		return mustCase(cases.Exam, "exam")(v)
	case AssignmentLink:
		return mustCase(cases.Assignment, "assignment")(v)
	case ProjectLink:
		return mustCase(cases.Project, "project")(v)
	}
	panic(fmt.Sprintf("models: unhandled linked entity %T", e))
}

func mustCase[V, T any](fn func(V) T, name string) func(V) T {
	if fn == nil {
		panic("models: no handler for linked " + name)
	}
	return fn
}

// MarshalLinked encodes e together with its "type" discriminant.
func MarshalLinked(e LinkedEntity) (json.RawMessage, error) {
	if e == nil {
		return nil, nil
	}
	return MatchLinked(e, LinkedCases[linkedResult]{
		Exam: func(v ExamLink) linkedResult {
			return encodeLinked(struct {
				Type PostType `json:"type"`
				ExamLink
			}{PostTypeExam, v})
		},
		Assignment: func(v AssignmentLink) linkedResult {
			return encodeLinked(struct {
				Type PostType `json:"type"`
				AssignmentLink
			}{PostTypeAssignment, v})
		},
		Project: func(v ProjectLink) linkedResult {
			return encodeLinked(struct {
				Type PostType `json:"type"`
				ProjectLink
			}{PostTypeProject, v})
		},
	}).unpack()
}

type linkedResult struct {
	raw json.RawMessage
	err error
}

func (r linkedResult) unpack() (json.RawMessage, error) { return r.raw, r.err }

func encodeLinked(v any) linkedResult {
	b, err := json.Marshal(v)
	return linkedResult{raw: b, err: err}
}

// UnmarshalLinked decodes raw into the variant named by its "type" field, or by
// fallback when the field is absent. Empty input and JSON null decode to nil.
func UnmarshalLinked(raw json.RawMessage, fallback PostType) (LinkedEntity, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var head struct {
		Type PostType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode linked entity: %w", err)
	}
	kind := head.Type
	if kind == "" {
		if fallback != PostTypeExam && fallback != PostTypeAssignment && fallback != PostTypeProject {
			return nil, nil
		}
		kind = fallback
	}
	switch kind {
	case PostTypeExam:
		var v ExamLink
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode linked exam: %w", err)
		}
		return v, nil
	case PostTypeAssignment:
		var v AssignmentLink
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode linked assignment: %w", err)
		}
		return v, nil
	case PostTypeProject:
		var v ProjectLink
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode linked project: %w", err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown linked entity type %q", kind)
}

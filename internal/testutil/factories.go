// Package testutil provides shared fixtures and a fake TRAZIO backend for tests.
package testutil

import (
	"fmt"
	"time"

	"trazio/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

// NewUser returns a random user with the given role and completion flag.
func NewUser(role models.Role, completed bool) models.User {
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	u := models.User{
		ID:               gofakeit.UUID(),
		Name:             first + " " + last,
		Email:            gofakeit.Email(),
		Role:             role,
		ProfileCompleted: completed,
		Username:         fmt.Sprintf("%s%d", gofakeit.Username(), gofakeit.Number(10, 99)),
		Avatar:           fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
	}
	if completed {
		u.University = gofakeit.Company()
		u.Bio = gofakeit.Sentence(8)
		if role == models.RoleTeacher {
			u.Department = gofakeit.JobDescriptor()
		} else {
			u.Career = gofakeit.JobTitle()
			u.Semester = gofakeit.Number(1, 10)
		}
	}
	return u
}

// NewPost returns a general post by author with random counters.
func NewPost(author models.User) models.Post {
	return models.Post{
		ID:         gofakeit.UUID(),
		Author:     author.Summary(),
		Content:    gofakeit.Sentence(12),
		Type:       models.PostTypeGeneral,
		Hashtags:   []string{},
		LikesCount: gofakeit.Number(0, 20),
		CreatedAt:  gofakeit.DateRange(time.Now().AddDate(0, -1, 0), time.Now()).UTC(),
	}
}

// NewComment returns a comment by author on postID.
func NewComment(postID string, author models.User) models.Comment {
	return models.Comment{
		ID:        gofakeit.UUID(),
		PostID:    postID,
		Author:    author.Summary(),
		Content:   gofakeit.Sentence(6),
		CreatedAt: time.Now().UTC(),
	}
}

// NewSubject returns a random subject.
func NewSubject() models.Subject {
	return models.Subject{
		ID:   gofakeit.UUID(),
		Name: gofakeit.HipsterWord() + " " + gofakeit.Noun(),
		Code: gofakeit.LetterN(3) + fmt.Sprint(gofakeit.Number(100, 499)),
	}
}

// NewExam returns a scheduled exam owned by ownerID.
func NewExam(ownerID string) models.Exam {
	return models.Exam{
		ID:          gofakeit.UUID(),
		Owner:       ownerID,
		Subject:     NewSubject(),
		Title:       "Parcial " + gofakeit.Noun(),
		Date:        gofakeit.FutureDate().UTC(),
		Status:      models.ExamScheduled,
		Attachments: []models.Attachment{},
	}
}

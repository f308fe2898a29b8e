package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// PostType classifies a post and decides which linked entity it may carry.
type PostType string

const (
	PostTypeGeneral    PostType = "general"
	PostTypeExam       PostType = "exam"
	PostTypeAssignment PostType = "assignment"
	PostTypeProject    PostType = "project"
	PostTypeResource   PostType = "resource"
)

// Valid reports whether t is a known post type.
func (t PostType) Valid() bool {
	switch t {
	case PostTypeGeneral, PostTypeExam, PostTypeAssignment, PostTypeProject, PostTypeResource:
		return true
	}
	return false
}

// Attachment is a single uploaded file referenced by a post or an academic entity.
type Attachment struct {
	URL  string `json:"url" validate:"required,url"`
	Type string `json:"type" validate:"required,oneof=image video document"`
	Name string `json:"name" validate:"max=255"`
}

// Post represents an entry in the TRAZIO feed.
type Post struct {
	ID              string       `json:"id"`
	Author          UserSummary  `json:"author"`
	Content         string       `json:"content"`
	Type            PostType     `json:"type"`
	Linked          LinkedEntity `json:"-"`
	Attachment      *Attachment  `json:"attachment,omitempty"`
	Hashtags        []string     `json:"hashtags"`
	LikesCount      int          `json:"likesCount"`
	HighlightsCount int          `json:"highlightsCount"`
	CommentsCount   int          `json:"commentsCount"`
	HasLiked        bool         `json:"hasLiked"`
	HasHighlighted  bool         `json:"hasHighlighted"`
	CreatedAt       time.Time    `json:"createdAt"`
}

type postAlias Post

type postJSON struct {
	*postAlias
	Linked json.RawMessage `json:"linkedEntity,omitempty"`
}

// MarshalJSON writes the linked entity with its type discriminant.
func (p Post) MarshalJSON() ([]byte, error) {
	raw, err := MarshalLinked(p.Linked)
	if err != nil {
		return nil, err
	}
	alias := postAlias(p)
	if alias.Hashtags == nil {
		alias.Hashtags = []string{}
	}
	return json.Marshal(postJSON{postAlias: &alias, Linked: raw})
}

// UnmarshalJSON decodes the linked entity by its "type" discriminant. When the
// entity omits it, the post type is used.
func (p *Post) UnmarshalJSON(data []byte) error {
	aux := postJSON{postAlias: (*postAlias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	linked, err := UnmarshalLinked(aux.Linked, p.Type)
	if err != nil {
		return fmt.Errorf("post %s: %w", p.ID, err)
	}
	p.Linked = linked
	return nil
}

// Validate checks that the linked entity, when present, matches the post type.
func (p *Post) Validate() error {
	if !p.Type.Valid() {
		return NewValidationError("Tipo de publicación inválido")
	}
	if p.Linked == nil {
		return nil
	}
	ok := MatchLinked(p.Linked, LinkedCases[bool]{
		Exam:       func(ExamLink) bool { return p.Type == PostTypeExam },
		Assignment: func(AssignmentLink) bool { return p.Type == PostTypeAssignment },
		Project:    func(ProjectLink) bool { return p.Type == PostTypeProject },
	})
	if !ok {
		return NewValidationError("La entidad vinculada no corresponde al tipo de publicación")
	}
	return nil
}

// CanDelete reports whether the acting user authored the post.
func (p *Post) CanDelete(actorID string) bool {
	return actorID != "" && p.Author.ID == actorID
}

// CanHighlight reports whether actor may toggle a highlight on the post:
// teachers only, and never on their own posts.
func (p *Post) CanHighlight(actor *User) bool {
	return actor.IsTeacher() && p.Author.ID != actor.ID
}

// FeedPage is one page of the feed.
type FeedPage struct {
	Posts   []Post `json:"posts"`
	Page    int    `json:"page"`
	HasMore bool   `json:"hasMore"`
}

// Comment is a reply to a post; only its author may delete it.
type Comment struct {
	ID        string      `json:"id"`
	PostID    string      `json:"postId"`
	Author    UserSummary `json:"author"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
}

// CanDelete reports whether the acting user authored the comment.
func (c *Comment) CanDelete(actorID string) bool {
	return actorID != "" && c.Author.ID == actorID
}

// Like is the (post, user) pair; presence means liked.
type Like struct {
	PostID string `json:"postId"`
	UserID string `json:"userId"`
}

// Highlight is a teacher's endorsement of a student post.
type Highlight struct {
	PostID    string      `json:"postId"`
	TeacherID string      `json:"teacherId"`
	Teacher   UserSummary `json:"teacher"`
	Comment   string      `json:"comment,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

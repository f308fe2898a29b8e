// Package view assembles the pages and actions of the TRAZIO web client on
// top of a session: each page issues its own cached queries and each action
// reports its outcome as a toast or a redirect.
package view

import (
	"context"
	"encoding/json"
	"log/slog"

	"trazio/internal/featureflags"
	"trazio/internal/models"
	"trazio/internal/observability"
	"trazio/internal/querycache"
	"trazio/internal/service"
	"trazio/internal/session"
)

// Invalidator marks queries stale in every session of a user (every
// session when userID is empty), on this instance and the others.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string, key querycache.Key)
}

// View holds the dependencies shared by every page and action.
type View struct {
	flags *featureflags.Manager
	bus   Invalidator

	Exams       Resource[models.Exam, service.ExamInput]
	Assignments Resource[models.Assignment, service.AssignmentInput]
	Projects    Resource[models.Project, service.ProjectInput]
}

// New creates a View. bus may be nil when sessions are not shared.
func New(flags *featureflags.Manager, bus Invalidator) *View {
	v := &View{flags: flags, bus: bus}
	v.Exams = Resource[models.Exam, service.ExamInput]{
		name:   "exams",
		labels: labels{created: "Examen creado", updated: "Examen actualizado", deleted: "Examen eliminado"},
		bus:    v.broadcast,
		pick:   func(s *service.Services) *service.ExamService { return s.Exams },
	}
	v.Assignments = Resource[models.Assignment, service.AssignmentInput]{
		name:   "assignments",
		labels: labels{created: "Tarea creada", updated: "Tarea actualizada", deleted: "Tarea eliminada"},
		bus:    v.broadcast,
		pick:   func(s *service.Services) *service.AssignmentService { return s.Assignments },
	}
	v.Projects = Resource[models.Project, service.ProjectInput]{
		name:   "projects",
		labels: labels{created: "Proyecto creado", updated: "Proyecto actualizado", deleted: "Proyecto eliminado"},
		bus:    v.broadcast,
		pick:   func(s *service.Services) *service.ProjectService { return s.Projects },
	}
	return v
}

// Flags returns the feature flags evaluated for the session's user.
func (v *View) Flags(s *session.Session) map[string]bool {
	return v.flags.Snapshot(s.User())
}

// broadcast invalidates key locally and, through the bus, for every other
// session of userID.
func (v *View) broadcast(ctx context.Context, s *session.Session, userID string, key querycache.Key) {
	if v.bus == nil {
		s.Cache.InvalidateQueries(ctx, key)
		return
	}
	v.bus.Invalidate(ctx, userID, key)
}

// PostView is a post with the controls the acting user may see.
type PostView struct {
	models.Post
	CanDelete    bool `json:"canDelete"`
	CanHighlight bool `json:"canHighlight"`
}

type postControls struct {
	CanDelete    bool `json:"canDelete"`
	CanHighlight bool `json:"canHighlight"`
}

// MarshalJSON writes the post followed by its controls. Without it the
// embedded post's encoder would be promoted and drop them.
func (p PostView) MarshalJSON() ([]byte, error) {
	post, err := json.Marshal(p.Post)
	if err != nil {
		return nil, err
	}
	controls, err := json.Marshal(postControls{CanDelete: p.CanDelete, CanHighlight: p.CanHighlight})
	if err != nil {
		return nil, err
	}
	out := append(post[:len(post)-1], ',')
	return append(out, controls[1:]...), nil
}

// UnmarshalJSON reads both the post and its controls.
func (p *PostView) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &p.Post); err != nil {
		return err
	}
	var controls postControls
	if err := json.Unmarshal(data, &controls); err != nil {
		return err
	}
	p.CanDelete, p.CanHighlight = controls.CanDelete, controls.CanHighlight
	return nil
}

// CommentView is a comment with its delete control.
type CommentView struct {
	models.Comment
	CanDelete bool `json:"canDelete"`
}

func (v *View) decorate(actor *models.User, posts []models.Post) []PostView {
	highlights := v.flags.Enabled(featureflags.Highlights, actor)
	out := make([]PostView, 0, len(posts))
	for i := range posts {
		out = append(out, v.decorateOne(actor, &posts[i], highlights))
	}
	return out
}

func (v *View) decorateOne(actor *models.User, p *models.Post, highlights bool) PostView {
	id := ""
	if actor != nil {
		id = actor.ID
	}
	return PostView{
		Post:         *p,
		CanDelete:    p.CanDelete(id),
		CanHighlight: highlights && p.CanHighlight(actor),
	}
}

func actorID(s *session.Session) string {
	if u := s.User(); u != nil {
		return u.ID
	}
	return ""
}

func logAction(ctx context.Context, action string, err error) {
	if err == nil {
		observability.Logger.InfoContext(ctx, "action completed", slog.String("action", action))
		return
	}
	observability.Logger.WarnContext(ctx, "action failed", slog.String("action", action), slog.String("error", err.Error()))
}

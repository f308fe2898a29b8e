package view

import (
	"context"
	"io"

	"trazio/internal/featureflags"
	"trazio/internal/models"
	"trazio/internal/onboarding"
	"trazio/internal/router"
	"trazio/internal/service"
	"trazio/internal/session"
	"trazio/internal/upload"
)

// CreatePost publishes a post and refreshes every feed.
func (v *View) CreatePost(ctx context.Context, s *session.Session, in service.CreatePostInput) (*PostView, *Toast, error) {
	p, err := s.Services.Posts.Create(ctx, in)
	logAction(ctx, "create_post", err)
	if err != nil {
		return nil, nil, err
	}
	v.broadcast(ctx, s, "", postsKey)
	pv := v.decorateOne(s.User(), p, v.flags.Enabled(featureflags.Highlights, s.User()))
	return &pv, successToast("Publicación creada"), nil
}

// DeletePost deletes a post. Ownership is checked by the backend; a
// rejection comes back as an error toast.
func (v *View) DeletePost(ctx context.Context, s *session.Session, id string) (*Toast, error) {
	err := s.Services.Posts.Delete(ctx, id)
	logAction(ctx, "delete_post", err)
	if err != nil {
		return nil, err
	}
	s.Cache.RemoveQueries(postKey(id))
	s.Cache.RemoveQueries(commentsKey(id))
	v.broadcast(ctx, s, "", postsKey)
	return successToast("Publicación eliminada"), nil
}

// CreateComment replies to a post.
func (v *View) CreateComment(ctx context.Context, s *session.Session, postID, content string) (*CommentView, *Toast, error) {
	c, err := s.Services.Comments.Create(ctx, postID, content)
	logAction(ctx, "create_comment", err)
	if err != nil {
		return nil, nil, err
	}
	v.broadcast(ctx, s, "", commentsKey(postID))
	v.broadcast(ctx, s, "", postKey(postID))
	return &CommentView{Comment: *c, CanDelete: c.CanDelete(actorID(s))}, successToast("Comentario publicado"), nil
}

// DeleteComment deletes a comment of postID.
func (v *View) DeleteComment(ctx context.Context, s *session.Session, postID, commentID string) (*Toast, error) {
	err := s.Services.Comments.Delete(ctx, commentID)
	logAction(ctx, "delete_comment", err)
	if err != nil {
		return nil, err
	}
	v.broadcast(ctx, s, "", commentsKey(postID))
	v.broadcast(ctx, s, "", postKey(postID))
	return successToast("Comentario eliminado"), nil
}

// UpdateProfile saves the profile and refreshes the session user.
func (v *View) UpdateProfile(ctx context.Context, s *session.Session, in service.UpdateProfileInput) (*models.User, *Toast, error) {
	u, err := s.Services.Profile.Update(ctx, in)
	logAction(ctx, "update_profile", err)
	if err != nil {
		return nil, nil, err
	}
	if cur := s.User(); cur != nil {
		u.ProfileCompleted = u.ProfileCompleted || cur.ProfileCompleted
		u.Role = cur.Role
	}
	s.SetUser(u)
	s.Cache.SetQueryData(userKey(u.ID), u)
	v.broadcast(ctx, s, "", userKey(u.ID))
	return s.User(), successToast("Perfil actualizado"), nil
}

// Upload validates and sends a file. Video uploads are behind a flag.
func (v *View) Upload(ctx context.Context, s *session.Session, kind upload.Kind, name string, size int64, r io.Reader) (*models.UploadResult, error) {
	if kind == upload.KindVideo && !v.flags.Enabled(featureflags.VideoUploads, s.User()) {
		return nil, models.NewForbiddenError("La subida de videos no está disponible")
	}
	res, err := s.Services.Uploads.Upload(ctx, kind, name, size, r)
	logAction(ctx, "upload_"+string(kind), err)
	return res, err
}

// DeleteUpload removes an uploaded file.
func (v *View) DeleteUpload(ctx context.Context, s *session.Session, publicID string) error {
	err := s.Services.Uploads.Delete(ctx, publicID)
	logAction(ctx, "delete_upload", err)
	return err
}

// OnboardingStep is the outcome of a wizard action. Redirect is set once
// the wizard has been submitted.
type OnboardingStep struct {
	View     *onboarding.View `json:"view,omitempty"`
	User     *models.User     `json:"user,omitempty"`
	Redirect string           `json:"redirect,omitempty"`
}

// OnboardingNext stores the answers of the current step and advances.
func (v *View) OnboardingNext(s *session.Session, answers models.OnboardingDraft) (*OnboardingStep, error) {
	w := s.Wizard()
	w.Apply(answers)
	if err := w.Next(); err != nil {
		return nil, err
	}
	view := w.View()
	return &OnboardingStep{View: &view}, nil
}

// OnboardingBack returns to the previous step.
func (v *View) OnboardingBack(s *session.Session) *OnboardingStep {
	w := s.Wizard()
	w.Back()
	view := w.View()
	return &OnboardingStep{View: &view}
}

// OnboardingSubmit stores the final answers and submits the whole draft.
func (v *View) OnboardingSubmit(ctx context.Context, s *session.Session, answers models.OnboardingDraft) (*OnboardingStep, error) {
	s.Wizard().Apply(answers)
	u, err := s.CompleteOnboarding(ctx)
	logAction(ctx, "complete_onboarding", err)
	if err != nil {
		return nil, err
	}
	return &OnboardingStep{User: u, Redirect: router.FeedPath}, nil
}

// AuthResult is the outcome of signing in or out.
type AuthResult struct {
	User     *models.User `json:"user,omitempty"`
	Redirect string       `json:"redirect"`
}

// Login signs the session in and sends it to its home page.
func (v *View) Login(ctx context.Context, s *session.Session, in service.LoginInput) (*AuthResult, error) {
	u, err := s.Login(ctx, in)
	logAction(ctx, "login", err)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: u, Redirect: home(s)}, nil
}

// Register creates the account; new accounts continue to onboarding.
func (v *View) Register(ctx context.Context, s *session.Session, in service.RegisterInput) (*AuthResult, error) {
	u, err := s.Register(ctx, in)
	logAction(ctx, "register", err)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: u, Redirect: home(s)}, nil
}

// Logout signs the session out.
func (v *View) Logout(ctx context.Context, s *session.Session) *AuthResult {
	s.Logout(ctx)
	logAction(ctx, "logout", nil)
	return &AuthResult{Redirect: router.LoginPath}
}

// home is where the guard sends the session from the login page.
func home(s *session.Session) string {
	d := router.Decide(router.LoginPath, s.State())
	if d.Kind == router.Redirect {
		return d.To
	}
	return router.LoginPath
}

package server

import (
	"trazio/internal/middleware"
	"trazio/internal/models"
	"trazio/internal/service"
	"trazio/internal/session"
	"trazio/internal/upload"
	"trazio/internal/view"

	"github.com/gofiber/fiber/v2"
)

// Login handles POST /api/auth/login. A successful sign-in moves the browser
// to a new session id.
func (s *Server) Login(c *fiber.Ctx) error {
	var in service.LoginInput
	if err := bind(c, &in); err != nil {
		return fail(c, err, nil)
	}
	next := s.registry.Fresh()
	res, err := s.view.Login(c.UserContext(), next, in)
	if err != nil {
		return fail(c, err, nil)
	}
	s.adopt(c, next)
	return c.JSON(envelope{Data: res.User, Redirect: res.Redirect})
}

// Register handles POST /api/auth/register
func (s *Server) Register(c *fiber.Ctx) error {
	var in service.RegisterInput
	if err := bind(c, &in); err != nil {
		return fail(c, err, nil)
	}
	next := s.registry.Fresh()
	res, err := s.view.Register(c.UserContext(), next, in)
	if err != nil {
		return fail(c, err, nil)
	}
	s.adopt(c, next)
	return c.Status(fiber.StatusCreated).JSON(envelope{Data: res.User, Redirect: res.Redirect})
}

// adopt replaces the request's session with the signed-in one.
func (s *Server) adopt(c *fiber.Ctx, next *session.Session) {
	s.registry.Replace(c.UserContext(), current(c), next)
	middleware.SwitchSession(c, s.sessionConfig, next)
}

// Logout handles POST /api/auth/logout
func (s *Server) Logout(c *fiber.Ctx) error {
	res := s.view.Logout(c.UserContext(), current(c))
	return c.JSON(envelope{Redirect: res.Redirect})
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var in service.CreatePostInput
	if err := bind(c, &in); err != nil {
		return fail(c, err, nil)
	}
	post, toast, err := s.view.CreatePost(c.UserContext(), current(c), in)
	if err != nil {
		return fail(c, err, nil)
	}
	return ok(c, fiber.StatusCreated, post, toast)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	toast, err := s.view.DeletePost(c.UserContext(), current(c), c.Params("id"))
	if err != nil {
		return fail(c, err, nil)
	}
	return ok(c, fiber.StatusOK, nil, toast)
}

// ToggleLike handles POST /api/posts/:id/like. The direction is decided by
// what the session's cache shows, not by the request.
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	st, err := s.view.ToggleLike(c.UserContext(), current(c), c.Params("id"))
	if err != nil {
		return fail(c, err, st)
	}
	return ok(c, fiber.StatusOK, st, nil)
}

// ToggleHighlight handles POST /api/posts/:id/highlight with an optional
// {"comment": "..."} body.
func (s *Server) ToggleHighlight(c *fiber.Ctx) error {
	var in struct {
		Comment string `json:"comment"`
	}
	if len(c.Body()) > 0 {
		if err := bind(c, &in); err != nil {
			return fail(c, err, nil)
		}
	}
	st, err := s.view.ToggleHighlight(c.UserContext(), current(c), c.Params("id"), in.Comment)
	if err != nil {
		return fail(c, err, st)
	}
	return ok(c, fiber.StatusOK, st, nil)
}

// CreateComment handles POST /api/posts/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var in struct {
		Content string `json:"content"`
	}
	if err := bind(c, &in); err != nil {
		return fail(c, err, nil)
	}
	comment, toast, err := s.view.CreateComment(c.UserContext(), current(c), c.Params("id"), in.Content)
	if err != nil {
		return fail(c, err, nil)
	}
	return ok(c, fiber.StatusCreated, comment, toast)
}

// DeleteComment handles DELETE /api/posts/:id/comments/:commentId
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	toast, err := s.view.DeleteComment(c.UserContext(), current(c), c.Params("id"), c.Params("commentId"))
	if err != nil {
		return fail(c, err, nil)
	}
	return ok(c, fiber.StatusOK, nil, toast)
}

// UpdateProfile handles PUT /api/profile
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var in service.UpdateProfileInput
	if err := bind(c, &in); err != nil {
		return fail(c, err, nil)
	}
	u, toast, err := s.view.UpdateProfile(c.UserContext(), current(c), in)
	if err != nil {
		return fail(c, err, nil)
	}
	return ok(c, fiber.StatusOK, u, toast)
}

// Upload handles POST /api/uploads/:kind with the file in the "file" field.
func (s *Server) Upload(c *fiber.Ctx) error {
	kind, err := upload.ParseKind(c.Params("kind"))
	if err != nil {
		return fail(c, err, nil)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return fail(c, models.NewValidationErrorFrom("Selecciona un archivo", err), nil)
	}
	f, err := fh.Open()
	if err != nil {
		return fail(c, models.NewInternalError(err), nil)
	}
	defer f.Close()

	res, err := s.view.Upload(c.UserContext(), current(c), kind, fh.Filename, fh.Size, f)
	if err != nil {
		return fail(c, err, nil)
	}
	return ok(c, fiber.StatusCreated, res, &view.Toast{Kind: "success", Message: "Archivo subido"})
}

// DeleteUpload handles DELETE /api/uploads/:id
func (s *Server) DeleteUpload(c *fiber.Ctx) error {
	if err := s.view.DeleteUpload(c.UserContext(), current(c), c.Params("id")); err != nil {
		return fail(c, err, nil)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// OnboardingNext handles POST /api/onboarding/next
func (s *Server) OnboardingNext(c *fiber.Ctx) error {
	var in models.OnboardingDraft
	if err := bind(c, &in); err != nil {
		return fail(c, err, nil)
	}
	step, err := s.view.OnboardingNext(current(c), in)
	if err != nil {
		return fail(c, err, nil)
	}
	return ok(c, fiber.StatusOK, step.View, nil)
}

// OnboardingBack handles POST /api/onboarding/back
func (s *Server) OnboardingBack(c *fiber.Ctx) error {
	return ok(c, fiber.StatusOK, s.view.OnboardingBack(current(c)).View, nil)
}

// OnboardingSubmit handles POST /api/onboarding/submit
func (s *Server) OnboardingSubmit(c *fiber.Ctx) error {
	var in models.OnboardingDraft
	if err := bind(c, &in); err != nil {
		return fail(c, err, nil)
	}
	step, err := s.view.OnboardingSubmit(c.UserContext(), current(c), in)
	if err != nil {
		return fail(c, err, nil)
	}
	return c.JSON(envelope{Data: step.User, Redirect: step.Redirect})
}

// mountResourceActions serves create, update and delete of an academic resource.
func mountResourceActions[T, In any](g fiber.Router, r view.Resource[T, In]) {
	g.Post("/", func(c *fiber.Ctx) error {
		var in In
		if err := bind(c, &in); err != nil {
			return fail(c, err, nil)
		}
		item, toast, err := r.Create(c.UserContext(), current(c), in)
		if err != nil {
			return fail(c, err, nil)
		}
		return ok(c, fiber.StatusCreated, item, toast)
	})
	g.Put("/:id", func(c *fiber.Ctx) error {
		var in In
		if err := bind(c, &in); err != nil {
			return fail(c, err, nil)
		}
		item, toast, err := r.Update(c.UserContext(), current(c), c.Params("id"), in)
		if err != nil {
			return fail(c, err, nil)
		}
		return ok(c, fiber.StatusOK, item, toast)
	})
	g.Delete("/:id", func(c *fiber.Ctx) error {
		toast, err := r.Delete(c.UserContext(), current(c), c.Params("id"))
		if err != nil {
			return fail(c, err, nil)
		}
		return ok(c, fiber.StatusOK, nil, toast)
	})
}

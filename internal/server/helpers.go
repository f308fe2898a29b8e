package server

import (
	"errors"
	"log/slog"

	"trazio/internal/middleware"
	"trazio/internal/models"
	"trazio/internal/observability"
	"trazio/internal/session"
	"trazio/internal/view"

	"github.com/gofiber/fiber/v2"
)

// envelope is the body of every page and action response.
type envelope struct {
	Data     any         `json:"data,omitempty"`
	Toast    *view.Toast `json:"toast,omitempty"`
	Redirect string      `json:"redirect,omitempty"`
}

func ok(c *fiber.Ctx, status int, data any, toast *view.Toast) error {
	return c.Status(status).JSON(envelope{Data: data, Toast: toast})
}

// fail reports err as a toast, or as a redirect to the login page when the
// backend rejected the session's token. data, when set, is the state the
// browser should go back to showing.
func fail(c *fiber.Ctx, err error, data any) error {
	out := view.Failure(err)
	if out.Redirect != "" {
		if s := middleware.CurrentSession(c); s != nil {
			// The redirect is delivered here; the guard must not repeat it.
			s.TakeRedirect()
		}
	}
	if out.Status >= fiber.StatusInternalServerError {
		observability.Logger.ErrorContext(c.UserContext(), "action failed",
			slog.String("path", c.Path()), slog.String("error", err.Error()))
	}
	return c.Status(out.Status).JSON(envelope{Data: data, Toast: out.Toast, Redirect: out.Redirect})
}

// bind parses the JSON body into dst.
func bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return models.NewValidationErrorFrom("Solicitud inválida", err)
	}
	return nil
}

func current(c *fiber.Ctx) *session.Session {
	return middleware.CurrentSession(c)
}

// requireUser rejects actions from sessions nobody is signed in to.
func requireUser(c *fiber.Ctx) error {
	s := current(c)
	if s == nil || s.User() == nil {
		return fail(c, models.NewUnauthorizedError("Inicia sesión para continuar"), nil)
	}
	return c.Next()
}

// errorHandler answers errors that escaped the handlers, such as unknown
// routes or oversized bodies, in the same envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(envelope{Toast: &view.Toast{Kind: "error", Message: fe.Message}})
	}
	return fail(c, models.NewInternalError(err), nil)
}

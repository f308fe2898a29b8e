package middleware

import (
	"strings"
	"time"

	"trazio/internal/router"
	"trazio/internal/session"

	"github.com/gofiber/fiber/v2"
)

const sessionLocal = "session"

// SessionConfig configures the session cookie.
type SessionConfig struct {
	CookieName string
	Secure     bool
	// BootstrapWait bounds how long a request waits for the session's first
	// bootstrap before it is answered as still loading.
	BootstrapWait time.Duration
}

// Sessions resolves the browser session from its cookie, issuing a new
// cookie when needed, and starts the session bootstrap.
func Sessions(reg *session.Registry, cfg SessionConfig) fiber.Handler {
	if cfg.BootstrapWait <= 0 {
		cfg.BootstrapWait = 5 * time.Second
	}
	return func(c *fiber.Ctx) error {
		s, created := reg.Resolve(c.Cookies(cfg.CookieName))
		if created {
			setCookie(c, cfg, s.ID)
		}
		c.Locals(sessionLocal, s)

		if !s.State().Initialized {
			done := make(chan struct{})
			ctx := c.UserContext()
			go func() {
				s.Bootstrap(ctx)
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(cfg.BootstrapWait):
			}
		}

		c.SetUserContext(s.Context(c.UserContext()))
		return c.Next()
	}
}

// SwitchSession makes s the request's session and points the browser's
// cookie at it.
func SwitchSession(c *fiber.Ctx, cfg SessionConfig, s *session.Session) {
	setCookie(c, cfg, s.ID)
	c.Locals(sessionLocal, s)
}

func setCookie(c *fiber.Ctx, cfg SessionConfig, id string) {
	c.Cookie(&fiber.Cookie{
		Name:     cfg.CookieName,
		Value:    id,
		Path:     "/",
		HTTPOnly: true,
		Secure:   cfg.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// CurrentSession returns the session resolved by Sessions, or nil.
func CurrentSession(c *fiber.Ctx) *session.Session {
	s, _ := c.Locals(sessionLocal).(*session.Session)
	return s
}

// Guard gates page requests under prefix with the router. A forced
// redirect queued by a 401 takes precedence over the route decision.
func Guard(prefix string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := CurrentSession(c)
		if s == nil {
			return fiber.ErrInternalServerError
		}
		if to, ok := s.TakeRedirect(); ok {
			return redirect(c, prefix, to)
		}

		path := strings.TrimPrefix(c.Path(), prefix)
		d := router.Decide(path, s.State())
		switch d.Kind {
		case router.Loading:
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"loading": true})
		case router.Redirect:
			return redirect(c, prefix, d.To)
		case router.NotFound:
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"toast": fiber.Map{"kind": "error", "message": "Página no encontrada"},
			})
		}
		c.Locals("route", d.Route)
		return c.Next()
	}
}

func redirect(c *fiber.Ctx, prefix, to string) error {
	c.Set(fiber.HeaderLocation, prefix+to)
	return c.Status(fiber.StatusSeeOther).JSON(fiber.Map{"redirect": to})
}

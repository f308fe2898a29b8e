package server

import (
	"trazio/internal/router"
	"trazio/internal/view"

	"github.com/gofiber/fiber/v2"
)

// StaticPage renders pages that need no data, such as login and register.
func (s *Server) StaticPage(c *fiber.Ctx) error {
	name := ""
	if r, ok := c.Locals("route").(*router.Route); ok {
		name = r.Name
	}
	return ok(c, fiber.StatusOK, fiber.Map{"page": name}, nil)
}

// FeedPage handles GET /pages/feed?page=n
func (s *Server) FeedPage(c *fiber.Ctx) error {
	page, err := s.view.Feed(c.UserContext(), current(c), c.QueryInt("page", 1))
	if err != nil {
		return fail(c, err, nil)
	}
	return ok(c, fiber.StatusOK, page, nil)
}

// PostPage handles GET /pages/posts/:id
func (s *Server) PostPage(c *fiber.Ctx) error {
	page, err := s.view.Post(c.UserContext(), current(c), c.Params("id"))
	if err != nil {
		return fail(c, err, nil)
	}
	return ok(c, fiber.StatusOK, page, nil)
}

// ProfilePage handles GET /pages/profile and /pages/profile/:id
func (s *Server) ProfilePage(c *fiber.Ctx) error {
	page, err := s.view.Profile(c.UserContext(), current(c), c.Params("id"))
	if err != nil {
		return fail(c, err, nil)
	}
	return ok(c, fiber.StatusOK, page, nil)
}

// HashtagPage handles GET /pages/hashtag/:tag
func (s *Server) HashtagPage(c *fiber.Ctx) error {
	page, err := s.view.Hashtag(c.UserContext(), current(c), c.Params("tag"))
	if err != nil {
		return fail(c, err, nil)
	}
	return ok(c, fiber.StatusOK, page, nil)
}

// OnboardingPage handles GET /pages/onboarding
func (s *Server) OnboardingPage(c *fiber.Ctx) error {
	page, err := s.view.Onboarding(c.UserContext(), current(c))
	if err != nil {
		return fail(c, err, nil)
	}
	return ok(c, fiber.StatusOK, page, nil)
}

// mountResourcePages serves the list and detail pages of an academic resource.
func mountResourcePages[T, In any](g fiber.Router, r view.Resource[T, In]) {
	g.Get("/", func(c *fiber.Ctx) error {
		items, err := r.List(c.UserContext(), current(c))
		if err != nil {
			return fail(c, err, nil)
		}
		return ok(c, fiber.StatusOK, items, nil)
	})
	g.Get("/:id", func(c *fiber.Ctx) error {
		item, err := r.Get(c.UserContext(), current(c), c.Params("id"))
		if err != nil {
			return fail(c, err, nil)
		}
		return ok(c, fiber.StatusOK, item, nil)
	})
}

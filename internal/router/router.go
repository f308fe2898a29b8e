// Package router decides, from the session's auth state alone, whether a
// page may render or where the browser must be sent instead.
package router

import (
	"strings"

	"trazio/internal/models"
)

// Class groups routes by the gate applied to them.
type Class int

const (
	Protected Class = iota
	PublicOnly
	Onboarding
)

// Paths redirected to by the guard.
const (
	LoginPath      = "/login"
	FeedPath       = "/feed"
	OnboardingPath = "/onboarding"
)

// Route is one page pattern. Segments starting with ':' capture a parameter.
type Route struct {
	Name    string
	Pattern string
	Class   Class
}

// Routes is the page table.
var Routes = []Route{
	{Name: "login", Pattern: "/login", Class: PublicOnly},
	{Name: "register", Pattern: "/register", Class: PublicOnly},
	{Name: "onboarding", Pattern: "/onboarding", Class: Onboarding},
	{Name: "feed", Pattern: "/feed", Class: Protected},
	{Name: "post", Pattern: "/posts/:id", Class: Protected},
	{Name: "exams", Pattern: "/exams", Class: Protected},
	{Name: "exam", Pattern: "/exams/:id", Class: Protected},
	{Name: "assignments", Pattern: "/assignments", Class: Protected},
	{Name: "assignment", Pattern: "/assignments/:id", Class: Protected},
	{Name: "projects", Pattern: "/projects", Class: Protected},
	{Name: "project", Pattern: "/projects/:id", Class: Protected},
	{Name: "profile", Pattern: "/profile", Class: Protected},
	{Name: "user", Pattern: "/profile/:id", Class: Protected},
	{Name: "hashtag", Pattern: "/hashtag/:tag", Class: Protected},
}

// State is the part of the session routing depends on.
type State struct {
	Initialized      bool
	Authenticated    bool
	ProfileCompleted bool
	Role             models.Role
}

// Kind is the outcome of a routing decision.
type Kind int

const (
	Loading Kind = iota
	Render
	Redirect
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Loading:
		return "loading"
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	}
	return "not_found"
}

// Decision says what to do with a navigation.
type Decision struct {
	Kind   Kind
	To     string
	Route  *Route
	Params map[string]string
}

// Match finds the route for path.
func Match(path string) (*Route, map[string]string, bool) {
	path = normalize(path)
	for i := range Routes {
		if params, ok := match(Routes[i].Pattern, path); ok {
			return &Routes[i], params, true
		}
	}
	return nil, nil, false
}

// Decide gates a navigation to path. Nothing is decided until the session
// has been initialized.
func Decide(path string, s State) Decision {
	if !s.Initialized {
		return Decision{Kind: Loading}
	}
	if normalize(path) == "/" {
		return Decision{Kind: Redirect, To: home(s)}
	}
	route, params, ok := Match(path)
	if !ok {
		return Decision{Kind: NotFound}
	}

	redirect := func(to string) Decision { return Decision{Kind: Redirect, To: to, Route: route} }
	switch route.Class {
	case PublicOnly:
		if s.Authenticated {
			return redirect(home(s))
		}
	case Onboarding:
		if !s.Authenticated {
			return redirect(LoginPath)
		}
		if s.ProfileCompleted {
			return redirect(FeedPath)
		}
	case Protected:
		if !s.Authenticated {
			return redirect(LoginPath)
		}
		if !s.ProfileCompleted {
			return redirect(OnboardingPath)
		}
	}
	return Decision{Kind: Render, Route: route, Params: params}
}

func home(s State) string {
	switch {
	case !s.Authenticated:
		return LoginPath
	case !s.ProfileCompleted:
		return OnboardingPath
	}
	return FeedPath
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		return "/"
	}
	return path
}

func match(pattern, path string) (map[string]string, bool) {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	xs := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(xs) {
		return nil, false
	}
	var params map[string]string
	for i, p := range ps {
		if strings.HasPrefix(p, ":") {
			if xs[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[p[1:]] = xs[i]
			continue
		}
		if p != xs[i] {
			return nil, false
		}
	}
	return params, true
}

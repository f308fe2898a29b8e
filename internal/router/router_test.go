package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	loading    = State{}
	anonymous  = State{Initialized: true}
	incomplete = State{Initialized: true, Authenticated: true}
	complete   = State{Initialized: true, Authenticated: true, ProfileCompleted: true}
)

func TestDecide(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		path     string
		state    State
		wantKind Kind
		wantTo   string
	}{
		{"uninitialized shows loading", "/feed", loading, Loading, ""},
		{"uninitialized login shows loading", "/login", loading, Loading, ""},
		{"protected anonymous to login", "/exams", anonymous, Redirect, LoginPath},
		{"protected incomplete to onboarding", "/posts/42", incomplete, Redirect, OnboardingPath},
		{"protected complete renders", "/posts/42", complete, Render, ""},
		{"onboarding anonymous to login", "/onboarding", anonymous, Redirect, LoginPath},
		{"onboarding incomplete renders", "/onboarding", incomplete, Render, ""},
		{"onboarding complete to feed", "/onboarding", complete, Redirect, FeedPath},
		{"login anonymous renders", "/login", anonymous, Render, ""},
		{"login complete to feed", "/login", complete, Redirect, FeedPath},
		{"register incomplete to onboarding", "/register", incomplete, Redirect, OnboardingPath},
		{"root to feed", "/", complete, Redirect, FeedPath},
		{"root anonymous to login", "/", anonymous, Redirect, LoginPath},
		{"trailing slash and query", "/feed/?page=2", complete, Render, ""},
		{"unknown path", "/nope", complete, NotFound, ""},
		{"too deep", "/posts/1/edit", complete, NotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.path, tt.state)
			assert.Equal(t, tt.wantKind, d.Kind, d.Kind.String())
			assert.Equal(t, tt.wantTo, d.To)
		})
	}
}

func TestEveryProtectedRouteRequiresOnboarding(t *testing.T) {
	t.Parallel()
	for _, r := range Routes {
		if r.Class != Protected {
			continue
		}
		path := r.Pattern
		d := Decide(replaceParams(path), incomplete)
		assert.Equal(t, Redirect, d.Kind, path)
		assert.Equal(t, OnboardingPath, d.To, path)
	}
}

func TestMatch_Params(t *testing.T) {
	t.Parallel()
	r, params, ok := Match("/hashtag/bases_de_datos")
	assert.True(t, ok)
	assert.Equal(t, "hashtag", r.Name)
	assert.Equal(t, map[string]string{"tag": "bases_de_datos"}, params)

	_, _, ok = Match("/hashtag/")
	assert.False(t, ok)
}

func replaceParams(pattern string) string {
	out := []byte{}
	skip := false
	for i := 0; i < len(pattern); i++ {
		switch {
		case pattern[i] == ':':
			out = append(out, 'x')
			skip = true
		case pattern[i] == '/':
			skip = false
			out = append(out, '/')
		case !skip:
			out = append(out, pattern[i])
		}
	}
	return string(out)
}

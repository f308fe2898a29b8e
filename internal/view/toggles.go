package view

import (
	"context"
	"slices"

	"trazio/internal/featureflags"
	"trazio/internal/models"
	"trazio/internal/optimistic"
	"trazio/internal/querycache"
	"trazio/internal/session"
)

// postField selects the toggle state carried by a post.
type postField struct {
	get func(p *models.Post) optimistic.State
	set func(p *models.Post, st optimistic.State)
}

var (
	likeField = postField{
		get: func(p *models.Post) optimistic.State { return optimistic.State{On: p.HasLiked, Count: p.LikesCount} },
		set: func(p *models.Post, st optimistic.State) { p.HasLiked, p.LikesCount = st.On, st.Count },
	}
	highlightField = postField{
		get: func(p *models.Post) optimistic.State {
			return optimistic.State{On: p.HasHighlighted, Count: p.HighlightsCount}
		},
		set: func(p *models.Post, st optimistic.State) { p.HasHighlighted, p.HighlightsCount = st.On, st.Count },
	}
)

// ToggleLike likes or unlikes a post depending on what the cache shows.
func (v *View) ToggleLike(ctx context.Context, s *session.Session, postID string) (optimistic.State, error) {
	return s.Toggler.Flip(ctx, optimistic.Toggle{
		Name:           "like",
		Entity:         "like:" + postID,
		Keys:           []querycache.Key{postsKey},
		Read:           readPost(s, postID, likeField),
		Write:          writePost(s, postID, likeField),
		Activate:       func(ctx context.Context) error { return s.Services.Likes.Like(ctx, postID) },
		Deactivate:     func(ctx context.Context) error { return s.Services.Likes.Unlike(ctx, postID) },
		FailureMessage: "No se pudo actualizar el me gusta",
	})
}

// ToggleHighlight highlights or un-highlights a post. Only teachers may, and
// never on their own posts.
func (v *View) ToggleHighlight(ctx context.Context, s *session.Session, postID, comment string) (optimistic.State, error) {
	actor := s.User()
	if !v.flags.Enabled(featureflags.Highlights, actor) {
		return optimistic.State{}, models.NewForbiddenError("Los destacados no están disponibles")
	}
	post, err := v.loadPost(ctx, s, postID)
	if err != nil {
		return optimistic.State{}, err
	}
	if !post.CanHighlight(actor) {
		return optimistic.State{}, models.NewForbiddenError("Solo los docentes pueden destacar publicaciones de otros")
	}
	return s.Toggler.Flip(ctx, optimistic.Toggle{
		Name:           "highlight",
		Entity:         "highlight:" + postID,
		Keys:           []querycache.Key{postsKey, highlightsKey(postID)},
		Read:           readPost(s, postID, highlightField),
		Write:          writePost(s, postID, highlightField),
		Activate:       func(ctx context.Context) error { return s.Services.Highlights.Highlight(ctx, postID, comment) },
		Deactivate:     func(ctx context.Context) error { return s.Services.Highlights.Unhighlight(ctx, postID) },
		FailureMessage: "No se pudo actualizar el destacado",
	})
}

// readPost returns the state shown by the first cached copy of the post,
// fetching the post when no query holds it. Only the toggle direction comes
// from it; rollback uses each copy's own snapshot.
func readPost(s *session.Session, postID string, f postField) func(ctx context.Context) (optimistic.State, error) {
	return func(ctx context.Context) (optimistic.State, error) {
		var (
			st    optimistic.State
			found bool
		)
		s.Cache.UpdateQueriesData(postsKey, func(_ querycache.Key, old any) (any, bool) {
			if found {
				return old, false
			}
			eachPost(old, func(p *models.Post) {
				if !found && p.ID == postID {
					st, found = f.get(p), true
				}
			})
			return old, false
		})
		if found {
			return st, nil
		}
		p, err := querycache.Query(ctx, s.Cache, postKey(postID), func(ctx context.Context) (models.Post, error) {
			p, err := s.Services.Posts.Get(ctx, postID)
			if err != nil {
				return models.Post{}, err
			}
			return *p, nil
		})
		if err != nil {
			return optimistic.State{}, err
		}
		return f.get(&p), nil
	}
}

// writePost stores st in every cached copy of the post and returns a
// function that puts each patched entry back to its own previous value.
// Cached values are never mutated in place; changed ones are replaced by
// patched copies.
func writePost(s *session.Session, postID string, f postField) func(optimistic.State) func() {
	return func(st optimistic.State) func() {
		type saved struct {
			key  querycache.Key
			data any
		}
		var before []saved
		s.Cache.UpdateQueriesData(postsKey, func(key querycache.Key, old any) (any, bool) {
			v, changed := patchPost(old, postID, func(p *models.Post) { f.set(p, st) })
			if changed {
				before = append(before, saved{key: key, data: old})
			}
			return v, changed
		})
		return func() {
			for _, e := range before {
				s.Cache.SetQueryData(e.key, e.data)
			}
		}
	}
}

func eachPost(v any, fn func(p *models.Post)) {
	switch v := v.(type) {
	case models.Post:
		fn(&v)
	case models.FeedPage:
		for i := range v.Posts {
			fn(&v.Posts[i])
		}
	case []models.Post:
		for i := range v {
			fn(&v[i])
		}
	}
}

func patchPost(v any, postID string, fn func(p *models.Post)) (any, bool) {
	patchList := func(posts []models.Post) ([]models.Post, bool) {
		i := slices.IndexFunc(posts, func(p models.Post) bool { return p.ID == postID })
		if i < 0 {
			return posts, false
		}
		out := slices.Clone(posts)
		fn(&out[i])
		return out, true
	}
	switch v := v.(type) {
	case models.Post:
		if v.ID != postID {
			return v, false
		}
		fn(&v)
		return v, true
	case models.FeedPage:
		posts, changed := patchList(v.Posts)
		v.Posts = posts
		return v, changed
	case []models.Post:
		return patchList(v)
	}
	return v, false
}

package view

import (
	"context"
	"strings"

	"trazio/internal/featureflags"
	"trazio/internal/models"
	"trazio/internal/onboarding"
	"trazio/internal/querycache"
	"trazio/internal/session"

	"golang.org/x/sync/errgroup"
)

// FeedPage is one page of the feed.
type FeedPage struct {
	Posts   []PostView      `json:"posts"`
	Page    int             `json:"page"`
	HasMore bool            `json:"hasMore"`
	Flags   map[string]bool `json:"flags"`
}

// Feed loads feed page n, starting at 1.
func (v *View) Feed(ctx context.Context, s *session.Session, page int) (*FeedPage, error) {
	if page < 1 {
		page = 1
	}
	fp, err := querycache.Query(ctx, s.Cache, feedKey(page), func(ctx context.Context) (models.FeedPage, error) {
		p, err := s.Services.Posts.Feed(ctx, page)
		if err != nil {
			return models.FeedPage{}, err
		}
		return *p, nil
	})
	if err != nil {
		return nil, err
	}
	return &FeedPage{
		Posts:   v.decorate(s.User(), fp.Posts),
		Page:    fp.Page,
		HasMore: fp.HasMore,
		Flags:   v.Flags(s),
	}, nil
}

// PostPage is a post with its comments and highlights.
type PostPage struct {
	Post       PostView           `json:"post"`
	Comments   []CommentView      `json:"comments"`
	Highlights []models.Highlight `json:"highlights"`
}

// Post loads the detail page of a post. Its three queries run concurrently.
func (v *View) Post(ctx context.Context, s *session.Session, id string) (*PostPage, error) {
	var (
		post       models.Post
		comments   []models.Comment
		highlights []models.Highlight
	)
	actor := s.User()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		post, err = v.loadPost(gctx, s, id)
		return err
	})
	g.Go(func() (err error) {
		comments, err = querycache.Query(gctx, s.Cache, commentsKey(id), func(ctx context.Context) ([]models.Comment, error) {
			return s.Services.Comments.ForPost(ctx, id)
		})
		return err
	})
	if v.flags.Enabled(featureflags.Highlights, actor) {
		g.Go(func() (err error) {
			highlights, err = querycache.Query(gctx, s.Cache, highlightsKey(id), func(ctx context.Context) ([]models.Highlight, error) {
				return s.Services.Highlights.ForPost(ctx, id)
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	page := &PostPage{
		Post:       v.decorateOne(actor, &post, v.flags.Enabled(featureflags.Highlights, actor)),
		Comments:   make([]CommentView, 0, len(comments)),
		Highlights: highlights,
	}
	if page.Highlights == nil {
		page.Highlights = []models.Highlight{}
	}
	uid := actorID(s)
	for i := range comments {
		page.Comments = append(page.Comments, CommentView{Comment: comments[i], CanDelete: comments[i].CanDelete(uid)})
	}
	return page, nil
}

func (v *View) loadPost(ctx context.Context, s *session.Session, id string) (models.Post, error) {
	return querycache.Query(ctx, s.Cache, postKey(id), func(ctx context.Context) (models.Post, error) {
		p, err := s.Services.Posts.Get(ctx, id)
		if err != nil {
			return models.Post{}, err
		}
		return *p, nil
	})
}

// ProfilePage is a user's profile and posts.
type ProfilePage struct {
	User  models.User `json:"user"`
	Own   bool        `json:"own"`
	Posts []PostView  `json:"posts"`
}

// Profile loads the profile of userID, or of the signed-in user when empty.
func (v *View) Profile(ctx context.Context, s *session.Session, userID string) (*ProfilePage, error) {
	actor := s.User()
	if userID == "" && actor != nil {
		userID = actor.ID
	}
	var (
		user  *models.User
		posts []models.Post
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		user, err = querycache.Query(gctx, s.Cache, userKey(userID), func(ctx context.Context) (*models.User, error) {
			return s.Services.Profile.Get(ctx, userID)
		})
		return err
	})
	g.Go(func() (err error) {
		posts, err = postList(gctx, s, userPostsKey(userID), func(ctx context.Context) ([]models.Post, error) {
			return s.Services.Posts.ByUser(ctx, userID)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ProfilePage{
		User:  *user,
		Own:   actor != nil && actor.ID == userID,
		Posts: v.decorate(actor, posts),
	}, nil
}

// HashtagPage lists the posts carrying a hashtag.
type HashtagPage struct {
	Tag   string     `json:"tag"`
	Posts []PostView `json:"posts"`
}

// Hashtag loads the posts tagged with tag.
func (v *View) Hashtag(ctx context.Context, s *session.Session, tag string) (*HashtagPage, error) {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	posts, err := postList(ctx, s, hashtagKey(tag), func(ctx context.Context) ([]models.Post, error) {
		return s.Services.Posts.ByHashtag(ctx, tag)
	})
	if err != nil {
		return nil, err
	}
	return &HashtagPage{Tag: tag, Posts: v.decorate(s.User(), posts)}, nil
}

func postList(ctx context.Context, s *session.Session, key querycache.Key, fetch func(context.Context) ([]models.Post, error)) ([]models.Post, error) {
	return querycache.Query(ctx, s.Cache, key, func(ctx context.Context) ([]models.Post, error) {
		posts, err := fetch(ctx)
		if posts == nil && err == nil {
			posts = []models.Post{}
		}
		return posts, err
	})
}

// OnboardingPage is the current wizard step and the subjects to pick from.
type OnboardingPage struct {
	onboarding.View
	Subjects []models.Subject `json:"subjects"`
}

// Onboarding loads the wizard page.
func (v *View) Onboarding(ctx context.Context, s *session.Session) (*OnboardingPage, error) {
	subjects, err := querycache.Query(ctx, s.Cache, subjectsKey, func(ctx context.Context) ([]models.Subject, error) {
		return s.Services.Onboarding.Subjects(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &OnboardingPage{View: s.Wizard().View(), Subjects: subjects}, nil
}

package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trazio/internal/models"
	"trazio/internal/querycache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var postKey = querycache.Key{"posts", "p1"}

func likeToggle(c *querycache.Cache, activate, deactivate func(context.Context) error) Toggle {
	return Toggle{
		Name:   "like",
		Entity: "post:p1",
		Keys:   []querycache.Key{postKey},
		Read: func(context.Context) (State, error) {
			p, ok := querycache.GetQueryData[models.Post](c, postKey)
			if !ok {
				return State{}, models.NewNotFoundError("post", "p1")
			}
			return State{On: p.HasLiked, Count: p.LikesCount}, nil
		},
		Write: func(s State) func() {
			old, _ := querycache.GetQueryData[models.Post](c, postKey)
			p := old
			p.HasLiked, p.LikesCount = s.On, s.Count
			c.SetQueryData(postKey, p)
			return func() { c.SetQueryData(postKey, old) }
		},
		Activate:       activate,
		Deactivate:     deactivate,
		FailureMessage: "No se pudo actualizar el me gusta",
	}
}

func seed(c *querycache.Cache, liked bool, count int) {
	c.SetQueryData(postKey, models.Post{ID: "p1", HasLiked: liked, LikesCount: count})
}

func current(c *querycache.Cache) State {
	p, _ := querycache.GetQueryData[models.Post](c, postKey)
	return State{On: p.HasLiked, Count: p.LikesCount}
}

func ok(context.Context) error { return nil }

func TestState_Flipped(t *testing.T) {
	t.Parallel()
	assert.Equal(t, State{On: true, Count: 4}, State{On: false, Count: 3}.Flipped())
	assert.Equal(t, State{On: false, Count: 2}, State{On: true, Count: 3}.Flipped())
	assert.Equal(t, State{On: false, Count: 0}, State{On: true, Count: 0}.Flipped())
}

func TestFlip_DirectionFromCapturedState(t *testing.T) {
	tests := []struct {
		name       string
		liked      bool
		count      int
		wantCall   string
		wantResult State
	}{
		{"not liked activates", false, 3, "activate", State{On: true, Count: 4}},
		{"liked deactivates", true, 3, "deactivate", State{On: false, Count: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := querycache.New(querycache.Options{StaleTime: time.Minute})
			seed(c, tt.liked, tt.count)
			var called string
			tg := likeToggle(c,
				func(context.Context) error { called = "activate"; return nil },
				func(context.Context) error { called = "deactivate"; return nil },
			)

			got, err := NewToggler(c).Flip(context.Background(), tg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCall, called)
			assert.Equal(t, tt.wantResult, got)
			assert.Equal(t, tt.wantResult, current(c))
		})
	}
}

func TestFlip_OptimisticBeforeNetwork(t *testing.T) {
	c := querycache.New(querycache.Options{StaleTime: time.Minute})
	seed(c, false, 0)

	var seen State
	tg := likeToggle(c, func(context.Context) error {
		seen = current(c)
		return nil
	}, ok)

	_, err := NewToggler(c).Flip(context.Background(), tg)
	require.NoError(t, err)
	assert.Equal(t, State{On: true, Count: 1}, seen)
}

func TestFlip_SuccessInvalidates(t *testing.T) {
	c := querycache.New(querycache.Options{StaleTime: time.Minute})
	seed(c, false, 1)

	_, err := NewToggler(c).Flip(context.Background(), likeToggle(c, ok, ok))
	require.NoError(t, err)

	fetched := false
	_, err = querycache.Query(context.Background(), c, postKey, func(context.Context) (models.Post, error) {
		fetched = true
		return models.Post{ID: "p1", HasLiked: true, LikesCount: 2}, nil
	})
	require.NoError(t, err)
	assert.True(t, fetched, "invalidated key is refetched")
}

func TestFlip_FailureRestoresExactState(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"backend rejection verbatim", models.NewBackendError(409, "Ya diste me gusta"), "Ya diste me gusta"},
		{"network failure generic", models.NewNetworkError(errors.New("dial tcp")), "No se pudo actualizar el me gusta"},
		{"unknown failure generic", errors.New("boom"), "No se pudo actualizar el me gusta"},
	}

	for _, tt := range tests {
		for _, liked := range []bool{false, true} {
			c := querycache.New(querycache.Options{StaleTime: time.Minute})
			seed(c, liked, 7)
			fail := func(context.Context) error { return tt.err }

			got, err := NewToggler(c).Flip(context.Background(), likeToggle(c, fail, fail))
			require.Error(t, err, tt.name)

			want := State{On: liked, Count: 7}
			assert.Equal(t, want, got, tt.name)
			assert.Equal(t, want, current(c), tt.name)

			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantMsg, appErr.Message, tt.name)
		}
	}
}

func TestFlip_ReadFailureLeavesCacheUntouched(t *testing.T) {
	c := querycache.New(querycache.Options{StaleTime: time.Minute})
	called := false
	tg := likeToggle(c, func(context.Context) error { called = true; return nil }, ok)

	_, err := NewToggler(c).Flip(context.Background(), tg)
	assert.Error(t, err)
	assert.False(t, called)
	assert.Equal(t, 0, c.Len())
}

func TestFlip_SerializesPerEntity(t *testing.T) {
	c := querycache.New(querycache.Options{StaleTime: time.Minute})
	seed(c, false, 5)

	var (
		mu    sync.Mutex
		calls []string
	)
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			calls = append(calls, name)
			mu.Unlock()
			started <- struct{}{}
			<-release
			return nil
		}
	}
	toggler := NewToggler(c)
	tg := likeToggle(c, record("activate"), record("deactivate"))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := toggler.Flip(context.Background(), tg)
		assert.NoError(t, err)
	}()
	<-started
	go func() {
		defer wg.Done()
		_, err := toggler.Flip(context.Background(), tg)
		assert.NoError(t, err)
	}()

	select {
	case <-started:
		t.Fatal("second toggle ran while the first was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	wg.Wait()

	assert.Equal(t, []string{"activate", "deactivate"}, calls)
	assert.Equal(t, State{On: false, Count: 5}, current(c))
}

func TestFlip_CancelsInFlightQueries(t *testing.T) {
	c := querycache.New(querycache.Options{StaleTime: time.Minute})
	seed(c, false, 0)
	c.InvalidateQueries(context.Background(), postKey)

	started := make(chan struct{})
	proceed := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = querycache.Query(context.Background(), c, postKey, func(fctx context.Context) (models.Post, error) {
			close(started)
			<-proceed
			return models.Post{ID: "p1", HasLiked: false, LikesCount: 0}, nil
		})
	}()
	<-started

	toggler := NewToggler(c)
	tg := likeToggle(c, func(context.Context) error {
		close(proceed)
		<-done
		return nil
	}, ok)

	got, err := toggler.Flip(context.Background(), tg)
	require.NoError(t, err)
	assert.Equal(t, State{On: true, Count: 1}, got)
	assert.Equal(t, State{On: true, Count: 1}, current(c), "stale read did not overwrite the optimistic value")
}

func TestFlip_RollbackRestoresEachCopy(t *testing.T) {
	feedKey := querycache.Key{"posts", "feed"}
	c := querycache.New(querycache.Options{StaleTime: time.Minute})
	// The feed copy is older than the detail copy.
	c.SetQueryData(feedKey, []models.Post{{ID: "p1", LikesCount: 5}})
	seed(c, false, 7)

	tg := likeToggle(c, func(context.Context) error { return models.NewBackendError(422, "Publicación bloqueada") }, ok)
	tg.Keys = []querycache.Key{{"posts"}}
	detailWrite := tg.Write
	tg.Write = func(s State) func() {
		restoreDetail := detailWrite(s)
		oldFeed, _ := querycache.GetQueryData[[]models.Post](c, feedKey)
		feed := append([]models.Post(nil), oldFeed...)
		feed[0].HasLiked, feed[0].LikesCount = s.On, s.Count
		c.SetQueryData(feedKey, feed)
		return func() {
			restoreDetail()
			c.SetQueryData(feedKey, oldFeed)
		}
	}

	for i := 0; i < 20; i++ {
		_, err := NewToggler(c).Flip(context.Background(), tg)
		require.Error(t, err)

		feed, _ := querycache.GetQueryData[[]models.Post](c, feedKey)
		assert.Equal(t, 5, feed[0].LikesCount)
		assert.False(t, feed[0].HasLiked)
		assert.Equal(t, State{On: false, Count: 7}, current(c))
	}
}

func TestFlip_CancelsBeforeReading(t *testing.T) {
	c := querycache.New(querycache.Options{StaleTime: time.Minute})
	seed(c, false, 2)
	c.InvalidateQueries(context.Background(), postKey)

	fetching := make(chan context.Context)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = querycache.Query(context.Background(), c, postKey, func(fctx context.Context) (models.Post, error) {
			fetching <- fctx
			<-fctx.Done()
			return models.Post{}, fctx.Err()
		})
	}()
	fetchCtx := <-fetching

	tg := likeToggle(c, ok, ok)
	read := tg.Read
	var cancelledBeforeRead bool
	tg.Read = func(ctx context.Context) (State, error) {
		cancelledBeforeRead = fetchCtx.Err() != nil
		return read(ctx)
	}

	_, err := NewToggler(c).Flip(context.Background(), tg)
	require.NoError(t, err)
	assert.True(t, cancelledBeforeRead)
	<-done
}

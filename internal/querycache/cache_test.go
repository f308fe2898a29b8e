package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"trazio/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter(n *int32, v int) func(context.Context) (int, error) {
	return func(context.Context) (int, error) {
		atomic.AddInt32(n, 1)
		return v, nil
	}
}

func TestKey_HasPrefix(t *testing.T) {
	t.Parallel()
	tests := []struct {
		key    Key
		prefix Key
		want   bool
	}{
		{Key{"posts", "feed", "1"}, Key{"posts"}, true},
		{Key{"posts", "feed", "1"}, Key{"posts", "feed"}, true},
		{Key{"posts", "feed"}, Key{"posts", "feed", "1"}, false},
		{Key{"posts", "42"}, Key{"post"}, false},
		{Key{"exams"}, Key{}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.key.HasPrefix(tt.prefix), "%v / %v", tt.key, tt.prefix)
	}
}

func TestQuery_ServesFreshData(t *testing.T) {
	c := New(Options{StaleTime: time.Minute})
	ctx := context.Background()
	var calls int32

	for i := 0; i < 3; i++ {
		v, err := Query(ctx, c, Key{"posts", "1"}, counter(&calls, 5))
		require.NoError(t, err)
		assert.Equal(t, 5, v)
	}
	assert.Equal(t, int32(1), calls)
}

func TestQuery_RefetchesStaleData(t *testing.T) {
	c := New(Options{StaleTime: time.Minute})
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()
	var calls int32

	_, err := Query(ctx, c, Key{"feed"}, counter(&calls, 1))
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = Query(ctx, c, Key{"feed"}, counter(&calls, 2))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls)
}

func TestQuery_DeduplicatesConcurrentFetches(t *testing.T) {
	c := New(Options{StaleTime: time.Minute})
	release := make(chan struct{})
	var calls int32
	fetch := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "ok", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Query(context.Background(), c, Key{"exams"}, fetch)
			assert.NoError(t, err)
			assert.Equal(t, "ok", v)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQuery_ErrorDoesNotOverwrite(t *testing.T) {
	c := New(Options{StaleTime: 0})
	ctx := context.Background()
	c.SetQueryData(Key{"posts", "1"}, 3)

	_, err := Query(ctx, c, Key{"posts", "1"}, func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	assert.Error(t, err)

	v, ok := GetQueryData[int](c, Key{"posts", "1"})
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestCancelQueries_CancelledFetchNeverWrites(t *testing.T) {
	c := New(Options{StaleTime: time.Minute})
	ctx := context.Background()
	key := Key{"posts", "1"}
	c.SetQueryData(key, 1)
	c.InvalidateQueries(ctx, key)

	started := make(chan struct{})
	proceed := make(chan struct{})
	result := make(chan int, 1)
	go func() {
		v, err := Query(ctx, c, key, func(fctx context.Context) (int, error) {
			close(started)
			<-fctx.Done()
			<-proceed
			return 99, nil
		})
		assert.NoError(t, err)
		result <- v
	}()

	<-started
	c.CancelQueries(Key{"posts"})
	c.SetQueryData(key, 2)
	close(proceed)

	assert.Equal(t, 2, <-result)
	v, _ := GetQueryData[int](c, key)
	assert.Equal(t, 2, v)
}

func TestCancelQueries_NoDataYieldsErrCancelled(t *testing.T) {
	c := New(Options{StaleTime: time.Minute})
	started := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		_, err := Query(context.Background(), c, Key{"feed"}, func(fctx context.Context) (int, error) {
			close(started)
			<-fctx.Done()
			return 0, fctx.Err()
		})
		errc <- err
	}()

	<-started
	c.CancelQueries(Key{"feed"})
	assert.ErrorIs(t, <-errc, models.ErrCancelled)
	_, ok := GetQueryData[int](c, Key{"feed"})
	assert.False(t, ok)
}

func TestQuery_CallerContextCancelled(t *testing.T) {
	c := New(Options{StaleTime: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Query(ctx, c, Key{"feed"}, func(context.Context) (int, error) {
		time.Sleep(20 * time.Millisecond)
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvalidateQueries_RefetchesOnNextRead(t *testing.T) {
	c := New(Options{StaleTime: time.Minute})
	ctx := context.Background()
	var calls int32

	_, _ = Query(ctx, c, Key{"posts", "feed", "1"}, counter(&calls, 1))
	_, _ = Query(ctx, c, Key{"exams"}, counter(&calls, 1))
	c.InvalidateQueries(ctx, Key{"posts"})

	_, _ = Query(ctx, c, Key{"posts", "feed", "1"}, counter(&calls, 1))
	_, _ = Query(ctx, c, Key{"exams"}, counter(&calls, 1))
	assert.Equal(t, int32(3), calls)
}

func TestUpdateQueriesData(t *testing.T) {
	c := New(Options{StaleTime: time.Minute})
	c.SetQueryData(Key{"posts", "1"}, 10)
	c.SetQueryData(Key{"posts", "2"}, 20)
	c.SetQueryData(Key{"exams", "1"}, 30)

	n := c.UpdateQueriesData(Key{"posts"}, func(_ Key, old any) (any, bool) {
		return old.(int) + 1, true
	})
	assert.Equal(t, 2, n)

	v, _ := GetQueryData[int](c, Key{"posts", "2"})
	assert.Equal(t, 21, v)
	v, _ = GetQueryData[int](c, Key{"exams", "1"})
	assert.Equal(t, 30, v)
}

func TestRemoveQueriesAndClear(t *testing.T) {
	c := New(Options{})
	c.SetQueryData(Key{"posts", "1"}, 1)
	c.SetQueryData(Key{"exams", "1"}, 1)

	c.RemoveQueries(Key{"posts"})
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestGetQueryData_WrongType(t *testing.T) {
	c := New(Options{})
	c.SetQueryData(Key{"posts", "1"}, "text")
	_, ok := GetQueryData[int](c, Key{"posts", "1"})
	assert.False(t, ok)

	_, err := Query(context.Background(), c, Key{"posts", "1"}, counter(new(int32), 1))
	require.NoError(t, err, "stale entry is refetched")
}

func TestRedisStore_PersistsAcrossCaches(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	store := NewRedisStore(rdb, time.Minute)
	ctx := context.Background()
	var calls int32

	first := New(Options{StaleTime: time.Minute, Store: store})
	first.SetNamespace("u1")
	_, err = Query(ctx, first, Key{"posts", "1"}, counter(&calls, 7))
	require.NoError(t, err)
	assert.True(t, mr.Exists(RedisKey("u1", Key{"posts", "1"})))

	second := New(Options{StaleTime: time.Minute, Store: store})
	second.SetNamespace("u1")
	v, err := Query(ctx, second, Key{"posts", "1"}, counter(&calls, 8))
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, int32(1), calls)

	other := New(Options{StaleTime: time.Minute, Store: store})
	other.SetNamespace("u2")
	v, err = Query(ctx, other, Key{"posts", "1"}, counter(&calls, 9))
	require.NoError(t, err)
	assert.Equal(t, 9, v)

	second.InvalidateQueries(ctx, Key{"posts"})
	assert.False(t, mr.Exists(RedisKey("u1", Key{"posts", "1"})))
	assert.True(t, mr.Exists(RedisKey("u2", Key{"posts", "1"})))
}

func TestNewRedisStore_NilClient(t *testing.T) {
	t.Parallel()
	assert.IsType(t, MemoryStore{}, NewRedisStore(nil, time.Minute))
}

func TestMutate_Lifecycle(t *testing.T) {
	tests := []struct {
		name      string
		fnErr     error
		wantOrder []string
	}{
		{"success", nil, []string{"mutate", "fn", "success", "settled"}},
		{"failure", errors.New("nope"), []string{"mutate", "fn", "error", "settled"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var order []string
			_, err := Mutate(context.Background(), Mutation[int, string]{
				OnMutate: func(context.Context) (string, error) {
					order = append(order, "mutate")
					return "snapshot", nil
				},
				Fn: func(context.Context) (int, error) {
					order = append(order, "fn")
					return 1, tt.fnErr
				},
				OnError: func(_ context.Context, _ error, mc string) {
					assert.Equal(t, "snapshot", mc)
					order = append(order, "error")
				},
				OnSuccess: func(_ context.Context, _ int, mc string) {
					assert.Equal(t, "snapshot", mc)
					order = append(order, "success")
				},
				OnSettled: func(context.Context, int, error, string) {
					order = append(order, "settled")
				},
			})
			assert.Equal(t, tt.fnErr, err)
			assert.Equal(t, tt.wantOrder, order)
		})
	}
}

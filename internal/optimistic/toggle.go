// Package optimistic implements the two-state toggles (like, highlight) that
// are applied to the query cache before the backend confirms them.
package optimistic

import (
	"context"
	"errors"
	"sync"

	"trazio/internal/models"
	"trazio/internal/observability"
	"trazio/internal/querycache"
)

// State is the client-visible state of a toggle.
type State struct {
	On    bool `json:"on"`
	Count int  `json:"count"`
}

// Flipped is the optimistic successor of s.
func (s State) Flipped() State {
	if s.On {
		return State{On: false, Count: max(s.Count-1, 0)}
	}
	return State{On: true, Count: s.Count + 1}
}

// Toggle describes one flip of one entity.
type Toggle struct {
	// Name labels the mutation in logs and metrics, e.g. "like".
	Name string
	// Entity identifies what is toggled; toggles of one entity are serialized.
	Entity string
	// Keys are the query prefixes whose data shows the toggle.
	Keys []querycache.Key
	// Read returns the current state as the cache shows it.
	Read func(ctx context.Context) (State, error)
	// Write stores s wherever the cache shows the toggle. The returned
	// function puts every entry it changed back to that entry's own
	// previous value.
	Write func(s State) (restore func())
	// Activate and Deactivate issue the backend call.
	Activate   func(ctx context.Context) error
	Deactivate func(ctx context.Context) error
	// FailureMessage is shown when the backend call fails. Backend
	// messages are used verbatim when present.
	FailureMessage string
}

// Toggler runs toggles against one cache, one in-flight toggle per entity.
type Toggler struct {
	cache *querycache.Cache

	mu    sync.Mutex
	locks map[string]*entityLock
}

type entityLock struct {
	mu      sync.Mutex
	waiters int
}

func NewToggler(cache *querycache.Cache) *Toggler {
	return &Toggler{cache: cache, locks: make(map[string]*entityLock)}
}

func (t *Toggler) acquire(entity string) *entityLock {
	t.mu.Lock()
	l, ok := t.locks[entity]
	if !ok {
		l = &entityLock{}
		t.locks[entity] = l
	}
	l.waiters++
	t.mu.Unlock()
	l.mu.Lock()
	return l
}

func (t *Toggler) release(entity string, l *entityLock) {
	l.mu.Unlock()
	t.mu.Lock()
	l.waiters--
	if l.waiters == 0 {
		delete(t.locks, entity)
	}
	t.mu.Unlock()
}

// Flip toggles the entity and returns the state left in the cache. Toggles
// of the same entity queue behind the one in flight, so each one reads the
// state its predecessor settled on. On failure every cached copy is restored
// from its own snapshot and the returned error is ready to show to the user.
func (t *Toggler) Flip(ctx context.Context, tg Toggle) (State, error) {
	l := t.acquire(tg.Entity)
	defer t.release(tg.Entity, l)

	if err := ctx.Err(); err != nil {
		return State{}, err
	}

	type snapshot struct {
		before  State
		restore func()
	}

	var result State
	_, err := querycache.Mutate(ctx, querycache.Mutation[struct{}, snapshot]{
		OnMutate: func(ctx context.Context) (snapshot, error) {
			// Cancel first so no fetch lands between the read and the write.
			for _, k := range tg.Keys {
				t.cache.CancelQueries(k)
			}
			before, err := tg.Read(ctx)
			if err != nil {
				return snapshot{}, err
			}
			result = before.Flipped()
			return snapshot{before: before, restore: tg.Write(result)}, nil
		},
		Fn: func(ctx context.Context) (struct{}, error) {
			// Direction comes from the captured state, never from a re-read.
			if result.On {
				return struct{}{}, tg.Activate(ctx)
			}
			return struct{}{}, tg.Deactivate(ctx)
		},
		OnError: func(ctx context.Context, err error, snap snapshot) {
			if snap.restore == nil {
				return
			}
			snap.restore()
			result = snap.before
			observability.MutationOutcomes.WithLabelValues(tg.Name, "rolled_back").Inc()
			observability.LogMutation(ctx, tg.Name, tg.Entity, "rolled_back", err)
		},
		OnSuccess: func(ctx context.Context, _ struct{}, _ snapshot) {
			for _, k := range tg.Keys {
				t.cache.InvalidateQueries(ctx, k)
			}
			observability.MutationOutcomes.WithLabelValues(tg.Name, "committed").Inc()
			observability.LogMutation(ctx, tg.Name, tg.Entity, "committed", nil)
		},
	})
	if err != nil {
		return result, toastError(err, tg.FailureMessage)
	}
	return result, nil
}

// toastError keeps AppErrors (the backend message, a 401) and replaces
// anything else with the generic failure message.
func toastError(err error, fallback string) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		if appErr.Code == models.CodeNetwork && fallback != "" {
			return &models.AppError{Code: appErr.Code, Message: fallback, Err: appErr.Err}
		}
		return appErr
	}
	if fallback == "" {
		fallback = "No se pudo completar la acción"
	}
	return &models.AppError{Code: models.CodeInternal, Message: fallback, Err: err}
}

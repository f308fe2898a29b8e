package view

import (
	"context"

	"trazio/internal/querycache"
	"trazio/internal/service"
	"trazio/internal/session"
)

// Resource is the list/detail pages and CRUD actions of one kind of
// academic record.
type Resource[T, In any] struct {
	name   string
	labels labels
	bus    func(ctx context.Context, s *session.Session, userID string, key querycache.Key)
	pick   func(*service.Services) *service.ResourceService[T, In]
}

type labels struct {
	created, updated, deleted string
}

func (r Resource[T, In]) listKey() querycache.Key {
	return querycache.Key{r.name}
}

func (r Resource[T, In]) itemKey(id string) querycache.Key {
	return querycache.Key{r.name, id}
}

// List is the list page.
func (r Resource[T, In]) List(ctx context.Context, s *session.Session) ([]T, error) {
	return querycache.Query(ctx, s.Cache, r.listKey(), func(ctx context.Context) ([]T, error) {
		items, err := r.pick(s.Services).List(ctx)
		if items == nil && err == nil {
			items = []T{}
		}
		return items, err
	})
}

// Get is the detail page.
func (r Resource[T, In]) Get(ctx context.Context, s *session.Session, id string) (*T, error) {
	return querycache.Query(ctx, s.Cache, r.itemKey(id), func(ctx context.Context) (*T, error) {
		return r.pick(s.Services).Get(ctx, id)
	})
}

// Create adds a record and refreshes the owner's list everywhere.
func (r Resource[T, In]) Create(ctx context.Context, s *session.Session, in In) (*T, *Toast, error) {
	out, err := r.pick(s.Services).Create(ctx, in)
	logAction(ctx, "create_"+r.name, err)
	if err != nil {
		return nil, nil, err
	}
	r.bus(ctx, s, actorID(s), r.listKey())
	return out, successToast(r.labels.created), nil
}

// Update replaces a record. Its detail is under the list key and refreshes with it.
func (r Resource[T, In]) Update(ctx context.Context, s *session.Session, id string, in In) (*T, *Toast, error) {
	out, err := r.pick(s.Services).Update(ctx, id, in)
	logAction(ctx, "update_"+r.name, err)
	if err != nil {
		return nil, nil, err
	}
	r.bus(ctx, s, actorID(s), r.listKey())
	return out, successToast(r.labels.updated), nil
}

// Delete removes a record.
func (r Resource[T, In]) Delete(ctx context.Context, s *session.Session, id string) (*Toast, error) {
	err := r.pick(s.Services).Delete(ctx, id)
	logAction(ctx, "delete_"+r.name, err)
	if err != nil {
		return nil, err
	}
	s.Cache.RemoveQueries(r.itemKey(id))
	r.bus(ctx, s, actorID(s), r.listKey())
	return successToast(r.labels.deleted), nil
}

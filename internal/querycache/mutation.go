package querycache

import "context"

// Mutation describes a write and the hooks run around it. C is the context
// value produced by OnMutate, typically a snapshot to roll back to.
type Mutation[V, C any] struct {
	OnMutate  func(ctx context.Context) (C, error)
	Fn        func(ctx context.Context) (V, error)
	OnError   func(ctx context.Context, err error, mc C)
	OnSuccess func(ctx context.Context, v V, mc C)
	OnSettled func(ctx context.Context, v V, err error, mc C)
}

// Mutate runs m: OnMutate, then Fn, then OnSuccess or OnError, then OnSettled.
// If OnMutate fails, Fn is not run. Mutations are never retried.
func Mutate[V, C any](ctx context.Context, m Mutation[V, C]) (V, error) {
	var (
		mc  C
		v   V
		err error
	)
	if m.OnMutate != nil {
		mc, err = m.OnMutate(ctx)
	}
	if err == nil {
		v, err = m.Fn(ctx)
	}
	if err != nil {
		if m.OnError != nil {
			m.OnError(ctx, err, mc)
		}
	} else if m.OnSuccess != nil {
		m.OnSuccess(ctx, v, mc)
	}
	if m.OnSettled != nil {
		m.OnSettled(ctx, v, err, mc)
	}
	return v, err
}

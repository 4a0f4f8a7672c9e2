package querycache

import "context"

// Query is a typed handle on one cache key.
type Query[T any] struct {
	cache *Cache
	key   Key
}

func NewQuery[T any](c *Cache, key Key, fetch func(ctx context.Context) (T, error)) *Query[T] {
	c.Register(key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	return &Query[T]{cache: c, key: key}
}

func (q *Query[T]) Key() Key {
	return q.key
}

func (q *Query[T]) Get(ctx context.Context) (T, error) {
	v, err := q.cache.Get(ctx, q.key)
	return typed[T](v), err
}

func (q *Query[T]) Fetch(ctx context.Context) (T, error) {
	v, err := q.cache.Fetch(ctx, q.key)
	return typed[T](v), err
}

func (q *Query[T]) Invalidate() int {
	return q.cache.Invalidate(q.key)
}

// Observe registers fn for every applied result of this query.
func (q *Query[T]) Observe(fn func(value T, err error)) func() {
	cancel, err := q.cache.Observe(q.key, func(s Snapshot) {
		fn(typed[T](s.Value), s.Err)
	})
	if err != nil {
		// registered in NewQuery, cannot happen
		return func() {}
	}
	return cancel
}

func typed[T any](v any) T {
	t, _ := v.(T)
	return t
}

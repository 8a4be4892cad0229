package shared

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Flight collapses concurrent calls for the same key into a single execution whose result every caller shares.
//
// The shared call runs on a context detached from the cancellation of the caller that started it,
// so one caller giving up does not fail the others. Each caller still stops waiting when its own context ends.
type Flight[T any] struct {
	group singleflight.Group
}

// Do runs fn for key unless a call for key is already in flight, in which case it waits for that call.
//
// shared reports whether the result was delivered to more than one caller.
func (f *Flight[T]) Do(ctx context.Context, key string, fn func(context.Context) (T, error)) (v T, shared bool, err error) {
	detached := context.WithoutCancel(ctx)
	ch := f.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})

	select {
	case <-ctx.Done():
		return v, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return v, res.Shared, res.Err
		}
		return res.Val.(T), res.Shared, nil
	}
}

// Forget drops key so the next Do starts a fresh call even if one is still running.
func (f *Flight[T]) Forget(key string) {
	f.group.Forget(key)
}

// Package flight deduplicates concurrent backend reads without letting one
// caller's cancellation fail the others.
package flight

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"
)

// Group runs at most one call per key at a time. The shared call runs under
// a context detached from every caller's cancellation; each caller stops
// waiting when its own context ends.
type Group struct {
	g singleflight.Group
}

// Do runs fn for key, or joins the call already in flight. When ctx ends
// first, Do returns ctx.Err() and the shared call keeps running for the
// remaining waiters.
func (g *Group) Do(ctx context.Context, key string, fn func(ctx context.Context) (interface{}, error)) (v interface{}, err error, shared bool) {
	detached := context.WithoutCancel(ctx)
	ch := g.g.DoChan(key, func() (interface{}, error) {
		return fn(detached)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err, res.Shared
	case <-ctx.Done():
		return nil, ctx.Err(), false
	}
}

// Forget makes the next Do for key start a new call even if one is in
// flight. Use it after a mutation so a read issued before it is not reused.
func (g *Group) Forget(key string) {
	g.g.Forget(key)
}

// Abandoned reports whether err means the caller stopped waiting, as
// opposed to the shared call failing.
func Abandoned(ctx context.Context, err error) bool {
	ctxErr := ctx.Err()
	return err != nil && ctxErr != nil && errors.Is(err, ctxErr)
}

// Package fetchguard keeps at most one outstanding call per key. Callers that
// arrive while a call is pending wait for it and receive the same result.
package fetchguard

import (
	"context"
	"fmt"
	"sync"
)

type call[V any] struct {
	done    chan struct{}
	cancel  context.CancelFunc
	val     V
	err     error
	waiters int
	// callers still interested in the result, the starter included
	refs int
}

type Guard[K comparable, V any] struct {
	mu    sync.Mutex
	calls map[K]*call[V]
}

func New[K comparable, V any]() *Guard[K, V] {
	return &Guard[K, V]{calls: make(map[K]*call[V])}
}

// Do runs fn unless a call for key is already pending, in which case it waits
// for that call. shared reports whether the result came from another caller's
// call. The entry is removed as soon as fn returns, whatever the outcome.
//
// fn runs on a context detached from the starter's cancellation (values are
// kept), so the call survives as long as any caller is still waiting. A caller
// whose ctx ends leaves with ctx.Err(). The last caller to leave cancels the
// call and returns its outcome once fn has returned.
func (g *Guard[K, V]) Do(ctx context.Context, key K, fn func(context.Context) (V, error)) (v V, shared bool, err error) {
	g.mu.Lock()
	c, shared := g.calls[key]
	if shared {
		c.waiters++
		c.refs++
	} else {
		cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call[V]{done: make(chan struct{}), cancel: cancel, refs: 1}
		g.calls[key] = c
		go g.run(cctx, key, c, fn)
	}
	g.mu.Unlock()

	select {
	case <-c.done:
		return c.val, shared, c.err
	case <-ctx.Done():
	}

	g.mu.Lock()
	c.refs--
	last := c.refs == 0
	g.mu.Unlock()
	if !last {
		var zero V
		return zero, shared, ctx.Err()
	}
	c.cancel()
	<-c.done
	return c.val, shared, c.err
}

func (g *Guard[K, V]) run(ctx context.Context, key K, c *call[V], fn func(context.Context) (V, error)) {
	defer c.cancel()
	defer func() {
		if r := recover(); r != nil {
			c.err = fmt.Errorf("fetchguard: call panicked: %v", r)
		}
		g.settle(key, c)
	}()
	c.val, c.err = fn(ctx)
}

func (g *Guard[K, V]) settle(key K, c *call[V]) {
	g.mu.Lock()
	if g.calls[key] == c {
		delete(g.calls, key)
	}
	g.mu.Unlock()
	close(c.done)
}

func (g *Guard[K, V]) InFlight(key K) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.calls[key]
	return ok
}

// Waiters is the number of callers currently waiting on key's pending call,
// not counting the caller that started it.
func (g *Guard[K, V]) Waiters(key K) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.calls[key]; ok {
		return c.waiters
	}
	return 0
}

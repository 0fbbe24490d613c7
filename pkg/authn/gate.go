package authn

import (
	"context"
	"sync"
)

// Gate serializes authentication-gated operations per alias. The hardware
// prompt is a singleton UI resource, so two challenges for the same alias
// must never run concurrently; later callers queue behind the in-flight one.
type Gate struct {
	mu      sync.Mutex
	pending map[string]chan struct{}
}

func NewGate() *Gate {
	return &Gate{
		pending: make(map[string]chan struct{}),
	}
}

// Acquire blocks until the alias is free or the context is canceled. The
// returned release function must be called exactly once.
func (g *Gate) Acquire(ctx context.Context, alias string) (func(), error) {
	for {
		g.mu.Lock()
		ch, busy := g.pending[alias]
		if !busy {
			done := make(chan struct{})
			g.pending[alias] = done
			g.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					g.mu.Lock()
					delete(g.pending, alias)
					g.mu.Unlock()
					close(done)
				})
			}, nil
		}
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ch:
			// Holder finished; race for the slot again.
		}
	}
}

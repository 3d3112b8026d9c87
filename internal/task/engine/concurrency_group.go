package engine

import (
	"context"
	"sync"
)

// groupStore holds one channel semaphore per concurrency group.
//
// apply replaces the semaphore of a group whose limit changed. Holders of the
// old semaphore release into it, so a resize settles once they finish.
type groupStore struct {
	mu     sync.Mutex
	groups map[string]chan struct{}
}

func newSemaphore(limit int) chan struct{} {
	ch := make(chan struct{}, limit)
	for i := 0; i < limit; i++ {
		ch <- struct{}{}
	}
	return ch
}

func (g *groupStore) apply(limits map[string]int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.groups == nil {
		g.groups = make(map[string]chan struct{})
	}
	for name, sem := range g.groups {
		if limits[name] <= 0 {
			delete(g.groups, name)
			continue
		}
		if cap(sem) != limits[name] {
			g.groups[name] = newSemaphore(limits[name])
		}
	}
	for name, n := range limits {
		if _, ok := g.groups[name]; !ok && n > 0 {
			g.groups[name] = newSemaphore(n)
		}
	}
}

func (g *groupStore) get(name string) chan struct{} {
	if name == "" {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.groups[name]
}

// acquire blocks until a slot in the group is free. Tasks without a limited
// group pass through. ok is false when ctx or stopCh ended the wait.
func (g *groupStore) acquire(ctx context.Context, stopCh <-chan struct{}, name string) (release func(), ok bool) {
	sem := g.get(name)
	if sem == nil {
		return func() {}, true
	}
	select {
	case <-sem:
		return func() {
			select {
			case sem <- struct{}{}:
			default:
			}
		}, true
	case <-ctx.Done():
		return nil, false
	case <-stopCh:
		return nil, false
	}
}

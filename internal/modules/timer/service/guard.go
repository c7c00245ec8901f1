package service

import "sync"

type Guard interface {
	TryAcquire(activityID string) bool
	Release(activityID string)
}

// CompletionGuard is a keyed single-flight lock. TryAcquire checks and
// takes the key in one step, so two triggers can never both be granted.
type CompletionGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewCompletionGuard() *CompletionGuard {
	return &CompletionGuard{held: map[string]struct{}{}}
}

func (g *CompletionGuard) TryAcquire(activityID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[activityID]; busy {
		return false
	}
	g.held[activityID] = struct{}{}
	return true
}

func (g *CompletionGuard) Release(activityID string) {
	g.mu.Lock()
	delete(g.held, activityID)
	g.mu.Unlock()
}

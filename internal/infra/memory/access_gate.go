package memory

import (
	"context"
	"sync"
)

// AccessGate remembers unlocked (session, quiz) pairs for the process lifetime.
type AccessGate struct {
	mu       sync.RWMutex
	unlocked map[string]struct{}
}

func NewAccessGate() *AccessGate {
	return &AccessGate{unlocked: make(map[string]struct{})}
}

func (g *AccessGate) Unlocked(_ context.Context, sessionID, quizID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.unlocked[sessionID+"/"+quizID]
	return ok, nil
}

func (g *AccessGate) Unlock(_ context.Context, sessionID, quizID string) error {
	if sessionID == "" {
		return nil
	}
	g.mu.Lock()
	g.unlocked[sessionID+"/"+quizID] = struct{}{}
	g.mu.Unlock()
	return nil
}

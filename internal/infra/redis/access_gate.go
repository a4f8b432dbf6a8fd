package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// AccessGate stores unlocked (session, quiz) pairs as keys that expire with the session.
type AccessGate struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAccessGate(client *redis.Client, ttl time.Duration) *AccessGate {
	return &AccessGate{client: client, ttl: ttl}
}

func (g *AccessGate) Unlocked(ctx context.Context, sessionID, quizID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	n, err := g.client.Exists(ctx, g.key(sessionID, quizID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (g *AccessGate) Unlock(ctx context.Context, sessionID, quizID string) error {
	if sessionID == "" {
		return nil
	}
	return g.client.Set(ctx, g.key(sessionID, quizID), "1", g.ttl).Err()
}

func (g *AccessGate) key(sessionID, quizID string) string {
	return "quiz:access:" + sessionID + ":" + quizID
}

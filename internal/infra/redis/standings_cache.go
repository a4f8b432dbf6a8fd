package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// StandingsCache keeps the top finishers of each quiz in Redis and falls back
// to the loader on a miss. Entries are stored as JSON under quiz:{quizID}:standings.
type StandingsCache struct {
	client *redis.Client
	loader app.StandingsLoader
	top    int
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewStandingsCache(client *redis.Client, loader app.StandingsLoader, top int, ttl time.Duration) *StandingsCache {
	return &StandingsCache{
		client: client,
		loader: loader,
		top:    top,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *StandingsCache) Top(ctx context.Context, quizID string) ([]domain.LeaderboardEntry, error) {
	if entries, ok := c.lookup(ctx, quizID); ok {
		return entries, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		// another caller may have filled it meanwhile
		if entries, ok := c.lookup(ctx, quizID); ok {
			return entries, nil
		}
		entries, err := c.loader.Standings(ctx, quizID, c.top)
		if err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []domain.LeaderboardEntry{}
		}
		if ttl := c.ttlWithJitter(); ttl > 0 {
			if payload, err := json.Marshal(entries); err == nil {
				_ = c.client.Set(ctx, c.key(quizID), payload, ttl).Err()
			}
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.LeaderboardEntry), nil
}

func (c *StandingsCache) Invalidate(ctx context.Context, quizID string) error {
	return c.client.Del(ctx, c.key(quizID)).Err()
}

// lookup treats any Redis failure as a miss so pollers still get an answer.
func (c *StandingsCache) lookup(ctx context.Context, quizID string) ([]domain.LeaderboardEntry, bool) {
	payload, err := c.client.Get(ctx, c.key(quizID)).Bytes()
	if err != nil {
		return nil, false
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (c *StandingsCache) key(quizID string) string {
	return "quiz:" + quizID + ":standings"
}

func (c *StandingsCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

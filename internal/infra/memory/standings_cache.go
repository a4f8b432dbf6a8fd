package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// StandingsCache keeps the top finishers per quiz with a TTL so pollers of the
// status endpoint do not rank attempts on every request.
type StandingsCache struct {
	loader app.StandingsLoader
	top    int
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedStandings
}

type cachedStandings struct {
	entries   []domain.LeaderboardEntry
	expiresAt time.Time
}

func NewStandingsCache(loader app.StandingsLoader, top int, ttl time.Duration) *StandingsCache {
	return &StandingsCache{
		loader: loader,
		top:    top,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedStandings),
	}
}

func (c *StandingsCache) Top(ctx context.Context, quizID string) ([]domain.LeaderboardEntry, error) {
	if entries, ok := c.lookup(quizID); ok {
		return entries, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		if entries, ok := c.lookup(quizID); ok {
			return entries, nil
		}
		entries, err := c.loader.Standings(ctx, quizID, c.top)
		if err != nil {
			return nil, err
		}
		if ttl := c.ttlWithJitter(); ttl > 0 {
			c.mu.Lock()
			c.cache[quizID] = cachedStandings{entries: entries, expiresAt: c.clock().Add(ttl)}
			c.mu.Unlock()
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.LeaderboardEntry), nil
}

func (c *StandingsCache) Invalidate(_ context.Context, quizID string) error {
	c.mu.Lock()
	delete(c.cache, quizID)
	c.mu.Unlock()
	return nil
}

func (c *StandingsCache) lookup(quizID string) ([]domain.LeaderboardEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[quizID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return entry.entries, true
}

func (c *StandingsCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter spreads expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

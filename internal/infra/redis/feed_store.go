package redis

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

const feedChannelPrefix = "quiz:feed:"

// FeedStore keeps the subscribers of this instance in process and relays
// status snapshots between instances over Redis pub/sub. Each snapshot is
// published as JSON on quiz:feed:{quizID}.
type FeedStore struct {
	client *redis.Client
	log    *zap.Logger
	mu     sync.RWMutex
	feeds  map[string]*app.Feed
}

func NewFeedStore(client *redis.Client, logger *zap.Logger) *FeedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedStore{
		client: client,
		log:    logger,
		feeds:  make(map[string]*app.Feed),
	}
}

func (s *FeedStore) GetOrCreate(quizID string) *app.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	if feed, ok := s.feeds[quizID]; ok {
		return feed
	}
	feed := app.NewFeed(quizID)
	s.feeds[quizID] = feed
	return feed
}

func (s *FeedStore) Get(quizID string) (*app.Feed, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feed, ok := s.feeds[quizID]
	return feed, ok
}

func (s *FeedStore) DeleteIfIdle(quizID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if feed, ok := s.feeds[quizID]; ok && feed.Idle() {
		delete(s.feeds, quizID)
	}
}

// Broadcast publishes the snapshot to every listening instance, this one included.
func (s *FeedStore) Broadcast(ctx context.Context, status domain.Status) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, feedChannelPrefix+status.QuizID, payload).Err()
}

// Listen subscribes to the snapshots of all quizzes and relays them to local
// feeds until ctx is done. It returns once Redis has confirmed the subscription.
func (s *FeedStore) Listen(ctx context.Context) error {
	sub := s.client.PSubscribe(ctx, feedChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	go s.relay(ctx, sub)
	return nil
}

func (s *FeedStore) relay(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()
	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			s.deliver(msg)
		}
	}
}

func (s *FeedStore) deliver(msg *redis.Message) {
	quizID := strings.TrimPrefix(msg.Channel, feedChannelPrefix)
	feed, ok := s.Get(quizID)
	if !ok {
		return
	}
	var status domain.Status
	if err := json.Unmarshal([]byte(msg.Payload), &status); err != nil {
		s.log.Warn("decode feed snapshot", zap.String("channel", msg.Channel), zap.Error(err))
		return
	}
	feed.Publish(status)
}

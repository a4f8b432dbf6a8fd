package memory

import (
	"context"
	"sync"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// FeedStore is an in-memory implementation of app.FeedRepository.
type FeedStore struct {
	mu    sync.RWMutex
	feeds map[string]*app.Feed
}

func NewFeedStore() *FeedStore {
	return &FeedStore{feeds: make(map[string]*app.Feed)}
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

// Broadcast publishes to the local feed only; a single instance has no peers.
func (s *FeedStore) Broadcast(_ context.Context, status domain.Status) error {
	if feed, ok := s.Get(status.QuizID); ok {
		feed.Publish(status)
	}
	return nil
}

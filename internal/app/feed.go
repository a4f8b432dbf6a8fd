package app

import (
	"sync"

	"timed-quiz-service/internal/domain"
)

// Feed fans status snapshots of one quiz out to live subscribers.
type Feed struct {
	quizID      string
	mu          sync.RWMutex
	subscribers map[chan domain.Status]struct{}
}

// NewFeed is exported for infrastructure layers that keep feeds.
func NewFeed(quizID string) *Feed {
	return &Feed{
		quizID:      quizID,
		subscribers: make(map[chan domain.Status]struct{}),
	}
}

// Subscribe registers a subscriber primed with initial. The returned function
// unsubscribes and closes the channel.
func (f *Feed) Subscribe(initial domain.Status) (<-chan domain.Status, func()) {
	ch := make(chan domain.Status, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	ch <- initial

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers status to every subscriber. A slow subscriber loses its
// oldest pending snapshot rather than blocking the publisher.
func (f *Feed) Publish(status domain.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- status:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- status
		}
	}
}

// Idle reports whether nobody is subscribed.
func (f *Feed) Idle() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers) == 0
}

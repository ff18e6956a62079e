// Package broadcast provides topic-based fan-out of post lifecycle events
// to currently connected subscribers.
package broadcast

import "sync"

// TopicBlogFeed is the single topic all post lifecycle events go to.
const TopicBlogFeed = "blog_feed"

const (
	EventPostCreated = "post_created"
	EventPostDeleted = "post_deleted"
)

// Event is one broadcast message as delivered to clients.
type Event struct {
	Event  string `json:"event"`
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// Broadcaster fans events out to every current subscriber of a topic.
// Publish is fire-and-forget: it never blocks on, retries, or reports
// per-subscriber delivery.
type Broadcaster interface {
	Publish(topic string, event Event)
	Subscribe(topic string) Subscription
}

// Subscription is one subscriber's view of a topic. Events() stays open
// until Close; events published before Subscribe are never delivered.
type Subscription interface {
	Events() <-chan Event
	Close()
}

// subscriber buffer; events beyond this are dropped for that subscriber.
const subscriberBuffer = 16

// Memory is an in-process Broadcaster.
type Memory struct {
	mu     sync.RWMutex
	topics map[string]map[*memorySubscription]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		topics: make(map[string]map[*memorySubscription]struct{}),
	}
}

func (m *Memory) Publish(topic string, event Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for sub := range m.topics[topic] {
		select {
		case sub.ch <- event:
		default:
			// subscriber is not keeping up; drop
		}
	}
}

func (m *Memory) Subscribe(topic string) Subscription {
	sub := &memorySubscription{
		parent: m,
		topic:  topic,
		ch:     make(chan Event, subscriberBuffer),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.topics[topic] == nil {
		m.topics[topic] = make(map[*memorySubscription]struct{})
	}
	m.topics[topic][sub] = struct{}{}
	return sub
}

type memorySubscription struct {
	parent *Memory
	topic  string
	ch     chan Event
	once   sync.Once
}

func (s *memorySubscription) Events() <-chan Event {
	return s.ch
}

func (s *memorySubscription) Close() {
	s.once.Do(func() {
		s.parent.mu.Lock()
		delete(s.parent.topics[s.topic], s)
		if len(s.parent.topics[s.topic]) == 0 {
			delete(s.parent.topics, s.topic)
		}
		s.parent.mu.Unlock()
		close(s.ch)
	})
}

var _ Broadcaster = (*Memory)(nil)

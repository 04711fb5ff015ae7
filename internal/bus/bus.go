// Package bus implements the in-process publish/subscribe channel used to
// fan out catalog change events to live listeners.
//
// Delivery is fire-and-forget and at-most-once per currently subscribed
// listener, in publish order. There is no replay and no persistence: a
// subscriber that joins after a publish never sees it, and a publish with
// zero subscribers drops the payload.
//
// Each subscriber's backlog is UNBOUNDED BUT MONITORED: a publisher never
// blocks and never drops, so a slow subscriber accumulates backlog instead
// of exerting backpressure. Backlog growth past a threshold is logged so
// operators can spot stuck consumers.
package bus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/librisapp/libris-server/internal/id"
)

// Topic identifies an event stream on the bus.
type Topic string

// TopicBookAdded carries a payload for every book successfully added to the
// catalog.
const TopicBookAdded Topic = "book-added"

// backlogWarnThreshold is the per-subscriber queue depth at which the bus
// starts logging slow-consumer warnings.
const backlogWarnThreshold = 256

// Event is a single published message.
type Event struct {
	Topic     Topic     `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Bus is an in-process publish/subscribe hub.
// Construct one at process start and inject it; there is no package-level
// instance.
type Bus struct {
	mu     sync.Mutex
	topics map[Topic]map[string]*subscriber
	logger *slog.Logger
	closed bool
}

// New creates a new Bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		topics: make(map[Topic]map[string]*subscriber),
		logger: logger,
	}
}

// Publish delivers payload to every subscriber currently registered on topic.
// It never blocks on subscriber processing and returns as soon as the event
// is queued everywhere. With zero subscribers the payload is dropped.
func (b *Bus) Publish(topic Topic, payload any) {
	event := Event{
		Topic:     topic,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, sub := range b.topics[topic] {
		depth := sub.enqueue(event)
		if depth >= backlogWarnThreshold && b.logger != nil {
			b.logger.Warn("slow event subscriber, backlog growing",
				slog.String("subscriber_id", sub.id),
				slog.String("topic", string(topic)),
				slog.Int("backlog", depth))
		}
	}
}

// Subscribe registers a new listener on topic and returns its subscription.
// The caller must Cancel the subscription when done; a cancelled subscriber
// is removed and receives nothing further.
func (b *Bus) Subscribe(topic Topic) *Subscription {
	sub := newSubscriber(id.MustGenerate("sub"))

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.close()
		close(sub.out)
		return &Subscription{C: sub.out, bus: b, topic: topic, sub: sub}
	}
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[string]*subscriber)
	}
	b.topics[topic][sub.id] = sub
	total := len(b.topics[topic])
	b.mu.Unlock()

	go sub.pump()

	if b.logger != nil {
		b.logger.Debug("subscriber registered",
			slog.String("subscriber_id", sub.id),
			slog.String("topic", string(topic)),
			slog.Int("topic_subscribers", total))
	}

	return &Subscription{C: sub.out, bus: b, topic: topic, sub: sub}
}

// SubscriberCount returns the number of live subscribers on a topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

// Close cancels every subscription and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var subs []*subscriber
	for _, topicSubs := range b.topics {
		for _, sub := range topicSubs {
			subs = append(subs, sub)
		}
	}
	b.topics = make(map[Topic]map[string]*subscriber)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// Subscription is a live registration on a topic.
type Subscription struct {
	// C delivers events in publish order. It is closed after Cancel or bus
	// shutdown; any undelivered backlog is dropped at that point.
	C <-chan Event

	bus   *Bus
	topic Topic
	sub   *subscriber
	once  sync.Once
}

// Cancel removes the subscription from the bus. Nothing is delivered
// afterwards; undelivered backlog is dropped.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.topics[s.topic], s.sub.id)
		s.bus.mu.Unlock()
		s.sub.close()
	})
}

// subscriber owns one unbounded delivery queue and the goroutine draining it.
type subscriber struct {
	id string

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool

	out  chan Event
	done chan struct{}
}

func newSubscriber(subID string) *subscriber {
	s := &subscriber{
		id:   subID,
		out:  make(chan Event),
		done: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// enqueue appends an event and returns the resulting backlog depth.
func (s *subscriber) enqueue(event Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	s.queue = append(s.queue, event)
	depth := len(s.queue)
	s.cond.Signal()
	return depth
}

func (s *subscriber) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.cond.Signal()
	s.mu.Unlock()
}

// pump moves events from the queue to the delivery channel, preserving
// publish order. A cancelled subscriber receives nothing further: pump drops
// any remaining backlog and closes the delivery channel.
func (s *subscriber) pump() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			close(s.out)
			return
		}
		event := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- event:
		case <-s.done:
			close(s.out)
			return
		}
	}
}

package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveOne(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case event, ok := <-sub.C:
		require.True(t, ok, "channel closed before delivery")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case event, ok := <-sub.C:
		if ok {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublish_FanOutToAllSubscribers(t *testing.T) {
	b := New(nil)
	defer b.Close()

	first := b.Subscribe(TopicBookAdded)
	second := b.Subscribe(TopicBookAdded)
	defer first.Cancel()
	defer second.Cancel()

	b.Publish(TopicBookAdded, "payload")

	assert.Equal(t, "payload", receiveOne(t, first).Payload)
	assert.Equal(t, "payload", receiveOne(t, second).Payload)
}

func TestPublish_PreservesOrderPerSubscriber(t *testing.T) {
	b := New(nil)
	defer b.Close()

	sub := b.Subscribe(TopicBookAdded)
	defer sub.Cancel()

	for i := range 100 {
		b.Publish(TopicBookAdded, i)
	}

	for i := range 100 {
		assert.Equal(t, i, receiveOne(t, sub).Payload)
	}
}

func TestPublish_ZeroSubscribersIsNoOp(t *testing.T) {
	b := New(nil)
	defer b.Close()

	// Nothing to assert beyond "does not panic or block".
	b.Publish(TopicBookAdded, "dropped")

	// A subscriber joining after a publish never sees it: no replay.
	late := b.Subscribe(TopicBookAdded)
	defer late.Cancel()
	assertNoEvent(t, late)
}

func TestCancel_RemovesSubscriber(t *testing.T) {
	b := New(nil)
	defer b.Close()

	sub := b.Subscribe(TopicBookAdded)
	assert.Equal(t, 1, b.SubscriberCount(TopicBookAdded))

	sub.Cancel()
	assert.Equal(t, 0, b.SubscriberCount(TopicBookAdded))

	b.Publish(TopicBookAdded, "after cancel")
	assertNoEvent(t, sub)
}

func TestPublish_NeverBlocksOnSlowSubscriber(t *testing.T) {
	b := New(nil)
	defer b.Close()

	// Subscribe but never read: the backlog grows unbounded instead of
	// blocking the publisher.
	slow := b.Subscribe(TopicBookAdded)
	defer slow.Cancel()

	done := make(chan struct{})
	go func() {
		for i := range 1000 {
			b.Publish(TopicBookAdded, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
}

func TestSubscribe_TopicsAreIsolated(t *testing.T) {
	b := New(nil)
	defer b.Close()

	other := b.Subscribe(Topic("author-updated"))
	defer other.Cancel()

	b.Publish(TopicBookAdded, "book payload")
	assertNoEvent(t, other)
}

func TestClose_ShutsDownSubscribers(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe(TopicBookAdded)

	b.Close()

	// Channel closes after shutdown.
	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after bus shutdown")
	}

	// Publishing after close is a silent no-op.
	b.Publish(TopicBookAdded, "ignored")
}

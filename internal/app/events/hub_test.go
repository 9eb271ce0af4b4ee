package events

import (
	"context"
	"testing"
	"time"

	"github.com/askarbek-dev/kitchenline/internal/adapter/logger"
	"github.com/askarbek-dev/kitchenline/internal/interfaces"
)

func newTestHub() *Hub {
	return NewHub(logger.New("test", logger.LevelError))
}

func queueEvent(cafeID string, length int) interfaces.Event {
	return interfaces.Event{
		Type:        interfaces.EventQueueUpdated,
		CafeID:      cafeID,
		QueueLength: &length,
		Timestamp:   time.Now().UTC(),
	}
}

func TestPublishReachesEveryCafeSubscriber(t *testing.T) {
	hub := newTestHub()

	first, cancelFirst := hub.Subscribe("cafe-1")
	defer cancelFirst()
	second, cancelSecond := hub.Subscribe("cafe-1")
	defer cancelSecond()

	if err := hub.Publish(context.Background(), queueEvent("cafe-1", 3)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, stream := range []<-chan interfaces.Event{first, second} {
		select {
		case event := <-stream:
			if event.QueueLength == nil || *event.QueueLength != 3 {
				t.Errorf("queue length = %v, want 3", event.QueueLength)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestPublishIsScopedToCafe(t *testing.T) {
	hub := newTestHub()

	other, cancel := hub.Subscribe("cafe-2")
	defer cancel()

	if err := hub.Publish(context.Background(), queueEvent("cafe-1", 1)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case event := <-other:
		t.Fatalf("cafe-2 subscriber received %s for cafe-1", event.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLateSubscriberGetsNothingRetroactively(t *testing.T) {
	hub := newTestHub()

	if err := hub.Publish(context.Background(), queueEvent("cafe-1", 2)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	stream, cancel := hub.Subscribe("cafe-1")
	defer cancel()

	select {
	case event := <-stream:
		t.Fatalf("late subscriber received %s published before subscription", event.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelClosesChannelAndStopsDelivery(t *testing.T) {
	hub := newTestHub()

	stream, cancel := hub.Subscribe("cafe-1")
	cancel()
	// повторная отмена безопасна
	cancel()

	if _, open := <-stream; open {
		t.Fatal("channel still open after cancel")
	}

	if err := hub.Publish(context.Background(), queueEvent("cafe-1", 1)); err != nil {
		t.Fatalf("publish after cancel: %v", err)
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := newTestHub()

	_, cancel := hub.Subscribe("cafe-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			hub.Publish(context.Background(), queueEvent("cafe-1", i))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

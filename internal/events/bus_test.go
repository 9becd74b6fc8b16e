package events_test

import (
	"testing"

	"go.uber.org/goleak"

	"narrativ/internal/events"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublishRoutesByTopic(t *testing.T) {
	bus := events.NewBus(4)
	defer bus.Close()

	keys, cancelKeys := bus.Subscribe(events.TopicAPIKeysChanged)
	defer cancelKeys()
	all, cancelAll := bus.Subscribe()
	defer cancelAll()

	bus.Publish(events.Event{Topic: events.TopicNotice, Payload: events.Notice{Message: "hi"}})
	bus.Publish(events.Event{Topic: events.TopicAPIKeysChanged})

	select {
	case evt := <-keys:
		if evt.Topic != events.TopicAPIKeysChanged {
			t.Fatalf("unexpected topic %q", evt.Topic)
		}
	default:
		t.Fatal("expected api keys event")
	}
	select {
	case evt := <-keys:
		t.Fatalf("unexpected extra event %v", evt)
	default:
	}

	if got := len(all); got != 2 {
		t.Fatalf("expected wildcard subscriber to see 2 events, got %d", got)
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	bus := events.NewBus(1)
	defer bus.Close()
	_, cancel := bus.Subscribe(events.TopicProgressTick)
	defer cancel()

	for i := 0; i < 3; i++ {
		bus.Publish(events.Event{Topic: events.TopicProgressTick, Payload: events.Progress{Current: i}})
	}
	if got := bus.Dropped(); got != 2 {
		t.Fatalf("expected 2 dropped events, got %d", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := events.NewBus(1)
	ch, cancel := bus.Subscribe()
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	bus.Publish(events.Event{Topic: events.TopicNotice})
	bus.Close()

	late, _ := bus.Subscribe()
	if _, ok := <-late; ok {
		t.Fatal("expected subscription after close to be closed")
	}
}

func TestNilBusPublishIsNoop(t *testing.T) {
	var bus *events.Bus
	bus.Publish(events.Event{Topic: events.TopicNotice})
}

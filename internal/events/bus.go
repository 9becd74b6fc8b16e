// Package events provides the in-process observer bus that links the
// orchestrator, board cache, and provider checker to whatever renders state.
package events

import (
	"sync"
	"sync/atomic"
)

// Topic names an event stream.
type Topic string

const (
	TopicPhaseChanged     Topic = "phase.changed"
	TopicProgressTick     Topic = "progress.tick"
	TopicBoardsChanged    Topic = "boards.changed"
	TopicProvidersChanged Topic = "providers.changed"
	TopicAPIKeysChanged   Topic = "apikeys.changed"
	TopicWindowFocused    Topic = "window.focused"
	TopicNotice           Topic = "notice"
)

// Event is one published message.
type Event struct {
	Topic   Topic
	Payload any
}

// NoticeLevel grades user-facing notices.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// Notice is a human-readable message for the user.
type Notice struct {
	Level   NoticeLevel
	Kind    string
	Message string
}

// Progress reports the cosmetic generation cursor.
type Progress struct {
	Current  int
	Expected int
}

// BoardsChanged identifies which board collection changed.
type BoardsChanged struct {
	Collection string
	ID         string
}

const defaultBuffer = 32

type subscriber struct {
	ch     chan Event
	topics map[Topic]struct{}
}

// Bus fans published events out to subscribers. Publish never blocks; events
// for a subscriber with a full buffer are dropped and counted.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]*subscriber
	next    int
	closed  bool
	buffer  int
	dropped atomic.Uint64
}

// NewBus returns a bus whose subscriber channels hold buffer events.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus{subs: make(map[int]*subscriber), buffer: buffer}
}

// Subscribe registers interest in the given topics (all topics when none are
// given). The returned function unsubscribes and closes the channel.
func (b *Bus) Subscribe(topics ...Topic) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	sub := &subscriber{ch: ch}
	if len(topics) > 0 {
		sub.topics = make(map[Topic]struct{}, len(topics))
		for _, t := range topics {
			sub.topics[t] = struct{}{}
		}
	}
	id := b.next
	b.next++
	b.subs[id] = sub

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if s, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(s.ch)
			}
		})
	}
}

// Publish delivers the event to matching subscribers.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if sub.topics != nil {
			if _, ok := sub.topics[evt.Topic]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the number of events discarded for slow subscribers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

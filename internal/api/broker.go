package api

import (
	"fmt"
	"sync"

	"fleetwatch/internal/model"
)

// LiveEvent is one message on the live-update feed.
type LiveEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// EventBroker fans live events out to feed subscribers. Keys are
// entity-scoped ("officer:7", "vehicle:3"); the empty key is the firehose.
type EventBroker interface {
	Subscribe(key string) chan LiveEvent
	Unsubscribe(key string, ch chan LiveEvent)
	Publish(key string, evt LiveEvent)
}

// EntityKey builds the broker key for an entity.
func EntityKey(typ model.EntityType, id int64) string {
	switch typ {
	case model.EntityOfficer:
		return fmt.Sprintf("officer:%d", id)
	default:
		return fmt.Sprintf("vehicle:%d", id)
	}
}

// Broker is the in-process EventBroker.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan LiveEvent]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan LiveEvent]struct{}{}}
}

func (b *Broker) Subscribe(key string) chan LiveEvent {
	ch := make(chan LiveEvent, 8)
	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = map[chan LiveEvent]struct{}{}
	}
	b.subs[key][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(key string, ch chan LiveEvent) {
	b.mu.Lock()
	if m := b.subs[key]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, key)
		}
	}
	b.mu.Unlock()
	close(ch)
}

// Publish delivers to subscribers of the entity key and of the firehose.
// Slow subscribers are skipped rather than blocked on.
func (b *Broker) Publish(key string, evt LiveEvent) {
	b.mu.Lock()
	for _, k := range []string{key, ""} {
		for ch := range b.subs[k] {
			select {
			case ch <- evt:
			default:
			}
		}
	}
	b.mu.Unlock()
}

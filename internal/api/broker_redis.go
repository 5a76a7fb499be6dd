package api

import (
	"context"
	"encoding/json"
	"os"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so multiple API
// instances share one live feed.
type RedisBroker struct {
	rdb *redis.Client
}

func NewRedisBroker() (*RedisBroker, error) {
	opt, err := redis.ParseURL(os.Getenv("REDIS_URL"))
	if err != nil {
		return nil, err
	}
	return &RedisBroker{rdb: redis.NewClient(opt)}, nil
}

func (b *RedisBroker) chanName(key string) string {
	if key == "" {
		return "live:all"
	}
	return "live:" + key
}

func (b *RedisBroker) Subscribe(key string) chan LiveEvent {
	ch := make(chan LiveEvent, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(key))
	_, _ = ps.Receive(ctx) // confirm subscription before returning
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt LiveEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
				select {
				case ch <- evt:
				default:
				}
			}
		}
	}()
	return ch
}

func (b *RedisBroker) Unsubscribe(key string, ch chan LiveEvent) {
	// The reader goroutine owns the channel; it closes when the PubSub
	// connection drops. Nothing else to release here.
}

func (b *RedisBroker) Publish(key string, evt LiveEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, _ := json.Marshal(evt)
	_ = b.rdb.Publish(ctx, b.chanName(key), data).Err()
	if key != "" {
		_ = b.rdb.Publish(ctx, b.chanName(""), data).Err()
	}
}

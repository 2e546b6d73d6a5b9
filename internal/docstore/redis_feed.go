package docstore

import (
	"context"
	"log"
	"runtime/debug"

	"github.com/redis/go-redis/v9"
)

// RedisFeed is a ChangeFeed shared by every server instance through Redis pub/sub,
// so SQL-backed watchers see writes made by other processes.
type RedisFeed struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisFeed creates a feed publishing on "<prefix><collection>" channels.
func NewRedisFeed(rdb *redis.Client, prefix string) *RedisFeed {
	if prefix == "" {
		prefix = "docstore:changes:"
	}
	return &RedisFeed{rdb: rdb, prefix: prefix}
}

// Channel returns the pub/sub channel of a collection.
func (f *RedisFeed) Channel(collection string) string {
	return f.prefix + collection
}

// Publish announces a change to collection.
func (f *RedisFeed) Publish(ctx context.Context, collection string) error {
	return f.rdb.Publish(ctx, f.Channel(collection), "1").Err()
}

// Subscribe forwards every announcement for collection until ctx is done.
func (f *RedisFeed) Subscribe(ctx context.Context, collection string) (<-chan struct{}, error) {
	sub := f.rdb.Subscribe(ctx, f.Channel(collection))
	// Wait for the subscription confirmation so no publish is missed afterwards.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	msgs := sub.Channel()
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in RedisFeed subscriber: %v\n%s", r, debug.Stack())
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				signal(out)
			}
		}
	}()
	return out, nil
}

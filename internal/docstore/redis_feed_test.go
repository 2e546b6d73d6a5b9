package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisFeed_PublishReachesSubscriber(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	feed := NewRedisFeed(rdb, "")
	assert.Equal(t, "docstore:changes:posts", feed.Channel("posts"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals, err := feed.Subscribe(ctx, "posts")
	require.NoError(t, err)

	require.NoError(t, feed.Publish(ctx, "posts"))
	select {
	case _, ok := <-signals:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("no signal received")
	}

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-signals:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSQLStore_WatchThroughRedisFeed(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	writer := newSQLiteStore(t)
	writer.feed = NewRedisFeed(rdb, "test:")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	snaps, err := writer.Watch(ctx, Query{Collection: "users/u/notifications"})
	require.NoError(t, err)
	assert.Empty(t, nextSnapshot(t, snaps).Docs)

	require.NoError(t, writer.Set(ctx, "users/u/notifications/n1", map[string]any{"read": false}, false))
	assert.Eventually(t, func() bool {
		select {
		case s := <-snaps:
			return len(s.Docs) == 1
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

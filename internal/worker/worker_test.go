package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/broker"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/observability"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPersister struct {
	mu   sync.Mutex
	got  []models.Notification
	fail string
}

func (p *recordingPersister) Persist(_ context.Context, n *models.Notification) error {
	if n.OwnerID == p.fail {
		return errors.New("store unavailable")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, *n)
	return nil
}

func event(t *testing.T, n models.Notification) kafka.Message {
	t.Helper()
	data, err := json.Marshal(n)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(n.OwnerID), Value: data}
}

func TestWorker_PersistsUntilQueueCloses(t *testing.T) {
	queue := broker.NewMemoryQueue(8)
	ctx := context.Background()
	require.NoError(t, queue.WriteMessages(ctx,
		event(t, models.Notification{OwnerID: "u1", ActorID: "u2", Type: models.NotificationLike}),
		kafka.Message{Value: []byte("not json")},
		kafka.Message{},
		event(t, models.Notification{OwnerID: "broken", ActorID: "u2", Type: models.NotificationLike}),
		event(t, models.Notification{OwnerID: "u3", ActorID: "u2", Type: models.NotificationFollow}),
	))
	require.NoError(t, queue.Close())

	p := &recordingPersister{fail: "broken"}
	w := New(queue, p, 2, 4, observability.Discard())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after the queue closed")
	}

	owners := make([]string, 0, len(p.got))
	for _, n := range p.got {
		owners = append(owners, n.OwnerID)
	}
	assert.ElementsMatch(t, []string{"u1", "u3"}, owners)
}

func TestWorker_StopsOnCancel(t *testing.T) {
	queue := broker.NewMemoryQueue(1)
	w := New(queue, &recordingPersister{}, 1, 1, observability.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
	assert.NoError(t, w.Close())
}

func TestWaitWithContext(t *testing.T) {
	assert.True(t, waitWithContext(context.Background(), time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, waitWithContext(ctx, time.Hour))
}

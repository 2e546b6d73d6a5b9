// Package worker persists notification events published by the API.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/broker"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/observability"
)

// Persister stores one notification.
type Persister interface {
	Persist(ctx context.Context, n *models.Notification) error
}

// Worker reads notification events and writes them with a pool of goroutines.
type Worker struct {
	reader       broker.KafkaReader
	persister    Persister
	workerCount  int
	jobQueueSize int
	logger       *slog.Logger
}

// New creates a Worker. Non-positive sizes fall back to defaults.
func New(reader broker.KafkaReader, persister Persister, workerCount, jobQueueSize int, logger *slog.Logger) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	return &Worker{
		reader:       reader,
		persister:    persister,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
		logger:       logger.With("component", "worker"),
	}
}

// Run blocks until ctx is done or the reader is exhausted, then waits for
// queued events to be written.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("starting workers", "workers", w.workerCount, "queue", w.jobQueueSize)

	jobs := make(chan []byte, w.jobQueueSize)
	var wg sync.WaitGroup
	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processLoop(ctx, jobs)
		}()
	}

	w.readLoop(ctx, jobs)
	close(jobs)
	wg.Wait()
	w.logger.Info("all workers stopped")
}

func (w *Worker) readLoop(ctx context.Context, jobs chan<- []byte) {
	var retry int
	for {
		msg, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			backoff := time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
			w.logger.Error("read failed, backing off", "backoff", backoff, "error", err)
			if !waitWithContext(ctx, backoff) {
				return
			}
			retry++
			continue
		}
		retry = 0
		if len(msg.Value) == 0 {
			continue
		}
		select {
		case jobs <- msg.Value:
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) processLoop(ctx context.Context, jobs <-chan []byte) {
	for data := range jobs {
		var n models.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			w.logger.Error("invalid notification event", "error", err)
			continue
		}
		// Queued events are written even while shutting down.
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		err := w.persister.Persist(wctx, &n)
		cancel()
		if err != nil {
			observability.NotificationsDispatched.WithLabelValues("failed").Inc()
			w.logger.Warn("notification write failed", "owner_id", n.OwnerID, "type", n.Type, "error", err)
			continue
		}
		observability.NotificationsDispatched.WithLabelValues("written").Inc()
	}
}

// waitWithContext waits for d and reports false if ctx ended first.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close closes the reader.
func (w *Worker) Close() error {
	w.logger.Info("closing reader")
	return w.reader.Close()
}

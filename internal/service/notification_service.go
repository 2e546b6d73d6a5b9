package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/broker"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/observability"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/repositories"
	"github.com/segmentio/kafka-go"
)

// Dispatcher delivers notifications at most once without blocking the caller.
// There is no failure path: a notification that cannot be delivered is dropped
// and logged.
type Dispatcher interface {
	Dispatch(ctx context.Context, n models.Notification)
}

// notify fills in defaults and hands n to d. Users are never notified of
// their own actions.
func notify(ctx context.Context, d Dispatcher, n models.Notification) {
	if d == nil || n.OwnerID == "" || n.OwnerID == n.ActorID {
		return
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = models.Now()
	}
	d.Dispatch(ctx, n)
}

// AsyncDispatcher queues notifications in memory and writes them from a
// background goroutine. Notifications are dropped when the queue is full.
type AsyncDispatcher struct {
	repo   repositories.NotificationRepository
	logger *slog.Logger

	mu     sync.RWMutex
	queue  chan models.Notification
	closed bool
	done   chan struct{}
}

func NewAsyncDispatcher(repo repositories.NotificationRepository, queueSize int, logger *slog.Logger) *AsyncDispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &AsyncDispatcher{
		repo:   repo,
		logger: logger.With("component", "notifications"),
		queue:  make(chan models.Notification, queueSize),
		done:   make(chan struct{}),
	}
}

// Start runs the writer until Close is called.
func (d *AsyncDispatcher) Start() {
	go func() {
		defer close(d.done)
		for n := range d.queue {
			d.write(n)
		}
	}()
}

func (d *AsyncDispatcher) write(n models.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.repo.CreateNotification(ctx, &n); err != nil {
		observability.NotificationsDispatched.WithLabelValues("failed").Inc()
		d.logger.Warn("notification write failed", "owner_id", n.OwnerID, "type", n.Type, "error", err)
		return
	}
	observability.NotificationsDispatched.WithLabelValues("written").Inc()
}

func (d *AsyncDispatcher) Dispatch(_ context.Context, n models.Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- n:
		observability.NotificationsDispatched.WithLabelValues("queued").Inc()
	default:
		observability.NotificationsDispatched.WithLabelValues("dropped").Inc()
		d.logger.Warn("notification queue full, dropping", "owner_id", n.OwnerID, "type", n.Type)
	}
}

// Close stops accepting notifications and waits for the queue to drain.
func (d *AsyncDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	<-d.done
}

// KafkaDispatcher publishes notification events for cmd/worker to persist.
type KafkaDispatcher struct {
	writer broker.KafkaWriter
	logger *slog.Logger
}

func NewKafkaDispatcher(writer broker.KafkaWriter, logger *slog.Logger) *KafkaDispatcher {
	return &KafkaDispatcher{writer: writer, logger: logger.With("component", "notifications")}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, n models.Notification) {
	value, err := json.Marshal(n)
	if err != nil {
		d.logger.Error("notification encode failed", "error", err)
		return
	}
	msg := kafka.Message{Key: []byte(n.OwnerID), Value: value}
	if err := d.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		observability.NotificationsDispatched.WithLabelValues("failed").Inc()
		d.logger.Warn("notification publish failed", "owner_id", n.OwnerID, "error", err)
		return
	}
	observability.NotificationsDispatched.WithLabelValues("queued").Inc()
}

// NotificationService reads and manages a user's notifications
type NotificationService struct {
	repo   repositories.NotificationRepository
	logger *slog.Logger
}

func NewNotificationService(repo repositories.NotificationRepository, logger *slog.Logger) *NotificationService {
	return &NotificationService{repo: repo, logger: logger.With("component", "notifications")}
}

// Persist stores a notification received from the event stream.
func (s *NotificationService) Persist(ctx context.Context, n *models.Notification) error {
	if n.OwnerID == "" || n.OwnerID == n.ActorID {
		return nil
	}
	return s.repo.CreateNotification(ctx, n)
}

func (s *NotificationService) List(ctx context.Context, sess *identity.Session, page repositories.Page) ([]models.Notification, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	list, err := s.repo.GetByOwner(ctx, sess.UserID, page)
	return list, storeError(err, "notifications", sess.UserID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, sess *identity.Session) (int, error) {
	if err := requireSession(sess); err != nil {
		return 0, err
	}
	unread, err := s.repo.GetUnread(ctx, sess.UserID)
	if err != nil {
		return 0, storeError(err, "notifications", sess.UserID)
	}
	return len(unread), nil
}

func (s *NotificationService) MarkRead(ctx context.Context, sess *identity.Session, id string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	return storeError(s.repo.MarkAsRead(ctx, sess.UserID, id), "notification", id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, sess *identity.Session) (int, error) {
	if err := requireSession(sess); err != nil {
		return 0, err
	}
	unread, err := s.repo.GetUnread(ctx, sess.UserID)
	if err != nil {
		return 0, storeError(err, "notifications", sess.UserID)
	}
	marked := 0
	for _, n := range unread {
		if err := s.repo.MarkAsRead(ctx, sess.UserID, n.ID); err != nil {
			s.logger.Warn("mark read failed", "user_id", sess.UserID, "notification_id", n.ID, "error", err)
			continue
		}
		marked++
	}
	return marked, nil
}

func (s *NotificationService) Delete(ctx context.Context, sess *identity.Session, id string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	return storeError(s.repo.DeleteNotification(ctx, sess.UserID, id), "notification", id)
}

// Watch streams the unread notifications of the session user after every change.
func (s *NotificationService) Watch(ctx context.Context, sess *identity.Session) (<-chan []models.Notification, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	snaps, err := s.repo.WatchUnread(ctx, sess.UserID)
	if err != nil {
		return nil, storeError(err, "notifications", sess.UserID)
	}
	out := make(chan []models.Notification, 1)
	go func() {
		defer close(out)
		for snap := range snaps {
			if snap.Err != nil {
				s.logger.Warn("notification stream error", "user_id", sess.UserID, "error", snap.Err)
				continue
			}
			list, err := repositories.NotificationsFromDocs(snap.Docs)
			if err != nil {
				s.logger.Warn("notification decode failed", "user_id", sess.UserID, "error", err)
				continue
			}
			if !sendLatest(ctx, out, list) {
				return
			}
		}
	}()
	return out, nil
}

// sendLatest delivers v, replacing a value the receiver has not taken yet.
// It reports false once ctx is done.
func sendLatest[T any](ctx context.Context, out chan T, v T) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case out <- v:
			return true
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}

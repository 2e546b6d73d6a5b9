package repositories

import (
	"context"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/docstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
)

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetByOwner(ctx context.Context, ownerID string, page Page) ([]models.Notification, error)
	GetUnread(ctx context.Context, ownerID string) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, ownerID, id string) error
	DeleteNotification(ctx context.Context, ownerID, id string) error
	WatchUnread(ctx context.Context, ownerID string) (<-chan docstore.Snapshot, error)
}

type docNotificationRepository struct {
	store docstore.Store
}

func NewDocNotificationRepository(store docstore.Store) NotificationRepository {
	return &docNotificationRepository{store: store}
}

func (r *docNotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	data, err := docstore.Encode(n)
	if err != nil {
		return err
	}
	delete(data, "id")
	id, err := r.store.Add(ctx, NotificationsCollection(n.OwnerID), data)
	if err != nil {
		return err
	}
	n.ID = id
	return nil
}

func (r *docNotificationRepository) GetByOwner(ctx context.Context, ownerID string, page Page) ([]models.Notification, error) {
	docs, err := r.store.Query(ctx, page.apply(docstore.Query{Collection: NotificationsCollection(ownerID)}))
	if err != nil {
		return nil, err
	}
	return NotificationsFromDocs(docs)
}

func unreadQuery(ownerID string) docstore.Query {
	q := docstore.Query{Collection: NotificationsCollection(ownerID), OrderBy: "created_at", Desc: true}
	return q.Where("read", docstore.OpEqual, false)
}

func (r *docNotificationRepository) GetUnread(ctx context.Context, ownerID string) ([]models.Notification, error) {
	docs, err := r.store.Query(ctx, unreadQuery(ownerID))
	if err != nil {
		return nil, err
	}
	return NotificationsFromDocs(docs)
}

func (r *docNotificationRepository) MarkAsRead(ctx context.Context, ownerID, id string) error {
	return r.store.Update(ctx, docstore.Path(NotificationsCollection(ownerID), id), map[string]any{"read": true})
}

func (r *docNotificationRepository) DeleteNotification(ctx context.Context, ownerID, id string) error {
	return r.store.Delete(ctx, docstore.Path(NotificationsCollection(ownerID), id))
}

func (r *docNotificationRepository) WatchUnread(ctx context.Context, ownerID string) (<-chan docstore.Snapshot, error) {
	return r.store.Watch(ctx, unreadQuery(ownerID))
}

// NotificationsFromDocs decodes notification documents.
func NotificationsFromDocs(docs []*docstore.Document) ([]models.Notification, error) {
	return decodeAll(docs, func(n *models.Notification, id string) { n.ID = id })
}

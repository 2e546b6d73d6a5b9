package repositories

import (
	"context"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/docstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/google/uuid"
)

// MessageRepository stores one copy of each message per participant mailbox
type MessageRepository interface {
	NewMessageID() string
	PutMessage(ctx context.Context, mailbox string, msg *models.Message) error
	GetMessage(ctx context.Context, mailbox, id string) (*models.Message, error)
	GetConversation(ctx context.Context, mailbox, peer string) ([]models.Message, error)
	GetInbox(ctx context.Context, mailbox string, page Page) ([]models.Message, error)
	DeleteMessage(ctx context.Context, mailbox, id string) error
}

type docMessageRepository struct {
	store docstore.Store
}

func NewDocMessageRepository(store docstore.Store) MessageRepository {
	return &docMessageRepository{store: store}
}

func (r *docMessageRepository) NewMessageID() string { return uuid.NewString() }

func (r *docMessageRepository) PutMessage(ctx context.Context, mailbox string, msg *models.Message) error {
	data, err := docstore.Encode(msg)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, docstore.Path(MessagesCollection(mailbox), msg.ID), data, false)
}

func (r *docMessageRepository) GetMessage(ctx context.Context, mailbox, id string) (*models.Message, error) {
	doc, err := r.store.Get(ctx, docstore.Path(MessagesCollection(mailbox), id))
	if err != nil {
		return nil, err
	}
	var m models.Message
	if err := doc.DataTo(&m); err != nil {
		return nil, err
	}
	m.ID = doc.ID
	return &m, nil
}

// GetConversation returns the mailbox copies exchanged with peer, oldest first.
// It merges the sent and received halves of the conversation.
func (r *docMessageRepository) GetConversation(ctx context.Context, mailbox, peer string) ([]models.Message, error) {
	base := docstore.Query{Collection: MessagesCollection(mailbox), OrderBy: "created_at"}
	sent, err := r.store.Query(ctx, base.Where("receiver_id", docstore.OpEqual, peer))
	if err != nil {
		return nil, err
	}
	received, err := r.store.Query(ctx, base.Where("sender_id", docstore.OpEqual, peer))
	if err != nil {
		return nil, err
	}
	a, err := decodeAll(sent, func(m *models.Message, id string) { m.ID = id })
	if err != nil {
		return nil, err
	}
	b, err := decodeAll(received, func(m *models.Message, id string) { m.ID = id })
	if err != nil {
		return nil, err
	}

	out := make([]models.Message, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		if j >= len(b) || (i < len(a) && !a[i].CreatedAt.After(b[j].CreatedAt.Time)) {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	return out, nil
}

func (r *docMessageRepository) GetInbox(ctx context.Context, mailbox string, page Page) ([]models.Message, error) {
	docs, err := r.store.Query(ctx, page.apply(docstore.Query{Collection: MessagesCollection(mailbox)}))
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, func(m *models.Message, id string) { m.ID = id })
}

func (r *docMessageRepository) DeleteMessage(ctx context.Context, mailbox, id string) error {
	return r.store.Delete(ctx, docstore.Path(MessagesCollection(mailbox), id))
}

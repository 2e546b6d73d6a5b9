package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/observability"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/repositories"
)

const maxMessageLength = 2000

// SendResult reports which mailbox copies of a message were written.
type SendResult struct {
	Message *models.Message `json:"message"`
	// Delivered is false when only the sender copy exists.
	Delivered bool `json:"delivered"`
}

// MessageService writes one copy of every direct message into each
// participant's mailbox.
type MessageService struct {
	messages repositories.MessageRepository
	users    repositories.UserRepository
	logger   *slog.Logger
}

func NewMessageService(messages repositories.MessageRepository, users repositories.UserRepository, logger *slog.Logger) *MessageService {
	return &MessageService{messages: messages, users: users, logger: logger.With("component", "messages")}
}

// Send writes the sender copy and then the receiver copy under the same id.
// A failed receiver write is logged and reported through Delivered; the sender
// copy is kept and nothing reconciles the two mailboxes later.
func (s *MessageService) Send(ctx context.Context, sess *identity.Session, receiver, content string) (*SendResult, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewValidationError("Message cannot be empty")
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, models.NewValidationError("Message is too long")
	}
	if receiver == "" || receiver == sess.UserID {
		return nil, models.NewValidationError("Choose someone else to message")
	}
	if _, err := s.users.GetUser(ctx, receiver); err != nil {
		return nil, storeError(err, "user", receiver)
	}

	msg := &models.Message{
		ID:         s.messages.NewMessageID(),
		SenderID:   sess.UserID,
		ReceiverID: receiver,
		Content:    content,
		CreatedAt:  models.Now(),
	}
	if err := s.messages.PutMessage(ctx, sess.UserID, msg); err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.messages.PutMessage(ctx, receiver, msg); err != nil {
		observability.BestEffortFailures.WithLabelValues("message_receiver_copy").Inc()
		s.logger.Error("receiver copy not written, mailboxes diverge",
			"message_id", msg.ID, "sender_id", sess.UserID, "receiver_id", receiver, "error", err)
		return &SendResult{Message: msg, Delivered: false}, nil
	}
	return &SendResult{Message: msg, Delivered: true}, nil
}

// Conversation returns the session user's copies of messages exchanged with peer, oldest first.
func (s *MessageService) Conversation(ctx context.Context, sess *identity.Session, peer string) ([]models.Message, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if peer == "" {
		return nil, models.NewValidationError("Conversation peer is required")
	}
	list, err := s.messages.GetConversation(ctx, sess.UserID, peer)
	return list, storeError(err, "conversation", peer)
}

// Inbox lists the session user's mailbox, newest first.
func (s *MessageService) Inbox(ctx context.Context, sess *identity.Session, page repositories.Page) ([]models.Message, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	list, err := s.messages.GetInbox(ctx, sess.UserID, page)
	return list, storeError(err, "mailbox", sess.UserID)
}

// DeleteCopy removes a message from the session user's mailbox only.
func (s *MessageService) DeleteCopy(ctx context.Context, sess *identity.Session, id string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if _, err := s.messages.GetMessage(ctx, sess.UserID, id); err != nil {
		return storeError(err, "message", id)
	}
	return storeError(s.messages.DeleteMessage(ctx, sess.UserID, id), "message", id)
}

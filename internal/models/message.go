package models

// Message is one mailbox copy, stored at users/{mailbox}/messages/{id}.
// Both copies of a sent message share the same id.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  Timestamp `json:"created_at"`
}

// Peer returns the other participant from mailbox owner uid's point of view.
func (m *Message) Peer(uid string) string {
	if m.SenderID == uid {
		return m.ReceiverID
	}
	return m.SenderID
}

// SendMessageRequest defines the request body for sending a direct message
type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
	Content    string `json:"content" validate:"required,max=2000"`
}

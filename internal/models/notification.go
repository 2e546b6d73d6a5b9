package models

// Notification types
const (
	NotificationLike    = "like"
	NotificationComment = "comment"
	NotificationFollow  = "follow"
)

// Notification is stored at users/{owner}/notifications/{id}.
type Notification struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	ActorID     string    `json:"actor_id"`
	ActorName   string    `json:"actor_name"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	PostID      string    `json:"post_id,omitempty"`
	PostOwnerID string    `json:"post_owner_id,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   Timestamp `json:"created_at"`
}

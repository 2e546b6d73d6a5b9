package models

// Comment is stored at users/{owner}/posts/{post}/comments/{id}.
// AuthorName is a snapshot taken at write time and is never refreshed.
type Comment struct {
	ID          string    `json:"id"`
	PostID      string    `json:"post_id"`
	PostOwnerID string    `json:"post_owner_id"`
	AuthorID    string    `json:"author_id"`
	AuthorName  string    `json:"author_name"`
	Content     string    `json:"content"`
	CreatedAt   Timestamp `json:"created_at"`
	UpdatedAt   Timestamp `json:"updated_at"`
}

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,max=1000"`
}

// UpdateCommentRequest defines the request body for updating an existing comment
type UpdateCommentRequest struct {
	Content string `json:"content" validate:"required,max=1000"`
}

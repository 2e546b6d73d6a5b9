package repositories

import (
	"context"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/docstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, ref models.PostRef, commentID string) (*models.Comment, error)
	GetCommentsByPost(ctx context.Context, ref models.PostRef) ([]models.Comment, error)
	CountComments(ctx context.Context, ref models.PostRef) (int, error)
	UpdateComment(ctx context.Context, ref models.PostRef, commentID string, fields map[string]any) error
	DeleteComment(ctx context.Context, ref models.PostRef, commentID string) error
	DeleteAllComments(ctx context.Context, ref models.PostRef) error
}

// DocCommentRepository implements CommentRepository on the document store
type DocCommentRepository struct {
	store docstore.Store
}

// NewDocCommentRepository creates a new DocCommentRepository
func NewDocCommentRepository(store docstore.Store) *DocCommentRepository {
	return &DocCommentRepository{store: store}
}

func commentRef(c *models.Comment) models.PostRef {
	return models.PostRef{OwnerID: c.PostOwnerID, PostID: c.PostID}
}

// CreateComment adds a comment under its post and sets its generated id
func (r *DocCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	data, err := docstore.Encode(comment)
	if err != nil {
		return err
	}
	delete(data, "id")
	id, err := r.store.Add(ctx, CommentsCollection(commentRef(comment)), data)
	if err != nil {
		return err
	}
	comment.ID = id
	return nil
}

func (r *DocCommentRepository) GetComment(ctx context.Context, ref models.PostRef, commentID string) (*models.Comment, error) {
	doc, err := r.store.Get(ctx, docstore.Path(CommentsCollection(ref), commentID))
	if err != nil {
		return nil, err
	}
	var c models.Comment
	if err := doc.DataTo(&c); err != nil {
		return nil, err
	}
	c.ID = doc.ID
	return &c, nil
}

// GetCommentsByPost returns the comments of a post, oldest first
func (r *DocCommentRepository) GetCommentsByPost(ctx context.Context, ref models.PostRef) ([]models.Comment, error) {
	docs, err := r.store.Query(ctx, docstore.Query{Collection: CommentsCollection(ref), OrderBy: "created_at"})
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, func(c *models.Comment, id string) { c.ID = id })
}

func (r *DocCommentRepository) CountComments(ctx context.Context, ref models.PostRef) (int, error) {
	return docstore.Count(ctx, r.store, docstore.Query{Collection: CommentsCollection(ref)})
}

func (r *DocCommentRepository) UpdateComment(ctx context.Context, ref models.PostRef, commentID string, fields map[string]any) error {
	return r.store.Update(ctx, docstore.Path(CommentsCollection(ref), commentID), fields)
}

func (r *DocCommentRepository) DeleteComment(ctx context.Context, ref models.PostRef, commentID string) error {
	return r.store.Delete(ctx, docstore.Path(CommentsCollection(ref), commentID))
}

func (r *DocCommentRepository) DeleteAllComments(ctx context.Context, ref models.PostRef) error {
	return docstore.DeleteCollection(ctx, r.store, CommentsCollection(ref))
}

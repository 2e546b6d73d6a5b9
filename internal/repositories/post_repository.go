package repositories

import (
	"context"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/docstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/google/uuid"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	NewPostID() string
	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, ref models.PostRef) (*models.Post, error)
	GetPostsByOwner(ctx context.Context, ownerID string, page Page) ([]models.Post, error)
	UpdatePost(ctx context.Context, ref models.PostRef, fields map[string]any) error
	DeletePost(ctx context.Context, ref models.PostRef) error
}

// DocPostRepository implements PostRepository on the document store
type DocPostRepository struct {
	store docstore.Store
}

// NewDocPostRepository creates a new DocPostRepository
func NewDocPostRepository(store docstore.Store) *DocPostRepository {
	return &DocPostRepository{store: store}
}

// NewPostID generates an id before the post is written, so that uploads can be
// namespaced under it.
func (r *DocPostRepository) NewPostID() string {
	return uuid.NewString()
}

// CreatePost writes a new post document at its owner's collection
func (r *DocPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	if post.ImageURLs == nil {
		post.ImageURLs = []string{}
	}
	data, err := docstore.Encode(post)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, PostPath(post.Ref()), data, false)
}

// GetPost retrieves a post by owner and id
func (r *DocPostRepository) GetPost(ctx context.Context, ref models.PostRef) (*models.Post, error) {
	doc, err := r.store.Get(ctx, PostPath(ref))
	if err != nil {
		return nil, err
	}
	var post models.Post
	if err := doc.DataTo(&post); err != nil {
		return nil, err
	}
	post.ID = doc.ID
	post.OwnerID = ref.OwnerID
	return &post, nil
}

// GetPostsByOwner retrieves an owner's posts, newest first
func (r *DocPostRepository) GetPostsByOwner(ctx context.Context, ownerID string, page Page) ([]models.Post, error) {
	docs, err := r.store.Query(ctx, page.apply(docstore.Query{Collection: PostsCollection(ownerID)}))
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, func(p *models.Post, id string) {
		p.ID = id
		p.OwnerID = ownerID
	})
}

// UpdatePost merges fields into an existing post
func (r *DocPostRepository) UpdatePost(ctx context.Context, ref models.PostRef, fields map[string]any) error {
	return r.store.Update(ctx, PostPath(ref), fields)
}

// DeletePost deletes the post document only; subcollections are the caller's concern
func (r *DocPostRepository) DeletePost(ctx context.Context, ref models.PostRef) error {
	return r.store.Delete(ctx, PostPath(ref))
}

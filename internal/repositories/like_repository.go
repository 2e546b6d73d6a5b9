package repositories

import (
	"context"
	"errors"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/docstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
)

// LikeRepository defines the interface for like data operations
type LikeRepository interface {
	CreateLike(ctx context.Context, ref models.PostRef, like *models.Like) error
	DeleteLike(ctx context.Context, ref models.PostRef, userID string) error
	// ToggleLike flips userID's membership in the like set inside one transaction
	// and reports whether the like exists afterwards.
	ToggleLike(ctx context.Context, ref models.PostRef, like *models.Like) (bool, error)
	HasUserLikedPost(ctx context.Context, ref models.PostRef, userID string) (bool, error)
	GetLikesByPost(ctx context.Context, ref models.PostRef) ([]models.Like, error)
	WatchLikes(ctx context.Context, ref models.PostRef) (<-chan docstore.Snapshot, error)
	DeleteAllLikes(ctx context.Context, ref models.PostRef) error
}

// DocLikeRepository implements LikeRepository on the document store.
// A like is a document keyed by the liker's uid, so a user likes a post at most once.
type DocLikeRepository struct {
	store docstore.Store
}

// NewDocLikeRepository creates a new DocLikeRepository
func NewDocLikeRepository(store docstore.Store) *DocLikeRepository {
	return &DocLikeRepository{store: store}
}

func (r *DocLikeRepository) CreateLike(ctx context.Context, ref models.PostRef, like *models.Like) error {
	data, err := docstore.Encode(like)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, LikePath(ref, like.UserID), data, false)
}

func (r *DocLikeRepository) DeleteLike(ctx context.Context, ref models.PostRef, userID string) error {
	return r.store.Delete(ctx, LikePath(ref, userID))
}

func (r *DocLikeRepository) ToggleLike(ctx context.Context, ref models.PostRef, like *models.Like) (bool, error) {
	data, err := docstore.Encode(like)
	if err != nil {
		return false, err
	}
	path := LikePath(ref, like.UserID)
	var liked bool
	err = r.store.RunTransaction(ctx, func(_ context.Context, tx docstore.Tx) error {
		_, err := tx.Get(path)
		switch {
		case err == nil:
			liked = false
			return tx.Delete(path)
		case errors.Is(err, docstore.ErrNotFound):
			liked = true
			return tx.Set(path, data)
		default:
			return err
		}
	})
	return liked, err
}

func (r *DocLikeRepository) HasUserLikedPost(ctx context.Context, ref models.PostRef, userID string) (bool, error) {
	_, err := r.store.Get(ctx, LikePath(ref, userID))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (r *DocLikeRepository) GetLikesByPost(ctx context.Context, ref models.PostRef) ([]models.Like, error) {
	docs, err := r.store.Query(ctx, docstore.Query{Collection: LikesCollection(ref)})
	if err != nil {
		return nil, err
	}
	return LikesFromDocs(docs)
}

// WatchLikes streams the full like set of a post on every change.
func (r *DocLikeRepository) WatchLikes(ctx context.Context, ref models.PostRef) (<-chan docstore.Snapshot, error) {
	return r.store.Watch(ctx, docstore.Query{Collection: LikesCollection(ref)})
}

func (r *DocLikeRepository) DeleteAllLikes(ctx context.Context, ref models.PostRef) error {
	return docstore.DeleteCollection(ctx, r.store, LikesCollection(ref))
}

// LikesFromDocs decodes like documents; the document id is the liker.
func LikesFromDocs(docs []*docstore.Document) ([]models.Like, error) {
	return decodeAll(docs, func(l *models.Like, id string) { l.UserID = id })
}

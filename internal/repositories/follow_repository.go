package repositories

import (
	"context"
	"errors"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/docstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
)

// FollowRepository defines the interface for follow edge operations
type FollowRepository interface {
	CreateFollow(ctx context.Context, follow *models.Follow) error
	DeleteFollow(ctx context.Context, followerID, followeeID string) error
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	GetFollowing(ctx context.Context, uid string) ([]models.Follow, error)
	GetFollowers(ctx context.Context, uid string) ([]models.Follow, error)
	GetFollowingCount(ctx context.Context, uid string) (int, error)
	GetFollowersCount(ctx context.Context, uid string) (int, error)
}

// DocFollowRepository implements FollowRepository on the document store.
// The edge lives under the follower and is mirrored under the followee.
type DocFollowRepository struct {
	store docstore.Store
}

// NewDocFollowRepository creates a new DocFollowRepository
func NewDocFollowRepository(store docstore.Store) *DocFollowRepository {
	return &DocFollowRepository{store: store}
}

// CreateFollow writes the edge and its mirror in one batch
func (r *DocFollowRepository) CreateFollow(ctx context.Context, follow *models.Follow) error {
	data, err := docstore.Encode(follow)
	if err != nil {
		return err
	}
	return docstore.Commit(ctx, r.store,
		docstore.SetWrite(docstore.Path(FollowingCollection(follow.FollowerID), follow.FolloweeID), data),
		docstore.SetWrite(docstore.Path(FollowersCollection(follow.FolloweeID), follow.FollowerID), data),
	)
}

// DeleteFollow removes the edge and its mirror in one batch
func (r *DocFollowRepository) DeleteFollow(ctx context.Context, followerID, followeeID string) error {
	return docstore.Commit(ctx, r.store,
		docstore.DeleteWrite(docstore.Path(FollowingCollection(followerID), followeeID)),
		docstore.DeleteWrite(docstore.Path(FollowersCollection(followeeID), followerID)),
	)
}

func (r *DocFollowRepository) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	_, err := r.store.Get(ctx, docstore.Path(FollowingCollection(followerID), followeeID))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// GetFollowing lists the edges uid follows; FolloweeID is the document id
func (r *DocFollowRepository) GetFollowing(ctx context.Context, uid string) ([]models.Follow, error) {
	docs, err := r.store.Query(ctx, docstore.Query{Collection: FollowingCollection(uid)})
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, func(f *models.Follow, id string) {
		f.FollowerID = uid
		f.FolloweeID = id
	})
}

// GetFollowers lists the users following uid
func (r *DocFollowRepository) GetFollowers(ctx context.Context, uid string) ([]models.Follow, error) {
	docs, err := r.store.Query(ctx, docstore.Query{Collection: FollowersCollection(uid)})
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, func(f *models.Follow, id string) {
		f.FollowerID = id
		f.FolloweeID = uid
	})
}

func (r *DocFollowRepository) GetFollowingCount(ctx context.Context, uid string) (int, error) {
	return docstore.Count(ctx, r.store, docstore.Query{Collection: FollowingCollection(uid)})
}

func (r *DocFollowRepository) GetFollowersCount(ctx context.Context, uid string) (int, error) {
	return docstore.Count(ctx, r.store, docstore.Query{Collection: FollowersCollection(uid)})
}

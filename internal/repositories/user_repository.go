package repositories

import (
	"context"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/docstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
)

// UserRepository defines the interface for profile document operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, uid string) (*models.User, error)
	UpdateUser(ctx context.Context, uid string, fields map[string]any) error
	SearchUsers(ctx context.Context, prefix string, limit int) ([]models.User, error)
}

// DocUserRepository implements UserRepository on the document store
type DocUserRepository struct {
	store docstore.Store
}

// NewDocUserRepository creates a new DocUserRepository
func NewDocUserRepository(store docstore.Store) *DocUserRepository {
	return &DocUserRepository{store: store}
}

// CreateUser writes the profile document, replacing any previous one
func (r *DocUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	data, err := docstore.Encode(user)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, UserPath(user.UID), data, false)
}

// GetUser retrieves a profile by uid
func (r *DocUserRepository) GetUser(ctx context.Context, uid string) (*models.User, error) {
	doc, err := r.store.Get(ctx, UserPath(uid))
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, err
	}
	user.UID = doc.ID
	return &user, nil
}

// UpdateUser merges fields into an existing profile
func (r *DocUserRepository) UpdateUser(ctx context.Context, uid string, fields map[string]any) error {
	return r.store.Update(ctx, UserPath(uid), fields)
}

// SearchUsers returns profiles whose lower-cased display name starts with prefix
func (r *DocUserRepository) SearchUsers(ctx context.Context, prefix string, limit int) ([]models.User, error) {
	prefix = models.NormalizeName(prefix)
	q := docstore.Query{Collection: "users", OrderBy: "display_name_lower", Limit: limit}
	if prefix != "" {
		q = q.Where("display_name_lower", docstore.OpGreaterEqual, prefix).
			Where("display_name_lower", docstore.OpLess, prefix+"\uf8ff")
	}
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, func(u *models.User, id string) { u.UID = id })
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/objectstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/observability"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/repositories"
)

// ProfileSyncer mirrors profile changes into the identity provider.
type ProfileSyncer interface {
	SyncProfile(ctx context.Context, sess *identity.Session, displayName, photoURL string) error
}

// Profile is a user profile with follow counters.
type Profile struct {
	models.User
	FollowingCount int  `json:"following_count"`
	FollowersCount int  `json:"followers_count"`
	IsFollowing    bool `json:"is_following"`
	Missing        bool `json:"missing,omitempty"`
}

// ProfileService manages profile documents
type ProfileService struct {
	users   repositories.UserRepository
	follows repositories.FollowRepository
	objects objectstore.Store
	syncer  ProfileSyncer
	logger  *slog.Logger
}

func NewProfileService(users repositories.UserRepository, follows repositories.FollowRepository,
	objects objectstore.Store, logger *slog.Logger) *ProfileService {
	return &ProfileService{users: users, follows: follows, objects: objects, logger: logger.With("component", "profiles")}
}

// SetSyncer installs the identity provider mirror. It is set after
// construction because the identity service itself depends on profiles.
func (s *ProfileService) SetSyncer(syncer ProfileSyncer) { s.syncer = syncer }

// EnsureProfile returns the stored profile of u.UID, creating it from u on first sign-in.
func (s *ProfileService) EnsureProfile(ctx context.Context, u *models.User) (*models.User, error) {
	existing, err := s.users.GetUser(ctx, u.UID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, models.NewInternalError(err)
	}

	if strings.TrimSpace(u.DisplayName) == "" {
		u.DisplayName = defaultDisplayName(u.Email)
	}
	u.DisplayNameLower = models.NormalizeName(u.DisplayName)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = models.Now()
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, models.NewInternalError(err)
	}
	s.logger.Info("profile created", "user_id", u.UID, "provider", u.Provider)
	return u, nil
}

func defaultDisplayName(email string) string {
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	return models.UnknownUserName
}

// Get returns the profile of uid as seen by viewer. A missing profile yields a
// placeholder rather than an error.
func (s *ProfileService) Get(ctx context.Context, viewer *identity.Session, uid string) (*Profile, error) {
	p := &Profile{}
	user, err := s.users.GetUser(ctx, uid)
	switch {
	case err == nil:
		p.User = *user
	case errors.Is(err, repositories.ErrNotFound):
		p.User = models.User{UID: uid, DisplayName: models.UnknownUserName}
		p.Missing = true
	default:
		return nil, models.NewInternalError(err)
	}

	if p.FollowingCount, err = s.follows.GetFollowingCount(ctx, uid); err != nil {
		return nil, models.NewInternalError(err)
	}
	if p.FollowersCount, err = s.follows.GetFollowersCount(ctx, uid); err != nil {
		return nil, models.NewInternalError(err)
	}
	if viewer != nil && viewer.UserID != uid {
		if p.IsFollowing, err = s.follows.IsFollowing(ctx, viewer.UserID, uid); err != nil {
			return nil, models.NewInternalError(err)
		}
	}
	return p, nil
}

// DisplayName resolves a uid to its display name, or UnknownUserName.
func (s *ProfileService) DisplayName(ctx context.Context, uid string) string {
	user, err := s.users.GetUser(ctx, uid)
	if err != nil || user.DisplayName == "" {
		return models.UnknownUserName
	}
	return user.DisplayName
}

// Update changes the display name and/or photo URL of the session user.
func (s *ProfileService) Update(ctx context.Context, sess *identity.Session, req models.UpdateProfileRequest) (*models.User, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.DisplayName)
	fields := map[string]any{}
	if name != "" {
		fields["display_name"] = name
		fields["display_name_lower"] = models.NormalizeName(name)
	}
	if req.PhotoURL != "" {
		fields["photo_url"] = req.PhotoURL
	}
	if len(fields) == 0 {
		return nil, models.NewValidationError("Nothing to update")
	}
	if err := s.users.UpdateUser(ctx, sess.UserID, fields); err != nil {
		return nil, storeError(err, "user", sess.UserID)
	}
	if s.syncer != nil {
		if err := s.syncer.SyncProfile(ctx, sess, name, req.PhotoURL); err != nil {
			observability.BestEffortFailures.WithLabelValues("profile_sync").Inc()
			s.logger.Warn("identity profile sync failed", "user_id", sess.UserID, "error", err)
		}
	}
	user, err := s.users.GetUser(ctx, sess.UserID)
	return user, storeError(err, "user", sess.UserID)
}

// UploadPhoto stores a new profile photo and points the profile at it. The
// previous photo is deleted best effort.
func (s *ProfileService) UploadPhoto(ctx context.Context, sess *identity.Session, file ImageUpload) (*models.User, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	current, err := s.users.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, storeError(err, "user", sess.UserID)
	}

	url, err := s.upload(ctx, objectstore.ObjectName(file.Filename, "avatars", sess.UserID), file)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user, err := s.Update(ctx, sess, models.UpdateProfileRequest{PhotoURL: url})
	if err != nil {
		return nil, err
	}
	if current.PhotoURL != "" && current.PhotoURL != url {
		if err := s.objects.Delete(ctx, current.PhotoURL); err != nil {
			observability.BestEffortFailures.WithLabelValues("photo_delete").Inc()
			s.logger.Warn("old photo delete failed", "user_id", sess.UserID, "error", err)
		}
	}
	return user, nil
}

func (s *ProfileService) upload(ctx context.Context, name string, file ImageUpload) (string, error) {
	return s.objects.Upload(ctx, name, file.Reader, objectstore.UploadOptions{
		ContentType: file.ContentType,
		Size:        file.Size,
		Progress:    file.Progress,
	})
}

// Search returns profiles whose display name starts with prefix.
func (s *ProfileService) Search(ctx context.Context, prefix string, limit int) ([]models.UserCompact, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	users, err := s.users.SearchUsers(ctx, prefix, limit)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	out := make([]models.UserCompact, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToCompact())
	}
	return out, nil
}

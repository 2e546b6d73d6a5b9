package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/repositories"
)

// FollowService manages follow edges between users
type FollowService struct {
	follows  repositories.FollowRepository
	users    repositories.UserRepository
	notifier Dispatcher
	logger   *slog.Logger
}

func NewFollowService(follows repositories.FollowRepository, users repositories.UserRepository,
	notifier Dispatcher, logger *slog.Logger) *FollowService {
	return &FollowService{follows: follows, users: users, notifier: notifier, logger: logger.With("component", "follows")}
}

// Follow makes the session user follow target and notifies target. Following
// an already followed user is a no-op.
func (s *FollowService) Follow(ctx context.Context, sess *identity.Session, target string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if target == sess.UserID {
		return models.NewValidationError("You cannot follow yourself")
	}
	if _, err := s.users.GetUser(ctx, target); err != nil {
		return storeError(err, "user", target)
	}
	already, err := s.follows.IsFollowing(ctx, sess.UserID, target)
	if err != nil {
		return models.NewInternalError(err)
	}
	if already {
		return nil
	}

	edge := &models.Follow{FollowerID: sess.UserID, FolloweeID: target, CreatedAt: models.Now()}
	if err := s.follows.CreateFollow(ctx, edge); err != nil {
		return models.NewInternalError(err)
	}
	s.logger.Info("user followed", "user_id", sess.UserID, "followee_id", target)

	name := sess.DisplayName
	if name == "" {
		name = s.displayName(ctx, sess.UserID)
	}
	notify(ctx, s.notifier, models.Notification{
		OwnerID:   target,
		ActorID:   sess.UserID,
		ActorName: name,
		Type:      models.NotificationFollow,
		Message:   fmt.Sprintf("%s started following you", name),
	})
	return nil
}

func (s *FollowService) displayName(ctx context.Context, uid string) string {
	user, err := s.users.GetUser(ctx, uid)
	if err != nil || user.DisplayName == "" {
		return models.UnknownUserName
	}
	return user.DisplayName
}

// Unfollow removes the edge; it is a no-op when there is none.
func (s *FollowService) Unfollow(ctx context.Context, sess *identity.Session, target string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if target == sess.UserID {
		return models.NewValidationError("You cannot unfollow yourself")
	}
	err := s.follows.DeleteFollow(ctx, sess.UserID, target)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return models.NewInternalError(err)
	}
	return nil
}

func (s *FollowService) IsFollowing(ctx context.Context, sess *identity.Session, target string) (bool, error) {
	if err := requireSession(sess); err != nil {
		return false, err
	}
	ok, err := s.follows.IsFollowing(ctx, sess.UserID, target)
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return ok, nil
}

// ListFollowing returns the profiles uid follows.
func (s *FollowService) ListFollowing(ctx context.Context, uid string) ([]models.UserCompact, error) {
	edges, err := s.follows.GetFollowing(ctx, uid)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.FolloweeID)
	}
	return s.compact(ctx, ids), nil
}

// ListFollowers returns the profiles following uid.
func (s *FollowService) ListFollowers(ctx context.Context, uid string) ([]models.UserCompact, error) {
	edges, err := s.follows.GetFollowers(ctx, uid)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.FollowerID)
	}
	return s.compact(ctx, ids), nil
}

func (s *FollowService) compact(ctx context.Context, ids []string) []models.UserCompact {
	out := make([]models.UserCompact, 0, len(ids))
	for _, id := range ids {
		user, err := s.users.GetUser(ctx, id)
		if err != nil {
			out = append(out, models.UserCompact{UID: id, DisplayName: models.UnknownUserName})
			continue
		}
		out = append(out, user.ToCompact())
	}
	return out
}

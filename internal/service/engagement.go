package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/observability"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/repositories"
	"go.opentelemetry.io/otel/attribute"
)

// LikeMode selects how ToggleLike reads and writes the like set.
type LikeMode string

const (
	// LikeModeTransactional evaluates and applies the toggle in one transaction.
	LikeModeTransactional LikeMode = "transactional"
	// LikeModeCheckThenAct reads the like state and writes in a separate step.
	// Two interleaved toggles by the same user can lose an update.
	LikeModeCheckThenAct LikeMode = "check-then-act"
)

// MaxCommentLength is the longest accepted comment, in characters.
const MaxCommentLength = 1000

// Names resolves display names.
type Names interface {
	DisplayName(ctx context.Context, uid string) string
}

// Tracker owns likes and comments of posts.
type Tracker struct {
	posts    repositories.PostRepository
	likes    repositories.LikeRepository
	comments repositories.CommentRepository
	names    Names
	notifier Dispatcher
	mode     LikeMode
	logger   *slog.Logger

	// afterCheck runs between the read and the write of a check-then-act toggle.
	afterCheck func()
}

func NewTracker(posts repositories.PostRepository, likes repositories.LikeRepository,
	comments repositories.CommentRepository, names Names, notifier Dispatcher, mode LikeMode, logger *slog.Logger) *Tracker {
	if mode == "" {
		mode = LikeModeTransactional
	}
	return &Tracker{
		posts:    posts,
		likes:    likes,
		comments: comments,
		names:    names,
		notifier: notifier,
		mode:     mode,
		logger:   logger.With("component", "engagement"),
	}
}

// LikeState returns viewer's like state and the like count of a post. A nil
// viewer is reported as not liking.
func (t *Tracker) LikeState(ctx context.Context, viewer *identity.Session, ref models.PostRef) (models.LikeState, error) {
	likes, err := t.likes.GetLikesByPost(ctx, ref)
	if err != nil {
		return models.LikeState{}, storeError(err, "likes", ref.PostID)
	}
	return likeState(ref, viewer, likes), nil
}

func likeState(ref models.PostRef, viewer *identity.Session, likes []models.Like) models.LikeState {
	state := models.LikeState{PostRef: ref, Count: len(likes)}
	if viewer == nil {
		return state
	}
	for _, l := range likes {
		if l.UserID == viewer.UserID {
			state.Liked = true
			break
		}
	}
	return state
}

// ToggleLike flips the session user's like on a post and returns the new state.
// Creating a like notifies the post owner.
func (t *Tracker) ToggleLike(ctx context.Context, sess *identity.Session, ref models.PostRef) (state models.LikeState, err error) {
	if err := requireSession(sess); err != nil {
		return models.LikeState{}, err
	}
	ctx, span := observability.StartSpan(ctx, "engagement.ToggleLike",
		attribute.String("user.id", sess.UserID),
		attribute.String("post.id", ref.PostID),
		attribute.String("like.mode", string(t.mode)),
	)
	defer func() {
		if err != nil {
			observability.LikeToggles.WithLabelValues("error").Inc()
		}
		observability.EndSpan(span, err)
	}()

	post, err := t.posts.GetPost(ctx, ref)
	if err != nil {
		return models.LikeState{}, storeError(err, "post", ref.PostID)
	}

	like := &models.Like{UserID: sess.UserID, CreatedAt: models.Now()}
	var liked bool
	switch t.mode {
	case LikeModeCheckThenAct:
		liked, err = t.checkThenAct(ctx, ref, like)
	default:
		liked, err = t.likes.ToggleLike(ctx, ref, like)
	}
	if err != nil {
		return models.LikeState{}, storeError(err, "like", ref.PostID)
	}

	if liked {
		observability.LikeToggles.WithLabelValues("liked").Inc()
		name := t.names.DisplayName(ctx, sess.UserID)
		notify(ctx, t.notifier, models.Notification{
			OwnerID:     post.OwnerID,
			ActorID:     sess.UserID,
			ActorName:   name,
			Type:        models.NotificationLike,
			Message:     fmt.Sprintf("%s liked your post", name),
			PostID:      post.ID,
			PostOwnerID: post.OwnerID,
		})
	} else {
		observability.LikeToggles.WithLabelValues("unliked").Inc()
	}
	return t.LikeState(ctx, sess, ref)
}

func (t *Tracker) checkThenAct(ctx context.Context, ref models.PostRef, like *models.Like) (bool, error) {
	exists, err := t.likes.HasUserLikedPost(ctx, ref, like.UserID)
	if err != nil {
		return false, err
	}
	if t.afterCheck != nil {
		t.afterCheck()
	}
	if exists {
		err := t.likes.DeleteLike(ctx, ref, like.UserID)
		if errors.Is(err, repositories.ErrNotFound) {
			err = nil
		}
		return false, err
	}
	return true, t.likes.CreateLike(ctx, ref, like)
}

// WatchLikes streams viewer's like state of a post after every change to its
// like set. The channel is closed when ctx is done.
func (t *Tracker) WatchLikes(ctx context.Context, viewer *identity.Session, ref models.PostRef) (<-chan models.LikeState, error) {
	snaps, err := t.likes.WatchLikes(ctx, ref)
	if err != nil {
		return nil, storeError(err, "likes", ref.PostID)
	}
	out := make(chan models.LikeState, 1)
	go func() {
		defer close(out)
		for snap := range snaps {
			if snap.Err != nil {
				t.logger.Warn("like stream error", "post_id", ref.PostID, "error", snap.Err)
				continue
			}
			likes, err := repositories.LikesFromDocs(snap.Docs)
			if err != nil {
				t.logger.Warn("like decode failed", "post_id", ref.PostID, "error", err)
				continue
			}
			if !sendLatest(ctx, out, likeState(ref, viewer, likes)) {
				return
			}
		}
	}()
	return out, nil
}

func validComment(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", models.NewValidationError("Comment cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return "", models.NewValidationError(fmt.Sprintf("Comment exceeds %d characters", MaxCommentLength))
	}
	return text, nil
}

// AddComment stores a comment with a snapshot of the author's display name and
// notifies the post owner.
func (t *Tracker) AddComment(ctx context.Context, sess *identity.Session, ref models.PostRef, text string) (*models.Comment, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	text, err := validComment(text)
	if err != nil {
		return nil, err
	}
	post, err := t.posts.GetPost(ctx, ref)
	if err != nil {
		return nil, storeError(err, "post", ref.PostID)
	}

	name := t.names.DisplayName(ctx, sess.UserID)
	comment := &models.Comment{
		PostID:      post.ID,
		PostOwnerID: post.OwnerID,
		AuthorID:    sess.UserID,
		AuthorName:  name,
		Content:     text,
		CreatedAt:   models.Now(),
	}
	if err := t.comments.CreateComment(ctx, comment); err != nil {
		return nil, models.NewInternalError(err)
	}

	notify(ctx, t.notifier, models.Notification{
		OwnerID:     post.OwnerID,
		ActorID:     sess.UserID,
		ActorName:   name,
		Type:        models.NotificationComment,
		Message:     fmt.Sprintf("%s commented on your post", name),
		PostID:      post.ID,
		PostOwnerID: post.OwnerID,
	})
	return comment, nil
}

// ListComments returns the comments of a post, oldest first.
func (t *Tracker) ListComments(ctx context.Context, ref models.PostRef) ([]models.Comment, error) {
	comments, err := t.comments.GetCommentsByPost(ctx, ref)
	return comments, storeError(err, "comments", ref.PostID)
}

func (t *Tracker) CommentCount(ctx context.Context, ref models.PostRef) (int, error) {
	n, err := t.comments.CountComments(ctx, ref)
	return n, storeError(err, "comments", ref.PostID)
}

func (t *Tracker) ownComment(ctx context.Context, sess *identity.Session, ref models.PostRef, commentID string) (*models.Comment, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	comment, err := t.comments.GetComment(ctx, ref, commentID)
	if err != nil {
		return nil, storeError(err, "comment", commentID)
	}
	if comment.AuthorID != sess.UserID {
		return nil, models.NewForbiddenError("You can only change your own comments")
	}
	return comment, nil
}

func (t *Tracker) UpdateComment(ctx context.Context, sess *identity.Session, ref models.PostRef, commentID, text string) (*models.Comment, error) {
	comment, err := t.ownComment(ctx, sess, ref, commentID)
	if err != nil {
		return nil, err
	}
	text, err = validComment(text)
	if err != nil {
		return nil, err
	}
	now := models.Now()
	if err := t.comments.UpdateComment(ctx, ref, commentID, map[string]any{
		"content":    text,
		"updated_at": now.Millis(),
	}); err != nil {
		return nil, storeError(err, "comment", commentID)
	}
	comment.Content = text
	comment.UpdatedAt = now
	return comment, nil
}

func (t *Tracker) DeleteComment(ctx context.Context, sess *identity.Session, ref models.PostRef, commentID string) error {
	if _, err := t.ownComment(ctx, sess, ref, commentID); err != nil {
		return err
	}
	return storeError(t.comments.DeleteComment(ctx, ref, commentID), "comment", commentID)
}

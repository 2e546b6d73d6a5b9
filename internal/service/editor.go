package service

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/objectstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/observability"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/repositories"
	"go.opentelemetry.io/otel/attribute"
)

// ImageUpload is one file to be stored in the object store.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
	Progress    objectstore.ProgressFunc
}

// PostInput describes a create (empty PostID) or an edit of an existing post.
type PostInput struct {
	PostID   string
	Title    string
	Content  string
	Category models.Category
	// KeepImageURLs are the current images that survive an edit, in display order.
	KeepImageURLs []string
	NewImages     []ImageUpload
}

// Editor creates, edits and deletes posts together with their images.
type Editor struct {
	posts    repositories.PostRepository
	likes    repositories.LikeRepository
	comments repositories.CommentRepository
	objects  objectstore.Store
	logger   *slog.Logger
}

func NewEditor(posts repositories.PostRepository, likes repositories.LikeRepository,
	comments repositories.CommentRepository, objects objectstore.Store, logger *slog.Logger) *Editor {
	return &Editor{
		posts:    posts,
		likes:    likes,
		comments: comments,
		objects:  objects,
		logger:   logger.With("component", "editor"),
	}
}

// Save creates or updates a post. New images are uploaded before the post
// document is written; if any upload fails the images uploaded so far are
// removed and the document is left untouched.
func (e *Editor) Save(ctx context.Context, sess *identity.Session, in PostInput) (post *models.Post, err error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	ctx, span := observability.StartSpan(ctx, "editor.Save",
		attribute.String("user.id", sess.UserID),
		attribute.Int("images.new", len(in.NewImages)),
	)
	defer func() { observability.EndSpan(span, err) }()

	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if !in.Category.Valid() {
		return nil, models.NewValidationError("Unknown category: " + string(in.Category))
	}
	if in.Content == "" && len(in.KeepImageURLs) == 0 && len(in.NewImages) == 0 {
		return nil, models.NewValidationError("A post needs text or at least one image")
	}

	creating := in.PostID == ""
	var current *models.Post
	if creating {
		in.PostID = e.posts.NewPostID()
		if len(in.KeepImageURLs) > 0 {
			return nil, models.NewValidationError("A new post cannot keep images")
		}
	} else {
		current, err = e.posts.GetPost(ctx, models.PostRef{OwnerID: sess.UserID, PostID: in.PostID})
		if err != nil {
			return nil, storeError(err, "post", in.PostID)
		}
		if current.OwnerID != sess.UserID {
			return nil, models.NewForbiddenError("Only the author can edit this post")
		}
		if !isOrderedSubset(in.KeepImageURLs, current.ImageURLs) {
			return nil, models.NewValidationError("Kept images must belong to the post")
		}
	}
	span.SetAttributes(attribute.String("post.id", in.PostID), attribute.Bool("post.create", creating))

	uploaded, err := e.uploadAll(ctx, sess.UserID, in.PostID, in.NewImages)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	images := make([]string, 0, len(in.KeepImageURLs)+len(uploaded))
	images = append(images, in.KeepImageURLs...)
	images = append(images, uploaded...)

	ref := models.PostRef{OwnerID: sess.UserID, PostID: in.PostID}
	if creating {
		post = &models.Post{
			ID:        in.PostID,
			OwnerID:   sess.UserID,
			Title:     in.Title,
			Content:   in.Content,
			ImageURLs: images,
			Category:  in.Category,
			CreatedAt: models.Now(),
		}
		if err := e.posts.CreatePost(ctx, post); err != nil {
			// Uploaded images stay orphaned; the failure is reported to the caller.
			e.logger.Error("post write failed after upload", "post_id", in.PostID, "images", len(uploaded), "error", err)
			return nil, models.NewInternalError(err)
		}
		e.logger.Info("post created", "user_id", sess.UserID, "post_id", post.ID)
		return post, nil
	}

	fields := map[string]any{
		"title":      in.Title,
		"content":    in.Content,
		"category":   string(in.Category),
		"image_urls": images,
		"updated_at": models.Now().Millis(),
	}
	if err := e.posts.UpdatePost(ctx, ref, fields); err != nil {
		e.logger.Error("post update failed after upload", "post_id", in.PostID, "images", len(uploaded), "error", err)
		return nil, storeError(err, "post", in.PostID)
	}
	e.deleteImages(ctx, in.PostID, removedImages(current.ImageURLs, in.KeepImageURLs))

	post, err = e.posts.GetPost(ctx, ref)
	if err != nil {
		return nil, storeError(err, "post", in.PostID)
	}
	return post, nil
}

func (e *Editor) uploadAll(ctx context.Context, owner, postID string, files []ImageUpload) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, f := range files {
		name := objectstore.ObjectName(f.Filename, "posts", owner, postID)
		url, err := e.objects.Upload(ctx, name, f.Reader, objectstore.UploadOptions{
			ContentType: f.ContentType,
			Size:        f.Size,
			Progress:    f.Progress,
		})
		if err != nil {
			e.logger.Warn("image upload failed", "post_id", postID, "file", f.Filename, "error", err)
			e.deleteImages(context.WithoutCancel(ctx), postID, urls)
			return nil, err
		}
		if f.Size > 0 {
			observability.UploadBytes.Add(float64(f.Size))
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// deleteImages removes objects best effort.
func (e *Editor) deleteImages(ctx context.Context, postID string, urls []string) {
	for _, url := range urls {
		if err := e.objects.Delete(ctx, url); err != nil {
			observability.BestEffortFailures.WithLabelValues("image_delete").Inc()
			e.logger.Warn("image delete failed", "post_id", postID, "url", url, "error", err)
		}
	}
}

// Delete removes a post owned by the session user. Images are deleted first,
// then likes and comments, then the post document. Nothing is rolled back when
// a later step fails.
func (e *Editor) Delete(ctx context.Context, sess *identity.Session, postID string) (err error) {
	if err := requireSession(sess); err != nil {
		return err
	}
	ctx, span := observability.StartSpan(ctx, "editor.Delete",
		attribute.String("user.id", sess.UserID),
		attribute.String("post.id", postID),
	)
	defer func() { observability.EndSpan(span, err) }()

	ref := models.PostRef{OwnerID: sess.UserID, PostID: postID}
	post, err := e.posts.GetPost(ctx, ref)
	if err != nil {
		return storeError(err, "post", postID)
	}
	if post.OwnerID != sess.UserID {
		return models.NewForbiddenError("Only the author can delete this post")
	}

	e.deleteImages(ctx, postID, post.ImageURLs)
	if err := e.likes.DeleteAllLikes(ctx, ref); err != nil {
		e.logger.Warn("like cascade failed", "post_id", postID, "error", err)
	}
	if err := e.comments.DeleteAllComments(ctx, ref); err != nil {
		e.logger.Warn("comment cascade failed", "post_id", postID, "error", err)
	}
	if err := e.posts.DeletePost(ctx, ref); err != nil {
		return storeError(err, "post", postID)
	}
	e.logger.Info("post deleted", "user_id", sess.UserID, "post_id", postID)
	return nil
}

func (e *Editor) Get(ctx context.Context, ref models.PostRef) (*models.Post, error) {
	post, err := e.posts.GetPost(ctx, ref)
	return post, storeError(err, "post", ref.PostID)
}

// ListByOwner returns the posts of one user, newest first.
func (e *Editor) ListByOwner(ctx context.Context, owner string, page repositories.Page) ([]models.Post, error) {
	posts, err := e.posts.GetPostsByOwner(ctx, owner, page)
	return posts, storeError(err, "posts", owner)
}

// isOrderedSubset reports whether every element of sub appears in all, in the same relative order.
func isOrderedSubset(sub, all []string) bool {
	i := 0
	for _, s := range sub {
		for i < len(all) && all[i] != s {
			i++
		}
		if i == len(all) {
			return false
		}
		i++
	}
	return true
}

func removedImages(before, kept []string) []string {
	keep := make(map[string]struct{}, len(kept))
	for _, k := range kept {
		keep[k] = struct{}{}
	}
	var removed []string
	for _, url := range before {
		if _, ok := keep[url]; !ok {
			removed = append(removed, url)
		}
	}
	return removed
}

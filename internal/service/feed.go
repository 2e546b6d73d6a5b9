package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/observability"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/repositories"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// DefaultFanout bounds concurrent followee reads when no limit is configured.
const DefaultFanout = 8

// FeedOptions narrow a composed feed.
type FeedOptions struct {
	Category models.Category
	// Limit of 0 returns every post.
	Limit int
	// Before is an exclusive created_at cursor.
	Before models.Timestamp
}

// FeedItem is a post with its author and the viewer's engagement.
type FeedItem struct {
	models.Post
	Author        models.UserCompact `json:"author"`
	Liked         bool               `json:"liked"`
	LikesCount    int                `json:"likes_count"`
	CommentsCount int                `json:"comments_count"`
}

// Feed is the result of one composition.
type Feed struct {
	SignedIn   bool              `json:"signed_in"`
	Items      []FeedItem        `json:"items"`
	NextCursor *models.Timestamp `json:"next_cursor,omitempty"`
}

// Composer merges the posts of a user and everyone they follow.
type Composer struct {
	posts   repositories.PostRepository
	follows repositories.FollowRepository
	users   repositories.UserRepository
	tracker *Tracker
	fanout  int
	logger  *slog.Logger
}

func NewComposer(posts repositories.PostRepository, follows repositories.FollowRepository,
	users repositories.UserRepository, tracker *Tracker, fanout int, logger *slog.Logger) *Composer {
	if fanout <= 0 {
		fanout = DefaultFanout
	}
	return &Composer{
		posts:   posts,
		follows: follows,
		users:   users,
		tracker: tracker,
		fanout:  fanout,
		logger:  logger.With("component", "feed"),
	}
}

type feedSource struct {
	author models.UserCompact
	posts  []models.Post
}

// Compose builds the feed of the session user. Without a session it returns
// an empty feed marked as signed out. A followee whose posts cannot be read is
// skipped.
func (c *Composer) Compose(ctx context.Context, sess *identity.Session, opts FeedOptions) (feed *Feed, err error) {
	if sess == nil || sess.UserID == "" {
		return &Feed{SignedIn: false, Items: []FeedItem{}}, nil
	}
	if !opts.Category.Valid() {
		return nil, models.NewValidationError("Unknown category: " + string(opts.Category))
	}

	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "feed.Compose",
		attribute.String("user.id", sess.UserID),
		attribute.String("feed.category", string(opts.Category)),
		attribute.Int("feed.limit", opts.Limit),
	)
	defer func() {
		observability.FeedComposeLatency.Observe(time.Since(start).Seconds())
		observability.EndSpan(span, err)
	}()

	edges, err := c.follows.GetFollowing(ctx, sess.UserID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	span.SetAttributes(attribute.Int("feed.followees", len(edges)))

	// The category filter applies to the merged feed, so sources are only
	// bounded when there is no filter.
	page := repositories.Page{Before: opts.Before}
	if opts.Category == models.CategoryNone {
		page.Limit = opts.Limit
	}

	own, err := c.posts.GetPostsByOwner(ctx, sess.UserID, page)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	sources := []feedSource{{
		author: c.author(ctx, sess.UserID),
		posts:  own,
	}}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanout)
	for _, edge := range edges {
		followee := edge.FolloweeID
		if followee == sess.UserID {
			continue
		}
		g.Go(func() error {
			posts, err := c.posts.GetPostsByOwner(gctx, followee, page)
			if err != nil {
				observability.FeedSourceFailures.Inc()
				c.logger.Warn("followee posts unavailable", "user_id", sess.UserID, "followee_id", followee, "error", err)
				return nil
			}
			author := c.author(gctx, followee)
			mu.Lock()
			sources = append(sources, feedSource{author: author, posts: posts})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items := mergeSources(sources)
	items = filterCategory(items, opts.Category)
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	c.enrich(ctx, sess, items)

	feed = &Feed{SignedIn: true, Items: items}
	if opts.Limit > 0 && len(items) == opts.Limit {
		cursor := items[len(items)-1].CreatedAt
		feed.NextCursor = &cursor
	}
	return feed, nil
}

// author reads a profile once; a missing profile yields UnknownUserName.
func (c *Composer) author(ctx context.Context, uid string) models.UserCompact {
	user, err := c.users.GetUser(ctx, uid)
	if err != nil || user.DisplayName == "" {
		return models.UserCompact{UID: uid, DisplayName: models.UnknownUserName}
	}
	return user.ToCompact()
}

// mergeSources dedupes by (owner, id) and sorts newest first, breaking ties by id.
func mergeSources(sources []feedSource) []FeedItem {
	seen := make(map[models.PostRef]struct{})
	items := make([]FeedItem, 0)
	for _, src := range sources {
		for _, p := range src.posts {
			if _, dup := seen[p.Ref()]; dup {
				continue
			}
			seen[p.Ref()] = struct{}{}
			items = append(items, FeedItem{Post: p, Author: src.author})
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.CreatedAt.Equal(b.CreatedAt.Time) {
			return a.CreatedAt.After(b.CreatedAt.Time)
		}
		if a.ID != b.ID {
			return a.ID > b.ID
		}
		return a.OwnerID > b.OwnerID
	})
	return items
}

func filterCategory(items []FeedItem, category models.Category) []FeedItem {
	if category == models.CategoryNone {
		return items
	}
	out := items[:0]
	for _, it := range items {
		if it.Category == category {
			out = append(out, it)
		}
	}
	return out
}

// enrich fills in engagement counters. Failures leave zero values.
func (c *Composer) enrich(ctx context.Context, sess *identity.Session, items []FeedItem) {
	if c.tracker == nil {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanout)
	for i := range items {
		item := &items[i]
		g.Go(func() error {
			ref := item.Ref()
			state, err := c.tracker.LikeState(gctx, sess, ref)
			if err != nil {
				c.logger.Warn("like state unavailable", "post_id", ref.PostID, "error", err)
			} else {
				item.Liked = state.Liked
				item.LikesCount = state.Count
			}
			n, err := c.tracker.CommentCount(gctx, ref)
			if err != nil {
				c.logger.Warn("comment count unavailable", "post_id", ref.PostID, "error", err)
			} else {
				item.CommentsCount = n
			}
			return nil
		})
	}
	_ = g.Wait()
}

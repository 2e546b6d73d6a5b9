package repositories

import (
	"context"
	"testing"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/docstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowRepository_EdgeAndMirror(t *testing.T) {
	store := docstore.NewMemoryStore()
	repo := NewDocFollowRepository(store)
	ctx := context.Background()

	require.NoError(t, repo.CreateFollow(ctx, &models.Follow{FollowerID: "a", FolloweeID: "b", CreatedAt: models.Now()}))

	ok, err := repo.IsFollowing(ctx, "a", "b")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.IsFollowing(ctx, "b", "a")
	require.NoError(t, err)
	assert.False(t, ok)

	following, err := repo.GetFollowing(ctx, "a")
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, "b", following[0].FolloweeID)

	followers, err := repo.GetFollowers(ctx, "b")
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "a", followers[0].FollowerID)

	require.NoError(t, repo.DeleteFollow(ctx, "a", "b"))
	n, err := repo.GetFollowersCount(ctx, "b")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPostRepository_PagesNewestFirst(t *testing.T) {
	store := docstore.NewMemoryStore()
	repo := NewDocPostRepository(store)
	ctx := context.Background()

	for i, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, repo.CreatePost(ctx, &models.Post{
			ID: id, OwnerID: "u", Content: id, CreatedAt: models.FromMillis(int64(1000 + i)),
		}))
	}

	posts, err := repo.GetPostsByOwner(ctx, "u", Page{})
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "p3", posts[0].ID)
	assert.Equal(t, []string{}, posts[0].ImageURLs)

	posts, err = repo.GetPostsByOwner(ctx, "u", Page{Before: models.FromMillis(1002), Limit: 1})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "p2", posts[0].ID)
	assert.Equal(t, "u", posts[0].OwnerID)

	_, err = repo.GetPost(ctx, models.PostRef{OwnerID: "u", PostID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_SearchByPrefix(t *testing.T) {
	store := docstore.NewMemoryStore()
	repo := NewDocUserRepository(store)
	ctx := context.Background()

	for uid, name := range map[string]string{"1": "Alice", "2": "Alfred", "3": "Bob"} {
		require.NoError(t, repo.CreateUser(ctx, &models.User{UID: uid, DisplayName: name, DisplayNameLower: models.NormalizeName(name)}))
	}

	users, err := repo.SearchUsers(ctx, " AL", 10)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Alfred", users[0].DisplayName)
	assert.Equal(t, "Alice", users[1].DisplayName)
}

func TestMessageRepository_ConversationMergesBothDirections(t *testing.T) {
	store := docstore.NewMemoryStore()
	repo := NewDocMessageRepository(store)
	ctx := context.Background()

	msgs := []models.Message{
		{ID: "m1", SenderID: "a", ReceiverID: "b", Content: "hi", CreatedAt: models.FromMillis(1)},
		{ID: "m2", SenderID: "b", ReceiverID: "a", Content: "yo", CreatedAt: models.FromMillis(2)},
		{ID: "m3", SenderID: "a", ReceiverID: "b", Content: "ok", CreatedAt: models.FromMillis(3)},
		{ID: "m4", SenderID: "c", ReceiverID: "a", Content: "other", CreatedAt: models.FromMillis(4)},
	}
	for i := range msgs {
		require.NoError(t, repo.PutMessage(ctx, "a", &msgs[i]))
	}

	conv, err := repo.GetConversation(ctx, "a", "b")
	require.NoError(t, err)
	var ids []string
	for _, m := range conv {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids)

	inbox, err := repo.GetInbox(ctx, "a", Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, "m4", inbox[0].ID)
}

func TestNotificationRepository_Unread(t *testing.T) {
	store := docstore.NewMemoryStore()
	repo := NewDocNotificationRepository(store)
	ctx := context.Background()

	n1 := &models.Notification{OwnerID: "u", Type: models.NotificationLike, CreatedAt: models.FromMillis(1)}
	n2 := &models.Notification{OwnerID: "u", Type: models.NotificationFollow, CreatedAt: models.FromMillis(2)}
	require.NoError(t, repo.CreateNotification(ctx, n1))
	require.NoError(t, repo.CreateNotification(ctx, n2))
	require.NotEmpty(t, n1.ID)

	require.NoError(t, repo.MarkAsRead(ctx, "u", n1.ID))
	unread, err := repo.GetUnread(ctx, "u")
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, n2.ID, unread[0].ID)

	assert.ErrorIs(t, repo.MarkAsRead(ctx, "u", "ghost"), ErrNotFound)
}

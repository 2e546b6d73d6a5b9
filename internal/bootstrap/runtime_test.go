package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/docstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/objectstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/observability"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/service"
	"github.com/Ahnjunghyeon/test-login-sub000/pkg/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Env:                "test",
		JWTSecret:          "bootstrap-test-secret-bootstrap-test",
		SessionTTL:         time.Hour,
		DocstoreBackend:    "memory",
		ObjectstoreBackend: "memory",
		NotifyTransport:    "direct",
		LikeMode:           "transactional",
		FeedFanout:         2,
		MaxUploadMB:        1,
	}
}

func TestInitRuntime_MemoryWithRedisRevoker(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	ctx := context.Background()
	rt, err := InitRuntime(ctx, cfg, observability.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	require.NotNil(t, rt.Redis)

	res, err := rt.Identity.SignUp(ctx, models.SignUpRequest{
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Password:    "correct-horse",
	})
	require.NoError(t, err)

	sess, err := rt.Identity.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	require.NoError(t, rt.Identity.SignOut(ctx, sess))

	// The revocation lives in Redis.
	assert.NotEmpty(t, mr.Keys())
	_, err = rt.Identity.Authenticate(ctx, res.Token)
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))
}

func TestInitRuntime_BadRedisURL(t *testing.T) {
	cfg := memoryConfig()
	cfg.RedisURL = "not a url"
	_, err := InitRuntime(context.Background(), cfg, observability.Discard())
	assert.Error(t, err)
}

func TestNewRuntime_WiresServices(t *testing.T) {
	rt := NewRuntime(memoryConfig(), Stores{
		Docs:    docstore.NewMemoryStore(),
		Objects: objectstore.NewMemoryStore(),
	}, observability.Discard())

	ctx := context.Background()
	res, err := rt.Identity.SignUp(ctx, models.SignUpRequest{
		DisplayName: "Bob",
		Email:       "bob@example.com",
		Password:    "correct-horse",
	})
	require.NoError(t, err)

	feed, err := rt.Composer.Compose(ctx, res.Session, service.FeedOptions{})
	require.NoError(t, err)
	assert.True(t, feed.SignedIn)
	assert.Empty(t, feed.Items)

	assert.Equal(t, "Bob", rt.Profiles.DisplayName(ctx, res.Session.UserID))

	require.NoError(t, rt.Close())
	// Close is idempotent.
	require.NoError(t, rt.Close())
}

func TestInitRuntime_RequiresSession(t *testing.T) {
	observability.SetLogger(observability.Discard())
	rt, err := InitRuntime(context.Background(), memoryConfig(), nil)
	require.NoError(t, err)
	defer rt.Close()

	ctx := identity.WithSession(context.Background(), nil)
	assert.Nil(t, identity.SessionFrom(ctx))
	_, err = rt.Notifications.UnreadCount(ctx, identity.SessionFrom(ctx))
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))
}

package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/bootstrap"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/docstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/objectstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/observability"
	"github.com/Ahnjunghyeon/test-login-sub000/pkg/config"
	"github.com/Ahnjunghyeon/test-login-sub000/pkg/validators"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	e       *echo.Echo
	objects *objectstore.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		Env:            "test",
		JWTSecret:      "router-test-secret-router-test-secret",
		SessionTTL:     time.Hour,
		AllowedOrigins: []string{"*"},
		LikeMode:       "transactional",
		FeedFanout:     4,
		MaxUploadMB:    1,
		MetricsEnabled: true,
	}
	logger := observability.Discard()
	objects := objectstore.NewMemoryStore()
	rt := bootstrap.NewRuntime(cfg, bootstrap.Stores{
		Docs:    docstore.NewMemoryStore(),
		Objects: objects,
	}, logger)
	t.Cleanup(func() { _ = rt.Close() })

	e := echo.New()
	e.Validator = validators.NewValidator()
	config.SetupMiddleware(e, cfg, logger)
	SetupRoutes(e, rt, cfg, logger)
	return &testServer{e: e, objects: objects}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) signUp(t *testing.T, name, email string) (token, uid string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"display_name": name,
		"email":        email,
		"password":     "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res struct {
		Token   string `json:"token"`
		Session struct {
			UID string `json:"uid"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.Token)
	return res.Token, res.Session.UID
}

func (s *testServer) createPost(t *testing.T, token, content, category string, images int) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("content", content))
	require.NoError(t, mw.WriteField("category", category))
	for i := 0; i < images; i++ {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="img%d.png"`, i))
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("png bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var post map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	return post
}

type feedBody struct {
	SignedIn bool `json:"signed_in"`
	Items    []struct {
		ID         string `json:"id"`
		Liked      bool   `json:"liked"`
		LikesCount int    `json:"likes_count"`
		Author     struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"items"`
}

func decodeFeed(t *testing.T, rec *httptest.ResponseRecorder) feedBody {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var f feedBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	return f
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFeed_SignedOutIsEmpty(t *testing.T) {
	s := newTestServer(t)

	f := decodeFeed(t, s.do(t, http.MethodGet, "/api/v1/feed", "", nil))
	assert.False(t, f.SignedIn)
	assert.Empty(t, f.Items)

	// An invalid token on the optional route is treated as signed out.
	f = decodeFeed(t, s.do(t, http.MethodGet, "/api/v1/feed", "not-a-token", nil))
	assert.False(t, f.SignedIn)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/v1/me", "/api/v1/notifications", "/api/v1/messages/inbox"} {
		rec := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestSignup_Validation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"display_name": "Al",
		"email":        "not-an-email",
		"password":     "correct-horse",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.signUp(t, "Alice", "alice@example.com")
	rec = s.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"display_name": "Alice Again",
		"email":        "ALICE@example.com",
		"password":     "correct-horse",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"display_name": "Carol",
		"email":        "carol@example.com",
		"password":     strings.Repeat("p", 80),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestSearchUsers_Limit(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.signUp(t, "Alice", "alice@example.com")
	s.signUp(t, "Alina", "alina@example.com")

	rec := s.do(t, http.MethodGet, "/api/v1/users/search?q=ali&limit=1", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var users []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.Len(t, users, 1)

	for _, q := range []string{"limit=abc", "limit=-3"} {
		rec = s.do(t, http.MethodGet, "/api/v1/users/search?q=ali&"+q, alice, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestPostFeedAndLike(t *testing.T) {
	s := newTestServer(t)
	alice, aliceID := s.signUp(t, "Alice", "alice@example.com")
	bob, _ := s.signUp(t, "Bob", "bob@example.com")

	post := s.createPost(t, alice, "hello from the beach", "Travel", 2)
	postID := post["id"].(string)
	assert.Len(t, post["image_urls"], 2)
	assert.Equal(t, 2, s.objects.Len())

	// Bob sees nothing until he follows Alice.
	f := decodeFeed(t, s.do(t, http.MethodGet, "/api/v1/feed", bob, nil))
	assert.True(t, f.SignedIn)
	assert.Empty(t, f.Items)

	rec := s.do(t, http.MethodPost, "/api/v1/users/"+aliceID+"/follow", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	f = decodeFeed(t, s.do(t, http.MethodGet, "/api/v1/feed?category=Travel", bob, nil))
	require.Len(t, f.Items, 1)
	assert.Equal(t, postID, f.Items[0].ID)
	assert.Equal(t, "Alice", f.Items[0].Author.DisplayName)
	assert.False(t, f.Items[0].Liked)

	rec = s.do(t, http.MethodPost, "/api/v1/users/"+aliceID+"/posts/"+postID+"/like", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var state struct {
		Liked bool `json:"liked"`
		Count int  `json:"likes_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.True(t, state.Liked)
	assert.Equal(t, 1, state.Count)

	f = decodeFeed(t, s.do(t, http.MethodGet, "/api/v1/feed", bob, nil))
	require.Len(t, f.Items, 1)
	assert.True(t, f.Items[0].Liked)
	assert.Equal(t, 1, f.Items[0].LikesCount)

	f = decodeFeed(t, s.do(t, http.MethodGet, "/api/v1/feed?category=Food", bob, nil))
	assert.Empty(t, f.Items)

	rec = s.do(t, http.MethodGet, "/api/v1/feed?category=Cars", bob, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeletePost_OnlyOwner(t *testing.T) {
	s := newTestServer(t)
	alice, aliceID := s.signUp(t, "Alice", "alice@example.com")
	bob, _ := s.signUp(t, "Bob", "bob@example.com")
	postID := s.createPost(t, alice, "mine", "", 1)["id"].(string)

	// Posts are addressed under the session owner, so Bob cannot find it.
	rec := s.do(t, http.MethodDelete, "/api/v1/posts/"+postID, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/posts/"+postID, alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, s.objects.Len())

	rec = s.do(t, http.MethodGet, "/api/v1/users/"+aliceID+"/posts/"+postID, alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePost_RejectsNonImage(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.signUp(t, "Alice", "alice@example.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("content", "text"))
	part, err := mw.CreateFormFile("images", "notes.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("plain"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+alice)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, s.objects.Len())
}

func TestCommentsAndMessages(t *testing.T) {
	s := newTestServer(t)
	alice, aliceID := s.signUp(t, "Alice", "alice@example.com")
	bob, bobID := s.signUp(t, "Bob", "bob@example.com")
	postID := s.createPost(t, alice, "comment on me", "", 0)["id"].(string)

	base := "/api/v1/users/" + aliceID + "/posts/" + postID + "/comments"
	rec := s.do(t, http.MethodPost, base, bob, map[string]string{"content": "  nice  "})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var comment struct {
		ID         string `json:"id"`
		Content    string `json:"content"`
		AuthorName string `json:"author_name"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &comment))
	assert.Equal(t, "nice", comment.Content)
	assert.Equal(t, "Bob", comment.AuthorName)

	rec = s.do(t, http.MethodDelete, base+"/"+comment.ID, alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, base, bob, map[string]string{"content": strings.Repeat("x", 1001)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/messages", alice, map[string]string{
		"receiver_id": bobID,
		"content":     "hi bob",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/messages?with="+aliceID, bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi bob", msgs[0]["content"])

	rec = s.do(t, http.MethodGet, "/api/v1/messages", bob, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignOutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.signUp(t, "Alice", "alice@example.com")

	rec := s.do(t, http.MethodGet, "/api/v1/me", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/signout", alice, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/me", alice, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
